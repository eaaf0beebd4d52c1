// Package chaindata provides the HTTP client for the blockchain-data
// provider (GoldRush-style transaction API with decoded log events).
package chaindata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ErrMalformedResponse is returned when the provider response is
// structurally invalid (missing the expected data container).
var ErrMalformedResponse = errors.New("chaindata: malformed provider response")

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// Client fetches wallet transactions over HTTP with retries and
// exponential backoff.
type Client struct {
	baseURL     string
	apiKey      string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// NewClient creates a new chain-data client.
func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:     baseURL,
		apiKey:      apiKey,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// txPageResponse mirrors the provider's paginated transaction envelope.
type txPageResponse struct {
	Data *struct {
		Items      []Transaction `json:"items"`
		Pagination *struct {
			HasMore bool `json:"has_more"`
		} `json:"pagination"`
	} `json:"data"`
	Error        bool   `json:"error"`
	ErrorMessage string `json:"error_message"`
}

// Transactions fetches all transactions for a wallet on a chain,
// ascending by block time, with decoded log events included.
// Returns ErrMalformedResponse if the response lacks the data container.
func (c *Client) Transactions(ctx context.Context, chain, walletAddress string) ([]Transaction, error) {
	var all []Transaction

	for page := 0; ; page++ {
		resp, err := c.fetchPage(ctx, chain, walletAddress, page)
		if err != nil {
			return nil, err
		}
		if resp.Error {
			return nil, fmt.Errorf("chaindata: provider error: %s", resp.ErrorMessage)
		}
		if resp.Data == nil {
			return nil, ErrMalformedResponse
		}

		all = append(all, resp.Data.Items...)

		if resp.Data.Pagination == nil || !resp.Data.Pagination.HasMore {
			break
		}
	}

	return all, nil
}

// fetchPage retrieves one page with retries and exponential backoff.
func (c *Client) fetchPage(ctx context.Context, chain, walletAddress string, page int) (*txPageResponse, error) {
	endpoint := fmt.Sprintf("%s/v1/%s/address/%s/transactions_v3/page/%d/",
		c.baseURL, url.PathEscape(chain), url.PathEscape(walletAddress), page)

	q := url.Values{}
	q.Set("no-logs", "false")
	q.Set("block-signed-at-asc", "true")
	endpoint += "?" + q.Encode()

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		resp, err := c.doRequest(ctx, endpoint)
		if err == nil {
			return resp, nil
		}
		// Malformed payloads will not improve on retry.
		if errors.Is(err, ErrMalformedResponse) {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("chaindata: fetch page %d after %d retries: %w", page, c.maxRetries, lastErr)
}

func (c *Client) doRequest(ctx context.Context, endpoint string) (*txPageResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	httpResp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", httpResp.StatusCode, string(body))
	}

	var resp txPageResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	return &resp, nil
}
