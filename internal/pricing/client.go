// Package pricing provides the HTTP client for historical daily token
// prices.
package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout bounds a single pricing request.
const DefaultTimeout = 30 * time.Second

// DayPrice is one token's USD price on one UTC day.
type DayPrice struct {
	TokenAddress string
	Day          string // YYYY-MM-DD
	PriceUSD     float64
}

// Client fetches historical daily token prices.
type Client struct {
	baseURL string
	apiKey  string
	chain   string
	client  *http.Client
}

// NewClient creates a pricing client for the given chain.
func NewClient(baseURL, apiKey, chain string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		chain:   chain,
		client:  &http.Client{Timeout: DefaultTimeout},
	}
}

// tokenPriceResponse mirrors the provider's historical price payload:
// one entry per requested token, each with a daily price series.
type tokenPriceResponse struct {
	Data []struct {
		ContractAddress string `json:"contract_address"`
		Prices          []struct {
			Date  string   `json:"date"`
			Price *float64 `json:"price"`
		} `json:"prices"`
	} `json:"data"`
	Error        bool   `json:"error"`
	ErrorMessage string `json:"error_message"`
}

// DailyPrices fetches the USD price of each token on the given UTC day
// (YYYY-MM-DD). Tokens the provider has no price for are absent from
// the result; callers treat absence as pricing-unavailable, not as an
// error.
func (c *Client) DailyPrices(ctx context.Context, tokenAddresses []string, day string) (map[string]float64, error) {
	if len(tokenAddresses) == 0 {
		return map[string]float64{}, nil
	}

	endpoint := fmt.Sprintf("%s/v1/pricing/historical_by_addresses_v2/%s/USD/%s/",
		c.baseURL, url.PathEscape(c.chain), url.PathEscape(strings.Join(tokenAddresses, ",")))

	q := url.Values{}
	q.Set("from", day)
	q.Set("to", day)
	endpoint += "?" + q.Encode()

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

	var resp tokenPriceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if resp.Error {
		return nil, fmt.Errorf("pricing: provider error: %s", resp.ErrorMessage)
	}

	prices := make(map[string]float64, len(resp.Data))
	for _, token := range resp.Data {
		// First entry is the earliest point within the range.
		for _, p := range token.Prices {
			if p.Price != nil {
				prices[strings.ToLower(token.ContractAddress)] = *p.Price
				break
			}
		}
	}

	return prices, nil
}
