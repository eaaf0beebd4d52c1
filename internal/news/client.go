// Package news provides the HTTP client for the crypto news feed.
package news

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

// DefaultTimeout bounds a single news request.
const DefaultTimeout = 30 * time.Second

// Article is one published news item.
type Article struct {
	Kind        string // "news" or "media"
	Source      string // publisher domain
	Title       string
	URL         string
	PublishedAt time.Time
	Currencies  []string
}

// Client fetches published articles filtered by currency and time.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewClient creates a news client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: DefaultTimeout},
	}
}

// feedResponse mirrors the provider's post listing.
type feedResponse struct {
	Results []struct {
		Kind   string `json:"kind"`
		Source struct {
			Domain string `json:"domain"`
		} `json:"source"`
		Title       string `json:"title"`
		URL         string `json:"url"`
		PublishedAt string `json:"published_at"`
		Currencies  []struct {
			Code string `json:"code"`
		} `json:"currencies"`
	} `json:"results"`
}

// Search returns articles mentioning any of the currency codes,
// published within [from, to]. Articles with unparseable timestamps
// are dropped.
func (c *Client) Search(ctx context.Context, currencies []string, from, to time.Time) ([]Article, error) {
	q := url.Values{}
	q.Set("auth_token", c.apiKey)
	q.Set("currencies", strings.Join(currencies, ","))
	q.Set("published_at.gte", from.UTC().Format(time.RFC3339))
	q.Set("published_at.lte", to.UTC().Format(time.RFC3339))

	endpoint := c.baseURL + "/posts/?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

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

	var resp feedResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	articles := make([]Article, 0, len(resp.Results))
	for _, r := range resp.Results {
		publishedAt, err := time.Parse(time.RFC3339, r.PublishedAt)
		if err != nil {
			continue
		}

		codes := make([]string, 0, len(r.Currencies))
		for _, cur := range r.Currencies {
			codes = append(codes, cur.Code)
		}

		articles = append(articles, Article{
			Kind:        r.Kind,
			Source:      r.Source.Domain,
			Title:       r.Title,
			URL:         r.URL,
			PublishedAt: publishedAt,
			Currencies:  codes,
		})
	}

	return articles, nil
}
