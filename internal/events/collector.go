// Package events discovers news items published around significant
// trades and persists them as related events.
package events

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"dex-wallet-tracker/internal/domain"
	"dex-wallet-tracker/internal/news"
	"dex-wallet-tracker/internal/storage"
)

// Default collection parameters.
const (
	DefaultMinTradeValueUSD = 10000.0
	DefaultSearchWindow     = 24 * time.Hour
)

// NewsSource searches articles mentioning the given currency codes,
// published within [from, to]. Implemented by news.Client.
type NewsSource interface {
	Search(ctx context.Context, currencies []string, from, to time.Time) ([]news.Article, error)
}

// symbolAliases maps wrapped or chain-specific tickers to the codes
// the news feed indexes.
var symbolAliases = map[string]string{
	"WETH":  "ETH",
	"WBTC":  "BTC",
	"CBETH": "ETH",
}

// Collector finds news published around high-value trades.
type Collector struct {
	source      NewsSource
	events      storage.EventStore
	minValueUSD float64
	window      time.Duration
	logger      logrus.FieldLogger
}

// NewCollector creates an event collector. Zero minValueUSD and window
// fall back to the defaults.
func NewCollector(source NewsSource, events storage.EventStore, minValueUSD float64, window time.Duration, logger logrus.FieldLogger) *Collector {
	if minValueUSD <= 0 {
		minValueUSD = DefaultMinTradeValueUSD
	}
	if window <= 0 {
		window = DefaultSearchWindow
	}
	return &Collector{
		source:      source,
		events:      events,
		minValueUSD: minValueUSD,
		window:      window,
		logger:      logger,
	}
}

// Collect searches news around each enriched trade whose inbound value
// meets the threshold and upserts the findings. A search failure for
// one trade is logged and skipped. Returns the number of events
// written.
func (c *Collector) Collect(ctx context.Context, trades []*domain.Trade) (int, error) {
	written := 0

	for _, t := range trades {
		if !significant(t, c.minValueUSD) {
			continue
		}

		currencies := tradeCurrencies(t)
		if len(currencies) == 0 {
			continue
		}

		tradeTime := time.UnixMilli(t.Timestamp).UTC()
		articles, err := c.source.Search(ctx, currencies, tradeTime.Add(-c.window), tradeTime.Add(c.window))
		if err != nil {
			c.logger.WithField("tx_hash", t.TxHash).WithError(err).Warn("news search failed")
			continue
		}
		if len(articles) == 0 {
			continue
		}

		events := make([]*domain.RelatedEvent, 0, len(articles))
		for _, a := range articles {
			events = append(events, articleToEvent(a))
		}

		n, err := c.events.Upsert(ctx, events)
		if err != nil {
			c.logger.WithField("tx_hash", t.TxHash).WithError(err).Warn("persist events failed")
			continue
		}
		written += n
	}

	return written, nil
}

// significant reports whether the trade's inbound USD value meets the
// collection threshold. Unpriced trades never qualify.
func significant(t *domain.Trade, minValueUSD float64) bool {
	return t != nil && t.TokenIn.ValueUSD != nil && *t.TokenIn.ValueUSD >= minValueUSD
}

// tradeCurrencies returns the feed currency codes for both legs,
// deduplicated, with wrapped tickers unaliased.
func tradeCurrencies(t *domain.Trade) []string {
	var codes []string
	seen := make(map[string]bool)

	for _, symbol := range []string{t.TokenIn.Symbol, t.TokenOut.Symbol} {
		code := strings.ToUpper(symbol)
		if alias, ok := symbolAliases[code]; ok {
			code = alias
		}
		if code == "" || code == "UNKNOWN" || seen[code] {
			continue
		}
		seen[code] = true
		codes = append(codes, code)
	}

	return codes
}

// articleToEvent maps a feed article to a related event. Direct news
// posts carry more weight than aggregated media.
func articleToEvent(a news.Article) *domain.RelatedEvent {
	confidence := 0.5
	if a.Kind == "news" {
		confidence = 0.8
	}

	return &domain.RelatedEvent{
		Timestamp:  a.PublishedAt.UnixMilli(),
		Source:     a.Source,
		Title:      a.Title,
		URL:        a.URL,
		Summary:    a.Title,
		Confidence: confidence,
	}
}
