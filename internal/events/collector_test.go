package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"dex-wallet-tracker/internal/domain"
	"dex-wallet-tracker/internal/news"
	"dex-wallet-tracker/internal/storage/memory"
)

type fakeNewsSource struct {
	articles  []news.Article
	err       error
	calls     int
	lastCodes []string
	lastFrom  time.Time
	lastTo    time.Time
}

func (f *fakeNewsSource) Search(_ context.Context, currencies []string, from, to time.Time) ([]news.Article, error) {
	f.calls++
	f.lastCodes = currencies
	f.lastFrom = from
	f.lastTo = to
	return f.articles, f.err
}

func testLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func enrichedTrade(txHash string, valueUSD float64, ts int64) *domain.Trade {
	return &domain.Trade{
		TxHash:        txHash,
		Timestamp:     ts,
		WalletAddress: "0xwallet",
		Dex:           domain.DexUniswapV3,
		TokenIn:       domain.TokenAmount{Address: "0xweth", Symbol: "WETH", Amount: "1", ValueUSD: &valueUSD},
		TokenOut:      domain.TokenAmount{Address: "0xusdc", Symbol: "USDC", Amount: "1"},
		IsEnriched:    true,
	}
}

func TestCollectThresholdAndWindow(t *testing.T) {
	store := memory.NewEventStore(30 * 24 * time.Hour)
	tradeTime := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	source := &fakeNewsSource{articles: []news.Article{
		{Kind: "news", Source: "coindesk.com", Title: "ETH rallies", URL: "https://x/1", PublishedAt: tradeTime.Add(-2 * time.Hour)},
	}}

	collector := NewCollector(source, store, 10000, 24*time.Hour, testLogger())
	written, err := collector.Collect(context.Background(), []*domain.Trade{
		enrichedTrade("0xbig", 15000, tradeTime.UnixMilli()),
		enrichedTrade("0xsmall", 500, tradeTime.UnixMilli()),
	})
	if err != nil {
		t.Fatalf("collect: %v", err)
	}

	if source.calls != 1 {
		t.Fatalf("expected one search (threshold filter), got %d", source.calls)
	}
	if written != 1 {
		t.Fatalf("expected 1 event written, got %d", written)
	}

	if !source.lastFrom.Equal(tradeTime.Add(-24*time.Hour)) || !source.lastTo.Equal(tradeTime.Add(24*time.Hour)) {
		t.Fatalf("unexpected search window: %v .. %v", source.lastFrom, source.lastTo)
	}
}

func TestCollectAliasesSymbols(t *testing.T) {
	store := memory.NewEventStore(30 * 24 * time.Hour)
	source := &fakeNewsSource{}

	collector := NewCollector(source, store, 10000, 24*time.Hour, testLogger())
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC).UnixMilli()
	if _, err := collector.Collect(context.Background(), []*domain.Trade{enrichedTrade("0xtx", 20000, ts)}); err != nil {
		t.Fatalf("collect: %v", err)
	}

	want := []string{"ETH", "USDC"}
	if len(source.lastCodes) != len(want) {
		t.Fatalf("expected codes %v, got %v", want, source.lastCodes)
	}
	for i := range want {
		if source.lastCodes[i] != want[i] {
			t.Fatalf("expected codes %v, got %v", want, source.lastCodes)
		}
	}
}

func TestCollectSkipsUnpricedTrades(t *testing.T) {
	store := memory.NewEventStore(30 * 24 * time.Hour)
	source := &fakeNewsSource{}

	unpriced := enrichedTrade("0xtx", 0, time.Now().UnixMilli())
	unpriced.TokenIn.ValueUSD = nil

	collector := NewCollector(source, store, 10000, 24*time.Hour, testLogger())
	if _, err := collector.Collect(context.Background(), []*domain.Trade{unpriced}); err != nil {
		t.Fatalf("collect: %v", err)
	}

	if source.calls != 0 {
		t.Fatalf("expected no searches for unpriced trade, got %d", source.calls)
	}
}

func TestCollectSearchFailureIsSoft(t *testing.T) {
	store := memory.NewEventStore(30 * 24 * time.Hour)
	source := &fakeNewsSource{err: errors.New("feed down")}

	collector := NewCollector(source, store, 10000, 24*time.Hour, testLogger())
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC).UnixMilli()
	written, err := collector.Collect(context.Background(), []*domain.Trade{enrichedTrade("0xtx", 20000, ts)})
	if err != nil {
		t.Fatalf("expected soft failure, got %v", err)
	}
	if written != 0 {
		t.Fatalf("expected 0 events, got %d", written)
	}
}

func TestCollectDeduplicatesAcrossTrades(t *testing.T) {
	store := memory.NewEventStore(30 * 24 * time.Hour)
	publishedAt := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	source := &fakeNewsSource{articles: []news.Article{
		{Kind: "media", Source: "youtube.com", Title: "ETH analysis", URL: "https://x/2", PublishedAt: publishedAt},
	}}

	collector := NewCollector(source, store, 10000, 24*time.Hour, testLogger())
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC).UnixMilli()
	trades := []*domain.Trade{
		enrichedTrade("0xtx1", 20000, ts),
		enrichedTrade("0xtx2", 30000, ts),
	}
	if _, err := collector.Collect(context.Background(), trades); err != nil {
		t.Fatalf("collect: %v", err)
	}

	// Same article found for both trades collapses to one stored event.
	if store.Count() != 1 {
		t.Fatalf("expected 1 stored event, got %d", store.Count())
	}
}

func TestArticleToEventConfidence(t *testing.T) {
	newsEvent := articleToEvent(news.Article{Kind: "news", Source: "a.com", Title: "t"})
	if newsEvent.Confidence != 0.8 {
		t.Fatalf("expected 0.8 for news, got %v", newsEvent.Confidence)
	}

	mediaEvent := articleToEvent(news.Article{Kind: "media", Source: "a.com", Title: "t"})
	if mediaEvent.Confidence != 0.5 {
		t.Fatalf("expected 0.5 for media, got %v", mediaEvent.Confidence)
	}
}
