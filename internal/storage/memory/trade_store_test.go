package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"dex-wallet-tracker/internal/domain"
	"dex-wallet-tracker/internal/storage"
)

func usd(v float64) *float64 { return &v }

func makeTrade(txHash string, ts int64) *domain.Trade {
	return &domain.Trade{
		TxHash:        txHash,
		BlockHeight:   100,
		Timestamp:     ts,
		WalletAddress: "0xWallet",
		Dex:           domain.DexUniswapV3,
		TokenIn:       domain.TokenAmount{Address: "0xIn", Symbol: "WETH", Amount: "1000"},
		TokenOut:      domain.TokenAmount{Address: "0xOut", Symbol: "USDC", Amount: "2000"},
	}
}

func TestTradeStore_UpsertAndGet(t *testing.T) {
	store := NewTradeStore(30 * 24 * time.Hour)
	ctx := context.Background()

	stats, err := store.Upsert(ctx, []*domain.Trade{makeTrade("0xtx1", 1000), makeTrade("0xtx2", 2000)})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if stats.Inserted != 2 || stats.Updated != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	trades, err := store.GetByWallet(ctx, "0xWALLET", 0, 0)
	if err != nil {
		t.Fatalf("GetByWallet failed: %v", err)
	}
	if len(trades) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(trades))
	}
	// Ascending by timestamp, addresses normalized.
	if trades[0].TxHash != "0xtx1" || trades[0].WalletAddress != "0xwallet" {
		t.Errorf("unexpected first trade: %+v", trades[0])
	}
	if trades[0].CreatedAt == 0 || trades[0].ExpiresAt <= trades[0].CreatedAt {
		t.Errorf("expected expiry after creation: %+v", trades[0])
	}
}

func TestTradeStore_UpsertPreservesEnrichment(t *testing.T) {
	store := NewTradeStore(30 * 24 * time.Hour)
	ctx := context.Background()

	trade := makeTrade("0xtx1", 1000)
	if _, err := store.Upsert(ctx, []*domain.Trade{trade}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	enrichedIn := trade.TokenIn
	enrichedIn.PriceUSD = usd(1.0)
	enrichedIn.ValueUSD = usd(1500.0)
	enrichedOut := trade.TokenOut
	enrichedOut.PriceUSD = usd(3000.0)
	enrichedOut.ValueUSD = usd(1500.0)
	if err := store.MarkEnriched(ctx, "0xtx1", enrichedIn, enrichedOut); err != nil {
		t.Fatalf("MarkEnriched failed: %v", err)
	}

	// Re-ingesting the raw trade must not wipe pricing.
	if _, err := store.Upsert(ctx, []*domain.Trade{makeTrade("0xtx1", 1000)}); err != nil {
		t.Fatalf("re-Upsert failed: %v", err)
	}

	trades, err := store.GetByWallet(ctx, "0xwallet", 0, 0)
	if err != nil {
		t.Fatalf("GetByWallet failed: %v", err)
	}
	got := trades[0]
	if !got.IsEnriched {
		t.Fatal("expected trade to stay enriched after re-ingestion")
	}
	if got.TokenIn.ValueUSD == nil || *got.TokenIn.ValueUSD != 1500.0 {
		t.Errorf("expected preserved value, got %v", got.TokenIn.ValueUSD)
	}
}

func TestTradeStore_UpsertCountsFailures(t *testing.T) {
	store := NewTradeStore(time.Hour)

	stats, err := store.Upsert(context.Background(), []*domain.Trade{
		makeTrade("0xok", 1000),
		{TxHash: ""},
		nil,
	})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if stats.Stored != 1 || stats.Failed != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestTradeStore_GetByWalletRange(t *testing.T) {
	store := NewTradeStore(time.Hour)
	ctx := context.Background()

	if _, err := store.Upsert(ctx, []*domain.Trade{
		makeTrade("0xtx1", 1000),
		makeTrade("0xtx2", 2000),
		makeTrade("0xtx3", 3000),
	}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	// End bound is exclusive.
	trades, err := store.GetByWallet(ctx, "0xwallet", 2000, 3000)
	if err != nil {
		t.Fatalf("GetByWallet failed: %v", err)
	}
	if len(trades) != 1 || trades[0].TxHash != "0xtx2" {
		t.Fatalf("expected only 0xtx2, got %d trades", len(trades))
	}
}

func TestTradeStore_GetUnenriched(t *testing.T) {
	store := NewTradeStore(time.Hour)
	ctx := context.Background()

	if _, err := store.Upsert(ctx, []*domain.Trade{
		makeTrade("0xtx1", 1000),
		makeTrade("0xtx2", 2000),
		makeTrade("0xtx3", 3000),
	}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	if err := store.MarkEnriched(ctx, "0xtx2", domain.TokenAmount{PriceUSD: usd(1), ValueUSD: usd(1)}, domain.TokenAmount{PriceUSD: usd(1), ValueUSD: usd(1)}); err != nil {
		t.Fatalf("MarkEnriched failed: %v", err)
	}

	pending, err := store.GetUnenriched(ctx, 10)
	if err != nil {
		t.Fatalf("GetUnenriched failed: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending, got %d", len(pending))
	}
	// Newest first.
	if pending[0].TxHash != "0xtx3" || pending[1].TxHash != "0xtx1" {
		t.Fatalf("unexpected order: %s, %s", pending[0].TxHash, pending[1].TxHash)
	}

	limited, err := store.GetUnenriched(ctx, 1)
	if err != nil {
		t.Fatalf("GetUnenriched failed: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected limit to apply, got %d", len(limited))
	}
}

func TestTradeStore_MarkEnrichedNotFound(t *testing.T) {
	store := NewTradeStore(time.Hour)

	err := store.MarkEnriched(context.Background(), "0xmissing", domain.TokenAmount{}, domain.TokenAmount{})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTradeStore_PurgeExpired(t *testing.T) {
	store := NewTradeStore(time.Hour)
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }

	if _, err := store.Upsert(ctx, []*domain.Trade{makeTrade("0xtx1", 1000)}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	purged, err := store.PurgeExpired(ctx, base.Add(30*time.Minute).UnixMilli())
	if err != nil {
		t.Fatalf("PurgeExpired failed: %v", err)
	}
	if purged != 0 || store.Count() != 1 {
		t.Fatalf("expected nothing purged before expiry, purged=%d", purged)
	}

	purged, err = store.PurgeExpired(ctx, base.Add(2*time.Hour).UnixMilli())
	if err != nil {
		t.Fatalf("PurgeExpired failed: %v", err)
	}
	if purged != 1 || store.Count() != 0 {
		t.Fatalf("expected 1 purged after expiry, purged=%d count=%d", purged, store.Count())
	}
}
