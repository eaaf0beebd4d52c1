package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dex-wallet-tracker/internal/domain"
	"dex-wallet-tracker/internal/storage"
	"dex-wallet-tracker/internal/storage/postgres"
)

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

func TestTradeStore_UpsertAndGetByWallet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewTradeStore(pool, 30*24*time.Hour)
	ctx := context.Background()

	stats, err := store.Upsert(ctx, []*domain.Trade{makeTrade("0xtx1", 1000), makeTrade("0xtx2", 2000)})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Inserted)
	assert.Equal(t, 0, stats.Updated)

	trades, err := store.GetByWallet(ctx, "0xWALLET", 0, 0)
	require.NoError(t, err)
	require.Len(t, trades, 2)

	assert.Equal(t, "0xtx1", trades[0].TxHash)
	assert.Equal(t, "0xwallet", trades[0].WalletAddress)
	assert.Equal(t, "0xin", trades[0].TokenIn.Address)
	assert.NotZero(t, trades[0].CreatedAt)
	assert.Greater(t, trades[0].ExpiresAt, trades[0].CreatedAt)
}

func TestTradeStore_UpsertPreservesEnrichment(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewTradeStore(pool, 30*24*time.Hour)
	ctx := context.Background()

	_, err := store.Upsert(ctx, []*domain.Trade{makeTrade("0xtx1", 1000)})
	require.NoError(t, err)

	in := domain.TokenAmount{Address: "0xin", Symbol: "WETH", Amount: "1000", PriceUSD: ptr(3000.0), ValueUSD: ptr(1500.0)}
	out := domain.TokenAmount{Address: "0xout", Symbol: "USDC", Amount: "2000", PriceUSD: ptr(1.0), ValueUSD: ptr(1500.0)}
	require.NoError(t, store.MarkEnriched(ctx, "0xtx1", in, out))

	// Re-ingesting the raw trade counts as an update and keeps pricing.
	stats, err := store.Upsert(ctx, []*domain.Trade{makeTrade("0xtx1", 1000)})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Updated)

	trades, err := store.GetByWallet(ctx, "0xwallet", 0, 0)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.True(t, trades[0].IsEnriched)
	require.NotNil(t, trades[0].TokenIn.ValueUSD)
	assert.Equal(t, 1500.0, *trades[0].TokenIn.ValueUSD)
}

func TestTradeStore_GetByWalletRange(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewTradeStore(pool, time.Hour)
	ctx := context.Background()

	_, err := store.Upsert(ctx, []*domain.Trade{
		makeTrade("0xtx1", 1000),
		makeTrade("0xtx2", 2000),
		makeTrade("0xtx3", 3000),
	})
	require.NoError(t, err)

	trades, err := store.GetByWallet(ctx, "0xwallet", 2000, 3000)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "0xtx2", trades[0].TxHash)
}

func TestTradeStore_GetUnenrichedAndMark(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewTradeStore(pool, time.Hour)
	ctx := context.Background()

	_, err := store.Upsert(ctx, []*domain.Trade{
		makeTrade("0xtx1", 1000),
		makeTrade("0xtx2", 2000),
	})
	require.NoError(t, err)

	pending, err := store.GetUnenriched(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	// Newest first.
	assert.Equal(t, "0xtx2", pending[0].TxHash)

	in := domain.TokenAmount{Address: "0xin", Symbol: "WETH", Amount: "1000", PriceUSD: ptr(1.0), ValueUSD: ptr(1.0)}
	out := domain.TokenAmount{Address: "0xout", Symbol: "USDC", Amount: "2000", PriceUSD: ptr(1.0), ValueUSD: ptr(1.0)}
	require.NoError(t, store.MarkEnriched(ctx, "0xtx2", in, out))

	pending, err = store.GetUnenriched(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "0xtx1", pending[0].TxHash)

	err = store.MarkEnriched(ctx, "0xmissing", in, out)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTradeStore_PurgeExpired(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewTradeStore(pool, time.Hour)
	ctx := context.Background()

	_, err := store.Upsert(ctx, []*domain.Trade{makeTrade("0xtx1", 1000)})
	require.NoError(t, err)

	purged, err := store.PurgeExpired(ctx, time.Now().Add(-time.Minute).UnixMilli())
	require.NoError(t, err)
	assert.Equal(t, 0, purged)

	purged, err = store.PurgeExpired(ctx, time.Now().Add(2*time.Hour).UnixMilli())
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	trades, err := store.GetByWallet(ctx, "0xwallet", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, trades)
}
