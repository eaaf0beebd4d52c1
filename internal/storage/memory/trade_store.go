package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"dex-wallet-tracker/internal/domain"
	"dex-wallet-tracker/internal/storage"
)

// TradeStore is an in-memory implementation of storage.TradeStore.
type TradeStore struct {
	mu        sync.RWMutex
	data      map[string]*domain.Trade // keyed by tx_hash
	retention time.Duration
	now       func() time.Time
}

// NewTradeStore creates a new in-memory trade store with the given
// retention window for TTL expiry.
func NewTradeStore(retention time.Duration) *TradeStore {
	return &TradeStore{
		data:      make(map[string]*domain.Trade),
		retention: retention,
		now:       time.Now,
	}
}

var _ storage.TradeStore = (*TradeStore)(nil)

// Upsert writes trades keyed by tx_hash, normalizing addresses to
// lower-case. Creation time and expiry are set on insert only; pricing
// fields and is_enriched survive updates.
func (s *TradeStore) Upsert(_ context.Context, trades []*domain.Trade) (*storage.UpsertStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := &storage.UpsertStats{}
	nowMs := s.now().UnixMilli()

	for _, t := range trades {
		if t == nil || t.TxHash == "" {
			stats.Failed++
			continue
		}

		cp := *t
		cp.WalletAddress = strings.ToLower(cp.WalletAddress)
		cp.TokenIn.Address = strings.ToLower(cp.TokenIn.Address)
		cp.TokenOut.Address = strings.ToLower(cp.TokenOut.Address)

		if existing, ok := s.data[t.TxHash]; ok {
			cp.CreatedAt = existing.CreatedAt
			cp.ExpiresAt = existing.ExpiresAt
			cp.IsEnriched = existing.IsEnriched
			cp.TokenIn.PriceUSD = existing.TokenIn.PriceUSD
			cp.TokenIn.ValueUSD = existing.TokenIn.ValueUSD
			cp.TokenOut.PriceUSD = existing.TokenOut.PriceUSD
			cp.TokenOut.ValueUSD = existing.TokenOut.ValueUSD
			stats.Updated++
		} else {
			cp.CreatedAt = nowMs
			cp.ExpiresAt = nowMs + s.retention.Milliseconds()
			stats.Inserted++
		}

		s.data[t.TxHash] = &cp
		stats.Stored++
	}

	return stats, nil
}

// GetByWallet retrieves trades for a wallet ordered by timestamp ASC.
func (s *TradeStore) GetByWallet(_ context.Context, wallet string, startMs, endMs int64) ([]*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wallet = strings.ToLower(wallet)

	var result []*domain.Trade
	for _, t := range s.data {
		if t.WalletAddress != wallet {
			continue
		}
		if startMs != 0 && t.Timestamp < startMs {
			continue
		}
		if endMs != 0 && t.Timestamp >= endMs {
			continue
		}
		cp := *t
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Timestamp != result[j].Timestamp {
			return result[i].Timestamp < result[j].Timestamp
		}
		return result[i].TxHash < result[j].TxHash
	})

	return result, nil
}

// GetUnenriched retrieves up to limit unenriched trades, newest first.
func (s *TradeStore) GetUnenriched(_ context.Context, limit int) ([]*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Trade
	for _, t := range s.data {
		if t.IsEnriched {
			continue
		}
		cp := *t
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Timestamp != result[j].Timestamp {
			return result[i].Timestamp > result[j].Timestamp
		}
		return result[i].TxHash < result[j].TxHash
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

// MarkEnriched sets both priced legs and flips is_enriched to true.
func (s *TradeStore) MarkEnriched(_ context.Context, txHash string, tokenIn, tokenOut domain.TokenAmount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.data[txHash]
	if !ok {
		return storage.ErrNotFound
	}

	t.TokenIn.PriceUSD = tokenIn.PriceUSD
	t.TokenIn.ValueUSD = tokenIn.ValueUSD
	t.TokenOut.PriceUSD = tokenOut.PriceUSD
	t.TokenOut.ValueUSD = tokenOut.ValueUSD
	t.IsEnriched = true

	return nil
}

// PurgeExpired deletes trades whose expiry has passed.
func (s *TradeStore) PurgeExpired(_ context.Context, nowMs int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	purged := 0
	for hash, t := range s.data {
		if t.ExpiresAt != 0 && t.ExpiresAt <= nowMs {
			delete(s.data, hash)
			purged++
		}
	}

	return purged, nil
}

// Count returns the number of stored trades. Test helper.
func (s *TradeStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
