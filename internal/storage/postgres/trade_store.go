package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"dex-wallet-tracker/internal/domain"
	"dex-wallet-tracker/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL.
type TradeStore struct {
	pool      *Pool
	retention time.Duration
}

// NewTradeStore creates a new TradeStore with the given retention window.
func NewTradeStore(pool *Pool, retention time.Duration) *TradeStore {
	return &TradeStore{pool: pool, retention: retention}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

const tradeColumns = `
	tx_hash, block_height, timestamp, wallet_address, dex,
	token_in_address, token_in_symbol, token_in_amount, token_in_price_usd, token_in_value_usd,
	token_out_address, token_out_symbol, token_out_amount, token_out_price_usd, token_out_value_usd,
	is_enriched, created_at, expires_at
`

// Upsert writes trades one statement per trade so that a failing write
// does not block the rest of the batch. Structural fields are
// overwritten on conflict; pricing fields, is_enriched, created_at and
// expires_at are preserved.
func (s *TradeStore) Upsert(ctx context.Context, trades []*domain.Trade) (*storage.UpsertStats, error) {
	stats := &storage.UpsertStats{}
	if len(trades) == 0 {
		return stats, nil
	}

	query := `
		INSERT INTO dex_trades (
			tx_hash, block_height, timestamp, wallet_address, dex,
			token_in_address, token_in_symbol, token_in_amount,
			token_out_address, token_out_symbol, token_out_amount,
			is_enriched, created_at, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, false, $12, $13)
		ON CONFLICT (tx_hash) DO UPDATE SET
			block_height = EXCLUDED.block_height,
			timestamp = EXCLUDED.timestamp,
			wallet_address = EXCLUDED.wallet_address,
			dex = EXCLUDED.dex,
			token_in_address = EXCLUDED.token_in_address,
			token_in_symbol = EXCLUDED.token_in_symbol,
			token_in_amount = EXCLUDED.token_in_amount,
			token_out_address = EXCLUDED.token_out_address,
			token_out_symbol = EXCLUDED.token_out_symbol,
			token_out_amount = EXCLUDED.token_out_amount
		RETURNING (xmax = 0) AS inserted
	`

	nowMs := time.Now().UnixMilli()
	expiresMs := nowMs + s.retention.Milliseconds()

	for _, t := range trades {
		if t == nil || t.TxHash == "" {
			stats.Failed++
			continue
		}

		var inserted bool
		err := s.pool.QueryRow(ctx, query,
			t.TxHash,
			t.BlockHeight,
			t.Timestamp,
			strings.ToLower(t.WalletAddress),
			t.Dex,
			strings.ToLower(t.TokenIn.Address),
			t.TokenIn.Symbol,
			t.TokenIn.Amount,
			strings.ToLower(t.TokenOut.Address),
			t.TokenOut.Symbol,
			t.TokenOut.Amount,
			nowMs,
			expiresMs,
		).Scan(&inserted)
		if err != nil {
			stats.Failed++
			continue
		}

		if inserted {
			stats.Inserted++
		} else {
			stats.Updated++
		}
		stats.Stored++
	}

	return stats, nil
}

// GetByWallet retrieves trades for a wallet ordered by timestamp ASC.
// startMs/endMs bound the range when non-zero (endMs exclusive).
func (s *TradeStore) GetByWallet(ctx context.Context, wallet string, startMs, endMs int64) ([]*domain.Trade, error) {
	query := `SELECT ` + tradeColumns + `
		FROM dex_trades
		WHERE wallet_address = $1
		  AND ($2::bigint = 0 OR timestamp >= $2)
		  AND ($3::bigint = 0 OR timestamp < $3)
		ORDER BY timestamp ASC, tx_hash ASC
	`

	rows, err := s.pool.Query(ctx, query, strings.ToLower(wallet), startMs, endMs)
	if err != nil {
		return nil, fmt.Errorf("get trades by wallet: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// GetUnenriched retrieves up to limit unenriched trades, newest first.
// A non-positive limit means no limit.
func (s *TradeStore) GetUnenriched(ctx context.Context, limit int) ([]*domain.Trade, error) {
	query := `SELECT ` + tradeColumns + `
		FROM dex_trades
		WHERE NOT is_enriched
		ORDER BY timestamp DESC, tx_hash ASC
		LIMIT NULLIF(GREATEST($1::bigint, 0), 0)
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("get unenriched trades: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// MarkEnriched sets both priced legs and flips is_enriched to true.
func (s *TradeStore) MarkEnriched(ctx context.Context, txHash string, tokenIn, tokenOut domain.TokenAmount) error {
	query := `
		UPDATE dex_trades SET
			token_in_price_usd = $2,
			token_in_value_usd = $3,
			token_out_price_usd = $4,
			token_out_value_usd = $5,
			is_enriched = true
		WHERE tx_hash = $1
	`

	tag, err := s.pool.Exec(ctx, query,
		txHash,
		tokenIn.PriceUSD, tokenIn.ValueUSD,
		tokenOut.PriceUSD, tokenOut.ValueUSD,
	)
	if err != nil {
		return fmt.Errorf("mark trade enriched: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}

	return nil
}

// PurgeExpired deletes trades whose expiry has passed.
func (s *TradeStore) PurgeExpired(ctx context.Context, nowMs int64) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM dex_trades WHERE expires_at <= $1`, nowMs)
	if err != nil {
		return 0, fmt.Errorf("purge expired trades: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// scanTrades scans multiple rows into a slice of Trade.
func scanTrades(rows pgx.Rows) ([]*domain.Trade, error) {
	var trades []*domain.Trade

	for rows.Next() {
		var t domain.Trade

		err := rows.Scan(
			&t.TxHash,
			&t.BlockHeight,
			&t.Timestamp,
			&t.WalletAddress,
			&t.Dex,
			&t.TokenIn.Address,
			&t.TokenIn.Symbol,
			&t.TokenIn.Amount,
			&t.TokenIn.PriceUSD,
			&t.TokenIn.ValueUSD,
			&t.TokenOut.Address,
			&t.TokenOut.Symbol,
			&t.TokenOut.Amount,
			&t.TokenOut.PriceUSD,
			&t.TokenOut.ValueUSD,
			&t.IsEnriched,
			&t.CreatedAt,
			&t.ExpiresAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}

		trades = append(trades, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}

	return trades, nil
}
