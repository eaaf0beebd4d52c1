package clickhouse

import (
	"context"
	"fmt"

	"dex-wallet-tracker/internal/domain"
	"dex-wallet-tracker/internal/storage"
)

// PricePointStore implements storage.PricePointStore using ClickHouse.
// The backing table is a ReplacingMergeTree keyed by (token, day), so
// repeated archiving of the same price point collapses on merge.
type PricePointStore struct {
	conn *Conn
}

// NewPricePointStore creates a new PricePointStore.
func NewPricePointStore(conn *Conn) *PricePointStore {
	return &PricePointStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PricePointStore = (*PricePointStore)(nil)

// InsertBulk appends price points.
func (s *PricePointStore) InsertBulk(ctx context.Context, points []*domain.PricePoint) error {
	if len(points) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO price_points (token_address, day, price_usd, fetched_at)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		err = batch.Append(p.TokenAddress, p.Day, p.PriceUSD, uint64(p.FetchedAt))
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByToken retrieves all points for a token, ordered by day ASC.
func (s *PricePointStore) GetByToken(ctx context.Context, tokenAddress string) ([]*domain.PricePoint, error) {
	query := `
		SELECT token_address, day, price_usd, fetched_at
		FROM price_points FINAL
		WHERE token_address = ?
		ORDER BY day ASC
	`

	rows, err := s.conn.Query(ctx, query, tokenAddress)
	if err != nil {
		return nil, fmt.Errorf("query price points by token: %w", err)
	}
	defer rows.Close()

	var points []*domain.PricePoint
	for rows.Next() {
		var p domain.PricePoint
		var fetchedAt uint64

		if err := rows.Scan(&p.TokenAddress, &p.Day, &p.PriceUSD, &fetchedAt); err != nil {
			return nil, fmt.Errorf("scan price point row: %w", err)
		}
		p.FetchedAt = int64(fetchedAt)

		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price point rows: %w", err)
	}

	return points, nil
}
