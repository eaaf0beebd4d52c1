package storage

import (
	"context"

	"dex-wallet-tracker/internal/domain"
)

// UpsertStats reports the outcome of a bulk trade upsert.
type UpsertStats struct {
	Stored   int // inserted + updated
	Inserted int
	Updated  int
	Failed   int
}

// TradeStore provides access to dex_trades storage. Trades are keyed by
// tx_hash; writes are upserts, so re-ingestion of the same hash
// overwrites fields instead of duplicating rows.
type TradeStore interface {
	// Upsert writes trades one upsert per trade (unordered: one failing
	// write does not block others). Wallet and token addresses are
	// lower-cased before write; creation time and expiry are set on
	// insert only. Pricing fields and the enriched flag are preserved
	// on update.
	Upsert(ctx context.Context, trades []*domain.Trade) (*UpsertStats, error)

	// GetByWallet retrieves trades for a wallet ordered by timestamp ASC.
	// startMs/endMs bound the range when non-zero (endMs exclusive).
	GetByWallet(ctx context.Context, wallet string, startMs, endMs int64) ([]*domain.Trade, error)

	// GetUnenriched retrieves up to limit unenriched trades, newest first.
	GetUnenriched(ctx context.Context, limit int) ([]*domain.Trade, error)

	// MarkEnriched sets both priced legs and flips is_enriched to true.
	// Returns ErrNotFound if the trade does not exist.
	MarkEnriched(ctx context.Context, txHash string, tokenIn, tokenOut domain.TokenAmount) error

	// PurgeExpired deletes trades whose expiry has passed. Returns the
	// number of rows removed.
	PurgeExpired(ctx context.Context, nowMs int64) (int, error)
}

// EventStore provides access to related_events storage. Events are
// deduplicated by the composite (source, title, timestamp).
type EventStore interface {
	// Upsert writes events by composite key, refreshing fields on
	// conflict. Returns the number of events written.
	Upsert(ctx context.Context, events []*domain.RelatedEvent) (int, error)

	// GetByTimeRange retrieves events with timestamp in [startMs, endMs],
	// ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, startMs, endMs int64) ([]*domain.RelatedEvent, error)

	// PurgeExpired deletes events whose expiry has passed.
	PurgeExpired(ctx context.Context, nowMs int64) (int, error)
}

// JobStore provides access to collection_jobs storage.
type JobStore interface {
	// Insert adds a new job. Returns ErrDuplicateKey if the id exists.
	Insert(ctx context.Context, job *domain.CollectionJob) error

	// GetByID retrieves a job by id. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.CollectionJob, error)

	// GetByAddress retrieves jobs for a wallet address, newest first.
	GetByAddress(ctx context.Context, address string) ([]*domain.CollectionJob, error)

	// Update overwrites status, progress and error for an existing job.
	// Returns ErrNotFound if the job does not exist.
	Update(ctx context.Context, job *domain.CollectionJob) error
}

// PricePointStore archives resolved daily token prices.
type PricePointStore interface {
	// InsertBulk appends price points. Duplicate (token, day) points are
	// tolerated; the analytics engine deduplicates on read.
	InsertBulk(ctx context.Context, points []*domain.PricePoint) error

	// GetByToken retrieves all points for a token, ordered by day ASC.
	GetByToken(ctx context.Context, tokenAddress string) ([]*domain.PricePoint, error)
}
