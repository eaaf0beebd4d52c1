package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"dex-wallet-tracker/internal/domain"
	"dex-wallet-tracker/internal/storage"
)

// EventStore implements storage.EventStore using PostgreSQL.
type EventStore struct {
	pool      *Pool
	retention time.Duration
}

// NewEventStore creates a new EventStore with the given retention window.
func NewEventStore(pool *Pool, retention time.Duration) *EventStore {
	return &EventStore{pool: pool, retention: retention}
}

// Compile-time interface check.
var _ storage.EventStore = (*EventStore)(nil)

// Upsert writes events by (source, title, timestamp), refreshing url,
// summary and confidence on conflict.
func (s *EventStore) Upsert(ctx context.Context, events []*domain.RelatedEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO related_events (
			timestamp, source, title, url, summary, confidence, created_at, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (source, title, timestamp) DO UPDATE SET
			url = EXCLUDED.url,
			summary = EXCLUDED.summary,
			confidence = EXCLUDED.confidence
		RETURNING id
	`

	nowMs := time.Now().UnixMilli()
	expiresMs := nowMs + s.retention.Milliseconds()
	written := 0

	for _, e := range events {
		if e == nil || e.Source == "" || e.Title == "" {
			return written, storage.ErrInvalidInput
		}

		var id int64
		err := s.pool.QueryRow(ctx, query,
			e.Timestamp, e.Source, e.Title, e.URL, e.Summary, e.Confidence,
			nowMs, expiresMs,
		).Scan(&id)
		if err != nil {
			return written, fmt.Errorf("upsert event %q: %w", e.Title, err)
		}

		e.ID = id
		written++
	}

	return written, nil
}

// GetByTimeRange retrieves events with timestamp in [startMs, endMs],
// ordered by timestamp ASC.
func (s *EventStore) GetByTimeRange(ctx context.Context, startMs, endMs int64) ([]*domain.RelatedEvent, error) {
	query := `
		SELECT id, timestamp, source, title, url, summary, confidence, created_at, expires_at
		FROM related_events
		WHERE timestamp >= $1 AND timestamp <= $2
		ORDER BY timestamp ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, startMs, endMs)
	if err != nil {
		return nil, fmt.Errorf("get events by time range: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// PurgeExpired deletes events whose expiry has passed.
func (s *EventStore) PurgeExpired(ctx context.Context, nowMs int64) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM related_events WHERE expires_at <= $1`, nowMs)
	if err != nil {
		return 0, fmt.Errorf("purge expired events: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// scanEvents scans multiple rows into a slice of RelatedEvent.
func scanEvents(rows pgx.Rows) ([]*domain.RelatedEvent, error) {
	var events []*domain.RelatedEvent

	for rows.Next() {
		var e domain.RelatedEvent

		err := rows.Scan(
			&e.ID,
			&e.Timestamp,
			&e.Source,
			&e.Title,
			&e.URL,
			&e.Summary,
			&e.Confidence,
			&e.CreatedAt,
			&e.ExpiresAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}

		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event rows: %w", err)
	}

	return events, nil
}
