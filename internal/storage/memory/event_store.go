package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"dex-wallet-tracker/internal/domain"
	"dex-wallet-tracker/internal/storage"
)

// EventStore is an in-memory implementation of storage.EventStore.
type EventStore struct {
	mu        sync.RWMutex
	data      map[string]*domain.RelatedEvent // keyed by composite key
	nextID    int64
	retention time.Duration
	now       func() time.Time
}

// NewEventStore creates a new in-memory event store.
func NewEventStore(retention time.Duration) *EventStore {
	return &EventStore{
		data:      make(map[string]*domain.RelatedEvent),
		nextID:    1,
		retention: retention,
		now:       time.Now,
	}
}

var _ storage.EventStore = (*EventStore)(nil)

// eventKey generates the dedup key for an event.
func eventKey(source, title string, timestamp int64) string {
	return fmt.Sprintf("%s|%s|%d", source, title, timestamp)
}

// Upsert writes events by (source, title, timestamp), refreshing fields
// on conflict.
func (s *EventStore) Upsert(_ context.Context, events []*domain.RelatedEvent) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nowMs := s.now().UnixMilli()
	written := 0

	for _, e := range events {
		if e == nil || e.Source == "" || e.Title == "" {
			return written, storage.ErrInvalidInput
		}

		key := eventKey(e.Source, e.Title, e.Timestamp)
		cp := *e

		if existing, ok := s.data[key]; ok {
			cp.ID = existing.ID
			cp.CreatedAt = existing.CreatedAt
			cp.ExpiresAt = existing.ExpiresAt
		} else {
			cp.ID = s.nextID
			s.nextID++
			cp.CreatedAt = nowMs
			cp.ExpiresAt = nowMs + s.retention.Milliseconds()
		}

		s.data[key] = &cp
		written++
	}

	return written, nil
}

// GetByTimeRange retrieves events with timestamp in [startMs, endMs],
// ordered by timestamp ASC.
func (s *EventStore) GetByTimeRange(_ context.Context, startMs, endMs int64) ([]*domain.RelatedEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RelatedEvent
	for _, e := range s.data {
		if e.Timestamp >= startMs && e.Timestamp <= endMs {
			cp := *e
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Timestamp != result[j].Timestamp {
			return result[i].Timestamp < result[j].Timestamp
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// PurgeExpired deletes events whose expiry has passed.
func (s *EventStore) PurgeExpired(_ context.Context, nowMs int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	purged := 0
	for key, e := range s.data {
		if e.ExpiresAt != 0 && e.ExpiresAt <= nowMs {
			delete(s.data, key)
			purged++
		}
	}

	return purged, nil
}

// Count returns the number of stored events. Test helper.
func (s *EventStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
