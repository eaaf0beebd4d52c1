package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"dex-wallet-tracker/internal/domain"
	"dex-wallet-tracker/internal/storage"
)

// JobStore is an in-memory implementation of storage.JobStore.
type JobStore struct {
	mu   sync.RWMutex
	data map[string]*domain.CollectionJob
	now  func() time.Time
}

// NewJobStore creates a new in-memory job store.
func NewJobStore() *JobStore {
	return &JobStore{
		data: make(map[string]*domain.CollectionJob),
		now:  time.Now,
	}
}

var _ storage.JobStore = (*JobStore)(nil)

// Insert adds a new job. Returns ErrDuplicateKey if the id exists.
func (s *JobStore) Insert(_ context.Context, job *domain.CollectionJob) error {
	if job == nil || job.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[job.ID]; exists {
		return storage.ErrDuplicateKey
	}

	cp := *job
	nowMs := s.now().UnixMilli()
	if cp.CreatedAt == 0 {
		cp.CreatedAt = nowMs
	}
	if cp.UpdatedAt == 0 {
		cp.UpdatedAt = nowMs
	}
	s.data[job.ID] = &cp

	// Reflect store-assigned timestamps back to the caller.
	job.CreatedAt = cp.CreatedAt
	job.UpdatedAt = cp.UpdatedAt

	return nil
}

// GetByID retrieves a job by id. Returns ErrNotFound if not exists.
func (s *JobStore) GetByID(_ context.Context, id string) (*domain.CollectionJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.data[id]
	if !ok {
		return nil, storage.ErrNotFound
	}

	cp := *job
	return &cp, nil
}

// GetByAddress retrieves jobs for a wallet address, newest first.
func (s *JobStore) GetByAddress(_ context.Context, address string) ([]*domain.CollectionJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.CollectionJob
	for _, job := range s.data {
		if job.Address == address {
			cp := *job
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt > result[j].CreatedAt
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// Update overwrites status, progress and error for an existing job.
func (s *JobStore) Update(_ context.Context, job *domain.CollectionJob) error {
	if job == nil || job.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.data[job.ID]
	if !ok {
		return storage.ErrNotFound
	}

	existing.Status = job.Status
	existing.Progress = job.Progress
	existing.Error = job.Error
	existing.UpdatedAt = s.now().UnixMilli()
	job.UpdatedAt = existing.UpdatedAt

	return nil
}
