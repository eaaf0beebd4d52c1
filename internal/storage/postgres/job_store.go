package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"dex-wallet-tracker/internal/domain"
	"dex-wallet-tracker/internal/storage"
)

// JobStore implements storage.JobStore using PostgreSQL.
type JobStore struct {
	pool *Pool
}

// NewJobStore creates a new JobStore.
func NewJobStore(pool *Pool) *JobStore {
	return &JobStore{pool: pool}
}

// Compile-time interface check.
var _ storage.JobStore = (*JobStore)(nil)

// Insert adds a new job. Returns ErrDuplicateKey if the id exists.
func (s *JobStore) Insert(ctx context.Context, job *domain.CollectionJob) error {
	if job == nil || job.ID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO collection_jobs (
			id, address, start_date, end_date, status,
			trades_collected, trades_processed, trades_enriched, events_collected,
			last_processed_date, error, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	nowMs := time.Now().UnixMilli()
	createdMs := job.CreatedAt
	if createdMs == 0 {
		createdMs = nowMs
	}
	updatedMs := job.UpdatedAt
	if updatedMs == 0 {
		updatedMs = nowMs
	}

	_, err := s.pool.Exec(ctx, query,
		job.ID, job.Address, job.StartDate, job.EndDate, string(job.Status),
		job.Progress.TradesCollected, job.Progress.TradesProcessed,
		job.Progress.TradesEnriched, job.Progress.EventsCollected,
		job.Progress.LastProcessedDate, job.Error, createdMs, updatedMs,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert job: %w", err)
	}

	job.CreatedAt = createdMs
	job.UpdatedAt = updatedMs
	return nil
}

// GetByID retrieves a job by id. Returns ErrNotFound if not exists.
func (s *JobStore) GetByID(ctx context.Context, id string) (*domain.CollectionJob, error) {
	query := jobSelect + ` WHERE id = $1`

	row := s.pool.QueryRow(ctx, query, id)
	job, err := scanJob(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get job by id: %w", err)
	}

	return job, nil
}

// GetByAddress retrieves jobs for a wallet address, newest first.
func (s *JobStore) GetByAddress(ctx context.Context, address string) ([]*domain.CollectionJob, error) {
	query := jobSelect + ` WHERE address = $1 ORDER BY created_at DESC, id ASC`

	rows, err := s.pool.Query(ctx, query, address)
	if err != nil {
		return nil, fmt.Errorf("get jobs by address: %w", err)
	}
	defer rows.Close()

	var jobs []*domain.CollectionJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job row: %w", err)
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job rows: %w", err)
	}

	return jobs, nil
}

// Update overwrites status, progress and error for an existing job.
func (s *JobStore) Update(ctx context.Context, job *domain.CollectionJob) error {
	if job == nil || job.ID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		UPDATE collection_jobs SET
			status = $2,
			trades_collected = $3,
			trades_processed = $4,
			trades_enriched = $5,
			events_collected = $6,
			last_processed_date = $7,
			error = $8,
			updated_at = $9
		WHERE id = $1
	`

	nowMs := time.Now().UnixMilli()
	tag, err := s.pool.Exec(ctx, query,
		job.ID, string(job.Status),
		job.Progress.TradesCollected, job.Progress.TradesProcessed,
		job.Progress.TradesEnriched, job.Progress.EventsCollected,
		job.Progress.LastProcessedDate, job.Error, nowMs,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}

	job.UpdatedAt = nowMs
	return nil
}

const jobSelect = `
	SELECT id, address, start_date, end_date, status,
		trades_collected, trades_processed, trades_enriched, events_collected,
		last_processed_date, error, created_at, updated_at
	FROM collection_jobs
`

// scanJob scans one row into a CollectionJob.
func scanJob(row pgx.Row) (*domain.CollectionJob, error) {
	var job domain.CollectionJob
	var status string

	err := row.Scan(
		&job.ID,
		&job.Address,
		&job.StartDate,
		&job.EndDate,
		&status,
		&job.Progress.TradesCollected,
		&job.Progress.TradesProcessed,
		&job.Progress.TradesEnriched,
		&job.Progress.EventsCollected,
		&job.Progress.LastProcessedDate,
		&job.Error,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Status = domain.JobStatus(status)
	return &job, nil
}
