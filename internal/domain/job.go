package domain

// JobStatus is the lifecycle state of a collection job.
type JobStatus string

// Job lifecycle: queued → processing → completed | failed.
const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// JobProgress accumulates per-window counts for a running job.
// LastProcessedDate is the resumption checkpoint: reprocessing resumes
// from this window end. Zero means no window has completed yet.
type JobProgress struct {
	TradesCollected   int
	TradesProcessed   int
	TradesEnriched    int
	EventsCollected   int
	LastProcessedDate int64 // Unix timestamp in milliseconds
}

// CollectionJob tracks one orchestrator run for an address over a date range.
type CollectionJob struct {
	ID        string
	Address   string
	StartDate int64 // Unix timestamp in milliseconds
	EndDate   int64
	Status    JobStatus
	Progress  JobProgress
	Error     string
	CreatedAt int64
	UpdatedAt int64
}

// Terminal reports whether the job has reached a final state.
func (j *CollectionJob) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
