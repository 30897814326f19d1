package jobs

import (
	"context"
	"errors"
	"time"
)

// Trigger records what started a batch.
type Trigger string

const (
	TriggerManual   Trigger = "manual"
	TriggerSchedule Trigger = "schedule"
	TriggerAPI      Trigger = "api"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is being retried.
	JobStatusRetrying JobStatus = "retrying"
)

// ErrNoRetry marks a handler error that retrying cannot fix.
var ErrNoRetry = errors.New("not retryable")

// BatchCounts are the per-outcome totals of a finished batch.
type BatchCounts struct {
	Total      int `json:"total"`
	Recorded   int `json:"recorded"`
	Duplicates int `json:"duplicates"`
	Escalated  int `json:"escalated"`
	Skipped    int `json:"skipped"`
	Errors     int `json:"errors"`
}

// BatchJob is one requested batch run.
type BatchJob struct {
	JobID   string    `json:"job_id"`
	Trigger Trigger   `json:"trigger"`
	Status  JobStatus `json:"status"`

	// BatchID is the id of the last batch run for this job.
	BatchID string `json:"batch_id,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`

	Summary *BatchCounts `json:"summary,omitempty"`
}

// Publisher enqueues batch jobs.
type Publisher interface {
	PublishBatch(ctx context.Context, job *BatchJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler runs a job. It may fill job.BatchID and job.Summary. A returned
// error makes the queue retry the job unless it wraps ErrNoRetry.
type JobHandler func(ctx context.Context, job *BatchJob) error

// JobStore defines the interface for storing and retrieving job status.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *BatchJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*BatchJob, error)

	// ListJobs returns matching jobs, newest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*BatchJob, error)

	// UpdateJobStatus updates the status of a job.
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	Status  JobStatus
	Trigger Trigger

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}
