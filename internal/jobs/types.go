package jobs

import (
	"context"
	"errors"
	"time"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeCheckBills represents one end-to-end bills reconciliation run.
	JobTypeCheckBills JobType = "check_bills"
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
	// JobStatusFailed indicates the job failed. Failed runs are not
	// retried; the next scheduled trigger starts a fresh run.
	JobStatusFailed JobStatus = "failed"
)

// ErrRunInFlight is returned when a run is published while another is still
// executing. The scheduler treats it as "skip this trigger": runs never
// overlap and never queue up behind each other.
var ErrRunInFlight = errors.New("a bills run is already in flight")

// CheckBillsJob represents one scheduled reconciliation run.
type CheckBillsJob struct {
	// JobID is the unique identifier for this run.
	JobID string `json:"job_id"`

	// Status is the current status of the run.
	Status JobStatus `json:"status"`

	// CreatedAt is when the run was triggered.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt is when the run started executing.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the run finished (success or failure).
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the run failed.
	Error string `json:"error,omitempty"`
}

// Job is a generic interface for all job types.
type Job interface {
	// GetID returns the unique job identifier.
	GetID() string

	// GetType returns the job type.
	GetType() JobType

	// GetStatus returns the current job status.
	GetStatus() JobStatus
}

// GetID implements the Job interface.
func (j *CheckBillsJob) GetID() string {
	return j.JobID
}

// GetType implements the Job interface.
func (j *CheckBillsJob) GetType() JobType {
	return JobTypeCheckBills
}

// GetStatus implements the Job interface.
func (j *CheckBillsJob) GetStatus() JobStatus {
	return j.Status
}

// Publisher defines the interface for triggering runs.
type Publisher interface {
	// PublishCheckBills hands a run to the worker. It never blocks:
	// ErrRunInFlight is returned when the worker is busy.
	PublishCheckBills(ctx context.Context, job *CheckBillsJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for executing published runs.
type Consumer interface {
	// Start begins consuming runs. The handler is called for each run.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming and waits for an in-flight run to complete.
	Stop(ctx context.Context) error
}

// JobHandler is a function that executes a run. A returned error marks the
// run failed; it is not retried.
type JobHandler func(ctx context.Context, job Job) error

// RunStore defines the interface for recording run outcomes, so the
// worker's history survives within a process lifetime.
type RunStore interface {
	// SaveJob saves or updates a run's state.
	SaveJob(ctx context.Context, job *CheckBillsJob) error

	// GetJob retrieves a run by ID.
	GetJob(ctx context.Context, jobID string) (*CheckBillsJob, error)

	// ListJobs retrieves runs with optional filtering.
	ListJobs(ctx context.Context, filter JobFilter) ([]*CheckBillsJob, error)
}

// JobFilter defines filtering criteria for listing runs.
type JobFilter struct {
	// Status filters runs by status.
	Status JobStatus

	// Limit limits the number of results.
	Limit int
}
