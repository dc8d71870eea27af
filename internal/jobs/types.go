package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/daily-balance/internal/ledger"
)

// ErrJobNotFound is returned by stores for unknown job IDs.
var ErrJobNotFound = errors.New("job not found")

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

// Endpoint names where a job reads its extract or writes its table.
// Kind is "object" (URI required) or "bigquery".
type Endpoint struct {
	Kind string `json:"kind"`
	URI  string `json:"uri,omitempty"`
}

// ReconcileJob is one asynchronous daily balance reconciliation.
type ReconcileJob struct {
	JobID  string   `json:"job_id"`
	Source Endpoint `json:"source"`
	Sink   Endpoint `json:"sink"`

	// RunID is the run recorded by the run repository, once started.
	RunID string `json:"run_id,omitempty"`

	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`

	// Summary is filled when the run produced a result.
	Summary     *ledger.Summary     `json:"summary,omitempty"`
	Diagnostics []ledger.Diagnostic `json:"diagnostics,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`
}

// Publisher enqueues reconcile jobs.
type Publisher interface {
	Publish(ctx context.Context, job *ReconcileJob) error
	Close() error
}

// Consumer runs queued jobs through a handler.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes a job. It may record RunID and Summary on the job.
// An error makes the job retry unless it wraps ErrPermanent.
type JobHandler func(ctx context.Context, job *ReconcileJob) error

// ErrPermanent marks handler errors that retrying cannot fix, such as a
// malformed extract.
var ErrPermanent = errors.New("permanent failure")

// Permanent wraps err so the queue does not retry it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() []error { return []error{e.err, ErrPermanent} }

// JobStore saves and looks up job state.
type JobStore interface {
	SaveJob(ctx context.Context, job *ReconcileJob) error
	GetJob(ctx context.Context, jobID string) (*ReconcileJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*ReconcileJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// RunID filters jobs by run ID.
	RunID string

	// Status filters jobs by status.
	Status JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}
