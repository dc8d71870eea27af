package bigquery

import (
	"errors"
	"time"

	"cloud.google.com/go/bigquery"
)

// Run statuses.
const (
	RunStatusRunning = "RUNNING"
	RunStatusSuccess = "SUCCESS"
	RunStatusFailed  = "FAILED"
)

// ErrRunNotFound is returned by GetRun for unknown run IDs.
var ErrRunNotFound = errors.New("run not found")

type ReconciliationRunRow struct {
	RunID  string `bigquery:"run_id" json:"run_id"` // REQUIRED
	Source string `bigquery:"source" json:"source"` // REQUIRED

	StartedTS  time.Time              `bigquery:"started_ts" json:"started_ts"`   // REQUIRED
	FinishedTS bigquery.NullTimestamp `bigquery:"finished_ts" json:"finished_ts"` // NULLABLE

	Status       string              `bigquery:"status" json:"status"`               // REQUIRED
	ErrorMessage bigquery.NullString `bigquery:"error_message" json:"error_message"` // NULLABLE

	RowsIn  bigquery.NullInt64 `bigquery:"rows_in" json:"rows_in"`   // NULLABLE
	RowsOut bigquery.NullInt64 `bigquery:"rows_out" json:"rows_out"` // NULLABLE
}
