package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/daily-balance/internal/logger"
)

// maxErrorMessageLen caps the stored error text.
const maxErrorMessageLen = 2000

// StartRunWithClient inserts a new row into the runs table with status=RUNNING
// and returns the generated run_id.
func StartRunWithClient(ctx context.Context, client *bigquery.Client, tables Tables, source string) (string, error) {
	runID := uuid.NewString()

	q := client.Query(fmt.Sprintf(`
		INSERT %s (
			run_id,
			source,
			started_ts,
			status
		)
		VALUES (
			@run_id,
			@source,
			@started_ts,
			@status
		)
	`, tables.ref(tables.Runs)))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "run_id", Value: runID},
		{Name: "source", Value: source},
		{Name: "started_ts", Value: time.Now()},
		{Name: "status", Value: RunStatusRunning},
	}

	if err := runAndWait(ctx, q); err != nil {
		return "", fmt.Errorf("StartRun: %w", err)
	}
	return runID, nil
}

// MarkRunSucceededWithClient sets status=SUCCESS, finished_ts and the row counts.
func MarkRunSucceededWithClient(ctx context.Context, client *bigquery.Client, tables Tables, runID string, rowsIn, rowsOut int) error {
	q := client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @status,
		    finished_ts = @finished_ts,
		    rows_in = @rows_in,
		    rows_out = @rows_out,
		    error_message = ""
		WHERE run_id = @run_id
	`, tables.ref(tables.Runs)))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: RunStatusSuccess},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "rows_in", Value: int64(rowsIn)},
		{Name: "rows_out", Value: int64(rowsOut)},
		{Name: "run_id", Value: runID},
	}

	if err := runAndWait(ctx, q); err != nil {
		return fmt.Errorf("MarkRunSucceeded: %w", err)
	}
	return nil
}

// MarkRunFailedWithClient sets status=FAILED, finished_ts and error_message.
// Failures are logged, never returned, so the original error stays the one reported.
func MarkRunFailedWithClient(ctx context.Context, client *bigquery.Client, tables Tables, runID string, runErr error) {
	log := logger.FromContext(ctx)

	q := client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @status,
		    finished_ts = @finished_ts,
		    error_message = @error_message
		WHERE run_id = @run_id
	`, tables.ref(tables.Runs)))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: RunStatusFailed},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "error_message", Value: truncateError(runErr)},
		{Name: "run_id", Value: runID},
	}

	if err := runAndWait(ctx, q); err != nil {
		log.Error().
			Err(err).
			Str("run_id", runID).
			Msg("MarkRunFailed: update failed")
	}
}

func truncateError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) > maxErrorMessageLen {
		msg = msg[:maxErrorMessageLen]
	}
	return msg
}

func runAndWait(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}

// GetRunWithClient reads one run by id.
func GetRunWithClient(ctx context.Context, client *bigquery.Client, tables Tables, runID string) (*ReconciliationRunRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT run_id, source, started_ts, finished_ts, status, error_message, rows_in, rows_out
		FROM %s
		WHERE run_id = @run_id
		LIMIT 1
	`, tables.ref(tables.Runs)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "run_id", Value: runID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetRun: query read: %w", err)
	}

	var row ReconciliationRunRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, fmt.Errorf("GetRun: %s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("GetRun: reading row: %w", err)
	}
	return &row, nil
}
