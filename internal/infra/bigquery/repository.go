package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/option"

	"github.com/dvloznov/daily-balance/internal/domain"
	"github.com/dvloznov/daily-balance/internal/ledger"
)

// DefaultBatchSize is the number of rows sent per streaming insert.
const DefaultBatchSize = 500

// Tables names the dataset and tables the repository works with.
type Tables struct {
	ProjectID    string
	Dataset      string
	RawLedger    string
	DailyBalance string
	Runs         string
	BatchSize    int
}

// ref renders a fully qualified table name for SQL.
func (t Tables) ref(table string) string {
	if t.ProjectID == "" {
		return fmt.Sprintf("`%s.%s`", t.Dataset, table)
	}
	return fmt.Sprintf("`%s.%s.%s`", t.ProjectID, t.Dataset, table)
}

func (t Tables) batchSize() int {
	if t.BatchSize < 1 {
		return DefaultBatchSize
	}
	return t.BatchSize
}

// BigQueryRepository reads the raw ledger extract, writes reconciled daily
// balances and tracks reconciliation runs. It holds a shared BigQuery client
// to avoid creating a new connection for each operation.
type BigQueryRepository struct {
	client *bigquery.Client
	tables Tables
}

// NewBigQueryRepository creates a repository with its own client.
func NewBigQueryRepository(ctx context.Context, tables Tables, opts ...option.ClientOption) (*BigQueryRepository, error) {
	client, err := bigquery.NewClient(ctx, tables.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryRepository: creating client: %w", err)
	}
	return &BigQueryRepository{client: client, tables: tables}, nil
}

// NewBigQueryRepositoryWithClient wraps an existing client.
func NewBigQueryRepositoryWithClient(client *bigquery.Client, tables Tables) *BigQueryRepository {
	return &BigQueryRepository{client: client, tables: tables}
}

// Close closes the BigQuery client connection. This should be called when
// the repository is no longer needed to release resources.
func (r *BigQueryRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// StartRun delegates to StartRunWithClient with the shared client.
func (r *BigQueryRepository) StartRun(ctx context.Context, source string) (string, error) {
	return StartRunWithClient(ctx, r.client, r.tables, source)
}

// MarkRunSucceeded delegates to MarkRunSucceededWithClient with the shared client.
func (r *BigQueryRepository) MarkRunSucceeded(ctx context.Context, runID string, rowsIn, rowsOut int) error {
	return MarkRunSucceededWithClient(ctx, r.client, r.tables, runID, rowsIn, rowsOut)
}

// MarkRunFailed delegates to MarkRunFailedWithClient with the shared client.
func (r *BigQueryRepository) MarkRunFailed(ctx context.Context, runID string, runErr error) {
	MarkRunFailedWithClient(ctx, r.client, r.tables, runID, runErr)
}

// GetRun delegates to GetRunWithClient with the shared client.
func (r *BigQueryRepository) GetRun(ctx context.Context, runID string) (*ReconciliationRunRow, error) {
	return GetRunWithClient(ctx, r.client, r.tables, runID)
}

// QueryRawLedger delegates to QueryRawLedgerWithClient with the shared client.
func (r *BigQueryRepository) QueryRawLedger(ctx context.Context) (*ledger.Table, error) {
	return QueryRawLedgerWithClient(ctx, r.client, r.tables)
}

// InsertDailyBalances delegates to InsertDailyBalancesWithClient with the shared client.
func (r *BigQueryRepository) InsertDailyBalances(ctx context.Context, runID string, rows []domain.DailyBalanceRow) error {
	return InsertDailyBalancesWithClient(ctx, r.client, r.tables, runID, rows)
}
