package pipeline

import (
	"context"

	"github.com/dvloznov/daily-balance/internal/domain"
	"github.com/dvloznov/daily-balance/internal/ledger"
	"github.com/dvloznov/daily-balance/internal/notify"
)

// RunRepository tracks reconciliation runs.
// This interface enables mocking and testing of run bookkeeping.
type RunRepository interface {
	StartRun(ctx context.Context, source string) (string, error)
	MarkRunSucceeded(ctx context.Context, runID string, rowsIn, rowsOut int) error
	MarkRunFailed(ctx context.Context, runID string, runErr error)
}

// TableSource yields the raw ledger extract as a generic table.
type TableSource interface {
	FetchTable(ctx context.Context) (*ledger.Table, error)
	// Describe names the source for run records and logs.
	Describe() string
}

// TableSink persists the reconciled daily balance table.
type TableSink interface {
	WriteDailyBalances(ctx context.Context, runID string, rows []domain.DailyBalanceRow) error
	Describe() string
}

// RawLedgerReader is the warehouse read side used by WarehouseSource.
type RawLedgerReader interface {
	QueryRawLedger(ctx context.Context) (*ledger.Table, error)
}

// DailyBalanceWriter is the warehouse write side used by WarehouseSink.
type DailyBalanceWriter interface {
	InsertDailyBalances(ctx context.Context, runID string, rows []domain.DailyBalanceRow) error
}

// Notifier is told about every finished run, successful or not.
// A failing notifier never fails the run.
type Notifier interface {
	Notify(ctx context.Context, n notify.Notice) error
}
