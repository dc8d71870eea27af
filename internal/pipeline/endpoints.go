package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dvloznov/daily-balance/internal/domain"
	"github.com/dvloznov/daily-balance/internal/ledger"
	"github.com/dvloznov/daily-balance/internal/logger"
	"github.com/dvloznov/daily-balance/internal/parquetio"
	"github.com/dvloznov/daily-balance/internal/storage"
)

// ObjectSource reads a parquet extract from an object store.
type ObjectSource struct {
	Store storage.ObjectStore
	URI   string
}

func (s *ObjectSource) FetchTable(ctx context.Context) (*ledger.Table, error) {
	data, err := s.Store.Get(ctx, s.URI)
	if err != nil {
		return nil, fmt.Errorf("ObjectSource.FetchTable: %w", err)
	}
	t, err := parquetio.DecodeRawTable(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("ObjectSource.FetchTable: %s: %w", s.URI, err)
	}
	return t, nil
}

func (s *ObjectSource) Describe() string { return s.URI }

// WarehouseSource reads the raw extract table from the warehouse.
type WarehouseSource struct {
	Repo RawLedgerReader
}

func (s *WarehouseSource) FetchTable(ctx context.Context) (*ledger.Table, error) {
	t, err := s.Repo.QueryRawLedger(ctx)
	if err != nil {
		return nil, fmt.Errorf("WarehouseSource.FetchTable: %w", err)
	}
	return t, nil
}

func (s *WarehouseSource) Describe() string { return SourceBigQuery }

// ObjectSink writes the reconciled table as one parquet object. An empty table
// still produces a file carrying the output schema.
type ObjectSink struct {
	Store storage.ObjectStore
	URI   string
}

func (s *ObjectSink) WriteDailyBalances(ctx context.Context, runID string, rows []domain.DailyBalanceRow) error {
	data, err := parquetio.EncodeDailyBalance(rows)
	if err != nil {
		return fmt.Errorf("ObjectSink.WriteDailyBalances: %w", err)
	}
	if err := s.Store.Put(ctx, s.URI, data); err != nil {
		return fmt.Errorf("ObjectSink.WriteDailyBalances: %w", err)
	}
	log := logger.FromContext(ctx)
	log.Info().
		Str("run_id", runID).
		Str("uri", s.URI).
		Int("rows", len(rows)).
		Int("bytes", len(data)).
		Msg("Daily balance table written")
	return nil
}

func (s *ObjectSink) Describe() string { return s.URI }

// WarehouseSink streams the reconciled rows into the warehouse table.
type WarehouseSink struct {
	Repo DailyBalanceWriter
}

func (s *WarehouseSink) WriteDailyBalances(ctx context.Context, runID string, rows []domain.DailyBalanceRow) error {
	if err := s.Repo.InsertDailyBalances(ctx, runID, rows); err != nil {
		return fmt.Errorf("WarehouseSink.WriteDailyBalances: %w", err)
	}
	return nil
}

func (s *WarehouseSink) Describe() string { return SourceBigQuery }

// LogRunRepository keeps runs in the log only. It is used when no warehouse
// is configured.
type LogRunRepository struct{}

func (LogRunRepository) StartRun(ctx context.Context, source string) (string, error) {
	runID := uuid.NewString()
	log := logger.FromContext(ctx)
	log.Info().
		Str("run_id", runID).
		Str("source", source).
		Msg("Run started")
	return runID, nil
}

func (LogRunRepository) MarkRunSucceeded(ctx context.Context, runID string, rowsIn, rowsOut int) error {
	log := logger.FromContext(ctx)
	log.Info().
		Str("run_id", runID).
		Int("rows_in", rowsIn).
		Int("rows_out", rowsOut).
		Msg("Run succeeded")
	return nil
}

func (LogRunRepository) MarkRunFailed(ctx context.Context, runID string, runErr error) {
	log := logger.FromContext(ctx)
	log.Error().
		Err(runErr).
		Str("run_id", runID).
		Msg("Run failed")
}
