package ledger

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/dvloznov/daily-balance/internal/domain"
	"github.com/dvloznov/daily-balance/internal/logger"
)

// DefaultWorkers is the partition concurrency used when Options.Workers is unset.
const DefaultWorkers = 4

// Options configures an Engine.
type Options struct {
	// Workers bounds how many account partitions are reconciled at once.
	// Values below 1 mean DefaultWorkers; 1 runs sequentially.
	Workers int

	// Schema overrides DefaultSchema.
	Schema []ColumnSpec

	// SkipValidation disables the self-check of the reconciled table.
	SkipValidation bool
}

// Summary counts what a reconciliation produced.
type Summary struct {
	InputRows           int      `json:"input_rows"`
	Accounts            int      `json:"accounts"`
	Periods             int      `json:"periods"`
	SubLedgers          int      `json:"sub_ledgers"`
	PlaceholdersDropped int      `json:"placeholders_dropped"`
	Transactions        int      `json:"transactions"`
	ClosingRecords      int      `json:"closing_records"`
	DaysWithMovement    int      `json:"days_with_movement"`
	DaysWithoutMovement int      `json:"days_without_movement"`
	OutputRows          int      `json:"output_rows"`
	MissingColumns      []string `json:"missing_columns,omitempty"`
	Diagnostics         int      `json:"diagnostics"`
}

// Empty reports whether the run had no input rows.
func (s Summary) Empty() bool {
	return s.InputRows == 0
}

// Result is the reconciled table with its summary and diagnostics.
type Result struct {
	Rows        []domain.DailyBalanceRow
	Periods     []domain.AccountPeriod
	Summary     Summary
	Diagnostics []Diagnostic
}

// Engine reconstructs daily balances from a raw ledger extract.
type Engine struct {
	opts Options
}

// NewEngine creates an Engine.
func NewEngine(opts Options) *Engine {
	if opts.Workers < 1 {
		opts.Workers = DefaultWorkers
	}
	if opts.Schema == nil {
		opts.Schema = DefaultSchema
	}
	return &Engine{opts: opts}
}

// Reconcile decodes the table and reconciles its rows. Only a malformed table
// is an error; missing columns are logged and read as null.
func (e *Engine) Reconcile(ctx context.Context, t *Table) (*Result, error) {
	log := logger.FromContext(ctx)

	rows, report, err := DecodeRows(t, e.opts.Schema)
	if err != nil {
		return nil, fmt.Errorf("Reconcile: decoding table: %w", err)
	}

	missing := make([]string, 0, len(report.Missing))
	for _, f := range report.Missing {
		missing = append(missing, string(f))
	}
	if len(missing) > 0 {
		log.Warn().Strs("columns", missing).Msg("Expected columns missing from input, reading them as null")
	}
	for _, f := range report.Defaulted {
		log.Debug().Str("column", string(f)).Msg("Optional column absent, reading it as null")
	}

	res, err := e.ReconcileRows(ctx, rows)
	if err != nil {
		return nil, err
	}
	res.Summary.MissingColumns = missing
	return res, nil
}

// partial is the output of one account partition.
type partial struct {
	periods      []domain.AccountPeriod
	merged       []mergedRow
	subLedgers   int
	placeholders int
	transactions int
	closing      int
	moved        int
}

// ReconcileRows runs period discovery, canonicalization, calendar expansion,
// balance assembly and merge over already decoded rows. Accounts are processed
// as independent partitions and the global sort runs after they are joined.
func (e *Engine) ReconcileRows(ctx context.Context, rows []domain.RawLedgerRow) (*Result, error) {
	log := logger.FromContext(ctx)

	if len(rows) == 0 {
		log.Info().Msg("No data: input table is empty")
		return &Result{Rows: []domain.DailyBalanceRow{}}, nil
	}

	accounts, parts := partitionByAccount(rows)
	results := make([]partial, len(parts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for i := range parts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = reconcilePartition(parts[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("ReconcileRows: %w", err)
	}

	var (
		summary Summary
		periods []domain.AccountPeriod
		merged  []mergedRow
	)
	summary.InputRows = len(rows)
	summary.Accounts = len(accounts)
	for _, p := range results {
		periods = append(periods, p.periods...)
		merged = append(merged, p.merged...)
		summary.SubLedgers += p.subLedgers
		summary.PlaceholdersDropped += p.placeholders
		summary.Transactions += p.transactions
		summary.ClosingRecords += p.closing
		summary.DaysWithMovement += p.moved
	}
	summary.Periods = len(periods)
	summary.DaysWithoutMovement = summary.ClosingRecords - summary.DaysWithMovement

	sortMerged(merged)
	out := unwrap(merged)
	summary.OutputRows = len(out)

	res := &Result{Rows: out, Periods: periods, Summary: summary}

	if !e.opts.SkipValidation {
		res.Diagnostics = Validate(out, periods, summary.Transactions)
		res.Summary.Diagnostics = len(res.Diagnostics)
		for _, d := range res.Diagnostics {
			log.Warn().
				Str("check", d.Check).
				Str("account_id", d.AccountID).
				Str("sub_ledger_id", d.SubLedgerID).
				Msg(d.Message)
		}
	}

	log.Info().
		Int("input_rows", summary.InputRows).
		Int("accounts", summary.Accounts).
		Int("periods", summary.Periods).
		Int("placeholders_dropped", summary.PlaceholdersDropped).
		Int("transactions", summary.Transactions).
		Int("closing_records", summary.ClosingRecords).
		Int("days_with_movement", summary.DaysWithMovement).
		Int("output_rows", summary.OutputRows).
		Msg("Daily balances reconciled")

	return res, nil
}

func reconcilePartition(rows []domain.RawLedgerRow) partial {
	periods := DiscoverPeriods(rows)
	txs, dropped := Canonicalize(rows)
	subs := SubLedgers(txs)
	cells := ExpandCalendar(subs, periods)
	records := AssembleBalances(cells, txs)

	moved := 0
	for _, r := range records {
		if r.HasMovement {
			moved++
		}
	}

	return partial{
		periods:      periods,
		merged:       union(txs, records),
		subLedgers:   len(subs),
		placeholders: dropped,
		transactions: len(txs),
		closing:      len(records),
		moved:        moved,
	}
}

// partitionByAccount splits rows by account id, keeping input order inside
// each partition. Accounts are returned sorted.
func partitionByAccount(rows []domain.RawLedgerRow) ([]string, [][]domain.RawLedgerRow) {
	idx := make(map[string]int)
	var accounts []string
	var parts [][]domain.RawLedgerRow

	for _, r := range rows {
		a := deref(r.AccountID)
		i, ok := idx[a]
		if !ok {
			i = len(parts)
			idx[a] = i
			accounts = append(accounts, a)
			parts = append(parts, nil)
		}
		parts[i] = append(parts[i], r)
	}

	order := make([]int, len(accounts))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return accounts[order[a]] < accounts[order[b]] })

	sortedAccounts := make([]string, len(order))
	sortedParts := make([][]domain.RawLedgerRow, len(order))
	for n, i := range order {
		sortedAccounts[n] = accounts[i]
		sortedParts[n] = parts[i]
	}
	return sortedAccounts, sortedParts
}
