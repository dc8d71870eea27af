package ledger_test

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/daily-balance/internal/domain"
	"github.com/dvloznov/daily-balance/internal/ledger"
)

var testColumns = []string{
	"account_id", "sub_ledger_id", "sub_ledger_type", "sub_ledger_description",
	"customer_description", "period_start", "period_end", "posting_date",
	"inclusion_date", "closing_balance", "opening_balance", "document_value",
	"status", "linked_transaction_id", "related_transaction_id", "observation",
	"category_code", "nature_flag", "origin",
}

// entry is a compact raw row for tests; unset fields stay null.
type entry struct {
	account, sub, desc    string
	subDesc               string
	start, end, posting   string
	inclusion             string
	closing, opening, doc any
	status                any
	linked, related       any
	observation, category any
}

func (e entry) cells() []any {
	subDesc := e.subDesc
	if subDesc == "" {
		subDesc = "CONTA CORRENTE"
	}
	return []any{
		e.account, e.sub, "CC", subDesc,
		e.desc, e.start, e.end, e.posting,
		nilIfEmpty(e.inclusion), e.closing, e.opening, e.doc,
		e.status, e.linked, e.related, e.observation,
		e.category, nil, nil,
	}
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func buildTable(entries ...entry) *ledger.Table {
	t := &ledger.Table{Columns: testColumns}
	for _, e := range entries {
		t.Rows = append(t.Rows, e.cells())
	}
	return t
}

func reconcile(t *testing.T, opts ledger.Options, entries ...entry) *ledger.Result {
	t.Helper()
	res, err := ledger.NewEngine(opts).Reconcile(context.Background(), buildTable(entries...))
	require.NoError(t, err)
	return res
}

func closingRows(rows []domain.DailyBalanceRow) []domain.DailyBalanceRow {
	var out []domain.DailyBalanceRow
	for _, r := range rows {
		if r.Kind == domain.RowKindClosingBalance {
			out = append(out, r)
		}
	}
	return out
}

func transactionRows(rows []domain.DailyBalanceRow) []domain.DailyBalanceRow {
	var out []domain.DailyBalanceRow
	for _, r := range rows {
		if r.Kind == domain.RowKindTransaction {
			out = append(out, r)
		}
	}
	return out
}

func day(y, m, d int) civil.Date {
	return civil.Date{Year: y, Month: time.Month(m), Day: d}
}

func TestReconcile_SingleTransactionCarriesForward(t *testing.T) {
	res := reconcile(t, ledger.Options{},
		entry{account: "A1", sub: "CC1", desc: "PIX RECEBIDO", start: "01/01/2025", end: "03/01/2025", posting: "02/01/2025", closing: 100.0},
	)

	require.Len(t, res.Rows, 4)

	closing := closingRows(res.Rows)
	require.Len(t, closing, 3)
	wantDays := []civil.Date{day(2025, 1, 1), day(2025, 1, 2), day(2025, 1, 3)}
	wantBalances := []float64{0, 100, 100}
	for i, r := range closing {
		assert.Equal(t, wantDays[i], r.CalendarDay)
		require.NotNil(t, r.ClosingBalance)
		assert.Equal(t, wantBalances[i], *r.ClosingBalance)
		assert.Equal(t, domain.ClosingSequence, r.DaySequence)
		assert.Equal(t, domain.ClosingBalanceDescription, *r.CustomerDescription)
		assert.Equal(t, 0.0, *r.DocumentValue)
	}

	txs := transactionRows(res.Rows)
	require.Len(t, txs, 1)
	assert.Equal(t, day(2025, 1, 2), txs[0].EffectiveDate)
	assert.Equal(t, 1, txs[0].DaySequence)

	// The transaction sorts before the closing row of its own day.
	assert.Equal(t, domain.RowKindTransaction, res.Rows[1].Kind)
	assert.Equal(t, domain.RowKindClosingBalance, res.Rows[2].Kind)
	assert.Empty(t, res.Diagnostics)
}

func TestReconcile_DaySequenceFollowsLinkedID(t *testing.T) {
	res := reconcile(t, ledger.Options{},
		entry{account: "A1", sub: "CC1", desc: "TED", start: "01/01/2025", end: "02/01/2025", posting: "01/01/2025", closing: 20.0, linked: "50"},
		entry{account: "A1", sub: "CC1", desc: "PIX", start: "01/01/2025", end: "02/01/2025", posting: "01/01/2025", closing: 10.0, linked: 10},
		entry{account: "A1", sub: "CC1", desc: "TARIFA", start: "01/01/2025", end: "02/01/2025", posting: "01/01/2025", closing: 5.0},
		entry{account: "A1", sub: "CC1", desc: "BOLETO", start: "01/01/2025", end: "02/01/2025", posting: "02/01/2025", closing: 1.0, linked: "70"},
	)

	seqByLinked := map[string]int{}
	var nullSeq int
	for _, r := range transactionRows(res.Rows) {
		if r.LinkedTransactionID == nil {
			nullSeq = r.DaySequence
			continue
		}
		seqByLinked[*r.LinkedTransactionID] = r.DaySequence
	}
	assert.Equal(t, 1, seqByLinked["10"])
	assert.Equal(t, 2, seqByLinked["50"])
	assert.Equal(t, 3, nullSeq)
	// Sequences restart on a new day.
	assert.Equal(t, 1, seqByLinked["70"])

	// The last transaction of the first day is the null-linked one.
	closing := closingRows(res.Rows)
	require.Len(t, closing, 2)
	assert.Equal(t, 5.0, *closing[0].ClosingBalance)
	assert.Equal(t, 1.0, *closing[1].ClosingBalance)
}

func TestReconcile_DaySequenceTieKeepsInputOrder(t *testing.T) {
	res := reconcile(t, ledger.Options{},
		entry{account: "A1", sub: "CC1", desc: "FIRST", start: "01/01/2025", end: "01/01/2025", posting: "01/01/2025", closing: 1.0, linked: "7"},
		entry{account: "A1", sub: "CC1", desc: "SECOND", start: "01/01/2025", end: "01/01/2025", posting: "01/01/2025", closing: 2.0, linked: "7"},
	)

	txs := transactionRows(res.Rows)
	require.Len(t, txs, 2)
	assert.Equal(t, "FIRST", *txs[0].CustomerDescription)
	assert.Equal(t, 1, txs[0].DaySequence)
	assert.Equal(t, "SECOND", *txs[1].CustomerDescription)
	assert.Equal(t, 2, txs[1].DaySequence)
	assert.Equal(t, 2.0, *closingRows(res.Rows)[0].ClosingBalance)
}

func TestReconcile_PlaceholderRows(t *testing.T) {
	res := reconcile(t, ledger.Options{},
		entry{account: "A1", sub: "CC1", desc: "saldo", start: "01/01/2025", end: "05/01/2025", posting: "01/01/2025", closing: 999.0},
		entry{account: "A1", sub: "CC1", desc: "PIX", start: "01/01/2025", end: "03/01/2025", posting: "02/01/2025", closing: 10.0},
		entry{account: "A2", sub: "CC9", desc: "SALDO", start: "01/02/2025", end: "02/02/2025", posting: "01/02/2025", closing: 1.0},
	)

	for _, r := range transactionRows(res.Rows) {
		assert.NotEqual(t, "SALDO", *r.CustomerDescription)
	}
	assert.Equal(t, 2, res.Summary.PlaceholdersDropped)
	assert.Equal(t, 1, res.Summary.Transactions)

	// The placeholder widened A1's period to the 5th and still defined A2's period.
	require.Len(t, res.Periods, 2)
	assert.Equal(t, domain.AccountPeriod{AccountID: "A1", PeriodStart: day(2025, 1, 1), PeriodEnd: day(2025, 1, 5)}, res.Periods[0])
	assert.Equal(t, "A2", res.Periods[1].AccountID)
	assert.Len(t, closingRows(res.Rows), 5)
}

func TestReconcile_PeriodOpeningSeedsBalance(t *testing.T) {
	res := reconcile(t, ledger.Options{},
		entry{account: "A1", sub: "CC1", desc: "Saldo Anterior", start: "01/01/2025", end: "04/01/2025", posting: "31/12/2024", closing: 50.0, opening: 40.0},
		entry{account: "A1", sub: "CC1", desc: "PIX", start: "01/01/2025", end: "04/01/2025", posting: "03/01/2025", closing: 80.0, opening: 50.0},
	)

	txs := transactionRows(res.Rows)
	require.Len(t, txs, 2)
	assert.Equal(t, domain.PeriodOpeningDescription, *txs[0].CustomerDescription)
	assert.Equal(t, day(2025, 1, 1), txs[0].EffectiveDate)
	assert.Equal(t, day(2024, 12, 31), txs[0].PostingDate)
	assert.Equal(t, domain.OpeningSequence, txs[0].DaySequence)

	closing := closingRows(res.Rows)
	require.Len(t, closing, 4)
	balances := make([]float64, len(closing))
	openings := make([]float64, len(closing))
	for i, r := range closing {
		balances[i] = *r.ClosingBalance
		openings[i] = *r.OpeningBalance
	}
	assert.Equal(t, []float64{50, 50, 80, 80}, balances)
	assert.Equal(t, []float64{40, 40, 50, 50}, openings)
}

func TestReconcile_NoMovementDaysResetTransactionFields(t *testing.T) {
	res := reconcile(t, ledger.Options{},
		entry{account: "A1", sub: "CC1", desc: "PIX", start: "01/01/2025", end: "02/01/2025", posting: "01/01/2025",
			inclusion: "01/01/2025 10:30:00", closing: 10.0, status: "ok", linked: "5", related: "6", observation: "obs", category: "c1"},
	)

	closing := closingRows(res.Rows)
	require.Len(t, closing, 2)

	moved := closing[0]
	require.NotNil(t, moved.Status)
	assert.Equal(t, "OK", *moved.Status)
	assert.Equal(t, "5", *moved.LinkedTransactionID)
	assert.Equal(t, "6", *moved.RelatedTransactionID)
	assert.Equal(t, "OBS", *moved.Observation)

	idle := closing[1]
	assert.Nil(t, idle.Status)
	assert.Nil(t, idle.LinkedTransactionID)
	assert.Nil(t, idle.RelatedTransactionID)
	assert.Nil(t, idle.Observation)
	require.NotNil(t, idle.CategoryCode)
	assert.Equal(t, "C1", *idle.CategoryCode)
	assert.Equal(t, moved.InclusionTimestamp, idle.InclusionTimestamp)
	assert.Equal(t, 10.0, *idle.ClosingBalance)
}

func TestReconcile_Completeness(t *testing.T) {
	res := reconcile(t, ledger.Options{},
		entry{account: "A1", sub: "CC1", desc: "X", start: "01/01/2025", end: "31/01/2025", posting: "10/01/2025", closing: 1.0},
		entry{account: "A1", sub: "CC2", desc: "Y", start: "01/02/2025", end: "28/02/2025", posting: "10/02/2025", closing: 2.0},
		entry{account: "A1", sub: "CC2", desc: "Z", start: "01/03/2025", end: "01/02/2025", posting: "10/02/2025", closing: 2.0},
	)

	counts := map[string]int{}
	for _, r := range closingRows(res.Rows) {
		counts[r.SubLedgerID+"/"+r.PeriodStart.String()]++
	}
	// Both sub-ledgers get full runs for both usable periods; the inverted period yields nothing.
	assert.Equal(t, map[string]int{
		"CC1/2025-01-01": 31,
		"CC1/2025-02-01": 28,
		"CC2/2025-01-01": 31,
		"CC2/2025-02-01": 28,
	}, counts)
	assert.Empty(t, res.Diagnostics)
}

func TestReconcile_RenamedSubLedgerGetsOneClosingRowPerDay(t *testing.T) {
	res := reconcile(t, ledger.Options{},
		entry{account: "A1", sub: "CC1", desc: "PIX", start: "01/01/2025", end: "02/01/2025", posting: "01/01/2025", closing: 10.0},
		entry{account: "A1", sub: "CC1", desc: "PIX", subDesc: "OTHER NAME", start: "01/01/2025", end: "02/01/2025", posting: "01/01/2025", closing: 10.0},
		entry{account: "A1", sub: "CC1", desc: "TED", subDesc: "NULL", start: "01/01/2025", end: "02/01/2025", posting: "02/01/2025", closing: 4.0},
	)

	closing := closingRows(res.Rows)
	require.Len(t, closing, 2)
	assert.Equal(t, day(2025, 1, 1), closing[0].CalendarDay)
	assert.Equal(t, day(2025, 1, 2), closing[1].CalendarDay)
	for _, r := range closing {
		require.NotNil(t, r.SubLedgerDescription)
		assert.Equal(t, "OTHER NAME", *r.SubLedgerDescription)
	}
	assert.Equal(t, 1, res.Summary.SubLedgers)
	assert.Empty(t, res.Diagnostics)
}

func TestReconcile_DaySequenceScopedByAccount(t *testing.T) {
	res := reconcile(t, ledger.Options{},
		entry{account: "A1", sub: "CC1", desc: "PIX", start: "01/01/2025", end: "01/01/2025", posting: "01/01/2025", closing: 1.0, linked: "20"},
		entry{account: "A2", sub: "CC1", desc: "TED", start: "01/01/2025", end: "01/01/2025", posting: "01/01/2025", closing: 2.0, linked: "10"},
	)

	for _, r := range transactionRows(res.Rows) {
		assert.Equal(t, 1, r.DaySequence, "account %s", r.AccountID)
	}
	assert.Empty(t, res.Diagnostics)
}

// The closing row takes its inclusion timestamp and linked id from the day's
// last transaction by sequence, so a later-ingested transaction with a lower
// linked id still sorts after it.
func TestReconcile_ClosingRowFollowsInclusionOrder(t *testing.T) {
	res := reconcile(t, ledger.Options{},
		entry{account: "A1", sub: "CC1", desc: "LOW ID", start: "01/01/2025", end: "01/01/2025", posting: "01/01/2025",
			inclusion: "01/01/2025 10:00:00", closing: 1.0, linked: "10"},
		entry{account: "A1", sub: "CC1", desc: "HIGH ID", start: "01/01/2025", end: "01/01/2025", posting: "01/01/2025",
			inclusion: "01/01/2025 09:00:00", closing: 2.0, linked: "50"},
	)

	require.Len(t, res.Rows, 3)
	got := make([]string, len(res.Rows))
	for i, r := range res.Rows {
		got[i] = *r.CustomerDescription
	}
	assert.Equal(t, []string{"HIGH ID", domain.ClosingBalanceDescription, "LOW ID"}, got)

	closing := res.Rows[1]
	assert.Equal(t, 2.0, *closing.ClosingBalance)
	assert.Equal(t, "50", *closing.LinkedTransactionID)
	assert.Equal(t, time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC), closing.InclusionTimestamp)
}

func TestReconcile_DeterministicAcrossWorkers(t *testing.T) {
	var entries []entry
	accounts := []string{"B7", "A1", "C3", "A2"}
	for i, a := range accounts {
		entries = append(entries,
			entry{account: a, sub: "CC1", desc: "PIX", start: "01/01/2025", end: "10/01/2025", posting: "03/01/2025", closing: float64(i), linked: "9"},
			entry{account: a, sub: "CC1", desc: "TED", start: "01/01/2025", end: "10/01/2025", posting: "03/01/2025", closing: float64(i + 10), linked: "9"},
			entry{account: a, sub: "CC2", desc: "SALDO ANTERIOR", start: "01/01/2025", end: "10/01/2025", posting: "01/01/2025", closing: 5.0},
			entry{account: a, sub: "CC2", desc: "SALDO", start: "01/01/2025", end: "12/01/2025", posting: "01/01/2025"},
		)
	}

	sequential := reconcile(t, ledger.Options{Workers: 1}, entries...)
	parallel := reconcile(t, ledger.Options{Workers: 8}, entries...)
	again := reconcile(t, ledger.Options{Workers: 8}, entries...)

	assert.Equal(t, sequential.Rows, parallel.Rows)
	assert.Equal(t, parallel.Rows, again.Rows)
	assert.Equal(t, sequential.Summary, parallel.Summary)

	// No data loss: every non-placeholder row appears once as a transaction.
	assert.Len(t, transactionRows(sequential.Rows), 3*len(accounts))
	assert.Equal(t, "A1", sequential.Rows[0].AccountID)
	assert.Equal(t, "C3", sequential.Rows[len(sequential.Rows)-1].AccountID)
}

func TestReconcile_EmptyInput(t *testing.T) {
	res := reconcile(t, ledger.Options{})
	assert.Empty(t, res.Rows)
	assert.True(t, res.Summary.Empty())
}

func TestReconcile_MalformedTable(t *testing.T) {
	tests := []struct {
		name  string
		table *ledger.Table
	}{
		{name: "nil table", table: nil},
		{name: "ragged row", table: &ledger.Table{Columns: []string{"a", "b"}, Rows: [][]any{{"x"}}}},
		{name: "rows without header", table: &ledger.Table{Rows: [][]any{{"x"}}}},
		{name: "duplicate column", table: &ledger.Table{Columns: []string{"a", "A "}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ledger.NewEngine(ledger.Options{}).Reconcile(context.Background(), tt.table)
			require.Error(t, err)
			assert.ErrorIs(t, err, ledger.ErrNotTabular)
		})
	}
}

func TestReconcile_MissingColumnsReadAsNull(t *testing.T) {
	table := &ledger.Table{
		Columns: []string{"empresa_id", "ncodcc", "cdescliente", "dperiodoinicial", "dperiodofinal", "ddatalancamento", "nsaldo"},
		Rows: [][]any{
			{"A1", "CC1", "pix", "01/01/2025", "02/01/2025", "01/01/2025", "12.5"},
		},
	}

	res, err := ledger.NewEngine(ledger.Options{}).Reconcile(context.Background(), table)
	require.NoError(t, err)

	assert.Contains(t, res.Summary.MissingColumns, "status")
	assert.NotContains(t, res.Summary.MissingColumns, "provisional_balance")
	assert.NotContains(t, res.Summary.MissingColumns, "closing_balance")

	closing := closingRows(res.Rows)
	require.Len(t, closing, 2)
	assert.Equal(t, 12.5, *closing[1].ClosingBalance)
	assert.Nil(t, closing[1].SubLedgerType)
}
