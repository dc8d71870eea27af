package ledger

import (
	"math/big"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/daily-balance/internal/domain"
)

func date(y, m, d int) civil.Date {
	return civil.Date{Year: y, Month: time.Month(m), Day: d}
}

func str(s string) *string {
	return &s
}

func TestDiscoverPeriods(t *testing.T) {
	rows := []domain.RawLedgerRow{
		{AccountID: str("A1"), PeriodStart: date(2025, 1, 1), PeriodEnd: date(2025, 1, 10)},
		{AccountID: str("A1"), PeriodStart: date(2025, 1, 1), PeriodEnd: date(2025, 1, 31)},
		{AccountID: str("A1"), PeriodStart: date(2025, 1, 1), PeriodEnd: date(2025, 1, 20)},
		{AccountID: str("A1"), PeriodStart: date(2025, 2, 1)},
		{AccountID: str("A0"), PeriodStart: date(2025, 3, 1), PeriodEnd: date(2025, 3, 2), CustomerDescription: str("SALDO")},
		{AccountID: str("A0"), PeriodEnd: date(2025, 3, 2)},
	}

	got := DiscoverPeriods(rows)
	assert.Equal(t, []domain.AccountPeriod{
		{AccountID: "A0", PeriodStart: date(2025, 3, 1), PeriodEnd: date(2025, 3, 2)},
		{AccountID: "A1", PeriodStart: date(2025, 1, 1), PeriodEnd: date(2025, 1, 31)},
	}, got)
}

func TestAccountPeriodDays(t *testing.T) {
	tests := []struct {
		name   string
		period domain.AccountPeriod
		want   int
	}{
		{name: "single day", period: domain.AccountPeriod{PeriodStart: date(2025, 1, 1), PeriodEnd: date(2025, 1, 1)}, want: 1},
		{name: "leap february", period: domain.AccountPeriod{PeriodStart: date(2024, 2, 1), PeriodEnd: date(2024, 2, 29)}, want: 29},
		{name: "inverted", period: domain.AccountPeriod{PeriodStart: date(2025, 1, 2), PeriodEnd: date(2025, 1, 1)}, want: 0},
		{name: "null end", period: domain.AccountPeriod{PeriodStart: date(2025, 1, 2)}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.period.Days())
		})
	}
}

func TestCanonicalize(t *testing.T) {
	rows := []domain.RawLedgerRow{
		{Index: 0, AccountID: str("A1"), SubLedgerID: str("CC1"), CustomerDescription: str(" Saldo "), PostingDate: date(2025, 1, 1)},
		{Index: 1, AccountID: str("A1"), SubLedgerID: str("CC1"), CustomerDescription: str("saldo anterior"), PeriodStart: date(2025, 1, 1), PostingDate: date(2024, 12, 31)},
		{Index: 2, AccountID: str("A1"), SubLedgerID: str("CC1"), CustomerDescription: str("pix"), PostingDate: date(2025, 1, 1), LinkedTransactionID: big.NewInt(3), Status: str("nan")},
		{Index: 3, AccountID: str("A1"), SubLedgerID: str("CC1"), CustomerDescription: str("ted"), PostingDate: date(2025, 1, 1), LinkedTransactionID: big.NewInt(1)},
		{Index: 4, AccountID: str("A1"), SubLedgerID: str("CC2"), CustomerDescription: str("doc"), PostingDate: date(2025, 1, 1), LinkedTransactionID: big.NewInt(9)},
	}

	txs, dropped := Canonicalize(rows)
	require.Len(t, txs, 4)
	assert.Equal(t, 1, dropped)

	opening := txs[0]
	assert.True(t, opening.IsPeriodOpening())
	assert.Equal(t, "SALDO ANTERIOR", *opening.Description)
	assert.Equal(t, date(2025, 1, 1), opening.EffectiveDate)
	assert.Equal(t, 0, opening.DaySequence)

	assert.Equal(t, 2, txs[1].DaySequence, "linked 3 after linked 1")
	assert.Nil(t, txs[1].Status)
	assert.Equal(t, "PIX", *txs[1].EffectiveDescription)
	assert.Equal(t, 1, txs[2].DaySequence)
	assert.Equal(t, 1, txs[3].DaySequence, "other sub-ledger restarts")

	// Inputs are left untouched.
	assert.Equal(t, "pix", *rows[2].CustomerDescription)
}

func TestSubLedgersAndCalendar(t *testing.T) {
	txs := []domain.CanonicalTransaction{
		{Index: 0, AccountID: "A1", SubLedgerID: "CC2", SubLedgerType: str("CC")},
		{Index: 1, AccountID: "A1", SubLedgerID: "CC1", SubLedgerType: str("CC"), SubLedgerDescription: str("OLD NAME")},
		{Index: 3, AccountID: "A1", SubLedgerID: "CC1"},
		{Index: 2, AccountID: "A1", SubLedgerID: "CC1", SubLedgerType: str("CI"), SubLedgerDescription: str("RENAMED")},
		{Index: 4, AccountID: "B1", SubLedgerID: "CC1"},
	}

	subs := SubLedgers(txs)
	require.Len(t, subs, 3)
	assert.Equal(t, domain.SubLedger{AccountID: "A1", ID: "CC1", Type: str("CI"), Description: str("RENAMED")}, subs[0])
	assert.Equal(t, "CC2", subs[1].ID)
	assert.Nil(t, subs[1].Description)
	assert.Equal(t, domain.SubLedger{AccountID: "B1", ID: "CC1"}, subs[2])

	periods := []domain.AccountPeriod{
		{AccountID: "A1", PeriodStart: date(2025, 1, 30), PeriodEnd: date(2025, 2, 2)},
		{AccountID: "A1", PeriodStart: date(2025, 3, 1), PeriodEnd: date(2025, 2, 1)},
	}
	cells := ExpandCalendar(subs, periods)

	// Two A1 sub-ledgers times four days; B1 has no periods.
	require.Len(t, cells, 8)
	assert.Equal(t, date(2025, 1, 30), cells[0].CalendarDay)
	assert.Equal(t, date(2025, 2, 2), cells[3].CalendarDay)
	assert.Equal(t, "RENAMED", *cells[0].SubLedgerDescription)
	assert.Equal(t, "CC2", cells[7].SubLedgerID)
}

func TestAssembleBalances_ForwardFillPerField(t *testing.T) {
	start := date(2025, 1, 1)
	cells := ExpandCalendar(
		[]domain.SubLedger{{AccountID: "A1", ID: "CC1"}},
		[]domain.AccountPeriod{{AccountID: "A1", PeriodStart: start, PeriodEnd: date(2025, 1, 4)}},
	)
	txs := []domain.CanonicalTransaction{
		{Index: 0, AccountID: "A1", SubLedgerID: "CC1", PeriodStart: start, EffectiveDate: date(2025, 1, 2), DaySequence: 1,
			ClosingBalance: ptr(10), OpeningBalance: ptr(0), NatureFlag: str("C")},
		// A null balance on a movement day keeps the previous value.
		{Index: 1, AccountID: "A1", SubLedgerID: "CC1", PeriodStart: start, EffectiveDate: date(2025, 1, 3), DaySequence: 1,
			OpeningBalance: ptr(10), Origin: str("WEB")},
	}

	records := AssembleBalances(cells, txs)
	require.Len(t, records, 4)

	var closing, opening []float64
	for _, r := range records {
		closing = append(closing, r.ClosingBalance)
		opening = append(opening, r.OpeningBalanceOfDay)
	}
	assert.Equal(t, []float64{0, 10, 10, 10}, closing)
	assert.Equal(t, []float64{0, 0, 10, 10}, opening)

	assert.False(t, records[0].HasMovement)
	assert.True(t, records[1].HasMovement)
	assert.Nil(t, records[0].NatureFlag)
	assert.Equal(t, "C", *records[3].NatureFlag)
	assert.Equal(t, "WEB", *records[3].Origin)
}

func TestAssembleBalances_LastOfDayIgnoresOpening(t *testing.T) {
	start := date(2025, 1, 1)
	cells := ExpandCalendar(
		[]domain.SubLedger{{AccountID: "A1", ID: "CC1"}},
		[]domain.AccountPeriod{{AccountID: "A1", PeriodStart: start, PeriodEnd: start}},
	)
	opening := domain.PeriodOpeningDescription
	txs := []domain.CanonicalTransaction{
		{Index: 0, AccountID: "A1", SubLedgerID: "CC1", PeriodStart: start, EffectiveDate: start, DaySequence: 0,
			EffectiveDescription: &opening, ClosingBalance: ptr(70), Status: str("OPEN")},
	}

	records := AssembleBalances(cells, txs)
	require.Len(t, records, 1)
	assert.False(t, records[0].HasMovement)
	assert.Equal(t, 70.0, records[0].ClosingBalance)
	assert.Equal(t, 0.0, records[0].OpeningBalanceOfDay)
	assert.Nil(t, records[0].Status)
}

func TestValidate(t *testing.T) {
	d := date(2025, 1, 1)
	closing := func(day civil.Date) domain.DailyBalanceRow {
		return domain.DailyBalanceRow{Kind: domain.RowKindClosingBalance, AccountID: "A1", SubLedgerID: "CC1", PeriodStart: d, CalendarDay: day}
	}
	tx := func(seq int) domain.DailyBalanceRow {
		return domain.DailyBalanceRow{Kind: domain.RowKindTransaction, AccountID: "A1", SubLedgerID: "CC1", PeriodStart: d, EffectiveDate: d, DaySequence: seq}
	}
	periods := []domain.AccountPeriod{{AccountID: "A1", PeriodStart: d, PeriodEnd: date(2025, 1, 2)}}

	t.Run("clean", func(t *testing.T) {
		rows := []domain.DailyBalanceRow{tx(1), tx(2), closing(d), closing(date(2025, 1, 2))}
		assert.Empty(t, Validate(rows, periods, 2))
	})

	t.Run("duplicate sequence and missing day", func(t *testing.T) {
		rows := []domain.DailyBalanceRow{tx(1), tx(1), closing(d)}
		diags := Validate(rows, periods, 3)

		checks := make([]string, 0, len(diags))
		for _, diag := range diags {
			checks = append(checks, diag.Check)
		}
		assert.ElementsMatch(t, []string{CheckDuplicateSequence, CheckMissingDays, CheckTransactionCount}, checks)
	})

	t.Run("duplicate closing day", func(t *testing.T) {
		rows := []domain.DailyBalanceRow{tx(1), closing(d), closing(date(2025, 1, 2)), closing(date(2025, 1, 2))}
		diags := Validate(rows, periods, 1)
		require.Len(t, diags, 1)
		assert.Equal(t, CheckDuplicateDays, diags[0].Check)
		assert.Equal(t, date(2025, 1, 2), diags[0].Day)
	})

	t.Run("gap", func(t *testing.T) {
		rows := []domain.DailyBalanceRow{tx(1), tx(3), closing(d), closing(date(2025, 1, 2))}
		diags := Validate(rows, periods, -1)
		require.Len(t, diags, 1)
		assert.Equal(t, CheckSequenceGap, diags[0].Check)
	})
}

func TestMerge_OrdersNullsLast(t *testing.T) {
	d := date(2025, 1, 1)
	at := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	txs := []domain.CanonicalTransaction{
		{Index: 0, AccountID: "A1", SubLedgerID: "CC1", PeriodStart: d, EffectiveDate: d, DaySequence: 2, EffectiveDescription: str("NO TIME")},
		{Index: 1, AccountID: "A1", SubLedgerID: "CC1", PeriodStart: d, EffectiveDate: d, DaySequence: 1, InclusionTimestamp: at, EffectiveDescription: str("TIMED")},
		{Index: 2, AccountID: "A1", SubLedgerID: "CC1", PeriodStart: d, DaySequence: 1, EffectiveDescription: str("NO DATE")},
	}
	records := []domain.ClosingBalanceRecord{
		{DayCell: domain.DayCell{AccountID: "A1", SubLedgerID: "CC1", PeriodStart: d, CalendarDay: d}, ClosingBalance: 5},
	}

	rows := Merge(txs, records)
	require.Len(t, rows, 4)

	got := make([]string, len(rows))
	for i, r := range rows {
		got[i] = *r.CustomerDescription
	}
	assert.Equal(t, []string{"TIMED", "NO TIME", domain.ClosingBalanceDescription, "NO DATE"}, got)
	assert.Equal(t, domain.ClosingSequence, rows[2].DaySequence)
	assert.Equal(t, d, rows[2].PostingDate)
}
