package ledger

import (
	"math/big"
	"sort"

	"github.com/dvloznov/daily-balance/internal/domain"
)

// mergedRow carries the sort keys that do not survive into the output row.
type mergedRow struct {
	row    domain.DailyBalanceRow
	linked *big.Int
	order  int
}

// Merge unions canonical transactions and closing balance records into the
// output table and sorts it.
func Merge(txs []domain.CanonicalTransaction, records []domain.ClosingBalanceRecord) []domain.DailyBalanceRow {
	merged := union(txs, records)
	sortMerged(merged)
	return unwrap(merged)
}

// union converts both sides into output rows. Transactions keep their input
// index as order; records are ordered after every transaction of the batch.
func union(txs []domain.CanonicalTransaction, records []domain.ClosingBalanceRecord) []mergedRow {
	out := make([]mergedRow, 0, len(txs)+len(records))
	base := 0
	for _, tx := range txs {
		out = append(out, mergedRow{row: transactionRow(tx), linked: tx.LinkedTransactionID, order: tx.Index})
		if tx.Index >= base {
			base = tx.Index + 1
		}
	}
	for i, rec := range records {
		out = append(out, mergedRow{row: closingRow(rec), linked: rec.LinkedTransactionID, order: base + i})
	}
	return out
}

// sortMerged orders rows by account, sub-ledger, period start, effective date,
// inclusion timestamp and linked id, all nulls last, then by day sequence and
// input order.
func sortMerged(rows []mergedRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := &rows[i], &rows[j]
		if a.row.AccountID != b.row.AccountID {
			return a.row.AccountID < b.row.AccountID
		}
		if a.row.SubLedgerID != b.row.SubLedgerID {
			return a.row.SubLedgerID < b.row.SubLedgerID
		}
		if c := compareDate(a.row.PeriodStart, b.row.PeriodStart); c != 0 {
			return c < 0
		}
		if c := compareDate(a.row.EffectiveDate, b.row.EffectiveDate); c != 0 {
			return c < 0
		}
		if c := compareTime(a.row.InclusionTimestamp, b.row.InclusionTimestamp); c != 0 {
			return c < 0
		}
		if c := compareID(a.linked, b.linked); c != 0 {
			return c < 0
		}
		if c := compareInt(a.row.DaySequence, b.row.DaySequence); c != 0 {
			return c < 0
		}
		return a.order < b.order
	})
}

func unwrap(rows []mergedRow) []domain.DailyBalanceRow {
	out := make([]domain.DailyBalanceRow, len(rows))
	for i := range rows {
		out[i] = rows[i].row
	}
	return out
}

func transactionRow(tx domain.CanonicalTransaction) domain.DailyBalanceRow {
	return domain.DailyBalanceRow{
		Kind:                 domain.RowKindTransaction,
		AccountID:            tx.AccountID,
		SubLedgerID:          tx.SubLedgerID,
		SubLedgerType:        tx.SubLedgerType,
		SubLedgerDescription: tx.SubLedgerDescription,
		CustomerDescription:  tx.EffectiveDescription,
		PeriodStart:          tx.PeriodStart,
		PeriodEnd:            tx.PeriodEnd,
		PostingDate:          tx.PostingDate,
		EffectiveDate:        tx.EffectiveDate,
		CalendarDay:          tx.EffectiveDate,
		DaySequence:          tx.DaySequence,
		InclusionTimestamp:   tx.InclusionTimestamp,
		ClosingBalance:       tx.ClosingBalance,
		OpeningBalance:       tx.OpeningBalance,
		DocumentValue:        tx.DocumentValue,
		ProvisionalBalance:   tx.ProvisionalBalance,
		Status:               tx.Status,
		LinkedTransactionID:  idText(tx.LinkedTransactionID),
		RelatedTransactionID: idText(tx.RelatedTransactionID),
		Observation:          tx.Observation,
		CategoryCode:         tx.CategoryCode,
		NatureFlag:           tx.NatureFlag,
		Origin:               tx.Origin,
	}
}

func closingRow(rec domain.ClosingBalanceRecord) domain.DailyBalanceRow {
	label := domain.ClosingBalanceDescription
	closing := rec.ClosingBalance
	opening := rec.OpeningBalanceOfDay
	doc := rec.DocumentValue

	return domain.DailyBalanceRow{
		Kind:                 domain.RowKindClosingBalance,
		AccountID:            rec.AccountID,
		SubLedgerID:          rec.SubLedgerID,
		SubLedgerType:        rec.SubLedgerType,
		SubLedgerDescription: rec.SubLedgerDescription,
		CustomerDescription:  &label,
		PeriodStart:          rec.PeriodStart,
		PeriodEnd:            rec.PeriodEnd,
		PostingDate:          rec.CalendarDay,
		EffectiveDate:        rec.CalendarDay,
		CalendarDay:          rec.CalendarDay,
		DaySequence:          domain.ClosingSequence,
		InclusionTimestamp:   rec.InclusionTimestamp,
		ClosingBalance:       &closing,
		OpeningBalance:       &opening,
		DocumentValue:        &doc,
		ProvisionalBalance:   rec.ProvisionalBalance,
		Status:               rec.Status,
		LinkedTransactionID:  idText(rec.LinkedTransactionID),
		RelatedTransactionID: idText(rec.RelatedTransactionID),
		Observation:          rec.Observation,
		CategoryCode:         rec.CategoryCode,
		NatureFlag:           rec.NatureFlag,
		Origin:               rec.Origin,
	}
}

func idText(n *big.Int) *string {
	if n == nil {
		return nil
	}
	s := n.String()
	return &s
}
