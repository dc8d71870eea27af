package ledger

import (
	"math/big"
	"sort"
	"time"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/daily-balance/internal/domain"
)

type cellKey struct {
	account string
	start   civil.Date
	sub     string
	day     civil.Date
}

type carryKey struct {
	account string
	sub     string
	start   civil.Date
}

// lastOfDay picks, for each (account, period start, sub-ledger, effective day),
// the transaction with the highest positive day sequence. Ties go to the later
// input row. Period opening rows never qualify.
func lastOfDay(txs []domain.CanonicalTransaction) map[cellKey]domain.CanonicalTransaction {
	last := make(map[cellKey]domain.CanonicalTransaction)
	for _, tx := range txs {
		if tx.DaySequence <= domain.OpeningSequence || tx.EffectiveDate.IsZero() {
			continue
		}
		k := cellKey{account: tx.AccountID, start: tx.PeriodStart, sub: tx.SubLedgerID, day: tx.EffectiveDate}
		cur, ok := last[k]
		if !ok || tx.DaySequence > cur.DaySequence || (tx.DaySequence == cur.DaySequence && tx.Index > cur.Index) {
			last[k] = tx
		}
	}
	return last
}

// openingRows returns the first period opening row of each (account, sub-ledger, period start).
func openingRows(txs []domain.CanonicalTransaction) map[carryKey]domain.CanonicalTransaction {
	out := make(map[carryKey]domain.CanonicalTransaction)
	for _, tx := range txs {
		if !tx.IsPeriodOpening() {
			continue
		}
		k := carryKey{account: tx.AccountID, sub: tx.SubLedgerID, start: tx.PeriodStart}
		if cur, ok := out[k]; !ok || tx.Index < cur.Index {
			out[k] = tx
		}
	}
	return out
}

// carry is the running state of one (account, sub-ledger, period) scan.
type carry struct {
	closing     *float64
	opening     *float64
	provisional *float64
	status      *string
	linked      *big.Int
	related     *big.Int
	observation *string
	category    *string
	nature      *string
	origin      *string
	inclusion   time.Time
}

func (c *carry) absorb(tx domain.CanonicalTransaction) {
	if tx.ClosingBalance != nil {
		c.closing = tx.ClosingBalance
	}
	if tx.OpeningBalance != nil {
		c.opening = tx.OpeningBalance
	}
	if tx.ProvisionalBalance != nil {
		c.provisional = tx.ProvisionalBalance
	}
	if tx.Status != nil {
		c.status = tx.Status
	}
	if tx.LinkedTransactionID != nil {
		c.linked = tx.LinkedTransactionID
	}
	if tx.RelatedTransactionID != nil {
		c.related = tx.RelatedTransactionID
	}
	if tx.Observation != nil {
		c.observation = tx.Observation
	}
	if tx.CategoryCode != nil {
		c.category = tx.CategoryCode
	}
	if tx.NatureFlag != nil {
		c.nature = tx.NatureFlag
	}
	if tx.Origin != nil {
		c.origin = tx.Origin
	}
	if !tx.InclusionTimestamp.IsZero() {
		c.inclusion = tx.InclusionTimestamp
	}
}

// AssembleBalances builds one ClosingBalanceRecord per cell. A day with a
// transaction takes that transaction's values; other days carry the last known
// values of the same (account, sub-ledger, period), falling back to the
// period's opening row balances and then to zero. The result follows the
// order of cells.
func AssembleBalances(cells []domain.DayCell, txs []domain.CanonicalTransaction) []domain.ClosingBalanceRecord {
	last := lastOfDay(txs)
	openings := openingRows(txs)

	scan := make([]int, len(cells))
	for i := range scan {
		scan[i] = i
	}
	sort.SliceStable(scan, func(a, b int) bool {
		x, y := cells[scan[a]], cells[scan[b]]
		if x.AccountID != y.AccountID {
			return x.AccountID < y.AccountID
		}
		if x.SubLedgerID != y.SubLedgerID {
			return x.SubLedgerID < y.SubLedgerID
		}
		if c := compareDate(x.PeriodStart, y.PeriodStart); c != 0 {
			return c < 0
		}
		return compareDate(x.CalendarDay, y.CalendarDay) < 0
	})

	records := make([]domain.ClosingBalanceRecord, len(cells))
	state := make(map[carryKey]*carry)

	for _, i := range scan {
		cell := cells[i]
		ck := carryKey{account: cell.AccountID, sub: cell.SubLedgerID, start: cell.PeriodStart}
		c, ok := state[ck]
		if !ok {
			c = &carry{}
			state[ck] = c
		}

		tx, moved := last[cellKey{account: cell.AccountID, start: cell.PeriodStart, sub: cell.SubLedgerID, day: cell.CalendarDay}]
		if moved {
			c.absorb(tx)
		}

		var seedClosing, seedOpening float64
		if open, ok := openings[ck]; ok {
			seedClosing = floatOr(open.ClosingBalance, 0)
			seedOpening = floatOr(open.OpeningBalance, 0)
		}

		rec := domain.ClosingBalanceRecord{
			DayCell:             cell,
			HasMovement:         moved,
			ClosingBalance:      floatOr(c.closing, seedClosing),
			OpeningBalanceOfDay: floatOr(c.opening, seedOpening),
			DocumentValue:       0,
			ProvisionalBalance:  c.provisional,
			CategoryCode:        c.category,
			NatureFlag:          c.nature,
			Origin:              c.origin,
			InclusionTimestamp:  c.inclusion,
		}
		if moved {
			rec.Status = c.status
			rec.LinkedTransactionID = c.linked
			rec.RelatedTransactionID = c.related
			rec.Observation = c.observation
		}
		records[i] = rec
	}
	return records
}
