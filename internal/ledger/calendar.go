package ledger

import (
	"sort"

	"github.com/dvloznov/daily-balance/internal/domain"
)

// SubLedgers returns one sub-ledger per (account, sub-ledger id) of the
// canonical stream, sorted. Type and description are the last non-null values
// seen in input order, so a renamed sub-ledger still gets a single calendar.
func SubLedgers(txs []domain.CanonicalTransaction) []domain.SubLedger {
	type key struct{ account, id string }

	order := make([]int, len(txs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return txs[order[a]].Index < txs[order[b]].Index })

	byKey := make(map[key]int)
	var subs []domain.SubLedger
	for _, i := range order {
		tx := txs[i]
		k := key{account: tx.AccountID, id: tx.SubLedgerID}
		n, ok := byKey[k]
		if !ok {
			n = len(subs)
			byKey[k] = n
			subs = append(subs, domain.SubLedger{AccountID: tx.AccountID, ID: tx.SubLedgerID})
		}
		if tx.SubLedgerType != nil {
			subs[n].Type = tx.SubLedgerType
		}
		if tx.SubLedgerDescription != nil {
			subs[n].Description = tx.SubLedgerDescription
		}
	}

	sort.Slice(subs, func(i, j int) bool {
		if subs[i].AccountID != subs[j].AccountID {
			return subs[i].AccountID < subs[j].AccountID
		}
		return subs[i].ID < subs[j].ID
	})
	return subs
}

// ExpandCalendar crosses every sub-ledger with every period of its account and
// emits one DayCell per day. Periods with unusable bounds produce no cells.
func ExpandCalendar(subs []domain.SubLedger, periods []domain.AccountPeriod) []domain.DayCell {
	byAccount := periodsByAccount(periods)

	total := 0
	for _, s := range subs {
		for _, p := range byAccount[s.AccountID] {
			total += p.Days()
		}
	}

	cells := make([]domain.DayCell, 0, total)
	for _, s := range subs {
		for _, p := range byAccount[s.AccountID] {
			n := p.Days()
			for d := 0; d < n; d++ {
				cells = append(cells, domain.DayCell{
					AccountID:            s.AccountID,
					SubLedgerID:          s.ID,
					SubLedgerType:        s.Type,
					SubLedgerDescription: s.Description,
					PeriodStart:          p.PeriodStart,
					PeriodEnd:            p.PeriodEnd,
					CalendarDay:          p.PeriodStart.AddDays(d),
				})
			}
		}
	}
	return cells
}
