package ledger

import (
	"sort"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/daily-balance/internal/domain"
)

type periodKey struct {
	account string
	start   civil.Date
}

// DiscoverPeriods returns one AccountPeriod per (account, period start) with the
// latest period end observed for it. Placeholder rows take part; rows without a
// usable start or end do not. The result is sorted by account then start.
func DiscoverPeriods(rows []domain.RawLedgerRow) []domain.AccountPeriod {
	ends := make(map[periodKey]civil.Date)
	for _, r := range rows {
		if r.PeriodStart.IsZero() || r.PeriodEnd.IsZero() {
			continue
		}
		k := periodKey{account: deref(r.AccountID), start: r.PeriodStart}
		if cur, ok := ends[k]; !ok || r.PeriodEnd.After(cur) {
			ends[k] = r.PeriodEnd
		}
	}

	periods := make([]domain.AccountPeriod, 0, len(ends))
	for k, end := range ends {
		periods = append(periods, domain.AccountPeriod{
			AccountID:   k.account,
			PeriodStart: k.start,
			PeriodEnd:   end,
		})
	}
	sort.Slice(periods, func(i, j int) bool {
		if periods[i].AccountID != periods[j].AccountID {
			return periods[i].AccountID < periods[j].AccountID
		}
		return periods[i].PeriodStart.Before(periods[j].PeriodStart)
	})
	return periods
}

// periodsByAccount indexes periods by account, keeping their order.
func periodsByAccount(periods []domain.AccountPeriod) map[string][]domain.AccountPeriod {
	out := make(map[string][]domain.AccountPeriod)
	for _, p := range periods {
		out[p.AccountID] = append(out[p.AccountID], p)
	}
	return out
}
