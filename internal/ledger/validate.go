package ledger

import (
	"fmt"
	"sort"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/daily-balance/internal/domain"
)

// Diagnostic check names.
const (
	CheckDuplicateSequence = "duplicate_day_sequence"
	CheckSequenceGap       = "day_sequence_gap"
	CheckMissingDays       = "missing_closing_days"
	CheckDuplicateDays     = "duplicate_closing_days"
	CheckTransactionCount  = "transaction_count_mismatch"
)

// Diagnostic is a non-fatal finding about a reconciled table.
type Diagnostic struct {
	Check       string     `json:"check"`
	AccountID   string     `json:"account_id,omitempty"`
	SubLedgerID string     `json:"sub_ledger_id,omitempty"`
	Day         civil.Date `json:"day,omitempty"`
	Message     string     `json:"message"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s", d.Check, d.Message)
}

// Validate checks a reconciled table: day sequences of every
// (account, sub-ledger, day) run 1..N without repeats, every sub-ledger has
// exactly one closing row per day of each of its account's periods, and the number of
// transaction rows equals wantTransactions. A negative wantTransactions skips
// the last check.
func Validate(rows []domain.DailyBalanceRow, periods []domain.AccountPeriod, wantTransactions int) []Diagnostic {
	var diags []Diagnostic
	diags = append(diags, checkSequences(rows)...)
	diags = append(diags, checkCompleteness(rows, periods)...)

	if wantTransactions >= 0 {
		got := 0
		for _, r := range rows {
			if r.Kind == domain.RowKindTransaction {
				got++
			}
		}
		if got != wantTransactions {
			diags = append(diags, Diagnostic{
				Check:   CheckTransactionCount,
				Message: fmt.Sprintf("found %d transaction rows, want %d", got, wantTransactions),
			})
		}
	}
	return diags
}

func checkSequences(rows []domain.DailyBalanceRow) []Diagnostic {
	groups := make(map[dayGroup][]int)
	var keys []dayGroup
	for _, r := range rows {
		if r.Kind != domain.RowKindTransaction || r.DaySequence <= domain.OpeningSequence {
			continue
		}
		g := dayGroup{account: r.AccountID, sub: r.SubLedgerID, day: r.EffectiveDate}
		if _, ok := groups[g]; !ok {
			keys = append(keys, g)
		}
		groups[g] = append(groups[g], r.DaySequence)
	}

	var diags []Diagnostic
	for _, g := range keys {
		seqs := groups[g]
		sort.Ints(seqs)
		for i, s := range seqs {
			if i > 0 && seqs[i-1] == s {
				diags = append(diags, Diagnostic{
					Check:       CheckDuplicateSequence,
					AccountID:   g.account,
					SubLedgerID: g.sub,
					Day:         g.day,
					Message:     fmt.Sprintf("day sequence %d appears more than once", s),
				})
				break
			}
			if s != i+1 {
				diags = append(diags, Diagnostic{
					Check:       CheckSequenceGap,
					AccountID:   g.account,
					SubLedgerID: g.sub,
					Day:         g.day,
					Message:     fmt.Sprintf("day sequence %d found at position %d", s, i+1),
				})
				break
			}
		}
	}
	return diags
}

func checkCompleteness(rows []domain.DailyBalanceRow, periods []domain.AccountPeriod) []Diagnostic {
	type subKey struct{ account, sub string }
	subs := make(map[subKey]bool)
	var subOrder []subKey
	closing := make(map[cellKey]int)

	for _, r := range rows {
		k := subKey{account: r.AccountID, sub: r.SubLedgerID}
		if r.Kind == domain.RowKindTransaction && !subs[k] {
			subs[k] = true
			subOrder = append(subOrder, k)
		}
		if r.Kind == domain.RowKindClosingBalance {
			closing[cellKey{account: r.AccountID, start: r.PeriodStart, sub: r.SubLedgerID, day: r.CalendarDay}]++
		}
	}

	byAccount := periodsByAccount(periods)
	var diags []Diagnostic
	for _, s := range subOrder {
		for _, p := range byAccount[s.account] {
			missing, repeated := 0, 0
			var firstMissing, firstRepeated civil.Date
			for d := 0; d < p.Days(); d++ {
				day := p.PeriodStart.AddDays(d)
				switch n := closing[cellKey{account: s.account, start: p.PeriodStart, sub: s.sub, day: day}]; {
				case n == 0:
					if missing == 0 {
						firstMissing = day
					}
					missing++
				case n > 1:
					if repeated == 0 {
						firstRepeated = day
					}
					repeated++
				}
			}
			if missing > 0 {
				diags = append(diags, Diagnostic{
					Check:       CheckMissingDays,
					AccountID:   s.account,
					SubLedgerID: s.sub,
					Day:         firstMissing,
					Message:     fmt.Sprintf("%d of %d days without a closing row in period starting %s", missing, p.Days(), p.PeriodStart),
				})
			}
			if repeated > 0 {
				diags = append(diags, Diagnostic{
					Check:       CheckDuplicateDays,
					AccountID:   s.account,
					SubLedgerID: s.sub,
					Day:         firstRepeated,
					Message:     fmt.Sprintf("%d of %d days with more than one closing row in period starting %s", repeated, p.Days(), p.PeriodStart),
				})
			}
		}
	}
	return diags
}
