package ledger

import (
	"sort"
	"strings"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/daily-balance/internal/domain"
)

// IsPlaceholder reports whether a raw row is an opening-balance placeholder.
func IsPlaceholder(r domain.RawLedgerRow) bool {
	return r.CustomerDescription != nil &&
		strings.ToUpper(strings.TrimSpace(*r.CustomerDescription)) == domain.PlaceholderDescription
}

// Canonicalize drops placeholder rows, normalizes text fields, resolves the
// effective date and description, and numbers transactions within each
// (account, sub-ledger, effective day). It returns the canonical rows in input
// order and the number of placeholders dropped.
func Canonicalize(rows []domain.RawLedgerRow) ([]domain.CanonicalTransaction, int) {
	txs := make([]domain.CanonicalTransaction, 0, len(rows))
	dropped := 0

	for _, r := range rows {
		if IsPlaceholder(r) {
			dropped++
			continue
		}
		txs = append(txs, canonical(r))
	}

	assignDaySequence(txs)
	return txs, dropped
}

func canonical(r domain.RawLedgerRow) domain.CanonicalTransaction {
	desc := upper(r.CustomerDescription)
	tx := domain.CanonicalTransaction{
		Index:                r.Index,
		AccountID:            deref(r.AccountID),
		SubLedgerID:          deref(r.SubLedgerID),
		SubLedgerType:        upper(r.SubLedgerType),
		SubLedgerDescription: upper(r.SubLedgerDescription),
		Description:          desc,
		EffectiveDescription: desc,
		PeriodStart:          r.PeriodStart,
		PeriodEnd:            r.PeriodEnd,
		PostingDate:          r.PostingDate,
		EffectiveDate:        r.PostingDate,
		InclusionTimestamp:   r.InclusionTimestamp,
		ClosingBalance:       r.ClosingBalance,
		OpeningBalance:       r.OpeningBalance,
		DocumentValue:        r.DocumentValue,
		ProvisionalBalance:   r.ProvisionalBalance,
		Status:               upper(r.Status),
		LinkedTransactionID:  r.LinkedTransactionID,
		RelatedTransactionID: r.RelatedTransactionID,
		Observation:          upper(r.Observation),
		CategoryCode:         upper(r.CategoryCode),
		NatureFlag:           upper(r.NatureFlag),
		Origin:               upper(r.Origin),
	}

	if desc != nil && *desc == domain.PreviousBalanceDescription {
		opening := domain.PeriodOpeningDescription
		tx.EffectiveDescription = &opening
		tx.EffectiveDate = r.PeriodStart
		tx.DaySequence = domain.OpeningSequence
	}
	return tx
}

type dayGroup struct {
	account string
	sub     string
	day     civil.Date
}

// assignDaySequence numbers non-opening transactions 1..N within each
// (account, sub-ledger, effective day), ordered by linked id ascending with
// nulls last, then by input index. Opening rows keep sequence 0.
func assignDaySequence(txs []domain.CanonicalTransaction) {
	order := make([]int, 0, len(txs))
	for i := range txs {
		if txs[i].IsPeriodOpening() {
			continue
		}
		order = append(order, i)
	}

	sort.SliceStable(order, func(a, b int) bool {
		x, y := &txs[order[a]], &txs[order[b]]
		if x.AccountID != y.AccountID {
			return x.AccountID < y.AccountID
		}
		if x.SubLedgerID != y.SubLedgerID {
			return x.SubLedgerID < y.SubLedgerID
		}
		if c := compareDate(x.EffectiveDate, y.EffectiveDate); c != 0 {
			return c < 0
		}
		if c := compareID(x.LinkedTransactionID, y.LinkedTransactionID); c != 0 {
			return c < 0
		}
		return x.Index < y.Index
	})

	var prev dayGroup
	seq := 0
	for n, i := range order {
		g := dayGroup{account: txs[i].AccountID, sub: txs[i].SubLedgerID, day: txs[i].EffectiveDate}
		if n == 0 || g != prev {
			seq = 0
			prev = g
		}
		seq++
		txs[i].DaySequence = seq
	}
}

func upper(s *string) *string {
	if s == nil {
		return nil
	}
	return normalizeText(*s)
}
