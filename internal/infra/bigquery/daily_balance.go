package bigquery

import (
	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"

	"github.com/dvloznov/daily-balance/internal/domain"
)

type DailyBalanceRow struct {
	RunID   string `bigquery:"run_id"`   // REQUIRED
	RowKind string `bigquery:"row_kind"` // REQUIRED

	AccountID            string              `bigquery:"account_id"`             // REQUIRED
	SubLedgerID          string              `bigquery:"sub_ledger_id"`          // REQUIRED
	SubLedgerType        bigquery.NullString `bigquery:"sub_ledger_type"`        // NULLABLE
	SubLedgerDescription bigquery.NullString `bigquery:"sub_ledger_description"` // NULLABLE
	CustomerDescription  bigquery.NullString `bigquery:"customer_description"`   // NULLABLE

	PeriodStart   bigquery.NullDate `bigquery:"period_start"`   // NULLABLE
	PeriodEnd     bigquery.NullDate `bigquery:"period_end"`     // NULLABLE
	PostingDate   bigquery.NullDate `bigquery:"posting_date"`   // NULLABLE
	EffectiveDate bigquery.NullDate `bigquery:"effective_date"` // NULLABLE
	CalendarDay   bigquery.NullDate `bigquery:"calendar_day"`   // NULLABLE
	DaySequence   int64             `bigquery:"day_sequence"`   // REQUIRED

	InclusionTS bigquery.NullTimestamp `bigquery:"inclusion_ts"` // NULLABLE

	ClosingBalance     bigquery.NullFloat64 `bigquery:"closing_balance"`     // NULLABLE
	OpeningBalance     bigquery.NullFloat64 `bigquery:"opening_balance"`     // NULLABLE
	DocumentValue      bigquery.NullFloat64 `bigquery:"document_value"`      // NULLABLE
	ProvisionalBalance bigquery.NullFloat64 `bigquery:"provisional_balance"` // NULLABLE

	Status               bigquery.NullString `bigquery:"status"`                 // NULLABLE
	LinkedTransactionID  bigquery.NullString `bigquery:"linked_transaction_id"`  // NULLABLE
	RelatedTransactionID bigquery.NullString `bigquery:"related_transaction_id"` // NULLABLE
	Observation          bigquery.NullString `bigquery:"observation"`            // NULLABLE
	CategoryCode         bigquery.NullString `bigquery:"category_code"`          // NULLABLE
	NatureFlag           bigquery.NullString `bigquery:"nature_flag"`            // NULLABLE
	Origin               bigquery.NullString `bigquery:"origin"`                 // NULLABLE
}

// NewDailyBalanceRow converts a reconciled row into its warehouse form.
func NewDailyBalanceRow(runID string, r domain.DailyBalanceRow) *DailyBalanceRow {
	row := &DailyBalanceRow{
		RunID:                runID,
		RowKind:              string(r.Kind),
		AccountID:            r.AccountID,
		SubLedgerID:          r.SubLedgerID,
		SubLedgerType:        nullString(r.SubLedgerType),
		SubLedgerDescription: nullString(r.SubLedgerDescription),
		CustomerDescription:  nullString(r.CustomerDescription),
		PeriodStart:          nullDate(r.PeriodStart),
		PeriodEnd:            nullDate(r.PeriodEnd),
		PostingDate:          nullDate(r.PostingDate),
		EffectiveDate:        nullDate(r.EffectiveDate),
		CalendarDay:          nullDate(r.CalendarDay),
		DaySequence:          int64(r.DaySequence),
		ClosingBalance:       nullFloat(r.ClosingBalance),
		OpeningBalance:       nullFloat(r.OpeningBalance),
		DocumentValue:        nullFloat(r.DocumentValue),
		ProvisionalBalance:   nullFloat(r.ProvisionalBalance),
		Status:               nullString(r.Status),
		LinkedTransactionID:  nullString(r.LinkedTransactionID),
		RelatedTransactionID: nullString(r.RelatedTransactionID),
		Observation:          nullString(r.Observation),
		CategoryCode:         nullString(r.CategoryCode),
		NatureFlag:           nullString(r.NatureFlag),
		Origin:               nullString(r.Origin),
	}
	if !r.InclusionTimestamp.IsZero() {
		row.InclusionTS = bigquery.NullTimestamp{Timestamp: r.InclusionTimestamp, Valid: true}
	}
	return row
}

func nullString(s *string) bigquery.NullString {
	if s == nil {
		return bigquery.NullString{}
	}
	return bigquery.NullString{StringVal: *s, Valid: true}
}

func nullFloat(f *float64) bigquery.NullFloat64 {
	if f == nil {
		return bigquery.NullFloat64{}
	}
	return bigquery.NullFloat64{Float64: *f, Valid: true}
}

func nullDate(d civil.Date) bigquery.NullDate {
	if d.IsZero() {
		return bigquery.NullDate{}
	}
	return bigquery.NullDate{Date: d, Valid: true}
}
