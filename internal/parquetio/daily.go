package parquetio

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/daily-balance/internal/domain"
)

// DecodeDailyBalance reads a file written by EncodeDailyBalance back into rows.
func DecodeDailyBalance(ctx context.Context, data []byte) ([]domain.DailyBalanceRow, error) {
	tbl, err := DecodeRawTable(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("DecodeDailyBalance: %w", err)
	}

	pos := make(map[string]int, len(tbl.Columns))
	for i, c := range tbl.Columns {
		pos[c] = i
	}
	for _, f := range DailyBalanceSchema.Fields() {
		if _, ok := pos[f.Name]; !ok {
			return nil, fmt.Errorf("DecodeDailyBalance: missing column %q", f.Name)
		}
	}

	rows := make([]domain.DailyBalanceRow, len(tbl.Rows))
	for i, cells := range tbl.Rows {
		get := func(name string) any { return cells[pos[name]] }

		seq, err := toInt(get(ColDaySequence))
		if err != nil {
			return nil, fmt.Errorf("DecodeDailyBalance: row %d: %w", i, err)
		}

		rows[i] = domain.DailyBalanceRow{
			Kind:                 domain.RowKind(textValue(get(ColRowKind))),
			AccountID:            textValue(get(ColAccountID)),
			SubLedgerID:          textValue(get(ColSubLedgerID)),
			SubLedgerType:        textPtr(get(ColSubLedgerType)),
			SubLedgerDescription: textPtr(get(ColSubLedgerDescription)),
			CustomerDescription:  textPtr(get(ColCustomerDescription)),
			PeriodStart:          dateValue(get(ColPeriodStart)),
			PeriodEnd:            dateValue(get(ColPeriodEnd)),
			PostingDate:          dateValue(get(ColPostingDate)),
			EffectiveDate:        dateValue(get(ColEffectiveDate)),
			CalendarDay:          dateValue(get(ColCalendarDay)),
			DaySequence:          seq,
			InclusionTimestamp:   timeValue(get(ColInclusionDate)),
			ClosingBalance:       floatPtr(get(ColClosingBalance)),
			OpeningBalance:       floatPtr(get(ColOpeningBalance)),
			DocumentValue:        floatPtr(get(ColDocumentValue)),
			ProvisionalBalance:   floatPtr(get(ColProvisionalBalance)),
			Status:               textPtr(get(ColStatus)),
			LinkedTransactionID:  textPtr(get(ColLinkedTransactionID)),
			RelatedTransactionID: textPtr(get(ColRelatedTransactionID)),
			Observation:          textPtr(get(ColObservation)),
			CategoryCode:         textPtr(get(ColCategoryCode)),
			NatureFlag:           textPtr(get(ColNatureFlag)),
			Origin:               textPtr(get(ColOrigin)),
		}
	}
	return rows, nil
}

func textValue(v any) string {
	s, _ := v.(string)
	return s
}

func textPtr(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}

func floatPtr(v any) *float64 {
	f, ok := v.(float64)
	if !ok {
		return nil
	}
	return &f
}

func dateValue(v any) civil.Date {
	d, _ := v.(civil.Date)
	return d
}

func timeValue(v any) time.Time {
	t, _ := v.(time.Time)
	return t
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int64:
		return int(n), nil
	case string:
		return strconv.Atoi(n)
	case nil:
		return 0, nil
	}
	return 0, fmt.Errorf("unexpected day_sequence type %T", v)
}
