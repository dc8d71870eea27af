package parquetio

import (
	"bytes"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/dvloznov/daily-balance/internal/domain"
)

// Output column names.
const (
	ColRowKind              = "row_kind"
	ColAccountID            = "account_id"
	ColSubLedgerID          = "sub_ledger_id"
	ColSubLedgerType        = "sub_ledger_type"
	ColSubLedgerDescription = "sub_ledger_description"
	ColCustomerDescription  = "customer_description"
	ColPeriodStart          = "period_start"
	ColPeriodEnd            = "period_end"
	ColPostingDate          = "posting_date"
	ColEffectiveDate        = "effective_date"
	ColCalendarDay          = "calendar_day"
	ColDaySequence          = "day_sequence"
	ColInclusionDate        = "inclusion_date"
	ColClosingBalance       = "closing_balance"
	ColOpeningBalance       = "opening_balance"
	ColDocumentValue        = "document_value"
	ColProvisionalBalance   = "provisional_balance"
	ColStatus               = "status"
	ColLinkedTransactionID  = "linked_transaction_id"
	ColRelatedTransactionID = "related_transaction_id"
	ColObservation          = "observation"
	ColCategoryCode         = "category_code"
	ColNatureFlag           = "nature_flag"
	ColOrigin               = "origin"
)

// DailyBalanceSchema is the arrow schema of the reconciled table.
var DailyBalanceSchema = arrow.NewSchema([]arrow.Field{
	{Name: ColRowKind, Type: arrow.BinaryTypes.String},
	{Name: ColAccountID, Type: arrow.BinaryTypes.String},
	{Name: ColSubLedgerID, Type: arrow.BinaryTypes.String},
	{Name: ColSubLedgerType, Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: ColSubLedgerDescription, Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: ColCustomerDescription, Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: ColPeriodStart, Type: arrow.FixedWidthTypes.Date32, Nullable: true},
	{Name: ColPeriodEnd, Type: arrow.FixedWidthTypes.Date32, Nullable: true},
	{Name: ColPostingDate, Type: arrow.FixedWidthTypes.Date32, Nullable: true},
	{Name: ColEffectiveDate, Type: arrow.FixedWidthTypes.Date32, Nullable: true},
	{Name: ColCalendarDay, Type: arrow.FixedWidthTypes.Date32, Nullable: true},
	{Name: ColDaySequence, Type: arrow.PrimitiveTypes.Int64},
	{Name: ColInclusionDate, Type: arrow.FixedWidthTypes.Timestamp_us, Nullable: true},
	{Name: ColClosingBalance, Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: ColOpeningBalance, Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: ColDocumentValue, Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: ColProvisionalBalance, Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: ColStatus, Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: ColLinkedTransactionID, Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: ColRelatedTransactionID, Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: ColObservation, Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: ColCategoryCode, Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: ColNatureFlag, Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: ColOrigin, Type: arrow.BinaryTypes.String, Nullable: true},
}, nil)

// EncodeDailyBalance writes reconciled rows as a single-row-group parquet file.
// An empty slice produces a valid file with the schema and no rows.
func EncodeDailyBalance(rows []domain.DailyBalanceRow) ([]byte, error) {
	pool := memory.NewGoAllocator()

	rb := array.NewRecordBuilder(pool, DailyBalanceSchema)
	defer rb.Release()

	str := func(i int) *array.StringBuilder { return rb.Field(i).(*array.StringBuilder) }
	date := func(i int) *array.Date32Builder { return rb.Field(i).(*array.Date32Builder) }
	num := func(i int) *array.Float64Builder { return rb.Field(i).(*array.Float64Builder) }

	for _, r := range rows {
		str(0).Append(string(r.Kind))
		str(1).Append(r.AccountID)
		str(2).Append(r.SubLedgerID)
		appendString(str(3), r.SubLedgerType)
		appendString(str(4), r.SubLedgerDescription)
		appendString(str(5), r.CustomerDescription)
		appendDate(date(6), r.PeriodStart)
		appendDate(date(7), r.PeriodEnd)
		appendDate(date(8), r.PostingDate)
		appendDate(date(9), r.EffectiveDate)
		appendDate(date(10), r.CalendarDay)
		rb.Field(11).(*array.Int64Builder).Append(int64(r.DaySequence))
		appendTimestamp(rb.Field(12).(*array.TimestampBuilder), r.InclusionTimestamp)
		appendFloat(num(13), r.ClosingBalance)
		appendFloat(num(14), r.OpeningBalance)
		appendFloat(num(15), r.DocumentValue)
		appendFloat(num(16), r.ProvisionalBalance)
		appendString(str(17), r.Status)
		appendString(str(18), r.LinkedTransactionID)
		appendString(str(19), r.RelatedTransactionID)
		appendString(str(20), r.Observation)
		appendString(str(21), r.CategoryCode)
		appendString(str(22), r.NatureFlag)
		appendString(str(23), r.Origin)
	}

	record := rb.NewRecord()
	defer record.Release()

	var buf bytes.Buffer
	writer, err := pqarrow.NewFileWriter(DailyBalanceSchema, &buf, nil, pqarrow.DefaultWriterProps())
	if err != nil {
		return nil, fmt.Errorf("EncodeDailyBalance: creating parquet writer: %w", err)
	}

	if err := writer.Write(record); err != nil {
		writer.Close()
		return nil, fmt.Errorf("EncodeDailyBalance: writing parquet record: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("EncodeDailyBalance: closing parquet writer: %w", err)
	}

	return buf.Bytes(), nil
}

func appendString(b *array.StringBuilder, s *string) {
	if s == nil {
		b.AppendNull()
		return
	}
	b.Append(*s)
}

func appendFloat(b *array.Float64Builder, f *float64) {
	if f == nil {
		b.AppendNull()
		return
	}
	b.Append(*f)
}

func appendDate(b *array.Date32Builder, d civil.Date) {
	if d.IsZero() {
		b.AppendNull()
		return
	}
	b.Append(arrow.Date32FromTime(d.In(time.UTC)))
}

func appendTimestamp(b *array.TimestampBuilder, t time.Time) {
	if t.IsZero() {
		b.AppendNull()
		return
	}
	b.Append(arrow.Timestamp(t.UnixMicro()))
}
