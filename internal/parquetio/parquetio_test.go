package parquetio

import (
	"bytes"
	"context"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/daily-balance/internal/domain"
	"github.com/dvloznov/daily-balance/internal/ledger"
)

// writeRawParquet builds a small extract the way the warehouse export does:
// text dates, numeric balances and a float-typed linked id column.
func writeRawParquet(t *testing.T) []byte {
	t.Helper()
	pool := memory.NewGoAllocator()
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "empresa_id", Type: arrow.BinaryTypes.String},
		{Name: "ncodcc", Type: arrow.PrimitiveTypes.Int64},
		{Name: "cdescliente", Type: arrow.BinaryTypes.String},
		{Name: "dperiodoinicial", Type: arrow.BinaryTypes.String},
		{Name: "dperiodofinal", Type: arrow.BinaryTypes.String},
		{Name: "ddatalancamento", Type: arrow.FixedWidthTypes.Date32, Nullable: true},
		{Name: "nsaldo", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: "ncodlancamento", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	}, nil)

	rb := array.NewRecordBuilder(pool, schema)
	defer rb.Release()

	posted := arrow.Date32FromTime(time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC))
	rb.Field(0).(*array.StringBuilder).AppendValues([]string{"A1", "A1"}, nil)
	rb.Field(1).(*array.Int64Builder).AppendValues([]int64{7, 7}, nil)
	rb.Field(2).(*array.StringBuilder).AppendValues([]string{"SALDO", "pix"}, nil)
	rb.Field(3).(*array.StringBuilder).AppendValues([]string{"01/01/2025", "01/01/2025"}, nil)
	rb.Field(4).(*array.StringBuilder).AppendValues([]string{"04/01/2025", "03/01/2025"}, nil)
	rb.Field(5).(*array.Date32Builder).AppendNull()
	rb.Field(5).(*array.Date32Builder).Append(posted)
	rb.Field(6).(*array.Float64Builder).AppendNull()
	rb.Field(6).(*array.Float64Builder).Append(100)
	rb.Field(7).(*array.Float64Builder).AppendNull()
	rb.Field(7).(*array.Float64Builder).Append(123456)

	record := rb.NewRecord()
	defer record.Release()

	var buf bytes.Buffer
	w, err := pqarrow.NewFileWriter(schema, &buf, nil, pqarrow.DefaultWriterProps())
	require.NoError(t, err)
	require.NoError(t, w.Write(record))
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestDecodeRawTable(t *testing.T) {
	tbl, err := DecodeRawTable(context.Background(), writeRawParquet(t))
	require.NoError(t, err)

	require.NoError(t, tbl.Validate())
	assert.Equal(t, []string{"empresa_id", "ncodcc", "cdescliente", "dperiodoinicial", "dperiodofinal", "ddatalancamento", "nsaldo", "ncodlancamento"}, tbl.Columns)
	require.Len(t, tbl.Rows, 2)

	assert.Equal(t, int64(7), tbl.Rows[0][1])
	assert.Nil(t, tbl.Rows[0][5])
	assert.Equal(t, civil.Date{Year: 2025, Month: time.January, Day: 2}, tbl.Rows[1][5])
	assert.Equal(t, 100.0, tbl.Rows[1][6])
}

func TestDecodeRawTable_NotParquet(t *testing.T) {
	_, err := DecodeRawTable(context.Background(), []byte("definitely,not,parquet\n"))
	assert.Error(t, err)
}

func TestReconciledRoundTrip(t *testing.T) {
	ctx := context.Background()
	tbl, err := DecodeRawTable(ctx, writeRawParquet(t))
	require.NoError(t, err)

	res, err := ledger.NewEngine(ledger.Options{Workers: 1}).Reconcile(ctx, tbl)
	require.NoError(t, err)
	// One transaction plus four closing days; the placeholder widened the period.
	require.Len(t, res.Rows, 5)

	data, err := EncodeDailyBalance(res.Rows)
	require.NoError(t, err)

	back, err := DecodeDailyBalance(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, res.Rows, back)

	tx := back[1]
	assert.Equal(t, domain.RowKindTransaction, tx.Kind)
	assert.Equal(t, "7", tx.SubLedgerID)
	require.NotNil(t, tx.LinkedTransactionID)
	assert.Equal(t, "123456", *tx.LinkedTransactionID)
}

func TestEncodeDailyBalance_Empty(t *testing.T) {
	data, err := EncodeDailyBalance(nil)
	require.NoError(t, err)

	back, err := DecodeDailyBalance(context.Background(), data)
	require.NoError(t, err)
	assert.Empty(t, back)
}

func TestEncodeDailyBalance_Timestamps(t *testing.T) {
	at := time.Date(2025, 3, 4, 5, 6, 7, 8000, time.UTC)
	closing := 1.5
	rows := []domain.DailyBalanceRow{{
		Kind:               domain.RowKindClosingBalance,
		AccountID:          "A1",
		SubLedgerID:        "CC1",
		CalendarDay:        civil.Date{Year: 2025, Month: time.March, Day: 4},
		DaySequence:        domain.ClosingSequence,
		InclusionTimestamp: at,
		ClosingBalance:     &closing,
	}}

	data, err := EncodeDailyBalance(rows)
	require.NoError(t, err)
	back, err := DecodeDailyBalance(context.Background(), data)
	require.NoError(t, err)
	require.Len(t, back, 1)

	assert.True(t, at.Equal(back[0].InclusionTimestamp))
	assert.True(t, back[0].PeriodStart.IsZero())
	assert.Equal(t, domain.ClosingSequence, back[0].DaySequence)
}
