package parquetio

import (
	"bytes"
	"context"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/dvloznov/daily-balance/internal/ledger"
)

// DecodeRawTable reads a parquet file into a generic table. Cells are mapped
// by column type: text to string, integers to int64, floats to float64, dates
// to civil.Date, timestamps to time.Time in UTC, nulls to nil. Other types are
// rendered as text.
func DecodeRawTable(ctx context.Context, data []byte) (*ledger.Table, error) {
	tbl, err := pqarrow.ReadTable(ctx, bytes.NewReader(data), nil, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	if err != nil {
		return nil, fmt.Errorf("DecodeRawTable: reading parquet: %w", err)
	}
	defer tbl.Release()

	nCols := int(tbl.NumCols())
	nRows := int(tbl.NumRows())

	out := &ledger.Table{
		Columns: make([]string, nCols),
		Rows:    make([][]any, nRows),
	}
	for r := range out.Rows {
		out.Rows[r] = make([]any, nCols)
	}

	for c := 0; c < nCols; c++ {
		out.Columns[c] = tbl.Schema().Field(c).Name

		row := 0
		for _, chunk := range tbl.Column(c).Data().Chunks() {
			for j := 0; j < chunk.Len(); j++ {
				out.Rows[row][c] = cellValue(chunk, j)
				row++
			}
		}
	}
	return out, nil
}

func cellValue(arr arrow.Array, i int) any {
	if arr.IsNull(i) {
		return nil
	}

	switch a := arr.(type) {
	case *array.String:
		return a.Value(i)
	case *array.LargeString:
		return a.Value(i)
	case *array.Binary:
		return string(a.Value(i))
	case *array.Int8:
		return int64(a.Value(i))
	case *array.Int16:
		return int64(a.Value(i))
	case *array.Int32:
		return int64(a.Value(i))
	case *array.Int64:
		return a.Value(i)
	case *array.Uint8:
		return int64(a.Value(i))
	case *array.Uint16:
		return int64(a.Value(i))
	case *array.Uint32:
		return int64(a.Value(i))
	case *array.Float32:
		return float64(a.Value(i))
	case *array.Float64:
		return a.Value(i)
	case *array.Boolean:
		return a.Value(i)
	case *array.Date32:
		return civil.DateOf(a.Value(i).ToTime())
	case *array.Date64:
		return civil.DateOf(a.Value(i).ToTime())
	case *array.Timestamp:
		unit := a.DataType().(*arrow.TimestampType).Unit
		return a.Value(i).ToTime(unit).UTC()
	}
	return arr.ValueStr(i)
}
