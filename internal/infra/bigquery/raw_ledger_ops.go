package bigquery

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/daily-balance/internal/ledger"
)

// QueryRawLedgerWithClient reads the whole raw ledger extract table into a
// generic table, keeping the warehouse column names.
func QueryRawLedgerWithClient(ctx context.Context, client *bigquery.Client, tables Tables) (*ledger.Table, error) {
	q := client.Query(fmt.Sprintf("SELECT * FROM %s", tables.ref(tables.RawLedger)))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QueryRawLedger: query read: %w", err)
	}

	out := &ledger.Table{}
	for {
		var values []bigquery.Value
		err := it.Next(&values)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QueryRawLedger: iterating rows: %w", err)
		}

		if out.Columns == nil {
			out.Columns = columnNames(it.Schema)
		}
		row := make([]any, len(values))
		for i, v := range values {
			row[i] = cellFromValue(v)
		}
		out.Rows = append(out.Rows, row)
	}

	if out.Columns == nil {
		out.Columns = columnNames(it.Schema)
	}
	return out, nil
}

func columnNames(schema bigquery.Schema) []string {
	names := make([]string, len(schema))
	for i, f := range schema {
		names[i] = f.Name
	}
	return names
}

// cellFromValue maps BigQuery values onto the cell types the ledger decoder understands.
func cellFromValue(v bigquery.Value) any {
	switch val := v.(type) {
	case nil:
		return nil
	case civil.DateTime:
		return val.In(time.UTC)
	case civil.Time:
		return val.String()
	case *big.Rat:
		if val == nil {
			return nil
		}
		if val.IsInt() {
			return val.Num().String()
		}
		return val.FloatString(9)
	case []bigquery.Value:
		return fmt.Sprint(val)
	}
	return v
}
