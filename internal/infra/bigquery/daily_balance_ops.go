package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"

	"github.com/dvloznov/daily-balance/internal/domain"
	"github.com/dvloznov/daily-balance/internal/logger"
)

// InsertDailyBalancesWithClient streams reconciled rows into the daily balance
// table in batches, tagging each row with the run id.
func InsertDailyBalancesWithClient(ctx context.Context, client *bigquery.Client, tables Tables, runID string, rows []domain.DailyBalanceRow) error {
	if len(rows) == 0 {
		return nil
	}
	log := logger.FromContext(ctx)

	project := tables.ProjectID
	if project == "" {
		project = client.Project()
	}
	inserter := client.DatasetInProject(project, tables.Dataset).Table(tables.DailyBalance).Inserter()

	for _, b := range batches(len(rows), tables.batchSize()) {
		batch := make([]*DailyBalanceRow, 0, b.end-b.start)
		for _, r := range rows[b.start:b.end] {
			batch = append(batch, NewDailyBalanceRow(runID, r))
		}
		if err := inserter.Put(ctx, batch); err != nil {
			return fmt.Errorf("InsertDailyBalances: inserting rows %d-%d: %w", b.start, b.end, err)
		}
		log.Debug().
			Str("run_id", runID).
			Int("from", b.start).
			Int("to", b.end).
			Msg("Inserted daily balance batch")
	}
	return nil
}

type span struct {
	start, end int
}

// batches splits n items into consecutive spans of at most size items.
func batches(n, size int) []span {
	if size < 1 {
		size = 1
	}
	var out []span
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		out = append(out, span{start: start, end: end})
	}
	return out
}
