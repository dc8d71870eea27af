package ledger

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotTabular is returned when the input cannot be interpreted as a table at all.
// It is the only fatal input condition of the engine.
var ErrNotTabular = errors.New("input is not a table")

// Table is a flat, column-oriented view of the raw extract as handed over by a
// storage collaborator. Cells hold whatever the reader produced: strings,
// numbers, time.Time, civil.Date or nil.
type Table struct {
	Columns []string
	Rows    [][]any
}

// Len returns the number of rows in the table.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Validate checks the table is well formed: it exists, column names are unique
// and every row has one cell per column.
func (t *Table) Validate() error {
	if t == nil {
		return fmt.Errorf("Validate: nil table: %w", ErrNotTabular)
	}
	if len(t.Columns) == 0 && len(t.Rows) > 0 {
		return fmt.Errorf("Validate: %d rows without columns: %w", len(t.Rows), ErrNotTabular)
	}

	seen := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		key := columnKey(c)
		if seen[key] {
			return fmt.Errorf("Validate: duplicate column %q: %w", c, ErrNotTabular)
		}
		seen[key] = true
	}

	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return fmt.Errorf("Validate: row %d has %d cells, want %d: %w", i, len(row), len(t.Columns), ErrNotTabular)
		}
	}
	return nil
}

// columnIndex maps normalized column names to their position.
func (t *Table) columnIndex() map[string]int {
	idx := make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		idx[columnKey(c)] = i
	}
	return idx
}

func columnKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
