package ledger

import (
	"fmt"

	"github.com/dvloznov/daily-balance/internal/domain"
)

// Field names the logical input columns understood by the engine.
type Field string

const (
	FieldAccountID            Field = "account_id"
	FieldSubLedgerID          Field = "sub_ledger_id"
	FieldSubLedgerType        Field = "sub_ledger_type"
	FieldSubLedgerDescription Field = "sub_ledger_description"
	FieldCustomerDescription  Field = "customer_description"
	FieldPeriodStart          Field = "period_start"
	FieldPeriodEnd            Field = "period_end"
	FieldPostingDate          Field = "posting_date"
	FieldInclusionDate        Field = "inclusion_date"
	FieldClosingBalance       Field = "closing_balance"
	FieldOpeningBalance       Field = "opening_balance"
	FieldDocumentValue        Field = "document_value"
	FieldProvisionalBalance   Field = "provisional_balance"
	FieldStatus               Field = "status"
	FieldLinkedTransactionID  Field = "linked_transaction_id"
	FieldRelatedTransactionID Field = "related_transaction_id"
	FieldObservation          Field = "observation"
	FieldCategoryCode         Field = "category_code"
	FieldNatureFlag           Field = "nature_flag"
	FieldOrigin               Field = "origin"
)

// ColumnSpec declares one input column: the names it may arrive under and
// whether its absence is expected.
type ColumnSpec struct {
	Field   Field
	Aliases []string
	// Optional columns are filled with nulls silently when absent. Missing
	// non-optional columns are also filled with nulls but reported.
	Optional bool
}

// DefaultSchema lists every column the engine reads. Aliases cover the
// warehouse extract naming.
var DefaultSchema = []ColumnSpec{
	{Field: FieldAccountID, Aliases: []string{"empresa_id", "empresa"}},
	{Field: FieldSubLedgerID, Aliases: []string{"ncodcc", "fk_cc"}},
	{Field: FieldSubLedgerType, Aliases: []string{"ccodtipo"}},
	{Field: FieldSubLedgerDescription, Aliases: []string{"cdescricao"}},
	{Field: FieldCustomerDescription, Aliases: []string{"cdescliente", "de_cliente"}},
	{Field: FieldPeriodStart, Aliases: []string{"dperiodoinicial"}},
	{Field: FieldPeriodEnd, Aliases: []string{"dperiodofinal"}},
	{Field: FieldPostingDate, Aliases: []string{"ddatalancamento"}},
	{Field: FieldInclusionDate, Aliases: []string{"cdatainclusao", "inclusion_timestamp"}},
	{Field: FieldClosingBalance, Aliases: []string{"nsaldo"}},
	{Field: FieldOpeningBalance, Aliases: []string{"nsaldoanterior"}},
	{Field: FieldDocumentValue, Aliases: []string{"nvalordocumento"}},
	{Field: FieldProvisionalBalance, Aliases: []string{"nsaldoprovisorio"}, Optional: true},
	{Field: FieldStatus, Aliases: []string{"csituacao"}},
	{Field: FieldLinkedTransactionID, Aliases: []string{"ncodlancamento"}},
	{Field: FieldRelatedTransactionID, Aliases: []string{"ncodlancrelac"}},
	{Field: FieldObservation, Aliases: []string{"cobservacoes"}},
	{Field: FieldCategoryCode, Aliases: []string{"ccodcategoria"}},
	{Field: FieldNatureFlag, Aliases: []string{"cnatureza"}},
	{Field: FieldOrigin, Aliases: []string{"corigem"}},
}

// SchemaReport describes how the table's columns were resolved against a schema.
type SchemaReport struct {
	// Resolved maps each found field to the column name it was read from.
	Resolved map[Field]string
	// Missing lists expected fields that were absent and read as null.
	Missing []Field
	// Defaulted lists optional fields that were absent and read as null.
	Defaulted []Field
}

// DecodeRows resolves the schema against the table header and decodes every
// row. Unknown columns are ignored; cells that fail to parse become null.
func DecodeRows(t *Table, schema []ColumnSpec) ([]domain.RawLedgerRow, SchemaReport, error) {
	if err := t.Validate(); err != nil {
		return nil, SchemaReport{}, fmt.Errorf("DecodeRows: %w", err)
	}
	if schema == nil {
		schema = DefaultSchema
	}

	report := SchemaReport{Resolved: make(map[Field]string, len(schema))}
	header := t.columnIndex()
	pos := make(map[Field]int, len(schema))

	for _, spec := range schema {
		i, name, ok := resolveColumn(header, t.Columns, spec)
		if !ok {
			if spec.Optional {
				report.Defaulted = append(report.Defaulted, spec.Field)
			} else {
				report.Missing = append(report.Missing, spec.Field)
			}
			continue
		}
		pos[spec.Field] = i
		report.Resolved[spec.Field] = name
	}

	rows := make([]domain.RawLedgerRow, len(t.Rows))
	for i, cells := range t.Rows {
		get := func(f Field) any {
			p, ok := pos[f]
			if !ok {
				return nil
			}
			return cells[p]
		}

		rows[i] = domain.RawLedgerRow{
			Index:                i,
			AccountID:            rawText(get(FieldAccountID)),
			SubLedgerID:          rawText(get(FieldSubLedgerID)),
			SubLedgerType:        rawText(get(FieldSubLedgerType)),
			SubLedgerDescription: rawText(get(FieldSubLedgerDescription)),
			CustomerDescription:  rawText(get(FieldCustomerDescription)),
			PeriodStart:          parseDate(get(FieldPeriodStart)),
			PeriodEnd:            parseDate(get(FieldPeriodEnd)),
			PostingDate:          parseDate(get(FieldPostingDate)),
			InclusionTimestamp:   parseTimestamp(get(FieldInclusionDate)),
			ClosingBalance:       parseFloat(get(FieldClosingBalance)),
			OpeningBalance:       parseFloat(get(FieldOpeningBalance)),
			DocumentValue:        parseFloat(get(FieldDocumentValue)),
			ProvisionalBalance:   parseFloat(get(FieldProvisionalBalance)),
			Status:               rawText(get(FieldStatus)),
			LinkedTransactionID:  parseID(get(FieldLinkedTransactionID)),
			RelatedTransactionID: parseID(get(FieldRelatedTransactionID)),
			Observation:          rawText(get(FieldObservation)),
			CategoryCode:         rawText(get(FieldCategoryCode)),
			NatureFlag:           rawText(get(FieldNatureFlag)),
			Origin:               rawText(get(FieldOrigin)),
		}
	}

	return rows, report, nil
}

func resolveColumn(header map[string]int, columns []string, spec ColumnSpec) (int, string, bool) {
	names := append([]string{string(spec.Field)}, spec.Aliases...)
	for _, n := range names {
		if i, ok := header[columnKey(n)]; ok {
			return i, columns[i], true
		}
	}
	return 0, "", false
}
