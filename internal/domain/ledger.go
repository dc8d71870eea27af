package domain

import (
	"math/big"
	"time"

	"cloud.google.com/go/civil"
)

// Labels and sentinels used on reconciled rows.
const (
	// PlaceholderDescription marks an opening-balance placeholder row in the raw extract.
	PlaceholderDescription = "SALDO"

	// PreviousBalanceDescription marks the period opening row as it arrives from the source.
	PreviousBalanceDescription = "SALDO ANTERIOR"

	// PeriodOpeningDescription is the relabeled description of a PreviousBalanceDescription row.
	PeriodOpeningDescription = "SALDO INICIO PERÍODO"

	// ClosingBalanceDescription labels every synthetic end-of-day record.
	ClosingBalanceDescription = "SALDO FINAL DIA"

	// OpeningSequence is the day sequence pinned on period opening rows.
	OpeningSequence = 0

	// ClosingSequence is the day sequence of every synthetic end-of-day record.
	ClosingSequence = 999999
)

// RowKind distinguishes real transactions from synthesized closing balances in the output.
type RowKind string

const (
	RowKindTransaction    RowKind = "TRANSACTION"
	RowKindClosingBalance RowKind = "CLOSING_BALANCE"
)

// RawLedgerRow is one decoded line of the source extract. Every field is
// nullable: text fields use nil, dates use the zero civil.Date, the inclusion
// timestamp uses the zero time.Time.
type RawLedgerRow struct {
	// Index is the row's position in the input table. It is the final tie-breaker
	// wherever two rows would otherwise compare equal.
	Index int

	AccountID            *string
	SubLedgerID          *string
	SubLedgerType        *string
	SubLedgerDescription *string
	CustomerDescription  *string
	PeriodStart          civil.Date
	PeriodEnd            civil.Date
	PostingDate          civil.Date
	InclusionTimestamp   time.Time
	ClosingBalance       *float64
	OpeningBalance       *float64
	DocumentValue        *float64
	ProvisionalBalance   *float64
	Status               *string
	LinkedTransactionID  *big.Int
	RelatedTransactionID *big.Int
	Observation          *string
	CategoryCode         *string
	NatureFlag           *string
	Origin               *string
}

// AccountPeriod is one reporting interval of an account.
type AccountPeriod struct {
	AccountID   string
	PeriodStart civil.Date
	PeriodEnd   civil.Date
}

// Days returns the inclusive length of the period, or 0 when the bounds are unusable.
func (p AccountPeriod) Days() int {
	if p.PeriodStart.IsZero() || p.PeriodEnd.IsZero() || p.PeriodStart.After(p.PeriodEnd) {
		return 0
	}
	return p.PeriodEnd.DaysSince(p.PeriodStart) + 1
}

// CanonicalTransaction is a non-placeholder row after type normalization and
// day sequencing.
type CanonicalTransaction struct {
	Index int

	AccountID            string
	SubLedgerID          string
	SubLedgerType        *string
	SubLedgerDescription *string

	// Description is the upper-cased, trimmed customer description as received.
	Description          *string
	EffectiveDescription *string

	PeriodStart   civil.Date
	PeriodEnd     civil.Date
	PostingDate   civil.Date
	EffectiveDate civil.Date
	DaySequence   int

	InclusionTimestamp   time.Time
	ClosingBalance       *float64
	OpeningBalance       *float64
	DocumentValue        *float64
	ProvisionalBalance   *float64
	Status               *string
	LinkedTransactionID  *big.Int
	RelatedTransactionID *big.Int
	Observation          *string
	CategoryCode         *string
	NatureFlag           *string
	Origin               *string
}

// IsPeriodOpening reports whether the row is the period's starting balance.
func (t CanonicalTransaction) IsPeriodOpening() bool {
	return t.EffectiveDescription != nil && *t.EffectiveDescription == PeriodOpeningDescription
}

// SubLedger identifies a sub-ledger of an account together with its descriptive attributes.
type SubLedger struct {
	AccountID   string
	ID          string
	Type        *string
	Description *string
}

// DayCell is one calendar day of one sub-ledger inside one period.
type DayCell struct {
	AccountID            string
	SubLedgerID          string
	SubLedgerType        *string
	SubLedgerDescription *string
	PeriodStart          civil.Date
	PeriodEnd            civil.Date
	CalendarDay          civil.Date
}

// ClosingBalanceRecord is the synthesized end-of-day balance of a DayCell.
type ClosingBalanceRecord struct {
	DayCell

	// HasMovement is true when at least one transaction landed on the day.
	HasMovement bool

	ClosingBalance       float64
	OpeningBalanceOfDay  float64
	DocumentValue        float64
	ProvisionalBalance   *float64
	Status               *string
	LinkedTransactionID  *big.Int
	RelatedTransactionID *big.Int
	Observation          *string
	CategoryCode         *string
	NatureFlag           *string
	Origin               *string
	InclusionTimestamp   time.Time
}

// DailyBalanceRow is one row of the reconciled output table. It is the column
// superset of CanonicalTransaction and ClosingBalanceRecord.
type DailyBalanceRow struct {
	Kind RowKind

	AccountID            string
	SubLedgerID          string
	SubLedgerType        *string
	SubLedgerDescription *string
	CustomerDescription  *string
	PeriodStart          civil.Date
	PeriodEnd            civil.Date
	PostingDate          civil.Date
	EffectiveDate        civil.Date
	CalendarDay          civil.Date
	DaySequence          int

	InclusionTimestamp   time.Time
	ClosingBalance       *float64
	OpeningBalance       *float64
	DocumentValue        *float64
	ProvisionalBalance   *float64
	Status               *string
	LinkedTransactionID  *string
	RelatedTransactionID *string
	Observation          *string
	CategoryCode         *string
	NatureFlag           *string
	Origin               *string
}
