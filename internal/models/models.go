package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Instrument identifies the payment instrument behind a source record.
// Slow-clearing instruments get wider date windows during matching.
type Instrument string

const (
	// InstrumentDefault covers electronic payments that clear quickly.
	InstrumentDefault Instrument = "DEFAULT"
	// InstrumentCheque covers cheques, which may take several business
	// days to appear on a bank statement.
	InstrumentCheque Instrument = "CHEQUE"
)

// String returns the string representation of Instrument
func (i Instrument) String() string {
	return string(i)
}

// IsValid checks if the instrument is a recognized value
func (i Instrument) IsValid() bool {
	return i == InstrumentDefault || i == InstrumentCheque
}

// ParseInstrument parses an instrument from its string form. Empty input
// defaults to InstrumentDefault.
func ParseInstrument(s string) (Instrument, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "DEFAULT", "EFT", "CARD", "POS":
		return InstrumentDefault, nil
	case "CHEQUE", "CHECK", "CHQ":
		return InstrumentCheque, nil
	default:
		return "", fmt.Errorf("invalid instrument '%s': must be DEFAULT or CHEQUE", s)
	}
}

// SourceRecord is a financial line-item seeking a counterpart, typically a
// receipt or payment entry from the operations ledger.
type SourceRecord struct {
	ID          string          `json:"id" csv:"id"`
	Date        time.Time       `json:"date" csv:"date"`
	Amount      decimal.Decimal `json:"amount" csv:"amount"`
	Description string          `json:"description" csv:"description"`
	Instrument  Instrument      `json:"instrument,omitempty" csv:"instrument"`

	// ParentID groups split fragments under a composite record. Set only
	// by the split handler; empty for ordinary records.
	ParentID string `json:"parent_id,omitempty" csv:"parent_id"`

	// LinkedTargetID carries a pre-existing link to a target record,
	// written by a previous run. Records with a valid link are not
	// re-resolved.
	LinkedTargetID string `json:"linked_target_id,omitempty" csv:"linked_target_id"`
}

// NewSourceRecord creates a new SourceRecord instance
func NewSourceRecord(id string, amount decimal.Decimal, date time.Time, description string) *SourceRecord {
	return &SourceRecord{
		ID:          id,
		Date:        date,
		Amount:      amount,
		Description: description,
		Instrument:  InstrumentDefault,
	}
}

// Validate performs basic validation on the SourceRecord
func (r *SourceRecord) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("source record ID cannot be empty")
	}

	if r.Amount.IsZero() {
		return fmt.Errorf("source record amount cannot be zero")
	}

	if r.Date.IsZero() {
		return fmt.Errorf("source record date cannot be zero")
	}

	if r.Instrument != "" && !r.Instrument.IsValid() {
		return fmt.Errorf("invalid instrument: %s", r.Instrument)
	}

	return nil
}

// String returns a string representation of the SourceRecord
func (r *SourceRecord) String() string {
	return fmt.Sprintf("SourceRecord{ID: %s, Amount: %s, Date: %s, Description: %q}",
		r.ID, r.Amount.String(), r.Date.Format("2006-01-02"), r.Description)
}

// IsDebit returns true if the record amount is negative
func (r *SourceRecord) IsDebit() bool {
	return r.Amount.IsNegative()
}

// IsLinked returns true if the record already carries a target link
func (r *SourceRecord) IsLinked() bool {
	return strings.TrimSpace(r.LinkedTargetID) != ""
}

// IsSplitChild returns true if the record belongs to a split group
func (r *SourceRecord) IsSplitChild() bool {
	return strings.TrimSpace(r.ParentID) != ""
}

// MarshalJSON implements custom JSON marshaling for SourceRecord
func (r *SourceRecord) MarshalJSON() ([]byte, error) {
	type Alias SourceRecord
	return json.Marshal(&struct {
		Amount string `json:"amount"`
		Date   string `json:"date"`
		*Alias
	}{
		Amount: r.Amount.String(),
		Date:   r.Date.Format("2006-01-02"),
		Alias:  (*Alias)(r),
	})
}

// TargetRecord is a record matched against, typically a bank transaction.
// Consumption is owned exclusively by the resolver during a run: once a
// match commits, the target cannot back another source.
type TargetRecord struct {
	ID          string          `json:"id" csv:"id"`
	Date        time.Time       `json:"date" csv:"date"`
	Amount      decimal.Decimal `json:"amount" csv:"amount"`
	Description string          `json:"description" csv:"description"`

	consumedBy string
}

// NewTargetRecord creates a new TargetRecord instance
func NewTargetRecord(id string, amount decimal.Decimal, date time.Time, description string) *TargetRecord {
	return &TargetRecord{
		ID:          id,
		Date:        date,
		Amount:      amount,
		Description: description,
	}
}

// Validate performs basic validation on the TargetRecord
func (t *TargetRecord) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("target record ID cannot be empty")
	}

	if t.Amount.IsZero() {
		return fmt.Errorf("target record amount cannot be zero")
	}

	if t.Date.IsZero() {
		return fmt.Errorf("target record date cannot be zero")
	}

	return nil
}

// String returns a string representation of the TargetRecord
func (t *TargetRecord) String() string {
	return fmt.Sprintf("TargetRecord{ID: %s, Amount: %s, Date: %s, Description: %q}",
		t.ID, t.Amount.String(), t.Date.Format("2006-01-02"), t.Description)
}

// IsDebit returns true if the record amount is negative
func (t *TargetRecord) IsDebit() bool {
	return t.Amount.IsNegative()
}

// IsConsumed reports whether the target has been claimed by a match
func (t *TargetRecord) IsConsumed() bool {
	return t.consumedBy != ""
}

// ConsumedBy returns the ID of the consuming source, or "" if unconsumed
func (t *TargetRecord) ConsumedBy() string {
	return t.consumedBy
}

// Consume claims the target for the given source. It fails if the target
// was already consumed, preserving the at-most-one-consumer invariant.
func (t *TargetRecord) Consume(sourceID string) error {
	if t.consumedBy != "" {
		return fmt.Errorf("target %s already consumed by source %s", t.ID, t.consumedBy)
	}
	if strings.TrimSpace(sourceID) == "" {
		return fmt.Errorf("consuming source ID cannot be empty")
	}
	t.consumedBy = sourceID
	return nil
}

// Release clears the consumption flag. Used only when a provisional claim
// is rolled back within the same run.
func (t *TargetRecord) Release() {
	t.consumedBy = ""
}

// MarshalJSON implements custom JSON marshaling for TargetRecord
func (t *TargetRecord) MarshalJSON() ([]byte, error) {
	type Alias TargetRecord
	return json.Marshal(&struct {
		Amount     string `json:"amount"`
		Date       string `json:"date"`
		ConsumedBy string `json:"consumed_by,omitempty"`
		*Alias
	}{
		Amount:     t.Amount.String(),
		Date:       t.Date.Format("2006-01-02"),
		ConsumedBy: t.consumedBy,
		Alias:      (*Alias)(t),
	})
}

// Utility functions shared across the engine

// ParseAmount parses a decimal amount from string, tolerating currency
// symbols and thousand separators as they appear in exported ledgers.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount string cannot be empty")
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		// Accounting notation for negative amounts
		negative = true
		s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	}
	s = strings.TrimSpace(s)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount format '%s': %w", s, err)
	}

	if negative {
		d = d.Neg()
	}
	return d, nil
}

// ParseDate attempts to parse a date from string using the formats seen in
// exported ledgers and bank statements.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("date string cannot be empty")
	}

	formats := []string{
		"2006-01-02",
		time.RFC3339,
		"2006-01-02 15:04:05",
		"01/02/2006",
		"02-01-2006",
		"2006/01/02",
		"Jan 2, 2006",
	}

	var lastErr error
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse date '%s': %w", s, lastErr)
}

// DateOnly truncates a time to midnight UTC. All date comparisons in the
// engine operate on calendar dates, never clock times.
func DateOnly(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the absolute number of calendar days between two dates
func DaysBetween(a, b time.Time) int {
	diff := DateOnly(a).Sub(DateOnly(b))
	if diff < 0 {
		diff = -diff
	}
	return int(diff / (24 * time.Hour))
}

// WithinTolerance compares two decimal amounts with a tolerance
func WithinTolerance(a, b, tolerance decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(tolerance)
}

// SameSign reports whether two amounts share a sign. Zero amounts never
// reach the engine (Validate rejects them).
func SameSign(a, b decimal.Decimal) bool {
	return a.IsNegative() == b.IsNegative()
}
