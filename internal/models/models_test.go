package models

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func TestParseInstrument(t *testing.T) {
	tests := []struct {
		input     string
		want      Instrument
		wantError bool
	}{
		{"", InstrumentDefault, false},
		{"DEFAULT", InstrumentDefault, false},
		{"eft", InstrumentDefault, false},
		{"Card", InstrumentDefault, false},
		{"POS", InstrumentDefault, false},
		{"CHEQUE", InstrumentCheque, false},
		{"check", InstrumentCheque, false},
		{"CHQ", InstrumentCheque, false},
		{" cheque ", InstrumentCheque, false},
		{"WIRE", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseInstrument(tt.input)
			if (err != nil) != tt.wantError {
				t.Fatalf("ParseInstrument(%q) error = %v, wantError %v", tt.input, err, tt.wantError)
			}
			if got != tt.want {
				t.Errorf("ParseInstrument(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestSourceRecord_Validate(t *testing.T) {
	valid := NewSourceRecord("R1", decimal.NewFromFloat(49.05), date(2024, 1, 15), "FAS GAS")

	tests := []struct {
		name      string
		mutate    func(*SourceRecord)
		wantError bool
	}{
		{"Valid record", func(r *SourceRecord) {}, false},
		{"Empty ID", func(r *SourceRecord) { r.ID = " " }, true},
		{"Zero amount", func(r *SourceRecord) { r.Amount = decimal.Zero }, true},
		{"Zero date", func(r *SourceRecord) { r.Date = time.Time{} }, true},
		{"Invalid instrument", func(r *SourceRecord) { r.Instrument = "WIRE" }, true},
		{"Negative amount is fine", func(r *SourceRecord) { r.Amount = decimal.NewFromFloat(-10) }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := *valid
			tt.mutate(&record)
			err := record.Validate()
			if (err != nil) != tt.wantError {
				t.Errorf("Validate() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}

func TestTargetRecord_Consume(t *testing.T) {
	target := NewTargetRecord("T1", decimal.NewFromFloat(100), date(2024, 1, 15), "VENDOR")

	if target.IsConsumed() {
		t.Error("new target should not be consumed")
	}

	if err := target.Consume("R1"); err != nil {
		t.Fatalf("first Consume() failed: %v", err)
	}
	if !target.IsConsumed() {
		t.Error("target should be consumed after Consume()")
	}
	if target.ConsumedBy() != "R1" {
		t.Errorf("ConsumedBy() = %s, want R1", target.ConsumedBy())
	}

	// Second consumption must fail
	if err := target.Consume("R2"); err == nil {
		t.Error("second Consume() should fail")
	}
	if target.ConsumedBy() != "R1" {
		t.Errorf("ConsumedBy() after failed Consume = %s, want R1", target.ConsumedBy())
	}

	target.Release()
	if target.IsConsumed() {
		t.Error("target should be unconsumed after Release()")
	}
	if err := target.Consume("R2"); err != nil {
		t.Errorf("Consume() after Release() failed: %v", err)
	}
}

func TestTargetRecord_ConsumeEmptySource(t *testing.T) {
	target := NewTargetRecord("T1", decimal.NewFromFloat(100), date(2024, 1, 15), "")
	if err := target.Consume(" "); err == nil {
		t.Error("Consume with blank source ID should fail")
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input     string
		want      string
		wantError bool
	}{
		{"49.05", "49.05", false},
		{"$49.05", "49.05", false},
		{"1,234.56", "1234.56", false},
		{"$1,234.56", "1234.56", false},
		{"-25.00", "-25", false},
		{"(25.00)", "-25", false},
		{"($1,000.00)", "-1000", false},
		{"  100  ", "100", false},
		{"", "", true},
		{"abc", "", true},
		{"12.34.56", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if (err != nil) != tt.wantError {
				t.Fatalf("ParseAmount(%q) error = %v, wantError %v", tt.input, err, tt.wantError)
			}
			if !tt.wantError && got.String() != tt.want {
				t.Errorf("ParseAmount(%q) = %s, want %s", tt.input, got.String(), tt.want)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		input     string
		wantYear  int
		wantMonth time.Month
		wantDay   int
		wantError bool
	}{
		{"2024-01-15", 2024, time.January, 15, false},
		{"2024-01-15 10:30:00", 2024, time.January, 15, false},
		{"01/15/2024", 2024, time.January, 15, false},
		{"2024/01/15", 2024, time.January, 15, false},
		{"Jan 15, 2024", 2024, time.January, 15, false},
		{"", 0, 0, 0, true},
		{"not a date", 0, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDate(tt.input)
			if (err != nil) != tt.wantError {
				t.Fatalf("ParseDate(%q) error = %v, wantError %v", tt.input, err, tt.wantError)
			}
			if tt.wantError {
				return
			}
			year, month, day := got.Date()
			if year != tt.wantYear || month != tt.wantMonth || day != tt.wantDay {
				t.Errorf("ParseDate(%q) = %v, want %d-%d-%d", tt.input, got, tt.wantYear, tt.wantMonth, tt.wantDay)
			}
		})
	}
}

func TestDaysBetween(t *testing.T) {
	tests := []struct {
		name string
		a, b time.Time
		want int
	}{
		{"Same day", date(2024, 1, 15), date(2024, 1, 15), 0},
		{"One day apart", date(2024, 1, 15), date(2024, 1, 16), 1},
		{"Symmetric", date(2024, 1, 16), date(2024, 1, 15), 1},
		{"Across month boundary", date(2024, 1, 31), date(2024, 2, 3), 3},
		{
			// Clock times within the same calendar days do not count
			"Times ignored",
			time.Date(2024, 1, 15, 23, 59, 0, 0, time.UTC),
			time.Date(2024, 1, 16, 0, 1, 0, 0, time.UTC),
			1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DaysBetween(tt.a, tt.b); got != tt.want {
				t.Errorf("DaysBetween() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestWithinTolerance(t *testing.T) {
	tolerance := decimal.NewFromFloat(0.01)

	tests := []struct {
		name string
		a, b float64
		want bool
	}{
		{"Exact", 49.05, 49.05, true},
		{"Within epsilon", 49.05, 49.06, true},
		{"Just outside", 49.05, 49.07, false},
		{"Far apart", 49.05, 50.05, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WithinTolerance(decimal.NewFromFloat(tt.a), decimal.NewFromFloat(tt.b), tolerance)
			if got != tt.want {
				t.Errorf("WithinTolerance(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestSameSign(t *testing.T) {
	tests := []struct {
		name string
		a, b float64
		want bool
	}{
		{"Both positive", 10, 20, true},
		{"Both negative", -10, -20, true},
		{"Mixed", -10, 20, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SameSign(decimal.NewFromFloat(tt.a), decimal.NewFromFloat(tt.b))
			if got != tt.want {
				t.Errorf("SameSign(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestSourceRecord_Flags(t *testing.T) {
	record := NewSourceRecord("R1", decimal.NewFromFloat(-10), date(2024, 1, 15), "x")

	if !record.IsDebit() {
		t.Error("IsDebit() = false for negative amount")
	}
	if record.IsLinked() || record.IsSplitChild() {
		t.Error("fresh record should be neither linked nor a split child")
	}

	record.LinkedTargetID = "T9"
	record.ParentID = "SPLIT-T1"
	if !record.IsLinked() || !record.IsSplitChild() {
		t.Error("flags should reflect assigned link and parent")
	}
}

func TestSourceRecord_MarshalJSON(t *testing.T) {
	record := NewSourceRecord("R1", decimal.NewFromFloat(49.05), date(2024, 1, 15), "FAS GAS")

	data, err := record.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() failed: %v", err)
	}

	body := string(data)
	for _, want := range []string{`"49.05"`, `"2024-01-15"`, `"R1"`} {
		if !strings.Contains(body, want) {
			t.Errorf("MarshalJSON() = %s, want it to contain %s", body, want)
		}
	}
}

func TestTargetRecord_MarshalJSON_ConsumedBy(t *testing.T) {
	target := NewTargetRecord("T1", decimal.NewFromFloat(100), date(2024, 1, 15), "")
	target.Consume("R1")

	data, err := target.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() failed: %v", err)
	}
	if !strings.Contains(string(data), `"consumed_by":"R1"`) {
		t.Errorf("MarshalJSON() = %s, want consumed_by to be included", data)
	}
}
