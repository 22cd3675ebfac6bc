package matcher

import (
	"testing"

	"ledgermatch/internal/models"

	"ledgermatch/pkg/errors"

	"github.com/shopspring/decimal"
)

func TestNewTargetIndex_Empty(t *testing.T) {
	_, err := NewTargetIndex(nil)
	if err == nil {
		t.Fatal("NewTargetIndex(nil) should fail")
	}
	if !errors.IsEmptyInput(err) {
		t.Errorf("NewTargetIndex(nil) error = %v, want empty-input", err)
	}
}

func TestTargetIndex_Lookups(t *testing.T) {
	targets := []*models.TargetRecord{
		target("T1", 49.05, day(15), "FAS GAS"),
		target("T2", 49.05, day(16), "OTHER GAS"),
		target("T3", 100.00, day(15), "VENDOR"),
	}

	index, err := NewTargetIndex(targets)
	if err != nil {
		t.Fatalf("NewTargetIndex() failed: %v", err)
	}

	if index.Len() != 3 {
		t.Errorf("Len() = %d, want 3", index.Len())
	}

	if got := index.ByID("T2"); got == nil || got.ID != "T2" {
		t.Errorf("ByID(T2) = %v, want T2", got)
	}
	if got := index.ByID("missing"); got != nil {
		t.Errorf("ByID(missing) = %v, want nil", got)
	}

	if got := index.ByExactAmount(decimal.NewFromFloat(49.05)); len(got) != 2 {
		t.Errorf("ByExactAmount(49.05) returned %d targets, want 2", len(got))
	}

	if got := index.ByDate(day(15)); len(got) != 2 {
		t.Errorf("ByDate(day 15) returned %d targets, want 2", len(got))
	}

	stats := index.Stats()
	if stats.TotalTargets != 3 || stats.UniqueAmounts != 2 || stats.UniqueDates != 2 {
		t.Errorf("Stats() = %+v, want 3 targets, 2 amounts, 2 dates", stats)
	}
}

func TestTargetIndex_Query(t *testing.T) {
	targets := []*models.TargetRecord{
		target("T1", 49.05, day(15), "exact amount, same day"),
		target("T2", 51.00, day(15), "within ceiling"),
		target("T3", 60.00, day(15), "beyond ceiling"),
		target("T4", 49.05, day(18), "window edge"),
		target("T5", 49.05, day(19), "beyond window"),
		target("T6", -49.05, day(15), "wrong sign"),
	}
	index, err := NewTargetIndex(targets)
	if err != nil {
		t.Fatalf("NewTargetIndex() failed: %v", err)
	}

	cfg := DefaultConfig()
	results := index.Query(source("R1", 49.05, day(15), ""), cfg)

	got := make(map[string]bool, len(results))
	for _, r := range results {
		got[r.ID] = true
	}

	for _, want := range []string{"T1", "T2", "T4"} {
		if !got[want] {
			t.Errorf("Query() missing %s; results = %v", want, got)
		}
	}
	for _, reject := range []string{"T3", "T5", "T6"} {
		if got[reject] {
			t.Errorf("Query() should exclude %s", reject)
		}
	}
}

func TestTargetIndex_Query_SkipsConsumed(t *testing.T) {
	tgt := target("T1", 49.05, day(15), "")
	index, err := NewTargetIndex([]*models.TargetRecord{tgt})
	if err != nil {
		t.Fatalf("NewTargetIndex() failed: %v", err)
	}

	cfg := DefaultConfig()
	src := source("R1", 49.05, day(15), "")

	if results := index.Query(src, cfg); len(results) != 1 {
		t.Fatalf("Query() before consumption returned %d targets, want 1", len(results))
	}

	tgt.Consume("R0")
	if results := index.Query(src, cfg); len(results) != 0 {
		t.Errorf("Query() after consumption returned %d targets, want 0", len(results))
	}
}

func TestTargetIndex_Query_MagnitudeOnly(t *testing.T) {
	targets := []*models.TargetRecord{
		target("T1", -25.00, day(15), "debit leg"),
		target("T2", 25.00, day(15), "credit leg"),
	}
	index, err := NewTargetIndex(targets)
	if err != nil {
		t.Fatalf("NewTargetIndex() failed: %v", err)
	}

	src := source("R1", 25.00, day(15), "")

	standard := index.Query(src, DefaultConfig())
	if len(standard) != 1 || standard[0].ID != "T2" {
		t.Errorf("standard Query() = %v, want only T2", standard)
	}

	cfg := DefaultConfig()
	cfg.MagnitudeOnly = true
	mirrored := index.Query(src, cfg)
	if len(mirrored) != 2 {
		t.Errorf("magnitude-only Query() returned %d targets, want 2", len(mirrored))
	}
}

func TestTargetIndex_Query_ChequeWindow(t *testing.T) {
	targets := []*models.TargetRecord{
		target("T1", 200.00, day(23), "eight days out"),
	}
	index, err := NewTargetIndex(targets)
	if err != nil {
		t.Fatalf("NewTargetIndex() failed: %v", err)
	}

	cfg := DefaultConfig()

	eft := source("R1", 200.00, day(15), "")
	if results := index.Query(eft, cfg); len(results) != 0 {
		t.Errorf("default instrument Query() = %d targets, want 0", len(results))
	}

	cheque := source("R2", 200.00, day(15), "")
	cheque.Instrument = models.InstrumentCheque
	if results := index.Query(cheque, cfg); len(results) != 1 {
		t.Errorf("cheque Query() = %d targets, want 1", len(results))
	}
}

func TestTargetIndex_Query_MaxCandidates(t *testing.T) {
	var targets []*models.TargetRecord
	for i := 0; i < 40; i++ {
		targets = append(targets, target(
			// Zero-padded so identifier order is stable
			ids("T", i), 49.05, day(15), ""))
	}
	index, err := NewTargetIndex(targets)
	if err != nil {
		t.Fatalf("NewTargetIndex() failed: %v", err)
	}

	cfg := DefaultConfig()
	results := index.Query(source("R1", 49.05, day(15), ""), cfg)
	if len(results) != cfg.MaxCandidates {
		t.Errorf("Query() returned %d targets, want cap %d", len(results), cfg.MaxCandidates)
	}

	// Result order is identifier order
	for i := 1; i < len(results); i++ {
		if results[i-1].ID >= results[i].ID {
			t.Fatalf("Query() results out of order at %d: %s >= %s", i, results[i-1].ID, results[i].ID)
		}
	}
}

func TestTargetIndex_UnconsumedByAmount(t *testing.T) {
	t1 := target("T1", 50.00, day(15), "")
	t2 := target("T2", 50.005, day(16), "")
	t3 := target("T3", 51.00, day(15), "")
	index, err := NewTargetIndex([]*models.TargetRecord{t1, t2, t3})
	if err != nil {
		t.Fatalf("NewTargetIndex() failed: %v", err)
	}

	tolerance := decimal.NewFromFloat(0.01)
	results := index.UnconsumedByAmount(decimal.NewFromFloat(50.00), tolerance)
	if len(results) != 2 {
		t.Fatalf("UnconsumedByAmount() = %d targets, want 2", len(results))
	}

	t1.Consume("R1")
	results = index.UnconsumedByAmount(decimal.NewFromFloat(50.00), tolerance)
	if len(results) != 1 || results[0].ID != "T2" {
		t.Errorf("UnconsumedByAmount() after consumption = %v, want only T2", results)
	}
}

func ids(prefix string, n int) string {
	const digits = "0123456789"
	return prefix + string(digits[n/10%10]) + string(digits[n%10])
}
