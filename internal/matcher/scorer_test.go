package matcher

import (
	"math"
	"testing"
	"time"

	"ledgermatch/internal/models"

	"github.com/shopspring/decimal"
)

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func source(id string, amount float64, date time.Time, description string) *models.SourceRecord {
	return models.NewSourceRecord(id, decimal.NewFromFloat(amount), date, description)
}

func target(id string, amount float64, date time.Time, description string) *models.TargetRecord {
	return models.NewTargetRecord(id, decimal.NewFromFloat(amount), date, description)
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestScorer_AmountScore(t *testing.T) {
	scorer := NewScorer(DefaultConfig())

	tests := []struct {
		name      string
		srcAmount float64
		tgtAmount float64
		want      float64
	}{
		{"Exact", 49.05, 49.05, 1.0},
		{"Within tolerance", 49.05, 49.06, 1.0},
		{"Halfway to ceiling", 100.00, 102.505, 0.5},
		{"At ceiling", 100.00, 105.00, 0.0},
		{"Beyond ceiling", 100.00, 200.00, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := scorer.Score(
				source("R1", tt.srcAmount, day(15), ""),
				target("T1", tt.tgtAmount, day(15), ""),
			)
			if !approx(result.AmountScore, tt.want) {
				t.Errorf("AmountScore = %v, want %v", result.AmountScore, tt.want)
			}
		})
	}
}

func TestScorer_DateScore(t *testing.T) {
	scorer := NewScorer(DefaultConfig())

	tests := []struct {
		name       string
		instrument models.Instrument
		srcDay     int
		tgtDay     int
		want       float64
	}{
		{"Same day", models.InstrumentDefault, 15, 15, 1.0},
		{"One day offset", models.InstrumentDefault, 15, 16, 1.0 - 1.0/3.0},
		{"Two day offset", models.InstrumentDefault, 15, 17, 1.0 - 2.0/3.0},
		{"At window edge", models.InstrumentDefault, 15, 18, 0.0},
		{"Beyond window", models.InstrumentDefault, 15, 20, 0.0},
		{"Cheque halfway", models.InstrumentCheque, 15, 20, 0.5},
		{"Cheque at edge", models.InstrumentCheque, 15, 25, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := source("R1", 100, day(tt.srcDay), "")
			src.Instrument = tt.instrument
			result := scorer.Score(src, target("T1", 100, day(tt.tgtDay), ""))
			if !approx(result.DateScore, tt.want) {
				t.Errorf("DateScore = %v, want %v", result.DateScore, tt.want)
			}
		})
	}
}

func TestScorer_DateScore_ZeroWindow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DateWindowDays = 0
	scorer := NewScorer(cfg)

	same := scorer.Score(source("R1", 100, day(15), ""), target("T1", 100, day(15), ""))
	if !approx(same.DateScore, 1.0) {
		t.Errorf("zero-window same-day DateScore = %v, want 1.0", same.DateScore)
	}

	off := scorer.Score(source("R1", 100, day(15), ""), target("T1", 100, day(16), ""))
	if !approx(off.DateScore, 0.0) {
		t.Errorf("zero-window offset DateScore = %v, want 0.0", off.DateScore)
	}
}

func TestScorer_TextScore(t *testing.T) {
	scorer := NewScorer(DefaultConfig())

	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"Identical after normalization", "POS PURCHASE FAS GAS 1234", "FAS GAS #1234", 1.0},
		{"Case and punctuation ignored", "Acme-Store!", "ACME STORE", 1.0},
		{"Both empty", "", "", 0.5},
		{"One side stopwords only", "PAYMENT DEBIT", "ACME STORE", 0.5},
		{"Unrelated", "zzzz", "qqqq", 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := scorer.Score(
				source("R1", 100, day(15), tt.a),
				target("T1", 100, day(15), tt.b),
			)
			if !approx(result.TextScore, tt.want) {
				t.Errorf("TextScore(%q, %q) = %v, want %v", tt.a, tt.b, result.TextScore, tt.want)
			}
		})
	}
}

func TestScorer_TextScore_EditDistanceFallback(t *testing.T) {
	scorer := NewScorer(DefaultConfig())

	// "vendor a" vs "vendor b": token overlap is 0.5 but edit similarity is
	// 0.875, and the better signal wins
	result := scorer.Score(
		source("R1", 100, day(15), "VENDOR A"),
		target("T1", 100, day(15), "VENDOR B"),
	)
	if !approx(result.TextScore, 0.875) {
		t.Errorf("TextScore = %v, want 0.875", result.TextScore)
	}
}

func TestScorer_ExtraStopwords(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ExtraStopwords = []string{"acme"}
	scorer := NewScorer(cfg)

	result := scorer.Score(
		source("R1", 100, day(15), "ACME STORE"),
		target("T1", 100, day(15), "STORE"),
	)
	if !approx(result.TextScore, 1.0) {
		t.Errorf("TextScore with extra stopword = %v, want 1.0", result.TextScore)
	}
}

func TestScorer_CompositeScore(t *testing.T) {
	scorer := NewScorer(DefaultConfig())

	// Same amount, one day off, descriptions identical after cleanup:
	// 0.5*1.0 + 0.3*(2/3) + 0.2*1.0 = 0.9
	result := scorer.Score(
		source("R1", 49.05, day(15), "POS PURCHASE FAS GAS 1234"),
		target("T1", 49.05, day(16), "FAS GAS #1234"),
	)

	if !approx(result.Total, 0.9) {
		t.Errorf("Total = %v, want 0.9", result.Total)
	}
	if result.Total < DefaultConfig().AcceptanceThreshold {
		t.Errorf("Total %v should clear the default acceptance threshold", result.Total)
	}
	if result.DateOffsetDays != 1 {
		t.Errorf("DateOffsetDays = %d, want 1", result.DateOffsetDays)
	}
	if !result.AmountDifference.IsZero() {
		t.Errorf("AmountDifference = %s, want 0", result.AmountDifference)
	}
	if len(result.Reasons) == 0 {
		t.Error("score should carry audit reasons")
	}
}

func TestScorer_MagnitudeOnly(t *testing.T) {
	refund := source("R1", 25.00, day(15), "REFUND ACME")
	debit := target("T1", -25.00, day(15), "ACME")

	standard := NewScorer(DefaultConfig())
	if got := standard.Score(refund, debit).AmountScore; !approx(got, 0.0) {
		t.Errorf("cross-sign AmountScore without magnitude-only = %v, want 0.0", got)
	}

	cfg := DefaultConfig()
	cfg.MagnitudeOnly = true
	magnitude := NewScorer(cfg)
	if got := magnitude.Score(refund, debit).AmountScore; !approx(got, 1.0) {
		t.Errorf("cross-sign AmountScore with magnitude-only = %v, want 1.0", got)
	}
}

func TestScorer_Deterministic(t *testing.T) {
	scorer := NewScorer(DefaultConfig())
	src := source("R1", 49.05, day(15), "POS FAS GAS 1234")
	tgt := target("T1", 49.07, day(16), "FAS GAS #1234")

	first := scorer.Score(src, tgt)
	for i := 0; i < 10; i++ {
		if got := scorer.Score(src, tgt); got.Total != first.Total {
			t.Fatalf("Score() not deterministic: %v != %v", got.Total, first.Total)
		}
	}
}
