package matcher

import (
	"testing"

	"ledgermatch/internal/models"

	"ledgermatch/pkg/errors"

	"github.com/shopspring/decimal"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig should be valid: %v", err)
	}
	if !cfg.AmountTolerance.Equal(decimal.NewFromFloat(0.01)) {
		t.Errorf("AmountTolerance = %s, want 0.01", cfg.AmountTolerance)
	}
	if cfg.DateWindowDays != 3 {
		t.Errorf("DateWindowDays = %d, want 3", cfg.DateWindowDays)
	}
	if cfg.ChequeDateWindowDays != 10 {
		t.Errorf("ChequeDateWindowDays = %d, want 10", cfg.ChequeDateWindowDays)
	}
	if cfg.AcceptanceThreshold != 0.75 {
		t.Errorf("AcceptanceThreshold = %v, want 0.75", cfg.AcceptanceThreshold)
	}
	if cfg.AmbiguityMargin != 0.05 {
		t.Errorf("AmbiguityMargin = %v, want 0.05", cfg.AmbiguityMargin)
	}
}

func TestPresetConfigs(t *testing.T) {
	for name, cfg := range map[string]*Config{
		"strict":  StrictConfig(),
		"relaxed": RelaxedConfig(),
	} {
		t.Run(name, func(t *testing.T) {
			if err := cfg.Validate(); err != nil {
				t.Errorf("%s preset should be valid: %v", name, err)
			}
		})
	}

	if StrictConfig().AcceptanceThreshold <= DefaultConfig().AcceptanceThreshold {
		t.Error("strict preset should demand a higher score than default")
	}
	if RelaxedConfig().DateWindowDays <= DefaultConfig().DateWindowDays {
		t.Error("relaxed preset should allow a wider window than default")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantError bool
	}{
		{"Valid", func(c *Config) {}, false},
		{"Negative tolerance", func(c *Config) { c.AmountTolerance = decimal.NewFromFloat(-0.01) }, true},
		{"Ceiling below tolerance", func(c *Config) { c.AmountVarianceCeiling = decimal.NewFromFloat(0.001) }, true},
		{"Negative date window", func(c *Config) { c.DateWindowDays = -1 }, true},
		{"Negative cheque window", func(c *Config) { c.ChequeDateWindowDays = -1 }, true},
		{"Threshold above 1", func(c *Config) { c.AcceptanceThreshold = 1.5 }, true},
		{"Negative margin", func(c *Config) { c.AmbiguityMargin = -0.1 }, true},
		{"Split size below 2", func(c *Config) { c.MaxSplitGroupSize = 1 }, true},
		{"Negative max candidates", func(c *Config) { c.MaxCandidates = -5 }, true},
		{"Weights not summing to 1", func(c *Config) { c.Weights = Weights{Amount: 0.5, Date: 0.3, Text: 0.3} }, true},
		{"Weight out of range", func(c *Config) { c.Weights = Weights{Amount: 1.2, Date: -0.1, Text: -0.1} }, true},
		{"Zero date window is allowed", func(c *Config) { c.DateWindowDays = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantError {
				t.Errorf("Validate() error = %v, wantError %v", err, tt.wantError)
			}
			if err != nil && !errors.IsInvalidConfiguration(err) {
				t.Errorf("Validate() error should be a configuration error, got %v", err)
			}
		})
	}
}

func TestConfig_Clone(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ExtraStopwords = []string{"acme"}

	clone := cfg.Clone()
	clone.DateWindowDays = 99
	clone.ExtraStopwords[0] = "other"

	if cfg.DateWindowDays == 99 {
		t.Error("Clone() should not share scalar fields")
	}
	if cfg.ExtraStopwords[0] != "acme" {
		t.Error("Clone() should deep-copy ExtraStopwords")
	}
}

func TestConfig_DateWindowFor(t *testing.T) {
	cfg := DefaultConfig()

	eft := &models.SourceRecord{Instrument: models.InstrumentDefault}
	cheque := &models.SourceRecord{Instrument: models.InstrumentCheque}

	if got := cfg.DateWindowFor(eft); got != cfg.DateWindowDays {
		t.Errorf("DateWindowFor(default) = %d, want %d", got, cfg.DateWindowDays)
	}
	if got := cfg.DateWindowFor(cheque); got != cfg.ChequeDateWindowDays {
		t.Errorf("DateWindowFor(cheque) = %d, want %d", got, cfg.ChequeDateWindowDays)
	}
	if got := cfg.DateWindowFor(nil); got != cfg.DateWindowDays {
		t.Errorf("DateWindowFor(nil) = %d, want %d", got, cfg.DateWindowDays)
	}
}
