// Package config translates CLI flags into engine, parser, and report
// configurations.
package config

import (
	"ledgermatch/internal/matcher"
	"ledgermatch/internal/parsers"
	"ledgermatch/internal/reconciler"
	"ledgermatch/internal/reporter"

	"ledgermatch/pkg/errors"

	"github.com/shopspring/decimal"
)

// MatchingOverrides carries CLI-level overrides for the engine
// configuration. Negative numeric fields mean "not set".
type MatchingOverrides struct {
	AmountTolerance     float64
	VarianceCeiling     float64
	DateWindowDays      int
	ChequeWindowDays    int
	AcceptanceThreshold float64
	AmbiguityMargin     float64
	MagnitudeOnly       bool
	MaxSplitGroupSize   int
}

// CreateMatchingConfig builds an engine configuration from a preset name
// and CLI overrides.
func CreateMatchingConfig(preset string, overrides MatchingOverrides) (*matcher.Config, error) {
	var cfg *matcher.Config
	switch preset {
	case "", "default":
		cfg = matcher.DefaultConfig()
	case "strict":
		cfg = matcher.StrictConfig()
	case "relaxed":
		cfg = matcher.RelaxedConfig()
	default:
		return nil, errors.InvalidConfiguration("preset", preset,
			"must be one of: default, strict, relaxed")
	}

	if overrides.AmountTolerance >= 0 {
		cfg.AmountTolerance = decimal.NewFromFloat(overrides.AmountTolerance)
	}
	if overrides.VarianceCeiling >= 0 {
		cfg.AmountVarianceCeiling = decimal.NewFromFloat(overrides.VarianceCeiling)
	}
	if overrides.DateWindowDays >= 0 {
		cfg.DateWindowDays = overrides.DateWindowDays
	}
	if overrides.ChequeWindowDays >= 0 {
		cfg.ChequeDateWindowDays = overrides.ChequeWindowDays
	}
	if overrides.AcceptanceThreshold >= 0 {
		cfg.AcceptanceThreshold = overrides.AcceptanceThreshold
	}
	if overrides.AmbiguityMargin >= 0 {
		cfg.AmbiguityMargin = overrides.AmbiguityMargin
	}
	if overrides.MaxSplitGroupSize >= 2 {
		cfg.MaxSplitGroupSize = overrides.MaxSplitGroupSize
	}
	cfg.MagnitudeOnly = overrides.MagnitudeOnly

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// CreateRunConfig builds the orchestration configuration
func CreateRunConfig(matching *matcher.Config, detectSplits, absorbUnmatched bool) *reconciler.Config {
	cfg := reconciler.DefaultConfig()
	cfg.Matching = matching
	cfg.DetectSplits = detectSplits
	cfg.AbsorbUnmatched = absorbUnmatched
	return cfg
}

// CreateParseConfig builds the CSV parser configuration
func CreateParseConfig() *parsers.ParseConfig {
	return parsers.DefaultParseConfig()
}

// CreateReportConfig builds a report configuration for the given output
// format
func CreateReportConfig(format string, includeMatched bool) *reporter.Config {
	cfg := reporter.DefaultConfig()

	switch format {
	case "console":
		cfg.Format = reporter.FormatConsole
	case "json":
		cfg.Format = reporter.FormatJSON
		cfg.IncludeMatched = includeMatched
	case "csv":
		cfg.Format = reporter.FormatCSV
		// CSV exports record rows; matched rows are the point of the file
		cfg.IncludeMatched = true
		cfg.IncludeStats = false
	}

	if includeMatched {
		cfg.IncludeMatched = true
	}

	return cfg
}
