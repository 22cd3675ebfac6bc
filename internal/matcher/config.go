// Package matcher implements the record reconciliation engine: candidate
// indexing, similarity scoring, match resolution, and split detection.
//
// The engine matches source records (receipts, payments, ledger rows)
// against target records (bank transactions) drawn from imperfectly-keyed
// sources. Matching combines three signals:
//   - exact-or-near amount agreement (fixed-point, tolerance-based)
//   - date proximity within a configurable window
//   - fuzzy text similarity of cleaned descriptions
//
// Resolution is greedy and strictly sequential: source records are processed
// in a stable order and each accepted match consumes its target immediately,
// so a later record can never claim it. This trades global optimality for a
// per-record rationale that survives a financial audit. An optimal
// bipartite assignment would maximize total matches but cannot explain any
// single decision in isolation, which is why it is not the default here.
//
// Example usage:
//
//	cfg := matcher.DefaultConfig()
//	cfg.DateWindowDays = 3
//
//	index, err := matcher.NewTargetIndex(targets)
//	resolver := matcher.NewResolver(cfg, index)
//	decisions := resolver.Resolve(sources)
package matcher

import (
	"ledgermatch/internal/models"

	"ledgermatch/pkg/errors"

	"github.com/shopspring/decimal"
)

// Weights defines the relative importance of the three scoring components.
// Text carries the lowest default weight: descriptions are the noisiest
// signal across sources.
type Weights struct {
	Amount float64 `json:"amount"`
	Date   float64 `json:"date"`
	Text   float64 `json:"text"`
}

// Validate checks that each weight is in [0,1] and the weights sum to 1.0
func (w Weights) Validate() error {
	if w.Amount < 0.0 || w.Amount > 1.0 {
		return errors.InvalidConfiguration("weights.amount", w.Amount, "must be between 0.0 and 1.0")
	}
	if w.Date < 0.0 || w.Date > 1.0 {
		return errors.InvalidConfiguration("weights.date", w.Date, "must be between 0.0 and 1.0")
	}
	if w.Text < 0.0 || w.Text > 1.0 {
		return errors.InvalidConfiguration("weights.text", w.Text, "must be between 0.0 and 1.0")
	}

	total := w.Amount + w.Date + w.Text
	if total < 0.999 || total > 1.001 {
		return errors.InvalidConfiguration("weights", total, "must sum to 1.0")
	}

	return nil
}

// Config holds all tunable parameters of the reconciliation engine.
// Validation fails fast at configuration load; a validated Config is never
// rejected mid-run.
type Config struct {
	// AmountTolerance is the epsilon for "equal" amounts. Differences at
	// or below it score a full amount component. Default one cent.
	AmountTolerance decimal.Decimal `json:"amount_tolerance"`

	// AmountVarianceCeiling is where the amount score decays to zero.
	// Legacy penny-rounding sources need a few dollars of headroom.
	AmountVarianceCeiling decimal.Decimal `json:"amount_variance_ceiling"`

	// DateWindowDays bounds candidate retrieval and date scoring. A
	// record dated exactly at the window edge is still a candidate.
	DateWindowDays int `json:"date_window_days"`

	// ChequeDateWindowDays overrides DateWindowDays for cheque sources,
	// which clear slowly.
	ChequeDateWindowDays int `json:"cheque_date_window_days"`

	// AcceptanceThreshold is the minimum composite score for a match
	AcceptanceThreshold float64 `json:"acceptance_threshold"`

	// AmbiguityMargin is the minimum lead the best candidate must hold
	// over the runner-up. Near-ties are surfaced for manual resolution,
	// never auto-resolved.
	AmbiguityMargin float64 `json:"ambiguity_margin"`

	// Weights are the scoring component weights
	Weights Weights `json:"weights"`

	// MagnitudeOnly allows matches across amount sign. Off by default;
	// enabled only for refund-reconciliation runs.
	MagnitudeOnly bool `json:"magnitude_only"`

	// MaxSplitGroupSize caps the combination search in split detection.
	// Unrestricted subset-sum search is deliberately avoided.
	MaxSplitGroupSize int `json:"max_split_group_size"`

	// MaxCandidates limits scored candidates per source record.
	// Zero means unlimited.
	MaxCandidates int `json:"max_candidates"`

	// ExtraStopwords extends the built-in stopword list used during
	// description normalization.
	ExtraStopwords []string `json:"extra_stopwords,omitempty"`
}

// DefaultConfig returns a configuration with the recommended defaults
func DefaultConfig() *Config {
	return &Config{
		AmountTolerance:       decimal.NewFromFloat(0.01),
		AmountVarianceCeiling: decimal.NewFromFloat(5.00),
		DateWindowDays:        3,
		ChequeDateWindowDays:  10,
		AcceptanceThreshold:   0.75,
		AmbiguityMargin:       0.05,
		Weights: Weights{
			Amount: 0.5,
			Date:   0.3,
			Text:   0.2,
		},
		MagnitudeOnly:     false,
		MaxSplitGroupSize: 6,
		MaxCandidates:     25,
	}
}

// StrictConfig returns a configuration for exact-leaning reconciliation
func StrictConfig() *Config {
	cfg := DefaultConfig()
	cfg.AmountVarianceCeiling = decimal.NewFromFloat(0.01)
	cfg.DateWindowDays = 1
	cfg.ChequeDateWindowDays = 5
	cfg.AcceptanceThreshold = 0.9
	cfg.AmbiguityMargin = 0.1
	return cfg
}

// RelaxedConfig returns a configuration for exploratory matching of noisy
// legacy data
func RelaxedConfig() *Config {
	cfg := DefaultConfig()
	cfg.AmountVarianceCeiling = decimal.NewFromFloat(10.00)
	cfg.DateWindowDays = 7
	cfg.ChequeDateWindowDays = 21
	cfg.AcceptanceThreshold = 0.6
	cfg.AmbiguityMargin = 0.03
	return cfg
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.AmountTolerance.IsNegative() {
		return errors.InvalidConfiguration("amount_tolerance", c.AmountTolerance.String(), "cannot be negative")
	}

	if c.AmountVarianceCeiling.LessThan(c.AmountTolerance) {
		return errors.InvalidConfiguration("amount_variance_ceiling", c.AmountVarianceCeiling.String(),
			"cannot be less than amount_tolerance")
	}

	if c.DateWindowDays < 0 {
		return errors.InvalidConfiguration("date_window_days", c.DateWindowDays, "cannot be negative")
	}

	if c.ChequeDateWindowDays < 0 {
		return errors.InvalidConfiguration("cheque_date_window_days", c.ChequeDateWindowDays, "cannot be negative")
	}

	if c.AcceptanceThreshold < 0.0 || c.AcceptanceThreshold > 1.0 {
		return errors.InvalidConfiguration("acceptance_threshold", c.AcceptanceThreshold, "must be between 0.0 and 1.0")
	}

	if c.AmbiguityMargin < 0.0 || c.AmbiguityMargin > 1.0 {
		return errors.InvalidConfiguration("ambiguity_margin", c.AmbiguityMargin, "must be between 0.0 and 1.0")
	}

	if c.MaxSplitGroupSize < 2 {
		return errors.InvalidConfiguration("max_split_group_size", c.MaxSplitGroupSize, "must be at least 2")
	}

	if c.MaxCandidates < 0 {
		return errors.InvalidConfiguration("max_candidates", c.MaxCandidates, "cannot be negative")
	}

	if err := c.Weights.Validate(); err != nil {
		return err
	}

	return nil
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}

	clone := *c
	clone.ExtraStopwords = append([]string(nil), c.ExtraStopwords...)
	return &clone
}

// DateWindowFor returns the date window for the given source record,
// widened for slow-clearing instruments.
func (c *Config) DateWindowFor(source *models.SourceRecord) int {
	if source != nil && source.Instrument == models.InstrumentCheque {
		return c.ChequeDateWindowDays
	}
	return c.DateWindowDays
}
