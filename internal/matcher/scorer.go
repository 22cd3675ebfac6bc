package matcher

import (
	"math"
	"strings"

	"ledgermatch/internal/models"

	"github.com/agnivade/levenshtein"
	"github.com/shopspring/decimal"
)

// defaultStopwords are tokens that carry no matching signal because banks
// and ledger exports stamp them onto everything.
var defaultStopwords = []string{
	"payment", "pmt", "transfer", "pos", "eft", "debit", "credit",
	"withdrawal", "deposit", "cheque", "chq", "ref", "interac",
	"purchase", "memo", "the", "and", "of",
}

// ScoreResult is the composite match score for a (source, target) pair,
// with the per-component breakdown preserved for the audit trail.
type ScoreResult struct {
	Total       float64 `json:"total"`
	AmountScore float64 `json:"amount_score"`
	DateScore   float64 `json:"date_score"`
	TextScore   float64 `json:"text_score"`

	AmountDifference decimal.Decimal `json:"amount_difference"`
	DateOffsetDays   int             `json:"date_offset_days"`

	Reasons []string `json:"reasons,omitempty"`
}

// Scorer computes normalized match scores in [0,1] for (source, target)
// pairs. Scoring is deterministic and side-effect free: identical inputs
// always produce identical scores, which keeps reconciliation reports
// reproducible.
type Scorer struct {
	cfg       *Config
	stopwords map[string]bool
}

// NewScorer creates a scorer for the given configuration
func NewScorer(cfg *Config) *Scorer {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	stopwords := make(map[string]bool, len(defaultStopwords)+len(cfg.ExtraStopwords))
	for _, w := range defaultStopwords {
		stopwords[w] = true
	}
	for _, w := range cfg.ExtraStopwords {
		stopwords[strings.ToLower(strings.TrimSpace(w))] = true
	}

	return &Scorer{
		cfg:       cfg,
		stopwords: stopwords,
	}
}

// Score computes the composite match score between a source and a target
func (s *Scorer) Score(source *models.SourceRecord, target *models.TargetRecord) ScoreResult {
	result := ScoreResult{}

	result.AmountScore, result.AmountDifference = s.amountScore(source, target)
	result.DateScore, result.DateOffsetDays = s.dateScore(source, target)
	result.TextScore = s.textScore(source.Description, target.Description)

	w := s.cfg.Weights
	result.Total = result.AmountScore*w.Amount +
		result.DateScore*w.Date +
		result.TextScore*w.Text

	result.Reasons = s.reasons(result)
	return result
}

// amountScore is 1.0 when the difference is within the tolerance epsilon,
// then decays linearly to 0 at the variance ceiling.
func (s *Scorer) amountScore(source *models.SourceRecord, target *models.TargetRecord) (float64, decimal.Decimal) {
	srcAmount := source.Amount
	tgtAmount := target.Amount
	if s.cfg.MagnitudeOnly {
		srcAmount = srcAmount.Abs()
		tgtAmount = tgtAmount.Abs()
	}

	diff := srcAmount.Sub(tgtAmount).Abs()

	if diff.LessThanOrEqual(s.cfg.AmountTolerance) {
		return 1.0, diff
	}

	ceiling := s.cfg.AmountVarianceCeiling
	if diff.GreaterThanOrEqual(ceiling) {
		return 0.0, diff
	}

	span := ceiling.Sub(s.cfg.AmountTolerance)
	ratio, _ := diff.Sub(s.cfg.AmountTolerance).Div(span).Float64()
	return math.Max(0.0, 1.0-ratio), diff
}

// dateScore is 1.0 at zero day-offset and decays linearly to 0 at the edge
// of the date window.
func (s *Scorer) dateScore(source *models.SourceRecord, target *models.TargetRecord) (float64, int) {
	offset := models.DaysBetween(source.Date, target.Date)
	window := s.cfg.DateWindowFor(source)

	if window == 0 {
		if offset == 0 {
			return 1.0, offset
		}
		return 0.0, offset
	}

	if offset > window {
		return 0.0, offset
	}

	return math.Max(0.0, 1.0-float64(offset)/float64(window)), offset
}

// textScore compares cleaned descriptions using the better of normalized
// token overlap and edit-distance similarity. When either side has no
// usable tokens the score is neutral rather than zero, so sparse legacy
// descriptions do not sink otherwise solid matches.
func (s *Scorer) textScore(a, b string) float64 {
	tokensA := s.normalize(a)
	tokensB := s.normalize(b)

	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0.5
	}

	overlap := diceCoefficient(tokensA, tokensB)
	edit := editSimilarity(strings.Join(tokensA, " "), strings.Join(tokensB, " "))

	return math.Max(overlap, edit)
}

// normalize case-folds a description, strips punctuation, and removes
// stopwords, returning the remaining tokens in order.
func (s *Scorer) normalize(text string) []string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}

	var tokens []string
	for _, tok := range strings.Fields(b.String()) {
		if s.stopwords[tok] {
			continue
		}
		tokens = append(tokens, tok)
	}

	return tokens
}

// diceCoefficient computes token-set overlap: 2*|shared| / (|A|+|B|)
func diceCoefficient(a, b []string) float64 {
	setA := make(map[string]bool, len(a))
	for _, tok := range a {
		setA[tok] = true
	}
	setB := make(map[string]bool, len(b))
	for _, tok := range b {
		setB[tok] = true
	}

	shared := 0
	for tok := range setA {
		if setB[tok] {
			shared++
		}
	}

	return 2.0 * float64(shared) / float64(len(setA)+len(setB))
}

// editSimilarity converts Levenshtein distance to a similarity in [0,1]
func editSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}

	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 1.0
	}

	dist := levenshtein.ComputeDistance(a, b)
	return math.Max(0.0, 1.0-float64(dist)/float64(longest))
}

// reasons generates the human-readable rationale attached to each score
func (s *Scorer) reasons(r ScoreResult) []string {
	var reasons []string

	if r.AmountScore == 1.0 {
		reasons = append(reasons, "Amount within tolerance")
	} else if r.AmountScore > 0.0 {
		reasons = append(reasons, "Amount within variance ceiling")
	} else {
		reasons = append(reasons, "Amount outside variance ceiling")
	}

	if r.DateOffsetDays == 0 {
		reasons = append(reasons, "Same date")
	} else if r.DateScore > 0.0 {
		reasons = append(reasons, "Date within window")
	} else {
		reasons = append(reasons, "Date at or beyond window edge")
	}

	if r.TextScore >= 0.8 {
		reasons = append(reasons, "Strong description similarity")
	} else if r.TextScore > 0.5 {
		reasons = append(reasons, "Partial description similarity")
	}

	return reasons
}
