package matcher

import (
	"sort"

	"ledgermatch/internal/models"

	"ledgermatch/pkg/logger"
)

// DecisionStatus classifies the outcome of resolving one source record
type DecisionStatus string

const (
	// StatusMatched means a single candidate cleared the acceptance
	// threshold with a sufficient lead and consumed its target.
	StatusMatched DecisionStatus = "MATCHED"

	// StatusAmbiguous means two or more candidates cleared the threshold
	// within the ambiguity margin of each other. Surfaced for manual
	// resolution, never auto-resolved.
	StatusAmbiguous DecisionStatus = "AMBIGUOUS"

	// StatusUnmatched means no candidate cleared the threshold. This is
	// the expected common case for noisy financial data, not an error.
	StatusUnmatched DecisionStatus = "UNMATCHED"
)

// String returns the string representation of DecisionStatus
func (s DecisionStatus) String() string {
	return string(s)
}

// Candidate is an ephemeral (target, score) pair produced during scoring.
// Candidates live only within a reconciliation run.
type Candidate struct {
	Target *models.TargetRecord `json:"target"`
	Score  ScoreResult          `json:"score"`
}

// Decision is the resolver's committed outcome for one source record (or
// one split group, when Group is set).
type Decision struct {
	Source *models.SourceRecord `json:"source"`
	Status DecisionStatus       `json:"status"`

	// Target and Score are set for Matched decisions
	Target *models.TargetRecord `json:"target,omitempty"`
	Score  ScoreResult          `json:"score,omitempty"`

	// Candidates holds the near-equal contenders for Ambiguous decisions
	Candidates []Candidate `json:"candidates,omitempty"`

	// Group is set when the decision covers a split group rather than an
	// individual record
	Group *SplitGroup `json:"group,omitempty"`

	// PreLinked marks a match honored from a pre-existing source link
	PreLinked bool `json:"pre_linked,omitempty"`
}

// Resolver converts per-source candidate lists into committed decisions
// while enforcing global uniqueness of target consumption.
//
// Resolution is greedy and order-dependent on purpose: sources are
// processed in ascending (date, identifier) order and every accepted match
// consumes its target immediately. The result is deterministic and each
// decision has a self-contained rationale, at the cost of global
// optimality. Resolve must not run concurrently.
type Resolver struct {
	cfg    *Config
	index  *TargetIndex
	scorer *Scorer
	log    logger.Logger
}

// NewResolver creates a resolver over a built target index
func NewResolver(cfg *Config, index *TargetIndex) *Resolver {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	return &Resolver{
		cfg:    cfg,
		index:  index,
		scorer: NewScorer(cfg),
		log:    logger.WithComponent("resolver"),
	}
}

// Scorer returns the resolver's scorer, shared with split handling so
// composite scores use identical weights.
func (r *Resolver) Scorer() *Scorer {
	return r.scorer
}

// Resolve processes the given sources in stable order and returns one
// decision per record. Split children (ParentID set) are skipped; their
// group's composite decision covers them.
func (r *Resolver) Resolve(sources []*models.SourceRecord) []*Decision {
	ordered := orderSources(sources)

	decisions := make([]*Decision, 0, len(ordered))
	for _, source := range ordered {
		if source.IsSplitChild() {
			continue
		}

		decisions = append(decisions, r.resolveOne(source))
	}

	return decisions
}

// resolveOne commits a decision for a single source record
func (r *Resolver) resolveOne(source *models.SourceRecord) *Decision {
	if source.IsLinked() {
		if decision := r.honorLink(source); decision != nil {
			return decision
		}
		// Link points at an unknown or already-consumed target; fall
		// through to normal resolution.
		r.log.WithFields(logger.Fields{
			"source": source.ID,
			"link":   source.LinkedTargetID,
		}).Warn("Pre-existing link could not be honored")
	}

	ranked := r.rank(source)
	if len(ranked) == 0 {
		return &Decision{Source: source, Status: StatusUnmatched}
	}

	top := ranked[0]
	if top.Score.Total < r.cfg.AcceptanceThreshold {
		return &Decision{Source: source, Status: StatusUnmatched}
	}

	// Only threshold-clearing candidates compete for the match. A
	// sub-threshold runner-up inside the margin never blocks acceptance.
	contenders := []Candidate{top}
	for _, c := range ranked[1:] {
		if c.Score.Total < r.cfg.AcceptanceThreshold {
			break
		}
		if top.Score.Total-c.Score.Total < r.cfg.AmbiguityMargin {
			contenders = append(contenders, c)
		}
	}

	if len(contenders) > 1 {
		r.log.WithFields(logger.Fields{
			"source":     source.ID,
			"contenders": len(contenders),
		}).Debug("Ambiguous match surfaced for manual resolution")
		return &Decision{
			Source:     source,
			Status:     StatusAmbiguous,
			Candidates: contenders,
		}
	}

	if err := top.Target.Consume(source.ID); err != nil {
		// Query excludes consumed targets, so this cannot happen in a
		// sequential run; degrade to unmatched rather than abort.
		r.log.WithError(err).WithField("source", source.ID).
			Error("Candidate target consumed out of band")
		return &Decision{Source: source, Status: StatusUnmatched}
	}

	return &Decision{
		Source: source,
		Status: StatusMatched,
		Target: top.Target,
		Score:  top.Score,
	}
}

// honorLink commits a match for a pre-linked source if the linked target
// exists and is unconsumed. Returns nil when the link cannot be honored.
func (r *Resolver) honorLink(source *models.SourceRecord) *Decision {
	target := r.index.ByID(source.LinkedTargetID)
	if target == nil || target.IsConsumed() {
		return nil
	}

	if err := target.Consume(source.ID); err != nil {
		return nil
	}

	return &Decision{
		Source:    source,
		Status:    StatusMatched,
		Target:    target,
		Score:     r.scorer.Score(source, target),
		PreLinked: true,
	}
}

// rank scores all candidates for a source and orders them by score
// descending, breaking ties by target identifier for reproducible runs.
func (r *Resolver) rank(source *models.SourceRecord) []Candidate {
	targets := r.index.Query(source, r.cfg)
	if len(targets) == 0 {
		return nil
	}

	candidates := make([]Candidate, 0, len(targets))
	for _, target := range targets {
		candidates = append(candidates, Candidate{
			Target: target,
			Score:  r.scorer.Score(source, target),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score.Total != candidates[j].Score.Total {
			return candidates[i].Score.Total > candidates[j].Score.Total
		}
		return candidates[i].Target.ID < candidates[j].Target.ID
	})

	return candidates
}

// orderSources returns sources sorted by ascending date then identifier.
// Insertion order of the caller's slice never influences decisions.
func orderSources(sources []*models.SourceRecord) []*models.SourceRecord {
	ordered := make([]*models.SourceRecord, len(sources))
	copy(ordered, sources)

	sort.SliceStable(ordered, func(i, j int) bool {
		di := models.DateOnly(ordered[i].Date)
		dj := models.DateOnly(ordered[j].Date)
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		return ordered[i].ID < ordered[j].ID
	})

	return ordered
}
