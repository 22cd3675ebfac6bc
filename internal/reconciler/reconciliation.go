// Package reconciler orchestrates complete reconciliation runs: split
// pre-pass, sequential match resolution, post-pass absorption of leftover
// fragments, and run statistics.
//
// The run is single-threaded by design. Correctness depends on sequential,
// deterministic consumption of target records, so resolution is never
// parallelized; the only safely parallelizable stage would be scoring,
// which is pure.
package reconciler

import (
	"sort"
	"time"

	"ledgermatch/internal/matcher"
	"ledgermatch/internal/models"

	"ledgermatch/pkg/errors"
	"ledgermatch/pkg/logger"

	"github.com/shopspring/decimal"
)

// Config holds configuration options for a reconciliation run
type Config struct {
	// Matching is the engine configuration
	Matching *matcher.Config

	// DetectSplits enables the split pre-pass
	DetectSplits bool

	// AbsorbUnmatched enables the post-pass that retries split grouping
	// over records left unmatched by the main resolution pass
	AbsorbUnmatched bool

	// IncludeStatistics adds timing statistics to the result
	IncludeStatistics bool
}

// DefaultConfig returns a default run configuration
func DefaultConfig() *Config {
	return &Config{
		Matching:          matcher.DefaultConfig(),
		DetectSplits:      true,
		AbsorbUnmatched:   true,
		IncludeStatistics: true,
	}
}

// Validate validates the configuration. Fails fast at load; a validated
// configuration is never rejected mid-run.
func (c *Config) Validate() error {
	if c.Matching == nil {
		return errors.InvalidConfiguration("matching", nil, "matching configuration is required")
	}
	return c.Matching.Validate()
}

// RunStats captures timing information about a run
type RunStats struct {
	StartedAt        time.Time     `json:"started_at"`
	Duration         time.Duration `json:"duration"`
	SourcesProcessed int           `json:"sources_processed"`
	RecordsPerSecond float64       `json:"records_per_second"`
}

// Result is the complete outcome of one reconciliation run. The engine
// does not persist anything; callers own durability of the result.
type Result struct {
	Decisions       []*matcher.Decision       `json:"decisions"`
	SplitGroups     []*matcher.SplitGroup     `json:"split_groups,omitempty"`
	AmbiguousSplits []*matcher.AmbiguousSplit `json:"ambiguous_splits,omitempty"`

	Sources []*models.SourceRecord `json:"-"`
	Targets []*models.TargetRecord `json:"-"`

	ProcessedAt time.Time `json:"processed_at"`
	Stats       *RunStats `json:"stats,omitempty"`
}

// UnmatchedTargets returns targets left unconsumed at the end of the run
func (r *Result) UnmatchedTargets() []*models.TargetRecord {
	var unmatched []*models.TargetRecord
	for _, target := range r.Targets {
		if !target.IsConsumed() {
			unmatched = append(unmatched, target)
		}
	}
	return unmatched
}

// Service runs reconciliations. It holds no per-run state; each Reconcile
// call is independent.
type Service struct {
	cfg *Config
	log logger.Logger
}

// NewService creates a reconciliation service with a validated configuration
func NewService(cfg *Config) (*Service, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Service{
		cfg: cfg,
		log: logger.WithComponent("reconciler"),
	}, nil
}

// Reconcile matches the given sources against the given targets and
// returns the complete run result. Unmatched and ambiguous records are
// data in the result, never errors; the run always completes. An empty
// target set yields an all-unmatched result with a warning, not a failure.
func (s *Service) Reconcile(sources []*models.SourceRecord, targets []*models.TargetRecord) (*Result, error) {
	start := time.Now()

	s.log.WithFields(logger.Fields{
		"sources": len(sources),
		"targets": len(targets),
	}).Info("Starting reconciliation run")

	result := &Result{
		Sources:     sources,
		Targets:     targets,
		ProcessedAt: start,
	}

	index, err := matcher.NewTargetIndex(targets)
	if err != nil {
		if !errors.IsEmptyInput(err) {
			return nil, err
		}
		// Nothing to match: every source is unmatched, which callers
		// may still want reported.
		s.log.Warn("No target records supplied; reporting all sources unmatched")
		result.Decisions = allUnmatched(sources)
		s.finish(result, start)
		return result, nil
	}

	resolver := matcher.NewResolver(s.cfg.Matching, index)
	detector := matcher.NewSplitDetector(s.cfg.Matching, index)

	decisions := make(map[string]*matcher.Decision)

	// Pre-pass: group fragments whose sums match a whole target
	if s.cfg.DetectSplits {
		groups, ambiguous := detector.DetectSplits(sources)
		result.AmbiguousSplits = append(result.AmbiguousSplits, ambiguous...)
		for _, group := range groups {
			s.commitSourceGroup(result, decisions, resolver, group)
		}
		if len(groups) > 0 || len(ambiguous) > 0 {
			s.log.WithFields(logger.Fields{
				"groups":    len(groups),
				"ambiguous": len(ambiguous),
			}).Info("Split pre-pass complete")
		}
	}

	// Main pass: strictly sequential greedy resolution
	for _, decision := range resolver.Resolve(sources) {
		decisions[decision.Source.ID] = decision
	}

	// Post-pass: absorb fragments the main pass left unmatched
	if s.cfg.AbsorbUnmatched {
		s.absorbUnmatched(result, decisions, resolver, detector)
	}

	result.Decisions = orderDecisions(decisions)
	s.finish(result, start)

	s.log.WithFields(logger.Fields{
		"matched":   countStatus(result.Decisions, matcher.StatusMatched),
		"ambiguous": countStatus(result.Decisions, matcher.StatusAmbiguous),
		"unmatched": countStatus(result.Decisions, matcher.StatusUnmatched),
		"duration":  time.Since(start).String(),
	}).Info("Reconciliation run complete")

	return result, nil
}

// commitSourceGroup commits a sources-to-target split group: the composite
// source claims the group's single target and one decision covers all
// children.
func (s *Service) commitSourceGroup(result *Result, decisions map[string]*matcher.Decision, resolver *matcher.Resolver, group *matcher.SplitGroup) {
	composite := group.Composite()
	target := group.Target()
	if composite == nil || target == nil {
		return
	}

	if err := target.Consume(composite.ID); err != nil {
		s.log.WithError(err).WithField("group", group.ID).
			Error("Split group target consumed out of band")
		return
	}

	// Children stay covered by the composite decision; drop any
	// individual decisions recorded for them.
	for _, child := range group.Sources {
		delete(decisions, child.ID)
	}

	result.SplitGroups = append(result.SplitGroups, group)
	decisions[composite.ID] = &matcher.Decision{
		Source: composite,
		Status: matcher.StatusMatched,
		Target: target,
		Score:  resolver.Scorer().Score(composite, target),
		Group:  group,
	}
}

// absorbUnmatched retries split detection over the sources the main pass
// left unmatched: first fragment groups against remaining whole targets,
// then single sources against groups of remaining targets.
func (s *Service) absorbUnmatched(result *Result, decisions map[string]*matcher.Decision, resolver *matcher.Resolver, detector *matcher.SplitDetector) {
	leftovers := unmatchedSources(decisions)
	if len(leftovers) == 0 {
		return
	}

	groups, ambiguous := detector.DetectSplits(leftovers)
	result.AmbiguousSplits = append(result.AmbiguousSplits, ambiguous...)
	for _, group := range groups {
		s.commitSourceGroup(result, decisions, resolver, group)
	}

	leftovers = unmatchedSources(decisions)
	if len(leftovers) == 0 {
		return
	}

	targetGroups, targetAmbiguous := detector.DetectTargetSplits(leftovers)
	result.AmbiguousSplits = append(result.AmbiguousSplits, targetAmbiguous...)
	for _, group := range targetGroups {
		s.commitTargetGroup(result, decisions, resolver, group)
	}
}

// commitTargetGroup commits a targets-to-source split group: the source
// consumes every target part.
func (s *Service) commitTargetGroup(result *Result, decisions map[string]*matcher.Decision, resolver *matcher.Resolver, group *matcher.SplitGroup) {
	if len(group.Sources) != 1 || len(group.Targets) < 2 {
		return
	}
	source := group.Sources[0]

	for _, part := range group.Targets {
		if err := part.Consume(source.ID); err != nil {
			s.log.WithError(err).WithField("group", group.ID).
				Error("Split group target consumed out of band")
			return
		}
	}

	// Score the source against the parts as one synthetic counterpart
	synthetic := syntheticTarget(group)
	result.SplitGroups = append(result.SplitGroups, group)
	decisions[source.ID] = &matcher.Decision{
		Source: source,
		Status: matcher.StatusMatched,
		Target: nil,
		Score:  resolver.Scorer().Score(source, synthetic),
		Group:  group,
	}
}

// syntheticTarget builds the virtual counterpart used to score a
// targets-to-source group: summed amount, earliest part date.
func syntheticTarget(group *matcher.SplitGroup) *models.TargetRecord {
	sum := decimal.Zero
	earliest := group.Targets[0].Date
	description := ""
	for _, part := range group.Targets {
		sum = sum.Add(part.Amount)
		if part.Date.Before(earliest) {
			earliest = part.Date
		}
		if description == "" {
			description = part.Description
		}
	}
	return models.NewTargetRecord(group.ID, sum, earliest, description)
}

// finish attaches run statistics to the result
func (s *Service) finish(result *Result, start time.Time) {
	if !s.cfg.IncludeStatistics {
		return
	}

	duration := time.Since(start)
	stats := &RunStats{
		StartedAt:        start,
		Duration:         duration,
		SourcesProcessed: len(result.Sources),
	}
	if seconds := duration.Seconds(); seconds > 0 {
		stats.RecordsPerSecond = float64(len(result.Sources)) / seconds
	}
	result.Stats = stats
}

// allUnmatched builds unmatched decisions for every source, used when no
// targets were supplied
func allUnmatched(sources []*models.SourceRecord) []*matcher.Decision {
	decisions := make(map[string]*matcher.Decision, len(sources))
	for _, source := range sources {
		decisions[source.ID] = &matcher.Decision{
			Source: source,
			Status: matcher.StatusUnmatched,
		}
	}
	return orderDecisions(decisions)
}

// unmatchedSources collects sources whose current decision is unmatched
func unmatchedSources(decisions map[string]*matcher.Decision) []*models.SourceRecord {
	var leftovers []*models.SourceRecord
	for _, decision := range decisions {
		if decision.Status == matcher.StatusUnmatched {
			leftovers = append(leftovers, decision.Source)
		}
	}
	return leftovers
}

// orderDecisions returns decisions sorted by source date then identifier,
// so result order never depends on map iteration.
func orderDecisions(decisions map[string]*matcher.Decision) []*matcher.Decision {
	ordered := make([]*matcher.Decision, 0, len(decisions))
	for _, decision := range decisions {
		ordered = append(ordered, decision)
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		di := models.DateOnly(ordered[i].Source.Date)
		dj := models.DateOnly(ordered[j].Source.Date)
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		return ordered[i].Source.ID < ordered[j].Source.ID
	})
	return ordered
}

func countStatus(decisions []*matcher.Decision, status matcher.DecisionStatus) int {
	count := 0
	for _, decision := range decisions {
		if decision.Status == status {
			count++
		}
	}
	return count
}
