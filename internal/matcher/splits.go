package matcher

import (
	"fmt"
	"sort"
	"strings"

	"ledgermatch/internal/models"

	"ledgermatch/pkg/logger"

	"github.com/shopspring/decimal"
)

// SplitDirection indicates which side of a split group holds the fragments
type SplitDirection string

const (
	// SplitSourcesToTarget groups several source fragments against one
	// target (a single bank debit backing multiple receipts).
	SplitSourcesToTarget SplitDirection = "SOURCES_TO_TARGET"

	// SplitTargetsToSource groups several targets against one source (a
	// receipt settled by multiple bank transactions).
	SplitTargetsToSource SplitDirection = "TARGETS_TO_SOURCE"
)

// SplitGroup is a confirmed one-to-many amount relationship: the fragment
// amounts sum to the counterpart amount within the tolerance epsilon.
// Nesting is limited to one level; fragments never form further groups.
type SplitGroup struct {
	ID        string                 `json:"id"`
	Direction SplitDirection         `json:"direction"`
	Sources   []*models.SourceRecord `json:"sources"`
	Targets   []*models.TargetRecord `json:"targets"`
	Sum       decimal.Decimal        `json:"sum"`
}

// Target returns the single counterpart target of a sources-to-target group
func (g *SplitGroup) Target() *models.TargetRecord {
	if g.Direction == SplitSourcesToTarget && len(g.Targets) == 1 {
		return g.Targets[0]
	}
	return nil
}

// Composite builds the synthetic source record the resolver scores in
// place of the individual fragments: summed amount, earliest fragment
// date, concatenated descriptions.
func (g *SplitGroup) Composite() *models.SourceRecord {
	if len(g.Sources) == 0 {
		return nil
	}

	sum := decimal.Zero
	earliest := g.Sources[0].Date
	descriptions := make([]string, 0, len(g.Sources))
	for _, src := range g.Sources {
		sum = sum.Add(src.Amount)
		if src.Date.Before(earliest) {
			earliest = src.Date
		}
		if src.Description != "" {
			descriptions = append(descriptions, src.Description)
		}
	}

	composite := models.NewSourceRecord(g.ID, sum, earliest, strings.Join(descriptions, " / "))
	composite.Instrument = g.Sources[0].Instrument
	return composite
}

// AmbiguousSplit records a target (or source) for which multiple distinct
// fragment groupings each sum to the counterpart amount. The handler
// declines to auto-group these; guessing silently would corrupt the audit
// trail.
type AmbiguousSplit struct {
	Direction SplitDirection       `json:"direction"`
	Target    *models.TargetRecord `json:"target,omitempty"`
	Source    *models.SourceRecord `json:"source,omitempty"`
	Groupings [][]string           `json:"groupings"`
}

// SplitDetector finds one-to-many amount relationships before and after
// the main resolution pass.
type SplitDetector struct {
	cfg   *Config
	index *TargetIndex
	log   logger.Logger
}

// NewSplitDetector creates a split detector over a built target index
func NewSplitDetector(cfg *Config, index *TargetIndex) *SplitDetector {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	return &SplitDetector{
		cfg:   cfg,
		index: index,
		log:   logger.WithComponent("split_detector"),
	}
}

// DetectSplits finds groups of source fragments whose amounts sum to a
// single unconsumed target within the tolerance epsilon. Only sources
// sharing the target's date window and sign are considered, and the
// combination search is capped at MaxSplitGroupSize fragments; an
// unrestricted subset-sum search is deliberately off the table.
//
// Confirmed groups have their children stamped with the group's parent ID.
// Targets with more than one distinct grouping are reported as ambiguous
// and left ungrouped.
func (sd *SplitDetector) DetectSplits(sources []*models.SourceRecord) ([]*SplitGroup, []*AmbiguousSplit) {
	var groups []*SplitGroup
	var ambiguous []*AmbiguousSplit

	assigned := make(map[string]bool)

	// Targets in identifier order keep grouping deterministic
	targets := append([]*models.TargetRecord(nil), sd.index.All()...)
	sort.Slice(targets, func(i, j int) bool {
		return targets[i].ID < targets[j].ID
	})

	for _, target := range targets {
		if target.IsConsumed() {
			continue
		}

		fragments := sd.eligibleFragments(sources, target, assigned)
		if len(fragments) < 2 {
			continue
		}

		// A target with a plausible one-to-one counterpart belongs to
		// the resolver, not the split handler.
		if sd.hasExactSingle(fragments, target.Amount) {
			continue
		}

		combos := findCombinations(fragmentAmounts(fragments), target.Amount,
			sd.cfg.AmountTolerance, sd.cfg.MaxSplitGroupSize, 3)

		switch len(combos) {
		case 0:
			continue
		case 1:
			group := sd.buildGroup(target, fragments, combos[0])
			for _, child := range group.Sources {
				child.ParentID = group.ID
				assigned[child.ID] = true
			}
			groups = append(groups, group)
			sd.log.WithFields(logger.Fields{
				"target":    target.ID,
				"fragments": len(group.Sources),
				"sum":       group.Sum.String(),
			}).Debug("Split group confirmed")
		default:
			ambiguous = append(ambiguous, &AmbiguousSplit{
				Direction: SplitSourcesToTarget,
				Target:    target,
				Groupings: comboIDs(fragments, combos),
			})
			sd.log.WithField("target", target.ID).
				Debug("Competing split groupings; declining to auto-group")
		}
	}

	return groups, ambiguous
}

// DetectTargetSplits finds single sources settled by multiple unconsumed
// targets, the mirror of DetectSplits. Used in the post-pass to absorb
// sources that would otherwise stay unmatched.
func (sd *SplitDetector) DetectTargetSplits(sources []*models.SourceRecord) ([]*SplitGroup, []*AmbiguousSplit) {
	var groups []*SplitGroup
	var ambiguous []*AmbiguousSplit

	consumedHere := make(map[string]bool)

	ordered := orderSources(sources)
	for _, source := range ordered {
		if source.IsSplitChild() || source.IsLinked() {
			continue
		}

		window := sd.cfg.DateWindowFor(source)

		var parts []*models.TargetRecord
		for _, target := range sd.index.All() {
			if target.IsConsumed() || consumedHere[target.ID] {
				continue
			}
			if !sd.cfg.MagnitudeOnly && !models.SameSign(source.Amount, target.Amount) {
				continue
			}
			if models.DaysBetween(source.Date, target.Date) > window {
				continue
			}
			parts = append(parts, target)
		}

		if len(parts) < 2 {
			continue
		}

		sort.Slice(parts, func(i, j int) bool {
			return parts[i].ID < parts[j].ID
		})

		combos := findCombinations(targetAmounts(parts), source.Amount,
			sd.cfg.AmountTolerance, sd.cfg.MaxSplitGroupSize, 3)

		switch len(combos) {
		case 0:
			continue
		case 1:
			group := &SplitGroup{
				ID:        fmt.Sprintf("SPLIT-%s", source.ID),
				Direction: SplitTargetsToSource,
				Sources:   []*models.SourceRecord{source},
				Sum:       decimal.Zero,
			}
			for _, idx := range combos[0] {
				group.Targets = append(group.Targets, parts[idx])
				group.Sum = group.Sum.Add(parts[idx].Amount)
				consumedHere[parts[idx].ID] = true
			}
			groups = append(groups, group)
		default:
			groupings := make([][]string, 0, len(combos))
			for _, combo := range combos {
				ids := make([]string, 0, len(combo))
				for _, idx := range combo {
					ids = append(ids, parts[idx].ID)
				}
				groupings = append(groupings, ids)
			}
			ambiguous = append(ambiguous, &AmbiguousSplit{
				Direction: SplitTargetsToSource,
				Source:    source,
				Groupings: groupings,
			})
		}
	}

	return groups, ambiguous
}

// eligibleFragments returns unassigned, unlinked, non-child sources that
// share the target's sign and date window, in identifier order.
func (sd *SplitDetector) eligibleFragments(sources []*models.SourceRecord, target *models.TargetRecord, assigned map[string]bool) []*models.SourceRecord {
	var fragments []*models.SourceRecord
	for _, src := range sources {
		if assigned[src.ID] || src.IsSplitChild() || src.IsLinked() {
			continue
		}
		if !sd.cfg.MagnitudeOnly && !models.SameSign(src.Amount, target.Amount) {
			continue
		}
		if models.DaysBetween(src.Date, target.Date) > sd.cfg.DateWindowFor(src) {
			continue
		}
		// A fragment at least as large as the whole counterpart cannot
		// belong to a split of it.
		if src.Amount.Abs().GreaterThanOrEqual(target.Amount.Abs()) {
			continue
		}
		fragments = append(fragments, src)
	}

	sort.Slice(fragments, func(i, j int) bool {
		return fragments[i].ID < fragments[j].ID
	})

	return fragments
}

// hasExactSingle reports whether any single fragment alone matches the
// amount within tolerance
func (sd *SplitDetector) hasExactSingle(fragments []*models.SourceRecord, amount decimal.Decimal) bool {
	for _, src := range fragments {
		if models.WithinTolerance(src.Amount, amount, sd.cfg.AmountTolerance) {
			return true
		}
	}
	return false
}

// buildGroup assembles a confirmed sources-to-target group
func (sd *SplitDetector) buildGroup(target *models.TargetRecord, fragments []*models.SourceRecord, combo []int) *SplitGroup {
	group := &SplitGroup{
		ID:        fmt.Sprintf("SPLIT-%s", target.ID),
		Direction: SplitSourcesToTarget,
		Targets:   []*models.TargetRecord{target},
		Sum:       decimal.Zero,
	}

	for _, idx := range combo {
		group.Sources = append(group.Sources, fragments[idx])
		group.Sum = group.Sum.Add(fragments[idx].Amount)
	}

	return group
}

func fragmentAmounts(fragments []*models.SourceRecord) []decimal.Decimal {
	amounts := make([]decimal.Decimal, len(fragments))
	for i, src := range fragments {
		amounts[i] = src.Amount
	}
	return amounts
}

func targetAmounts(targets []*models.TargetRecord) []decimal.Decimal {
	amounts := make([]decimal.Decimal, len(targets))
	for i, t := range targets {
		amounts[i] = t.Amount
	}
	return amounts
}

func comboIDs(fragments []*models.SourceRecord, combos [][]int) [][]string {
	groupings := make([][]string, 0, len(combos))
	for _, combo := range combos {
		ids := make([]string, 0, len(combo))
		for _, idx := range combo {
			ids = append(ids, fragments[idx].ID)
		}
		groupings = append(groupings, ids)
	}
	return groupings
}

// findCombinations searches for index combinations of size 2..maxSize whose
// amounts sum to the goal within tolerance. The search walks candidates in
// order and prunes on magnitude, so results are deterministic; it stops
// after maxResults combinations since the callers only need to distinguish
// "exactly one" from "several".
func findCombinations(amounts []decimal.Decimal, goal decimal.Decimal, tolerance decimal.Decimal, maxSize, maxResults int) [][]int {
	var results [][]int
	var combo []int

	goalAbs := goal.Abs()

	var walk func(start int, sum decimal.Decimal)
	walk = func(start int, sum decimal.Decimal) {
		if len(results) >= maxResults {
			return
		}

		if len(combo) >= 2 && models.WithinTolerance(sum, goal, tolerance) {
			results = append(results, append([]int(nil), combo...))
			return
		}

		if len(combo) == maxSize {
			return
		}

		for i := start; i < len(amounts); i++ {
			next := sum.Add(amounts[i])
			// Prune once the running magnitude overshoots the goal
			if next.Abs().GreaterThan(goalAbs.Add(tolerance)) {
				continue
			}
			combo = append(combo, i)
			walk(i+1, next)
			combo = combo[:len(combo)-1]
			if len(results) >= maxResults {
				return
			}
		}
	}

	walk(0, decimal.Zero)
	return results
}
