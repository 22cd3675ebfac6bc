package matcher

import (
	"sort"
	"time"

	"ledgermatch/internal/models"

	"ledgermatch/pkg/errors"

	"github.com/shopspring/decimal"
)

// TargetIndex provides sub-linear candidate retrieval over the target
// record set. It is built once per reconciliation run and is read-only;
// consumption state lives on the records themselves.
type TargetIndex struct {
	// amountIndex maps cent-rounded amounts to target slices
	amountIndex map[string][]*models.TargetRecord

	// dateIndex maps calendar dates (YYYY-MM-DD) to target slices
	dateIndex map[string][]*models.TargetRecord

	// idIndex maps target identifiers for pre-link lookups
	idIndex map[string]*models.TargetRecord

	// amountEntries provides sorted amounts for range-based lookups
	amountEntries []*amountEntry

	// all holds every indexed target
	all []*models.TargetRecord
}

// amountEntry represents an entry in the sorted amount index
type amountEntry struct {
	amount  decimal.Decimal
	targets []*models.TargetRecord
}

// amountKey buckets an amount to the cent for exact-amount lookups
func amountKey(amount decimal.Decimal) string {
	return amount.Round(2).String()
}

// NewTargetIndex builds an index over the given targets. An empty target
// set returns an empty-input error so callers can warn; the orchestrating
// service treats it as "nothing to match", not a fatal condition.
func NewTargetIndex(targets []*models.TargetRecord) (*TargetIndex, error) {
	if len(targets) == 0 {
		return nil, errors.EmptyInput("target records")
	}

	index := &TargetIndex{
		amountIndex: make(map[string][]*models.TargetRecord),
		dateIndex:   make(map[string][]*models.TargetRecord),
		idIndex:     make(map[string]*models.TargetRecord, len(targets)),
		all:         targets,
	}

	index.build()
	return index, nil
}

// build constructs all internal indexes
func (ti *TargetIndex) build() {
	amountMap := make(map[string]*amountEntry)

	for _, target := range ti.all {
		key := amountKey(target.Amount)
		dateKey := models.DateOnly(target.Date).Format("2006-01-02")

		ti.amountIndex[key] = append(ti.amountIndex[key], target)
		ti.dateIndex[dateKey] = append(ti.dateIndex[dateKey], target)
		ti.idIndex[target.ID] = target

		if entry, exists := amountMap[key]; exists {
			entry.targets = append(entry.targets, target)
		} else {
			amountMap[key] = &amountEntry{
				amount:  target.Amount.Round(2),
				targets: []*models.TargetRecord{target},
			}
		}
	}

	ti.amountEntries = make([]*amountEntry, 0, len(amountMap))
	for _, entry := range amountMap {
		ti.amountEntries = append(ti.amountEntries, entry)
	}

	sort.Slice(ti.amountEntries, func(i, j int) bool {
		return ti.amountEntries[i].amount.LessThan(ti.amountEntries[j].amount)
	})
}

// All returns every indexed target
func (ti *TargetIndex) All() []*models.TargetRecord {
	return ti.all
}

// Len returns the number of indexed targets
func (ti *TargetIndex) Len() int {
	return len(ti.all)
}

// ByID returns the target with the given identifier, or nil
func (ti *TargetIndex) ByID(id string) *models.TargetRecord {
	return ti.idIndex[id]
}

// ByExactAmount returns targets whose cent-rounded amount equals the given
// amount
func (ti *TargetIndex) ByExactAmount(amount decimal.Decimal) []*models.TargetRecord {
	return ti.amountIndex[amountKey(amount)]
}

// ByDate returns targets dated on the given calendar date
func (ti *TargetIndex) ByDate(date time.Time) []*models.TargetRecord {
	return ti.dateIndex[models.DateOnly(date).Format("2006-01-02")]
}

// byAmountRange returns targets within the inclusive amount range
func (ti *TargetIndex) byAmountRange(minAmount, maxAmount decimal.Decimal) []*models.TargetRecord {
	var result []*models.TargetRecord

	startIdx := sort.Search(len(ti.amountEntries), func(i int) bool {
		return ti.amountEntries[i].amount.GreaterThanOrEqual(minAmount)
	})

	for i := startIdx; i < len(ti.amountEntries); i++ {
		entry := ti.amountEntries[i]
		if entry.amount.GreaterThan(maxAmount) {
			break
		}
		result = append(result, entry.targets...)
	}

	return result
}

// Query returns unconsumed targets whose amount falls within the variance
// ceiling of the source amount and whose date falls within the source's
// date window. Pure read; no side effects.
//
// Sign is a hard filter: a debit source never matches a credit target,
// even at identical magnitude, unless MagnitudeOnly is enabled.
func (ti *TargetIndex) Query(source *models.SourceRecord, cfg *Config) []*models.TargetRecord {
	ceiling := cfg.AmountVarianceCeiling

	candidates := ti.byAmountRange(source.Amount.Sub(ceiling), source.Amount.Add(ceiling))

	if cfg.MagnitudeOnly {
		// Also retrieve the mirrored range for cross-sign matching
		mirrored := source.Amount.Neg()
		candidates = append(candidates, ti.byAmountRange(mirrored.Sub(ceiling), mirrored.Add(ceiling))...)
	}

	window := cfg.DateWindowFor(source)

	var result []*models.TargetRecord
	seen := make(map[string]bool, len(candidates))
	for _, target := range candidates {
		if seen[target.ID] {
			continue
		}
		seen[target.ID] = true

		if target.IsConsumed() {
			continue
		}

		if !cfg.MagnitudeOnly && !models.SameSign(source.Amount, target.Amount) {
			continue
		}

		if cfg.MagnitudeOnly {
			diff := source.Amount.Abs().Sub(target.Amount.Abs()).Abs()
			if diff.GreaterThan(ceiling) {
				continue
			}
		}

		// A record dated exactly at the window edge is included
		if models.DaysBetween(source.Date, target.Date) > window {
			continue
		}

		result = append(result, target)
	}

	// Stable result order regardless of index internals
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})

	if cfg.MaxCandidates > 0 && len(result) > cfg.MaxCandidates {
		result = result[:cfg.MaxCandidates]
	}

	return result
}

// UnconsumedByAmount returns unconsumed targets at the exact cent-rounded
// amount. Used by split detection to find composite counterparts.
func (ti *TargetIndex) UnconsumedByAmount(amount decimal.Decimal, tolerance decimal.Decimal) []*models.TargetRecord {
	candidates := ti.byAmountRange(amount.Sub(tolerance), amount.Add(tolerance))

	var result []*models.TargetRecord
	for _, target := range candidates {
		if !target.IsConsumed() {
			result = append(result, target)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})

	return result
}

// Stats provides statistics about index shape, surfaced in run logs
type Stats struct {
	TotalTargets  int `json:"total_targets"`
	UniqueAmounts int `json:"unique_amounts"`
	UniqueDates   int `json:"unique_dates"`
}

// Stats returns statistics about the index
func (ti *TargetIndex) Stats() Stats {
	return Stats{
		TotalTargets:  len(ti.all),
		UniqueAmounts: len(ti.amountEntries),
		UniqueDates:   len(ti.dateIndex),
	}
}
