// Package reporter aggregates reconciliation outcomes into a structured
// report and renders it for human or programmatic consumption.
//
// The report builder is pure aggregation: it counts and buckets decisions,
// never re-examines matching logic. Ambiguous and unmatched records are
// always enumerated in full so nothing requiring human review is silently
// dropped.
//
// Supported output formats:
//   - Console: human-readable summary for terminal display
//   - JSON: structured data for downstream audit tooling
//   - CSV: flat record-per-row export for spreadsheets
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"ledgermatch/internal/matcher"
	"ledgermatch/internal/models"
	"ledgermatch/internal/reconciler"

	"github.com/shopspring/decimal"
)

// OutputFormat represents the supported report output formats
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV:
		return true
	default:
		return false
	}
}

// Summary provides the aggregate counts and totals of one run
type Summary struct {
	TotalSources int `json:"total_sources"`
	TotalTargets int `json:"total_targets"`

	MatchedSources   int `json:"matched_sources"`
	MatchedTargets   int `json:"matched_targets"`
	AmbiguousSources int `json:"ambiguous_sources"`
	UnmatchedSources int `json:"unmatched_sources"`
	UnmatchedTargets int `json:"unmatched_targets"`

	SplitGroups     int `json:"split_groups"`
	AmbiguousSplits int `json:"ambiguous_splits"`

	TotalMatchedAmount         decimal.Decimal `json:"total_matched_amount"`
	TotalUnmatchedSourceAmount decimal.Decimal `json:"total_unmatched_source_amount"`
	TotalUnmatchedTargetAmount decimal.Decimal `json:"total_unmatched_target_amount"`

	ProcessingDuration time.Duration `json:"processing_duration"`
}

// Report is the structured reconciliation summary handed to callers for
// persistence or export
type Report struct {
	Summary Summary `json:"summary"`

	Matched          []*matcher.Decision       `json:"matched,omitempty"`
	Ambiguous        []*matcher.Decision       `json:"ambiguous,omitempty"`
	UnmatchedSources []*models.SourceRecord    `json:"unmatched_sources,omitempty"`
	UnmatchedTargets []*models.TargetRecord    `json:"unmatched_targets,omitempty"`
	SplitGroups      []*matcher.SplitGroup     `json:"split_groups,omitempty"`
	AmbiguousSplits  []*matcher.AmbiguousSplit `json:"ambiguous_splits,omitempty"`

	ProcessedAt time.Time            `json:"processed_at"`
	Stats       *reconciler.RunStats `json:"stats,omitempty"`
}

// BuildReport aggregates a run result into a report
func BuildReport(result *reconciler.Result) *Report {
	report := &Report{
		SplitGroups:     result.SplitGroups,
		AmbiguousSplits: result.AmbiguousSplits,
		ProcessedAt:     result.ProcessedAt,
		Stats:           result.Stats,
	}

	summary := Summary{
		TotalSources:               len(result.Sources),
		TotalTargets:               len(result.Targets),
		SplitGroups:                len(result.SplitGroups),
		AmbiguousSplits:            len(result.AmbiguousSplits),
		TotalMatchedAmount:         decimal.Zero,
		TotalUnmatchedSourceAmount: decimal.Zero,
		TotalUnmatchedTargetAmount: decimal.Zero,
	}

	for _, decision := range result.Decisions {
		switch decision.Status {
		case matcher.StatusMatched:
			report.Matched = append(report.Matched, decision)
			summary.MatchedSources += coveredSources(decision)
			summary.TotalMatchedAmount = summary.TotalMatchedAmount.Add(decision.Source.Amount.Abs())
		case matcher.StatusAmbiguous:
			report.Ambiguous = append(report.Ambiguous, decision)
			summary.AmbiguousSources++
		case matcher.StatusUnmatched:
			report.UnmatchedSources = append(report.UnmatchedSources, decision.Source)
			summary.UnmatchedSources++
			summary.TotalUnmatchedSourceAmount = summary.TotalUnmatchedSourceAmount.Add(decision.Source.Amount.Abs())
		}
	}

	for _, target := range result.Targets {
		if target.IsConsumed() {
			summary.MatchedTargets++
		} else {
			report.UnmatchedTargets = append(report.UnmatchedTargets, target)
			summary.UnmatchedTargets++
			summary.TotalUnmatchedTargetAmount = summary.TotalUnmatchedTargetAmount.Add(target.Amount.Abs())
		}
	}

	if result.Stats != nil {
		summary.ProcessingDuration = result.Stats.Duration
	}

	report.Summary = summary
	return report
}

// coveredSources counts the actual source records a decision covers: a
// split-group composite decision covers every child.
func coveredSources(decision *matcher.Decision) int {
	if decision.Group != nil && decision.Group.Direction == matcher.SplitSourcesToTarget {
		return len(decision.Group.Sources)
	}
	return 1
}

// Config holds configuration options for report rendering
type Config struct {
	Format OutputFormat `json:"format"`

	IncludeMatched          bool `json:"include_matched"`
	IncludeUnmatchedSources bool `json:"include_unmatched_sources"`
	IncludeUnmatchedTargets bool `json:"include_unmatched_targets"`
	IncludeAmbiguous        bool `json:"include_ambiguous"`
	IncludeStats            bool `json:"include_stats"`

	CSVDelimiter rune `json:"csv_delimiter"`
	CSVHeaders   bool `json:"csv_headers"`
}

// DefaultConfig returns a default report configuration
func DefaultConfig() *Config {
	return &Config{
		Format:                  FormatConsole,
		IncludeMatched:          false,
		IncludeUnmatchedSources: true,
		IncludeUnmatchedTargets: true,
		IncludeAmbiguous:        true,
		IncludeStats:            true,
		CSVDelimiter:            ',',
		CSVHeaders:              true,
	}
}

// Validate validates the report configuration
func (c *Config) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}
	return nil
}

// Generator renders reports in the configured format
type Generator struct {
	config *Config
}

// NewGenerator creates a report generator with the given configuration
func NewGenerator(config *Config) (*Generator, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}

	return &Generator{config: config}, nil
}

// Generate renders the report to the given writer
func (g *Generator) Generate(report *Report, writer io.Writer) error {
	if report == nil {
		return fmt.Errorf("report cannot be nil")
	}

	switch g.config.Format {
	case FormatConsole:
		return g.generateConsole(report, writer)
	case FormatJSON:
		return g.generateJSON(report, writer)
	case FormatCSV:
		return g.generateCSV(report, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", g.config.Format)
	}
}

func (g *Generator) generateConsole(report *Report, writer io.Writer) error {
	fmt.Fprintf(writer, "RECONCILIATION REPORT\n")
	fmt.Fprintf(writer, "Generated: %s\n\n", report.ProcessedAt.Format(time.RFC3339))

	summary := report.Summary
	fmt.Fprintf(writer, "=== SUMMARY ===\n")
	fmt.Fprintf(writer, "Source records:\n")
	fmt.Fprintf(writer, "  Total:     %d\n", summary.TotalSources)
	fmt.Fprintf(writer, "  Matched:   %d (%.1f%%)\n", summary.MatchedSources,
		percentage(summary.MatchedSources, summary.TotalSources))
	fmt.Fprintf(writer, "  Ambiguous: %d\n", summary.AmbiguousSources)
	fmt.Fprintf(writer, "  Unmatched: %d (%.1f%%)\n", summary.UnmatchedSources,
		percentage(summary.UnmatchedSources, summary.TotalSources))
	fmt.Fprintf(writer, "\nTarget records:\n")
	fmt.Fprintf(writer, "  Total:     %d\n", summary.TotalTargets)
	fmt.Fprintf(writer, "  Consumed:  %d (%.1f%%)\n", summary.MatchedTargets,
		percentage(summary.MatchedTargets, summary.TotalTargets))
	fmt.Fprintf(writer, "  Unmatched: %d (%.1f%%)\n", summary.UnmatchedTargets,
		percentage(summary.UnmatchedTargets, summary.TotalTargets))
	fmt.Fprintf(writer, "\n=== FINANCIAL SUMMARY ===\n")
	fmt.Fprintf(writer, "Total Matched Amount:          %s\n", summary.TotalMatchedAmount.StringFixed(2))
	fmt.Fprintf(writer, "Total Unmatched Source Amount: %s\n", summary.TotalUnmatchedSourceAmount.StringFixed(2))
	fmt.Fprintf(writer, "Total Unmatched Target Amount: %s\n", summary.TotalUnmatchedTargetAmount.StringFixed(2))

	if summary.SplitGroups > 0 || summary.AmbiguousSplits > 0 {
		fmt.Fprintf(writer, "\n=== SPLIT GROUPS ===\n")
		fmt.Fprintf(writer, "Confirmed: %d, Ambiguous: %d\n", summary.SplitGroups, summary.AmbiguousSplits)
		for _, group := range report.SplitGroups {
			fmt.Fprintf(writer, "  %s (%s): sum %s across %d+%d records\n",
				group.ID, group.Direction, group.Sum.StringFixed(2),
				len(group.Sources), len(group.Targets))
		}
	}

	if g.config.IncludeAmbiguous && len(report.Ambiguous) > 0 {
		fmt.Fprintf(writer, "\n=== AMBIGUOUS MATCHES (manual review required) ===\n")
		for _, decision := range report.Ambiguous {
			fmt.Fprintf(writer, "  %s: %d near-equal candidates\n",
				decision.Source.ID, len(decision.Candidates))
			for _, candidate := range decision.Candidates {
				fmt.Fprintf(writer, "    - %s (score %.3f)\n",
					candidate.Target.ID, candidate.Score.Total)
			}
		}
	}

	if g.config.IncludeUnmatchedSources && len(report.UnmatchedSources) > 0 {
		fmt.Fprintf(writer, "\n=== UNMATCHED SOURCE RECORDS ===\n")
		for i, record := range report.UnmatchedSources {
			fmt.Fprintf(writer, "  %d. ID: %s, Amount: %s, Date: %s, Description: %q\n",
				i+1, record.ID, record.Amount.StringFixed(2),
				record.Date.Format("2006-01-02"), record.Description)
		}
	}

	if g.config.IncludeUnmatchedTargets && len(report.UnmatchedTargets) > 0 {
		fmt.Fprintf(writer, "\n=== UNMATCHED TARGET RECORDS ===\n")
		for i, record := range report.UnmatchedTargets {
			fmt.Fprintf(writer, "  %d. ID: %s, Amount: %s, Date: %s, Description: %q\n",
				i+1, record.ID, record.Amount.StringFixed(2),
				record.Date.Format("2006-01-02"), record.Description)
		}
	}

	if g.config.IncludeStats && report.Stats != nil {
		fmt.Fprintf(writer, "\n=== PROCESSING STATISTICS ===\n")
		fmt.Fprintf(writer, "Duration:       %v\n", report.Stats.Duration)
		fmt.Fprintf(writer, "Records/Second: %.2f\n", report.Stats.RecordsPerSecond)
	}

	return nil
}

func (g *Generator) generateJSON(report *Report, writer io.Writer) error {
	filtered := g.filterForOutput(report)

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(filtered)
}

func (g *Generator) generateCSV(report *Report, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = g.config.CSVDelimiter
	defer csvWriter.Flush()

	if g.config.CSVHeaders {
		headers := []string{
			"Side", "Status", "ID", "Amount", "Date", "Description",
			"Counterpart", "Score", "Notes",
		}
		if err := csvWriter.Write(headers); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}

	if g.config.IncludeMatched {
		for _, decision := range report.Matched {
			counterpart := ""
			if decision.Target != nil {
				counterpart = decision.Target.ID
			} else if decision.Group != nil {
				ids := make([]string, 0, len(decision.Group.Targets))
				for _, t := range decision.Group.Targets {
					ids = append(ids, t.ID)
				}
				counterpart = strings.Join(ids, "+")
			}

			record := []string{
				"source", "matched",
				decision.Source.ID,
				decision.Source.Amount.StringFixed(2),
				decision.Source.Date.Format("2006-01-02"),
				decision.Source.Description,
				counterpart,
				fmt.Sprintf("%.3f", decision.Score.Total),
				strings.Join(decision.Score.Reasons, "; "),
			}
			if err := csvWriter.Write(record); err != nil {
				return fmt.Errorf("failed to write matched record: %w", err)
			}
		}
	}

	if g.config.IncludeAmbiguous {
		for _, decision := range report.Ambiguous {
			record := []string{
				"source", "ambiguous",
				decision.Source.ID,
				decision.Source.Amount.StringFixed(2),
				decision.Source.Date.Format("2006-01-02"),
				decision.Source.Description,
				"", "",
				fmt.Sprintf("%d near-equal candidates", len(decision.Candidates)),
			}
			if err := csvWriter.Write(record); err != nil {
				return fmt.Errorf("failed to write ambiguous record: %w", err)
			}
		}
	}

	if g.config.IncludeUnmatchedSources {
		for _, rec := range report.UnmatchedSources {
			record := []string{
				"source", "unmatched",
				rec.ID,
				rec.Amount.StringFixed(2),
				rec.Date.Format("2006-01-02"),
				rec.Description,
				"", "",
				"No matching target record found",
			}
			if err := csvWriter.Write(record); err != nil {
				return fmt.Errorf("failed to write unmatched source record: %w", err)
			}
		}
	}

	if g.config.IncludeUnmatchedTargets {
		for _, rec := range report.UnmatchedTargets {
			record := []string{
				"target", "unmatched",
				rec.ID,
				rec.Amount.StringFixed(2),
				rec.Date.Format("2006-01-02"),
				rec.Description,
				"", "",
				"No matching source record found",
			}
			if err := csvWriter.Write(record); err != nil {
				return fmt.Errorf("failed to write unmatched target record: %w", err)
			}
		}
	}

	return nil
}

func (g *Generator) filterForOutput(report *Report) map[string]interface{} {
	output := map[string]interface{}{
		"summary":      report.Summary,
		"processed_at": report.ProcessedAt,
	}

	if g.config.IncludeMatched && report.Matched != nil {
		output["matched"] = report.Matched
	}
	if g.config.IncludeAmbiguous {
		if report.Ambiguous != nil {
			output["ambiguous"] = report.Ambiguous
		}
		if report.AmbiguousSplits != nil {
			output["ambiguous_splits"] = report.AmbiguousSplits
		}
	}
	if g.config.IncludeUnmatchedSources && report.UnmatchedSources != nil {
		output["unmatched_sources"] = report.UnmatchedSources
	}
	if g.config.IncludeUnmatchedTargets && report.UnmatchedTargets != nil {
		output["unmatched_targets"] = report.UnmatchedTargets
	}
	if report.SplitGroups != nil {
		output["split_groups"] = report.SplitGroups
	}
	if g.config.IncludeStats && report.Stats != nil {
		output["stats"] = report.Stats
	}

	return output
}

func percentage(part, total int) float64 {
	if total == 0 {
		return 0.0
	}
	return float64(part) / float64(total) * 100.0
}
