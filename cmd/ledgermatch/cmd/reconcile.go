package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"ledgermatch/cmd/ledgermatch/config"
	"ledgermatch/internal/parsers"
	"ledgermatch/internal/reconciler"
	"ledgermatch/internal/reporter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the reconcile command
var (
	sourceFile   string
	targetFile   string
	outputFormat string
	outputFile   string

	preset          string
	amountTolerance float64
	varianceCeiling float64
	dateWindow      int
	chequeWindow    int
	threshold       float64
	margin          float64
	magnitudeOnly   bool
	maxSplitSize    int

	noSplits       bool
	noAbsorb       bool
	includeMatched bool
)

// reconcileCmd represents the reconcile command
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile source records against target records",
	Long: `Reconcile compares source records (receipts, payments) with target
records (bank transactions) to find matches, split payments, ambiguous
candidates, and unmatched entries on both sides.

This command requires:
- A source record file (CSV format)
- A target record file (CSV format)

Examples:
  # Basic reconciliation
  ledgermatch reconcile --source-file receipts.csv --target-file statement.csv

  # Strict preset with a JSON report written to a file
  ledgermatch reconcile -s receipts.csv -t statement.csv \
    --preset strict --output-format json --output-file report.json

  # Refund run: match across amount sign
  ledgermatch reconcile -s refunds.csv -t statement.csv --magnitude-only

  # Widen the window for slow-clearing cheques
  ledgermatch reconcile -s payments.csv -t statement.csv --cheque-window 15`,

	PreRunE: validateReconcileFlags,
	RunE:    runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	// Required flags
	reconcileCmd.Flags().StringVarP(&sourceFile, "source-file", "s", "", "path to source record CSV file (required)")
	reconcileCmd.Flags().StringVarP(&targetFile, "target-file", "t", "", "path to target record CSV file (required)")

	// Output flags
	reconcileCmd.Flags().StringVarP(&outputFormat, "output-format", "f", "console", "output format: console, json, csv")
	reconcileCmd.Flags().StringVarP(&outputFile, "output-file", "o", "", "output file path (default: stdout)")
	reconcileCmd.Flags().BoolVar(&includeMatched, "include-matched", false, "include matched records in the report")

	// Matching configuration flags; negative means "use the preset value"
	reconcileCmd.Flags().StringVar(&preset, "preset", "default", "configuration preset: default, strict, relaxed")
	reconcileCmd.Flags().Float64VarP(&amountTolerance, "amount-tolerance", "a", -1, "amount equality tolerance in currency units")
	reconcileCmd.Flags().Float64Var(&varianceCeiling, "variance-ceiling", -1, "amount difference where the amount score reaches zero")
	reconcileCmd.Flags().IntVarP(&dateWindow, "date-window", "d", -1, "date matching window in days")
	reconcileCmd.Flags().IntVar(&chequeWindow, "cheque-window", -1, "date window for cheque records in days")
	reconcileCmd.Flags().Float64Var(&threshold, "threshold", -1, "minimum composite score to accept a match (0.0-1.0)")
	reconcileCmd.Flags().Float64Var(&margin, "margin", -1, "minimum score lead over the runner-up (0.0-1.0)")
	reconcileCmd.Flags().BoolVar(&magnitudeOnly, "magnitude-only", false, "match across amount sign (refund runs)")
	reconcileCmd.Flags().IntVar(&maxSplitSize, "max-split-size", -1, "maximum fragments in a split group")

	// Pass toggles
	reconcileCmd.Flags().BoolVar(&noSplits, "no-splits", false, "disable split payment detection")
	reconcileCmd.Flags().BoolVar(&noAbsorb, "no-absorb", false, "disable the post-pass over unmatched records")

	reconcileCmd.MarkFlagRequired("source-file")
	reconcileCmd.MarkFlagRequired("target-file")

	viper.BindPFlag("source-file", reconcileCmd.Flags().Lookup("source-file"))
	viper.BindPFlag("target-file", reconcileCmd.Flags().Lookup("target-file"))
	viper.BindPFlag("output-format", reconcileCmd.Flags().Lookup("output-format"))
	viper.BindPFlag("output-file", reconcileCmd.Flags().Lookup("output-file"))
	viper.BindPFlag("preset", reconcileCmd.Flags().Lookup("preset"))
}

func validateReconcileFlags(cmd *cobra.Command, args []string) error {
	// Viper values win so a config file can supply the paths
	if v := viper.GetString("source-file"); v != "" {
		sourceFile = v
	}
	if v := viper.GetString("target-file"); v != "" {
		targetFile = v
	}
	if v := viper.GetString("output-format"); v != "" {
		outputFormat = v
	}
	if v := viper.GetString("output-file"); v != "" {
		outputFile = v
	}
	if v := viper.GetString("preset"); v != "" {
		preset = v
	}

	if sourceFile == "" {
		return fmt.Errorf("source-file is required")
	}
	if targetFile == "" {
		return fmt.Errorf("target-file is required")
	}

	if err := validateFileExists(sourceFile, "source record file"); err != nil {
		return err
	}
	if err := validateFileExists(targetFile, "target record file"); err != nil {
		return err
	}

	validFormats := map[string]bool{"console": true, "json": true, "csv": true}
	if !validFormats[outputFormat] {
		return fmt.Errorf("invalid output format '%s'. Valid formats: console, json, csv", outputFormat)
	}

	if outputFile != "" {
		dir := filepath.Dir(outputFile)
		if dir != "." {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				return fmt.Errorf("output directory does not exist: %s", dir)
			}
		}
	}

	return nil
}

func validateFileExists(filePath, description string) error {
	if filePath == "" {
		return fmt.Errorf("%s path cannot be empty", description)
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return fmt.Errorf("%s does not exist: %s", description, filePath)
	}
	if err != nil {
		return fmt.Errorf("error accessing %s: %w", description, err)
	}

	if info.IsDir() {
		return fmt.Errorf("%s is a directory, expected a file: %s", description, filePath)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("%s is not readable: %w", description, err)
	}
	file.Close()

	return nil
}

func runReconcile(cmd *cobra.Command, args []string) error {
	handler := NewCLIErrorHandler()

	if err := doReconcile(); err != nil {
		os.Exit(handler.HandleError(err))
	}
	return nil
}

func doReconcile() error {
	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "Starting reconciliation...\n")
		fmt.Fprintf(os.Stderr, "Source file: %s\n", sourceFile)
		fmt.Fprintf(os.Stderr, "Target file: %s\n", targetFile)
		fmt.Fprintf(os.Stderr, "Output format: %s\n", outputFormat)
	}

	matchingConfig, err := config.CreateMatchingConfig(preset, config.MatchingOverrides{
		AmountTolerance:     amountTolerance,
		VarianceCeiling:     varianceCeiling,
		DateWindowDays:      dateWindow,
		ChequeWindowDays:    chequeWindow,
		AcceptanceThreshold: threshold,
		AmbiguityMargin:     margin,
		MagnitudeOnly:       magnitudeOnly,
		MaxSplitGroupSize:   maxSplitSize,
	})
	if err != nil {
		return err
	}

	parseConfig := config.CreateParseConfig()

	sources, sourceStats, err := parsers.NewSourceParser(parseConfig).ParseFile(sourceFile)
	if err != nil {
		return err
	}
	targets, targetStats, err := parsers.NewTargetParser(parseConfig).ParseFile(targetFile)
	if err != nil {
		return err
	}

	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "Source records: %s\n", sourceStats)
		fmt.Fprintf(os.Stderr, "Target records: %s\n", targetStats)
	}

	runConfig := config.CreateRunConfig(matchingConfig, !noSplits, !noAbsorb)
	service, err := reconciler.NewService(runConfig)
	if err != nil {
		return err
	}

	result, err := service.Reconcile(sources, targets)
	if err != nil {
		return err
	}

	generator, err := reporter.NewGenerator(config.CreateReportConfig(outputFormat, includeMatched))
	if err != nil {
		return err
	}

	var output *os.File
	if outputFile != "" {
		output, err = os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer output.Close()
	} else {
		output = os.Stdout
	}

	report := reporter.BuildReport(result)
	if err := generator.Generate(report, output); err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}

	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "\nReconciliation completed.\n")
		fmt.Fprintf(os.Stderr, "Matched %d of %d sources, %d ambiguous, %d unmatched targets.\n",
			report.Summary.MatchedSources, report.Summary.TotalSources,
			report.Summary.AmbiguousSources, report.Summary.UnmatchedTargets)
	}

	return nil
}
