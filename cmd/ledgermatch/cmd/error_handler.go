package cmd

import (
	"fmt"
	"os"

	"ledgermatch/pkg/errors"
	"ledgermatch/pkg/logger"

	"github.com/spf13/viper"
)

// CLIErrorHandler turns engine errors into user-facing messages and exit
// codes.
type CLIErrorHandler struct {
	log     logger.Logger
	verbose bool
}

// NewCLIErrorHandler creates a new CLI error handler
func NewCLIErrorHandler() *CLIErrorHandler {
	return &CLIErrorHandler{
		log:     logger.WithComponent("cli"),
		verbose: viper.GetBool("verbose"),
	}
}

// HandleError prints a user-friendly message and returns the process exit
// code.
func (h *CLIErrorHandler) HandleError(err error) int {
	if err == nil {
		return 0
	}

	h.log.WithError(err).Error("Command failed")

	if appErr, ok := errors.As(err); ok {
		return h.handleAppError(appErr)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return 1
}

func (h *CLIErrorHandler) handleAppError(err *errors.Error) int {
	fmt.Fprintf(os.Stderr, "Error: %s\n", err.Message)

	if len(err.Context) > 0 {
		fmt.Fprintf(os.Stderr, "\nContext:\n")
		for key, value := range err.Context {
			fmt.Fprintf(os.Stderr, "  %s: %v\n", key, value)
		}
	}

	if err.Suggestion != "" {
		fmt.Fprintf(os.Stderr, "\nSuggestion: %s\n", err.Suggestion)
	}

	fmt.Fprintf(os.Stderr, "\n%s\n", categoryHelp(err.Category))

	if h.verbose && err.Cause != nil {
		fmt.Fprintf(os.Stderr, "\nUnderlying error: %v\n", err.Cause)
	}

	return err.ExitCode()
}

// categoryHelp returns category-specific troubleshooting text
func categoryHelp(category errors.Category) string {
	switch category {
	case errors.CategoryFile:
		return `File error help:
- Check if the file exists and is readable
- Verify the file path is correct (use absolute paths if needed)
- Ensure you have proper permissions to access the file`

	case errors.CategoryParse:
		return `Parse error help:
- Verify the CSV file format and structure
- Check for proper column headers and data types
- Ensure dates use YYYY-MM-DD and amounts are plain decimals
- Use 'ledgermatch reconcile --help' for examples of correct file formats`

	case errors.CategoryValidation:
		return `Validation error help:
- Check that all required fields have values
- Verify date formats use YYYY-MM-DD
- Ensure amounts are nonzero decimal numbers`

	case errors.CategoryConfiguration:
		return `Configuration error help:
- Check your command-line flags and arguments
- Verify configuration file syntax if using --config
- Use 'ledgermatch reconcile --help' to see all available options
- Try running with --preset default first`

	case errors.CategoryReconciliation:
		return `Reconciliation error help:
- Check data quality in your input files
- Try adjusting tolerances (--date-window, --amount-tolerance, --threshold)
- Verify that your files cover the same period`

	default:
		return `For more help:
- Use 'ledgermatch --help' for general help
- Use 'ledgermatch reconcile --help' for command-specific help
- Run with --verbose for detailed error information`
	}
}
