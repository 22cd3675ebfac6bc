// Package errors defines the structured error taxonomy for the
// reconciliation engine.
//
// Two rules govern error use across the codebase:
//   - Per-record outcomes (unmatched, ambiguous) are data, never errors.
//     A reconciliation run always completes.
//   - Only structural misuse raises: malformed configuration, unreadable
//     input files, empty required inputs.
package errors

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Category groups errors by the subsystem that raised them
type Category string

const (
	CategoryFile           Category = "file"
	CategoryParse          Category = "parse"
	CategoryValidation     Category = "validation"
	CategoryConfiguration  Category = "configuration"
	CategoryReconciliation Category = "reconciliation"
	CategoryInternal       Category = "internal"
)

// Code identifies a specific error condition within a category
type Code string

const (
	// File errors
	CodeFileNotFound   Code = "file_not_found"
	CodeFilePermission Code = "file_permission"

	// Parse errors
	CodeInvalidFormat Code = "invalid_format"
	CodeMissingColumn Code = "missing_column"
	CodeInvalidData   Code = "invalid_data"

	// Validation errors
	CodeEmptyInput   Code = "empty_input"
	CodeMissingField Code = "missing_field"
	CodeInvalidValue Code = "invalid_value"

	// Configuration errors
	CodeInvalidConfig Code = "invalid_config"

	// Reconciliation errors
	CodeProcessingError Code = "processing_error"

	// Internal errors
	CodeUnexpectedError Code = "unexpected_error"
)

// Error is the structured error type used throughout the engine. It carries
// a category and code for programmatic handling, a human suggestion for CLI
// display, and a stack trace for debugging.
type Error struct {
	Category   Category          `json:"category"`
	Code       Code              `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context provides additional key-value information about the error
type Context map[string]interface{}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", e.Message, e.Suggestion)
	}
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *Error) Unwrap() error {
	return e.Cause
}

// ExitCode returns the process exit code appropriate for the error
func (e *Error) ExitCode() int {
	switch e.Category {
	case CategoryFile:
		return 2
	case CategoryParse, CategoryValidation:
		return 3
	case CategoryConfiguration:
		return 4
	case CategoryReconciliation, CategoryInternal:
		return 5
	default:
		return 1
	}
}

// WithContext adds context information to the error
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion for fixing the error
func (e *Error) WithSuggestion(suggestion string) *Error {
	e.Suggestion = suggestion
	return e
}

// New creates a new Error
func New(category Category, code Code, message string) *Error {
	return &Error{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with category and code context
func Wrap(err error, category Category, code Code, message string) *Error {
	if err == nil {
		return nil
	}

	return &Error{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// EmptyInput reports that a required record set was empty. Callers decide
// whether this is fatal: the orchestrating service treats an empty target
// set as "nothing to match" and still produces a report.
func EmptyInput(what string) *Error {
	return New(CategoryValidation, CodeEmptyInput,
		fmt.Sprintf("no %s supplied", what)).
		WithSuggestion("verify the input covers the reconciliation period").
		WithContext("input", what)
}

// IsEmptyInput checks whether the error chain contains an empty-input error
func IsEmptyInput(err error) bool {
	e, ok := As(err)
	return ok && e.Code == CodeEmptyInput
}

// InvalidConfiguration reports a malformed configuration value. Raised at
// configuration load, never mid-run.
func InvalidConfiguration(setting string, value interface{}, reason string) *Error {
	return New(CategoryConfiguration, CodeInvalidConfig,
		fmt.Sprintf("invalid configuration for '%s' (%v): %s", setting, value, reason)).
		WithSuggestion("check the configuration documentation for valid values").
		WithContext("setting", setting).
		WithContext("value", value)
}

// IsInvalidConfiguration checks whether the error chain contains a
// configuration error
func IsInvalidConfiguration(err error) bool {
	e, ok := As(err)
	return ok && e.Category == CategoryConfiguration
}

// FileError creates a file-related error
func FileError(code Code, path string, err error) *Error {
	var message, suggestion string

	switch code {
	case CodeFileNotFound:
		message = fmt.Sprintf("file not found: %s", path)
		suggestion = "check if the file path is correct and the file exists"
	case CodeFilePermission:
		message = fmt.Sprintf("permission denied accessing file: %s", path)
		suggestion = "check file permissions and ensure you have read access"
	default:
		message = fmt.Sprintf("file error: %s", path)
		suggestion = "check the file and try again"
	}

	result := wrapOrNew(err, CategoryFile, code, message)
	return result.
		WithSuggestion(suggestion).
		WithContext("file_path", path)
}

// ParseError creates a parsing-related error for a specific file location
func ParseError(code Code, file string, line int, field, value string, err error) *Error {
	var message, suggestion string

	switch code {
	case CodeMissingColumn:
		message = fmt.Sprintf("missing required column '%s' in file %s", field, file)
		suggestion = "verify the file has all required columns with correct headers"
	case CodeInvalidData:
		message = fmt.Sprintf("invalid data in file %s at line %d, column '%s': '%s'", file, line, field, value)
		suggestion = "correct the data format or remove the invalid entry"
	default:
		message = fmt.Sprintf("parse error in file %s at line %d", file, line)
		suggestion = "check the file format and data integrity"
	}

	result := wrapOrNew(err, CategoryParse, code, message)
	return result.
		WithSuggestion(suggestion).
		WithContext("file", file).
		WithContext("line", line).
		WithContext("column", field).
		WithContext("value", value)
}

// ValidationError creates a validation-related error for a record field
func ValidationError(code Code, field string, value interface{}, err error) *Error {
	var message, suggestion string

	switch code {
	case CodeMissingField:
		message = fmt.Sprintf("required field '%s' is missing or empty", field)
		suggestion = "provide a value for this required field"
	case CodeInvalidValue:
		message = fmt.Sprintf("invalid value in field '%s': %v", field, value)
		suggestion = "check the field value and format"
	default:
		message = fmt.Sprintf("validation error in field '%s': %v", field, value)
		suggestion = "check the field value and format"
	}

	result := wrapOrNew(err, CategoryValidation, code, message)
	return result.
		WithSuggestion(suggestion).
		WithContext("field", field).
		WithContext("value", value)
}

// ReconciliationError creates a processing error raised during a run
func ReconciliationError(operation string, err error) *Error {
	message := fmt.Sprintf("processing error during %s", operation)
	result := wrapOrNew(err, CategoryReconciliation, CodeProcessingError, message)
	return result.
		WithSuggestion("review the data and configuration").
		WithContext("operation", operation)
}

func wrapOrNew(err error, category Category, code Code, message string) *Error {
	if err != nil {
		return Wrap(err, category, code, message)
	}
	return New(category, code, message)
}

// As extracts an *Error from an error chain
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Summary aggregates multiple errors for batch operations such as parsing
type Summary struct {
	Total      int              `json:"total"`
	ByCategory map[Category]int `json:"by_category"`
	Errors     []*Error         `json:"errors"`
}

// NewSummary creates a new error summary
func NewSummary(errs []*Error) *Summary {
	summary := &Summary{
		Total:      len(errs),
		ByCategory: make(map[Category]int),
		Errors:     errs,
	}

	for _, err := range errs {
		summary.ByCategory[err.Category]++
	}

	return summary
}

// Error returns a formatted message for the summary
func (s *Summary) Error() string {
	if s.Total == 0 {
		return "no errors"
	}

	if s.Total == 1 {
		return s.Errors[0].Error()
	}

	var parts []string
	for category, count := range s.ByCategory {
		parts = append(parts, fmt.Sprintf("%s: %d", category, count))
	}

	return fmt.Sprintf("%d errors occurred (%s)", s.Total, strings.Join(parts, ", "))
}

// ExitCode returns the highest priority exit code from all errors
func (s *Summary) ExitCode() int {
	if s.Total == 0 {
		return 0
	}

	maxCode := 1
	for _, err := range s.Errors {
		if code := err.ExitCode(); code > maxCode {
			maxCode = code
		}
	}

	return maxCode
}
