// Package parsers reads source and target record CSV files as exported by
// ledgers and banks.
//
// Real exports are messy: header names differ per system, dates arrive in
// several formats, amounts carry currency symbols and accounting
// parentheses. The parsers normalize all of that through column aliases and
// the shared parse helpers in the models package, and collect per-row
// diagnostics instead of aborting on the first bad row.
package parsers

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"ledgermatch/pkg/errors"
	"ledgermatch/pkg/logger"
)

// RowError records one row that could not be parsed or validated. Rows with
// errors are skipped; the rest of the file still loads.
type RowError struct {
	Line    int
	Field   string
	Value   string
	Message string
	Err     error
}

func (e *RowError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("line %d, field %s=%q: %s", e.Line, e.Field, e.Value, e.Message)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// ParseConfig holds configuration shared by both parsers
type ParseConfig struct {
	HasHeader     bool
	Delimiter     rune
	SkipEmptyRows bool
}

// DefaultParseConfig returns a configuration with sensible defaults
func DefaultParseConfig() *ParseConfig {
	return &ParseConfig{
		HasHeader:     true,
		Delimiter:     ',',
		SkipEmptyRows: true,
	}
}

// ParseStats summarizes one file load
type ParseStats struct {
	TotalLines   int
	RecordsValid int
	Errors       []*RowError
}

// HasErrors reports whether any rows were skipped
func (ps *ParseStats) HasErrors() bool {
	return len(ps.Errors) > 0
}

// String returns a human-readable summary of the load
func (ps *ParseStats) String() string {
	return fmt.Sprintf("parsed %d lines, %d valid records, %d errors",
		ps.TotalLines, ps.RecordsValid, len(ps.Errors))
}

// SampleErrors returns up to max error messages for logging
func (ps *ParseStats) SampleErrors(max int) []string {
	limit := len(ps.Errors)
	if max > 0 && max < limit {
		limit = max
	}

	samples := make([]string, 0, limit)
	for _, err := range ps.Errors[:limit] {
		samples = append(samples, err.Error())
	}
	return samples
}

// baseParser provides the CSV plumbing shared by both record parsers
type baseParser struct {
	config *ParseConfig
	log    logger.Logger
}

func newBaseParser(config *ParseConfig, component string) *baseParser {
	if config == nil {
		config = DefaultParseConfig()
	}

	return &baseParser{
		config: config,
		log:    logger.WithComponent(component),
	}
}

// open opens a CSV file and returns a configured reader
func (bp *baseParser) open(path string) (*os.File, *csv.Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		bp.log.WithError(err).WithField("file_path", path).Error("Failed to open CSV file")
		if os.IsNotExist(err) {
			return nil, nil, errors.FileError(errors.CodeFileNotFound, path, err)
		}
		if os.IsPermission(err) {
			return nil, nil, errors.FileError(errors.CodeFilePermission, path, err)
		}
		return nil, nil, errors.FileError(errors.CodeFileNotFound, path, err)
	}

	reader := csv.NewReader(file)
	reader.Comma = bp.config.Delimiter
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	return file, reader, nil
}

// columnMap resolves logical field names to column indices through the
// given alias table. Header comparison is case-insensitive and treats
// spaces and underscores alike.
type columnMap struct {
	indices map[string]int
}

func normalizeHeader(header string) string {
	header = strings.ToLower(strings.TrimSpace(header))
	return strings.ReplaceAll(header, " ", "_")
}

// readHeader consumes the header row and builds the column map. The aliases
// table maps each logical field to the header names that may carry it, in
// preference order.
func (bp *baseParser) readHeader(reader *csv.Reader, path string, aliases map[string][]string, required []string) (*columnMap, int, error) {
	if !bp.config.HasHeader {
		return nil, 0, errors.InvalidConfiguration("has_header", false,
			"headerless files are not supported; add a header row")
	}

	headers, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, 0, errors.EmptyInput("rows in " + path)
		}
		return nil, 0, errors.ParseError(errors.CodeInvalidFormat, path, 1, "header", "", err)
	}

	byName := make(map[string]int, len(headers))
	for i, header := range headers {
		byName[normalizeHeader(header)] = i
	}

	cm := &columnMap{indices: make(map[string]int, len(aliases))}
	for field, names := range aliases {
		for _, name := range names {
			if idx, ok := byName[normalizeHeader(name)]; ok {
				cm.indices[field] = idx
				break
			}
		}
	}

	var missing []string
	for _, field := range required {
		if _, ok := cm.indices[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		bp.log.WithFields(logger.Fields{
			"file_path": path,
			"missing":   missing,
			"headers":   headers,
		}).Error("Required columns are missing")
		return nil, 1, errors.ParseError(errors.CodeMissingColumn, path, 1,
			"header", strings.Join(missing, ", "), nil).
			WithSuggestion("Rename the CSV headers or add the missing columns: " + strings.Join(missing, ", "))
	}

	return cm, 1, nil
}

// field returns the trimmed value of a logical field, or "" when the column
// is absent or the row is short.
func (cm *columnMap) field(record []string, name string) string {
	idx, ok := cm.indices[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

// has reports whether the file carries the given logical column at all
func (cm *columnMap) has(name string) bool {
	_, ok := cm.indices[name]
	return ok
}

func isEmptyRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
