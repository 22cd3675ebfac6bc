package parsers

import (
	"encoding/csv"
	"io"

	"ledgermatch/internal/models"

	"ledgermatch/pkg/logger"
)

// sourceAliases maps logical source fields to the header names seen across
// ledger exports, in preference order.
var sourceAliases = map[string][]string{
	"id":            {"id", "record_id", "receipt_id", "trx_id", "reference"},
	"date":          {"date", "transaction_date", "txn_date", "receipt_date"},
	"amount":        {"amount", "value", "amt"},
	"description":   {"description", "memo", "narrative", "details", "payee"},
	"instrument":    {"instrument", "payment_method", "method"},
	"linked_target": {"linked_target_id", "matched_target", "target_id"},
}

var sourceRequired = []string{"id", "date", "amount"}

// SourceParser reads source record CSV files
type SourceParser struct {
	*baseParser
}

// NewSourceParser creates a source record parser
func NewSourceParser(config *ParseConfig) *SourceParser {
	return &SourceParser{
		baseParser: newBaseParser(config, "source_parser"),
	}
}

// ParseFile loads source records from the given CSV file. Rows that fail to
// parse or validate are reported in the stats and skipped.
func (sp *SourceParser) ParseFile(path string) ([]*models.SourceRecord, *ParseStats, error) {
	file, reader, err := sp.open(path)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	records, stats, err := sp.parse(reader, path)
	if err != nil {
		return nil, stats, err
	}

	sp.log.WithFields(logger.Fields{
		"file_path":     path,
		"records_valid": stats.RecordsValid,
		"errors":        len(stats.Errors),
	}).Info("Source file parsed")
	if stats.HasErrors() {
		sp.log.WithField("sample_errors", stats.SampleErrors(3)).Warn("Some source rows were skipped")
	}

	return records, stats, nil
}

// parse reads records from an open CSV reader. Split out so tests can feed
// in-memory data.
func (sp *SourceParser) parse(reader *csv.Reader, path string) ([]*models.SourceRecord, *ParseStats, error) {
	stats := &ParseStats{}

	columns, line, err := sp.readHeader(reader, path, sourceAliases, sourceRequired)
	if err != nil {
		return nil, stats, err
	}

	var records []*models.SourceRecord
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			stats.Errors = append(stats.Errors, &RowError{
				Line: line, Message: "malformed CSV row", Err: err,
			})
			continue
		}
		if sp.config.SkipEmptyRows && isEmptyRecord(row) {
			continue
		}

		record, rowErr := sp.fromRow(row, columns, line)
		if rowErr != nil {
			stats.Errors = append(stats.Errors, rowErr)
			continue
		}

		if err := record.Validate(); err != nil {
			stats.Errors = append(stats.Errors, &RowError{
				Line: line, Field: "record", Value: record.ID,
				Message: err.Error(), Err: err,
			})
			continue
		}

		records = append(records, record)
		stats.RecordsValid++
	}

	stats.TotalLines = line
	return records, stats, nil
}

// fromRow builds a SourceRecord from one CSV row
func (sp *SourceParser) fromRow(row []string, columns *columnMap, line int) (*models.SourceRecord, *RowError) {
	amountRaw := columns.field(row, "amount")
	amount, err := models.ParseAmount(amountRaw)
	if err != nil {
		return nil, &RowError{Line: line, Field: "amount", Value: amountRaw,
			Message: "invalid amount", Err: err}
	}

	dateRaw := columns.field(row, "date")
	date, err := models.ParseDate(dateRaw)
	if err != nil {
		return nil, &RowError{Line: line, Field: "date", Value: dateRaw,
			Message: "unrecognized date format", Err: err}
	}

	record := models.NewSourceRecord(columns.field(row, "id"), amount, date,
		columns.field(row, "description"))

	if columns.has("instrument") {
		instrumentRaw := columns.field(row, "instrument")
		instrument, err := models.ParseInstrument(instrumentRaw)
		if err != nil {
			return nil, &RowError{Line: line, Field: "instrument", Value: instrumentRaw,
				Message: "unrecognized instrument", Err: err}
		}
		record.Instrument = instrument
	}

	if columns.has("linked_target") {
		record.LinkedTargetID = columns.field(row, "linked_target")
	}

	return record, nil
}
