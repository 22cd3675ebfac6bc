package parsers

import (
	"encoding/csv"
	"io"

	"ledgermatch/internal/models"

	"ledgermatch/pkg/logger"
)

// targetAliases maps logical target fields to the header names seen across
// bank statement exports.
var targetAliases = map[string][]string{
	"id":          {"id", "unique_identifier", "transaction_id", "statement_id", "reference"},
	"date":        {"date", "posted_date", "transaction_date", "value_date"},
	"amount":      {"amount", "value", "amt"},
	"description": {"description", "memo", "narrative", "details"},
}

var targetRequired = []string{"id", "date", "amount"}

// TargetParser reads target record CSV files
type TargetParser struct {
	*baseParser
}

// NewTargetParser creates a target record parser
func NewTargetParser(config *ParseConfig) *TargetParser {
	return &TargetParser{
		baseParser: newBaseParser(config, "target_parser"),
	}
}

// ParseFile loads target records from the given CSV file. Rows that fail to
// parse or validate are reported in the stats and skipped.
func (tp *TargetParser) ParseFile(path string) ([]*models.TargetRecord, *ParseStats, error) {
	file, reader, err := tp.open(path)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	records, stats, err := tp.parse(reader, path)
	if err != nil {
		return nil, stats, err
	}

	tp.log.WithFields(logger.Fields{
		"file_path":     path,
		"records_valid": stats.RecordsValid,
		"errors":        len(stats.Errors),
	}).Info("Target file parsed")
	if stats.HasErrors() {
		tp.log.WithField("sample_errors", stats.SampleErrors(3)).Warn("Some target rows were skipped")
	}

	return records, stats, nil
}

func (tp *TargetParser) parse(reader *csv.Reader, path string) ([]*models.TargetRecord, *ParseStats, error) {
	stats := &ParseStats{}

	columns, line, err := tp.readHeader(reader, path, targetAliases, targetRequired)
	if err != nil {
		return nil, stats, err
	}

	var records []*models.TargetRecord
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
		if tp.config.SkipEmptyRows && isEmptyRecord(row) {
			continue
		}

		record, rowErr := tp.fromRow(row, columns, line)
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

func (tp *TargetParser) fromRow(row []string, columns *columnMap, line int) (*models.TargetRecord, *RowError) {
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

	return models.NewTargetRecord(columns.field(row, "id"), amount, date,
		columns.field(row, "description")), nil
}
