package runner

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"smooshr/backend/pkg/models"
)

// table is a parsed CSV file. A row omits the keys of cells it does not have.
type table struct {
	columns []string
	rows    []map[string]string
}

// parseCSV reads a header row and data rows. Problems a well formed CSV file
// would not have are returned as baseline failures; only I/O errors fail.
func parseCSV(r io.Reader) (*table, []models.ValidationFailure, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = false

	var failures []models.ValidationFailure
	t := &table{}

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return t, []models.ValidationFailure{models.FileFailure("File is empty")}, nil
	}
	if err != nil {
		return t, parseFailure(err, failures), nil
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	t.columns = header

	seen := make(map[string]bool, len(header))
	for i, name := range header {
		switch {
		case strings.TrimSpace(name) == "":
			failures = append(failures, models.FileFailure(fmt.Sprintf("Blank label in header in column %d", i+1)))
		case seen[name]:
			failures = append(failures, models.FileFailure(fmt.Sprintf("Duplicate label '%s' in header", name)))
		}
		seen[name] = true
	}

	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if !errors.As(err, &pe) {
				return nil, nil, fmt.Errorf("read csv: %w", err)
			}
			failures = parseFailure(err, failures)
			break
		}

		rowNum := len(t.rows) + 1
		switch {
		case len(record) > len(header):
			failures = append(failures, models.RowFailure(rowNum,
				fmt.Sprintf("Row has %d cells but the header has %d labels", len(record), len(header))))
		case len(record) < len(header):
			failures = append(failures, models.RowFailure(rowNum,
				fmt.Sprintf("Row is missing %d cells", len(header)-len(record))))
		}

		row := make(map[string]string, len(header))
		for i, name := range header {
			if i >= len(record) {
				break
			}
			if _, dup := row[name]; dup {
				continue
			}
			row[name] = record[i]
		}
		t.rows = append(t.rows, row)
	}
	return t, failures, nil
}

func parseFailure(err error, failures []models.ValidationFailure) []models.ValidationFailure {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return append(failures, models.FileFailure(fmt.Sprintf("File could not be parsed as CSV at line %d: %v", pe.Line, pe.Err)))
	}
	return append(failures, models.FileFailure(fmt.Sprintf("File could not be parsed as CSV: %v", err)))
}
