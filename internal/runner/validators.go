package runner

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ncruces/go-strftime"

	"smooshr/backend/pkg/models"
)

func validateFileType(filename string, op models.Operation) []models.ValidationFailure {
	if strings.HasSuffix(filename, op.ExpectedFileType) {
		return nil
	}
	return []models.ValidationFailure{models.FileFailure(
		fmt.Sprintf("File %s does not have the expected file type %s", filename, op.ExpectedFileType))}
}

func validateRowCount(rows int, op models.Operation) []models.ValidationFailure {
	if (op.MinRowCount == nil || rows >= *op.MinRowCount) && (op.MaxRowCount == nil || rows <= *op.MaxRowCount) {
		return nil
	}
	return []models.ValidationFailure{models.FileFailure(
		fmt.Sprintf("File does not have the expected row count (min: %s, max: %s)", bound(op.MinRowCount), bound(op.MaxRowCount)))}
}

func bound(n *int) string {
	if n == nil {
		return "None"
	}
	return strconv.Itoa(*n)
}

// checkColumns compares the header of the file with the fields of fs.
func checkColumns(columns []string, fs models.FieldsetSchema) []models.ValidationFailure {
	var failures []models.ValidationFailure
	schemaCols := fs.FieldNames()

	inFile := make(map[string]bool, len(columns))
	for _, c := range columns {
		inFile[c] = true
	}
	inSchema := make(map[string]bool, len(schemaCols))
	for _, c := range schemaCols {
		inSchema[c] = true
	}

	var missing []string
	for _, c := range schemaCols {
		if !inFile[c] {
			missing = append(missing, "'"+c+"'")
		}
	}
	if len(missing) > 0 {
		failures = append(failures, models.FileFailure(
			fmt.Sprintf("File is missing columns required by the schema: {%s}", strings.Join(missing, ", "))))
	}

	if fs.OrderMatters && !isSubsequence(filter(columns, inSchema), schemaCols) {
		failures = append(failures, models.FileFailure("Columns in file are not in the same order as in the schema"))
	}

	lastSchemaCol := -1
	var extras []int
	for i, c := range columns {
		if inSchema[c] {
			lastSchemaCol = i
		} else {
			extras = append(extras, i)
		}
	}
	if len(extras) == 0 {
		return failures
	}
	switch fs.AllowExtraColumns {
	case models.ExtraColumnsNo:
		failures = append(failures, models.FileFailure("File has extra columns not allowed by the schema"))
	case models.ExtraColumnsOnlyAfterSchemaFields:
		if extras[0] < lastSchemaCol {
			failures = append(failures, models.FileFailure("Extra columns are only allowed after the schema columns"))
		}
	}
	return failures
}

func filter(columns []string, keep map[string]bool) []string {
	out := make([]string, 0, len(columns))
	for _, c := range columns {
		if keep[c] {
			out = append(out, c)
		}
	}
	return out
}

// isSubsequence reports whether sub appears in seq in order.
func isSubsequence(sub, seq []string) bool {
	j := 0
	for _, s := range sub {
		for j < len(seq) && seq[j] != s {
			j++
		}
		if j == len(seq) {
			return false
		}
		j++
	}
	return true
}

// fieldCheck is a FieldSchema with its allowed values resolved for one run.
type fieldCheck struct {
	field   models.FieldSchema
	allowed map[string]bool
}

func validateField(rowNum int, row map[string]string, fc fieldCheck) []models.ValidationFailure {
	var failures []models.ValidationFailure
	f := fc.field

	value, present := lookupCell(row, f)
	if !present {
		if f.Required {
			failures = append(failures, models.RowFailure(rowNum,
				fmt.Sprintf("Missing a value for the required field '%s'", f.Name)))
		}
		return failures
	}
	if value == "" {
		if !f.AllowEmptyValues {
			failures = append(failures, models.RowFailure(rowNum,
				fmt.Sprintf("Empty value for the field '%s'", f.Name)))
		}
		return failures
	}

	switch f.DataTypeValidation.DataType {
	case models.DataTypeNumber:
		if _, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err != nil {
			failures = append(failures, models.RowFailure(rowNum,
				fmt.Sprintf("Value '%s' for field '%s' is not a valid number", value, f.Name)))
		}
	case models.DataTypeTimestamp:
		layout := f.DataTypeValidation.DateTimeFormat
		if _, err := strftime.Parse(layout, value); err != nil {
			failures = append(failures, models.RowFailure(rowNum,
				fmt.Sprintf("Value '%s' for field '%s' does not match the expected timestamp format %s", value, f.Name, layout)))
		}
	}

	if fc.allowed != nil && !fc.allowed[value] {
		failures = append(failures, models.RowFailure(rowNum,
			fmt.Sprintf("Value '%s' is not allowed for field '%s'", value, f.Name)))
	}
	return failures
}

func lookupCell(row map[string]string, f models.FieldSchema) (string, bool) {
	if f.CaseSensitive {
		v, ok := row[f.Name]
		return v, ok
	}
	for k, v := range row {
		if strings.EqualFold(k, f.Name) {
			return v, true
		}
	}
	return "", false
}
