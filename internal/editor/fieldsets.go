package editor

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"smooshr/backend/internal/document"
	"smooshr/backend/internal/reference"
	"smooshr/backend/pkg/models"
)

// NewFieldsetSchema returns an empty fieldset schema for the idx-th (1-based)
// schema of a workflow.
func NewFieldsetSchema(idx int) models.FieldsetSchema {
	name := "New schema"
	if idx != 1 {
		name = fmt.Sprintf("New schema %d", idx)
	}
	return models.FieldsetSchema{
		ID:                uuid.NewString(),
		Name:              name,
		OrderMatters:      true,
		Fields:            []models.FieldSchema{},
		AllowExtraColumns: models.ExtraColumnsNo,
	}
}

// NewField returns a column rule with the defaults used for imported headers.
func NewField(name string) models.FieldSchema {
	return models.FieldSchema{
		ID:                 uuid.NewString(),
		Name:               name,
		CaseSensitive:      true,
		Required:           true,
		DataTypeValidation: models.DataTypeValidation{DataType: models.DataTypeAny},
		AllowEmptyValues:   false,
		AllowedValues:      models.AllowedList(),
	}
}

// FieldsetSchemaFromCSV builds a fieldset schema named name from the header
// row of a CSV file.
func FieldsetSchemaFromCSV(name string, r io.Reader) (models.FieldsetSchema, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return models.FieldsetSchema{}, fmt.Errorf("read csv header: file is empty")
	}
	if err != nil {
		return models.FieldsetSchema{}, fmt.Errorf("read csv header: %w", err)
	}

	fs := NewFieldsetSchema(1)
	fs.Name = name
	for _, h := range header {
		h = strings.TrimPrefix(h, "\ufeff")
		if strings.TrimSpace(h) == "" {
			continue
		}
		fs.Fields = append(fs.Fields, NewField(h))
	}
	return fs, nil
}

// NewParam returns the index-th (1-based) default workflow param.
func NewParam(index int) models.WorkflowParam {
	return models.WorkflowParam{
		ID:       uuid.NewString(),
		Required: true,
		Type:     models.ParamTypeString,
	}.WithDisplayName(fmt.Sprintf("Input %d", index))
}

// CheckField checks a column rule of fs against the params of schema. Problem
// paths are relative to the field.
func CheckField(schema models.WorkflowSchema, fs models.FieldsetSchema, f models.FieldSchema) error {
	ve := &models.ValidationError{}
	if strings.TrimSpace(f.Name) == "" {
		ve.Add("name", "column name is required")
	}
	for _, other := range fs.Fields {
		if other.ID != f.ID && other.Name == f.Name {
			ve.Add("name", "a column named %q already exists in %s", f.Name, fs.Name)
			break
		}
	}
	if err := f.DataTypeValidation.Validate(); err != nil {
		ve.Add("dataTypeValidation", "%v", err)
	}
	if f.AllowedValues.Kind == models.AllowedValuesParam {
		p, err := reference.ResolveParam(schema, f.AllowedValues.Param)
		switch {
		case err != nil:
			ve.Add("allowedValues", "%v", err)
		case p.Type != models.ParamTypeStringList:
			ve.Add("allowedValues", "input %s is a %s, allowed values need a %s", p.Name, p.Type, models.ParamTypeStringList)
		}
	}
	return ve.Err()
}

// UpdateField applies fn to column fieldIndex of fieldset schema fsIndex in
// store, checks the result and commits it. Indexes are 0-based.
func UpdateField(store *document.Store, fsIndex, fieldIndex int, fn func(models.FieldSchema) models.FieldSchema) (models.FieldSchema, error) {
	schema, err := store.Schema()
	if err != nil {
		return models.FieldSchema{}, err
	}
	if fsIndex < 0 || fsIndex >= len(schema.FieldsetSchemas) {
		return models.FieldSchema{}, fmt.Errorf("no column ruleset at index %d", fsIndex)
	}
	fs := schema.FieldsetSchemas[fsIndex]
	if fieldIndex < 0 || fieldIndex >= len(fs.Fields) {
		return models.FieldSchema{}, fmt.Errorf("no column at index %d in %s", fieldIndex, fs.Name)
	}

	f := fn(fs.Fields[fieldIndex])
	f.ID = fs.Fields[fieldIndex].ID
	f.Name = strings.TrimSpace(f.Name)
	if err := CheckField(schema, fs, f); err != nil {
		return models.FieldSchema{}, err
	}

	err = store.UpdateFieldsetSchemaByIndex(fsIndex, func(fs models.FieldsetSchema) models.FieldsetSchema {
		fields := make([]models.FieldSchema, len(fs.Fields))
		copy(fields, fs.Fields)
		fields[fieldIndex] = f
		fs.Fields = fields
		return fs
	})
	if err != nil {
		return models.FieldSchema{}, err
	}
	return f, nil
}
