package models

import (
	"fmt"
	"strings"
)

// Problem is a single schema validation issue located by a dot path
// relative to the schema root.
type Problem struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ValidationError collects every problem found in a schema.
type ValidationError struct {
	Problems []Problem
}

func (ve *ValidationError) Error() string {
	msgs := make([]string, len(ve.Problems))
	for i, p := range ve.Problems {
		msgs[i] = p.Path + ": " + p.Message
	}
	return fmt.Sprintf("schema validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// Add records a problem at path.
func (ve *ValidationError) Add(path, format string, args ...any) {
	ve.Problems = append(ve.Problems, Problem{Path: path, Message: fmt.Sprintf(format, args...)})
}

// HasErrors reports whether any problem was recorded.
func (ve *ValidationError) HasErrors() bool {
	return len(ve.Problems) > 0
}

// Err returns ve when it holds problems and nil otherwise.
func (ve *ValidationError) Err() error {
	if ve.HasErrors() {
		return ve
	}
	return nil
}

// CheckReferences verifies that every fieldset id and param reference in the
// schema points at an existing entry.
func (s WorkflowSchema) CheckReferences() error {
	ve := &ValidationError{}
	s.checkReferences(ve)
	return ve.Err()
}

// CheckSave runs the checks a saved schema must pass: params are well formed
// with names derived from their display names, and every reference resolves.
func (s WorkflowSchema) CheckSave() error {
	ve := &ValidationError{}
	s.checkParams(ve)
	s.checkReferences(ve)
	return ve.Err()
}

func (s WorkflowSchema) checkReferences(ve *ValidationError) {
	for i, op := range s.Operations {
		if op.Type != OperationFieldsetSchemaValidation {
			continue
		}
		path := fmt.Sprintf("operations.%d.fieldsetSchema", i)
		switch op.FieldsetSchema.Kind {
		case RefKindParam:
			if _, ok := s.ParamByID(op.FieldsetSchema.ID); !ok {
				ve.Add(path, "param %q does not exist", op.FieldsetSchema.ID)
			}
		default:
			if _, ok := s.FieldsetSchemaByID(op.FieldsetSchema.ID); !ok {
				ve.Add(path, "fieldset schema %q does not exist", op.FieldsetSchema.ID)
			}
		}
	}
	for i, fs := range s.FieldsetSchemas {
		for j, f := range fs.Fields {
			if f.AllowedValues.Kind != AllowedValuesParam {
				continue
			}
			if _, ok := s.ParamByID(f.AllowedValues.Param.ParamID); !ok {
				ve.Add(fmt.Sprintf("fieldsetSchemas.%d.fields.%d.allowedValues", i, j),
					"param %q does not exist", f.AllowedValues.Param.ParamID)
			}
		}
	}
}

// Validate checks the whole schema: version, per-entry well-formedness, id
// uniqueness and references.
func (s WorkflowSchema) Validate() error {
	ve := &ValidationError{}

	if s.Version != SchemaVersion {
		ve.Add("version", "unsupported schema version %q", s.Version)
	}

	opIDs := make(map[string]bool)
	for i, op := range s.Operations {
		path := fmt.Sprintf("operations.%d", i)
		if op.ID == "" {
			ve.Add(path+".id", "id is required")
		} else if opIDs[op.ID] {
			ve.Add(path+".id", "duplicate operation id %q", op.ID)
		}
		opIDs[op.ID] = true
		if op.Type == OperationRowCountValidation {
			if op.MinRowCount != nil && op.MaxRowCount != nil && *op.MinRowCount > *op.MaxRowCount {
				ve.Add(path, "minRowCount is greater than maxRowCount")
			}
		}
	}

	fsIDs := make(map[string]bool)
	for i, fs := range s.FieldsetSchemas {
		path := fmt.Sprintf("fieldsetSchemas.%d", i)
		if fs.ID == "" {
			ve.Add(path+".id", "id is required")
		} else if fsIDs[fs.ID] {
			ve.Add(path+".id", "duplicate fieldset schema id %q", fs.ID)
		}
		fsIDs[fs.ID] = true
		if !fs.AllowExtraColumns.Valid() {
			ve.Add(path+".allowExtraColumns", "unknown policy %q", fs.AllowExtraColumns)
		}
		for j, f := range fs.Fields {
			if err := f.DataTypeValidation.Validate(); err != nil {
				ve.Add(fmt.Sprintf("%s.fields.%d.dataTypeValidation", path, j), "%s", err.Error())
			}
		}
	}

	s.checkParams(ve)
	s.checkReferences(ve)
	return ve.Err()
}

func (s WorkflowSchema) checkParams(ve *ValidationError) {
	paramIDs := make(map[string]bool)
	for i, p := range s.Params {
		path := fmt.Sprintf("params.%d", i)
		if p.ID == "" {
			ve.Add(path+".id", "id is required")
		} else if paramIDs[p.ID] {
			ve.Add(path+".id", "duplicate param id %q", p.ID)
		}
		paramIDs[p.ID] = true
		if !p.Type.Valid() {
			ve.Add(path+".type", "unknown param type %q", p.Type)
		}
		if p.Name != VariableIdentifierName(p.DisplayName) {
			ve.Add(path+".name", "name %q is out of sync with displayName %q", p.Name, p.DisplayName)
		}
	}
}
