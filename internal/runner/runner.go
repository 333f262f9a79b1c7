// Package runner validates an uploaded CSV file against the operations of a
// workflow schema and produces a run report.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"

	"smooshr/backend/pkg/models"
)

var (
	// ErrUnknownParam is returned when an input names no declared param.
	ErrUnknownParam = errors.New("parameter definition not found in schema")
	// ErrFieldsetNotFound is returned when an operation selects a fieldset
	// schema the workflow does not have.
	ErrFieldsetNotFound = errors.New("fieldset schema not found in schema")
)

// Options tunes a Runner.
type Options struct {
	// ImplicitBaseline adds generic CSV well-formedness checks in front of the
	// operations of the workflow.
	ImplicitBaseline bool
}

// Input is one run request.
type Input struct {
	WorkflowID string
	Filename   string
	Content    io.Reader
	// Params maps param names to decoded JSON values.
	Params map[string]any
}

// Runner executes workflow schemas.
type Runner struct {
	opts Options
}

// New returns a Runner.
func New(opts Options) *Runner {
	return &Runner{opts: opts}
}

// Run validates in against schema. Failures in the file are part of the
// report; an error means the request itself is unusable.
func (r *Runner) Run(ctx context.Context, schema models.WorkflowSchema, in Input) (models.WorkflowRunReport, error) {
	report := models.WorkflowRunReport{
		WorkflowID:         in.WorkflowID,
		Filename:           in.Filename,
		ValidationFailures: []models.ValidationFailure{},
	}

	if err := checkParams(in.Params, schema); err != nil {
		return report, err
	}

	t, baseline, err := parseCSV(in.Content)
	if err != nil {
		return report, err
	}
	report.RowCount = len(t.rows)
	if r.opts.ImplicitBaseline {
		report.ValidationFailures = append(report.ValidationFailures, baseline...)
	}

	for _, op := range schema.Operations {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		failures, err := runOperation(op, schema, t, in)
		if err != nil {
			return report, err
		}
		report.ValidationFailures = append(report.ValidationFailures, failures...)
	}
	return report, nil
}

func checkParams(params map[string]any, schema models.WorkflowSchema) error {
	for name := range params {
		if _, ok := schema.ParamByName(name); !ok {
			return fmt.Errorf("%w: %s", ErrUnknownParam, name)
		}
	}
	return nil
}

func runOperation(op models.Operation, schema models.WorkflowSchema, t *table, in Input) ([]models.ValidationFailure, error) {
	switch op.Type {
	case models.OperationFileTypeValidation:
		return validateFileType(in.Filename, op), nil
	case models.OperationRowCountValidation:
		return validateRowCount(len(t.rows), op), nil
	case models.OperationFieldsetSchemaValidation:
		fs, failure, err := resolveFieldset(op.FieldsetSchema, schema, in.Params)
		if err != nil || failure != nil {
			return failure, err
		}
		return validateFieldset(t, fs, schema, in.Params), nil
	}
	return nil, fmt.Errorf("%w: %q", models.ErrUnknownOperationType, op.Type)
}

func resolveFieldset(ref models.FieldsetSchemaRef, schema models.WorkflowSchema, params map[string]any) (models.FieldsetSchema, []models.ValidationFailure, error) {
	if ref.Kind != models.RefKindParam {
		fs, ok := schema.FieldsetSchemaByID(ref.ID)
		if !ok {
			return fs, nil, fmt.Errorf("%w: id '%s'", ErrFieldsetNotFound, ref.ID)
		}
		return fs, nil, nil
	}

	param, ok := schema.ParamByID(ref.ID)
	if !ok {
		return models.FieldsetSchema{}, nil, fmt.Errorf("%w: param id '%s'", ErrUnknownParam, ref.ID)
	}
	name, ok := params[param.Name].(string)
	if !ok {
		return models.FieldsetSchema{}, []models.ValidationFailure{models.FileFailure(
			fmt.Sprintf("The param value referenced with %s is not a string.", param.Name))}, nil
	}
	fs, ok := schema.FieldsetSchemaByName(name)
	if !ok {
		return fs, nil, fmt.Errorf("%w: name '%s'", ErrFieldsetNotFound, name)
	}
	return fs, nil, nil
}

func validateFieldset(t *table, fs models.FieldsetSchema, schema models.WorkflowSchema, params map[string]any) []models.ValidationFailure {
	failures := checkColumns(t.columns, fs)

	checks := make([]fieldCheck, 0, len(fs.Fields))
	for _, f := range fs.Fields {
		fc := fieldCheck{field: f}
		switch f.AllowedValues.Kind {
		case models.AllowedValuesList:
			if len(f.AllowedValues.Values) > 0 {
				fc.allowed = toSet(f.AllowedValues.Values)
			}
		case models.AllowedValuesParam:
			values, failure := allowedFromParam(f, schema, params)
			if failure != nil {
				failures = append(failures, *failure)
			} else {
				fc.allowed = toSet(values)
			}
		}
		checks = append(checks, fc)
	}

	for i, row := range t.rows {
		for _, fc := range checks {
			failures = append(failures, validateField(i+1, row, fc)...)
		}
	}
	return failures
}

func allowedFromParam(f models.FieldSchema, schema models.WorkflowSchema, params map[string]any) ([]string, *models.ValidationFailure) {
	param, ok := schema.ParamByID(f.AllowedValues.Param.ParamID)
	if !ok {
		failure := models.FileFailure(fmt.Sprintf("Allowed values for field '%s' reference an unknown input", f.Name))
		return nil, &failure
	}
	values, ok := stringList(params[param.Name])
	if !ok {
		failure := models.FileFailure(fmt.Sprintf("The param value referenced with %s is not a list of strings.", param.Name))
		return nil, &failure
	}
	return values, nil
}

func stringList(v any) ([]string, bool) {
	switch l := v.(type) {
	case []string:
		return l, true
	case []any:
		out := make([]string, 0, len(l))
		for _, e := range l {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
