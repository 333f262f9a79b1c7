// Package harness collects workflow input values, submits a test run and
// renders the resulting report.
package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"smooshr/backend/pkg/models"
)

// ErrUnknownParam is returned when a value is set for a name that no schema
// param carries.
var ErrUnknownParam = errors.New("unknown param")

// RunClient submits a run to the API.
type RunClient interface {
	RunWorkflow(ctx context.Context, id, filename string, content io.Reader, inputs map[string]any) (*models.WorkflowRunReport, error)
}

// Harness holds the input values of one test run. Values are keyed by param
// name; params without a value are sent as null.
type Harness struct {
	client RunClient

	mu     sync.Mutex
	schema models.WorkflowSchema
	values map[string]any
}

// New creates a Harness for schema.
func New(client RunClient, schema models.WorkflowSchema) *Harness {
	return &Harness{client: client, schema: schema, values: make(map[string]any)}
}

// SetSchema replaces the schema, e.g. after the workflow was edited. Values
// of params that no longer exist are dropped when inputs are collected.
func (h *Harness) SetSchema(schema models.WorkflowSchema) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.schema = schema
}

// Set stores a typed value for the param called name.
func (h *Harness) Set(name string, value any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.schema.ParamByName(name); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownParam, name)
	}
	h.values[name] = value
	return nil
}

// SetText coerces text according to the param's type and stores it.
func (h *Harness) SetText(name, text string) error {
	h.mu.Lock()
	p, ok := h.schema.ParamByName(name)
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownParam, name)
	}
	v, err := Coerce(p, text)
	if err != nil {
		return err
	}
	return h.Set(name, v)
}

// SetAssignments applies "name=value" pairs with SetText.
func (h *Harness) SetAssignments(assignments []string) error {
	for _, a := range assignments {
		name, value, ok := strings.Cut(a, "=")
		if !ok {
			return fmt.Errorf("input %q is not of the form name=value", a)
		}
		if err := h.SetText(strings.TrimSpace(name), value); err != nil {
			return err
		}
	}
	return nil
}

// Inputs returns a value for every schema param, nil when unset. Required
// params are not checked here; the server reports them.
func (h *Harness) Inputs() map[string]any {
	h.mu.Lock()
	defer h.mu.Unlock()
	inputs := make(map[string]any, len(h.schema.Params))
	for _, p := range h.schema.Params {
		inputs[p.Name] = h.values[p.Name]
	}
	return inputs
}

// Run uploads content as filename together with the collected inputs.
func (h *Harness) Run(ctx context.Context, workflowID, filename string, content io.Reader) (*models.WorkflowRunReport, error) {
	return h.client.RunWorkflow(ctx, workflowID, filename, content, h.Inputs())
}

// Coerce converts command line text into the JSON value for a param: a
// float for numbers, a trimmed comma separated list for string lists and the
// text itself otherwise.
func Coerce(p models.WorkflowParam, text string) (any, error) {
	switch p.Type {
	case models.ParamTypeNumber:
		f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return nil, fmt.Errorf("input %s: %q is not a number", p.Name, text)
		}
		return f, nil
	case models.ParamTypeStringList:
		if strings.TrimSpace(text) == "" {
			return []string{}, nil
		}
		parts := strings.Split(text, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts, nil
	}
	return text, nil
}

// Render writes the row count followed by one line per failure.
func Render(w io.Writer, report *models.WorkflowRunReport) error {
	rows := "rows"
	if report.RowCount == 1 {
		rows = "row"
	}
	if _, err := fmt.Fprintf(w, "%s %s in %s\n", humanize.Comma(int64(report.RowCount)), rows, report.Filename); err != nil {
		return err
	}
	if report.Succeeded() {
		_, err := fmt.Fprintln(w, "All validations passed.")
		return err
	}

	if _, err := fmt.Fprintf(w, "%s validation failures:\n", humanize.Comma(int64(len(report.ValidationFailures)))); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ROW\tMESSAGE")
	for _, f := range report.ValidationFailures {
		row := "-"
		if f.RowNumber != nil {
			row = strconv.Itoa(*f.RowNumber)
		}
		fmt.Fprintf(tw, "%s\t%s\n", row, f.Message)
	}
	return tw.Flush()
}
