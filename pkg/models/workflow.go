// Package models defines the workflow document shared by the Smooshr server,
// the API client and the editing model.
package models

import (
	"time"
)

// SchemaVersion is the only workflow schema version understood by this code.
const SchemaVersion = "0.1"

// WorkflowSummary is the list representation of a workflow (no schema).
type WorkflowSummary struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Owner       string    `json:"owner"`
	CreatedDate time.Time `json:"created_date"`
}

// Workflow is a named, owned document describing how uploaded tabular files
// are validated.
type Workflow struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Owner       string         `json:"owner"`
	CreatedDate time.Time      `json:"created_date"`
	Schema      WorkflowSchema `json:"schema"`
}

// Summary drops the schema.
func (w Workflow) Summary() WorkflowSummary {
	return WorkflowSummary{
		ID:          w.ID,
		Title:       w.Title,
		Owner:       w.Owner,
		CreatedDate: w.CreatedDate,
	}
}

// WorkflowCreate is the body of POST /workflows.
type WorkflowCreate struct {
	Title string `json:"title"`
}

// WorkflowSchema is the versioned description of what a workflow executes.
// Operations run in slice order.
type WorkflowSchema struct {
	Version         string           `json:"version"`
	Operations      []Operation      `json:"operations"`
	FieldsetSchemas []FieldsetSchema `json:"fieldsetSchemas"`
	Params          []WorkflowParam  `json:"params"`
}

// NewEmptySchema returns a schema with no operations, fieldsets or params.
func NewEmptySchema() WorkflowSchema {
	return WorkflowSchema{
		Version:         SchemaVersion,
		Operations:      []Operation{},
		FieldsetSchemas: []FieldsetSchema{},
		Params:          []WorkflowParam{},
	}
}

// FieldsetSchemaByID returns the fieldset schema with the given id.
func (s WorkflowSchema) FieldsetSchemaByID(id string) (FieldsetSchema, bool) {
	for _, fs := range s.FieldsetSchemas {
		if fs.ID == id {
			return fs, true
		}
	}
	return FieldsetSchema{}, false
}

// FieldsetSchemaByName returns the first fieldset schema with the given name.
func (s WorkflowSchema) FieldsetSchemaByName(name string) (FieldsetSchema, bool) {
	for _, fs := range s.FieldsetSchemas {
		if fs.Name == name {
			return fs, true
		}
	}
	return FieldsetSchema{}, false
}

// ParamByID returns the workflow param with the given id.
func (s WorkflowSchema) ParamByID(id string) (WorkflowParam, bool) {
	for _, p := range s.Params {
		if p.ID == id {
			return p, true
		}
	}
	return WorkflowParam{}, false
}

// ParamByName returns the workflow param with the given variable name.
func (s WorkflowSchema) ParamByName(name string) (WorkflowParam, bool) {
	for _, p := range s.Params {
		if p.Name == name {
			return p, true
		}
	}
	return WorkflowParam{}, false
}

// OperationIndex returns the position of the operation with the given id, or -1.
func (s WorkflowSchema) OperationIndex(id string) int {
	for i, op := range s.Operations {
		if op.ID == id {
			return i
		}
	}
	return -1
}
