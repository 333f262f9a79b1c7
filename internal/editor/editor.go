// Package editor builds and checks workflow operations before they are
// committed to a document store.
package editor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"smooshr/backend/internal/document"
	"smooshr/backend/internal/reference"
	"smooshr/backend/pkg/models"
)

// Mode says whether an operation is being added or updated.
type Mode int

const (
	ModeAdd Mode = iota
	ModeUpdate
)

func (m Mode) String() string {
	if m == ModeUpdate {
		return "update"
	}
	return "add"
}

// ParseMode accepts "add" or "update".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "add":
		return ModeAdd, nil
	case "update":
		return ModeUpdate, nil
	}
	return ModeAdd, fmt.Errorf("unknown editor mode %q", s)
}

// ErrUnsupportedOperation is returned for an operation type no editor handles.
var ErrUnsupportedOperation = errors.New("unsupported operation type")

// FileTypeOptions are the file types a file type validation may expect.
var FileTypeOptions = []string{".csv"}

// Collaborators is the context an operation is checked against.
type Collaborators struct {
	Schema models.WorkflowSchema
}

// DefaultTitle returns the title a new operation of type t starts with.
func DefaultTitle(t models.OperationType) string {
	switch t {
	case models.OperationFieldsetSchemaValidation:
		return "Apply column ruleset"
	case models.OperationFileTypeValidation:
		return "Check file type"
	case models.OperationRowCountValidation:
		return "Check row counts"
	}
	return ""
}

// NewOperation returns a fresh operation of type t with a new id.
func NewOperation(t models.OperationType) (models.Operation, error) {
	op := models.Operation{Type: t, ID: uuid.NewString(), Title: DefaultTitle(t)}
	switch t {
	case models.OperationFieldsetSchemaValidation, models.OperationRowCountValidation:
	case models.OperationFileTypeValidation:
		op.ExpectedFileType = FileTypeOptions[0]
	default:
		return models.Operation{}, fmt.Errorf("%w: %q", ErrUnsupportedOperation, t)
	}
	return op, nil
}

// Submit checks op as the result of an add or update form and returns the
// operation to commit. Form errors come back as *models.ValidationError.
func Submit(mode Mode, op models.Operation, c Collaborators) (models.Operation, error) {
	ve := &models.ValidationError{}

	op.Title = strings.TrimSpace(op.Title)
	if op.Title == "" {
		ve.Add("title", "title is required")
	}
	if op.Description != nil && strings.TrimSpace(*op.Description) == "" {
		op.Description = nil
	}
	if op.ID == "" {
		ve.Add("id", "id is required")
	} else {
		exists := c.Schema.OperationIndex(op.ID) >= 0
		switch {
		case mode == ModeAdd && exists:
			ve.Add("id", "an operation with id %s already exists", op.ID)
		case mode == ModeUpdate && !exists:
			ve.Add("id", "no operation with id %s", op.ID)
		}
	}

	switch op.Type {
	case models.OperationFieldsetSchemaValidation:
		checkFieldsetSchemaValidation(op, c, ve)
	case models.OperationFileTypeValidation:
		checkFileTypeValidation(op, ve)
	case models.OperationRowCountValidation:
		checkRowCountValidation(op, ve)
	default:
		return models.Operation{}, fmt.Errorf("%w: %q", ErrUnsupportedOperation, op.Type)
	}

	if err := ve.Err(); err != nil {
		return models.Operation{}, err
	}
	return op, nil
}

func checkFieldsetSchemaValidation(op models.Operation, c Collaborators, ve *models.ValidationError) {
	if op.FieldsetSchema.IsZero() {
		ve.Add("fieldsetSchema", "select a column ruleset")
		return
	}
	if _, err := reference.Resolve(c.Schema, op.FieldsetSchema); err != nil {
		ve.Add("fieldsetSchema", "%v", err)
	}
}

func checkFileTypeValidation(op models.Operation, ve *models.ValidationError) {
	for _, opt := range FileTypeOptions {
		if op.ExpectedFileType == opt {
			return
		}
	}
	ve.Add("expectedFileType", "file type must be one of %s", strings.Join(FileTypeOptions, ", "))
}

func checkRowCountValidation(op models.Operation, ve *models.ValidationError) {
	if op.MinRowCount != nil && *op.MinRowCount < 0 {
		ve.Add("minRowCount", "minimum row count cannot be negative")
	}
	if op.MaxRowCount != nil && *op.MaxRowCount < 0 {
		ve.Add("maxRowCount", "maximum row count cannot be negative")
	}
	if op.MinRowCount != nil && op.MaxRowCount != nil && *op.MinRowCount > *op.MaxRowCount {
		ve.Add("maxRowCount", "maximum row count must not be less than the minimum")
	}
}

// Apply commits a submitted operation to store.
func Apply(store *document.Store, mode Mode, op models.Operation) error {
	if mode == ModeUpdate {
		return store.UpdateOperation(op)
	}
	return store.InsertOperation(op)
}

// SubmitAndApply checks op against the schema currently in store and commits it.
func SubmitAndApply(store *document.Store, mode Mode, op models.Operation) (models.Operation, error) {
	schema, err := store.Schema()
	if err != nil {
		return models.Operation{}, err
	}
	op, err = Submit(mode, op, Collaborators{Schema: schema})
	if err != nil {
		return models.Operation{}, err
	}
	if err := Apply(store, mode, op); err != nil {
		return models.Operation{}, err
	}
	return op, nil
}
