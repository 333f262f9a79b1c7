package document

import (
	"errors"
	"fmt"

	"smooshr/backend/pkg/models"
)

const (
	titlePath           = "title"
	operationsPath      = "schema.operations"
	fieldsetSchemasPath = "schema.fieldsetSchemas"
	paramsPath          = "schema.params"
)

// ErrNoSuchEntry is returned when an edit names an id or index that is not in
// the document.
var ErrNoSuchEntry = errors.New("no such entry")

// SetTitle sets the workflow title.
func (s *Store) SetTitle(title string) error {
	return s.SetValue(titlePath, title)
}

// InsertOperation appends op to the operations list.
func (s *Store) InsertOperation(op models.Operation) error {
	return s.Update(func(tx *Tx) error {
		return tx.Append(operationsPath, op)
	})
}

// UpdateOperation replaces the operation with op's id.
func (s *Store) UpdateOperation(op models.Operation) error {
	return s.Update(func(tx *Tx) error {
		i, err := tx.indexByID(operationsPath, op.ID)
		if err != nil {
			return err
		}
		return tx.Set(fmt.Sprintf("%s.%d", operationsPath, i), op)
	})
}

// RemoveOperationByIndex deletes the operation at i.
func (s *Store) RemoveOperationByIndex(i int) error {
	return s.Update(func(tx *Tx) error {
		return tx.RemoveAt(operationsPath, i)
	})
}

// AddFieldsetSchema appends fs to the fieldset schemas.
func (s *Store) AddFieldsetSchema(fs models.FieldsetSchema) error {
	return s.Update(func(tx *Tx) error {
		return tx.Append(fieldsetSchemasPath, fs)
	})
}

// UpdateFieldsetSchemaByIndex rewrites the fieldset schema at i with fn.
func (s *Store) UpdateFieldsetSchemaByIndex(i int, fn func(models.FieldsetSchema) models.FieldsetSchema) error {
	return s.Update(func(tx *Tx) error {
		path := fmt.Sprintf("%s.%d", fieldsetSchemasPath, i)
		var fs models.FieldsetSchema
		if err := tx.Decode(path, &fs); err != nil {
			return err
		}
		return tx.Set(path, fn(fs))
	})
}

// RemoveFieldsetSchemaByIndex deletes the fieldset schema at i. Operations
// referencing it are left alone.
func (s *Store) RemoveFieldsetSchemaByIndex(i int) error {
	return s.Update(func(tx *Tx) error {
		return tx.RemoveAt(fieldsetSchemasPath, i)
	})
}

// AddParam appends p to the params.
func (s *Store) AddParam(p models.WorkflowParam) error {
	return s.Update(func(tx *Tx) error {
		return tx.Append(paramsPath, p.WithDisplayName(p.DisplayName))
	})
}

// UpdateParam replaces the param with p's id, re-deriving its name.
func (s *Store) UpdateParam(p models.WorkflowParam) error {
	return s.Update(func(tx *Tx) error {
		i, err := tx.indexByID(paramsPath, p.ID)
		if err != nil {
			return err
		}
		return tx.Set(fmt.Sprintf("%s.%d", paramsPath, i), p.WithDisplayName(p.DisplayName))
	})
}

// RemoveParamByIndex deletes the param at i.
func (s *Store) RemoveParamByIndex(i int) error {
	return s.Update(func(tx *Tx) error {
		return tx.RemoveAt(paramsPath, i)
	})
}

func (tx *Tx) indexByID(path, id string) (int, error) {
	l, err := tx.List(path)
	if err != nil {
		return 0, err
	}
	for i, e := range l {
		if m, ok := e.(map[string]any); ok && m["id"] == id {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %s has no id %q", ErrNoSuchEntry, path, id)
}
