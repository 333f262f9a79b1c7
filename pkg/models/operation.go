package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// OperationType is the tag of an Operation.
type OperationType string

const (
	OperationFieldsetSchemaValidation OperationType = "fieldsetSchemaValidation"
	OperationFileTypeValidation       OperationType = "fileTypeValidation"
	OperationRowCountValidation       OperationType = "rowCountValidation"
)

// OperationTypes lists every operation type in display order.
var OperationTypes = []OperationType{
	OperationFieldsetSchemaValidation,
	OperationFileTypeValidation,
	OperationRowCountValidation,
}

// ErrUnknownOperationType is returned when decoding an operation whose type
// tag is not one of OperationTypes.
var ErrUnknownOperationType = errors.New("unknown operation type")

// Operation is one validation step of a workflow. Only the fields belonging
// to Type are meaningful; the others are ignored when encoding.
type Operation struct {
	Type        OperationType
	ID          string
	Title       string
	Description *string

	// fieldsetSchemaValidation
	FieldsetSchema FieldsetSchemaRef

	// fileTypeValidation
	ExpectedFileType string

	// rowCountValidation
	MinRowCount *int
	MaxRowCount *int
}

type operationHeader struct {
	Type        OperationType `json:"type"`
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description *string       `json:"description"`
}

type fieldsetSchemaValidationJSON struct {
	operationHeader
	FieldsetSchema FieldsetSchemaRef `json:"fieldsetSchema"`
}

type fileTypeValidationJSON struct {
	operationHeader
	ExpectedFileType string `json:"expectedFileType"`
}

type rowCountValidationJSON struct {
	operationHeader
	MinRowCount *int `json:"minRowCount"`
	MaxRowCount *int `json:"maxRowCount"`
}

// MarshalJSON implements json.Marshaler.
func (op Operation) MarshalJSON() ([]byte, error) {
	h := operationHeader{Type: op.Type, ID: op.ID, Title: op.Title, Description: op.Description}
	switch op.Type {
	case OperationFieldsetSchemaValidation:
		return json.Marshal(fieldsetSchemaValidationJSON{h, op.FieldsetSchema})
	case OperationFileTypeValidation:
		return json.Marshal(fileTypeValidationJSON{h, op.ExpectedFileType})
	case OperationRowCountValidation:
		return json.Marshal(rowCountValidationJSON{h, op.MinRowCount, op.MaxRowCount})
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownOperationType, op.Type)
}

// UnmarshalJSON implements json.Unmarshaler.
func (op *Operation) UnmarshalJSON(data []byte) error {
	var h operationHeader
	if err := json.Unmarshal(data, &h); err != nil {
		return err
	}
	out := Operation{Type: h.Type, ID: h.ID, Title: h.Title, Description: h.Description}
	switch h.Type {
	case OperationFieldsetSchemaValidation:
		var v fieldsetSchemaValidationJSON
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		out.FieldsetSchema = v.FieldsetSchema
	case OperationFileTypeValidation:
		var v fileTypeValidationJSON
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		out.ExpectedFileType = v.ExpectedFileType
	case OperationRowCountValidation:
		var v rowCountValidationJSON
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		out.MinRowCount = v.MinRowCount
		out.MaxRowCount = v.MaxRowCount
	default:
		return fmt.Errorf("%w: %q", ErrUnknownOperationType, h.Type)
	}
	*op = out
	return nil
}

// RefKind tags a FieldsetSchemaRef.
type RefKind string

const (
	RefKindFieldset RefKind = "fieldset"
	RefKindParam    RefKind = "param"
)

// FieldsetSchemaRef selects the fieldset schema a validation applies: either
// a fieldset schema id, or a param whose run-time value names the fieldset.
// On the wire a fieldset ref is a bare id string and a param ref is a
// ParamReference object.
type FieldsetSchemaRef struct {
	Kind RefKind
	ID   string
}

// FieldsetRef selects a fieldset schema by id.
func FieldsetRef(id string) FieldsetSchemaRef {
	return FieldsetSchemaRef{Kind: RefKindFieldset, ID: id}
}

// ParamRef selects the fieldset schema named by a param value.
func ParamRef(paramID string) FieldsetSchemaRef {
	return FieldsetSchemaRef{Kind: RefKindParam, ID: paramID}
}

// IsZero reports whether nothing is selected.
func (r FieldsetSchemaRef) IsZero() bool {
	return r.ID == ""
}

// MarshalJSON implements json.Marshaler.
func (r FieldsetSchemaRef) MarshalJSON() ([]byte, error) {
	if r.Kind == RefKindParam {
		return json.Marshal(ParamReference{ParamID: r.ID})
	}
	return json.Marshal(r.ID)
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *FieldsetSchemaRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = FieldsetSchemaRef{}
		return nil
	}
	switch data[0] {
	case '"':
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*r = FieldsetRef(id)
		return nil
	case '{':
		var ref ParamReference
		if err := json.Unmarshal(data, &ref); err != nil {
			return err
		}
		*r = ParamRef(ref.ParamID)
		return nil
	}
	return fmt.Errorf("fieldsetSchema: expected id string or param reference")
}
