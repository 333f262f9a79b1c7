package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ExtraColumnsPolicy says where columns not named by a fieldset schema may appear.
type ExtraColumnsPolicy string

const (
	ExtraColumnsNo                    ExtraColumnsPolicy = "no"
	ExtraColumnsAnywhere              ExtraColumnsPolicy = "anywhere"
	ExtraColumnsOnlyAfterSchemaFields ExtraColumnsPolicy = "onlyAfterSchemaFields"
)

// Valid reports whether p is a known policy.
func (p ExtraColumnsPolicy) Valid() bool {
	switch p {
	case ExtraColumnsNo, ExtraColumnsAnywhere, ExtraColumnsOnlyAfterSchemaFields:
		return true
	}
	return false
}

// FieldsetSchema is a named, reusable set of column rules (a "ruleset").
type FieldsetSchema struct {
	ID                string             `json:"id"`
	Name              string             `json:"name"`
	OrderMatters      bool               `json:"orderMatters"`
	Fields            []FieldSchema      `json:"fields"`
	AllowExtraColumns ExtraColumnsPolicy `json:"allowExtraColumns"`
}

// FieldNames returns the column names in field order.
func (fs FieldsetSchema) FieldNames() []string {
	names := make([]string, len(fs.Fields))
	for i, f := range fs.Fields {
		names[i] = f.Name
	}
	return names
}

// FieldSchema is the validation schema of one column.
type FieldSchema struct {
	ID                 string             `json:"id"`
	Name               string             `json:"name"`
	CaseSensitive      bool               `json:"caseSensitive"`
	Required           bool               `json:"required"`
	DataTypeValidation DataTypeValidation `json:"dataTypeValidation"`
	AllowEmptyValues   bool               `json:"allowEmptyValues"`
	AllowedValues      AllowedValues      `json:"allowedValues"`
}

// DataType is the tag of a DataTypeValidation.
type DataType string

const (
	DataTypeAny       DataType = "any"
	DataTypeString    DataType = "string"
	DataTypeNumber    DataType = "number"
	DataTypeTimestamp DataType = "timestamp"
)

// DataTypeValidation is either a basic data type or a timestamp with an
// strftime format.
type DataTypeValidation struct {
	DataType       DataType `json:"dataType"`
	DateTimeFormat string   `json:"dateTimeFormat,omitempty"`
}

// Validate checks the variant is well formed.
func (d DataTypeValidation) Validate() error {
	switch d.DataType {
	case DataTypeAny, DataTypeString, DataTypeNumber:
		return nil
	case DataTypeTimestamp:
		if d.DateTimeFormat == "" {
			return fmt.Errorf("timestamp data type requires a dateTimeFormat")
		}
		return nil
	}
	return fmt.Errorf("unknown data type %q", d.DataType)
}

// AllowedValuesKind is the tag of AllowedValues.
type AllowedValuesKind int

const (
	// AllowedValuesUnconstrained encodes as JSON null.
	AllowedValuesUnconstrained AllowedValuesKind = iota
	AllowedValuesList
	AllowedValuesParam
)

// AllowedValues restricts the values of a column to an explicit list, to the
// list supplied for a workflow param, or not at all. An empty explicit list
// constrains nothing but is kept distinct from null on the wire.
type AllowedValues struct {
	Kind   AllowedValuesKind
	Values []string
	Param  ParamReference
}

// AllowedList builds an explicit allowed-values list.
func AllowedList(values ...string) AllowedValues {
	if values == nil {
		values = []string{}
	}
	return AllowedValues{Kind: AllowedValuesList, Values: values}
}

// AllowedFromParam builds an allowed-values reference to a param.
func AllowedFromParam(paramID string) AllowedValues {
	return AllowedValues{Kind: AllowedValuesParam, Param: ParamReference{ParamID: paramID}}
}

// Constrains reports whether the allowed values restrict anything.
func (a AllowedValues) Constrains() bool {
	switch a.Kind {
	case AllowedValuesList:
		return len(a.Values) > 0
	case AllowedValuesParam:
		return true
	}
	return false
}

// MarshalJSON implements json.Marshaler.
func (a AllowedValues) MarshalJSON() ([]byte, error) {
	switch a.Kind {
	case AllowedValuesList:
		if a.Values == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(a.Values)
	case AllowedValuesParam:
		return json.Marshal(a.Param)
	}
	return []byte("null"), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *AllowedValues) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*a = AllowedValues{}
		return nil
	case data[0] == '[':
		var values []string
		if err := json.Unmarshal(data, &values); err != nil {
			return fmt.Errorf("allowedValues: %w", err)
		}
		*a = AllowedList(values...)
		return nil
	case data[0] == '{':
		var ref ParamReference
		if err := json.Unmarshal(data, &ref); err != nil {
			return fmt.Errorf("allowedValues: %w", err)
		}
		*a = AllowedValues{Kind: AllowedValuesParam, Param: ref}
		return nil
	}
	return fmt.Errorf("allowedValues: expected null, list or param reference")
}
