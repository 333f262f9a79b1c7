// Package reference converts schema references between their stored form,
// the flat strings used by single-value selection controls, and display labels.
package reference

import (
	"errors"
	"fmt"
	"strings"

	"smooshr/backend/pkg/models"
)

// paramPrefix marks a reference string that points at a workflow param.
const paramPrefix = "param:"

// ErrDangling is returned when a reference points at nothing.
var ErrDangling = errors.New("dangling reference")

// IsReferenceString reports whether s encodes a param reference.
func IsReferenceString(s string) bool {
	return strings.HasPrefix(s, paramPrefix)
}

// ToReferenceString encodes a param reference as "param:<id>".
func ToReferenceString(ref models.ParamReference) string {
	return paramPrefix + ref.ParamID
}

// ParamToReferenceString encodes a reference to param.
func ParamToReferenceString(param models.WorkflowParam) string {
	return paramPrefix + param.ID
}

// FromReferenceString decodes "param:<id>". Callers check IsReferenceString
// first; a string without the prefix decodes to itself as the param id.
func FromReferenceString(s string) models.ParamReference {
	return models.ParamReference{ParamID: strings.TrimPrefix(s, paramPrefix)}
}

// Selection is the explicit tagged form of a selectable reference target.
type Selection struct {
	Kind models.RefKind
	ID   string
}

// ParseSelection decodes a flat selection string. Strings carrying the param
// prefix select a param; anything else is a fieldset schema id.
func ParseSelection(s string) Selection {
	if IsReferenceString(s) {
		return Selection{Kind: models.RefKindParam, ID: FromReferenceString(s).ParamID}
	}
	return Selection{Kind: models.RefKindFieldset, ID: s}
}

// String encodes the selection for a single-value control.
func (s Selection) String() string {
	if s.Kind == models.RefKindParam {
		return ToReferenceString(models.ParamReference{ParamID: s.ID})
	}
	return s.ID
}

// Ref converts the selection into the stored operation reference.
func (s Selection) Ref() models.FieldsetSchemaRef {
	if s.Kind == models.RefKindParam {
		return models.ParamRef(s.ID)
	}
	return models.FieldsetRef(s.ID)
}

// FromRef converts a stored operation reference into a selection.
func FromRef(ref models.FieldsetSchemaRef) Selection {
	if ref.Kind == models.RefKindParam {
		return Selection{Kind: models.RefKindParam, ID: ref.ID}
	}
	return Selection{Kind: models.RefKindFieldset, ID: ref.ID}
}

// Option is one entry of a reference picker.
type Option struct {
	Value string
	Label string
}

// Options lists every fieldset schema, then every param, as selectable targets.
func Options(schema models.WorkflowSchema) []Option {
	opts := make([]Option, 0, len(schema.FieldsetSchemas)+len(schema.Params))
	for _, fs := range schema.FieldsetSchemas {
		opts = append(opts, Option{Value: fs.ID, Label: fs.Name})
	}
	for _, p := range schema.Params {
		opts = append(opts, Option{Value: ParamToReferenceString(p), Label: paramLabel(p)})
	}
	return opts
}

// Resolve returns the display label of ref within schema.
func Resolve(schema models.WorkflowSchema, ref models.FieldsetSchemaRef) (string, error) {
	switch ref.Kind {
	case models.RefKindParam:
		p, ok := schema.ParamByID(ref.ID)
		if !ok {
			return "", fmt.Errorf("%w: param %q", ErrDangling, ref.ID)
		}
		return paramLabel(p), nil
	default:
		fs, ok := schema.FieldsetSchemaByID(ref.ID)
		if !ok {
			return "", fmt.Errorf("%w: fieldset schema %q", ErrDangling, ref.ID)
		}
		return fs.Name, nil
	}
}

// ResolveParam returns the param a ParamReference points at.
func ResolveParam(schema models.WorkflowSchema, ref models.ParamReference) (models.WorkflowParam, error) {
	p, ok := schema.ParamByID(ref.ParamID)
	if !ok {
		return models.WorkflowParam{}, fmt.Errorf("%w: param %q", ErrDangling, ref.ParamID)
	}
	return p, nil
}

func paramLabel(p models.WorkflowParam) string {
	return "Input: " + p.DisplayName
}
