package models

import (
	"regexp"
	"strings"
)

// ParamType is the value type of a workflow param.
type ParamType string

const (
	ParamTypeString     ParamType = "string"
	ParamTypeNumber     ParamType = "number"
	ParamTypeStringList ParamType = "string list"
)

// Valid reports whether t is a known param type.
func (t ParamType) Valid() bool {
	switch t {
	case ParamTypeString, ParamTypeNumber, ParamTypeStringList:
		return true
	}
	return false
}

// WorkflowParam is a named input supplied when a workflow is run. Name is
// derived from DisplayName and must be kept in sync with it.
type WorkflowParam struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	DisplayName string    `json:"displayName"`
	Description string    `json:"description"`
	Required    bool      `json:"required"`
	Type        ParamType `json:"type"`
}

// WithDisplayName returns a copy with DisplayName set and Name re-derived.
func (p WorkflowParam) WithDisplayName(displayName string) WorkflowParam {
	p.DisplayName = displayName
	p.Name = VariableIdentifierName(displayName)
	return p
}

// ParamReference is a weak reference into a schema's params by id.
type ParamReference struct {
	ParamID string `json:"paramId"`
}

var (
	// \s is ASCII-only in RE2; \p{Z} adds NBSP and the other Unicode spaces.
	nonWordRe    = regexp.MustCompile(`[^\w\p{Z}\s]`)
	whitespaceRe = regexp.MustCompile(`[\p{Z}\s]+`)
)

// VariableIdentifierName converts a display string into the identifier used
// as a param's variable name: non word characters are stripped, whitespace
// runs become underscores and a leading uppercase letter is lowered.
func VariableIdentifierName(displayName string) string {
	name := strings.TrimSpace(displayName)
	name = nonWordRe.ReplaceAllString(name, "")
	name = whitespaceRe.ReplaceAllString(name, "_")
	if name != "" && name[0] >= 'A' && name[0] <= 'Z' {
		name = strings.ToLower(name[:1]) + name[1:]
	}
	return name
}
