package form

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrUnknownField = errors.New("form: unknown field")
	ErrDisplayOnly  = errors.New("form: field is display only")
	ErrValidation   = errors.New("form: validation failed")
	ErrClosed       = errors.New("form: closed")
	ErrNoChoices    = errors.New("form: field has no choices")
	errTypeMismatch = errors.New("form: value does not match data type")
)

// Validation error codes.
const (
	CodeRequired  = "required"
	CodeType      = "type"
	CodeRegex     = "regex"
	CodeMin       = "min"
	CodeMax       = "max"
	CodeMinLength = "min_length"
	CodeMaxLength = "max_length"
	CodeServer    = "server"
)

// ValidationError is a message attached to one field.
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return e.Message
}

// SubmitError is returned by a SubmitFunc to report errors keyed by field
// path. Paths may use dots, JSON pointers or bracket indices; unknown paths
// become form-level errors.
type SubmitError struct {
	Message string
	Fields  map[string][]string
}

func (e *SubmitError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	paths := make([]string, 0, len(e.Fields))
	for path := range e.Fields {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	parts := make([]string, 0, len(paths))
	for _, path := range paths {
		parts = append(parts, fmt.Sprintf("%s: %s", path, strings.Join(e.Fields[path], ", ")))
	}
	if len(parts) == 0 {
		return "form: submit rejected"
	}
	return "form: submit rejected: " + strings.Join(parts, "; ")
}
