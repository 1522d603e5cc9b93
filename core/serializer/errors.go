package serializer

import (
	"fmt"
	"sort"
	"strings"
)

// NonFieldErrors is the key used for errors that do not belong to a single field.
const NonFieldErrors = "non_field_errors"

// ValidationError collects field-level messages keyed by field path,
// e.g. "title" or "tracks[1].title".
type ValidationError struct {
	Fields map[string][]string
}

// NewValidationError creates an error holding a single message for field.
func NewValidationError(field, msg string) *ValidationError {
	e := &ValidationError{}
	e.Add(field, msg)
	return e
}

func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

// Merge copies other's messages under prefix.
func (e *ValidationError) Merge(prefix string, other *ValidationError) {
	if other == nil {
		return
	}
	for field, msgs := range other.Fields {
		path := field
		if prefix != "" {
			path = prefix + "." + field
		}
		for _, msg := range msgs {
			e.Add(path, msg)
		}
	}
}

func (e *ValidationError) Empty() bool {
	return len(e.Fields) == 0
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(e.Fields[k], " ")))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

const (
	msgRequired      = "This field is required."
	msgNull          = "This field may not be null."
	msgBlank         = "This field may not be blank."
	msgInvalidInt    = "A valid integer is required."
	msgInvalidNumber = "A valid number is required."
	msgInvalidString = "Not a valid string."
)

func msgMaxLength(n int) string {
	return fmt.Sprintf("Ensure this field has no more than %d characters.", n)
}

func msgNotAList(v interface{}) string {
	return fmt.Sprintf("Expected a list of items but got type %q.", typeName(v))
}

func msgNotAnObject(v interface{}) string {
	return fmt.Sprintf("Invalid data. Expected a dictionary, but got %s.", typeName(v))
}
