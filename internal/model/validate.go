package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

// MaxKeyLength bounds the size of an entry key.
const MaxKeyLength = 255

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// ValidateEntry checks the caller-supplied fields of an entry.
// Content is deliberately not checked against Type: a json entry whose content
// does not parse is still storable, and decoding falls back on read.
func ValidateEntry(e *Entry) error {
	var ve ValidationError

	key := e.Key
	switch {
	case strings.TrimSpace(key) == "":
		ve.Errors = append(ve.Errors, FieldError{Field: "key", Message: "is required"})
	case len(key) > MaxKeyLength:
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "key",
			Message: fmt.Sprintf("must be %d bytes or fewer", MaxKeyLength),
		})
	case strings.IndexFunc(key, unicode.IsControl) >= 0:
		ve.Errors = append(ve.Errors, FieldError{Field: "key", Message: "must not contain control characters"})
	}

	if !e.Type.IsValid() {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "type",
			Message: fmt.Sprintf("invalid value %q (must be text or json)", e.Type),
		})
	}

	for _, f := range []struct{ name, value string }{
		{"content", e.Content},
		{"title", e.Title},
		{"section", e.Section},
		{"subsection", e.Subsection},
	} {
		if strings.IndexByte(f.value, 0) >= 0 {
			ve.Errors = append(ve.Errors, FieldError{Field: f.name, Message: "must not contain NUL bytes"})
		}
	}

	if len(e.Metadata) > 0 && !json.Valid(e.Metadata) {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "metadata",
			Message: "contains invalid JSON",
		})
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}
