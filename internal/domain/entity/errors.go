package entity

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound matches every *NotFoundError via errors.Is
var ErrNotFound = errors.New("leave request not found")

// FieldError is a single failed check on a draft field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every field of a draft that failed validation
type ValidationError struct {
	Fields []FieldError
}

// Add records a failed field
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// HasErrors reports whether any field failed
func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NotFoundError is returned when a request id does not exist
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("leave request %s not found", e.ID)
}

// Is lets errors.Is(err, ErrNotFound) match
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}
