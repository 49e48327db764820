package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates that the requested list, task or user does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate indicates a record whose identity collides with an earlier one.
var ErrDuplicate = errors.New("duplicate")

// ValidationError reports a malformed or missing inbound field.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Err)
	}
	return "invalid input: " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// NewValidationError builds a ValidationError with a formatted message.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Err: fmt.Errorf(format, args...)}
}

// StorageError wraps a disk failure of a flat-file store.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
