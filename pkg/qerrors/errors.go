// Package qerrors provides the sentinel error values and structured error
// types shared across the orchestration core, so components can distinguish
// error kinds with errors.Is/errors.As instead of matching strings.
package qerrors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a job, molecule, or other entity cannot be located.
	ErrNotFound = errors.New("entity not found")

	// ErrAlreadyExists is returned when a create operation collides with an existing entity.
	ErrAlreadyExists = errors.New("entity already exists")

	// ErrInvalidInput is returned when a submission fails validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict is returned when a concurrent state transition loses a race
	// (e.g. two workers admitting the same job).
	ErrConflict = errors.New("concurrent state transition conflict")

	// ErrTimeout is returned when an operation exceeds its deadline.
	ErrTimeout = errors.New("operation timed out")

	// ErrCancelled is returned when an operation was explicitly cancelled.
	ErrCancelled = errors.New("operation cancelled")
)

// ValidationError wraps a field-specific validation failure. Job Manager
// submission rejects synchronously with one of these (spec §7, Validation row).
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field %q: %s", e.Field, e.Message)
}

// Is allows errors.Is(err, ErrInvalidInput) to match any *ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new field validation error.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidationError reports whether err is (or wraps) a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
