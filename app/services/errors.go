package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrValidation marks malformed input or a reference to a missing parent.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when the requested todo doesn't exist.
	ErrNotFound = errors.New("todo not found")

	// ErrHasChildren is returned by safe deletes blocked by direct children.
	ErrHasChildren = errors.New("todo has children")

	// ErrStorage wraps unexpected failures of the backing store.
	ErrStorage = errors.New("storage failure")
)

// ValidationError describes rejected input. Nothing is persisted when it is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Is reports ErrValidation as a match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ConflictError is returned when a safe delete is blocked by children.
type ConflictError struct {
	ID            uuid.UUID
	ChildrenCount int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("cannot delete todo %s with %d child/children; use mode cascade or orphan", e.ID, e.ChildrenCount)
}

// Is reports ErrHasChildren as a match.
func (e *ConflictError) Is(target error) bool {
	return target == ErrHasChildren
}

func storageError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}
