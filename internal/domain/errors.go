package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	// ErrNotFound indicates that a requested entity was not found.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates that an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates that the input data is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoHarvesters indicates that no comparison modules are registered.
	// Assignment is meaningless without at least one scoring signal, so this
	// aborts the whole run.
	ErrNoHarvesters = errors.New("no harvester modules configured")

	// ErrMalformedName indicates that a name string could not be parsed.
	// Normalization prefers degrading to an empty structure over raising, so
	// this surfaces only from callers that require a non-empty surname.
	ErrMalformedName = errors.New("malformed name")
)

// NotFoundError provides details about a not found entity.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %d", e.Entity, e.ID)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(entity string, id int64) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

// HarvesterError wraps a failure inside one harvester module. Individual
// module failures are recoverable: the module's contribution is skipped and
// processing continues.
type HarvesterError struct {
	Module string
	Cause  error
}

func (e *HarvesterError) Error() string {
	return fmt.Sprintf("harvester %s: %v", e.Module, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *HarvesterError) Unwrap() error {
	return e.Cause
}

// SignatureError wraps a failure while evaluating one virtual author. The
// processing loops catch it at the per-signature boundary so that one bad
// record never aborts a whole orphan or update pass.
type SignatureError struct {
	VirtualAuthorID int64
	Cause           error
}

func (e *SignatureError) Error() string {
	return fmt.Sprintf("processing signature %d: %v", e.VirtualAuthorID, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *SignatureError) Unwrap() error {
	return e.Cause
}
