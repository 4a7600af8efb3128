package helper

import (
	"errors"
	"fmt"
)

// Error wraps an underlying error with the action that failed.
type Error struct {
	Action string
	Err    error
}

// NewError creates a new Error wrapping err with the failed action.
func NewError(action string, err error) *Error {
	return &Error{
		Action: action,
		Err:    err,
	}
}

func (e *Error) Error() string {
	return fmt.Sprintf("error in %s: %v", e.Action, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ValidationError reports invalid caller input. It is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// DimensionMismatchError reports an embedding whose dimension does not match
// the store's configured dimension. Raised before the write reaches the
// database, so a mismatched batch leaves no rows behind.
type DimensionMismatchError struct {
	Want int
	Got  int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: want %d, got %d", e.Want, e.Got)
}

// NotFoundError reports that a record does not exist within the current
// tenant's scope. A record of another tenant is indistinguishable from a
// record that does not exist.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// TransientError marks a failure that may succeed on retry, like a lost
// connection or a timeout. Callers can test for it with errors.As.
type TransientError struct {
	Op  string
	Err error
}

// NewTransientError creates a new TransientError for the given operation.
func NewTransientError(op string, err error) *TransientError {
	return &TransientError{Op: op, Err: err}
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient failure in %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is or wraps a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
