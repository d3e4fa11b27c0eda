package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrConflict signals a lost race on a guarded state transition.
	ErrConflict = errors.New("conflict")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
)

// ClientError reports invalid input from a user or API caller. It is
// surfaced synchronously with a human-readable message and causes no
// state change.
type ClientError struct {
	Message string
}

func (e *ClientError) Error() string { return e.Message }

func Client(format string, args ...interface{}) error {
	return &ClientError{Message: fmt.Sprintf(format, args...)}
}

func IsClient(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce)
}

// ConflictError reports a racing state transition (for example two
// concurrent publish attempts). The loser gets this error and no
// partial state is written.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

func (e *ConflictError) Unwrap() error { return ErrConflict }

func Conflict(format string, args ...interface{}) error {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// StructuralError reports a file that cannot be parsed at all: missing
// or duplicated headers, undecodable encoding. Jobs hit by it finish
// with status invalid rather than failed.
type StructuralError struct {
	Message          string
	MissingHeaders   []string
	DuplicateHeaders []string
}

func (e *StructuralError) Error() string { return e.Message }

func IsStructural(err error) bool {
	var se *StructuralError
	return errors.As(err, &se)
}

// InternalError wraps adapter outages, database conflicts and other
// faults that should be retried via queue redelivery before going
// terminal.
type InternalError struct {
	Message   string
	Transient bool
	Cause     error
}

func (e *InternalError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *InternalError) Unwrap() error { return e.Cause }

func Internal(cause error, format string, args ...interface{}) error {
	return &InternalError{Message: fmt.Sprintf(format, args...), Cause: cause}
}

func Transient(cause error, format string, args ...interface{}) error {
	return &InternalError{Message: fmt.Sprintf(format, args...), Transient: true, Cause: cause}
}

func IsTransient(err error) bool {
	var ie *InternalError
	return errors.As(err, &ie) && ie.Transient
}
