package models

import (
	"errors"
	"fmt"
)

// Error kinds. Compare with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrResourceExhausted = errors.New("resource exhausted")
	ErrInvalidState      = errors.New("invalid state")
	ErrInvalidArgument   = errors.New("invalid argument")
)

// Error is a typed failure returned by the core.
type Error struct {
	Op     string // operation that failed, e.g. "set task status"
	Entity string // entity involved, e.g. "status"
	Kind   error  // one of the Err* kinds above
	Err    error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Entity != "" {
		msg += ": " + e.Entity
	}
	msg += ": " + e.Kind.Error()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NotFound reports a missing entity.
func NotFound(op, entity string) error {
	return &Error{Op: op, Entity: entity, Kind: ErrNotFound}
}

// Conflict reports a uniqueness violation.
func Conflict(op, entity string, cause error) error {
	return &Error{Op: op, Entity: entity, Kind: ErrConflict, Err: cause}
}

// PermissionDenied reports a refused action.
func PermissionDenied(op, action string) error {
	return &Error{Op: op, Entity: action, Kind: ErrPermissionDenied}
}

// InvalidState reports a value outside the entity's allowed set.
func InvalidState(op, format string, args ...any) error {
	return &Error{Op: op, Kind: ErrInvalidState, Err: fmt.Errorf(format, args...)}
}

// InvalidArgument reports malformed caller input.
func InvalidArgument(op, format string, args ...any) error {
	return &Error{Op: op, Kind: ErrInvalidArgument, Err: fmt.Errorf(format, args...)}
}

// ResourceExhausted reports that the storage gate could not be acquired in time.
func ResourceExhausted(op string, cause error) error {
	return &Error{Op: op, Kind: ErrResourceExhausted, Err: cause}
}

// IsRetryable reports whether the caller may retry the failed operation as is.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrResourceExhausted)
}
