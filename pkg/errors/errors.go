package errors

import (
	"errors"
	"fmt"
)

// Common error types
var (
	// Store errors
	ErrGroupNotFound         = errors.New("group not found")
	ErrConfigurationNotFound = errors.New("configuration not found")
	ErrStoreClosed           = errors.New("store is closed")

	// Repository errors
	ErrDispatcherClosed = errors.New("dispatcher is closed")

	// Ordering errors
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrNothingToUndo   = errors.New("nothing to undo")
	ErrSessionClosed   = errors.New("ordering session is closed")

	// Engine errors
	ErrEngineNotRunning      = errors.New("engine is not running")
	ErrEngineAlreadyRunning  = errors.New("engine is already running")
	ErrNoActiveConfiguration = errors.New("no active configuration")
	ErrNoEngine              = errors.New("no engine command configured")
)

// ValidationError reports a field that failed validation before any
// background work was scheduled.
type ValidationError struct {
	Entity string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Entity != "" {
		return fmt.Sprintf("invalid %s: %s %s", e.Entity, e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// PersistenceError wraps a failure of the durable store.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// ConsistencyViolation reports a broken store invariant. The operation that
// detects one is aborted before it writes anything.
type ConsistencyViolation struct {
	Op     string
	Detail string
}

func (e *ConsistencyViolation) Error() string {
	return fmt.Sprintf("consistency violation in %s: %s", e.Op, e.Detail)
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsConsistencyViolation reports whether err is or wraps a ConsistencyViolation.
func IsConsistencyViolation(err error) bool {
	var v *ConsistencyViolation
	return errors.As(err, &v)
}
