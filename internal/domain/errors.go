package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for conditions that carry no extra structure
var (
	ErrUnauthenticated = errors.New("not authenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
)

// FieldViolation is a single field-level validation failure
type FieldViolation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries one or more ordered field violations.
// It is always recoverable and never retried.
type ValidationError struct {
	Violations []FieldViolation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, fmt.Sprintf("%s: %s", v.Field, v.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NewValidationError builds a single-violation validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Violations: []FieldViolation{{Field: field, Message: message}}}
}

// InvalidTransitionError reports an attempted workflow transition that is
// not legal from the entry's current state.
type InvalidTransitionError struct {
	Op   string
	From WorkflowKind
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: cannot %s an entry in state %s", e.Op, e.From)
}

// ConflictError reports a transition attempted against stale state. The
// caller should refetch and retry, bounded by the mutation retry count.
type ConflictError struct {
	EntryID  string
	Expected EntryStatus
	Actual   EntryStatus
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on entry %s: expected status %s, found %s", e.EntryID, e.Expected, e.Actual)
}

// TransientError wraps a network or store failure that is safe to retry.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient failure in %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsValidation reports whether err is (or wraps) a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsInvalidTransition reports whether err is an InvalidTransitionError
func IsInvalidTransition(err error) bool {
	var te *InvalidTransitionError
	return errors.As(err, &te)
}

// IsConflict reports whether err is a ConflictError
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// IsTransient reports whether err is retryable per the retry policy
func IsTransient(err error) bool {
	var tr *TransientError
	return errors.As(err, &tr)
}
