// Package apperr defines the error kinds surfaced by the complaint lifecycle.
//
// Each kind is a concrete type so callers can recover the details with
// errors.As, plus an IsX helper for the common yes/no check. Retry policy
// follows the kind:
//   - ValidationError, NotFoundError, InvalidTransitionError: never retried
//   - ResourceExhaustedError: transient, the caller may retry the whole create
//   - ConcurrentModificationError: already retried internally, surfaced after the budget
//   - StoreUnavailableError: left to the caller's own retry policy
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

type Kind string

const (
	KindValidation             Kind = "validation_failed"
	KindNotFound               Kind = "not_found"
	KindInvalidTransition      Kind = "invalid_transition"
	KindResourceExhausted      Kind = "resource_exhausted"
	KindConcurrentModification Kind = "concurrent_modification"
	KindStoreUnavailable       Kind = "store_unavailable"
	KindInternal               Kind = "internal"
)

// FieldError names one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports malformed or missing input.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(parts, "; "))
}

// Add records a field failure and returns the receiver for chaining.
func (e *ValidationError) Add(field, message string) *ValidationError {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
	return e
}

// OrNil returns nil when no field failed, so validators can end with `return v.OrNil()`.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func NewValidationError(field, message string) *ValidationError {
	return (&ValidationError{}).Add(field, message)
}

// NotFoundError reports a missing complaint or technician.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// InvalidTransitionError reports a status change the lifecycle does not allow.
type InvalidTransitionError struct {
	From   string
	To     string
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid transition from %s to %s: %s", e.From, e.To, e.Reason)
	}
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}

func NewInvalidTransitionError(from, to, reason string) *InvalidTransitionError {
	return &InvalidTransitionError{From: from, To: to, Reason: reason}
}

// ResourceExhaustedError reports that no free complaint identifier was found.
type ResourceExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ResourceExhaustedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resource exhausted after %d attempts: %v", e.Attempts, e.Err)
	}
	return fmt.Sprintf("resource exhausted after %d attempts", e.Attempts)
}

func (e *ResourceExhaustedError) Unwrap() error {
	return e.Err
}

// ConcurrentModificationError reports that another writer kept winning the
// compare-and-swap on the same complaint.
type ConcurrentModificationError struct {
	ComplaintID string
	Attempts    int
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("complaint %s was modified concurrently (%d attempts)", e.ComplaintID, e.Attempts)
}

// StoreUnavailableError reports an unreachable or timed-out store.
type StoreUnavailableError struct {
	Op  string
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("store unavailable during %s: %v", e.Op, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error {
	return e.Err
}

func NewStoreUnavailableError(op string, err error) *StoreUnavailableError {
	return &StoreUnavailableError{Op: op, Err: err}
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsInvalidTransition(err error) bool {
	var target *InvalidTransitionError
	return errors.As(err, &target)
}

func IsResourceExhausted(err error) bool {
	var target *ResourceExhaustedError
	return errors.As(err, &target)
}

func IsConcurrentModification(err error) bool {
	var target *ConcurrentModificationError
	return errors.As(err, &target)
}

func IsStoreUnavailable(err error) bool {
	var target *StoreUnavailableError
	return errors.As(err, &target)
}

// KindOf classifies err. Unknown errors are KindInternal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case IsValidation(err):
		return KindValidation
	case IsNotFound(err):
		return KindNotFound
	case IsInvalidTransition(err):
		return KindInvalidTransition
	case IsResourceExhausted(err):
		return KindResourceExhausted
	case IsConcurrentModification(err):
		return KindConcurrentModification
	case IsStoreUnavailable(err):
		return KindStoreUnavailable
	default:
		return KindInternal
	}
}
