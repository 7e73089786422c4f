package core

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed set of error variants the engine ever produces.
// Errors are values, never panics, across the public API.
type ErrorKind string

const (
	// ValidationError covers schema violations, wrong types for
	// params/context/instruction, and invalid action modules.
	ValidationError ErrorKind = "validation_error"

	// ExecutionFailure covers an action returning an error, an
	// unexpected return shape, a non-normal task exit, or a panic.
	ExecutionFailure ErrorKind = "execution_failure"

	// TimeoutError covers an action exceeding its deadline, a workflow
	// deadline being exceeded, or compensation timing out.
	TimeoutError ErrorKind = "timeout_error"

	// ConfigError covers invalid action metadata, unregistered actions
	// in an allow-list, or a missing required instance supervisor.
	ConfigError ErrorKind = "config_error"

	// CompensationError wraps an original error plus the compensation
	// (Saga rollback) outcome.
	CompensationError ErrorKind = "compensation_error"

	// InternalError covers caught panics and unclassified faults.
	InternalError ErrorKind = "internal_error"

	// InvalidInput covers a malformed AsyncRef, a non-owner await, or
	// an unknown cancel argument.
	InvalidInput ErrorKind = "invalid_input"
)

// Error is the single error-value type threaded through every component.
// It carries a closed Kind, a human message, and a details map for
// structured context (action name, retry:false, original_error, ...).
type Error struct {
	Kind    ErrorKind
	Message string
	Details map[string]interface{}
	// Err, when set, is the underlying cause and participates in
	// errors.Is/errors.As via Unwrap.
	Err error
}

// NewError builds an Error with an initialized Details map.
func NewError(kind ErrorKind, message string, details map[string]interface{}) *Error {
	if details == nil {
		details = map[string]interface{}{}
	}
	return &Error{Kind: kind, Message: message, Details: details}
}

// Wrap builds an Error that records err as its cause.
func Wrap(kind ErrorKind, message string, err error, details map[string]interface{}) *Error {
	e := NewError(kind, message, details)
	e.Err = err
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap enables errors.Is/errors.As against the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithDetail returns e with an additional detail key set, for chained
// construction at call sites.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = map[string]interface{}{}
	}
	e.Details[key] = value
	return e
}

// Detail fetches a details entry, with an "ok" flag for presence.
func (e *Error) Detail(key string) (interface{}, bool) {
	if e == nil || e.Details == nil {
		return nil, false
	}
	v, ok := e.Details[key]
	return v, ok
}

// NoRetry marks an error's details so Retry.ShouldRetry treats it as
// non-retryable regardless of attempts remaining.
func (e *Error) NoRetry() *Error {
	return e.WithDetail("retry", false)
}

// IsRetryDisabled reports whether the error carries details["retry"]==false.
func (e *Error) IsRetryDisabled() bool {
	v, ok := e.Detail("retry")
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && !b
}

// AsError extracts an *Error from a generic error via errors.As, so
// callers that only hold an `error` can still branch on Kind.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Sentinel errors for the handful of conditions a caller should compare
// by identity rather than by Kind.
var (
	// ErrOwnerMismatch is returned when a caller other than the creator
	// of an AsyncRef attempts to Await or Cancel it.
	ErrOwnerMismatch = errors.New("asyncref: caller is not the owner")

	// ErrNotAnAction is returned when ValidateAction is given a value
	// that does not satisfy the Action interface.
	ErrNotAnAction = errors.New("core: value does not implement Action")

	// ErrUnknownPool is returned when a named task pool has not been
	// registered (task.NewPool registers through RegisterPool).
	ErrUnknownPool = errors.New("core: task pool not registered")

	// ErrPlanCycle is returned by plan normalization when the step
	// graph contains a circular dependency.
	ErrPlanCycle = errors.New("plan: circular dependency")
)
