package core

import (
	"context"
	"time"
)

// Action is a compile-time-declared unit of work (spec.md §3). Identity
// and schemas are fixed at construction; Execute is the only method every
// action must implement. Optional behavior (validation hooks,
// compensation) is expressed as additional interfaces an action may also
// satisfy — the idiomatic Go stand-in for spec.md's "optional hooks"
// (design note in spec.md §9: "model an action as a tagged record whose
// methods are resolved via an interface with optional hooks").
type Action interface {
	Name() string
	Description() string
	Category() string
	Tags() []string
	Version() string

	InputSchema() Schema
	OutputSchema() Schema

	Execute(ctx context.Context, params Params) Outcome
}

// Outcome is the three-way return shape spec.md §3 describes:
// success(result) | success(result, directive) | failure(error).
type Outcome struct {
	OK           bool
	Result       Params
	Directive    interface{}
	HasDirective bool
	Err          *Error
}

// Success builds a bare success outcome.
func Success(result Params) Outcome {
	return Outcome{OK: true, Result: result}
}

// SuccessWithDirective builds a success outcome carrying an opaque
// directive the engine will forward untouched (spec.md GLOSSARY
// "Directive").
func SuccessWithDirective(result Params, directive interface{}) Outcome {
	return Outcome{OK: true, Result: result, Directive: directive, HasDirective: true}
}

// Failure builds a bare failure outcome.
func Failure(err *Error) Outcome {
	return Outcome{OK: false, Err: err}
}

// FailureWithDirective builds a failure outcome carrying a directive.
func FailureWithDirective(err *Error, directive interface{}) Outcome {
	return Outcome{OK: false, Err: err, Directive: directive, HasDirective: true}
}

// ParamsBeforeValidateHook is on_before_validate_params.
type ParamsBeforeValidateHook interface {
	OnBeforeValidateParams(params Params) (Params, *Error)
}

// ParamsAfterValidateHook is on_after_validate_params.
type ParamsAfterValidateHook interface {
	OnAfterValidateParams(params Params) (Params, *Error)
}

// OutputBeforeValidateHook is on_before_validate_output.
type OutputBeforeValidateHook interface {
	OnBeforeValidateOutput(result Params) (Params, *Error)
}

// OutputAfterValidateHook is on_after_validate_output.
type OutputAfterValidateHook interface {
	OnAfterValidateOutput(result Params) (Params, *Error)
}

// AfterRunHook is on_after_run: it sees and may rewrite the final Outcome.
type AfterRunHook interface {
	OnAfterRun(outcome Outcome) Outcome
}

// CompensatingAction is implemented by actions that declare compensation
// settings and an on_error handler (spec.md §3 "compensation settings",
// §4.4).
type CompensatingAction interface {
	Action
	CompensationEnabled() bool
	CompensationTimeout() time.Duration
	CompensationMaxRetries() int
	OnError(ctx context.Context, params Params, original *Error, execContext Params) Outcome
}

// ValidateAction checks that a is non-nil and satisfies Action, the Go
// realization of spec.md §4.1 step 3 ("must be loaded and expose an
// execute operation of arity 2"). In a statically typed language that
// check is enforced by the compiler for anything passed as an Action;
// this function exists for the dynamic entry points (Instruction
// normalization from an untyped value, Plan/Workflow definitions loaded
// from YAML) where the action arrives as interface{}.
func ValidateAction(a interface{}) (Action, *Error) {
	if a == nil {
		return nil, Wrap(ValidationError, "invalid action: nil", ErrNotAnAction, nil)
	}
	act, ok := a.(Action)
	if !ok {
		return nil, Wrap(ValidationError, "invalid action module", ErrNotAnAction, map[string]interface{}{
			"got": typeName(a),
		})
	}
	return act, nil
}
