package core

import (
	"fmt"

	"github.com/google/uuid"
)

// Instruction is the canonical work order from spec.md §3: (id, action,
// params-mapping, context-mapping, opts-list). It is immutable once
// built — fields are unexported and every mutation produces a new value.
type Instruction struct {
	id      string
	action  Action
	params  Params
	context Params
	opts    RunOpts
}

func (i Instruction) ID() string        { return i.id }
func (i Instruction) Action() Action    { return i.action }
func (i Instruction) Params() Params    { return i.params }
func (i Instruction) Context() Params   { return i.context }
func (i Instruction) Opts() RunOpts     { return i.opts }

// NewInstruction builds an Instruction directly, assigning a fresh id.
func NewInstruction(action Action, params, context Params, opts RunOpts) Instruction {
	if params == nil {
		params = Params{}
	}
	if context == nil {
		context = Params{}
	}
	return Instruction{
		id:      uuid.NewString(),
		action:  action,
		params:  params,
		context: context,
		opts:    opts,
	}
}

// ActionParams is the (action, params) shorthand.
type ActionParams struct {
	Action Action
	Params Params
}

// ActionParamsContext is the (action, params, context) shorthand.
type ActionParamsContext struct {
	Action  Action
	Params  Params
	Context Params
}

// ActionParamsContextOpts is the (action, params, context, opts) shorthand.
type ActionParamsContextOpts struct {
	Action  Action
	Params  Params
	Context Params
	Opts    RunOpts
}

// NormalizeSingle maps the five shapes spec.md §4.7 describes (action
// alone; (action, params); (action, params, context); (action, params,
// context, opts); a pre-built Instruction) onto a canonical Instruction.
// sharedContext is merged in with sharedContext taking precedence over
// the item's own context (spec.md §4.7 / SPEC_FULL.md §4.7: "shared
// context overrides item context"). sharedOpts are merged the same way
// opts normally merge: item opts win (opts.go's MergeOpts, override wins).
func NormalizeSingle(input interface{}, sharedContext Params, sharedOpts RunOpts) (Instruction, *Error) {
	switch v := input.(type) {
	case Instruction:
		merged := v
		merged.context = v.context.Merge(sharedContext)
		merged.opts = MergeOpts(sharedOpts, v.opts)
		return merged, nil

	case Action:
		return NewInstruction(v, Params{}, sharedContext.Clone(), sharedOpts), nil

	case ActionParams:
		act, err := ValidateAction(v.Action)
		if err != nil {
			return Instruction{}, err
		}
		return NewInstruction(act, v.Params, sharedContext.Clone(), sharedOpts), nil

	case ActionParamsContext:
		act, err := ValidateAction(v.Action)
		if err != nil {
			return Instruction{}, err
		}
		return NewInstruction(act, v.Params, v.Context.Merge(sharedContext), sharedOpts), nil

	case ActionParamsContextOpts:
		act, err := ValidateAction(v.Action)
		if err != nil {
			return Instruction{}, err
		}
		merged := MergeOpts(sharedOpts, v.Opts)
		return NewInstruction(act, v.Params, v.Context.Merge(sharedContext), merged), nil

	default:
		return Instruction{}, NewError(ValidationError, "cannot normalize into an instruction", map[string]interface{}{
			"got": typeName(input),
		})
	}
}

// Normalize returns a list of Instructions, accepting either a single
// shorthand value or a []interface{} of them. A nested []interface{}
// inside the list is rejected (spec.md §4.7 "rejecting nested lists").
func Normalize(input interface{}, sharedContext Params, sharedOpts RunOpts) ([]Instruction, *Error) {
	items, isList := input.([]interface{})
	if !isList {
		inst, err := NormalizeSingle(input, sharedContext, sharedOpts)
		if err != nil {
			return nil, err
		}
		return []Instruction{inst}, nil
	}
	out := make([]Instruction, 0, len(items))
	for idx, item := range items {
		if _, nested := item.([]interface{}); nested {
			return nil, NewError(ValidationError, "nested lists are not allowed in instruction normalization", map[string]interface{}{
				"index": idx,
			})
		}
		inst, err := NormalizeSingle(item, sharedContext, sharedOpts)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, nil
}

// ValidateAllowedActions returns ok iff every instruction's action name
// is in allowed; otherwise a ConfigError listing the unregistered
// actions (spec.md §4.7).
func ValidateAllowedActions(instructions []Instruction, allowed []string) *Error {
	allowedSet := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		allowedSet[a] = true
	}
	var unregistered []string
	for _, inst := range instructions {
		name := inst.Action().Name()
		if !allowedSet[name] {
			unregistered = append(unregistered, name)
		}
	}
	if len(unregistered) > 0 {
		return NewError(ConfigError, fmt.Sprintf("unregistered actions: %v", unregistered), map[string]interface{}{
			"unregistered": unregistered,
		})
	}
	return nil
}
