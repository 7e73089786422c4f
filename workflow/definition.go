package workflow

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flowloom/actions/core"
	"github.com/flowloom/actions/exec"
)

// Definition is a YAML-loadable, named, versioned workflow template
// (supplemented from the teacher's WorkflowDefinition/
// WorkflowStepDefinition, which the distilled step grammar omits): it
// compiles to a []Step program via Compile, separating "definition"
// (parsed, validated, serializable) from "execution" (the Workflow
// interpreter), exactly mirroring how the teacher's orchestration package
// keeps those concerns apart.
type Definition struct {
	Name        string               `yaml:"name"`
	Version     string               `yaml:"version"`
	Description string               `yaml:"description,omitempty"`
	Inputs      map[string]InputDef  `yaml:"inputs,omitempty"`
	Steps       []StepDefinition     `yaml:"steps"`
	Outputs     map[string]OutputDef `yaml:"outputs,omitempty"`
	Timeout     time.Duration        `yaml:"timeout,omitempty"`
}

// InputDef documents one expected workflow input.
type InputDef struct {
	Type        string      `yaml:"type"`
	Required    bool        `yaml:"required,omitempty"`
	Default     interface{} `yaml:"default,omitempty"`
	Description string      `yaml:"description,omitempty"`
}

// OutputDef references a step's output by dotted path, e.g.
// "${steps.step1.output.value}" (teacher: WorkflowEngine.processOutputs).
type OutputDef struct {
	Value       string `yaml:"value"`
	Description string `yaml:"description,omitempty"`
}

// StepDefinition is one YAML-authored program node. Type selects which of
// step/branch/parallel it compiles to ("step" is the default); branch and
// parallel recurse into nested StepDefinitions.
type StepDefinition struct {
	Name           string                 `yaml:"name"`
	Type           string                 `yaml:"type,omitempty"` // step (default) | branch | parallel
	Action         string                 `yaml:"action,omitempty"`
	Params         map[string]interface{} `yaml:"params,omitempty"`
	Timeout        time.Duration          `yaml:"timeout,omitempty"`
	Condition      string                 `yaml:"condition,omitempty"` // dotted path into running params, truthy check
	Then           []StepDefinition       `yaml:"then,omitempty"`
	Else           []StepDefinition       `yaml:"else,omitempty"`
	Parallel       []StepDefinition       `yaml:"parallel,omitempty"`
	MaxConcurrency int                    `yaml:"max_concurrency,omitempty"`
	Ordered        bool                   `yaml:"ordered,omitempty"`
}

// ParseDefinitionYAML parses and structurally validates a Definition.
func ParseDefinitionYAML(data []byte) (*Definition, *core.Error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, core.Wrap(core.ValidationError, "invalid workflow definition YAML", err, nil)
	}
	if verr := validateDefinition(&def); verr != nil {
		return nil, verr
	}
	return &def, nil
}

func validateDefinition(def *Definition) *core.Error {
	if def.Name == "" {
		return core.NewError(core.ValidationError, "workflow definition is missing a name", nil)
	}
	if len(def.Steps) == 0 {
		return core.NewError(core.ValidationError, "workflow definition must have at least one step", map[string]interface{}{
			"workflow": def.Name,
		})
	}
	seen := make(map[string]bool, len(def.Steps))
	return validateStepNames(def.Name, def.Steps, seen)
}

func validateStepNames(workflowName string, steps []StepDefinition, seen map[string]bool) *core.Error {
	for _, s := range steps {
		if s.Name == "" {
			return core.NewError(core.ValidationError, "workflow step is missing a name", map[string]interface{}{
				"workflow": workflowName,
			})
		}
		if seen[s.Name] {
			return core.NewError(core.ValidationError, fmt.Sprintf("duplicate step name %q", s.Name), map[string]interface{}{
				"workflow": workflowName,
			})
		}
		seen[s.Name] = true
		if verr := validateStepNames(workflowName, s.Then, seen); verr != nil {
			return verr
		}
		if verr := validateStepNames(workflowName, s.Else, seen); verr != nil {
			return verr
		}
		if verr := validateStepNames(workflowName, s.Parallel, seen); verr != nil {
			return verr
		}
	}
	return nil
}

// Compile resolves a Definition's declarative steps against an action
// registry (action name -> core.Action) and an Exec, producing a runnable
// Workflow.
func Compile(def *Definition, registry map[string]core.Action, e *exec.Exec) (*Workflow, *core.Error) {
	if verr := validateDefinition(def); verr != nil {
		return nil, verr
	}
	steps, verr := compileSteps(def.Steps, registry)
	if verr != nil {
		return nil, verr
	}
	w := New(def.Name, e, def.Timeout, steps)
	return w, nil
}

func compileSteps(defs []StepDefinition, registry map[string]core.Action) ([]Step, *core.Error) {
	out := make([]Step, 0, len(defs))
	for _, d := range defs {
		step, err := compileStep(d, registry)
		if err != nil {
			return nil, err
		}
		out = append(out, step)
	}
	return out, nil
}

func compileStep(d StepDefinition, registry map[string]core.Action) (Step, *core.Error) {
	switch d.Type {
	case "", "step":
		act, err := resolveAction(d.Action, registry)
		if err != nil {
			return Step{}, err.WithDetail("step", d.Name)
		}
		opts := core.RunOpts{}
		if d.Timeout > 0 {
			opts = core.OptTimeout(d.Timeout)
		}
		inst := core.NewInstruction(act, core.Params(d.Params), core.Params{}, opts)
		return NewStep(d.Name, inst, core.Params{}), nil

	case "branch":
		thenSteps, err := compileSteps(d.Then, registry)
		if err != nil {
			return Step{}, err
		}
		elseSteps, err := compileSteps(d.Else, registry)
		if err != nil {
			return Step{}, err
		}
		path := d.Condition
		cond := func(running core.Params) bool {
			v, ok := lookupDotted(running, path)
			if !ok {
				return false
			}
			return truthy(v)
		}
		return NewBranch(d.Name, cond, thenSteps, elseSteps, core.Params{}), nil

	case "parallel":
		instructions := make([]core.Instruction, 0, len(d.Parallel))
		for _, nested := range d.Parallel {
			act, err := resolveAction(nested.Action, registry)
			if err != nil {
				return Step{}, err.WithDetail("step", nested.Name)
			}
			opts := core.RunOpts{}
			if nested.Timeout > 0 {
				opts = core.OptTimeout(nested.Timeout)
			}
			instructions = append(instructions, core.NewInstruction(act, core.Params(nested.Params), core.Params{}, opts))
		}
		meta := core.Params{"ordered": d.Ordered}
		if d.MaxConcurrency > 0 {
			meta["max_concurrency"] = d.MaxConcurrency
		}
		if d.Timeout > 0 {
			meta["parallel_timeout"] = d.Timeout
		}
		return NewParallel(d.Name, instructions, meta), nil

	default:
		return Step{}, core.NewError(core.ValidationError, fmt.Sprintf("unknown step type %q", d.Type), map[string]interface{}{
			"step": d.Name,
		})
	}
}

func resolveAction(name string, registry map[string]core.Action) (core.Action, *core.Error) {
	act, ok := registry[name]
	if !ok {
		return nil, core.NewError(core.ValidationError, fmt.Sprintf("unknown action %q", name), map[string]interface{}{
			"action": name,
		})
	}
	return act, nil
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case nil:
		return false
	default:
		return true
	}
}

// resolveRef strips an OutputDef's "${...}" wrapper, returning the inner
// dotted path (teacher: WorkflowEngine.resolveValue's "${steps.step1.
// output.field}" recognition).
func resolveRef(expr string) (string, bool) {
	if len(expr) > 3 && strings.HasPrefix(expr, "${") && strings.HasSuffix(expr, "}") {
		return expr[2 : len(expr)-1], true
	}
	return "", false
}

// lookupPath resolves a dotted path of the form "steps.<name>.output[.field]"
// against per-step output maps (teacher: WorkflowEngine.resolveValue's
// execution.Context lookup, generalized to a dotted accessor instead of a
// single flat-key map).
func lookupPath(stepOutputs map[string]core.Params, path string) (interface{}, bool) {
	parts := strings.Split(path, ".")
	if len(parts) < 3 || parts[0] != "steps" || parts[2] != "output" {
		return nil, false
	}
	out, ok := stepOutputs[parts[1]]
	if !ok {
		return nil, false
	}
	if len(parts) == 3 {
		return map[string]interface{}(out), true
	}
	var cur interface{} = map[string]interface{}(out)
	for _, key := range parts[3:] {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// lookupDotted resolves a plain dotted path against a single Params map,
// used for branch-condition resolution (spec.md §4.9: "condition is a
// boolean or a value an overriding implementation resolves").
func lookupDotted(params core.Params, path string) (interface{}, bool) {
	parts := strings.Split(path, ".")
	if len(parts) == 0 || parts[0] == "" {
		return nil, false
	}
	var cur interface{} = map[string]interface{}(params)
	for _, key := range parts {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// ResolveOutputs extracts a Definition's declared Outputs from a completed
// Workflow run's Outcome (as produced by Compile'd Workflow.Execute),
// resolving each "${steps.<name>.output...}" reference against the
// per-step output maps the workflow carried on its success directive.
func ResolveOutputs(def *Definition, out core.Outcome) (core.Params, *core.Error) {
	if !out.OK {
		return nil, out.Err
	}
	if len(def.Outputs) == 0 {
		return core.Params{}, nil
	}
	stepOutputs, _ := out.Directive.(stepOutputsDirective)
	resolved := core.Params{}
	for key, spec := range def.Outputs {
		path, ok := resolveRef(spec.Value)
		if !ok {
			resolved[key] = spec.Value
			continue
		}
		v, found := lookupPath(stepOutputs, path)
		if !found {
			return nil, core.NewError(core.ValidationError, fmt.Sprintf("output %q references unresolved path %q", key, spec.Value), nil)
		}
		resolved[key] = v
	}
	return resolved, nil
}
