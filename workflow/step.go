package workflow

import "github.com/flowloom/actions/core"

// StepKind is the tagged-union discriminant for the step grammar spec.md
// §4.9 describes: step, branch, converge, parallel.
type StepKind string

const (
	StepKindStep      StepKind = "step"
	StepKindBranch    StepKind = "branch"
	StepKindConverge  StepKind = "converge"
	StepKindParallel  StepKind = "parallel"
)

// Step is one node of a workflow program. Name is optional and only
// matters for a Definition-compiled workflow's output references
// (${steps.<name>.output...}); a Step built directly through the
// constructors below may leave it blank.
type Step struct {
	Name     string
	Kind     StepKind
	Metadata core.Params

	// Instruction is populated for StepKindStep and StepKindConverge.
	Instruction core.Instruction

	// Condition, Then, and Else are populated for StepKindBranch.
	// Condition sees the workflow's running params and reports which
	// branch to take (spec.md §4.9: "condition is a boolean or a value
	// an overriding implementation resolves"). Then/Else are themselves
	// step sequences, run the same way the top-level program is.
	Condition func(running core.Params) bool
	Then      []Step
	Else      []Step

	// Instructions is populated for StepKindParallel.
	Instructions []core.Instruction
}

// NewStep builds a (step, metadata, [instruction]) node.
func NewStep(name string, inst core.Instruction, metadata core.Params) Step {
	return Step{Name: name, Kind: StepKindStep, Instruction: inst, Metadata: metadata}
}

// NewConverge builds a (converge, metadata, [instruction]) node: the same
// shape as NewStep, reserved as a distinct marker (spec.md §4.9).
func NewConverge(name string, inst core.Instruction, metadata core.Params) Step {
	return Step{Name: name, Kind: StepKindConverge, Instruction: inst, Metadata: metadata}
}

// NewBranch builds a (branch, metadata, [condition, true-branch,
// false-branch]) node. Either branch sequence may be empty, in which case
// taking it produces an empty success result.
func NewBranch(name string, cond func(core.Params) bool, thenSteps, elseSteps []Step, metadata core.Params) Step {
	return Step{Name: name, Kind: StepKindBranch, Condition: cond, Then: thenSteps, Else: elseSteps, Metadata: metadata}
}

// NewParallel builds a (parallel, metadata, [instructions]) node.
// Recognized metadata keys: max_concurrency (int), ordered (bool),
// parallel_timeout/timeout (time.Duration) — see Workflow.Execute.
func NewParallel(name string, instructions []core.Instruction, metadata core.Params) Step {
	return Step{Name: name, Kind: StepKindParallel, Instructions: instructions, Metadata: metadata}
}
