// Package workflow implements Workflow (spec.md §4.9): an Action whose
// Execute is a step interpreter (step/branch/converge/parallel), with
// deadline propagation bounding every nested instruction to no more than
// the workflow's own remaining budget.
package workflow

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/flowloom/actions/core"
	"github.com/flowloom/actions/exec"
	"github.com/flowloom/actions/task"
)

// Workflow interprets a fixed program of Steps against exec for running
// individual instructions. It satisfies core.Action, so it can be run
// through Exec/Chain/another Workflow exactly like any other action
// (spec.md §4.9: "Workflow.run (invoked through Exec because workflows
// are actions)").
type Workflow struct {
	name        string
	description string
	timeout     time.Duration // workflow_timeout; 0 means "no explicit budget of its own"
	steps       []Step
	exec        *exec.Exec
}

// New builds a Workflow. timeout <= 0 means the workflow contributes no
// deadline of its own beyond whatever it inherits (spec.md §4.9's
// deadline derivation still applies an existing/context timeout).
func New(name string, e *exec.Exec, timeout time.Duration, steps []Step) *Workflow {
	return &Workflow{name: name, description: "workflow: " + name, timeout: timeout, steps: steps, exec: e}
}

func (w *Workflow) Name() string        { return w.name }
func (w *Workflow) Description() string { return w.description }
func (w *Workflow) Category() string    { return "workflow" }
func (w *Workflow) Tags() []string      { return []string{"workflow"} }
func (w *Workflow) Version() string     { return "1.0.0" }
func (w *Workflow) InputSchema() core.Schema  { return nil }
func (w *Workflow) OutputSchema() core.Schema { return nil }

// Execute runs the interpreter loop (spec.md §4.9's step grammar and
// deadline-propagation rules).
func (w *Workflow) Execute(ctx context.Context, params core.Params) core.Outcome {
	deadline := w.deriveDeadline(ctx, params)
	ctx = core.WithWorkflowDeadline(ctx, deadline)

	results := core.Params{}
	stepOutputs := make(map[string]core.Params)

	_, failure := w.runSequence(ctx, w.steps, params.Clone(), deadline, results, stepOutputs)
	if failure != nil {
		return *failure
	}
	return core.SuccessWithDirective(results, stepOutputsDirective(stepOutputs))
}

// stepOutputsDirective carries per-step output maps for a Definition's
// output-reference resolution (workflow.resolveRef) without polluting the
// plain success result shape every other caller sees.
type stepOutputsDirective map[string]core.Params

// runSequence executes steps in order, threading running params through
// each (spec.md §4.9: "merges it into both the running params ... and the
// results"). results and stepOutputs are mutated in place so a branch's
// nested sequence and the top-level program share one accumulation target.
// Returns the final running params and, on failure, the halting Outcome.
func (w *Workflow) runSequence(ctx context.Context, steps []Step, running core.Params, deadline core.Deadline, results core.Params, stepOutputs map[string]core.Params) (core.Params, *core.Outcome) {
	for _, step := range steps {
		if deadline.Expired() {
			out := core.Failure(core.NewError(core.TimeoutError, "workflow deadline exceeded", map[string]interface{}{
				"workflow": w.name,
			}))
			return running, &out
		}

		if step.Kind == StepKindBranch {
			cond := step.Condition != nil && step.Condition(running)
			branchSteps := step.Else
			if cond {
				branchSteps = step.Then
			}
			if len(branchSteps) == 0 {
				continue
			}
			newRunning, failure := w.runSequence(ctx, branchSteps, running, deadline, results, stepOutputs)
			if failure != nil {
				return running, failure
			}
			running = newRunning
			continue
		}

		out := w.runStep(ctx, step, running, deadline)
		if !out.OK {
			return running, &out
		}
		if out.Result == nil {
			failure := core.Failure(core.NewError(core.ExecutionFailure, "workflow step returned a non-mapping result", map[string]interface{}{
				"step": step.Name,
			}))
			return running, &failure
		}

		running = running.Merge(out.Result)
		for k, v := range out.Result {
			results[k] = v
		}
		if step.Name != "" {
			stepOutputs[step.Name] = out.Result
		}
	}
	return running, nil
}

func (w *Workflow) deriveDeadline(ctx context.Context, params core.Params) core.Deadline {
	var own core.Deadline
	if w.timeout > 0 {
		own = core.NewDeadline(w.timeout)
	}
	if v, ok := params["workflow_timeout"]; ok {
		if d, ok := v.(time.Duration); ok && d > 0 {
			own = core.Min(own, core.NewDeadline(d))
		}
	}
	if v, ok := params["timeout"]; ok {
		if d, ok := v.(time.Duration); ok && d > 0 {
			own = core.Min(own, core.NewDeadline(d))
		}
	}
	if existing, ok := core.WorkflowDeadlineFrom(ctx); ok {
		own = core.Min(own, existing)
	}
	return own
}

// runStep runs a single Step/Converge/Parallel node. StepKindBranch is
// handled directly by runSequence, since taking a branch means running a
// nested sequence rather than producing one Outcome.
func (w *Workflow) runStep(ctx context.Context, step Step, running core.Params, deadline core.Deadline) core.Outcome {
	switch step.Kind {
	case StepKindStep, StepKindConverge:
		return w.runInstruction(ctx, step.Instruction, running, deadline)

	case StepKindParallel:
		return w.runParallel(ctx, step, running, deadline)

	default:
		return core.Failure(core.NewError(core.ValidationError, fmt.Sprintf("unknown step kind %q", step.Kind), nil))
	}
}

// runInstruction executes one nested instruction with its effective
// timeout capped at the workflow's remaining budget (spec.md §4.9:
// "pass min(remaining, instruction.timeout) as the instruction's
// effective timeout").
func (w *Workflow) runInstruction(ctx context.Context, inst core.Instruction, running core.Params, deadline core.Deadline) core.Outcome {
	remaining := deadline.Remaining()
	requested := inst.Opts().ResolvedTimeout(w.exec.Config)
	effective := requested
	if requested == core.InfiniteTimeout || remaining < requested {
		effective = remaining
	}

	merged := core.NewInstruction(inst.Action(), running.Merge(inst.Params()), inst.Context(), withTimeout(inst.Opts(), effective))
	return w.exec.RunInstruction(ctx, merged)
}

func withTimeout(opts core.RunOpts, d time.Duration) core.RunOpts {
	return core.MergeOpts(opts, core.OptTimeout(d))
}

// runParallel executes step.Instructions under a task pool scoped to this
// call, bounded by max_concurrency (default: the host's available
// parallelism), collecting every outcome rather than failing fast (spec.md
// §4.9: "never raise"). Every child's context derives from ctx, so
// cancelling ctx cancels all in-flight children — the Go realization of
// "kill child tasks immediately". The pool is closed (unregistered) on
// return, after every child has finished.
func (w *Workflow) runParallel(ctx context.Context, step Step, running core.Params, deadline core.Deadline) core.Outcome {
	maxConcurrency := intFromMeta(step.Metadata, "max_concurrency", runtime.GOMAXPROCS(0))
	pool := task.NewPool(fmt.Sprintf("%s.%s.parallel", w.name, step.Name), maxConcurrency)
	defer pool.Close()

	perTaskTimeout := w.resolveParallelTimeout(step.Metadata, running, deadline)
	taskDeadline := core.Min(deadline, core.NewDeadline(perTaskTimeout))
	ordered := boolFromMeta(step.Metadata, "ordered", false)

	n := len(step.Instructions)
	outputs := make([]core.Params, n)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var unordered []core.Params

	for i, inst := range step.Instructions {
		i, inst := i, inst
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, acquireErr := pool.Acquire(ctx)
			if acquireErr != nil {
				entry := core.Params{"error": acquireErr.Message}
				if ordered {
					outputs[i] = entry
				} else {
					mu.Lock()
					unordered = append(unordered, entry)
					mu.Unlock()
				}
				return
			}
			defer release()

			out := w.runInstruction(ctx, inst, running, taskDeadline)
			var entry core.Params
			if out.OK {
				entry = out.Result
			} else {
				entry = core.Params{"error": out.Err.Message, "kind": string(out.Err.Kind)}
			}
			if ordered {
				outputs[i] = entry
			} else {
				mu.Lock()
				unordered = append(unordered, entry)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	var results []interface{}
	if ordered {
		results = make([]interface{}, n)
		for i, o := range outputs {
			results[i] = o
		}
	} else {
		results = make([]interface{}, len(unordered))
		for i, o := range unordered {
			results[i] = o
		}
	}

	return core.Success(core.Params{"parallel_results": results})
}

// resolveParallelTimeout implements spec.md §4.9's per-task timeout
// precedence: metadata.parallel_timeout | metadata.timeout |
// context.parallel_timeout | Config.exec_timeout, capped at the
// workflow's remaining budget.
func (w *Workflow) resolveParallelTimeout(metadata, running core.Params, deadline core.Deadline) time.Duration {
	timeout := w.exec.Config.DefaultTimeout
	if v, ok := metadata["parallel_timeout"]; ok {
		if d, ok := v.(time.Duration); ok {
			timeout = d
		}
	} else if v, ok := metadata["timeout"]; ok {
		if d, ok := v.(time.Duration); ok {
			timeout = d
		}
	} else if v, ok := running["parallel_timeout"]; ok {
		if d, ok := v.(time.Duration); ok {
			timeout = d
		}
	}
	if remaining := deadline.Remaining(); remaining < timeout {
		timeout = remaining
	}
	return timeout
}

func intFromMeta(meta core.Params, key string, fallback int) int {
	if v, ok := meta[key]; ok {
		if n, ok := v.(int); ok && n > 0 {
			return n
		}
	}
	return fallback
}

func boolFromMeta(meta core.Params, key string, fallback bool) bool {
	if v, ok := meta[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return fallback
}
