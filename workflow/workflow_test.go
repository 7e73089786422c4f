package workflow_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowloom/actions/core"
	"github.com/flowloom/actions/examples/actions"
	"github.com/flowloom/actions/exec"
	"github.com/flowloom/actions/workflow"
)

func newExec() *exec.Exec {
	return exec.New(core.DefaultConfig(), nil)
}

func addInstruction(amount int) core.Instruction {
	return core.NewInstruction(actions.Add{}, core.Params{"amount": amount}, core.Params{}, core.RunOpts{})
}

func TestExecute_SequentialStepsAccumulateRunningParams(t *testing.T) {
	e := newExec()
	steps := []workflow.Step{
		workflow.NewStep("first", addInstruction(2), core.Params{}),
		workflow.NewStep("second", addInstruction(3), core.Params{}),
	}
	w := workflow.New("accumulate", e, 0, steps)

	out := w.Execute(context.Background(), core.Params{"value": 1})
	require.True(t, out.OK)
	assert.Equal(t, 6, out.Result["value"]) // 1 + 2 + 3
}

func TestExecute_BranchRunsThenWhenConditionTrue(t *testing.T) {
	e := newExec()
	cond := func(running core.Params) bool {
		v, _ := running["go_then"].(bool)
		return v
	}
	branch := workflow.NewBranch("decide", cond,
		[]workflow.Step{workflow.NewStep("then_step", addInstruction(10), core.Params{})},
		[]workflow.Step{workflow.NewStep("else_step", addInstruction(100), core.Params{})},
		core.Params{},
	)
	w := workflow.New("branching", e, 0, []workflow.Step{branch})

	out := w.Execute(context.Background(), core.Params{"value": 1, "go_then": true})
	require.True(t, out.OK)
	assert.Equal(t, 11, out.Result["value"])
}

func TestExecute_BranchRunsElseWhenConditionFalse(t *testing.T) {
	e := newExec()
	cond := func(running core.Params) bool {
		v, _ := running["go_then"].(bool)
		return v
	}
	branch := workflow.NewBranch("decide", cond,
		[]workflow.Step{workflow.NewStep("then_step", addInstruction(10), core.Params{})},
		[]workflow.Step{workflow.NewStep("else_step", addInstruction(100), core.Params{})},
		core.Params{},
	)
	w := workflow.New("branching", e, 0, []workflow.Step{branch})

	out := w.Execute(context.Background(), core.Params{"value": 1, "go_then": false})
	require.True(t, out.OK)
	assert.Equal(t, 101, out.Result["value"])
}

// scenario 8: parallel step bounded by max_concurrency, every outcome
// collected rather than failing fast.
func TestExecute_ParallelStepRunsUnderBoundedConcurrency(t *testing.T) {
	e := newExec()
	instructions := []core.Instruction{
		core.NewInstruction(actions.Slow{Delay: 30 * time.Millisecond}, core.Params{}, core.Params{}, core.RunOpts{}),
		core.NewInstruction(actions.Slow{Delay: 30 * time.Millisecond}, core.Params{}, core.Params{}, core.RunOpts{}),
		core.NewInstruction(actions.Slow{Delay: 30 * time.Millisecond}, core.Params{}, core.Params{}, core.RunOpts{}),
		core.NewInstruction(actions.Slow{Delay: 30 * time.Millisecond}, core.Params{}, core.Params{}, core.RunOpts{}),
	}
	parallel := workflow.NewParallel("fan_out", instructions, core.Params{"max_concurrency": 2, "ordered": true})
	w := workflow.New("parallelized", e, 0, []workflow.Step{parallel})

	start := time.Now()
	out := w.Execute(context.Background(), core.Params{})
	elapsed := time.Since(start)

	require.True(t, out.OK)
	results, ok := out.Result["parallel_results"].([]interface{})
	require.True(t, ok)
	require.Len(t, results, 4)
	for _, r := range results {
		entry, ok := r.(core.Params)
		require.True(t, ok)
		assert.Equal(t, int64(30), entry["slept_ms"])
	}
	// bound to 2 concurrent workers over 4 thirty-millisecond tasks takes
	// roughly two waves, never all four at once.
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
}

func TestExecute_ParallelStepCollectsFailuresRatherThanFailingFast(t *testing.T) {
	e := newExec()
	instructions := []core.Instruction{
		core.NewInstruction(actions.Compensate{}, core.Params{"should_fail": true}, core.Params{}, core.RunOpts{}),
		core.NewInstruction(actions.Add{}, core.Params{"value": 1, "amount": 1}, core.Params{}, core.RunOpts{}),
	}
	parallel := workflow.NewParallel("fan_out", instructions, core.Params{"ordered": true})
	w := workflow.New("parallel_failures", e, 0, []workflow.Step{parallel})

	out := w.Execute(context.Background(), core.Params{})
	require.True(t, out.OK)
	results := out.Result["parallel_results"].([]interface{})
	require.Len(t, results, 2)

	failed := results[0].(core.Params)
	assert.Contains(t, failed, "error")

	ok := results[1].(core.Params)
	assert.Equal(t, 2, ok["value"])
}

func TestExecute_DeadlineExceededHaltsWorkflow(t *testing.T) {
	e := newExec()
	steps := []workflow.Step{
		workflow.NewStep("slow", core.NewInstruction(actions.Slow{Delay: 40 * time.Millisecond}, core.Params{}, core.Params{}, core.RunOpts{}), core.Params{}),
		workflow.NewStep("after", addInstruction(1), core.Params{}),
	}
	w := workflow.New("too_slow", e, 10*time.Millisecond, steps)

	out := w.Execute(context.Background(), core.Params{"value": 1})
	require.False(t, out.OK)
	assert.Equal(t, core.TimeoutError, out.Err.Kind)
}

func TestExecute_ConvergeStepBehavesLikeAStep(t *testing.T) {
	e := newExec()
	steps := []workflow.Step{
		workflow.NewConverge("merge", addInstruction(5), core.Params{}),
	}
	w := workflow.New("converging", e, 0, steps)

	out := w.Execute(context.Background(), core.Params{"value": 1})
	require.True(t, out.OK)
	assert.Equal(t, 6, out.Result["value"])
}
