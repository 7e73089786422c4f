package exec_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowloom/actions/core"
	"github.com/flowloom/actions/examples/actions"
	"github.com/flowloom/actions/exec"
)

func newExec() *exec.Exec {
	return exec.New(core.DefaultConfig(), nil)
}

// scenario 1: Exec.run(AddAction, {value: 5, amount: 3}, {}) => ok({value: 8})
func TestRun_Add(t *testing.T) {
	e := newExec()
	out := e.Run(context.Background(), actions.Add{}, core.Params{"value": 5, "amount": 3}, nil, core.RunOpts{})
	require.True(t, out.OK)
	assert.Equal(t, 8, out.Result["value"])
}

func TestRun_MissingRequiredFieldIsValidationError(t *testing.T) {
	e := newExec()
	out := e.Run(context.Background(), actions.Multiply{}, core.Params{"value": 5}, nil, core.RunOpts{})
	require.False(t, out.OK)
	assert.Equal(t, core.ValidationError, out.Err.Kind)
}

// scenario 3: compensation succeeds, overall outcome is still a
// CompensationError annotated with compensated: true.
func TestRun_CompensationSucceeds(t *testing.T) {
	e := newExec()
	out := e.Run(context.Background(), actions.Compensate{}, core.Params{
		"should_fail": true,
		"test_value":  "keep",
	}, nil, core.OptTimeout(100*time.Millisecond))

	require.False(t, out.OK)
	require.Equal(t, core.CompensationError, out.Err.Kind)
	assert.Contains(t, out.Err.Message, "Compensation completed for: Intentional failure")

	compensated, _ := out.Err.Detail("compensated")
	assert.Equal(t, true, compensated)
	testValue, _ := out.Err.Detail("test_value")
	assert.Equal(t, "keep", testValue)
	original, _ := out.Err.Detail("original_error")
	originalErr, ok := original.(*core.Error)
	require.True(t, ok)
	assert.Equal(t, "Intentional failure", originalErr.Message)
}

// scenario 4: the original action times out at the exec-level deadline,
// and the compensation handler itself then times out too.
func TestRun_CompensationTimesOut(t *testing.T) {
	e := newExec()
	out := e.Run(context.Background(), actions.Compensate{}, core.Params{
		"should_fail": true,
		"delay":       100,
	}, nil, core.OptTimeout(50*time.Millisecond))

	require.False(t, out.OK)
	require.Equal(t, core.CompensationError, out.Err.Kind)
	assert.Contains(t, out.Err.Message, "Compensation timed out after 50ms")

	compensated, _ := out.Err.Detail("compensated")
	assert.Equal(t, false, compensated)
}

func TestRun_RetriesExecutionFailureUpToMax(t *testing.T) {
	e := newExec()
	calls := 0
	action := flakyAction{fn: func() core.Outcome {
		calls++
		if calls < 2 {
			return core.Failure(core.NewError(core.ExecutionFailure, "transient", nil))
		}
		return core.Success(core.Params{"ok": true})
	}}

	out := e.Run(context.Background(), action, core.Params{}, nil, core.MergeOpts(core.OptMaxRetries(3), core.OptBackoff(1*time.Millisecond)))
	require.True(t, out.OK)
	assert.Equal(t, 2, calls)
}

func TestRun_TimesOutWhenActionHangs(t *testing.T) {
	e := newExec()
	start := time.Now()
	out := e.Run(context.Background(), actions.Slow{Delay: 500 * time.Millisecond}, core.Params{}, nil, core.MergeOpts(core.OptTimeout(20*time.Millisecond), core.OptMaxRetries(1)))
	elapsed := time.Since(start)

	require.False(t, out.OK)
	assert.Equal(t, core.TimeoutError, out.Err.Kind)
	assert.Less(t, elapsed, 500*time.Millisecond)
}

func TestRunAsync_AwaitReturnsResult(t *testing.T) {
	e := newExec()
	ref, owner, err := e.RunAsync(context.Background(), actions.Add{}, core.Params{"value": 10, "amount": 5}, nil, core.RunOpts{})
	require.Nil(t, err)

	out := e.Await(context.Background(), ref, owner, time.Second)
	require.True(t, out.OK)
	assert.Equal(t, 15, out.Result["value"])
}

type flakyAction struct {
	fn func() core.Outcome
}

func (flakyAction) Name() string             { return "flaky" }
func (flakyAction) Description() string      { return "" }
func (flakyAction) Category() string         { return "testing" }
func (flakyAction) Tags() []string           { return nil }
func (flakyAction) Version() string          { return "1.0.0" }
func (flakyAction) InputSchema() core.Schema  { return nil }
func (flakyAction) OutputSchema() core.Schema { return nil }
func (f flakyAction) Execute(ctx context.Context, params core.Params) core.Outcome {
	return f.fn()
}
