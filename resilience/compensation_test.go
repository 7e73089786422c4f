package resilience_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowloom/actions/core"
	"github.com/flowloom/actions/resilience"
)

type fakeCompensating struct {
	enabled    bool
	timeout    time.Duration
	maxRetries int
	onError    func(ctx context.Context, params core.Params, original *core.Error, execCtx core.Params) core.Outcome
}

func (f *fakeCompensating) Name() string             { return "fake" }
func (f *fakeCompensating) Description() string      { return "" }
func (f *fakeCompensating) Category() string         { return "" }
func (f *fakeCompensating) Tags() []string           { return nil }
func (f *fakeCompensating) Version() string          { return "1.0.0" }
func (f *fakeCompensating) InputSchema() core.Schema  { return nil }
func (f *fakeCompensating) OutputSchema() core.Schema { return nil }
func (f *fakeCompensating) Execute(ctx context.Context, params core.Params) core.Outcome {
	return core.Success(nil)
}
func (f *fakeCompensating) CompensationEnabled() bool          { return f.enabled }
func (f *fakeCompensating) CompensationTimeout() time.Duration { return f.timeout }
func (f *fakeCompensating) CompensationMaxRetries() int        { return f.maxRetries }
func (f *fakeCompensating) OnError(ctx context.Context, params core.Params, original *core.Error, execContext core.Params) core.Outcome {
	return f.onError(ctx, params, original, execContext)
}

func TestCompensate_SuccessStillReportsCompensationError(t *testing.T) {
	cfg := core.DefaultConfig()
	action := &fakeCompensating{
		enabled:    true,
		timeout:    100 * time.Millisecond,
		maxRetries: 1,
		onError: func(ctx context.Context, params core.Params, original *core.Error, execContext core.Params) core.Outcome {
			return core.Success(core.Params{"test_value": "keep"})
		},
	}
	original := core.NewError(core.ExecutionFailure, "Intentional failure", nil)

	err := resilience.Compensate(context.Background(), action, core.Params{"should_fail": true}, core.Params{}, original, cfg)
	require.NotNil(t, err)
	assert.Equal(t, core.CompensationError, err.Kind)
	assert.Contains(t, err.Message, "Compensation completed for: Intentional failure")

	compensated, _ := err.Detail("compensated")
	assert.Equal(t, true, compensated)
	testValue, _ := err.Detail("test_value")
	assert.Equal(t, "keep", testValue)
	origErr, _ := err.Detail("original_error")
	assert.Equal(t, original, origErr)
}

func TestCompensate_TimeoutReportsCompensationFailed(t *testing.T) {
	cfg := core.DefaultConfig()
	action := &fakeCompensating{
		enabled:    true,
		timeout:    50 * time.Millisecond,
		maxRetries: 1,
		onError: func(ctx context.Context, params core.Params, original *core.Error, execContext core.Params) core.Outcome {
			time.Sleep(200 * time.Millisecond)
			return core.Success(nil)
		},
	}
	original := core.NewError(core.ExecutionFailure, "Intentional failure", nil)

	err := resilience.Compensate(context.Background(), action, core.Params{"should_fail": true}, core.Params{}, original, cfg)
	require.NotNil(t, err)
	assert.Equal(t, core.CompensationError, err.Kind)
	assert.Contains(t, err.Message, "Compensation timed out after 50ms")

	compensated, _ := err.Detail("compensated")
	assert.Equal(t, false, compensated)
}
