package resilience_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowloom/actions/core"
	"github.com/flowloom/actions/resilience"
	"github.com/flowloom/actions/task"
)

func TestShouldRetry_RespectsKindAndAttempts(t *testing.T) {
	assert.True(t, resilience.ShouldRetry(core.NewError(core.ExecutionFailure, "boom", nil), 1, 3))
	assert.False(t, resilience.ShouldRetry(core.NewError(core.ExecutionFailure, "boom", nil), 3, 3))
	assert.False(t, resilience.ShouldRetry(core.NewError(core.ValidationError, "bad", nil), 1, 3))
	assert.False(t, resilience.ShouldRetry(core.NewError(core.ExecutionFailure, "boom", nil).NoRetry(), 1, 3))
}

func TestBackoff_DoublesAndCaps(t *testing.T) {
	cfg := core.DefaultConfig()
	cfg.DefaultMaxBackoff = 1 * time.Second

	d1 := resilience.Backoff(cfg, 100*time.Millisecond, 1)
	d2 := resilience.Backoff(cfg, 100*time.Millisecond, 2)
	d5 := resilience.Backoff(cfg, 100*time.Millisecond, 5)

	assert.Greater(t, d2, d1)
	assert.LessOrEqual(t, d5, cfg.DefaultMaxBackoff)
}

func TestAttempt_RetriesUntilSuccess(t *testing.T) {
	cfg := core.DefaultConfig()
	calls := 0
	out := resilience.Attempt(context.Background(), cfg, func(ctx context.Context) core.Outcome {
		calls++
		if calls < 3 {
			return core.Failure(core.NewError(core.ExecutionFailure, "transient", nil))
		}
		return core.Success(core.Params{"ok": true})
	}, 100*time.Millisecond, 1*time.Millisecond, 5, task.Options{})

	require.True(t, out.OK)
	assert.Equal(t, 3, calls)
}

func TestAttempt_StopsOnNonRetryableError(t *testing.T) {
	cfg := core.DefaultConfig()
	calls := 0
	out := resilience.Attempt(context.Background(), cfg, func(ctx context.Context) core.Outcome {
		calls++
		return core.Failure(core.NewError(core.ValidationError, "bad input", nil))
	}, 100*time.Millisecond, 1*time.Millisecond, 5, task.Options{})

	assert.False(t, out.OK)
	assert.Equal(t, 1, calls)
}
