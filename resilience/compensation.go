package resilience

import (
	"context"
	"fmt"

	"github.com/flowloom/actions/core"
	"github.com/flowloom/actions/task"
)

// Compensate runs a CompensatingAction's OnError handler under its own
// timeout and retry budget (spec.md §4.4: Saga-style rollback is itself
// timeout-bounded and independently retried, never inheriting the
// original action's remaining deadline). The result is always a
// CompensationError — whether the rollback itself succeeded or failed —
// carrying details.compensated (bool) so callers can tell the two apart,
// details.original_error (the failure that triggered the rollback), and
// on success, the rollback's own result keys merged in.
func Compensate(ctx context.Context, action core.CompensatingAction, params, execContext core.Params, original *core.Error, cfg *core.Config) *core.Error {
	timeout := action.CompensationTimeout()
	if timeout <= 0 {
		timeout = cfg.DefaultCompensationTimeout
	}
	maxRetries := action.CompensationMaxRetries()
	if maxRetries <= 0 {
		maxRetries = 1
	}

	opts := task.Options{
		PoolID:              "compensation",
		ResultTag:           "compensation_result",
		DownGracePeriod:     cfg.CompensationDownGracePeriod,
		ShutdownGracePeriod: cfg.ExecShutdownGracePeriod,
		FlushTimeout:        cfg.MailboxFlushTimeout,
		MaxFlushMessages:    cfg.MailboxFlushMaxMessages,
	}

	run := func(runCtx context.Context) core.Outcome {
		return action.OnError(runCtx, params, original, execContext)
	}

	out := Attempt(ctx, cfg, run, timeout, cfg.DefaultBackoff, maxRetries, opts)

	details := map[string]interface{}{
		"action":         action.Name(),
		"original_error": original,
	}

	if out.OK {
		details["compensated"] = true
		for k, v := range out.Result {
			details[k] = v
		}
		return core.NewError(core.CompensationError, fmt.Sprintf("Compensation completed for: %s", original.Message), details)
	}

	details["compensated"] = false
	message := "Compensation failed"
	if out.Err != nil {
		details["compensation_error"] = out.Err.Message
		if out.Err.Kind == core.TimeoutError {
			message = fmt.Sprintf("Compensation timed out after %dms", timeout.Milliseconds())
		} else {
			message = fmt.Sprintf("Compensation failed: %s", out.Err.Message)
		}
	}
	return core.NewError(core.CompensationError, message, details)
}
