// Package resilience implements Retry and Compensation (spec.md §4.3,
// §4.4): classifying a failure as retryable, computing the next backoff
// delay, and running a Saga-style compensation handler under its own
// timeout.
package resilience

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/flowloom/actions/core"
	"github.com/flowloom/actions/task"
)

// ShouldRetry reports whether attempt (1-indexed, the attempt that just
// failed) should be followed by another, given max retries and the
// error's own retry disposition (spec.md §4.3: TimeoutError and
// ExecutionFailure are retryable by default; ValidationError and
// ConfigError never are; any error can opt out via core.Error.NoRetry()).
func ShouldRetry(err *core.Error, attempt, max int) bool {
	if err == nil {
		return false
	}
	if attempt >= max {
		return false
	}
	if err.IsRetryDisabled() {
		return false
	}
	switch err.Kind {
	case core.ValidationError, core.ConfigError, core.InvalidInput:
		return false
	default:
		return true
	}
}

// Backoff computes the delay that follows the given attempt (1-indexed,
// the attempt that just failed) using an exponential backoff calculator
// with no jitter: initial * 2^(attempt-1), capped at cfg.DefaultMaxBackoff,
// so the first retry waits exactly initial. It runs through a real
// third-party backoff implementation rather than a hand-rolled formula.
func Backoff(cfg *core.Config, initial time.Duration, attempt int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = cfg.DefaultMaxBackoff

	delay := initial
	for i := 0; i < attempt; i++ {
		delay = b.NextBackOff()
	}
	if delay > cfg.DefaultMaxBackoff {
		delay = cfg.DefaultMaxBackoff
	}
	return delay
}

// Attempt runs fn, retrying per ShouldRetry/Backoff up to max times
// total, sleeping the computed backoff between attempts (honoring ctx
// cancellation during the sleep). It returns the first successful
// outcome, or the last failure outcome once retries are exhausted.
func Attempt(ctx context.Context, cfg *core.Config, fn func(context.Context) core.Outcome, timeout time.Duration, initialBackoff time.Duration, max int, opts task.Options) core.Outcome {
	var last core.Outcome
	for attempt := 1; attempt <= max; attempt++ {
		out, taskErr := task.Run(ctx, fn, timeout, opts)
		if taskErr != nil {
			out = core.Failure(taskErr)
		}
		last = out
		if out.OK {
			return out
		}
		if !ShouldRetry(out.Err, attempt, max) {
			return out
		}
		delay := Backoff(cfg, initialBackoff, attempt)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return core.Failure(core.Wrap(core.ExecutionFailure, "retry loop cancelled", ctx.Err(), nil))
		case <-timer.C:
		}
	}
	return last
}
