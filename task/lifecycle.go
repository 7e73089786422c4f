// Package task implements TaskLifecycle: timeout-bounded execution of a
// single unit of work under a named pool, with the "exactly one outcome,
// no stale messages" guarantees spec.md §4.2 and §5 describe.
//
// Go has no BEAM-style processes, monitors, or mailboxes. Every
// "process"/mailbox the spec describes is realized here as:
//   - a goroutine ("task"),
//   - a buffered (capacity 1) result channel standing in for the
//     mailbox slot that receives the tagged result message, so a
//     goroutine that finishes after its owner stopped listening never
//     blocks on the send,
//   - a context.CancelFunc standing in for the BEAM "shutdown" signal —
//     the owner cancels a derived context to ask the child to stop
//     cooperatively; "kill" is the owner simply abandoning further waits,
//     since Go cannot forcibly terminate a goroutine,
//   - recover() turning a panic into a synthetic ExecutionFailure sent on
//     the same result channel, standing in for a BEAM "DOWN, non-normal
//     reason" message.
//
// See SPEC_FULL.md §4 for the full mapping.
package task

import (
	"context"
	"fmt"
	"time"

	"github.com/flowloom/actions/core"
)

// Options configures a single TaskLifecycle run (spec.md §4.2).
type Options struct {
	// PoolID names the task pool this run is attributed to (purely
	// descriptive: Run does not look the pool up; Pool.Submit is what
	// applies a pool's concurrency bound).
	PoolID string

	// ResultTag is a descriptive label for the logical result channel;
	// Go has no message tags, so this only shows up in logs/errors.
	ResultTag string

	DownGracePeriod     time.Duration
	ShutdownGracePeriod time.Duration
	FlushTimeout        time.Duration
	MaxFlushMessages    int

	// ErrorFactory builds the *core.Error for a given failure kind; if
	// nil, core.NewError is used directly.
	ErrorFactory func(kind core.ErrorKind, msg string, details map[string]interface{}) *core.Error
}

func (o Options) errorFactory() func(core.ErrorKind, string, map[string]interface{}) *core.Error {
	if o.ErrorFactory != nil {
		return o.ErrorFactory
	}
	return core.NewError
}

// OptionsFromConfig builds Options using a Config's *Exec* grace periods
// (callers needing Chain/Async/Compensation grace periods should
// override DownGracePeriod/ShutdownGracePeriod accordingly).
func OptionsFromConfig(cfg *core.Config, poolID string) Options {
	return Options{
		PoolID:              poolID,
		ResultTag:           "result",
		DownGracePeriod:     cfg.ExecDownGracePeriod,
		ShutdownGracePeriod: cfg.ExecShutdownGracePeriod,
		FlushTimeout:        cfg.MailboxFlushTimeout,
		MaxFlushMessages:    cfg.MailboxFlushMaxMessages,
	}
}

type message struct {
	outcome  core.Outcome
	abnormal bool
	reason   string
}

// Run executes fn under a timeout. fn receives a context derived from
// ctx that is cancelled the moment the timeout fires (or Run's caller's
// ctx is cancelled), so a cooperative fn can stop promptly; fn is not
// required to honor it, but its late result is then just drained and
// discarded, never delivered.
//
// Exactly one outcome is returned: success(result) | failure(TimeoutError
// | ExecutionFailure).
func Run(ctx context.Context, fn func(context.Context) core.Outcome, timeout time.Duration, opts Options) (core.Outcome, *core.Error) {
	newErr := opts.errorFactory()
	resultCh := make(chan message, 1)
	childCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultCh <- message{abnormal: true, reason: fmt.Sprintf("%v", r)}
			}
		}()
		resultCh <- message{outcome: fn(childCtx)}
	}()

	var timeoutCh <-chan time.Time
	switch {
	case timeout == core.InfiniteTimeout:
		// leave timeoutCh nil: a nil channel is never ready, so this
		// select case simply never fires.
	case timeout <= 0:
		already := make(chan time.Time, 1)
		already <- time.Now()
		timeoutCh = already
	default:
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case msg := <-resultCh:
		if msg.abnormal {
			return core.Outcome{}, newErr(core.ExecutionFailure, "task exited: "+msg.reason, map[string]interface{}{
				"reason": msg.reason,
			})
		}
		return msg.outcome, nil

	case <-ctx.Done():
		return core.Outcome{}, newErr(core.ExecutionFailure, "task exited: owner context cancelled", map[string]interface{}{
			"reason": ctx.Err().Error(),
		})

	case <-timeoutCh:
		cancel() // cooperative shutdown signal
		shutdownDeadline := time.After(opts.ShutdownGracePeriod)
		select {
		case <-shutdownDeadline:
			// escalate to "kill": stop waiting. The goroutine, if it
			// ignores cancellation, keeps running; its eventual send
			// lands in the buffered channel and is drained below.
		case <-resultCh:
			// child acknowledged shutdown before the grace period
			// elapsed; still a timeout per spec.md §4.2.
		}
		drain(resultCh, opts)
		return core.Outcome{}, newErr(core.TimeoutError, fmt.Sprintf("task timed out after %s", timeout), map[string]interface{}{
			"timeout_ms": timeout.Milliseconds(),
		})
	}
}

// drain reads and discards up to MaxFlushMessages stale messages (0
// means unbounded, capped here at a sane ceiling since the channel only
// ever holds one pending send anyway) within FlushTimeout per receive, so
// no stale result is ever later delivered to a second caller.
func drain(ch <-chan message, opts Options) {
	limit := opts.MaxFlushMessages
	if limit <= 0 {
		limit = 4
	}
	flushTimeout := opts.FlushTimeout
	if flushTimeout <= 0 {
		flushTimeout = 10 * time.Millisecond
	}
	for i := 0; i < limit; i++ {
		select {
		case <-ch:
			continue
		case <-time.After(flushTimeout):
			return
		}
	}
}
