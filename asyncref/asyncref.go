// Package asyncref implements AsyncRef and Async per spec.md §4.5: a
// handle to a task started in the background, awaitable exactly once by
// the caller that started it.
//
// BEAM gives every process an implicit caller identity (the pid that
// spawned the async task). Go has no equivalent ambient identity, so
// ownership here is a capability: Start returns both the *Ref and an
// Owner token; only a caller holding that exact Owner value may Await or
// Cancel. Passing the wrong Owner (or none) fails closed with
// core.ErrOwnerMismatch rather than silently succeeding for anyone
// holding the *Ref pointer.
package asyncref

import (
	"context"
	"sync"
	"time"

	"github.com/flowloom/actions/core"
	"github.com/flowloom/actions/task"
)

// Owner is the unforgeable capability returned by Start. It is a pointer
// to an unexported non-zero-size type (pointers to zero-size values may
// all share one address), so distinct calls to Start always produce
// distinct, incomparable-by-guessing tokens.
type Owner *ownerToken

type ownerToken struct{ _ byte }

func newOwner() Owner { return Owner(new(ownerToken)) }

// Ref is a handle to a task running in the background. A Ref may be
// Awaited exactly once; subsequent Awaits observe the cached outcome.
type Ref struct {
	id    string
	owner Owner
	pool  string

	mu       sync.Mutex
	done     chan struct{}
	outcome  core.Outcome
	err      *core.Error
	awaited  bool
	cancelFn context.CancelFunc
}

// ID returns the ref's identifier, stable for logging/telemetry.
func (r *Ref) ID() string { return r.id }

// Options configures Start (spec.md §4.5's async opts: pool, grace
// periods inherited from Config when zero).
type Options struct {
	PoolID              string
	DownGracePeriod     time.Duration
	ShutdownGracePeriod time.Duration
	FlushTimeout        time.Duration
	MaxFlushMessages    int
}

// Start launches run in a new goroutine and returns a Ref together with
// the Owner capability required to Await or Cancel it.
func Start(ctx context.Context, run func(context.Context) core.Outcome, opts Options) (*Ref, Owner) {
	owner := newOwner()
	childCtx, cancel := context.WithCancel(ctx)
	r := &Ref{
		id:       core.NewID(),
		owner:    owner,
		pool:     opts.PoolID,
		done:     make(chan struct{}),
		cancelFn: cancel,
	}

	taskOpts := task.Options{
		PoolID:              opts.PoolID,
		ResultTag:           "async_result",
		DownGracePeriod:     opts.DownGracePeriod,
		ShutdownGracePeriod: opts.ShutdownGracePeriod,
		FlushTimeout:        opts.FlushTimeout,
		MaxFlushMessages:    opts.MaxFlushMessages,
	}

	go func() {
		out, taskErr := task.Run(childCtx, run, core.InfiniteTimeout, taskOpts)
		r.mu.Lock()
		r.outcome = out
		r.err = taskErr
		r.mu.Unlock()
		close(r.done)
	}()

	return r, owner
}

// Await blocks until the task completes, ctx is cancelled, or timeout
// elapses, whichever comes first. The owner token must match the one
// returned by Start. Calling Await a second time with the correct owner
// returns the cached outcome instantly (spec.md §4.5: "awaited exactly
// once" governs delivery, not repeat observation by the same owner).
func (r *Ref) Await(owner Owner, ctx context.Context, timeout time.Duration) core.Outcome {
	if owner != r.owner {
		return core.Failure(core.Wrap(core.InvalidInput, "await: caller is not the owner of this async ref", core.ErrOwnerMismatch, map[string]interface{}{
			"ref_id": r.id,
		}))
	}

	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case <-r.done:
		r.mu.Lock()
		defer r.mu.Unlock()
		r.awaited = true
		if r.err != nil {
			return core.Failure(r.err)
		}
		return r.outcome
	case <-ctx.Done():
		return core.Failure(core.Wrap(core.TimeoutError, "await cancelled by caller context", ctx.Err(), map[string]interface{}{
			"ref_id": r.id,
		}))
	case <-timeoutCh:
		r.cancelFn()
		return core.Failure(core.NewError(core.TimeoutError, "await timed out", map[string]interface{}{
			"ref_id":     r.id,
			"timeout_ms": timeout.Milliseconds(),
		}))
	}
}

// Cancel signals the running task to stop. The owner token must match.
// Cancel does not wait for the task to observe cancellation; a
// subsequent Await will return whatever outcome the task settles on
// (often an ExecutionFailure from the cancelled context).
func (r *Ref) Cancel(owner Owner) error {
	if owner != r.owner {
		return core.ErrOwnerMismatch
	}
	r.cancelFn()
	return nil
}

// IsDone reports whether the task has completed, without blocking or
// requiring the owner token (safe for any holder of the Ref to poll).
func (r *Ref) IsDone() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Coerce accepts either a *Ref directly, or a legacy-mapping shape
// (map[string]interface{} with a "ref" key holding a *Ref) for
// compatibility with callers that pass instructions through a generic
// params map (spec.md §4.5 last paragraph).
func Coerce(v interface{}) (*Ref, *core.Error) {
	switch t := v.(type) {
	case *Ref:
		return t, nil
	case map[string]interface{}:
		if ref, ok := t["ref"].(*Ref); ok {
			return ref, nil
		}
	case core.Params:
		if ref, ok := t["ref"].(*Ref); ok {
			return ref, nil
		}
	}
	return nil, core.NewError(core.InvalidInput, "cannot coerce value into an async ref", map[string]interface{}{
		"got": v,
	})
}
