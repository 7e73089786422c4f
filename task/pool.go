package task

import (
	"context"
	"sync"
	"time"

	"github.com/flowloom/actions/core"
)

// Pool is a bounded-concurrency task-pool identity: a registered name
// (so core.TaskSupervisor resolution can see it as "live") plus a
// semaphore limiting how many Run calls submitted through it execute
// concurrently. This is the Go stand-in for spec.md §4.6's named
// supervisor/task-pool, and backs bounded-parallelism workflow branches
// (spec.md §4.9 "parallel: N branches, bounded by max_concurrency").
type Pool struct {
	name string
	sem  chan struct{} // nil means unbounded

	mu      sync.Mutex
	running sync.WaitGroup
	closed  bool
}

// NewPool registers and returns a named Pool. maxConcurrency <= 0 means
// unbounded.
func NewPool(name string, maxConcurrency int) *Pool {
	p := &Pool{name: name}
	if maxConcurrency > 0 {
		p.sem = make(chan struct{}, maxConcurrency)
	}
	core.RegisterPool(name)
	return p
}

func (p *Pool) Name() string { return p.name }

// Acquire blocks until a concurrency slot is free (or ctx is cancelled
// first), returning a release func the caller must call exactly once.
// This is the building block Submit uses; callers that need to run
// something other than a single task.Run under the pool's bound (e.g. a
// workflow parallel step delegating straight to exec.RunInstruction) can
// use it directly instead of double-wrapping through Submit.
func (p *Pool) Acquire(ctx context.Context) (func(), *core.Error) {
	if p.sem != nil {
		select {
		case p.sem <- struct{}{}:
		case <-ctx.Done():
			return nil, core.NewError(core.ExecutionFailure, "pool submission cancelled before a slot was free", map[string]interface{}{
				"pool": p.name,
			})
		}
	}
	p.running.Add(1)
	released := false
	return func() {
		if released {
			return
		}
		released = true
		p.running.Done()
		if p.sem != nil {
			<-p.sem
		}
	}, nil
}

// Submit runs fn under the pool's concurrency limit, blocking until a
// slot is free or ctx is cancelled first.
func (p *Pool) Submit(ctx context.Context, fn func(context.Context) core.Outcome, timeout time.Duration, opts Options) (core.Outcome, *core.Error) {
	release, err := p.Acquire(ctx)
	if err != nil {
		return core.Outcome{}, err
	}
	defer release()
	return Run(ctx, fn, timeout, opts)
}

// Close unregisters the pool and waits for in-flight submissions to
// finish (spec.md §4.6 pool teardown).
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	core.UnregisterPool(p.name)
	p.running.Wait()
}
