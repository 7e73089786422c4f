// Package chain implements Chain (spec.md §4.8): sequential execution of
// a list of instructions, threading each step's result into the next
// step's running params, halting on the first failure or on a caller's
// interrupt check.
package chain

import (
	"context"
	"time"

	"github.com/flowloom/actions/asyncref"
	"github.com/flowloom/actions/core"
	"github.com/flowloom/actions/exec"
)

// Options mirrors spec.md §4.8's recognized opts.
type Options struct {
	Context        core.Params
	Opts           core.RunOpts
	Async          bool
	InterruptCheck func() bool
}

// interrupted is the sentinel Directive value Run attaches to the
// Outcome returned when InterruptCheck halts the chain early, so callers
// can tell "interrupted" apart from an ordinary success by directive
// (spec.md §4.8 "interrupted(partial_params)").
type interrupted struct{}

// Interrupted is the directive value carried by an interrupted chain's
// Outcome.
var Interrupted = interrupted{}

// IsInterrupted reports whether out was produced by an interrupt check
// halting the chain, rather than a normal success or failure.
func IsInterrupted(out core.Outcome) bool {
	_, ok := out.Directive.(interrupted)
	return ok
}

// Run executes items sequentially through e, starting from params and
// threading each step's params and result into the next (spec.md §4.8:
// "each action's result map is merged into the running params").
func Run(ctx context.Context, e *exec.Exec, items []interface{}, params core.Params, opts Options) core.Outcome {
	if params == nil {
		return core.Failure(core.NewError(core.InvalidInput, "chain params must not be nil", nil))
	}

	instructions, nerr := core.Normalize(items, opts.Context, opts.Opts)
	if nerr != nil {
		return core.Failure(core.NewError(core.InvalidInput, nerr.Message, nerr.Details))
	}

	running := params.Clone()
	var carried interface{}
	hasCarried := false

	for _, inst := range instructions {
		if opts.InterruptCheck != nil && opts.InterruptCheck() {
			return core.Outcome{OK: true, Result: running, Directive: Interrupted, HasDirective: true}
		}

		step := core.NewInstruction(inst.Action(), running.Merge(inst.Params()), inst.Context(), inst.Opts())
		out := e.RunInstruction(ctx, step)

		if out.HasDirective {
			carried = out.Directive
			hasCarried = true
		}

		if !out.OK {
			if out.HasDirective {
				return core.FailureWithDirective(out.Err, out.Directive)
			}
			if hasCarried {
				return core.FailureWithDirective(out.Err, carried)
			}
			return core.Failure(out.Err)
		}

		running = step.Params().Merge(out.Result)
	}

	if hasCarried {
		return core.SuccessWithDirective(running, carried)
	}
	return core.Success(running)
}

// RunAsync launches Run in the background, returning an AsyncRef owned
// by the caller (spec.md §4.8 "async: true").
func RunAsync(ctx context.Context, e *exec.Exec, items []interface{}, params core.Params, opts Options) (*asyncref.Ref, asyncref.Owner, *core.Error) {
	if params == nil {
		return nil, nil, core.NewError(core.InvalidInput, "chain params must not be nil", nil)
	}
	ref, owner := asyncref.Start(ctx, func(runCtx context.Context) core.Outcome {
		return Run(runCtx, e, items, params, opts)
	}, asyncref.Options{
		PoolID:              core.TaskSupervisorName(opts.Opts),
		DownGracePeriod:     e.Config.ChainDownGracePeriod,
		ShutdownGracePeriod: e.Config.ChainShutdownGracePeriod,
		FlushTimeout:        e.Config.MailboxFlushTimeout,
		MaxFlushMessages:    e.Config.MailboxFlushMaxMessages,
	})
	return ref, owner, nil
}

// Await mirrors exec.Exec.Await for a chain's AsyncRef.
func Await(ctx context.Context, ref *asyncref.Ref, owner asyncref.Owner, timeout time.Duration, cfg *core.Config) core.Outcome {
	if timeout <= 0 {
		timeout = cfg.DefaultAwaitTimeout
	}
	return ref.Await(owner, ctx, timeout)
}

// Cancel mirrors exec.Exec.Cancel for a chain's AsyncRef.
func Cancel(ref *asyncref.Ref, owner asyncref.Owner) error {
	return ref.Cancel(owner)
}
