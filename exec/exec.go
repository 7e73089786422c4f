// Package exec implements Exec, the orchestrator spec.md §4.1 describes:
// validate action → normalize params/context → inject metadata → retry
// loop → deadline + span + TaskLifecycle (param validation, Execute,
// output validation inside each attempt) → compensation.
package exec

import (
	"context"
	"time"

	"github.com/flowloom/actions/asyncref"
	"github.com/flowloom/actions/core"
	"github.com/flowloom/actions/resilience"
	"github.com/flowloom/actions/task"
	"github.com/flowloom/actions/telemetry"
)

// Exec runs a single Action through the full lifecycle: validation,
// retries, telemetry, and Saga compensation on failure.
type Exec struct {
	Config *core.Config
	Tracer *telemetry.Tracer
}

// New builds an Exec. A nil tracer falls back to telemetry.NewTracer(nil, ...).
func New(cfg *core.Config, tracer *telemetry.Tracer) *Exec {
	if cfg == nil {
		cfg = core.DefaultConfig()
	}
	if tracer == nil {
		tracer = telemetry.NewTracer(nil, "github.com/flowloom/actions")
	}
	return &Exec{Config: cfg, Tracer: tracer}
}

// Run is spec.md §4.1's Exec.run(action, params, context, opts).
func (e *Exec) Run(ctx context.Context, action core.Action, params, execContext interface{}, opts core.RunOpts) core.Outcome {
	act, verr := core.ValidateAction(action)
	if verr != nil {
		return core.Failure(verr)
	}

	p, perr := core.NormalizeParams(params)
	if perr != nil {
		return core.Failure(perr)
	}
	c, cerr := core.NormalizeParams(execContext)
	if cerr != nil {
		return core.Failure(cerr)
	}

	ctx, dlErr := core.NormalizeDeadlineKeys(ctx, c)
	if dlErr != nil {
		return core.Failure(dlErr)
	}

	return e.runValidated(ctx, act, p, c, opts)
}

// RunInstruction is spec.md §4.1's Exec.run(instruction) overload.
func (e *Exec) RunInstruction(ctx context.Context, inst core.Instruction) core.Outcome {
	ctx, dlErr := core.NormalizeDeadlineKeys(ctx, inst.Context())
	if dlErr != nil {
		return core.Failure(dlErr)
	}
	return e.runValidated(ctx, inst.Action(), inst.Params(), inst.Context(), inst.Opts())
}

func (e *Exec) runValidated(ctx context.Context, act core.Action, p, c core.Params, opts core.RunOpts) core.Outcome {
	c = c.Merge(core.Params{
		string(core.ActionMetadataKey): actionMetadata(act),
	})

	timeout := opts.ResolvedTimeout(e.Config)
	maxRetries := opts.ResolvedMaxRetries(e.Config)
	backoff := opts.ResolvedBackoff(e.Config)
	mode := opts.ResolvedTelemetry()
	poolName, perr := core.TaskSupervisor(opts)
	if perr != nil {
		return core.Failure(perr)
	}

	var last core.Outcome
	for attempt := 1; attempt <= maxRetries; attempt++ {
		last = e.doRun(ctx, act, p, timeout, attempt, mode, poolName)
		if last.OK {
			return last
		}
		if e.Config.Logger != nil && attempt < maxRetries && opts.ResolvedLogLevel(e.Config) <= core.LevelInfo {
			e.Config.Logger.Info("retrying action", map[string]interface{}{
				"action":  act.Name(),
				"attempt": attempt,
			})
		}
		if !resilience.ShouldRetry(last.Err, attempt, maxRetries) {
			break
		}
		delay := resilience.Backoff(e.Config, backoff, attempt)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return core.Failure(core.Wrap(core.ExecutionFailure, "execution cancelled during retry backoff", ctx.Err(), nil))
		case <-timer.C:
		}
	}

	if last.OK {
		return last
	}
	if ca, ok := act.(core.CompensatingAction); ok && ca.CompensationEnabled() {
		compErr := resilience.Compensate(ctx, ca, p, c, last.Err, e.Config)
		return core.Failure(compErr)
	}
	return last
}

func (e *Exec) doRun(ctx context.Context, act core.Action, p core.Params, timeout time.Duration, attempt int, mode core.TelemetryMode, poolName string) core.Outcome {
	deadline := core.FromTimeout(timeout)
	ctx = core.WithExecDeadline(ctx, deadline)

	spanCtx, span := e.Tracer.WithMode(mode).StartActionSpan(ctx, act.Name(), timeout.Milliseconds(), attempt)
	defer span.End()

	opts := task.OptionsFromConfig(e.Config, poolName)
	out, taskErr := task.Run(spanCtx, func(taskCtx context.Context) core.Outcome {
		return invokeAction(taskCtx, act, p)
	}, timeout, opts)
	if taskErr != nil {
		out = core.Failure(taskErr)
	}
	span.RecordOutcome(out)
	return out
}

// invokeAction runs an action's full validation-hook pipeline (spec.md §9
// design note: optional hooks resolved via interface satisfaction).
func invokeAction(ctx context.Context, act core.Action, params core.Params) core.Outcome {
	p := params
	if hook, ok := act.(core.ParamsBeforeValidateHook); ok {
		var err *core.Error
		p, err = hook.OnBeforeValidateParams(p)
		if err != nil {
			return core.Failure(err)
		}
	}

	validated, verr := act.InputSchema().Validate(p)
	if verr != nil {
		return core.Failure(verr)
	}

	if hook, ok := act.(core.ParamsAfterValidateHook); ok {
		var err *core.Error
		validated, err = hook.OnAfterValidateParams(validated)
		if err != nil {
			return core.Failure(err)
		}
	}

	out := act.Execute(ctx, validated)

	if out.OK {
		result := out.Result
		if hook, ok := act.(core.OutputBeforeValidateHook); ok {
			var err *core.Error
			result, err = hook.OnBeforeValidateOutput(result)
			if err != nil {
				return core.Failure(err)
			}
		}
		validatedOut, err := act.OutputSchema().Validate(result)
		if err != nil {
			return core.Failure(err)
		}
		if hook, ok := act.(core.OutputAfterValidateHook); ok {
			validatedOut, err = hook.OnAfterValidateOutput(validatedOut)
			if err != nil {
				return core.Failure(err)
			}
		}
		out.Result = validatedOut
	}

	if hook, ok := act.(core.AfterRunHook); ok {
		out = hook.OnAfterRun(out)
	}
	return out
}

func actionMetadata(act core.Action) core.Params {
	return core.Params{
		"name":     act.Name(),
		"category": act.Category(),
		"version":  act.Version(),
		"tags":     act.Tags(),
	}
}

// RunAsync is spec.md §4.1's Exec.run_async, returning an AsyncRef owned
// by the caller.
func (e *Exec) RunAsync(ctx context.Context, action core.Action, params, execContext interface{}, opts core.RunOpts) (*asyncref.Ref, asyncref.Owner, *core.Error) {
	act, verr := core.ValidateAction(action)
	if verr != nil {
		return nil, nil, verr
	}
	p, perr := core.NormalizeParams(params)
	if perr != nil {
		return nil, nil, perr
	}
	c, cerr := core.NormalizeParams(execContext)
	if cerr != nil {
		return nil, nil, cerr
	}

	ref, owner := asyncref.Start(ctx, func(runCtx context.Context) core.Outcome {
		return e.runValidated(runCtx, act, p, c, opts)
	}, asyncref.Options{
		PoolID:              core.TaskSupervisorName(opts),
		DownGracePeriod:     e.Config.AsyncDownGracePeriod,
		ShutdownGracePeriod: e.Config.AsyncShutdownGracePeriod,
		FlushTimeout:        e.Config.MailboxFlushTimeout,
		MaxFlushMessages:    e.Config.MailboxFlushMaxMessages,
	})
	return ref, owner, nil
}

// Await is spec.md §4.1's Exec.await(async_ref [, timeout]). A zero
// timeout means Config.DefaultAwaitTimeout.
func (e *Exec) Await(ctx context.Context, ref *asyncref.Ref, owner asyncref.Owner, timeout time.Duration) core.Outcome {
	if timeout <= 0 {
		timeout = e.Config.DefaultAwaitTimeout
	}
	return ref.Await(owner, ctx, timeout)
}

// Cancel is spec.md §4.1's Exec.cancel(async_ref).
func (e *Exec) Cancel(ref *asyncref.Ref, owner asyncref.Owner) error {
	return ref.Cancel(owner)
}
