package core

import "time"

// TelemetryMode controls how much of the action-start/action-stop
// telemetry span is emitted (spec.md §4.1 recognized opts).
type TelemetryMode string

const (
	TelemetryFull    TelemetryMode = "full"
	TelemetryMinimal TelemetryMode = "minimal"
	TelemetrySilent  TelemetryMode = "silent"
)

// RunOpts carries the recognized opts from spec.md §4.1: timeout,
// max_retries, backoff, log_level, telemetry, jido (instance name),
// task_supervisor (explicit pool reference). Fields are pointers so
// "unset" is distinguishable from "explicitly set to the zero value" —
// Instruction/Chain/Workflow opts-merging (spec.md §4.7 "item opts take
// precedence") depends on that distinction.
type RunOpts struct {
	Timeout        *time.Duration
	MaxRetries     *int
	Backoff        *time.Duration
	LogLevel       *LogLevel
	Telemetry      *TelemetryMode
	Jido           *string
	TaskSupervisor *string
}

func durPtr(d time.Duration) *time.Duration { return &d }
func intPtr(n int) *int                     { return &n }

// OptTimeout/OptMaxRetries/... build a single-field RunOpts, meant to
// be combined with MergeOpts at call sites.
func OptTimeout(d time.Duration) RunOpts    { return RunOpts{Timeout: durPtr(d)} }
func OptMaxRetries(n int) RunOpts           { return RunOpts{MaxRetries: intPtr(n)} }
func OptBackoff(d time.Duration) RunOpts    { return RunOpts{Backoff: durPtr(d)} }
func OptLogLevel(l LogLevel) RunOpts        { return RunOpts{LogLevel: &l} }
func OptTelemetry(m TelemetryMode) RunOpts  { return RunOpts{Telemetry: &m} }
func OptJido(instance string) RunOpts       { return RunOpts{Jido: &instance} }
func OptTaskSupervisor(name string) RunOpts { return RunOpts{TaskSupervisor: &name} }

// MergeOpts overlays override's explicitly-set fields onto base,
// returning a new RunOpts. base fields survive wherever override leaves
// them unset.
func MergeOpts(base, override RunOpts) RunOpts {
	out := base
	if override.Timeout != nil {
		out.Timeout = override.Timeout
	}
	if override.MaxRetries != nil {
		out.MaxRetries = override.MaxRetries
	}
	if override.Backoff != nil {
		out.Backoff = override.Backoff
	}
	if override.LogLevel != nil {
		out.LogLevel = override.LogLevel
	}
	if override.Telemetry != nil {
		out.Telemetry = override.Telemetry
	}
	if override.Jido != nil {
		out.Jido = override.Jido
	}
	if override.TaskSupervisor != nil {
		out.TaskSupervisor = override.TaskSupervisor
	}
	return out
}

// ResolvedTimeout applies cfg's timeout:0 policy (spec.md §9) to this
// opt's requested timeout, falling back to cfg.DefaultTimeout when unset.
func (o RunOpts) ResolvedTimeout(cfg *Config) time.Duration {
	if o.Timeout == nil {
		return cfg.DefaultTimeout
	}
	return cfg.EffectiveTimeout(*o.Timeout, true)
}

func (o RunOpts) ResolvedMaxRetries(cfg *Config) int {
	if o.MaxRetries == nil {
		return cfg.DefaultMaxRetries
	}
	return *o.MaxRetries
}

func (o RunOpts) ResolvedBackoff(cfg *Config) time.Duration {
	if o.Backoff == nil {
		return cfg.DefaultBackoff
	}
	return *o.Backoff
}

func (o RunOpts) ResolvedLogLevel(cfg *Config) LogLevel {
	if o.LogLevel == nil {
		return cfg.LogLevel
	}
	return *o.LogLevel
}

func (o RunOpts) ResolvedTelemetry() TelemetryMode {
	if o.Telemetry == nil {
		return TelemetryFull
	}
	return *o.Telemetry
}
