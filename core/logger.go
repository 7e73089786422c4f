package core

import (
	"context"
	"strings"
)

// Logger is the minimal structured-logging interface the engine depends
// on. Components never import a concrete logging library directly; they
// take a Logger so the embedding application can plug in whatever it
// already uses (see pkg/logger for the carried default implementation).
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})

	// WithFields returns a logger that always includes the given fields.
	WithFields(fields map[string]interface{}) Logger
}

// NoOpLogger discards everything. It is the zero-value default so a
// caller that never wires a logger still gets a working, silent engine.
type NoOpLogger struct{}

func (NoOpLogger) Debug(string, map[string]interface{}) {}
func (NoOpLogger) Info(string, map[string]interface{})  {}
func (NoOpLogger) Warn(string, map[string]interface{})  {}
func (NoOpLogger) Error(string, map[string]interface{}) {}
func (n NoOpLogger) WithFields(map[string]interface{}) Logger { return n }

// LogLevel is a threshold for gating telemetry log events (spec: "Logging
// is threshold-gated: a message is emitted iff the configured threshold
// level <= the message level").
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelSilent
)

// ParseLogLevel converts a case-insensitive level name to a LogLevel,
// defaulting to LevelInfo for anything unrecognized.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "silent", "none":
		return LevelSilent
	default:
		return LevelInfo
	}
}

// contextKey is an unexported type for context values owned by core, so
// keys never collide with values set by other packages.
type contextKey string

const (
	// ExecDeadlineKey is the canonical context key for a single
	// action's deadline.
	ExecDeadlineKey contextKey = "exec_deadline"

	// WorkflowDeadlineKey is the canonical context key for an entire
	// workflow's deadline.
	WorkflowDeadlineKey contextKey = "workflow_deadline"

	// ActionMetadataKey is the context key under which Exec injects the
	// running action's metadata (spec.md §4.1 step 5).
	ActionMetadataKey contextKey = "action_metadata"
)

// legacyDeadlineKeys are the string-keyed spellings the engine accepts on
// entry and normalizes to their atomic (contextKey) form (spec.md §4.1
// step 2, §9 Open Questions: "reject unknown deadline-like keys rather
// than silently ignore").
var legacyDeadlineKeys = map[string]contextKey{
	"exec_deadline":     ExecDeadlineKey,
	"execDeadline":      ExecDeadlineKey,
	"workflow_deadline": WorkflowDeadlineKey,
	"workflowDeadline":  WorkflowDeadlineKey,
}

// NormalizeDeadlineKeys copies any string-keyed deadline fields found in
// raw onto ctx under their canonical contextKey form, and reports any
// key that looks deadline-like but isn't recognized.
func NormalizeDeadlineKeys(ctx context.Context, raw map[string]interface{}) (context.Context, *Error) {
	for k, v := range raw {
		canon, known := legacyDeadlineKeys[k]
		if !known {
			if strings.Contains(strings.ToLower(k), "deadline") {
				return ctx, NewError(ValidationError, "unrecognized deadline key in context", map[string]interface{}{"key": k})
			}
			continue
		}
		d, ok := v.(Deadline)
		if !ok {
			return ctx, NewError(ValidationError, "deadline value must be a core.Deadline", map[string]interface{}{"key": k})
		}
		ctx = context.WithValue(ctx, canon, d)
	}
	return ctx, nil
}
