package logger

import (
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/flowloom/actions/core"
)

// SimpleLogger is a dependency-free core.Logger implementation: one line
// per message to the standard logger, with accumulated and per-call
// fields rendered as sorted key=value pairs.
type SimpleLogger struct {
	level  LogLevel
	fields map[string]interface{}
}

// NewSimpleLogger builds a SimpleLogger at the given threshold.
func NewSimpleLogger(level LogLevel) *SimpleLogger {
	return &SimpleLogger{level: level, fields: make(map[string]interface{})}
}

// NewDefaultLogger builds a SimpleLogger at the level named by the
// LOG_LEVEL environment variable (default info), ready to plug into
// core.Config.Logger.
func NewDefaultLogger() core.Logger {
	return NewSimpleLogger(ParseLevel(envLogLevel()))
}

func envLogLevel() string {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		return v
	}
	return "info"
}

func (l *SimpleLogger) Debug(msg string, fields map[string]interface{}) {
	if l.level <= DebugLevel {
		l.log("DEBUG", msg, fields)
	}
}

func (l *SimpleLogger) Info(msg string, fields map[string]interface{}) {
	if l.level <= InfoLevel {
		l.log("INFO", msg, fields)
	}
}

func (l *SimpleLogger) Warn(msg string, fields map[string]interface{}) {
	if l.level <= WarnLevel {
		l.log("WARN", msg, fields)
	}
}

func (l *SimpleLogger) Error(msg string, fields map[string]interface{}) {
	if l.level <= ErrorLevel {
		l.log("ERROR", msg, fields)
	}
}

// WithFields returns a logger that always includes the given fields in
// addition to whatever a call site passes.
func (l *SimpleLogger) WithFields(fields map[string]interface{}) core.Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &SimpleLogger{level: l.level, fields: merged}
}

func (l *SimpleLogger) log(level, msg string, fields map[string]interface{}) {
	parts := []string{fmt.Sprintf("[%s]", level), msg}

	all := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		all[k] = v
	}
	for k, v := range fields {
		all[k] = v
	}
	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, all[k]))
	}

	log.Println(strings.Join(parts, " "))
}
