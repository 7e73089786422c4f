package logger_test

import (
	"bytes"
	stdlog "log"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flowloom/actions/core"
	"github.com/flowloom/actions/pkg/logger"
)

func TestNewSimpleLogger_MethodsDoNotPanic(t *testing.T) {
	var log core.Logger = logger.NewSimpleLogger(logger.DebugLevel)

	log.Debug("debug message", map[string]interface{}{"test": "value"})
	log.Info("info message", map[string]interface{}{"test": "value"})
	log.Warn("warn message", map[string]interface{}{"test": "value"})
	log.Error("error message", map[string]interface{}{"test": "value"})
}

func TestWithFields_AccumulatesAcrossCalls(t *testing.T) {
	var buf bytes.Buffer
	stdlog.SetOutput(&buf)
	defer stdlog.SetOutput(os.Stderr)

	log := logger.NewSimpleLogger(logger.DebugLevel)
	scoped := log.WithFields(map[string]interface{}{"component": "test"})
	scoped = scoped.WithFields(map[string]interface{}{"version": "1.0"})

	// the scoped logger carries both fields, and the original logger's
	// fields stay untouched
	scoped.Info("scoped message", nil)
	assert.Contains(t, buf.String(), "[INFO] scoped message component=test version=1.0")
	buf.Reset()
	log.Info("unscoped message", nil)
	assert.Contains(t, buf.String(), "[INFO] unscoped message")
	assert.NotContains(t, buf.String(), "component=test")
}

func TestParseLevel_RecognizesAllNames(t *testing.T) {
	cases := map[string]logger.LogLevel{
		"debug":   logger.DebugLevel,
		"DEBUG":   logger.DebugLevel,
		"info":    logger.InfoLevel,
		"warn":    logger.WarnLevel,
		"warning": logger.WarnLevel,
		"error":   logger.ErrorLevel,
		"silent":  logger.SilentLevel,
		"huh":     logger.InfoLevel,
	}
	for name, want := range cases {
		assert.Equal(t, want, logger.ParseLevel(name), name)
	}
}

func TestNewDefaultLogger_ReturnsACoreLogger(t *testing.T) {
	var log core.Logger = logger.NewDefaultLogger()
	assert.NotNil(t, log)
}
