// Package logger provides a default core.Logger implementation.
//
// Components throughout this module depend on core.Logger, never on a
// concrete logging library, so the embedding application can plug in
// whatever it already uses. This package carries the one implementation
// that works with nothing else wired: SimpleLogger.
//
// # Logger Interface
//
// core.Logger defines the contract every implementation satisfies:
//
//	type Logger interface {
//	    Debug(msg string, fields map[string]interface{})
//	    Info(msg string, fields map[string]interface{})
//	    Warn(msg string, fields map[string]interface{})
//	    Error(msg string, fields map[string]interface{})
//	    WithFields(fields map[string]interface{}) Logger
//	}
//
// # Log Levels
//
// Supported log levels in order of severity:
//   - DEBUG: Detailed information for debugging
//   - INFO: General informational messages
//   - WARN: Warning messages for potentially harmful situations
//   - ERROR: Error messages for serious problems
//
// # Structured Logging
//
// All log methods accept structured fields for rich context:
//
//	logger.Info("Processing request", map[string]interface{}{
//	    "user_id": "123",
//	    "action": "create_order",
//	    "duration_ms": 145,
//	})
//
// # Contextual Logging
//
// Create child loggers with persistent fields:
//
//	requestLogger := base.WithFields(map[string]interface{}{
//	    "request_id": "abc-123",
//	})
//
//	// All logs from requestLogger will include request_id
//	requestLogger.Info("starting processing", nil)
//	requestLogger.Info("processing complete", map[string]interface{}{
//	    "items_processed": 10,
//	})
//
// # Configuration
//
// NewDefaultLogger reads its initial threshold from the LOG_LEVEL
// environment variable (debug, info, warn, error, silent), defaulting
// to info.
//
// # Best Practices
//
//   - Use appropriate log levels to control verbosity
//   - Include relevant context through structured fields
//   - Avoid logging sensitive information (passwords, tokens, PII)
//   - Use child loggers for request-scoped logging
package logger