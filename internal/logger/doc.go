// Package logger provides the process-wide leveled logger.
//
// The logger wraps logrus with a text formatter and a fixed API: every call
// takes an optional worker (or component) ID that is attached as a field.
//
// # Basic Usage
//
// Using the default logger:
//
//	logger.Info("", "Run started")
//	logger.Info("worker-3", "Warm-up finished")
//	logger.Error("worker-3", "Put failed: %v", err)
//
// Creating a custom logger:
//
//	l := logger.New(os.Stderr, logger.LevelDebug)
//	l.Debug("worker-1", "Debug message")
//
// # Log Levels
//
// Messages below the configured level are filtered:
//   - LevelDebug: all messages
//   - LevelInfo: Info, Warn, Error
//   - LevelWarn: Warn, Error
//   - LevelError: Error only
//
// # Thread Safety
//
// logrus serializes writes, so all logging operations are safe for concurrent use.
package logger
