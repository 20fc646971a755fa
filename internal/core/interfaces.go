// Package core defines the cross-cutting types and interfaces shared by the
// reserve manager's components: the logger contract every component depends
// on, and the domain entities owned by the Executor and Hedge Coordinator.
package core

// ILogger defines the interface for structured logging. Components depend on
// this interface, never on a concrete logger, so the zap-backed
// implementation in pkg/logging can be swapped in tests.
type ILogger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})
	WithField(key string, value interface{}) ILogger
	WithFields(fields map[string]interface{}) ILogger
}
