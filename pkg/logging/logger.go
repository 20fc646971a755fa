// Package logging provides the zap-backed implementation of core.ILogger.
// Every component of the reserve manager logs through this: one console
// line per event with an RFC3339 timestamp, teed into the OpenTelemetry log bridge so
// execution records reach whatever log pipeline the deployment exports to.
package logging

import (
	"fmt"
	"os"
	"strings"

	"github.com/tonsurance/btcfloat/internal/core"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log/global"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger implements core.ILogger.
type ZapLogger struct {
	logger *zap.Logger
}

// NewZapLogger builds the module's standard logger at the given level
// (DEBUG, INFO, WARN, ERROR, FATAL; anything else falls back to INFO).
func NewZapLogger(levelStr string) (*ZapLogger, error) {
	level := zapcore.InfoLevel
	if parsed, err := zapcore.ParseLevel(strings.ToLower(levelStr)); err == nil {
		level = parsed
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderConfig.TimeKey = "ts"

	console := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.Lock(os.Stdout),
		level,
	)

	// Tee into the OTel bridge; the bridge scope names the module so log
	// records are attributable when several services share a collector.
	bridge := otelzap.NewCore("github.com/tonsurance/btcfloat",
		otelzap.WithLoggerProvider(global.GetLoggerProvider()))

	logger := zap.New(zapcore.NewTee(console, bridge), zap.AddCaller(), zap.AddCallerSkip(1))

	return &ZapLogger{logger: logger}, nil
}

// zapFields converts the alternating key/value form used throughout the
// module ("btc_sats", 123, "reason", ...) into zap fields. A trailing key
// with no value is dropped; a non-string key is stringified rather than
// panicking mid-execution.
func zapFields(fields []interface{}) []zap.Field {
	out := make([]zap.Field, 0, len(fields)/2)
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", fields[i])
		}
		out = append(out, zap.Any(key, fields[i+1]))
	}
	return out
}

func (l *ZapLogger) Debug(msg string, fields ...interface{}) {
	l.logger.Debug(msg, zapFields(fields)...)
}

func (l *ZapLogger) Info(msg string, fields ...interface{}) {
	l.logger.Info(msg, zapFields(fields)...)
}

func (l *ZapLogger) Warn(msg string, fields ...interface{}) {
	l.logger.Warn(msg, zapFields(fields)...)
}

func (l *ZapLogger) Error(msg string, fields ...interface{}) {
	l.logger.Error(msg, zapFields(fields)...)
}

func (l *ZapLogger) Fatal(msg string, fields ...interface{}) {
	l.logger.Fatal(msg, zapFields(fields)...)
}

// WithField returns a child logger carrying the field on every record. The
// module's convention is one "component" field per subsystem, added at
// construction time.
func (l *ZapLogger) WithField(key string, value interface{}) core.ILogger {
	return &ZapLogger{logger: l.logger.With(zap.Any(key, value))}
}

// WithFields returns a child logger carrying all given fields.
func (l *ZapLogger) WithFields(fields map[string]interface{}) core.ILogger {
	zfs := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		zfs = append(zfs, zap.Any(k, v))
	}
	return &ZapLogger{logger: l.logger.With(zfs...)}
}

// Sync flushes buffered records; callers ignore the error on stdout sinks.
func (l *ZapLogger) Sync() error {
	return l.logger.Sync()
}

// nopLogger discards everything. Tests use it where log output is noise.
type nopLogger struct{}

// NewNop returns an ILogger that discards all records.
func NewNop() core.ILogger { return nopLogger{} }

func (nopLogger) Debug(string, ...interface{})                 {}
func (nopLogger) Info(string, ...interface{})                  {}
func (nopLogger) Warn(string, ...interface{})                  {}
func (nopLogger) Error(string, ...interface{})                 {}
func (nopLogger) Fatal(string, ...interface{})                 {}
func (n nopLogger) WithField(string, interface{}) core.ILogger { return n }
func (n nopLogger) WithFields(map[string]interface{}) core.ILogger {
	return n
}
