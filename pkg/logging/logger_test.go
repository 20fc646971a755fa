package logging

import (
	"context"
	"testing"
	"time"

	"github.com/tonsurance/btcfloat/pkg/telemetry"
)

func TestZapLogger_OTelBridge(t *testing.T) {
	tel, err := telemetry.Setup("test-logger")
	if err != nil {
		t.Fatalf("OTel setup failed: %v", err)
	}
	defer func() {
		_ = tel.Shutdown(context.Background())
	}()

	logger, err := NewZapLogger("DEBUG")
	if err != nil {
		t.Fatalf("Zap logger creation failed: %v", err)
	}

	logger.Info("Test OTel bridging", "key", "value")

	// Wait a bit for OTel batching (if any)
	time.Sleep(500 * time.Millisecond)

	logger.Debug("Debug message", "status", "testing")

	_ = logger.Sync() // stdout sinks may not support sync, ignore error
}

func TestZapLogger_UnknownLevelFallsBackToInfo(t *testing.T) {
	logger, err := NewZapLogger("VERBOSE")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Should not panic; debug is below the effective level and discarded.
	logger.Debug("discarded")
	logger.Info("kept")
}

func TestZapFields(t *testing.T) {
	fields := zapFields([]interface{}{"btc_sats", int64(42), "reason", "tick"})
	if len(fields) != 2 {
		t.Fatalf("got %d fields, want 2", len(fields))
	}
	if fields[0].Key != "btc_sats" || fields[1].Key != "reason" {
		t.Fatalf("unexpected keys: %v, %v", fields[0].Key, fields[1].Key)
	}

	// Trailing key with no value is dropped rather than panicking.
	odd := zapFields([]interface{}{"only_key"})
	if len(odd) != 0 {
		t.Fatalf("odd-arity input should yield no fields, got %d", len(odd))
	}

	// Non-string keys are stringified.
	weird := zapFields([]interface{}{42, "value"})
	if len(weird) != 1 || weird[0].Key != "42" {
		t.Fatalf("non-string key not stringified: %+v", weird)
	}
}

func TestNewNop(t *testing.T) {
	l := NewNop()
	l.Info("discarded", "k", "v")
	child := l.WithField("component", "test")
	child.Error("also discarded")
}
