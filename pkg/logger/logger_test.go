package logger

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerInit(t *testing.T) {
	err := Init()
	if err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	logger := Get()
	if logger == nil {
		t.Fatal("logger is nil after initialization")
	}

	ctx := context.Background()
	logger.Info(ctx, "test message", String("k", "v"))
}

func TestLoggerNamed(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}

	namedLogger := Named("test")
	if namedLogger == nil {
		t.Fatal("named logger is nil")
	}
	namedLogger.Info(context.Background(), "test message")
}

func TestFieldsAndRequestID(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core)).Named("svc")

	ctx := WithRequestID(context.Background(), "req-1")
	l.Warn(ctx, "dangling reference",
		Int64("assignmentID", 7),
		Int("count", 2),
		Bool("degraded", true),
		Error(errors.New("boom")),
	)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.LoggerName != "svc" {
		t.Errorf("logger name = %q", e.LoggerName)
	}
	fields := e.ContextMap()
	if fields["requestID"] != "req-1" {
		t.Errorf("requestID = %v", fields["requestID"])
	}
	if fields["assignmentID"] != int64(7) {
		t.Errorf("assignmentID = %v", fields["assignmentID"])
	}
	if fields["degraded"] != true {
		t.Errorf("degraded = %v", fields["degraded"])
	}
	if fields["error"] != "boom" {
		t.Errorf("error = %v", fields["error"])
	}
}

func TestRequestIDMissing(t *testing.T) {
	if got := RequestID(context.Background()); got != "" {
		t.Errorf("expected empty request id, got %q", got)
	}
}

func TestSetLevelString(t *testing.T) {
	for in, want := range map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"":        zapcore.InfoLevel,
		"WARNING": zapcore.WarnLevel,
		" error ": zapcore.ErrorLevel,
	} {
		if err := SetLevelString(in); err != nil {
			t.Fatalf("SetLevelString(%q): %v", in, err)
		}
		if Level() != want {
			t.Errorf("SetLevelString(%q) = %v, want %v", in, Level(), want)
		}
	}
	if err := SetLevelString("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
	_ = SetLevelString("info")
}

func TestNop(t *testing.T) {
	Nop().Named("x").Error(context.Background(), "discarded")
}
