package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

func TestNewFallsBackOnBadLevel(t *testing.T) {
	l, err := New(Config{Level: "nonsense", Encoding: "console"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if !l.Core().Enabled(zap.InfoLevel) {
		t.Error("expected info level to be enabled")
	}
	if l.Core().Enabled(zap.DebugLevel) {
		t.Error("expected debug level to be disabled")
	}
}

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := ContextWithRequestID(context.Background(), "req-1")
	if got := RequestID(ctx); got != "req-1" {
		t.Errorf("RequestID() = %q, want req-1", got)
	}
	if got := RequestID(context.Background()); got != "" {
		t.Errorf("RequestID() on empty context = %q, want empty", got)
	}
}
