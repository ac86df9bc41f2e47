package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		env     string
		level   string
		wantErr bool
		enabled zapcore.Level
	}{
		{env: "prod", enabled: zapcore.InfoLevel},
		{env: "staging", enabled: zapcore.InfoLevel},
		{env: "local", enabled: zapcore.DebugLevel},
		{env: "docker", enabled: zapcore.DebugLevel},
		{env: "test", enabled: zapcore.WarnLevel},
		{env: "prod", level: "error", enabled: zapcore.ErrorLevel},
		{env: "qa", wantErr: true},
		{env: "prod", level: "loud", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.env+"/"+tt.level, func(t *testing.T) {
			l, err := NewLogger(tt.env, tt.level)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !l.Core().Enabled(tt.enabled) {
				t.Errorf("level %s should be enabled", tt.enabled)
			}
			if tt.enabled > zapcore.DebugLevel && l.Core().Enabled(tt.enabled-1) {
				t.Errorf("level %s should be disabled", tt.enabled-1)
			}
		})
	}
}

func TestFromContext_Default(t *testing.T) {
	if l := FromContext(context.Background()); l == nil {
		t.Fatal("expected a no-op logger, got nil")
	}
}

func TestFromContextOr(t *testing.T) {
	fallback := zap.NewExample()
	if got := FromContextOr(context.Background(), fallback); got != fallback {
		t.Error("expected fallback logger")
	}

	stored := zap.NewNop()
	ctx := ContextWithLogger(context.Background(), stored)
	if got := FromContextOr(ctx, fallback); got != stored {
		t.Error("expected stored logger")
	}
}

func TestWith(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ctx := ContextWithLogger(context.Background(), zap.New(core))

	ctx = With(ctx, zap.String("user_id", "u-1"))
	FromContext(ctx).Info("hello")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["user_id"]; got != "u-1" {
		t.Errorf("user_id = %v, want u-1", got)
	}
}
