package logger

import (
	"os"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestInitUsesLogLevelFromEnv(t *testing.T) {
	_ = os.Setenv("LOG_LEVEL", "debug")
	defer os.Unsetenv("LOG_LEVEL")

	l, err := Init()
	if err != nil {
		t.Fatalf("Init() returned error: %v", err)
	}
	if l == nil {
		t.Fatalf("Init() returned nil logger")
	}
	if !l.Core().Enabled(zapcore.DebugLevel) {
		t.Fatalf("expected debug level to be enabled")
	}
}

func TestParseLevelFallsBackToInfo(t *testing.T) {
	if got := parseLevel("nonsense"); got != zapcore.InfoLevel {
		t.Fatalf("parseLevel(nonsense) = %v, want info", got)
	}
	if got := parseLevel(""); got != zapcore.InfoLevel {
		t.Fatalf("parseLevel(empty) = %v, want info", got)
	}
	if got := parseLevel("WARN"); got != zapcore.WarnLevel {
		t.Fatalf("parseLevel(WARN) = %v, want warn", got)
	}
}
