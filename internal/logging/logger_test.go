package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	testCases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		" WARN ":  zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}
	for input, want := range testCases {
		if got := ParseLevel(input); got != want {
			t.Fatalf("ParseLevel(%q) = %s, want %s", input, got, want)
		}
	}
}

func TestNewLoggerWritesRotatedFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "brewlog.log")
	logger, err := NewLogger("info", logPath)
	if err != nil {
		t.Fatalf("failed to build logger: %v", err)
	}
	logger.Info("sweep finished")
	logger.Debug("filtered out")
	_ = logger.Sync()

	contents, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("expected log file to exist: %v", err)
	}
	if !strings.Contains(string(contents), "sweep finished") {
		t.Fatalf("expected info entry in log file, got %q", contents)
	}
	if strings.Contains(string(contents), "filtered out") {
		t.Fatalf("debug entry should be filtered at info level")
	}
}
