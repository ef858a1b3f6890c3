package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"none", LevelNone},
		{"bogus", LevelInfo},
		{"", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestLevelString(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{LevelNone, "NONE"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.level.String(); got != tt.expected {
				t.Errorf("Level(%d).String() = %q, want %q", tt.level, got, tt.expected)
			}
		})
	}
}

func TestLoggerWritesAboveLevel(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "engine.log")

	l, err := New(LevelWarn, logPath, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer l.Close()

	l.Debug("debug line")
	l.Info("info line")
	l.Warn("warn line")
	l.Error("error line")

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(data)

	if strings.Contains(out, "debug line") || strings.Contains(out, "info line") {
		t.Errorf("lines below level should be suppressed, got: %s", out)
	}
	if !strings.Contains(out, "warn line") || !strings.Contains(out, "error line") {
		t.Errorf("lines at or above level missing, got: %s", out)
	}
}

func TestWithPrefix(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "engine.log")

	l, err := New(LevelDebug, logPath, "engine")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer l.Close()

	child := l.WithPrefix("autofix")
	child.Info("attempt started")

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "[engine:autofix]") {
		t.Errorf("expected combined prefix in output, got: %s", string(data))
	}
}

func TestDisabledLogger(t *testing.T) {
	l, err := New(LevelNone, "", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// Must not panic or write anywhere.
	l.Info("ignored")
	if l.file != nil {
		t.Error("disabled logger should not open a file")
	}
}
