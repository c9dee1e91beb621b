package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		want   string
	}{
		{
			name:   "text format with info level",
			config: Config{Level: slog.LevelInfo, Format: FormatText},
			want:   "level=INFO",
		},
		{
			name:   "JSON format with debug level",
			config: Config{Level: slog.LevelDebug, Format: FormatJSON},
			want:   `"level":"INFO"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.config.Output = &buf

			NewLogger(tt.config).Info("turn finished")

			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("NewLogger() output = %v, want to contain %v", buf.String(), tt.want)
			}
			if strings.Contains(buf.String(), "time=") {
				t.Errorf("timestamps should be omitted unless AddTime is set, got %v", buf.String())
			}
		})
	}
}

func TestLoggerLevels(t *testing.T) {
	tests := []struct {
		name       string
		level      slog.Level
		debugShown bool
		infoShown  bool
		warnShown  bool
	}{
		{name: "info", level: slog.LevelInfo, infoShown: true, warnShown: true},
		{name: "debug", level: slog.LevelDebug, debugShown: true, infoShown: true, warnShown: true},
		{name: "error", level: slog.LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(Config{Level: tt.level, Output: &buf})

			logger.Debug("debug message")
			logger.Info("info message")
			logger.Warn("warn message")
			logger.Error("error message")

			output := buf.String()
			if got := strings.Contains(output, "debug message"); got != tt.debugShown {
				t.Errorf("debug visibility = %v, want %v", got, tt.debugShown)
			}
			if got := strings.Contains(output, "info message"); got != tt.infoShown {
				t.Errorf("info visibility = %v, want %v", got, tt.infoShown)
			}
			if got := strings.Contains(output, "warn message"); got != tt.warnShown {
				t.Errorf("warn visibility = %v, want %v", got, tt.warnShown)
			}
			if !strings.Contains(output, "error message") {
				t.Errorf("error messages are always shown, got %v", output)
			}
		})
	}
}

func TestSetLevelPropagatesToChildren(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Level: slog.LevelInfo, Output: &buf})
	child := logger.With("turn_id", "t-1")

	child.Debug("hidden")
	logger.SetLevel(slog.LevelDebug)
	child.Debug("shown")

	output := buf.String()
	if strings.Contains(output, "hidden") {
		t.Errorf("debug line logged before level change: %s", output)
	}
	if !strings.Contains(output, "shown") || !strings.Contains(output, "turn_id=t-1") {
		t.Errorf("child should follow parent level and keep attrs, got: %s", output)
	}
}

func TestLoggerWithGroup(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Level: slog.LevelInfo, Output: &buf})

	logger.WithGroup("stream").Info("frame", "bytes", 42)

	if !strings.Contains(buf.String(), "stream.bytes=42") {
		t.Errorf("WithGroup() output should contain grouped attributes, got: %s", buf.String())
	}
}

func TestDisabledLogger(t *testing.T) {
	logger := NewDisabledLogger()
	logger.Error("nobody hears this")
	logger.With("a", 1).Warn("or this")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" INFO ":  slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"off":     levelDisabled,
		"bogus":   slog.LevelWarn,
	}
	for name, want := range tests {
		if got := ParseLevel(name, slog.LevelWarn); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestFileLoggerFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tradechat-debug.log")
	t.Setenv("TRADECHAT_DEBUG_FILE", path)
	t.Setenv("TRADECHAT_DEBUG_LEVEL", "debug")

	if got := GetDebugFilePath("ignored.log"); got != path {
		t.Fatalf("GetDebugFilePath() = %s, want %s", got, path)
	}

	NewFileLoggerFromEnv("ignored.log").Debug("frame decoded", "index", 3)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading debug file: %v", err)
	}
	if !strings.Contains(string(data), "frame decoded") || !strings.Contains(string(data), "time=") {
		t.Errorf("debug file should hold timestamped entries, got: %s", data)
	}
}

func TestComponentAndTurnLoggers(t *testing.T) {
	tests := []struct {
		name     string
		create   func() Logger
		expected []string
	}{
		{
			name:     "NewComponentLogger",
			create:   func() Logger { return NewComponentLogger("cli") },
			expected: []string{"component=cli"},
		},
		{
			name:     "NewTurnLogger",
			create:   func() Logger { return NewTurnLogger("abc") },
			expected: []string{"component=chat", "turn_id=abc"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			originalLogger := globalLogger
			SetGlobalLogger(NewLogger(Config{Level: slog.LevelInfo, Output: &buf}))
			defer SetGlobalLogger(originalLogger)

			tt.create().Info("test message")

			for _, want := range tt.expected {
				if !strings.Contains(buf.String(), want) {
					t.Errorf("%s output should contain %s, got: %s", tt.name, want, buf.String())
				}
			}
		})
	}
}

func TestGlobalLogger(t *testing.T) {
	originalLogger := globalLogger
	defer SetGlobalLogger(originalLogger)

	var buf bytes.Buffer
	testLogger := NewLogger(Config{Level: slog.LevelInfo, Output: &buf})
	SetGlobalLogger(testLogger)

	if GetGlobalLogger() != testLogger {
		t.Error("GetGlobalLogger() should return the set logger")
	}

	Info("global info")
	Warn("global warn")
	if !strings.Contains(buf.String(), "global info") || !strings.Contains(buf.String(), "global warn") {
		t.Errorf("global helpers should log through the set logger, got: %s", buf.String())
	}
}
