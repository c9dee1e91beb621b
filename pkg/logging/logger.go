package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Logger interface for dependency injection and testing
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
	WithGroup(name string) Logger
	SetLevel(level slog.Level)
}

// Config holds logger configuration
type Config struct {
	Level   slog.Level
	Format  Format
	Output  io.Writer
	AddTime bool
}

// Format represents the output format
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

// levelDisabled sits above every slog level so nothing is emitted.
const levelDisabled = slog.Level(1000)

type slogLogger struct {
	logger *slog.Logger
	level  *slog.LevelVar
	config Config
}

// NewLogger creates a new logger with the given configuration
func NewLogger(config Config) Logger {
	if config.Output == nil {
		config.Output = os.Stderr
	}
	level := new(slog.LevelVar)
	level.Set(config.Level)

	return &slogLogger{
		logger: slog.New(newHandler(config, level)),
		level:  level,
		config: config,
	}
}

func newHandler(config Config, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if !config.AddTime {
		opts.ReplaceAttr = func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return a
		}
	}
	if config.Format == FormatJSON {
		return slog.NewJSONHandler(config.Output, opts)
	}
	return slog.NewTextHandler(config.Output, opts)
}

// NewDefaultLogger logs info and above to stderr without timestamps.
func NewDefaultLogger() Logger {
	return NewLogger(Config{Level: slog.LevelInfo, Format: FormatText})
}

// NewQuietLogger creates a logger that only shows errors
func NewQuietLogger() Logger {
	return NewLogger(Config{Level: slog.LevelError, Format: FormatText})
}

// NewVerboseLogger creates a logger that shows debug information
func NewVerboseLogger() Logger {
	return NewLogger(Config{Level: slog.LevelDebug, Format: FormatText})
}

// NewDisabledLogger creates a logger that discards all output (useful for tests)
func NewDisabledLogger() Logger {
	return NewLogger(Config{Level: levelDisabled, Format: FormatText, Output: io.Discard})
}

// ParseLevel maps a level name to a slog level. Unknown names fall back to def.
func ParseLevel(name string, def slog.Level) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "off", "none":
		return levelDisabled
	default:
		return def
	}
}

// GetDebugFilePath returns the debug file path from TRADECHAT_DEBUG_FILE or
// a file in the temp dir.
func GetDebugFilePath(defaultFileName string) string {
	if debugFile := os.Getenv("TRADECHAT_DEBUG_FILE"); debugFile != "" {
		return debugFile
	}
	return filepath.Join(os.TempDir(), defaultFileName)
}

// NewFileLoggerFromEnv writes timestamped logs to the debug file at the level
// named by TRADECHAT_DEBUG_LEVEL (errors only by default).
func NewFileLoggerFromEnv(defaultFileName string) Logger {
	level := ParseLevel(os.Getenv("TRADECHAT_DEBUG_LEVEL"), slog.LevelError)

	file, err := os.OpenFile(GetDebugFilePath(defaultFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return NewLogger(Config{Level: level, Format: FormatText, Output: io.Discard})
	}
	return NewLogger(Config{Level: level, Format: FormatText, Output: file, AddTime: true})
}

func (l *slogLogger) Debug(msg string, args ...any) {
	l.logger.Debug(msg, args...)
}

func (l *slogLogger) Info(msg string, args ...any) {
	l.logger.Info(msg, args...)
}

func (l *slogLogger) Warn(msg string, args ...any) {
	l.logger.Warn(msg, args...)
}

func (l *slogLogger) Error(msg string, args ...any) {
	l.logger.Error(msg, args...)
}

// With returns a logger with additional attributes. It shares the level with
// its parent.
func (l *slogLogger) With(args ...any) Logger {
	return &slogLogger{logger: l.logger.With(args...), level: l.level, config: l.config}
}

// WithGroup returns a logger with a group name
func (l *slogLogger) WithGroup(name string) Logger {
	return &slogLogger{logger: l.logger.WithGroup(name), level: l.level, config: l.config}
}

// SetLevel updates the logger's level dynamically
func (l *slogLogger) SetLevel(level slog.Level) {
	l.config.Level = level
	l.level.Set(level)
}

var globalLogger = NewDefaultLogger()

// SetGlobalLogger sets the global logger instance
func SetGlobalLogger(logger Logger) {
	globalLogger = logger
}

// GetGlobalLogger returns the global logger instance
func GetGlobalLogger() Logger {
	return globalLogger
}

func Debug(msg string, args ...any) {
	globalLogger.Debug(msg, args...)
}

func Info(msg string, args ...any) {
	globalLogger.Info(msg, args...)
}

func Warn(msg string, args ...any) {
	globalLogger.Warn(msg, args...)
}

func Error(msg string, args ...any) {
	globalLogger.Error(msg, args...)
}

// NewComponentLogger tags the global logger with a component name.
func NewComponentLogger(component string) Logger {
	return globalLogger.With("component", component)
}

// NewTurnLogger tags the global logger for one chat turn.
func NewTurnLogger(turnID string) Logger {
	return globalLogger.With(
		"component", "chat",
		"turn_id", turnID,
	)
}
