// Package log provides structured logging for go-stdvis.
// It wraps slog with a process-wide logger configured from the environment.
package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// LevelEnv is read when the logger is used before Init.
const LevelEnv = "STDVIS_LOG_LEVEL"

var (
	logger *slog.Logger
	once   sync.Once
)

// ParseLevel maps "debug", "info", "warn" and "error" to slog levels.
// Anything else is info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewHandler returns the handler used for the global logger: JSON when
// GO_ENV=production, text otherwise.
func NewHandler(w io.Writer, level string) slog.Handler {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if os.Getenv("GO_ENV") == "production" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// Init initializes the global logger with the specified level.
// Logs go to stderr so command output on stdout stays clean.
// Only the first call has an effect.
func Init(level string) {
	once.Do(func() { setup(level) })
}

func setup(level string) {
	logger = slog.New(NewHandler(os.Stderr, level))
	slog.SetDefault(logger)
}

// L returns the global logger instance.
func L() *slog.Logger {
	once.Do(func() { setup(os.Getenv(LevelEnv)) })
	return logger
}

// Debug logs at debug level.
func Debug(msg string, args ...any) {
	L().Debug(msg, args...)
}

// Info logs at info level.
func Info(msg string, args ...any) {
	L().Info(msg, args...)
}

// Warn logs at warn level.
func Warn(msg string, args ...any) {
	L().Warn(msg, args...)
}

// Error logs at error level.
func Error(msg string, args ...any) {
	L().Error(msg, args...)
}

// With returns a logger with the given attributes.
func With(args ...any) *slog.Logger {
	return L().With(args...)
}
