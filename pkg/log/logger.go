package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

var (
	logger *slog.Logger
	mu     sync.RWMutex
	output io.Writer = os.Stderr
)

// ParseLogLevel converts a string log level to a slog.Level.
// Valid values are "debug", "info", "warn", "error".
// Unknown values fall back to info.
func ParseLogLevel(level string) slog.Level {
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

func newHandler(w io.Writer, level slog.Level, format string) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, FormatJSON) {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// InitLog initializes or reinitializes the logger with the specified level and
// format ("text" or "json"). Logs always go to stderr: stdout carries command
// output such as inventory JSON and must stay clean.
func InitLog(logLevel, format string) {
	level := ParseLogLevel(logLevel)

	mu.Lock()
	defer mu.Unlock()

	logger = slog.New(newHandler(output, level, format))
}

// SetOutput redirects log output. Intended for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	logger = nil
}

// GetLog returns the process-wide logger, creating an info-level text logger
// on first use.
func GetLog() *slog.Logger {
	mu.RLock()
	if logger != nil {
		defer mu.RUnlock()
		return logger
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()

	if logger == nil {
		logger = slog.New(newHandler(output, slog.LevelInfo, FormatText))
	}

	return logger
}

// Debug logs a message at Debug level.
func Debug(msg string, args ...any) { GetLog().Debug(msg, args...) }

// Info logs a message at Info level.
func Info(msg string, args ...any) { GetLog().Info(msg, args...) }

// Warn logs a message at Warn level.
func Warn(msg string, args ...any) { GetLog().Warn(msg, args...) }

// Printf formats a message and logs it at Debug level.
func Printf(format string, args ...any) {
	GetLog().Debug(fmt.Sprintf(format, args...))
}
