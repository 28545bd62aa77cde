// Package logger provides a process-wide structured logger.
package logger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

var singleton atomic.Pointer[slog.Logger]

// Initialize sets up the package-level logger from the environment.
//
// UNSTRUCTURED_LOGS controls the handler: unset or "true" selects a
// human-readable text handler; "false" selects JSON. This matches the
// default behavior consumers expect from local runs versus production
// log aggregation.
func Initialize() {
	initialize(os.Getenv("UNSTRUCTURED_LOGS"), os.Getenv("LOG_LEVEL"))
}

func initialize(unstructuredLogsEnv, levelEnv string) {
	level := parseLevel(levelEnv)
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if unstructuredLogsWithEnv(unstructuredLogsEnv) {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	singleton.Store(slog.New(handler))
}

func unstructuredLogsWithEnv(v string) bool {
	if v == "" {
		return true
	}
	return !strings.EqualFold(v, "false")
}

func parseLevel(v string) slog.Level {
	switch strings.ToLower(v) {
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

func log() *slog.Logger {
	l := singleton.Load()
	if l == nil {
		// Fall back to a sane default if Initialize was never called,
		// e.g. in a test binary that exercises a package directly.
		l = slog.New(slog.NewTextHandler(os.Stderr, nil))
		singleton.CompareAndSwap(nil, l)
		l = singleton.Load()
	}
	return l
}

// Debug logs at debug level.
func Debug(msg string) { log().Debug(msg) }

// Debugf logs a formatted message at debug level.
func Debugf(format string, args ...any) { log().Debug(sprintf(format, args...)) }

// Debugw logs a message at debug level with structured key/value pairs.
func Debugw(msg string, kv ...any) { log().Debug(msg, kv...) }

// Info logs at info level.
func Info(msg string) { log().Info(msg) }

// Infof logs a formatted message at info level.
func Infof(format string, args ...any) { log().Info(sprintf(format, args...)) }

// Infow logs a message at info level with structured key/value pairs.
func Infow(msg string, kv ...any) { log().Info(msg, kv...) }

// Warn logs at warn level.
func Warn(msg string) { log().Warn(msg) }

// Warnf logs a formatted message at warn level.
func Warnf(format string, args ...any) { log().Warn(sprintf(format, args...)) }

// Warnw logs a message at warn level with structured key/value pairs.
func Warnw(msg string, kv ...any) { log().Warn(msg, kv...) }

// Error logs at error level.
func Error(msg string) { log().Error(msg) }

// Errorf logs a formatted message at error level.
func Errorf(format string, args ...any) { log().Error(sprintf(format, args...)) }

// Errorw logs a message at error level with structured key/value pairs.
func Errorw(msg string, kv ...any) { log().Error(msg, kv...) }

// WithContext returns a logger enriched with values carried in ctx, currently
// a no-op passthrough reserved for future request-scoped fields.
func WithContext(_ context.Context) *slog.Logger { return log() }

func sprintf(format string, args ...any) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}
