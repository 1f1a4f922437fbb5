// Package logger holds the process-wide structured logger shared by every render package.
// By default nothing is logged; the host opts in with SetLogger.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
)

// nopHandler is a slog.Handler that silently discards all log records.
// Enabled returns false so callers skip message formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that SetLogger can be
// called while the render goroutine is logging.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger used by the renderer and all its sub-packages.
// Pass nil to restore the default silent behavior.
//
// Log levels used:
//   - [slog.LevelDebug]: buffer sizes, pipeline registration, per-frame pass plans
//   - [slog.LevelInfo]: adapter selection, setup complete, profiler reports
//   - [slog.LevelWarn]: skipped frames, shader validator limitations
//
// Parameters:
//   - l: the logger to install, or nil
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
}

// Logger returns the current logger. Safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// Options describes how New builds a handler.
type Options struct {
	// Level is one of "debug", "info", "warn" or "error". Empty means "info".
	Level string
	// Format is "text" or "json". Empty means "text".
	Format string
}

// ParseLevel converts a level name into a slog.Level.
//
// Parameters:
//   - name: the case-insensitive level name
//
// Returns:
//   - slog.Level: the parsed level
//   - error: error if the name is not recognised
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
}

// New builds a text or JSON slog.Logger writing to w.
//
// Parameters:
//   - w: the destination writer
//   - opts: level and format selection
//
// Returns:
//   - *slog.Logger: the configured logger
//   - error: error if the level or format is invalid
func New(w io.Writer, opts Options) (*slog.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(opts.Format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, handlerOpts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, handlerOpts)), nil
	}
	return nil, fmt.Errorf("unknown log format %q", opts.Format)
}
