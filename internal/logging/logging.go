// Package logging provides structured, component-scoped logging for codegate.
// All log lines go through zerolog; components get a shared global logger with
// a "component" field so per-request traffic can be correlated in one stream.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Logger is a component-scoped wrapper around zerolog with a printf-style API.
type Logger struct {
	zl        zerolog.Logger
	component string
}

var (
	globalZL = zerolog.New(os.Stderr).With().Timestamp().Logger()
	globalMu sync.RWMutex
)

// Init configures the global logger. Level is one of debug, info, warn,
// error; format is "json" or "text". Invalid levels fall back to info.
func Init(level, format string) error {
	parsed, err := parseLevel(level)
	if err != nil {
		return err
	}

	var out io.Writer = os.Stderr
	if strings.EqualFold(format, "text") {
		out = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
			NoColor:    true,
		}
	}

	globalMu.Lock()
	globalZL = zerolog.New(out).Level(parsed).With().Timestamp().Logger()
	globalMu.Unlock()
	return nil
}

// NewComponentLogger creates a logger scoped to a named component.
func NewComponentLogger(component string) *Logger {
	globalMu.RLock()
	zl := globalZL
	globalMu.RUnlock()

	return &Logger{
		zl:        zl.With().Str("component", component).Logger(),
		component: component,
	}
}

// WithRequestID returns a logger carrying a request_id field.
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{
		zl:        l.zl.With().Str("request_id", requestID).Logger(),
		component: l.component,
	}
}

// Debug logs a formatted debug message.
func (l *Logger) Debug(format string, args ...any) {
	l.zl.Debug().Msgf(format, args...)
}

// Info logs a formatted info message.
func (l *Logger) Info(format string, args ...any) {
	l.zl.Info().Msgf(format, args...)
}

// Warn logs a formatted warning message.
func (l *Logger) Warn(format string, args ...any) {
	l.zl.Warn().Msgf(format, args...)
}

// Error logs a formatted error message.
func (l *Logger) Error(format string, args ...any) {
	l.zl.Error().Msgf(format, args...)
}

// Err returns an error-level event with the error field populated, for
// callers that want to attach structured fields.
func (l *Logger) Err(err error) *zerolog.Event {
	return l.zl.Error().Err(err)
}

func parseLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return zerolog.InfoLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "warn":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.InfoLevel, fmt.Errorf("invalid log level: %s", level)
	}
}
