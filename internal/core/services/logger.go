package services

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/vigil-run/vigil/internal/core/ports"
)

// SlogLogger implements ports.Logger on top of log/slog.
type SlogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger creates a logger writing to stdout. Level is one of
// debug|info|warn|error; format "json" selects the JSON handler.
func NewSlogLogger(level, format string) *SlogLogger {
	return NewSlogLoggerTo(os.Stdout, level, format)
}

// NewSlogLoggerTo creates a logger writing to w.
func NewSlogLoggerTo(w io.Writer, level, format string) *SlogLogger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return &SlogLogger{logger: slog.New(handler)}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *SlogLogger) Debug(msg string, args ...interface{}) { l.logger.Debug(msg, args...) }
func (l *SlogLogger) Info(msg string, args ...interface{})  { l.logger.Info(msg, args...) }
func (l *SlogLogger) Warn(msg string, args ...interface{})  { l.logger.Warn(msg, args...) }
func (l *SlogLogger) Error(msg string, args ...interface{}) { l.logger.Error(msg, args...) }

func (l *SlogLogger) With(args ...interface{}) ports.Logger {
	return &SlogLogger{logger: l.logger.With(args...)}
}

var _ ports.Logger = (*SlogLogger)(nil)

// NopLogger discards everything; used in tests.
type NopLogger struct{}

func (NopLogger) Debug(string, ...interface{})       {}
func (NopLogger) Info(string, ...interface{})        {}
func (NopLogger) Warn(string, ...interface{})        {}
func (NopLogger) Error(string, ...interface{})       {}
func (l NopLogger) With(...interface{}) ports.Logger { return l }

var _ ports.Logger = NopLogger{}

// NopInstrumentation counts nothing; used where metrics are not wired.
type NopInstrumentation struct{}

func (NopInstrumentation) AlertReceived(string)      {}
func (NopInstrumentation) AlertDeduplicated()        {}
func (NopInstrumentation) EscalationFired()          {}
func (NopInstrumentation) EscalationExhausted()      {}
func (NopInstrumentation) NotificationSent(string)   {}
func (NopInstrumentation) NotificationFailed(string) {}

var _ ports.Instrumentation = NopInstrumentation{}
