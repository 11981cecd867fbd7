package logger

import (
	"io"
	"log/slog"
	"os"
	"time"
)

// Config controls output format and verbosity.
type Config struct {
	// Level is the minimum level to log: debug, info, warn or error.
	Level string
	// JSON switches from human-readable text to JSON lines.
	JSON bool
	// Output defaults to os.Stderr.
	Output io.Writer
	// AddSource attaches file:line of the call site to each record.
	AddSource bool
}

// DefaultConfig is JSON at info level, suitable for deployments.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		JSON:   true,
		Output: os.Stderr,
	}
}

// Logger wraps slog for structured logging.
type Logger struct {
	*slog.Logger
}

var global *Logger

func parseLevel(s string) slog.Level {
	switch s {
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

// New builds a logger from config. The first logger created becomes the
// global one until SetGlobal overrides it.
func New(config Config) *Logger {
	out := config.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{
		Level:     parseLevel(config.Level),
		AddSource: config.AddSource,
	}

	var handler slog.Handler
	if config.JSON {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	l := &Logger{Logger: slog.New(handler)}
	if global == nil {
		global = l
	}
	return l
}

// SetGlobal replaces the process-wide logger.
func SetGlobal(l *Logger) {
	global = l
}

// Global returns the process-wide logger, creating a default one if needed.
func Global() *Logger {
	if global == nil {
		global = New(DefaultConfig())
	}
	return global
}

// LogError records err under the "error" key together with msg.
func (l *Logger) LogError(err error, msg string, args ...any) {
	l.Error(msg, append([]any{"error", err.Error()}, args...)...)
}

// WithRequestID returns a logger that tags every record with the request id.
func (l *Logger) WithRequestID(requestID string) *Logger {
	if requestID == "" {
		return l
	}
	return &Logger{Logger: l.With("request_id", requestID)}
}

// WithUser returns a logger that tags every record with the acting user.
func (l *Logger) WithUser(email string) *Logger {
	if email == "" {
		return l
	}
	return &Logger{Logger: l.With("user", email)}
}

// LogRequest records one completed HTTP request.
func (l *Logger) LogRequest(method, path string, status int, latency time.Duration) {
	l.Info("request completed",
		"method", method,
		"path", path,
		"status", status,
		"latency_ms", latency.Milliseconds(),
	)
}
