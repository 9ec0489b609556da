package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

type ctxKey string

const ctxKeyRequestID ctxKey = "request_id"

const serviceName = "coopleo-api"

// JSON to stdout until Init runs.
var logger = NewLogger(os.Stdout, "info")

// NewLogger builds a JSON logger tagged with the service name.
func NewLogger(w io.Writer, level string) *slog.Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})
	return slog.New(h).With("service", serviceName)
}

// Init replaces the process logger and makes it the slog default.
func Init(level string) {
	logger = NewLogger(os.Stdout, level)
	slog.SetDefault(logger)
}

// ParseLevel maps a config string to a slog level, defaulting to info.
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

func Logger() *slog.Logger { return logger }

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}

// LoggerFromContext returns the process logger carrying the request id and
// model stage found in ctx.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	l := logger
	if id := RequestIDFromContext(ctx); id != "" {
		l = l.With("request_id", id)
	}
	if stage, ok := ctx.Value(ctxKeyStage).(string); ok && stage != "" {
		l = l.With("stage", stage)
	}
	return l
}
