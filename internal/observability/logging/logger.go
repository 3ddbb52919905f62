package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

func NewJSONLogger(service, level string) *slog.Logger {
	return NewJSONLoggerTo(os.Stdout, service, level)
}

func NewJSONLoggerTo(w io.Writer, service, level string) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})
	return slog.New(handler).With("service", service)
}

// NewSessionLogger returns a fresh telemetry buffer for one donation session
// and a logger that writes to both the buffer and base. Only base records
// carry the session id; the buffer keeps the bare participant-facing lines.
func NewSessionLogger(base *slog.Logger, sessionID string) (*SessionLog, *slog.Logger) {
	telemetry := NewSessionLog("script", slog.LevelDebug)
	if base == nil {
		return telemetry, slog.New(telemetry)
	}
	process := base.Handler().WithAttrs([]slog.Attr{slog.String("session_id", sessionID)})
	return telemetry, slog.New(Tee(telemetry, process))
}

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
