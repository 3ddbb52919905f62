package logsink

import (
	"context"
	"log/slog"
)

// Sink writes donations to a logger. It backs DONATION_SINK=log for local
// runs without NATS or Postgres.
type Sink struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{logger: logger}
}

func (s *Sink) Donate(ctx context.Context, sessionID, key, payload string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.logger.Info("donation", "session_id", sessionID, "key", key, "payload_bytes", len(payload), "payload", payload)
	return nil
}
