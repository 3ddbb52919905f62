package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

const sessionTimeLayout = "2006-01-02T15:04:05-0700"

type sessionBuffer struct {
	mu    sync.Mutex
	lines []string
}

// SessionLog is an append-only slog.Handler scoped to one donation session.
// Lines have the form "<time> --- <logger> --- <LEVEL> --- <message>".
type SessionLog struct {
	buf   *sessionBuffer
	name  string
	level slog.Leveler
	attrs []slog.Attr
}

func NewSessionLog(name string, level slog.Leveler) *SessionLog {
	if level == nil {
		level = slog.LevelDebug
	}
	return &SessionLog{
		buf:   &sessionBuffer{},
		name:  name,
		level: level,
	}
}

func (h *SessionLog) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *SessionLog) Handle(_ context.Context, r slog.Record) error {
	var msg strings.Builder
	msg.WriteString(r.Message)
	for _, attr := range h.attrs {
		writeAttr(&msg, attr)
	}
	r.Attrs(func(attr slog.Attr) bool {
		writeAttr(&msg, attr)
		return true
	})

	line := fmt.Sprintf("%s --- %s --- %s --- %s",
		r.Time.Format(sessionTimeLayout), h.name, levelName(r.Level), msg.String())

	h.buf.mu.Lock()
	h.buf.lines = append(h.buf.lines, line)
	h.buf.mu.Unlock()
	return nil
}

func (h *SessionLog) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &clone
}

func (h *SessionLog) WithGroup(string) slog.Handler {
	return h
}

// Lines returns a snapshot of the buffer, or ["no logs"] when empty.
func (h *SessionLog) Lines() []string {
	h.buf.mu.Lock()
	defer h.buf.mu.Unlock()
	if len(h.buf.lines) == 0 {
		return []string{"no logs"}
	}
	return append([]string(nil), h.buf.lines...)
}

// Snapshot encodes Lines as a JSON array.
func (h *SessionLog) Snapshot() string {
	raw, err := json.Marshal(h.Lines())
	if err != nil {
		return `["no logs"]`
	}
	return string(raw)
}

func writeAttr(b *strings.Builder, attr slog.Attr) {
	if attr.Equal(slog.Attr{}) {
		return
	}
	b.WriteByte(' ')
	b.WriteString(attr.Key)
	b.WriteByte('=')
	b.WriteString(attr.Value.String())
}

func levelName(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARNING"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
