package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/d3i-infra/port-google-home/internal/core/domain"
	"github.com/d3i-infra/port-google-home/internal/core/ports"
)

// TelemetryFactory builds the per-session log buffer and a logger that writes
// to it (usually teed to the process log as well).
type TelemetryFactory func(sessionID string) (TelemetryLog, *slog.Logger)

type SessionManagerDeps struct {
	Platforms []Platform
	Sink      ports.DonationSink
	Observer  ports.FlowObserver
	Archives  ports.ArchiveDiscarder
	Telemetry TelemetryFactory
	Logger    *slog.Logger
	// IdleTTL bounds how long a session may wait for the next response.
	// Zero disables eviction.
	IdleTTL time.Duration
	Now     func() time.Time
}

type session struct {
	mu       sync.Mutex
	flow     *Flow
	lastSeen time.Time
}

// SessionManager keeps one Flow per donation session for hosts that talk to
// the service over request/response instead of driving the flow in-process.
type SessionManager struct {
	deps SessionManagerDeps
	opts FlowOptions

	mu       sync.Mutex
	sessions map[string]*session
}

func NewSessionManager(deps SessionManagerDeps, opts FlowOptions) *SessionManager {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &SessionManager{
		deps:     deps,
		opts:     opts,
		sessions: make(map[string]*session),
	}
}

// Start creates a session and returns its id with the first command. An
// empty sessionID gets a generated one.
func (m *SessionManager) Start(ctx context.Context, sessionID string) (string, domain.Command, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	flow := m.newFlow(sessionID)
	s := &session{flow: flow, lastSeen: m.deps.Now()}

	m.mu.Lock()
	if _, exists := m.sessions[sessionID]; exists {
		m.mu.Unlock()
		return "", nil, domain.WrapError(domain.ErrInvalidInput, "start session", errors.New("session already exists"))
	}
	m.sessions[sessionID] = s
	s.mu.Lock()
	m.mu.Unlock()
	defer s.mu.Unlock()

	cmd, err := flow.Start(ctx)
	if err != nil {
		m.remove(sessionID, s)
		return "", nil, err
	}
	m.deps.Logger.Info("session_started", "session_id", sessionID)
	return sessionID, cmd, nil
}

// Respond resumes the session's flow. The session is dropped once the flow
// has issued its final command.
func (m *SessionManager) Respond(ctx context.Context, sessionID string, resp domain.Response) (domain.Command, error) {
	s, err := m.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = m.deps.Now()

	cmd, err := s.flow.Resume(ctx, resp)
	if err != nil {
		if errors.Is(err, domain.ErrFlowFinished) {
			m.remove(sessionID, s)
		}
		return nil, err
	}
	if s.flow.State() == StateEnd {
		m.remove(sessionID, s)
		m.deps.Logger.Info("session_finished", "session_id", sessionID)
	}
	return cmd, nil
}

func (m *SessionManager) State(_ context.Context, sessionID string) (string, error) {
	s, err := m.lookup(sessionID)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.flow.State()), nil
}

// Active reports the number of live sessions.
func (m *SessionManager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// EvictIdle abandons every session idle for longer than IdleTTL and returns
// how many were dropped. Sessions busy with a response are left alone.
func (m *SessionManager) EvictIdle(ctx context.Context) int {
	if m.deps.IdleTTL <= 0 {
		return 0
	}
	cutoff := m.deps.Now().Add(-m.deps.IdleTTL)

	m.mu.Lock()
	candidates := make(map[string]*session, len(m.sessions))
	for id, s := range m.sessions {
		candidates[id] = s
	}
	m.mu.Unlock()

	evicted := 0
	for id, s := range candidates {
		if !s.mu.TryLock() {
			continue
		}
		if s.lastSeen.Before(cutoff) && m.remove(id, s) {
			s.flow.Abandon(ctx)
			evicted++
			m.deps.Logger.Info("session_evicted", "session_id", id, "idle_since", s.lastSeen)
		}
		s.mu.Unlock()
	}
	return evicted
}

// Run evicts idle sessions every interval until ctx is done.
func (m *SessionManager) Run(ctx context.Context, interval time.Duration) {
	if m.deps.IdleTTL <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.EvictIdle(ctx); n > 0 {
				m.deps.Logger.Info("idle_sessions_evicted", "count", n, "active", m.Active())
			}
		}
	}
}

func (m *SessionManager) newFlow(sessionID string) *Flow {
	deps := FlowDeps{
		Platforms: m.deps.Platforms,
		Sink:      m.deps.Sink,
		Observer:  m.deps.Observer,
		Archives:  m.deps.Archives,
	}
	if m.deps.Telemetry != nil {
		deps.Telemetry, deps.Logger = m.deps.Telemetry(sessionID)
	} else {
		deps.Logger = m.deps.Logger.With("session_id", sessionID)
	}
	return NewFlow(sessionID, deps, m.opts)
}

func (m *SessionManager) lookup(sessionID string) (*session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, domain.WrapError(domain.ErrSessionNotFound, "lookup session", errors.New(sessionID))
	}
	return s, nil
}

// remove drops sessionID only while it still maps to s.
func (m *SessionManager) remove(sessionID string, s *session) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions[sessionID] != s {
		return false
	}
	delete(m.sessions, sessionID)
	return true
}
