package httpadapter

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/d3i-infra/port-google-home/internal/config"
	"github.com/d3i-infra/port-google-home/internal/core/domain"
)

type uploaderFake struct {
	key string
	err error
}

func (f uploaderFake) Upload(_ context.Context, filename string, body io.Reader) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	if len(raw) == 0 {
		return "", domain.WrapError(domain.ErrInvalidInput, "upload", errors.New("empty archive"))
	}
	if f.key != "" {
		return f.key, nil
	}
	return "key_" + filename, nil
}

func (f uploaderFake) Discard(_ context.Context, key string) error {
	if f.err != nil {
		return f.err
	}
	if key == "" || strings.HasPrefix(key, ".") {
		return domain.WrapError(domain.ErrInvalidInput, "discard", errors.New("bad key"))
	}
	return nil
}

type sessionsFake struct {
	startErr   error
	respondErr error
	states     map[string]string
	responses  []domain.Response
}

func newSessionsFake() *sessionsFake {
	return &sessionsFake{states: map[string]string{}}
}

func (f *sessionsFake) Start(_ context.Context, sessionID string) (string, domain.Command, error) {
	if f.startErr != nil {
		return "", nil, f.startErr
	}
	if sessionID == "" {
		sessionID = "generated"
	}
	f.states[sessionID] = "await_file"
	return sessionID, domain.RenderCommand{Page: domain.EndPage{}}, nil
}

func (f *sessionsFake) Respond(_ context.Context, sessionID string, resp domain.Response) (domain.Command, error) {
	if f.respondErr != nil {
		return nil, f.respondErr
	}
	if _, ok := f.states[sessionID]; !ok {
		return nil, domain.WrapError(domain.ErrSessionNotFound, "lookup session", errors.New(sessionID))
	}
	f.responses = append(f.responses, resp)
	delete(f.states, sessionID)
	return domain.ExitCommand{Code: 0, Info: "Success"}, nil
}

func (f *sessionsFake) State(_ context.Context, sessionID string) (string, error) {
	state, ok := f.states[sessionID]
	if !ok {
		return "", domain.WrapError(domain.ErrSessionNotFound, "lookup session", errors.New(sessionID))
	}
	return state, nil
}

func newTestHandler(cfg config.Config) http.Handler {
	return NewRouter(cfg, uploaderFake{}, newSessionsFake()).Handler()
}

func jsonRequest(method, target string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Content-Type", "application/json")
	return req
}
