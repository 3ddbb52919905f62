package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	apigen "github.com/d3i-infra/port-google-home/internal/adapters/http/openapi"
	"github.com/d3i-infra/port-google-home/internal/config"
	"github.com/d3i-infra/port-google-home/internal/core/domain"
	"github.com/d3i-infra/port-google-home/internal/core/ports"
	"github.com/d3i-infra/port-google-home/internal/observability/metrics"
)

const serviceName = "api"

type Router struct {
	cfg      config.Config
	uploader ports.ArchiveUploader
	sessions ports.DonationSessions
	metrics  *metrics.HTTPServerMetrics
	logger   *slog.Logger
}

func NewRouter(cfg config.Config, uploader ports.ArchiveUploader, sessions ports.DonationSessions) *Router {
	return &Router{
		cfg:      cfg,
		uploader: uploader,
		sessions: sessions,
		logger:   slog.Default(),
	}
}

func (rt *Router) WithMetrics(m *metrics.HTTPServerMetrics) *Router {
	rt.metrics = m
	return rt
}

func (rt *Router) WithLogger(logger *slog.Logger) *Router {
	if logger != nil {
		rt.logger = logger
	}
	return rt
}

var _ apigen.ServerInterface = (*Router)(nil)

// Handler panics if the embedded OpenAPI document does not load.
func (rt *Router) Handler() http.Handler {
	doc, err := apigen.GetSwagger()
	if err != nil {
		panic(fmt.Sprintf("httpadapter: %v", err))
	}
	validate, err := apigen.RequestValidator(doc, rt.invalidRequest)
	if err != nil {
		panic(fmt.Sprintf("httpadapter: %v", err))
	}

	api := apigen.HandlerWithOptions(rt, apigen.StdHTTPServerOptions{
		ErrorHandlerFunc: func(w http.ResponseWriter, r *http.Request, err error) {
			rt.invalidRequest(w, r, http.StatusBadRequest, err)
		},
	})

	guarded := validate(api)
	guarded = backpressureMiddleware(guarded, rt.cfg.APIMaxInFlight, time.Duration(rt.cfg.APIBackpressureWaitMS)*time.Millisecond, rt.rejected("backpressure"))
	guarded = rateLimitMiddleware(guarded, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst, rt.rejected("rate_limit"))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /openapi.yaml", rt.openAPIDocument)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}
	mux.Handle("/v1/", guarded)

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) openAPIDocument(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(apigen.Spec())
}

func (rt *Router) UploadArchive(w http.ResponseWriter, r *http.Request) {
	if rt.cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.MaxUploadBytes)
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, apigen.Error{Error: "archive too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, apigen.Error{Error: "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	key, err := rt.uploader.Upload(r.Context(), fileHeader.Filename, file)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordUpload(fileHeader.Size)
	}

	writeJSON(w, http.StatusCreated, apigen.UploadedArchive{
		Key:      key,
		Filename: fileHeader.Filename,
		Size:     fileHeader.Size,
	})
}

func (rt *Router) DiscardArchive(w http.ResponseWriter, r *http.Request, key string) {
	if err := rt.uploader.Discard(r.Context(), key); err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) StartSession(w http.ResponseWriter, r *http.Request) {
	var req apigen.StartSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, apigen.Error{Error: "invalid json"})
		return
	}

	sessionID, cmd, err := rt.sessions.Start(r.Context(), req.SessionId)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{
		SessionID: sessionID,
		State:     rt.stateOf(r, sessionID),
		Command:   cmd,
	})
}

type sessionResponse struct {
	SessionID string         `json:"session_id"`
	State     string         `json:"state"`
	Command   domain.Command `json:"command,omitempty"`
}

func (rt *Router) RespondToSession(w http.ResponseWriter, r *http.Request, id string) {
	sessionID := strings.TrimSpace(id)
	if sessionID == "" {
		writeJSON(w, http.StatusBadRequest, apigen.Error{Error: "session id is required"})
		return
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, 8<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apigen.Error{Error: "unreadable body"})
		return
	}
	resp, err := domain.DecodeResponse(raw)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}

	cmd, err := rt.sessions.Respond(r.Context(), sessionID, resp)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		SessionID: sessionID,
		State:     rt.stateOf(r, sessionID),
		Command:   cmd,
	})
}

func (rt *Router) GetSession(w http.ResponseWriter, r *http.Request, id string) {
	sessionID := strings.TrimSpace(id)
	state, err := rt.sessions.State(r.Context(), sessionID)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{SessionID: sessionID, State: state})
}

// stateOf reports "end" for sessions that were dropped after their final
// command.
func (rt *Router) stateOf(r *http.Request, sessionID string) string {
	state, err := rt.sessions.State(r.Context(), sessionID)
	if err != nil {
		return "end"
	}
	return state
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		rt.logger.Error("request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeJSON(w, status, apigen.Error{Error: err.Error()})
}

func (rt *Router) invalidRequest(w http.ResponseWriter, r *http.Request, status int, err error) {
	rt.logger.Debug("request_rejected_by_schema",
		"request_id", requestIDFromContext(r.Context()),
		"path", r.URL.Path,
		"error", err,
	)
	writeJSON(w, status, apigen.Error{Error: err.Error()})
}

func (rt *Router) rejected(reason string) func() {
	return func() {
		if rt.metrics != nil {
			rt.metrics.RecordRejected(serviceName, reason)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
