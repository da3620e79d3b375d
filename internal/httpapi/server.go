package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/antoniostano/tutorcore/internal/config"
	"github.com/antoniostano/tutorcore/internal/escalation"
	"github.com/antoniostano/tutorcore/internal/job"
	"github.com/antoniostano/tutorcore/internal/observability"
	"github.com/antoniostano/tutorcore/internal/session"
)

// Orchestrator is the subset of internal/orchestrator.Orchestrator the
// transport needs. Declared as an interface so the server can be tested
// without spinning up real collaborators.
type Orchestrator interface {
	Dispatch(sessionID, text string) string
	Status(jobID string) (job.Snapshot, error)
	Wait(ctx context.Context, jobID string, timeout time.Duration) (job.Snapshot, error)
}

type Server struct {
	cfg          config.Config
	sessions     *session.Manager
	orchestrator Orchestrator
	escalations  *escalation.Bus
	metrics      *observability.Metrics
	upgrader     websocket.Upgrader
}

func New(cfg config.Config, sessions *session.Manager, orchestrator Orchestrator, escalations *escalation.Bus, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:          cfg,
		sessions:     sessions,
		orchestrator: orchestrator,
		escalations:  escalations,
		metrics:      metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})
	r.Get("/v1/turn-stages", s.handlePerfLatency)

	r.Post("/v1/sessions", s.handleOpenSession)
	r.Delete("/v1/sessions/{id}", s.handleCloseSession)

	r.Post("/v1/orchestrate", s.handleDispatch)
	r.Get("/v1/orchestrate/{jobID}", s.handleStatus)
	r.Post("/v1/orchestrate/{jobID}/wait", s.handleWait)

	r.Post("/v1/sessions/{id}/escalate", s.handleEscalate)
	r.Post("/v1/sessions/{id}/hint", s.handlePushHint)
	r.Get("/v1/sessions/{id}/observe", s.handleObserve)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"active_sessions": s.sessions.ActiveCount(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

type openSessionRequest struct {
	SessionID string `json:"session_id"`
}

func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	var req openSessionRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		respondError(w, http.StatusBadRequest, "missing_session_id", "session_id is required")
		return
	}

	st := s.sessions.GetOrCreate(req.SessionID)
	s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
	s.metrics.SessionEvents.WithLabelValues("opened").Inc()
	respondJSON(w, http.StatusCreated, st.Snapshot())
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, err := s.sessions.Close(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
	s.metrics.SessionEvents.WithLabelValues("closed").Inc()
	respondJSON(w, http.StatusOK, snap)
}

type dispatchRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

type dispatchResponse struct {
	JobID string `json:"job_id"`
}

func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	var req dispatchRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.SessionID) == "" || strings.TrimSpace(req.Text) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "session_id and text are required")
		return
	}

	jobID := s.orchestrator.Dispatch(req.SessionID, req.Text)
	respondJSON(w, http.StatusAccepted, dispatchResponse{JobID: jobID})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	snap, err := s.orchestrator.Status(jobID)
	if err != nil {
		respondError(w, http.StatusNotFound, "job_not_found", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, jobResponse(snap))
}

func (s *Server) handleWait(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	timeout := 30 * time.Second
	if raw := strings.TrimSpace(r.URL.Query().Get("timeout_seconds")); raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil && secs >= 0 {
			timeout = time.Duration(secs) * time.Second
		}
	}

	snap, err := s.orchestrator.Wait(r.Context(), jobID, timeout)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			respondError(w, http.StatusNotFound, "job_not_found", err.Error())
			return
		}
		respondError(w, http.StatusRequestTimeout, "wait_timeout", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, jobResponse(snap))
}

type jobView struct {
	JobID        string `json:"job_id"`
	Status       string `json:"status"`
	Subject      string `json:"subject,omitempty"`
	SafeText     string `json:"safe_text,omitempty"`
	TTSReady     bool   `json:"tts_ready"`
	ErrorMessage string `json:"error_message,omitempty"`
}

func jobResponse(snap job.Snapshot) jobView {
	return jobView{
		JobID:        snap.ID,
		Status:       string(snap.Status),
		Subject:      snap.Subject,
		SafeText:     snap.SafeText,
		TTSReady:     snap.Status == job.StatusComplete,
		ErrorMessage: snap.ErrorMessage,
	}
}

type escalateRequest struct {
	Reason string `json:"reason"`
}

type escalateResponse struct {
	SessionID string `json:"session_id"`
}

func (s *Server) handleEscalate(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	var req escalateRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if st, err := s.sessions.Get(sessionID); err == nil {
		st.SetEscalated(true)
	}

	handle := s.escalations.Notify(sessionID, req.Reason, time.Now())
	s.metrics.ObserveEscalationEvent("notified")
	respondJSON(w, http.StatusAccepted, escalateResponse{SessionID: handle.SessionID})
}

type hintRequest struct {
	Text string `json:"text"`
}

func (s *Server) handlePushHint(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	var req hintRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	s.escalations.Broadcast(sessionID, escalation.Message{
		SessionID: sessionID,
		Text:      req.Text,
		At:        time.Now(),
	})
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleObserve(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ch, unsubscribe := s.escalations.Subscribe(sessionID)
	defer unsubscribe()
	s.metrics.ObserveEscalationEvent("observer_connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
