package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/cwbudde/fireflyviz/internal/chart"
	"github.com/cwbudde/fireflyviz/internal/firefly"
	"github.com/cwbudde/fireflyviz/internal/objective"
	"github.com/cwbudde/fireflyviz/internal/store"
)

const maxCurvePoints = 5000

// Server represents the HTTP server
type Server struct {
	sessions *SessionManager
	curves   *cache.Cache
	addr     string
	server   *http.Server
}

// NewServer creates a new HTTP server. st may be nil, in which case
// completed sessions are not persisted.
func NewServer(addr string, st *store.FSStore, interval time.Duration) *Server {
	return &Server{
		sessions: NewSessionManager(st, interval),
		curves:   cache.New(10*time.Minute, 20*time.Minute),
		addr:     addr,
	}
}

// Sessions exposes the session manager.
func (s *Server) Sessions() *SessionManager {
	return s.sessions
}

// Handler builds the routed and wrapped HTTP handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/v1/sessions", s.handleSessions)
	mux.HandleFunc("/api/v1/sessions/", s.handleSessionsWithID)

	return s.loggingMiddleware(s.corsMiddleware(mux))
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("Starting HTTP server", "addr", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown stops session workers and gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down HTTP server")
	s.sessions.Shutdown()
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// handleSessions handles /api/v1/sessions
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateSession(w, r)
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.sessions.ListSessions())
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleSessionsWithID handles /api/v1/sessions/:id/*
func (s *Server) handleSessionsWithID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/sessions/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "Session ID required", http.StatusBadRequest)
		return
	}
	if len(parts) > 2 {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	sessionID := parts[0]
	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}

	switch action {
	case "", "status":
		if !requireMethod(w, r, http.MethodGet) {
			return
		}
		s.handleGetSession(w, r, sessionID)
	case "start", "pause", "step", "reset":
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		s.handleControl(w, r, sessionID, action)
	case "stream":
		if !requireMethod(w, r, http.MethodGet) {
			return
		}
		s.handleSessionStream(w, r, sessionID)
	case "curve":
		if !requireMethod(w, r, http.MethodGet) {
			return
		}
		s.handleCurve(w, r, sessionID)
	case "chart":
		if !requireMethod(w, r, http.MethodGet) {
			return
		}
		s.handleChart(w, r, sessionID)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

// handleCreateSession handles POST /api/v1/sessions
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var cfg SessionConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	status, err := s.sessions.CreateSession(cfg)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, status)
}

// handleGetSession handles GET /api/v1/sessions/:id
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	status, exists := s.sessions.GetSession(sessionID)
	if !exists {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleControl handles POST /api/v1/sessions/:id/{start,pause,step,reset}
func (s *Server) handleControl(w http.ResponseWriter, r *http.Request, sessionID, action string) {
	var status SessionStatus
	var err error
	switch action {
	case "start":
		status, err = s.sessions.Start(sessionID)
	case "pause":
		status, err = s.sessions.Pause(sessionID)
	case "step":
		status, err = s.sessions.Step(sessionID)
	case "reset":
		status, err = s.sessions.Reset(sessionID)
	}

	switch {
	case errors.Is(err, ErrSessionNotFound):
		http.Error(w, "Session not found", http.StatusNotFound)
	case errors.Is(err, ErrSessionCompleted), errors.Is(err, ErrSessionRunning):
		http.Error(w, err.Error(), http.StatusConflict)
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	default:
		writeJSON(w, http.StatusOK, status)
	}
}

// handleCurve handles GET /api/v1/sessions/:id/curve?points=N
func (s *Server) handleCurve(w http.ResponseWriter, r *http.Request, sessionID string) {
	status, exists := s.sessions.GetSession(sessionID)
	if !exists {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	if status.Config.Dimension != 1 {
		http.Error(w, "curve is only available for 1D sessions", http.StatusBadRequest)
		return
	}

	points := chart.DefaultCurvePoints
	if v := r.URL.Query().Get("points"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 2 || n > maxCurvePoints {
			http.Error(w, fmt.Sprintf("points must be an integer in [2, %d]", maxCurvePoints), http.StatusBadRequest)
			return
		}
		points = n
	}

	lower, upper := status.Config.Params.Bounds(1)
	key := fmt.Sprintf("%s:%g:%g:%d", status.Config.Objective, lower[0], upper[0], points)
	if cached, ok := s.curves.Get(key); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	def, err := objective.Lookup(status.Config.Objective)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	curve := objective.SampleCurve(def.Func, lower[0], upper[0], points)
	s.curves.SetDefault(key, curve)
	writeJSON(w, http.StatusOK, curve)
}

// handleChart handles GET /api/v1/sessions/:id/chart
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request, sessionID string) {
	status, exists := s.sessions.GetSession(sessionID)
	if !exists {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	if status.Snapshot == nil {
		http.Error(w, "No snapshot yet", http.StatusNotFound)
		return
	}
	history, err := s.sessions.History(sessionID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	def, err := objective.Lookup(status.Config.Objective)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	lower, upper := status.Config.Params.Bounds(status.Config.Dimension)

	report := chart.Report{
		Title:   fmt.Sprintf("Firefly on %s", status.Config.Objective),
		Func:    def.Func,
		Lower:   lower,
		Upper:   upper,
		State:   *status.Snapshot,
		History: history,
	}
	if _, err := chart.Swarm(report); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	if err := chart.Render(w, report); err != nil {
		slog.Error("Failed to render chart", "session_id", sessionID, "error", err)
	}
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// writeJSON encodes v before writing the header, so an encoding failure
// becomes a 500 instead of a success status with an empty body.
func writeJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(buf.Bytes())
}

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

// snapshotPhase is used by the index page to label sessions without state.
func snapshotPhase(st SessionStatus) firefly.Phase {
	if st.Phase == "" {
		return firefly.PhaseUninitialized
	}
	return st.Phase
}
