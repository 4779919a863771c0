// Package web exposes the planner to the presentation layer over an
// HTTP JSON API. Rendering happens entirely on the other side of this
// boundary.
package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"focuscal/internal/config"
	appLog "focuscal/internal/log"
	"focuscal/internal/planner"
	"focuscal/internal/source"
)

// SourceFor picks the calendar source for a newly invited participant.
type SourceFor func(shortName string) source.Source

// Server provides the HTTP API around one planner.
type Server struct {
	cfg       *config.Config
	pl        *planner.Planner
	sourceFor SourceFor
	mux       *http.ServeMux
}

// NewServer constructs a Server.
func NewServer(cfg *config.Config, pl *planner.Planner, sourceFor SourceFor) *Server {
	s := &Server{
		cfg:       cfg,
		pl:        pl,
		sourceFor: sourceFor,
		mux:       http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the http.Handler for this server, with basic auth
// applied when configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="focuscal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// StartServer serves the API on cfg.Listen until ctx is canceled.
func StartServer(ctx context.Context, cfg *config.Config, pl *planner.Planner, sourceFor SourceFor) error {
	s := NewServer(cfg, pl, sourceFor)
	srv := &http.Server{Addr: cfg.Listen, Handler: s.Handler()}

	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()

	appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/schedule", s.handleSchedule)
	s.mux.HandleFunc("/api/sessions/generate", s.handleGenerate)
	s.mux.HandleFunc("/api/sessions", s.handleSessions)
	s.mux.HandleFunc("/api/sessions/", s.handleSessionByID)
	s.mux.HandleFunc("/api/participants", s.handleParticipants)
	s.mux.HandleFunc("/api/participants/common", s.handleCommon)
	s.mux.HandleFunc("/api/participants/", s.handleParticipantByName)
	s.mux.HandleFunc("/api/refresh", s.handleRefresh)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, s.pl.Schedule())
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	placed, err := s.pl.GenerateSessions()
	if err != nil {
		if errors.Is(err, planner.ErrPrimaryNotLoaded) {
			writeError(w, http.StatusConflict, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"created":  placed,
		"sessions": s.pl.Sessions(),
	})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.pl.Sessions())
	case http.MethodDelete:
		cleared := s.pl.ClearAllSessions()
		writeJSON(w, http.StatusOK, map[string]int{"cleared": cleared})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleSessionByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	if !s.pl.ClearSession(id) {
		writeError(w, http.StatusNotFound, errors.New("no such session: "+id))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"cleared": id})
}

func (s *Server) handleParticipants(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.pl.Participants())

	case http.MethodPost:
		var body struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.Name) == "" {
			writeError(w, http.StatusBadRequest, errors.New("body must be {\"name\": \"...\"}"))
			return
		}
		id := s.pl.AddParticipant(body.Name, s.sourceFor(body.Name))
		// The new record resolves on the next refresh; trigger one so the
		// caller can poll participant status right away. The fetches must
		// outlive this request, so detach from its cancellation.
		s.pl.Refresh(context.WithoutCancel(r.Context()))
		writeJSON(w, http.StatusAccepted, map[string]string{"participantId": id})

	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleParticipantByName(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/api/participants/")
	if name == "" || strings.Contains(name, "/") {
		http.NotFound(w, r)
		return
	}
	if err := s.pl.RemoveParticipant(name); err != nil {
		if errors.Is(err, planner.ErrUnknownParticipant) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"removed": name})
}

func (s *Server) handleCommon(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	rec, resolved := s.pl.Common()
	writeJSON(w, http.StatusOK, map[string]any{
		"common":    rec.Common,
		"fallback":  rec.Fallback,
		"suggested": rec.Suggested,
		"resolved":  resolved,
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	// Refresh runs in the background; fetches outlive this request.
	s.pl.Refresh(context.WithoutCancel(r.Context()))
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "refreshing"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("response encode failed", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func methodNotAllowed(w http.ResponseWriter) {
	http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
}
