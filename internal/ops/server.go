// Package ops serves the operator listener: health, readiness, metrics,
// the live event stream and the recent interactions list.
package ops

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mattjoyce/wordbot/internal/audit"
	"github.com/mattjoyce/wordbot/internal/auth"
	"github.com/mattjoyce/wordbot/internal/events"
	"github.com/mattjoyce/wordbot/internal/metrics"
	"github.com/mattjoyce/wordbot/internal/registration"
)

// Server represents the ops HTTP server.
type Server struct {
	config       Config
	registration RegistrationStatus
	hub          *events.Hub
	metrics      *metrics.Metrics
	audit        AuditReader
	logger       *slog.Logger
	server       *http.Server
	startedAt    time.Time
}

// New creates an ops server. audit may be nil when the audit log is off.
func New(config Config, reg RegistrationStatus, hub *events.Hub, m *metrics.Metrics, audit AuditReader, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.New()
	}
	return &Server{
		config:       config,
		registration: reg,
		hub:          hub,
		metrics:      m,
		audit:        audit,
		logger:       logger,
		startedAt:    time.Now(),
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// Serve accepts connections on ln until ctx is cancelled (blocking).
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.server = &http.Server{
		Handler:           s.setupRoutes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
		// No WriteTimeout: /events is a long-lived stream.
	}

	s.logger.Info("ops server starting", "listen", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("ops server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("ops server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("ops server error: %w", err)
	}
}

// setupRoutes configures the HTTP router.
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// Unauthenticated probes.
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Handle("/metrics", s.metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(s.config.APIKey))
		r.Get("/events", s.handleEvents)
		r.Get("/interactions", s.handleInteractions)
	})

	return r
}

// loggingMiddleware logs requests at DEBUG; probes are frequent.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Debug("ops request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) registrationSnapshot() registration.Snapshot {
	if s.registration == nil {
		return registration.Snapshot{Status: registration.StatusDisabled}
	}
	return s.registration.Status()
}

// handleHealthz reports liveness. It answers 200 while the process serves,
// with status "degraded" once endpoint registration has failed.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	snap := s.registrationSnapshot()
	status := "ok"
	if snap.Status == registration.StatusFailed {
		status = "degraded"
	}

	commands := s.config.Commands
	if commands == nil {
		commands = []string{}
	}
	respondJSON(w, http.StatusOK, HealthzResponse{
		Status:         status,
		UptimeSeconds:  int64(time.Since(s.startedAt).Seconds()),
		Commands:       commands,
		KeyFingerprint: s.config.KeyFingerprint,
		Registration:   snap,
		Subscribers:    s.hub.Followers(),
		EventsDropped:  s.hub.Dropped(),
	})
}

// handleReadyz answers 503 until the endpoint is registered (or
// registration is disabled).
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	snap := s.registrationSnapshot()
	code := http.StatusOK
	if !snap.Ready() {
		code = http.StatusServiceUnavailable
	}
	respondJSON(w, code, ReadyzResponse{Ready: snap.Ready(), Registration: string(snap.Status)})
}

// handleInteractions lists recent audit entries. Query: limit, outcome.
func (s *Server) handleInteractions(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		s.writeError(w, http.StatusNotFound, "audit log disabled")
		return
	}

	f := audit.Filter{Outcome: r.URL.Query().Get("outcome")}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		f.Limit = n
	}

	entries, err := s.audit.Recent(r.Context(), f)
	if err != nil {
		s.logger.Error("failed to list interactions", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list interactions")
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	respondJSON(w, http.StatusOK, InteractionsResponse{Entries: entries})
}

func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}
