package webhook

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
	"github.com/mattjoyce/wordbot/internal/command"
	"github.com/mattjoyce/wordbot/internal/events"
	"github.com/mattjoyce/wordbot/internal/interaction"
	"github.com/mattjoyce/wordbot/internal/metrics"
)

// Server represents the webhook HTTP server.
type Server struct {
	config     Config
	verifier   Verifier
	dispatcher Dispatcher
	logger     *slog.Logger
	metrics    *metrics.Metrics
	hub        *events.Hub
	recorder   Recorder
	server     *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetrics records request counts and latency.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithEvents publishes an interaction.handled event per request.
func WithEvents(h *events.Hub) Option {
	return func(s *Server) { s.hub = h }
}

// WithRecorder writes an audit entry per request.
func WithRecorder(r Recorder) Option {
	return func(s *Server) { s.recorder = r }
}

// New creates a new webhook server instance. verifier and dispatcher are
// required; the verifying key they hold must be fully built before New.
func New(config Config, verifier Verifier, dispatcher Dispatcher, opts ...Option) *Server {
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = DefaultMaxBodySize
	}
	s := &Server{
		config:     config,
		verifier:   verifier,
		dispatcher: dispatcher,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// Serve accepts connections on ln until ctx is cancelled (blocking).
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.server = &http.Server{
		Handler:           s.setupRoutes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info("webhook server starting", "listen", ln.Addr().String(), "max_body_size", s.config.MaxBodySize)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("webhook server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("webhook server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("webhook server error: %w", err)
	}
}

// setupRoutes configures the HTTP router.
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Post("/", s.handleInteraction)

	return r
}

// loggingMiddleware logs HTTP requests (excludes bodies and signatures).
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info("webhook request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
			"remote_addr", r.RemoteAddr,
		)
	})
}

// result describes one finished request for metrics, events and audit.
type result struct {
	kind    string
	command string
	outcome string
	status  int
}

// handleInteraction authenticates, decodes, dispatches and answers one
// interaction. The signature is checked before the body is parsed.
func (s *Server) handleInteraction(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	res := s.process(w, r)
	s.finish(r, start, res)
}

func (s *Server) process(w http.ResponseWriter, r *http.Request) result {
	body, err := readBody(r.Body, s.config.MaxBodySize)
	if err != nil {
		return s.fail(w, r, "", "", err)
	}

	sig, ts, err := signedHeaders(r.Header)
	if err != nil {
		return s.fail(w, r, "", "", err)
	}

	if err := s.verifier.Verify(sig, ts, body); err != nil {
		return s.fail(w, r, "", "", err)
	}

	in, err := interaction.Decode(body)
	if err != nil {
		return s.fail(w, r, "", "", err)
	}

	var name string
	if cmd, ok := in.(interaction.ApplicationCommand); ok {
		name = cmd.Name
	}

	resp, err := s.dispatcher.Dispatch(in)
	if err != nil {
		return s.fail(w, r, in.Kind(), name, err)
	}

	out := interaction.Encode(resp)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(out)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(out); err != nil {
		s.logger.Warn("write interaction response", "error", err)
	}

	return result{kind: in.Kind(), command: name, outcome: OutcomeOK, status: http.StatusOK}
}

// fail answers with the fixed message for err's class and logs the detail.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, kind, name string, err error) result {
	f := classify(err)

	attrs := []any{
		"outcome", f.outcome,
		"status", f.status,
		"request_id", middleware.GetReqID(r.Context()),
		"error", err,
	}
	if name != "" {
		attrs = append(attrs, "command", name)
	}
	if f.status >= http.StatusInternalServerError {
		s.logger.Error("interaction failed", attrs...)
	} else {
		s.logger.Warn("interaction rejected", attrs...)
	}

	s.respondError(w, f.status, f.message)
	return result{kind: kind, command: knownCommand(name, err), outcome: f.outcome, status: f.status}
}

// knownCommand drops names the registry rejected, so attacker-chosen
// strings never reach metrics, events or the audit log.
func knownCommand(name string, err error) string {
	if errors.Is(err, command.ErrUnknownCommand) {
		return ""
	}
	return name
}

func (s *Server) finish(r *http.Request, start time.Time, res result) {
	elapsed := time.Since(start)
	reqID := middleware.GetReqID(r.Context())

	s.metrics.ObserveInteraction(res.kind, res.outcome, strconv.Itoa(res.status), elapsed)

	s.hub.Publish(events.TypeInteractionHandled, events.InteractionHandled{
		RequestID:  reqID,
		Kind:       res.kind,
		Command:    res.command,
		Outcome:    res.outcome,
		Status:     res.status,
		DurationMS: elapsed.Milliseconds(),
	})

	if s.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 2*time.Second)
	defer cancel()
	if _, err := s.recorder.Record(ctx, audit.Entry{
		ReceivedAt: start,
		RequestID:  reqID,
		Kind:       res.kind,
		Command:    res.command,
		Outcome:    res.outcome,
		Status:     res.status,
		DurationMS: elapsed.Milliseconds(),
	}); err != nil {
		s.metrics.AuditFailure()
		s.logger.Warn("audit record failed", "request_id", reqID, "error", err)
	}
}

// respondJSON sends a JSON response.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// respondError sends a JSON error response.
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, ErrorResponse{Error: message})
}
