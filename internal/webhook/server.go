package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mattjoyce/slashgate/internal/command"
	"github.com/mattjoyce/slashgate/internal/interaction"
	"github.com/mattjoyce/slashgate/internal/metrics"
	"github.com/mattjoyce/slashgate/internal/signature"
)

// Metric labels.
const (
	kindPing    = "ping"
	kindCommand = "command"
	kindUnknown = "unknown"
	kindInvalid = "invalid"

	outcomeOK           = "ok"
	outcomeUnauthorized = "unauthorized"
	outcomeMalformed    = "malformed"
	outcomeUnsupported  = "unsupported"
	outcomeTooLarge     = "too_large"
	outcomeReadError    = "read_error"
)

// Server represents the interactions HTTP server.
type Server struct {
	config   Config
	verifier Authenticator
	router   CommandRouter
	metrics  *metrics.Metrics
	logger   *slog.Logger
	server   *http.Server
	now      func() time.Time
}

// New creates a new server instance. m may be nil.
func New(config Config, verifier Authenticator, router CommandRouter, m *metrics.Metrics, logger *slog.Logger) *Server {
	if config.Path == "" {
		config.Path = DefaultPath
	}
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = DefaultMaxBodySize
	}
	if config.RouteTimeout <= 0 {
		config.RouteTimeout = DefaultRouteTimeout
	}

	return &Server{
		config:   config,
		verifier: verifier,
		router:   router,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// Start starts the HTTP server (blocking).
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.config.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info("interactions server starting", "listen", s.config.Listen, "path", s.config.Path)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("interactions server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("interactions server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("interactions server error: %w", err)
	}
}

// Handler returns the configured router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleHealth)
	r.Post(s.config.Path, s.handleInteraction)
	if s.config.EnableMetrics && s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	return r
}

// loggingMiddleware logs HTTP requests (excludes payloads and signatures).
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
			"remote_addr", r.RemoteAddr,
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// handleInteraction runs verify, decode, route and encode for one POST.
func (s *Server) handleInteraction(w http.ResponseWriter, r *http.Request) {
	start := s.now()
	kind, outcome := kindInvalid, outcomeOK
	defer func() {
		s.metrics.ObserveInteraction(kind, outcome, s.now().Sub(start))
	}()

	// Enforce body size limit
	body, err := io.ReadAll(io.LimitReader(r.Body, s.config.MaxBodySize+1))
	if err != nil {
		outcome = outcomeReadError
		s.respondError(w, http.StatusBadRequest, msgReadFailed)
		return
	}
	if int64(len(body)) > s.config.MaxBodySize {
		outcome = outcomeTooLarge
		s.respondError(w, http.StatusRequestEntityTooLarge, msgTooLarge)
		return
	}

	if err := s.verifier.Check(r.Header, body, start); err != nil {
		outcome = outcomeUnauthorized
		s.logger.Warn("interaction signature rejected",
			"reason", err.Error(),
			"request_id", middleware.GetReqID(r.Context()),
		)
		s.respondError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	event, err := interaction.Decode(body)
	if err != nil {
		outcome = outcomeMalformed
		s.logger.Warn("malformed interaction", "error", err)
		s.respondError(w, http.StatusBadRequest, msgMalformed)
		return
	}

	var resp interaction.Response
	switch ev := event.(type) {
	case interaction.Handshake:
		kind = kindPing
		resp = interaction.Acknowledge{}
	case interaction.CommandInvocation:
		kind = kindCommand
		resp = s.route(r.Context(), ev)
	case interaction.Unrecognized:
		kind, outcome = kindUnknown, outcomeUnsupported
		s.logger.Info("unsupported interaction type", "type", ev.RawType)
		resp = interaction.Message{Content: command.FallbackContent}
	}

	s.respondRaw(w, http.StatusOK, interaction.Encode(resp))
}

func (s *Server) route(ctx context.Context, ev interaction.CommandInvocation) interaction.Response {
	label := ev.Name
	if !s.router.Has(ev.Name) {
		label = kindUnknown
	}
	s.metrics.CountCommand(label)

	ctx, cancel := context.WithTimeout(ctx, s.config.RouteTimeout)
	defer cancel()

	s.logger.Debug("routing command", "command", ev.Name, "invoker", ev.Invoker)
	return s.router.Route(ctx, ev.Name, ev.Arguments, ev.Invoker)
}

// respondJSON sends a JSON response.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondRaw sends already encoded JSON.
func (s *Server) respondRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

// respondError sends a JSON error response.
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, ErrorResponse{Error: message})
}

var (
	_ Authenticator = (*signature.Verifier)(nil)
	_ CommandRouter = (*command.Router)(nil)
)
