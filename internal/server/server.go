// Package server exposes the storybook pipeline over HTTP with SSE progress streams.
package server

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/storybook/internal/config"
	"github.com/jonathan/storybook/internal/pipeline"
	"github.com/jonathan/storybook/internal/server/ratelimit"
	"github.com/jonathan/storybook/internal/session"
	"github.com/jonathan/storybook/internal/types"
)

// Runner runs the storybook pipeline
type Runner interface {
	Stream(ctx context.Context, req pipeline.Request) iter.Seq[pipeline.Event]
	Generate(ctx context.Context, outline string) (*types.Book, error)
}

// BookLoader reads persisted books
type BookLoader interface {
	Load(ctx context.Context, id string) (*types.Book, error)
}

// Deps are the collaborators the server is wired to
type Deps struct {
	Runner   Runner
	Sessions *session.Registry
	Books    BookLoader
	Limiter  *ratelimit.Limiter // Optional
}

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	cfg         *config.Config
	runner      Runner
	sessions    *session.Registry
	books       BookLoader
	rateLimiter *ratelimit.Limiter
	validate    *validator.Validate
}

// New creates a new server instance
func New(cfg *config.Config, deps Deps) *Server {
	s := &Server{
		cfg:         cfg,
		runner:      deps.Runner,
		sessions:    deps.Sessions,
		books:       deps.Books,
		rateLimiter: deps.Limiter,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
	if s.sessions == nil {
		s.sessions = session.NewRegistry()
	}

	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     s.Handler(),
		ReadTimeout: 30 * time.Second,
		// /generate clears its own write deadline
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Handler returns the routed handler with all middleware applied
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /generate", s.handleGenerate)
	mux.HandleFunc("POST /generate", s.handleGenerate)
	mux.HandleFunc("POST /review", s.handleReview)
	mux.HandleFunc("GET /books/{id}", s.handleGetBook)
	mux.HandleFunc("GET /sessions/{id}", s.handleGetSession)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /static/images/", http.StripPrefix("/static/images/", http.FileServer(http.Dir(s.cfg.ImagesDir()))))

	var h http.Handler = mux
	h = s.withSession(h)
	h = s.withCORS(h)
	if s.rateLimiter != nil {
		h = s.withRateLimit(h)
	}
	return s.withLogging(h)
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", ln.Addr().String()).Msg("server starting")
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if s.rateLimiter != nil {
			s.rateLimiter.Stop()
		}
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	err := g.Wait()
	log.Info().Msg("server stopped")
	return err
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.sessions.Len(),
	})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	body, err := sonic.Marshal(data)
	if err != nil {
		log.Error().Err(err).Msg("failed to encode JSON response")
		status = http.StatusInternalServerError
		body = []byte(`{"error":"internal error"}`)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// setRateLimitHeaders sets standard rate limit headers on the response
func setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))
	}
}
