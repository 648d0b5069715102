// Package http exposes the hub over HTTP: the Discord interactions webhook
// that drives solve decisions, the read API for leaderboard and user views,
// and the identity verification endpoints.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ctf-hub/ctf-community-hub/config"
)

// Server is the hub's HTTP front end.
type Server struct {
	cfg    config.HTTPConfig
	srv    *http.Server
	logger *slog.Logger
}

// NewServer assembles the router and listener. interactions or api may be
// nil, in which case their routes are not mounted.
func NewServer(cfg config.HTTPConfig, interactions *Interactions, api *API, logger *slog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	r.Get("/health", handleHealth)

	if interactions != nil {
		r.Post("/discord/interactions", interactions.Handle)
	}
	if api != nil {
		r.Route("/api/v1", api.Routes)
	}

	return &Server{
		cfg: cfg,
		srv: &http.Server{
			Addr:         cfg.Addr,
			Handler:      r,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		logger: logger.With("component", "http_server"),
	}
}

// Start begins serving and blocks until the listener closes.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.cfg.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requestLogger logs one line per request after it completes.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	l := logger.With("component", "http_server")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			l.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration_ms", time.Since(start).Milliseconds())
		})
	}
}
