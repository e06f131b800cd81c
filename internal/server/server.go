// Package server exposes the avatar feed, metrics and a health check over
// HTTP for an external renderer.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/patrickJVGH/FluentFlow/internal/logging"
)

// Config holds the listen address and routes.
type Config struct {
	Addr        string
	AvatarPath  string
	MetricsPath string
	// Logs backs the /logs route. The route is absent when nil.
	Logs LogSource
}

// LogSource is the in-memory log history of the running process.
type LogSource interface {
	GetHistory(limit int) []logging.LogEntry
	GetLogPath() string
}

const defaultLogLimit = 100

// HealthFunc reports whether the backing services are usable.
type HealthFunc func(ctx context.Context) error

// Server is the HTTP front of the feed.
type Server struct {
	cfg    Config
	hub    *Hub
	health HealthFunc
	logger zerolog.Logger
}

// New creates a server. health may be nil.
func New(cfg Config, hub *Hub, health HealthFunc, logger zerolog.Logger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8765"
	}
	if cfg.AvatarPath == "" {
		cfg.AvatarPath = "/ws/avatar"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	return &Server{cfg: cfg, hub: hub, health: health, logger: logger.With().Str("component", "server").Logger()}
}

// Handler returns the routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(s.cfg.AvatarPath, s.hub)
	mux.Handle(s.cfg.MetricsPath, promhttp.Handler())
	mux.HandleFunc("/healthz", s.handleHealth)
	if s.cfg.Logs != nil {
		mux.HandleFunc("/logs", s.handleLogs)
	}
	return mux
}

// handleLogs returns the most recent entries, oldest first. ?limit=0 returns
// the whole history.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	limit := defaultLogLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"path":    s.cfg.Logs.GetLogPath(),
		"entries": s.cfg.Logs.GetHistory(limit),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := map[string]any{"status": "ok", "clients": s.hub.Len()}, http.StatusOK
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			status["status"], status["error"] = "degraded", err.Error()
			code = http.StatusServiceUnavailable
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(status)
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.cfg.Addr).Str("avatar", s.cfg.AvatarPath).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.hub.Close()
	return srv.Shutdown(shutdownCtx)
}
