// Package http exposes the pipeline's trigger and health surface.
package http

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/signal-story-pipeline/internal/domain"
	"github.com/couchcryptid/signal-story-pipeline/internal/pipeline"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// JobRunner is the coordinator surface the server needs.
type JobRunner interface {
	RunJob(ctx context.Context, name string, opts pipeline.RunOptions) (domain.RunSummary, error)
	Has(name string) bool
}

// Pinger reports downstream storage health for readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server hosts the scheduler-facing trigger endpoint plus health and metrics.
type Server struct {
	runner JobRunner
	pinger Pinger
	token  string
	logger *slog.Logger
	router chi.Router
	srv    *http.Server
}

// NewServer builds the HTTP surface. The trigger token must be non-empty;
// config validation enforces that before we get here.
func NewServer(addr string, runner JobRunner, pinger Pinger, token string, logger *slog.Logger) *Server {
	s := &Server{
		runner: runner,
		pinger: pinger,
		token:  token,
		logger: logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Post("/jobs/{name}/run", s.handleRunJob)

	s.router = r
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.srv.Addr)
	return s.srv.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.pinger.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleRunJob executes one batch run synchronously and returns its summary.
// The platform scheduler is the only caller; runs are minutes, not hours, so
// a held connection is acceptable.
func (s *Server) handleRunJob(w http.ResponseWriter, r *http.Request) {
	if subtle.ConstantTimeCompare([]byte(r.Header.Get("X-Pipeline-Token")), []byte(s.token)) != 1 {
		writeError(w, http.StatusUnauthorized, "invalid or missing trigger token")
		return
	}

	name := chi.URLParam(r, "name")
	if !s.runner.Has(name) {
		writeError(w, http.StatusNotFound, "unknown job: "+name)
		return
	}

	opts, err := parseRunOptions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := s.runner.RunJob(r.Context(), name, opts)
	switch {
	case errors.Is(err, pipeline.ErrJobBusy):
		writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, pipeline.ErrUnknownJob):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		s.logger.Error("run failed", "job", name, "error", err)
		writeError(w, http.StatusInternalServerError, "run failed")
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func parseRunOptions(r *http.Request) (pipeline.RunOptions, error) {
	var opts pipeline.RunOptions
	q := r.URL.Query()

	if raw := q.Get("days"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days < 1 {
			return opts, errors.New("days must be a positive integer")
		}
		opts.WindowDays = days
	}
	opts.TargetOverride = q.Get("target")
	if raw := q.Get("sample"); raw != "" {
		sample, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, errors.New("sample must be a boolean")
		}
		opts.Sample = sample
	}
	return opts, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
