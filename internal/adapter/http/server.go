// Package http exposes the operational endpoints of the collector: health,
// readiness, Prometheus metrics, and a read-only view of the cached monthly
// stats.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zipwatch/crime-stats-etl/internal/domain"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// StatsReader serves cached monthly aggregates. Entries older than the stats
// TTL behave as absent.
type StatsReader interface {
	GetZipStats(zip string, m domain.Month) (domain.MonthlyZipStats, bool, error)
}

// Server exposes health, readiness, metrics, and stats HTTP endpoints.
type Server struct {
	httpServer *http.Server
	stats      StatsReader
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics, and
// /stats routes.
func NewServer(addr string, ready ReadinessChecker, stats StatsReader, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		stats:  stats,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// handleStats serves one cached monthly aggregate, looked up by zip, year,
// and month query parameters. A stale or absent cache entry is a 404.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	zip := r.URL.Query().Get("zip")
	year, yearErr := strconv.Atoi(r.URL.Query().Get("year"))
	month, monthErr := strconv.Atoi(r.URL.Query().Get("month"))
	if zip == "" || yearErr != nil || monthErr != nil || month < 1 || month > 12 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "zip, year, and month query parameters are required",
		})
		return
	}

	stats, ok, err := s.stats.GetZipStats(zip, domain.Month{Year: year, Month: time.Month(month)})
	if err != nil {
		s.logger.Error("stats lookup failed", "zip", zip, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "stats lookup failed",
		})
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "no stats for the requested zip and month",
		})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort health response
}
