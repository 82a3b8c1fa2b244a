package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"concordlabs/concord/pkg/bus"
	"concordlabs/concord/pkg/config"
	"concordlabs/concord/pkg/health"
	"concordlabs/concord/pkg/telemetry/metrics"
)

const shutdownTimeout = 5 * time.Second

// Options wires the ops server to the runtime components it reports on.
// Collector, Health, and Bus may each be nil; the corresponding endpoint
// then reports what it can.
type Options struct {
	Config    config.MetricsConfig
	Collector *metrics.Collector
	Health    *health.Aggregator
	Bus       *bus.Bus
}

// Server is the ops HTTP listener. It serves the Prometheus exposition
// endpoint and the liveness and readiness probes.
type Server struct {
	opts       Options
	httpServer *http.Server
	logger     *slog.Logger

	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// New creates an ops server. It does not listen until Start.
func New(opts Options) *Server {
	return &Server{
		opts:   opts,
		logger: slog.Default().With("component", "server.ops"),
	}
}

// Start listens on the configured address and blocks until the context
// is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("ops server is already running")
	}
	s.isRunning = true
	s.httpServer = &http.Server{
		Addr:         s.opts.Config.ListenAddress,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("ops server listening", "address", s.opts.Config.ListenAddress)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("ops server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

// Shutdown stops the listener, waiting up to the shutdown timeout for
// in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		running := s.isRunning
		s.isRunning = false
		s.mu.Unlock()
		if !running {
			return
		}

		shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				shutdownErr = fmt.Errorf("ops server shutdown: %w", err)
			}
		}
		s.logger.Info("ops server stopped")
	})

	return shutdownErr
}

// IsRunning reports whether the listener is up.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the ops route mux. Exposed for tests and for embedding
// the ops routes into another listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	if s.opts.Collector != nil {
		mux.Handle("/metrics", s.opts.Collector.Handler())
	}
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)

	return s.logRequests(mux)
}

// handleHealthz is the liveness probe. It reports the aggregate health
// score and fails only when the system is CRITICAL.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.opts.Health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	report := s.opts.Health.Check(r.Context())
	status := http.StatusOK
	if report.Status == health.StatusCritical {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

// readiness is the /readyz response payload.
type readiness struct {
	Ready       bool           `json:"ready"`
	Degraded    bool           `json:"degraded"`
	Health      health.Status  `json:"health"`
	Queued      int            `json:"queued"`
	InFlight    int64          `json:"in_flight"`
	Processed   int64          `json:"processed"`
	Failed      int64          `json:"failed"`
	PerPriority map[string]int `json:"per_priority,omitempty"`
}

// handleReadyz is the readiness probe. The bus must be accepting work and
// the aggregate health must not be CRITICAL. DEGRADED still serves.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	out := readiness{Ready: true, Health: health.StatusUnknown}

	if s.opts.Health != nil {
		report := s.opts.Health.Check(r.Context())
		out.Health = report.Status
		if report.Status == health.StatusCritical {
			out.Ready = false
		}
	}
	if s.opts.Bus != nil {
		stats := s.opts.Bus.Stats()
		out.Degraded = stats.Degraded
		out.Queued = stats.Queued
		out.InFlight = stats.InFlight
		out.Processed = stats.Processed
		out.Failed = stats.Failed
		if len(stats.PerPriority) > 0 {
			out.PerPriority = make(map[string]int, len(stats.PerPriority))
			for prio, n := range stats.PerPriority {
				out.PerPriority[prio] = n
			}
		}
	}

	status := http.StatusOK
	if !out.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, out)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("ops request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Debug("ops response encode failed", "error", err)
	}
}
