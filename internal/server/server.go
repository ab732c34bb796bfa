// Package server is the HTTP layer of beads-ui. It exposes the dashboard
// API, forwards every mutation through the process supervisor, and maps
// supervisor failures to status codes. Reads come back as bd/gt JSON
// decoded by the client packages; the server owns no issue semantics.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/steveyegge/beads-ui/internal/bdclient"
	"github.com/steveyegge/beads-ui/internal/config"
	"github.com/steveyegge/beads-ui/internal/debug"
	"github.com/steveyegge/beads-ui/internal/gtclient"
	"github.com/steveyegge/beads-ui/internal/supervisor"
	"github.com/steveyegge/beads-ui/internal/watch"
)

// StatsProvider exposes supervisor state for /api/status and /readyz.
// *supervisor.Supervisor implements it.
type StatsProvider interface {
	Stats() supervisor.Stats
}

// Server wraps the dashboard API endpoints.
type Server struct {
	cfg     config.Config
	version string

	bd      *bdclient.Client
	gt      *gtclient.Client
	sup     StatsProvider
	watcher *watch.Watcher // may be nil when the workspace has no .beads dir
	metrics *Metrics

	httpServer *http.Server
	listener   net.Listener
	mu         sync.RWMutex
}

// New assembles a Server. watcher may be nil.
func New(cfg config.Config, version string, bd *bdclient.Client, gt *gtclient.Client, sup StatsProvider, watcher *watch.Watcher) *Server {
	return &Server{
		cfg:     cfg,
		version: version,
		bd:      bd,
		gt:      gt,
		sup:     sup,
		watcher: watcher,
		metrics: NewMetrics(),
	}
}

// Start listens on the configured address and serves until ctx is
// canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	var err error
	s.listener, err = net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Listen, err)
	}
	httpServer := s.httpServer
	listener := s.listener
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	debug.Logf("server: listening on %s\n", listener.Addr())
	if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Addr returns the address the server is listening on.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.cfg.Listen
}

// Handler builds the route mux. Exposed separately from Start so tests can
// drive the routes through httptest without binding a port.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health endpoints skip request metrics.
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReadiness)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /api/issues", s.instrument("issues", s.handleIssues))
	mux.HandleFunc("GET /api/issues/{id}", s.instrument("issue", s.handleIssue))
	mux.HandleFunc("GET /api/ready", s.instrument("ready", s.handleReady))
	mux.HandleFunc("GET /api/blocked", s.instrument("blocked", s.handleBlocked))
	mux.HandleFunc("GET /api/stats", s.instrument("stats", s.handleStats))
	mux.HandleFunc("GET /api/agents", s.instrument("agents", s.handleAgents))
	mux.HandleFunc("GET /api/sessions", s.instrument("sessions", s.handleSessions))
	mux.HandleFunc("GET /api/town", s.instrument("town", s.handleTown))
	mux.HandleFunc("GET /api/status", s.instrument("status", s.handleStatus))
	mux.HandleFunc("POST /api/exec", s.instrument("exec", s.handleExec))
	return mux
}

// instrument wraps a handler with request metrics.
func (s *Server) instrument(operation string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		h(rec, r)
		s.metrics.RecordRequest(operation, time.Since(start), rec.status >= 400)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
