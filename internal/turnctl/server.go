// Package turnctl is the HTTP/SSE façade over a graph: it accepts turns,
// streams their events, and exposes the interrupt/resume and checkpoint
// version endpoints a client needs to drive a long-running, suspendable
// conversation. It generalizes the teacher's internal/gateway HTTP server
// (internal/gateway/http_server.go) down to the one surface this domain
// actually needs, with every channel/auth/web-UI concern stripped.
package turnctl

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/weaver-ai/weaver/internal/checkpoint"
	"github.com/weaver-ai/weaver/internal/config"
	"github.com/weaver-ai/weaver/internal/eventbus"
	"github.com/weaver-ai/weaver/internal/graph"
)

// Server is the turn-control HTTP/SSE façade.
type Server struct {
	cfg          config.ServerConfig
	graph        *graph.Graph
	checkpointer checkpoint.Store
	bus          *eventbus.Bus
	logger       *slog.Logger

	mu      sync.Mutex
	running map[string]context.CancelFunc

	httpServer *http.Server
	listener   net.Listener
}

// Deps wires a Server's dependencies.
type Deps struct {
	Graph        *graph.Graph
	Checkpointer checkpoint.Store
	Bus          *eventbus.Bus
	Logger       *slog.Logger
}

// New builds a Server. Call Handler to mount it, or Start/Stop to run its
// own *http.Server.
func New(cfg config.ServerConfig, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:          cfg,
		graph:        deps.Graph,
		checkpointer: deps.Checkpointer,
		bus:          deps.Bus,
		logger:       logger.With("component", "turnctl"),
		running:      make(map[string]context.CancelFunc),
	}
}

// Handler returns the mux this Server answers on, for embedding in a
// larger ServeMux (tests, or a process that also serves /metrics).
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("POST /api/chat/cancel/{thread_id}", s.handleCancel)
	mux.HandleFunc("GET /api/events/{thread_id}", s.handleEvents)
	mux.HandleFunc("POST /api/interrupt/resume", s.handleResume)
	mux.HandleFunc("GET /api/sessions/{thread_id}/versions", s.handleListVersions)
	mux.HandleFunc("POST /api/sessions/{thread_id}/restore/{version_id}", s.handleRestore)
	return mux
}

// ThreadIDs implements reaper.ThreadSource from the set of threads with a
// currently-running turn plus every thread the checkpoint store has ever
// seen a run register below, via trackThread.
func (s *Server) ThreadIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.running))
	for id := range s.running {
		out = append(out, id)
	}
	return out
}

// Start runs the façade's own *http.Server until Stop is called.
func (s *Server) Start(ctx context.Context) error {
	if s.cfg.HTTPPort == 0 {
		return nil
	}
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.HTTPPort)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("turnctl listen: %w", err)
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
	}
	s.httpServer = server
	s.listener = listener

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("turnctl server error", "error", err)
		}
	}()

	s.logger.Info("turnctl listening", "addr", addr)
	return nil
}

// Stop gracefully shuts down the façade's own *http.Server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	err := s.httpServer.Shutdown(ctx)
	s.httpServer = nil
	s.listener = nil
	return err
}

func (s *Server) trackRun(threadID string, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running[threadID] = cancel
}

func (s *Server) untrackRun(threadID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, threadID)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}
