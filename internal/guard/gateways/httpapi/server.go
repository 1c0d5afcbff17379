package httpapi

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/guardhome/guardhome/internal/guard/common/log"
	"github.com/guardhome/guardhome/internal/guard/domain"
	"github.com/guardhome/guardhome/internal/guard/services/unblock"
)

// GuardService is the service surface the control API exposes over HTTP.
type GuardService interface {
	Check(ctx context.Context, raw string) (domain.CheckResult, error)
	Unblock(ctx context.Context, raw string) (unblock.Result, error)
	ReplaceRules(ctx context.Context, rules []string) (unblock.Result, error)
	Status(ctx context.Context) (domain.FilterStatus, error)
	Backups() ([]domain.BackupRecord, error)
	Attempts(n int) ([]domain.Attempt, error)
	Health(ctx context.Context) unblock.Health
}

const maxBodyBytes = 1 << 20 // request bodies are tiny rule lists at most

// Server exposes the control API over HTTP. It handles all protocol
// concerns (routing, timeouts, JSON encoding, error-to-status mapping)
// and delegates every decision to the guard service.
type Server struct {
	addr    string
	service GuardService
	logger  log.Logger

	mu      sync.Mutex
	running bool
	srv     *http.Server
	ln      net.Listener
}

// NewServer creates a control API server bound to addr.
func NewServer(addr string, service GuardService, logger log.Logger) *Server {
	return &Server{
		addr:    addr,
		service: service,
		logger:  logger,
	}
}

// routes wires the control API endpoints.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /control/filtering/check_host", s.instrument("check_host", s.handleCheckHost))
	mux.HandleFunc("POST /control/filtering/whitelist/add", s.instrument("whitelist_add", s.handleWhitelistAdd))
	mux.HandleFunc("GET /control/filtering/status", s.instrument("filtering_status", s.handleFilteringStatus))
	mux.HandleFunc("POST /control/filtering/set_rules", s.instrument("set_rules", s.handleSetRules))
	mux.HandleFunc("GET /control/filtering/backups", s.instrument("backups", s.handleBackups))
	mux.HandleFunc("GET /control/filtering/attempts", s.instrument("attempts", s.handleAttempts))
	mux.HandleFunc("GET /control/status", s.instrument("status", s.handleStatus))
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

// Start binds the listener and serves requests until Stop is called.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("control API server already running")
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", s.addr, err)
	}

	s.ln = ln
	s.srv = &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.running = true

	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error(map[string]any{"error": err.Error()}, "Control API server failed")
		}
	}()

	s.logger.Info(map[string]any{"address": ln.Addr().String()}, "Control API started")
	return nil
}

// Stop gracefully shuts the server down, waiting for in-flight requests
// up to the context deadline.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	err := s.srv.Shutdown(ctx)
	s.logger.Info(map[string]any{"address": s.addr}, "Control API stopped")
	return err
}

// Address returns the bound listener address, or the configured address
// before Start.
func (s *Server) Address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}
