// Package pprof runs the optional debug HTTP listener exposing
// net/http/pprof endpoints. It is hot-reloadable: Apply starts, stops or
// moves the listener according to the config it is given.
package pprof

import (
	"context"
	"errors"
	"net"
	"net/http"
	hpprof "net/http/pprof"
	"runtime"
	"sync"
	"time"

	logx "ticksched/pkg/logx"
)

// Config controls the optional pprof HTTP server.
//
// Prefer binding to localhost; the default is 127.0.0.1:6060.
type Config struct {
	Enabled              bool
	Address              string
	BlockProfileRate     int
	MutexProfileFraction int
}

func (c Config) withDefaults() Config {
	if c.Address == "" {
		c.Address = "127.0.0.1:6060"
	}
	return c
}

// Server manages lifecycle for the debug HTTP listener.
type Server struct {
	mu   sync.Mutex
	log  logx.Logger
	srv  *http.Server
	ln   net.Listener
	addr string
}

func NewServer(log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Server{log: log.With(logx.String("comp", "pprof"))}
}

// Apply starts/stops the server according to cfg and updates profile rates.
// Safe to call during hot-reload.
func (s *Server) Apply(ctx context.Context, cfg Config) {
	cfg = cfg.withDefaults()

	// Profiling knobs apply even when the server is disabled.
	runtime.SetBlockProfileRate(cfg.BlockProfileRate)
	runtime.SetMutexProfileFraction(cfg.MutexProfileFraction)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !cfg.Enabled {
		s.stopLocked(ctx)
		return
	}

	if s.srv != nil && s.addr == cfg.Address {
		return
	}

	s.stopLocked(ctx)
	s.startLocked(cfg)
}

func (s *Server) startLocked(cfg Config) {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", hpprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", hpprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", hpprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", hpprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", hpprof.Trace)

	srv := &http.Server{Addr: cfg.Address, Handler: mux}
	ln, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		s.log.Warn("pprof listen failed", logx.String("addr", cfg.Address), logx.Err(err))
		return
	}

	s.srv = srv
	s.ln = ln
	s.addr = ln.Addr().String()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Warn("pprof server error", logx.String("addr", srv.Addr), logx.Err(err))
		}
	}()
	s.log.Info("pprof enabled", logx.String("addr", s.addr))
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked(ctx)
}

func (s *Server) stopLocked(ctx context.Context) {
	if s.srv == nil {
		return
	}
	srv := s.srv
	ln := s.ln
	addr := s.addr
	s.srv = nil
	s.ln = nil
	s.addr = ""

	shutdownCtx := ctx
	if shutdownCtx == nil {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
	}

	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.log.Warn("pprof shutdown error", logx.String("addr", addr), logx.Err(err))
	}
	if ln != nil {
		_ = ln.Close()
	}
	s.log.Info("pprof disabled", logx.String("addr", addr))
}

// Addr reports the actual listen address if running.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}
