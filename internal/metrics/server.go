package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	hpprof "net/http/pprof"
	"strings"
	"sync"
	"time"

	rtsup "konan/internal/runtime/supervisor"
	logx "konan/pkg/logx"
)

type ServerConfig struct {
	Bind  string
	Pprof bool
}

// Server exposes /metrics, /healthz and optionally /debug/pprof/ on one
// listener. An empty Bind keeps it stopped.
type Server struct {
	mu  sync.Mutex
	log logx.Logger
	m   *Metrics
	cfg ServerConfig

	sup  *rtsup.Supervisor
	addr string
}

func NewServer(m *Metrics, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Server{m: m, log: log.With(logx.String("comp", "metrics"))}
}

// Addr returns the bound listen address, or "" while not serving.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Reconfigure starts, stops or restarts the server to match cfg. Safe to
// call during hot reload.
func (s *Server) Reconfigure(ctx context.Context, cfg ServerConfig) {
	cfg.Bind = strings.TrimSpace(cfg.Bind)
	s.mu.Lock()
	prev := s.cfg
	running := s.sup != nil
	s.cfg = cfg
	s.mu.Unlock()

	switch {
	case cfg.Bind == "":
		if running {
			s.Stop(ctx)
		}
	case !running:
		s.start(ctx)
	case prev != cfg:
		s.Stop(ctx)
		s.start(ctx)
	}
}

func (s *Server) start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sup != nil || s.cfg.Bind == "" {
		return
	}
	s.sup = rtsup.New(ctx, rtsup.WithLogger(s.log), rtsup.WithCancelOnError(false))
	s.sup.GoRestart("metrics.serve", s.serveOnce, rtsup.WithRestartBackoff(500*time.Millisecond, 10*time.Second))
}

func (s *Server) Stop(ctx context.Context) {
	s.mu.Lock()
	sup := s.sup
	s.sup = nil
	s.mu.Unlock()
	if sup == nil {
		return
	}
	_ = sup.Stop(ctx)
	s.log.Info("metrics stopped")
}

func (s *Server) mux(cfg ServerConfig) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if cfg.Pprof {
		mux.HandleFunc("/debug/pprof/", hpprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", hpprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", hpprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", hpprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", hpprof.Trace)
	}
	return mux
}

func (s *Server) serveOnce(ctx context.Context) error {
	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()

	ln, err := net.Listen("tcp", cfg.Bind)
	if err != nil {
		s.log.Error("metrics listen failed", logx.String("addr", cfg.Bind), logx.Err(err))
		return err
	}
	srv := &http.Server{
		Handler:           s.mux(cfg),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		<-ctx.Done()
		cctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = srv.Shutdown(cctx)
		cancel()
	}()

	addr := ln.Addr().String()
	s.mu.Lock()
	s.addr = addr
	s.mu.Unlock()
	s.log.Info("metrics started", logx.String("addr", addr), logx.Bool("pprof", cfg.Pprof))

	err = srv.Serve(ln)

	s.mu.Lock()
	s.addr = ""
	s.mu.Unlock()
	if ctx.Err() != nil {
		return context.Canceled
	}
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return errors.New("metrics server exited unexpectedly")
	}
	return err
}
