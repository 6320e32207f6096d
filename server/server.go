// Package server provides the operational HTTP endpoints of a service
// instrumented with strata: lost-event metrics, health and readiness, and
// pprof profiling.
package server

import (
	"context"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/kzs0/strata"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server serves the operational endpoints.
type Server struct {
	store           *strata.Store
	server          *http.Server
	mux             *http.ServeMux
	shutdownTimeout time.Duration
}

// Config configures the operational HTTP server.
type Config struct {
	// Addr is the address to listen on (e.g., ":9090").
	Addr string
	// EnableMetrics enables the /metrics endpoint.
	EnableMetrics bool
	// EnablePprof enables the /debug/pprof endpoints.
	EnablePprof bool

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 10 seconds
	ReadTimeout time.Duration
	// ReadHeaderTimeout protects against slow-loris attacks.
	// Default: 5 seconds
	ReadHeaderTimeout time.Duration
	// WriteTimeout must leave room for CPU profiles.
	// Default: 60 seconds
	WriteTimeout time.Duration
	// IdleTimeout is the keep-alive timeout.
	// Default: 120 seconds
	IdleTimeout time.Duration
	// ShutdownTimeout bounds Shutdown when its context has no deadline.
	// Default: 30 seconds
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a configuration with every endpoint enabled.
func DefaultConfig() Config {
	return Config{
		Addr:              ":9090",
		EnableMetrics:     true,
		EnablePprof:       true,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ShutdownTimeout:   30 * time.Second,
	}
}

// New creates the server. Metrics are gathered from gatherer, typically the
// registry a report.Recorder was created with. /ready reports whether a
// client is bound to the global scope of store; a nil store uses the
// default store.
//
// Usage:
//
//	reg := prometheus.NewRegistry()
//	recorder, _ := report.NewRecorder(reg)
//	ops := server.New(reg, nil, server.DefaultConfig())
//	go ops.ListenAndServe()
func New(gatherer prometheus.Gatherer, store *strata.Store, cfg Config) *Server {
	if store == nil {
		store = strata.DefaultStore()
	}
	defaults := DefaultConfig()
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = defaults.ReadTimeout
	}
	if cfg.ReadHeaderTimeout == 0 {
		cfg.ReadHeaderTimeout = defaults.ReadHeaderTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = defaults.IdleTimeout
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = defaults.ShutdownTimeout
	}

	s := &Server{
		store:           store,
		mux:             http.NewServeMux(),
		shutdownTimeout: cfg.ShutdownTimeout,
	}

	if cfg.EnableMetrics && gatherer != nil {
		s.mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	if cfg.EnablePprof {
		s.mux.HandleFunc("/debug/pprof/", pprof.Index)
		s.mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		s.mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		s.mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		s.mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	s.mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	s.mux.HandleFunc("/ready", s.ready)

	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.mux,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
	return s
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	if !s.store.Client(r.Context()).IsActive() {
		http.Error(w, "no client bound", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// ListenAndServe starts the server.
func (s *Server) ListenAndServe() error {
	return s.server.ListenAndServe()
}

// Serve starts the server on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	return s.server.Serve(ln)
}

// Shutdown gracefully shuts down the server. Without a deadline on ctx the
// configured ShutdownTimeout applies.
func (s *Server) Shutdown(ctx context.Context) error {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && s.shutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.shutdownTimeout)
		defer cancel()
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for use with custom servers.
func (s *Server) Handler() http.Handler {
	return s.mux
}
