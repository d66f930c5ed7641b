// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package observability exposes holoauth's Prometheus metrics and health probes.
package observability

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"
)

// ReadinessChecker reports whether serve has finished starting up.
type ReadinessChecker func() bool

// Metrics contains the process-level metrics recorded by the serve loop.
type Metrics struct {
	StateSaves  *prometheus.CounterVec
	SweptTokens prometheus.Counter
}

// NewMetrics creates and registers the serve loop metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		StateSaves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "holoauth_state_saves_total",
				Help: "Total number of state snapshots written by trigger and result",
			},
			[]string{"trigger", "result"},
		),
		SweptTokens: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "holoauth_swept_tokens_total",
				Help: "Total number of expired tokens removed by the periodic sweep",
			},
		),
	}

	reg.MustRegister(m.StateSaves)
	reg.MustRegister(m.SweptTokens)

	return m
}

// RecordSave counts one snapshot write.
func (m *Metrics) RecordSave(trigger string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.StateSaves.WithLabelValues(trigger, result).Inc()
}

// Gauges reports live counts from the auth service.
type Gauges interface {
	LiveTokens() int
	AccountCount() int
}

// RegisterGauges exposes g as gauges on reg.
func RegisterGauges(reg prometheus.Registerer, g Gauges) {
	reg.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "holoauth_live_tokens",
			Help: "Number of registered session tokens",
		},
		func() float64 { return float64(g.LiveTokens()) },
	))
	reg.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "holoauth_accounts",
			Help: "Number of known accounts",
		},
		func() float64 { return float64(g.AccountCount()) },
	))
}

// Server serves /metrics and the health probes that holoauth status reads.
// Readiness follows the serve loop: it turns on once state is loaded and the
// RPC and console listeners are bound, and off again when shutdown begins.
type Server struct {
	addr     string
	registry *prometheus.Registry
	metrics  *Metrics
	isReady  ReadinessChecker

	running    atomic.Bool
	listener   net.Listener
	httpServer *http.Server
}

// NewServer creates a server for addr with its own registry, preloaded with
// the Go runtime and process collectors and the serve loop Metrics.
// A nil isReady reports ready whenever the server is up.
func NewServer(addr string, isReady ReadinessChecker) *Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Server{
		addr:     addr,
		registry: registry,
		metrics:  NewMetrics(registry),
		isReady:  isReady,
	}
}

// Metrics returns the serve loop metrics.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Registry is where the auth and rpc packages register their collectors.
func (s *Server) Registry() prometheus.Registerer {
	return s.registry
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/healthz/liveness", s.handleLiveness)
	mux.HandleFunc("/healthz/readiness", s.handleReadiness)
	return mux
}

// Start binds addr and serves in the background. The returned channel
// carries a serve failure, if any, and is closed once the server exits.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Code("OBSERVABILITY_ALREADY_RUNNING").Errorf("observability server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.Code("OBSERVABILITY_LISTEN_FAILED").With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := httpSrv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("observability server error", "addr", listener.Addr().String(), "error", err)
			errCh <- err
		}
	}()

	slog.Info("observability server listening", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop shuts the server down, waiting for in-flight scrapes until ctx ends.
// Stopping a server that is not running is a no-op.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		// Still running; let a later Stop retry.
		s.running.Store(true)
		return oops.Code("OBSERVABILITY_STOP_FAILED").With("addr", s.Addr()).Wrap(err)
	}
	slog.Info("observability server stopped")
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	writeProbe(w, http.StatusOK, "ok")
}

func (s *Server) handleReadiness(w http.ResponseWriter, _ *http.Request) {
	if s.isReady != nil && !s.isReady() {
		writeProbe(w, http.StatusServiceUnavailable, "not ready")
		return
	}
	writeProbe(w, http.StatusOK, "ok")
}

func writeProbe(w http.ResponseWriter, code int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	//nolint:errcheck // the prober may already have gone away
	w.Write([]byte(body + "\n"))
}
