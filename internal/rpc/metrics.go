// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package rpc

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// RequestsTotal counts handled calls by method and status code.
var RequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "holoauth_rpc_requests_total",
		Help: "Total number of RPC calls by method and status code",
	},
	[]string{"method", "code"},
)

// RequestDuration observes call latency by method.
var RequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "holoauth_rpc_request_duration_seconds",
		Help:    "RPC call latency in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"method"},
)

// RegisterMetrics registers RPC metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(RequestsTotal)
	reg.MustRegister(RequestDuration)
}

// observe records metrics and a debug log line for every unary call.
func observe(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	elapsed := time.Since(start)

	code := status.Code(err)
	RequestsTotal.WithLabelValues(info.FullMethod, code.String()).Inc()
	RequestDuration.WithLabelValues(info.FullMethod).Observe(elapsed.Seconds())
	slog.DebugContext(ctx, "rpc handled",
		"method", info.FullMethod,
		"code", code.String(),
		"duration", elapsed,
	)
	return resp, err
}
