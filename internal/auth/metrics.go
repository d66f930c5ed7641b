// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for operation metrics.
const (
	outcomeSuccess      = "success"
	outcomeFailure      = "failure"
	outcomeNoCredential = "no_credential"
	outcomeDenied       = "denied"
	outcomeInvalid      = "contract_violation"
)

// Revocation reasons for token metrics.
const (
	RevokeSuperseded = "superseded"
	RevokeExpired    = "expired"
	RevokeExplicit   = "explicit"
)

// AuthOperations counts service operations by outcome.
// Use RegisterMetrics to register this with a Prometheus registry.
var AuthOperations = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "holoauth_auth_operations_total",
		Help: "Total number of auth operations by operation and outcome",
	},
	[]string{"operation", "outcome"},
)

// TokensIssued counts minted tokens.
var TokensIssued = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "holoauth_tokens_issued_total",
		Help: "Total number of tokens issued",
	},
)

// TokensRevoked counts removed tokens by reason.
var TokensRevoked = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "holoauth_tokens_revoked_total",
		Help: "Total number of tokens revoked by reason",
	},
	[]string{"reason"},
)

// AccountsCreated counts created accounts by assigned role.
var AccountsCreated = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "holoauth_accounts_created_total",
		Help: "Total number of accounts created by initial role",
	},
	[]string{"role"},
)

// RegisterMetrics registers auth package metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(AuthOperations)
	reg.MustRegister(TokensIssued)
	reg.MustRegister(TokensRevoked)
	reg.MustRegister(AccountsCreated)
}

func recordOperation(operation, outcome string) {
	AuthOperations.WithLabelValues(operation, outcome).Inc()
}

func recordRevoked(reason string) {
	TokensRevoked.WithLabelValues(reason).Inc()
}
