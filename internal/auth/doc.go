// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package auth is the authentication and authorization core for HoloAuth.
//
// # Domain Types
//
//   - Account - an identity's role, credential hash, and current token
//   - Token - a bearer value minted at a tick and live for TokenTTL ticks
//   - State - every account, the token registry, and process settings
//
// State is owned by a Service and only mutated through its operations.
// Persistence backends receive snapshots from Service.Snapshot and hand
// loaded state back through NewService.
//
// # Components
//
//   - AccountStore - identity to account mapping and account lifecycle
//   - TokenRegistry - token value to account mapping, issue and revoke
//   - BootstrapPolicy - the first account ever created becomes admin
//   - Service - authenticate, validate, set-password, set-role, is-admin
//
// # Known Weaknesses
//
// Credentials are stored as a single unsalted SHA-256 digest of
// "identity:password", and token values are a digest of
// "identity:credential:tick". Anyone who knows the credential hash and can
// guess the tick can forge a token. Both formats are kept for compatibility
// with existing persisted state and callers; a hardened deployment would
// switch credentials to a slow salted hash and tokens to random values,
// which changes the token format callers see.
package auth
