// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

// Tick is the host's monotonic time unit; one tick per simulated second.
type Tick uint64

// TokenTTL is how many ticks a token stays live (five hours).
const TokenTTL Tick = 60 * 60 * 5

// Token is an opaque bearer credential.
type Token struct {
	Value    string
	IssuedAt Tick
}

// ExpiresAt returns the first tick at which the token is no longer live.
func (t *Token) ExpiresAt() Tick {
	return t.IssuedAt + TokenTTL
}

// IsLiveAt reports whether the token is live at tick now.
func (t *Token) IsLiveAt(now Tick) bool {
	return t.ExpiresAt() > now
}
