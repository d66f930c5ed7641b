// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

// TokenRegistry maps token values to accounts and owns token issuance.
// It is not safe for concurrent use; Service serializes access.
type TokenRegistry struct {
	state  *State
	clock  TickSource
	minted map[string]mintMark // identity → last issuance
}

// mintMark is the tick an identity last had a token minted in and the next
// derivation attempt not yet used in that tick.
type mintMark struct {
	tick Tick
	next int
}

// NewTokenRegistry creates a registry over the state's token map.
func NewTokenRegistry(state *State, clock TickSource) *TokenRegistry {
	return &TokenRegistry{state: state, clock: clock, minted: make(map[string]mintMark)}
}

// Issue replaces the account's token with a freshly minted one and returns its value.
// The old token is revoked before the new one is registered.
func (r *TokenRegistry) Issue(acct *Account) string {
	previous := acct.TokenValue()
	if previous != "" {
		r.revoke(previous, RevokeSuperseded)
	}

	now := r.clock.CurrentTick()
	// Attempts already used for this identity in this tick may have minted
	// values that were since revoked; they must never be derived again.
	attempt := 0
	if mark, ok := r.minted[acct.Identity]; ok && mark.tick == now {
		attempt = mark.next
	}
	value := tokenDigestAttempt(acct.Identity, acct.CredentialHash, now, attempt)
	for r.taken(value) {
		attempt++
		value = tokenDigestAttempt(acct.Identity, acct.CredentialHash, now, attempt)
	}
	r.minted[acct.Identity] = mintMark{tick: now, next: attempt + 1}

	acct.Token = &Token{Value: value, IssuedAt: now}
	r.state.Tokens[value] = acct
	TokensIssued.Inc()
	return value
}

// Revoke removes a token from the registry and clears its account's pointer.
// Empty or unknown values are a no-op.
func (r *TokenRegistry) Revoke(value string) {
	r.revoke(value, RevokeExplicit)
}

func (r *TokenRegistry) revoke(value, reason string) {
	if value == "" {
		return
	}
	acct, ok := r.state.Tokens[value]
	if !ok {
		return
	}
	delete(r.state.Tokens, value)
	if acct.Token != nil && acct.Token.Value == value {
		acct.Token = nil
	}
	recordRevoked(reason)
}

// Lookup returns the account a token value belongs to.
func (r *TokenRegistry) Lookup(value string) (*Account, bool) {
	if value == "" {
		return nil, false
	}
	acct, ok := r.state.Tokens[value]
	return acct, ok
}

// IsLive reports whether value resolves to an account and has not expired at now.
// An expired token is revoked as a side effect.
func (r *TokenRegistry) IsLive(value string, now Tick) bool {
	acct, ok := r.Lookup(value)
	if !ok || acct.Token == nil {
		return false
	}
	if acct.Token.IsLiveAt(now) {
		return true
	}
	r.revoke(value, RevokeExpired)
	return false
}

// Sweep revokes every token expired at now and returns how many were removed.
func (r *TokenRegistry) Sweep(now Tick) int {
	var expired []string
	for value, acct := range r.state.Tokens {
		if acct.Token == nil || !acct.Token.IsLiveAt(now) {
			expired = append(expired, value)
		}
	}
	for _, value := range expired {
		r.revoke(value, RevokeExpired)
	}
	return len(expired)
}

// Len returns the number of registered tokens.
func (r *TokenRegistry) Len() int {
	return len(r.state.Tokens)
}

func (r *TokenRegistry) taken(value string) bool {
	_, ok := r.state.Tokens[value]
	return ok
}
