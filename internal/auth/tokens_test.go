// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/holoauth/internal/auth"
	"github.com/holomush/holoauth/internal/host"
)

func newRegistry(t *testing.T, start auth.Tick) (*auth.TokenRegistry, *auth.State, *host.ManualClock) {
	t.Helper()
	state := auth.NewState()
	clock := host.NewManualClock(start)
	return auth.NewTokenRegistry(state, clock), state, clock
}

func addAccount(state *auth.State, identity string) *auth.Account {
	acct := &auth.Account{Identity: identity, Role: auth.RolePlayer}
	state.Accounts[identity] = acct
	return acct
}

func TestTokenRegistry_IssueRegistersAndPoints(t *testing.T) {
	reg, state, _ := newRegistry(t, 500)
	acct := addAccount(state, "alice")

	value := reg.Issue(acct)

	require.NotNil(t, acct.Token)
	assert.Equal(t, value, acct.Token.Value)
	assert.Equal(t, auth.Tick(500), acct.Token.IssuedAt)
	assert.Equal(t, auth.TokenDigest("alice", "", 500), value)
	owner, ok := reg.Lookup(value)
	require.True(t, ok)
	assert.Same(t, acct, owner)
	require.NoError(t, state.Check())
}

func TestTokenRegistry_IssueTwiceRevokesFirst(t *testing.T) {
	reg, state, clock := newRegistry(t, 10)
	acct := addAccount(state, "alice")

	first := reg.Issue(acct)
	clock.Advance(1)
	second := reg.Issue(acct)

	assert.NotEqual(t, first, second)
	_, ok := reg.Lookup(first)
	assert.False(t, ok, "first token must no longer resolve")
	assert.False(t, reg.IsLive(first, clock.CurrentTick()))
	assert.True(t, reg.IsLive(second, clock.CurrentTick()))
	assert.Equal(t, 1, reg.Len())
	require.NoError(t, state.Check())
}

func TestTokenRegistry_IssueTwiceInSameTick(t *testing.T) {
	reg, state, clock := newRegistry(t, 10)
	acct := addAccount(state, "alice")

	first := reg.Issue(acct)
	second := reg.Issue(acct)

	assert.NotEqual(t, first, second, "a reissue in the same tick must still produce a fresh value")
	_, ok := reg.Lookup(first)
	assert.False(t, ok)
	assert.True(t, reg.IsLive(second, clock.CurrentTick()))
	require.NoError(t, state.Check())
}

func TestTokenRegistry_RepeatedIssueInSameTickNeverRevives(t *testing.T) {
	reg, state, clock := newRegistry(t, 500)
	acct := addAccount(state, "alice")

	var issued []string
	for range 4 {
		issued = append(issued, reg.Issue(acct))
	}
	reg.Revoke(acct.TokenValue())
	issued = append(issued, reg.Issue(acct))

	seen := make(map[string]bool)
	for _, value := range issued {
		assert.False(t, seen[value], "value %s minted twice", value)
		seen[value] = true
	}
	latest := issued[len(issued)-1]
	for _, value := range issued[:len(issued)-1] {
		assert.False(t, reg.IsLive(value, clock.CurrentTick()+1), "revoked value %s is live again", value)
	}
	assert.True(t, reg.IsLive(latest, clock.CurrentTick()+1))
	assert.Equal(t, 1, reg.Len())
	require.NoError(t, state.Check())
}

func TestTokenRegistry_NextTickStartsFresh(t *testing.T) {
	reg, state, clock := newRegistry(t, 7)
	acct := addAccount(state, "alice")

	reg.Issue(acct)
	reg.Issue(acct)
	clock.Advance(1)

	assert.Equal(t, auth.TokenDigest("alice", "", 8), reg.Issue(acct))
}

func TestTokenRegistry_Uniqueness(t *testing.T) {
	reg, state, clock := newRegistry(t, 0)
	accounts := []*auth.Account{
		addAccount(state, "alice"),
		addAccount(state, "bob"),
		addAccount(state, "carol"),
	}

	for round := 0; round < 20; round++ {
		for _, acct := range accounts {
			reg.Issue(acct)
		}
		if round%3 == 0 {
			clock.Advance(1)
		}
	}

	seen := make(map[string]string)
	for _, acct := range accounts {
		require.NotNil(t, acct.Token)
		if other, dup := seen[acct.Token.Value]; dup {
			t.Fatalf("token shared by %s and %s", other, acct.Identity)
		}
		seen[acct.Token.Value] = acct.Identity
	}
	assert.Equal(t, len(accounts), reg.Len())
	require.NoError(t, state.Check())
}

func TestTokenRegistry_RevokeIdempotent(t *testing.T) {
	reg, state, _ := newRegistry(t, 0)
	acct := addAccount(state, "alice")
	value := reg.Issue(acct)

	reg.Revoke(value)
	afterOnce := state.Clone()
	reg.Revoke(value)

	assert.Nil(t, acct.Token)
	assert.Equal(t, 0, reg.Len())
	assert.Equal(t, afterOnce.Settings, state.Settings)
	assert.Len(t, state.Tokens, len(afterOnce.Tokens))
	require.NoError(t, state.Check())
}

func TestTokenRegistry_RevokeAbsentIsNoop(t *testing.T) {
	reg, state, _ := newRegistry(t, 0)
	acct := addAccount(state, "alice")
	value := reg.Issue(acct)

	reg.Revoke("")
	reg.Revoke("not-a-token")

	assert.Equal(t, value, acct.TokenValue())
	assert.Equal(t, 1, reg.Len())
}

func TestTokenRegistry_ExpiryBoundary(t *testing.T) {
	const issued auth.Tick = 1000
	reg, state, _ := newRegistry(t, issued)
	acct := addAccount(state, "alice")
	value := reg.Issue(acct)

	assert.True(t, reg.IsLive(value, issued+auth.TokenTTL-1), "live one tick before expiry")
	assert.Equal(t, 1, reg.Len())

	assert.False(t, reg.IsLive(value, issued+auth.TokenTTL), "dead at expiry")
	_, ok := reg.Lookup(value)
	assert.False(t, ok, "lazy expiry removes the registry entry")
	assert.Nil(t, acct.Token, "lazy expiry clears the account pointer")
	require.NoError(t, state.Check())
}

func TestTokenRegistry_IsLiveUnknownHasNoSideEffect(t *testing.T) {
	reg, state, _ := newRegistry(t, 0)
	acct := addAccount(state, "alice")
	value := reg.Issue(acct)

	assert.False(t, reg.IsLive("unknown", 0))
	assert.False(t, reg.IsLive("", 0))
	assert.Equal(t, value, acct.TokenValue())
}

func TestTokenRegistry_Sweep(t *testing.T) {
	reg, state, clock := newRegistry(t, 0)
	old := addAccount(state, "old")
	fresh := addAccount(state, "fresh")
	reg.Issue(old)
	clock.Set(auth.TokenTTL)
	reg.Issue(fresh)

	removed := reg.Sweep(clock.CurrentTick())

	assert.Equal(t, 1, removed)
	assert.Nil(t, old.Token)
	assert.NotNil(t, fresh.Token)
	require.NoError(t, state.Check())
}

func TestTTLIsFiveHoursOfTicks(t *testing.T) {
	assert.Equal(t, auth.Tick(18000), auth.TokenTTL)
}
