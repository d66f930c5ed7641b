// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/holoauth/internal/auth"
	"github.com/holomush/holoauth/internal/host"
	"github.com/holomush/holoauth/pkg/errutil"
)

func newAccountStore(t *testing.T) (*auth.AccountStore, *auth.State, *host.Directory) {
	t.Helper()
	state := auth.NewState()
	clock := host.NewManualClock(7)
	dir := host.NewDirectory()
	tokens := auth.NewTokenRegistry(state, clock)
	return auth.NewAccountStore(state, tokens, dir, clock), state, dir
}

func TestAccountStore_CreateDefaults(t *testing.T) {
	store, state, _ := newAccountStore(t)

	acct := store.Create("alice", "")

	assert.Equal(t, "alice", acct.Identity)
	assert.Equal(t, auth.RolePlayer, acct.Role)
	assert.False(t, acct.HasCredential())
	assert.Equal(t, auth.Tick(7), acct.CreatedAt)
	require.NotNil(t, acct.Token, "create mints an initial token")
	assert.True(t, state.Settings.Bootstrapped)
	require.NoError(t, state.Check())
}

func TestAccountStore_CreateOverwrites(t *testing.T) {
	store, state, _ := newAccountStore(t)
	first := store.Create("alice", auth.RoleAdmin)
	require.NoError(t, store.SetCredential("alice", "secret"))
	oldToken := first.TokenValue()

	second := store.Create("alice", "")

	assert.NotSame(t, first, second)
	assert.Equal(t, auth.RolePlayer, second.Role)
	assert.False(t, second.HasCredential(), "last write wins, no merge")
	assert.NotContains(t, state.Tokens, oldToken)
	assert.Equal(t, 1, store.Len())
	require.NoError(t, state.Check())
}

func TestAccountStore_Get(t *testing.T) {
	store, _, dir := newAccountStore(t)
	store.Create("alice", "")

	t.Run("unresolvable identity", func(t *testing.T) {
		_, err := store.Get(t.Context(), "alice")
		require.Error(t, err)
		assert.True(t, errors.Is(err, auth.ErrIdentityUnknown))
		errutil.AssertErrorCode(t, err, "AUTH_IDENTITY_UNKNOWN")
	})

	dir.Seed("alice", "bob")

	t.Run("resolvable with account", func(t *testing.T) {
		acct, err := store.Get(t.Context(), "alice")
		require.NoError(t, err)
		assert.Equal(t, "alice", acct.Identity)
	})

	t.Run("resolvable without account", func(t *testing.T) {
		_, err := store.Get(t.Context(), "bob")
		require.Error(t, err)
		assert.True(t, errors.Is(err, auth.ErrNotFound))
		errutil.AssertErrorContext(t, err, "identity", "bob")
	})
}

func TestAccountStore_SetCredential(t *testing.T) {
	store, state, _ := newAccountStore(t)
	store.Create("alice", "")

	require.NoError(t, store.SetCredential("alice", "secret"))
	assert.Equal(t, auth.CredentialDigest("alice", "secret"), state.Accounts["alice"].CredentialHash)

	err := store.SetCredential("nobody", "secret")
	assert.True(t, errors.Is(err, auth.ErrNotFound))
}

func TestAccountStore_SetRole(t *testing.T) {
	store, state, _ := newAccountStore(t)
	store.Create("alice", "")

	require.NoError(t, store.SetRole("alice", "builder"))
	assert.Equal(t, "builder", state.Accounts["alice"].Role)

	require.NoError(t, store.SetRole("alice", ""))
	assert.Equal(t, auth.RolePlayer, state.Accounts["alice"].Role)

	assert.Error(t, store.SetRole("nobody", auth.RoleAdmin))
}

func TestAccountStore_Identities(t *testing.T) {
	store, _, _ := newAccountStore(t)
	store.Create("carol", "")
	store.Create("alice", "")
	store.Create("bob", "")

	assert.Equal(t, []string{"alice", "bob", "carol"}, store.Identities())
}

func TestBootstrapPolicy_RoleFor(t *testing.T) {
	policy := auth.BootstrapPolicy{}
	state := auth.NewState()
	assert.Equal(t, auth.RoleAdmin, policy.RoleFor(state))

	state.Accounts["alice"] = &auth.Account{Identity: "alice", Role: auth.RoleAdmin}
	assert.Equal(t, auth.RolePlayer, policy.RoleFor(state))

	bootstrapped := auth.NewState()
	bootstrapped.Settings.Bootstrapped = true
	assert.Equal(t, auth.RolePlayer, policy.RoleFor(bootstrapped))
}
