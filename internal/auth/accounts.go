// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"sort"

	"github.com/samber/oops"
)

// AccountStore maps identities to accounts and owns account lifecycle.
// It is not safe for concurrent use; Service serializes access.
type AccountStore struct {
	state    *State
	tokens   *TokenRegistry
	resolver IdentityResolver
	clock    TickSource
}

// NewAccountStore creates an account store over the state's account map.
func NewAccountStore(state *State, tokens *TokenRegistry, resolver IdentityResolver, clock TickSource) *AccountStore {
	return &AccountStore{
		state:    state,
		tokens:   tokens,
		resolver: resolver,
		clock:    clock,
	}
}

// Get looks up the account for an identity.
// Returns ErrIdentityUnknown if the identity source cannot resolve it and
// ErrNotFound if it resolves but has no account.
func (s *AccountStore) Get(ctx context.Context, identity string) (*Account, error) {
	resolved, ok := s.resolver.ResolveIdentity(ctx, identity)
	if !ok {
		return nil, oops.Code("AUTH_IDENTITY_UNKNOWN").
			With("identity", identity).
			Wrap(ErrIdentityUnknown)
	}
	acct, ok := s.state.Accounts[resolved]
	if !ok {
		return nil, oops.Code("AUTH_ACCOUNT_NOT_FOUND").
			With("identity", resolved).
			Wrap(ErrNotFound)
	}
	return acct, nil
}

// Create stores a new account for identity with an initial token.
// An existing account for the identity is replaced; its token is revoked first.
func (s *AccountStore) Create(identity, role string) *Account {
	if old, ok := s.state.Accounts[identity]; ok {
		s.tokens.revoke(old.TokenValue(), RevokeSuperseded)
	}
	acct := &Account{
		Identity:  identity,
		Role:      roleOrDefault(role),
		CreatedAt: s.clock.CurrentTick(),
	}
	s.tokens.Issue(acct)
	s.state.Accounts[identity] = acct
	s.state.Settings.Bootstrapped = true
	AccountsCreated.WithLabelValues(acct.Role).Inc()
	return acct
}

// SetCredential stores the credential hash for password.
func (s *AccountStore) SetCredential(identity, password string) error {
	acct, ok := s.state.Accounts[identity]
	if !ok {
		return oops.Code("AUTH_ACCOUNT_NOT_FOUND").
			With("identity", identity).
			Wrap(ErrNotFound)
	}
	acct.CredentialHash = CredentialDigest(identity, password)
	return nil
}

// SetRole sets the account's role; an empty role means RolePlayer.
func (s *AccountStore) SetRole(identity, role string) error {
	acct, ok := s.state.Accounts[identity]
	if !ok {
		return oops.Code("AUTH_ACCOUNT_NOT_FOUND").
			With("identity", identity).
			Wrap(ErrNotFound)
	}
	acct.Role = roleOrDefault(role)
	return nil
}

// Len returns the number of accounts.
func (s *AccountStore) Len() int {
	return len(s.state.Accounts)
}

// Identities returns every account identity, sorted.
func (s *AccountStore) Identities() []string {
	ids := make([]string, 0, len(s.state.Accounts))
	for id := range s.state.Accounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
