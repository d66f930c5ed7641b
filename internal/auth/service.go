// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"sync"

	"github.com/samber/oops"
)

// VerboseListener is notified whenever verbose mode changes.
type VerboseListener func(enabled bool)

// Service orchestrates accounts, tokens, and the bootstrap policy.
// Every public method runs under one lock, so each operation is atomic with
// respect to the shared state.
type Service struct {
	mu        sync.Mutex
	state     *State
	accounts  *AccountStore
	tokens    *TokenRegistry
	policy    BootstrapPolicy
	clock     TickSource
	logger    *slog.Logger
	onVerbose VerboseListener
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithVerboseListener registers a callback for verbose mode changes.
// The callback is invoked once at construction with the persisted setting.
func WithVerboseListener(fn VerboseListener) Option {
	return func(s *Service) {
		s.onVerbose = fn
	}
}

// NewService creates a Service that owns state.
func NewService(state *State, resolver IdentityResolver, clock TickSource, opts ...Option) (*Service, error) {
	if state == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("state is required")
	}
	if resolver == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("identity resolver is required")
	}
	if clock == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("tick source is required")
	}
	if err := state.Check(); err != nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").With("operation", "check state").Wrap(err)
	}

	tokens := NewTokenRegistry(state, clock)
	s := &Service{
		state:    state,
		tokens:   tokens,
		accounts: NewAccountStore(state, tokens, resolver, clock),
		clock:    clock,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.onVerbose != nil {
		s.onVerbose(state.Settings.Verbose)
	}
	return s, nil
}

// HandleIdentitySeen creates an account for an identity seen for the first time.
// The role comes from the bootstrap policy. An identity that already has an
// account keeps it.
func (s *Service) HandleIdentitySeen(ctx context.Context, identity string) (*Account, error) {
	if identity == "" {
		return nil, contractViolation("identity seen", "identity")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.state.Accounts[identity]; ok {
		s.logger.DebugContext(ctx, "identity already has an account",
			"identity", identity,
			"role", existing.Role,
		)
		return existing, nil
	}

	role := s.policy.RoleFor(s.state)
	acct := s.accounts.Create(identity, role)
	s.logger.InfoContext(ctx, "account created",
		"identity", identity,
		"role", acct.Role,
		"token", shortToken(acct.TokenValue()),
	)
	return acct, nil
}

// Authenticate checks a password and issues a token on success.
func (s *Service) Authenticate(ctx context.Context, identity, password string) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, _ := s.authenticate(ctx, identity, password)
	switch res.Outcome {
	case OutcomeToken:
		recordOperation("authenticate", outcomeSuccess)
	case OutcomeNoCredentialSet:
		recordOperation("authenticate", outcomeNoCredential)
	default:
		recordOperation("authenticate", outcomeFailure)
	}
	return res
}

// authenticate also returns the resolved account, whose Identity is the
// canonical key to use for follow-up writes.
func (s *Service) authenticate(ctx context.Context, identity, password string) (Result, *Account) {
	acct, err := s.accounts.Get(ctx, identity)
	if err != nil {
		s.logger.InfoContext(ctx, "authentication failed: no such account",
			"identity", identity,
			"error", err,
		)
		return Result{Outcome: OutcomeFailed}, nil
	}

	if !acct.HasCredential() {
		s.logger.InfoContext(ctx, "authentication: account has no credential set",
			"identity", identity,
		)
		return Result{Outcome: OutcomeNoCredentialSet}, acct
	}

	computed := CredentialDigest(acct.Identity, password)
	if subtle.ConstantTimeCompare([]byte(computed), []byte(acct.CredentialHash)) != 1 {
		s.logger.InfoContext(ctx, "authentication failed: bad password",
			"identity", identity,
		)
		return Result{Outcome: OutcomeFailed}, nil
	}

	token := s.tokens.Issue(acct)
	s.logger.InfoContext(ctx, "authentication succeeded",
		"identity", identity,
		"token", shortToken(token),
	)
	return Result{Outcome: OutcomeToken, Token: token}, acct
}

// Validate reports whether token is live at the current tick.
func (s *Service) Validate(ctx context.Context, token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	live := s.validate(ctx, token)
	if live {
		recordOperation("validate", outcomeSuccess)
	} else {
		recordOperation("validate", outcomeFailure)
	}
	return live
}

func (s *Service) validate(ctx context.Context, token string) bool {
	now := s.clock.CurrentTick()
	live := s.tokens.IsLive(token, now)
	s.logger.DebugContext(ctx, "token validated",
		"token", shortToken(token),
		"tick", uint64(now),
		"live", live,
	)
	return live
}

// SetPassword replaces the credential when oldPassword authenticates.
// An account with no credential yet accepts any oldPassword.
func (s *Service) SetPassword(ctx context.Context, identity, newPassword, oldPassword string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, acct := s.authenticate(ctx, identity, oldPassword)
	if !res.OK() {
		s.logger.InfoContext(ctx, "set password refused",
			"identity", identity,
		)
		recordOperation("set_password", outcomeDenied)
		return false
	}

	if err := s.accounts.SetCredential(acct.Identity, newPassword); err != nil {
		s.logger.InfoContext(ctx, "set password failed",
			"identity", identity,
			"error", err,
		)
		recordOperation("set_password", outcomeFailure)
		return false
	}

	s.logger.InfoContext(ctx, "password set", "identity", acct.Identity)
	recordOperation("set_password", outcomeSuccess)
	return true
}

// SetRole assigns role to targetIdentity on behalf of the holder of callerToken.
// The caller must hold a live token on an admin account. An empty role means
// RolePlayer. A missing callerToken or targetIdentity returns
// ErrContractViolation.
func (s *Service) SetRole(ctx context.Context, callerToken, targetIdentity, role string) (bool, error) {
	if callerToken == "" {
		recordOperation("set_role", outcomeInvalid)
		return false, contractViolation("set role", "caller token")
	}
	if targetIdentity == "" {
		recordOperation("set_role", outcomeInvalid)
		return false, contractViolation("set role", "target identity")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.validate(ctx, callerToken) {
		s.logger.InfoContext(ctx, "set role refused: caller token not live",
			"caller_token", shortToken(callerToken),
			"target", targetIdentity,
		)
		recordOperation("set_role", outcomeDenied)
		return false, nil
	}

	caller, _ := s.tokens.Lookup(callerToken)
	if !caller.IsAdmin() {
		s.logger.InfoContext(ctx, "set role refused: caller is not admin",
			"caller", caller.Identity,
			"caller_role", caller.Role,
			"target", targetIdentity,
		)
		recordOperation("set_role", outcomeDenied)
		return false, nil
	}

	target, err := s.accounts.Get(ctx, targetIdentity)
	if err != nil {
		s.logger.InfoContext(ctx, "set role failed: no such target",
			"caller", caller.Identity,
			"target", targetIdentity,
			"error", err,
		)
		recordOperation("set_role", outcomeFailure)
		return false, nil
	}

	if err := s.accounts.SetRole(target.Identity, role); err != nil {
		s.logger.InfoContext(ctx, "set role failed",
			"caller", caller.Identity,
			"target", target.Identity,
			"error", err,
		)
		recordOperation("set_role", outcomeFailure)
		return false, nil
	}

	s.logger.InfoContext(ctx, "role set",
		"caller", caller.Identity,
		"target", target.Identity,
		"role", target.Role,
	)
	recordOperation("set_role", outcomeSuccess)
	return true, nil
}

// IsAdmin reports whether identity has an admin account.
// An empty identity returns ErrContractViolation.
func (s *Service) IsAdmin(ctx context.Context, identity string) (bool, error) {
	if identity == "" {
		recordOperation("is_admin", outcomeInvalid)
		return false, contractViolation("is admin", "identity")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acct, err := s.accounts.Get(ctx, identity)
	if err != nil {
		s.logger.DebugContext(ctx, "is admin: no such account",
			"identity", identity,
			"error", err,
		)
		recordOperation("is_admin", outcomeFailure)
		return false, nil
	}

	admin := acct.IsAdmin()
	s.logger.DebugContext(ctx, "is admin checked",
		"identity", identity,
		"admin", admin,
	)
	recordOperation("is_admin", outcomeSuccess)
	return admin, nil
}

// SetVerbose toggles mirroring of log lines to connected consoles.
func (s *Service) SetVerbose(ctx context.Context, enabled bool) {
	s.mu.Lock()
	s.state.Settings.Verbose = enabled
	listener := s.onVerbose
	s.mu.Unlock()

	if listener != nil {
		listener(enabled)
	}
	s.logger.InfoContext(ctx, "verbose mode changed", "verbose", enabled)
}

// Verbose reports whether verbose mode is on.
func (s *Service) Verbose() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Settings.Verbose
}

// Sweep revokes all tokens expired at the current tick.
func (s *Service) Sweep(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.CurrentTick()
	n := s.tokens.Sweep(now)
	if n > 0 {
		s.logger.DebugContext(ctx, "expired tokens swept", "count", n, "tick", uint64(now))
	}
	return n
}

// Snapshot returns a deep copy of the state stamped with the current tick.
func (s *Service) Snapshot() *State {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := s.state.Clone()
	cp.Settings.LastTick = s.clock.CurrentTick()
	return cp
}

// AccountSummary describes an account for listings.
type AccountSummary struct {
	Identity      string
	Role          string
	HasCredential bool
	HasToken      bool
}

// Accounts lists every account, sorted by identity.
func (s *Service) Accounts() []AccountSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.state.AccountList()
	out := make([]AccountSummary, 0, len(list))
	for _, acct := range list {
		out = append(out, AccountSummary{
			Identity:      acct.Identity,
			Role:          acct.Role,
			HasCredential: acct.HasCredential(),
			HasToken:      acct.Token != nil,
		})
	}
	return out
}

// LiveTokens returns the number of registered tokens, including ones not yet
// lazily expired.
func (s *Service) LiveTokens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens.Len()
}

// AccountCount returns the number of known accounts.
func (s *Service) AccountCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.Accounts)
}
