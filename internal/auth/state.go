// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"sort"

	"github.com/samber/oops"
)

// Settings holds process-wide options persisted alongside accounts.
type Settings struct {
	// Verbose mirrors log lines to connected consoles.
	Verbose bool
	// Bootstrapped is set once the first account has been created.
	Bootstrapped bool
	// LastTick is the tick at which the state was last snapshotted.
	LastTick Tick
}

// State is the complete persistent auth state.
type State struct {
	Accounts map[string]*Account // identity → account
	Tokens   map[string]*Account // token value → account
	Settings Settings
}

// NewState creates an empty state.
func NewState() *State {
	return &State{
		Accounts: make(map[string]*Account),
		Tokens:   make(map[string]*Account),
	}
}

// Restore rebuilds a state from persisted accounts.
// The token registry is derived from the accounts' tokens, so a restored
// state never holds a registry entry without its account pointer.
func Restore(accounts []*Account, settings Settings) (*State, error) {
	st := NewState()
	st.Settings = settings
	for _, acct := range accounts {
		if acct == nil || acct.Identity == "" {
			return nil, oops.Code("STATE_INVALID_ACCOUNT").Errorf("account identity cannot be empty")
		}
		if _, dup := st.Accounts[acct.Identity]; dup {
			return nil, oops.Code("STATE_DUPLICATE_ACCOUNT").
				With("identity", acct.Identity).
				Errorf("duplicate account identity")
		}
		st.Accounts[acct.Identity] = acct
		if acct.Token == nil {
			continue
		}
		if other, taken := st.Tokens[acct.Token.Value]; taken {
			return nil, oops.Code("STATE_DUPLICATE_TOKEN").
				With("identity", acct.Identity).
				With("other_identity", other.Identity).
				Errorf("token value shared by two accounts")
		}
		st.Tokens[acct.Token.Value] = acct
	}
	if len(st.Accounts) > 0 {
		st.Settings.Bootstrapped = true
	}
	return st, nil
}

// ResumeTick returns the tick a clock should start from when serving this
// state. It is one past both the snapshot tick and the newest token's issue
// tick, so a token minted after the last save is never in the future and
// no tick that already minted values is entered again.
func (s *State) ResumeTick() Tick {
	last := s.Settings.LastTick
	for _, acct := range s.Accounts {
		if acct.Token != nil && acct.Token.IssuedAt > last {
			last = acct.Token.IssuedAt
		}
	}
	return last + 1
}

// AccountList returns the accounts sorted by identity.
func (s *State) AccountList() []*Account {
	list := make([]*Account, 0, len(s.Accounts))
	for _, acct := range s.Accounts {
		list = append(list, acct)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Identity < list[j].Identity })
	return list
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	cp := NewState()
	cp.Settings = s.Settings
	for id, acct := range s.Accounts {
		dup := *acct
		if acct.Token != nil {
			tok := *acct.Token
			dup.Token = &tok
		}
		cp.Accounts[id] = &dup
	}
	for value, acct := range s.Tokens {
		cp.Tokens[value] = cp.Accounts[acct.Identity]
	}
	return cp
}

// Check verifies that accounts and the token registry point at each other.
func (s *State) Check() error {
	for id, acct := range s.Accounts {
		if acct.Identity != id {
			return oops.Code("STATE_IDENTITY_MISMATCH").
				With("key", id).
				With("identity", acct.Identity).
				Errorf("account stored under the wrong identity")
		}
		if acct.Token == nil {
			continue
		}
		if owner, ok := s.Tokens[acct.Token.Value]; !ok || owner != acct {
			return oops.Code("STATE_DANGLING_TOKEN").
				With("identity", id).
				Errorf("account token is not registered to the account")
		}
	}
	for value, acct := range s.Tokens {
		if acct == nil || acct.Token == nil || acct.Token.Value != value {
			return oops.Code("STATE_DANGLING_REGISTRY_ENTRY").
				With("token", shortToken(value)).
				Errorf("registry entry is not the current token of its account")
		}
		if s.Accounts[acct.Identity] != acct {
			return oops.Code("STATE_ORPHAN_REGISTRY_ENTRY").
				With("identity", acct.Identity).
				Errorf("registry entry points at an account outside the store")
		}
	}
	return nil
}

// shortToken returns a log-safe prefix of a token value.
func shortToken(value string) string {
	if len(value) <= 8 {
		return value
	}
	return value[:8]
}
