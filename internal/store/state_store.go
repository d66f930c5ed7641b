// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package store persists auth state between runs.
//
// A StateStore holds one snapshot: every account with its current token and
// the service settings. The token registry is not stored separately; it is
// rebuilt from the accounts on load, so a reload can never resurrect a
// token whose account no longer points at it.
package store

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"

	"github.com/holomush/holoauth/internal/auth"
)

// ErrStateAbsent is returned by Load when nothing has been persisted yet.
var ErrStateAbsent = errors.New("state absent")

// StateStore loads and saves auth state snapshots.
type StateStore interface {
	Load(ctx context.Context) (*auth.State, error)
	Save(ctx context.Context, state *auth.State) error
}

// Open loads the persisted state, or creates and saves an empty one when
// none exists. Existing state is reused as-is.
func Open(ctx context.Context, s StateStore) (*auth.State, error) {
	state, err := s.Load(ctx)
	if err == nil {
		slog.InfoContext(ctx, "auth state loaded",
			"accounts", len(state.Accounts),
			"tokens", len(state.Tokens),
			"last_tick", uint64(state.Settings.LastTick),
		)
		return state, nil
	}
	if !errors.Is(err, ErrStateAbsent) {
		return nil, oops.Code("STATE_LOAD_FAILED").With("operation", "open").Wrap(err)
	}

	state = auth.NewState()
	if err := s.Save(ctx, state); err != nil {
		return nil, oops.Code("STATE_SAVE_FAILED").With("operation", "create initial state").Wrap(err)
	}
	slog.InfoContext(ctx, "auth state created")
	return state, nil
}
