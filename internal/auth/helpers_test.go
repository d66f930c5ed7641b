// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/holomush/holoauth/internal/auth"
	"github.com/holomush/holoauth/internal/host"
)

// fixture bundles a service with its collaborators.
type fixture struct {
	svc   *auth.Service
	state *auth.State
	dir   *host.Directory
	clock *host.ManualClock
	logs  *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		state: auth.NewState(),
		dir:   host.NewDirectory(),
		clock: host.NewManualClock(1000),
		logs:  &bytes.Buffer{},
	}
	logger := slog.New(slog.NewJSONHandler(f.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	svc, err := auth.NewService(f.state, f.dir, f.clock, auth.WithLogger(logger))
	require.NoError(t, err)
	f.svc = svc
	return f
}

// join makes identity known to the host and creates its account.
func (f *fixture) join(t *testing.T, identity string) *auth.Account {
	t.Helper()
	f.dir.Seed(identity)
	acct, err := f.svc.HandleIdentitySeen(t.Context(), identity)
	require.NoError(t, err)
	return acct
}

// login sets a password on a fresh account and authenticates with it.
func (f *fixture) login(t *testing.T, identity, password string) string {
	t.Helper()
	require.True(t, f.svc.SetPassword(t.Context(), identity, password, "anything"))
	res := f.svc.Authenticate(t.Context(), identity, password)
	require.Equal(t, auth.OutcomeToken, res.Outcome)
	return res.Token
}
