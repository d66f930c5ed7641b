// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import "context"

// IdentityResolver resolves an identity reference supplied by the host.
// Resolution is best effort; ok is false when the host does not know the reference.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, ref string) (identity string, ok bool)
}

// TickSource supplies the host's monotonically non-decreasing tick counter.
type TickSource interface {
	CurrentTick() Tick
}
