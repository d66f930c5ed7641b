// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package host

import (
	"context"
	"log/slog"

	"github.com/samber/oops"

	"github.com/holomush/holoauth/internal/auth"
)

// AccountCreator handles first-seen identities.
type AccountCreator interface {
	HandleIdentitySeen(ctx context.Context, identity string) (*auth.Account, error)
}

// Intake turns "user joined" notifications into accounts.
type Intake struct {
	dir     *Directory
	creator AccountCreator
}

// NewIntake creates an intake feeding creator from dir.
func NewIntake(dir *Directory, creator AccountCreator) (*Intake, error) {
	if dir == nil {
		return nil, oops.Code("HOST_INVALID_INTAKE").Errorf("directory is required")
	}
	if creator == nil {
		return nil, oops.Code("HOST_INVALID_INTAKE").Errorf("account creator is required")
	}
	return &Intake{dir: dir, creator: creator}, nil
}

// Join records that ref joined. On first sight the account is created
// before Join returns; created reports whether that happened.
func (i *Intake) Join(ctx context.Context, ref string) (created bool, err error) {
	event, first := i.dir.Join(ctx, ref)
	if !first {
		slog.DebugContext(ctx, "identity rejoined", "identity", ref)
		return false, nil
	}
	if _, err := i.creator.HandleIdentitySeen(ctx, event.Identity); err != nil {
		return false, oops.Code("HOST_JOIN_FAILED").
			With("event_id", event.ID.String()).
			With("identity", event.Identity).
			Wrap(err)
	}
	return true, nil
}
