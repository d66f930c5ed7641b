// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

// BootstrapPolicy decides the role of a newly created account.
type BootstrapPolicy struct{}

// RoleFor returns RoleAdmin when no account has ever been created, else RolePlayer.
func (BootstrapPolicy) RoleFor(state *State) string {
	if !state.Settings.Bootstrapped && len(state.Accounts) == 0 {
		return RoleAdmin
	}
	return RolePlayer
}
