// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package rpc

// SetVerboseRequest toggles verbose log mirroring.
type SetVerboseRequest struct {
	Enabled bool `json:"enabled"`
}

// SetVerboseResponse echoes the new setting.
type SetVerboseResponse struct {
	Enabled bool `json:"enabled"`
}

// AuthenticateRequest carries a password check.
type AuthenticateRequest struct {
	Identity string `json:"identity"`
	Password string `json:"password"`
}

// AuthenticateResponse reports the outcome of a password check.
// Wire holds the legacy single-value form: the token, the
// "DEADBEEF" sentinel, or false.
type AuthenticateResponse struct {
	OK           bool   `json:"ok"`
	Token        string `json:"token,omitempty"`
	NoCredential bool   `json:"no_credential,omitempty"`
	Wire         any    `json:"wire"`
}

// ValidateRequest asks whether a token is live.
type ValidateRequest struct {
	Token string `json:"token"`
}

// ValidateResponse answers a ValidateRequest.
type ValidateResponse struct {
	Valid bool `json:"valid"`
}

// SetPasswordRequest replaces an account credential.
type SetPasswordRequest struct {
	Identity    string `json:"identity"`
	NewPassword string `json:"new_password"`
	OldPassword string `json:"old_password"`
}

// SetPasswordResponse reports whether the credential changed.
type SetPasswordResponse struct {
	OK bool `json:"ok"`
}

// SetRoleRequest assigns a role on behalf of the caller token's account.
type SetRoleRequest struct {
	CallerToken string `json:"caller_token"`
	Identity    string `json:"identity"`
	Role        string `json:"role,omitempty"`
}

// SetRoleResponse reports whether the role changed.
type SetRoleResponse struct {
	OK bool `json:"ok"`
}

// IsAdminRequest asks whether an identity is an administrator.
type IsAdminRequest struct {
	Identity string `json:"identity"`
}

// IsAdminResponse answers an IsAdminRequest.
type IsAdminResponse struct {
	Admin bool `json:"admin"`
}

// JoinRequest reports an identity joining the host.
type JoinRequest struct {
	Identity string `json:"identity"`
}

// JoinResponse reports whether the join created an account.
type JoinResponse struct {
	Created bool `json:"created"`
}
