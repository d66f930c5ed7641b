// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

// Role tags. Role strings are opaque; only RoleAdmin is privileged.
const (
	RoleAdmin  = "admin"
	RolePlayer = "player"
)

// Account maps a stable identity to its role, credential, and current token.
type Account struct {
	Identity string
	Role     string
	// CredentialHash is empty until a password is set.
	CredentialHash string
	// Token is the single live token for this account, or nil.
	Token     *Token
	CreatedAt Tick
}

// HasCredential reports whether a password has been set.
func (a *Account) HasCredential() bool {
	return a.CredentialHash != ""
}

// IsAdmin reports whether the account holds the admin role.
func (a *Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// TokenValue returns the current token value, or "" when there is none.
func (a *Account) TokenValue() string {
	if a.Token == nil {
		return ""
	}
	return a.Token.Value
}

// roleOrDefault returns role, or RolePlayer when role is empty.
func roleOrDefault(role string) string {
	if role == "" {
		return RolePlayer
	}
	return role
}
