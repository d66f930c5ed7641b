// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

// NoCredentialSentinel is the placeholder older callers receive instead of a
// token when an account exists but has no password yet.
const NoCredentialSentinel = "DEADBEEF"

// Outcome is the kind of result an authentication attempt produced.
type Outcome int

const (
	// OutcomeFailed means the identity was unknown or the password did not match.
	OutcomeFailed Outcome = iota
	// OutcomeToken means a token was issued.
	OutcomeToken
	// OutcomeNoCredentialSet means the account exists but has no password.
	OutcomeNoCredentialSet
)

func (o Outcome) String() string {
	switch o {
	case OutcomeToken:
		return "token"
	case OutcomeNoCredentialSet:
		return "no_credential"
	default:
		return "failed"
	}
}

// Result is the outcome of Authenticate. Token is set only for OutcomeToken.
type Result struct {
	Outcome Outcome
	Token   string
}

// OK reports whether the attempt counts as authenticated, which includes
// an account with no credential set.
func (r Result) OK() bool {
	return r.Outcome == OutcomeToken || r.Outcome == OutcomeNoCredentialSet
}

// Wire renders the result in its compatibility form: the token string,
// NoCredentialSentinel, or false.
func (r Result) Wire() any {
	switch r.Outcome {
	case OutcomeToken:
		return r.Token
	case OutcomeNoCredentialSet:
		return NoCredentialSentinel
	default:
		return false
	}
}
