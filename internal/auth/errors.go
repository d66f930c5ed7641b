// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"errors"

	"github.com/samber/oops"
)

// ErrNotFound is returned when a requested account does not exist.
var ErrNotFound = errors.New("not found")

// ErrIdentityUnknown is returned when the identity source cannot resolve an identity.
var ErrIdentityUnknown = errors.New("identity unknown")

// ErrContractViolation marks a malformed call: a required argument was missing.
// Callers must not rely on any other return value when it is returned.
var ErrContractViolation = errors.New("contract violation")

// contractViolation wraps ErrContractViolation with the offending operation and argument.
func contractViolation(operation, argument string) error {
	return oops.Code("AUTH_CONTRACT_VIOLATION").
		With("operation", operation).
		With("argument", argument).
		Wrapf(ErrContractViolation, "%s requires %s", operation, argument)
}
