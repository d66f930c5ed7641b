// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// DigestLength is the length of every digest string (hex-encoded SHA-256).
const DigestLength = sha256.Size * 2

// Digest returns the lowercase hex SHA-256 of data.
func Digest(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// CredentialDigest computes the stored credential hash for identity and password.
func CredentialDigest(identity, password string) string {
	return Digest([]byte(identity + ":" + password))
}

// TokenDigest derives a token value from identity, the stored credential
// hash (empty when none is set) and the tick it is minted at.
func TokenDigest(identity, secret string, tick Tick) string {
	return Digest([]byte(identity + ":" + secret + ":" + strconv.FormatUint(uint64(tick), 10)))
}

// tokenDigestAttempt re-derives a token value with a collision counter appended.
func tokenDigestAttempt(identity, secret string, tick Tick, attempt int) string {
	if attempt == 0 {
		return TokenDigest(identity, secret, tick)
	}
	return Digest([]byte(identity + ":" + secret + ":" + strconv.FormatUint(uint64(tick), 10) + ":" + strconv.Itoa(attempt)))
}
