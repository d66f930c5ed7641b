// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package host provides the collaborators the auth core consumes from its
// host environment: identity resolution, first-seen identity events, and
// the monotonic tick counter.
package host
