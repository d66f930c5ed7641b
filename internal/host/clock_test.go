// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package host

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/holomush/holoauth/internal/auth"
)

func TestManualClock(t *testing.T) {
	c := NewManualClock(10)
	assert.Equal(t, auth.Tick(10), c.CurrentTick())

	c.Advance(5)
	assert.Equal(t, auth.Tick(15), c.CurrentTick())

	c.Set(3)
	assert.Equal(t, auth.Tick(15), c.CurrentTick(), "clock never runs backwards")

	c.Set(20)
	assert.Equal(t, auth.Tick(20), c.CurrentTick())
}

func TestSecondClock(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start
	c := newSecondClock(100, func() time.Time { return now })

	assert.Equal(t, auth.Tick(100), c.CurrentTick())

	now = start.Add(1500 * time.Millisecond)
	assert.Equal(t, auth.Tick(101), c.CurrentTick())

	now = start.Add(5 * time.Hour)
	assert.Equal(t, auth.Tick(100)+auth.TokenTTL, c.CurrentTick())

	now = start.Add(-time.Minute)
	assert.Equal(t, auth.Tick(100), c.CurrentTick(), "wall clock stepping back holds the base")
}
