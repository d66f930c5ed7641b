// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package host

import (
	"sync"
	"time"

	"github.com/holomush/holoauth/internal/auth"
)

// ManualClock is a TickSource advanced explicitly. Useful for tests.
type ManualClock struct {
	mu   sync.Mutex
	tick auth.Tick
}

// NewManualClock creates a clock starting at start.
func NewManualClock(start auth.Tick) *ManualClock {
	return &ManualClock{tick: start}
}

// CurrentTick returns the current tick.
func (c *ManualClock) CurrentTick() auth.Tick {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tick
}

// Advance moves the clock forward by n ticks.
func (c *ManualClock) Advance(n auth.Tick) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tick += n
}

// Set moves the clock to t. Setting an earlier tick is ignored so the clock
// never runs backwards.
func (c *ManualClock) Set(t auth.Tick) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t > c.tick {
		c.tick = t
	}
}

// SecondClock ticks once per elapsed wall-clock second, counting from a base
// tick. Pass auth.State.ResumeTick as base when resuming persisted state: the
// snapshot tick alone can lag tokens issued after the last autosave, and a
// crash between autosaves would otherwise resume behind their IssuedAt.
type SecondClock struct {
	base  auth.Tick
	start time.Time
	now   func() time.Time
}

// NewSecondClock creates a clock resuming at base.
func NewSecondClock(base auth.Tick) *SecondClock {
	return newSecondClock(base, time.Now)
}

func newSecondClock(base auth.Tick, now func() time.Time) *SecondClock {
	return &SecondClock{base: base, start: now(), now: now}
}

// CurrentTick returns base plus whole seconds elapsed since construction.
func (c *SecondClock) CurrentTick() auth.Tick {
	elapsed := c.now().Sub(c.start)
	if elapsed < 0 {
		return c.base
	}
	return c.base + auth.Tick(elapsed/time.Second)
}
