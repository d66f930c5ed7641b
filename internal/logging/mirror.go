// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package logging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// mirrorBuffer is the per-console line buffer.
const mirrorBuffer = 256

// Mirror is a slog.Handler that passes records to an inner handler and, while
// enabled, also renders each record as one line for every subscribed console.
// Slow consoles drop lines rather than block logging.
type Mirror struct {
	inner  slog.Handler
	hub    *mirrorHub
	attrs  []slog.Attr
	groups []string
}

type mirrorHub struct {
	enabled atomic.Bool
	mu      sync.RWMutex
	subs    map[chan string]struct{}
}

// NewMirror wraps inner. The mirror starts disabled.
func NewMirror(inner slog.Handler) *Mirror {
	return &Mirror{
		inner: inner,
		hub:   &mirrorHub{subs: make(map[chan string]struct{})},
	}
}

// SetEnabled turns mirroring on or off for every handler derived from m.
func (m *Mirror) SetEnabled(enabled bool) {
	m.hub.enabled.Store(enabled)
}

// IsEnabled reports whether mirroring is on.
func (m *Mirror) IsEnabled() bool {
	return m.hub.enabled.Load()
}

// Subscribe returns a channel of mirrored lines and a cancel func that
// unsubscribes and closes the channel.
func (m *Mirror) Subscribe() (<-chan string, func()) {
	ch := make(chan string, mirrorBuffer)
	m.hub.mu.Lock()
	m.hub.subs[ch] = struct{}{}
	m.hub.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.hub.mu.Lock()
			delete(m.hub.subs, ch)
			m.hub.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Subscribers returns the number of subscribed consoles.
func (m *Mirror) Subscribers() int {
	m.hub.mu.RLock()
	defer m.hub.mu.RUnlock()
	return len(m.hub.subs)
}

// Enabled reports whether the inner handler or the mirror wants the level.
func (m *Mirror) Enabled(ctx context.Context, level slog.Level) bool {
	if m.hub.enabled.Load() {
		return true
	}
	return m.inner.Enabled(ctx, level)
}

// Handle writes the record to the inner handler and mirrors it when enabled.
func (m *Mirror) Handle(ctx context.Context, r slog.Record) error {
	if m.hub.enabled.Load() {
		m.hub.publish(m.render(r))
	}
	if !m.inner.Enabled(ctx, r.Level) {
		return nil
	}
	//nolint:wrapcheck // Handler interface requires unwrapped error passthrough
	return m.inner.Handle(ctx, r)
}

// WithAttrs returns a handler carrying attrs on both paths.
func (m *Mirror) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Mirror{
		inner:  m.inner.WithAttrs(attrs),
		hub:    m.hub,
		attrs:  append(append([]slog.Attr(nil), m.attrs...), m.qualify(attrs)...),
		groups: m.groups,
	}
}

// WithGroup returns a handler nesting later attrs under name.
func (m *Mirror) WithGroup(name string) slog.Handler {
	if name == "" {
		return m
	}
	return &Mirror{
		inner:  m.inner.WithGroup(name),
		hub:    m.hub,
		attrs:  m.attrs,
		groups: append(append([]string(nil), m.groups...), name),
	}
}

func (m *Mirror) qualify(attrs []slog.Attr) []slog.Attr {
	if len(m.groups) == 0 {
		return attrs
	}
	prefix := strings.Join(m.groups, ".") + "."
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = slog.Attr{Key: prefix + a.Key, Value: a.Value}
	}
	return out
}

// render formats a record as "15:04:05 LEVEL message key=value ...".
func (m *Mirror) render(r slog.Record) string {
	var b strings.Builder
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	fmt.Fprintf(&b, "%s %s %s", ts.Format(time.TimeOnly), r.Level.String(), r.Message)
	for _, a := range m.attrs {
		writeAttr(&b, a)
	}
	var recAttrs []slog.Attr
	r.Attrs(func(a slog.Attr) bool {
		recAttrs = append(recAttrs, a)
		return true
	})
	for _, a := range m.qualify(recAttrs) {
		writeAttr(&b, a)
	}
	return b.String()
}

func writeAttr(b *strings.Builder, a slog.Attr) {
	if a.Equal(slog.Attr{}) {
		return
	}
	fmt.Fprintf(b, " %s=%v", a.Key, a.Value.Resolve().Any())
}

func (h *mirrorHub) publish(line string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- line:
		default:
		}
	}
}
