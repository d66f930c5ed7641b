// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package host

import (
	"context"
	"crypto/rand"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// IdentityEvent reports an identity seen by the host for the first time.
type IdentityEvent struct {
	ID       ulid.ULID
	Identity string
	At       time.Time
}

// subscriberBuffer is the per-subscriber event buffer.
const subscriberBuffer = 64

var (
	entropy     = ulid.Monotonic(rand.Reader, 0)
	entropyLock sync.Mutex
)

// NewULID generates a new ULID.
func NewULID() ulid.ULID {
	entropyLock.Lock()
	defer entropyLock.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
}

// Directory is an in-memory identity source.
// It resolves identities it has seen and publishes an IdentityEvent the
// first time each identity joins.
type Directory struct {
	mu    sync.RWMutex
	known map[string]struct{}
	subs  []chan IdentityEvent
}

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return &Directory{known: make(map[string]struct{})}
}

// Seed registers identities without publishing events.
// Used on reload so accounts restored from state resolve again.
func (d *Directory) Seed(identities ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, id := range identities {
		if id = normalize(id); id != "" {
			d.known[id] = struct{}{}
		}
	}
}

// Join records an identity. The event is published only on first sight;
// first reports whether this call was that first sight.
func (d *Directory) Join(_ context.Context, ref string) (event IdentityEvent, first bool) {
	id := normalize(ref)
	if id == "" {
		return IdentityEvent{}, false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, seen := d.known[id]; seen {
		return IdentityEvent{}, false
	}
	d.known[id] = struct{}{}

	event = IdentityEvent{ID: NewULID(), Identity: id, At: time.Now()}
	for _, ch := range d.subs {
		select {
		case ch <- event:
		default:
			slog.Warn("identity event dropped: subscriber buffer full",
				"event_id", event.ID.String(),
				"identity", id,
			)
		}
	}
	return event, true
}

// ResolveIdentity returns the identity for ref if the directory knows it.
func (d *Directory) ResolveIdentity(_ context.Context, ref string) (string, bool) {
	id := normalize(ref)
	if id == "" {
		return "", false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.known[id]
	return id, ok
}

// Subscribe returns a channel receiving first-seen events.
func (d *Directory) Subscribe() chan IdentityEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	ch := make(chan IdentityEvent, subscriberBuffer)
	d.subs = append(d.subs, ch)
	return ch
}

// Unsubscribe removes and closes a subscription channel.
func (d *Directory) Unsubscribe(ch chan IdentityEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, sub := range d.subs {
		if sub == ch {
			d.subs = append(d.subs[:i], d.subs[i+1:]...)
			close(ch)
			return
		}
	}
}

func normalize(ref string) string {
	return strings.TrimSpace(ref)
}
