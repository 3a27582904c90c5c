// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hermod Contributors

package classify

import (
	"sync"
	"time"
)

const (
	defaultDedupTTL = 2 * time.Minute
	defaultDedupCap = 4096
)

// dedup is a short-TTL set of recently processed message ids, guarding
// against the transport delivering the same event twice. Expired entries are
// pruned lazily on insert.
type dedup struct {
	mu      sync.Mutex
	ttl     time.Duration
	cap     int
	now     func() time.Time
	entries map[string]time.Time
}

func newDedup(ttl time.Duration, capacity int, now func() time.Time) *dedup {
	if ttl <= 0 {
		ttl = defaultDedupTTL
	}
	if capacity <= 0 {
		capacity = defaultDedupCap
	}
	if now == nil {
		now = time.Now
	}
	return &dedup{
		ttl:     ttl,
		cap:     capacity,
		now:     now,
		entries: make(map[string]time.Time),
	}
}

// Seen records id and reports whether it was already present within the TTL.
func (d *dedup) Seen(id string) bool {
	if id == "" {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if at, ok := d.entries[id]; ok && now.Sub(at) < d.ttl {
		return true
	}
	d.entries[id] = now

	if len(d.entries) > d.cap {
		threshold := now.Add(-d.ttl)
		for k, at := range d.entries {
			if at.Before(threshold) {
				delete(d.entries, k)
			}
		}
	}
	return false
}
