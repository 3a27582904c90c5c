// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hermod Contributors

package classify

import (
	"context"
	"sync"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/hermodbot/hermod/internal/breaker"
	"github.com/hermodbot/hermod/internal/transport"
)

const (
	defaultGroupTTL      = 5 * time.Minute
	metadataRetryBase    = 100 * time.Millisecond
	metadataRetryRetries = 2
)

type groupEntry struct {
	meta      *transport.GroupMetadata
	fetchedAt time.Time
}

// groupCache fronts transport.Client.GroupMetadata with a TTL cache.
// Entries are also invalidated proactively when a group-change event is
// observed, so role checks do not run a full TTL behind reality.
type groupCache struct {
	mu      sync.Mutex
	client  transport.Client
	ttl     time.Duration
	now     func() time.Time
	entries map[string]groupEntry
	brk     *breaker.Breaker
}

func newGroupCache(client transport.Client, ttl time.Duration, now func() time.Time) *groupCache {
	if ttl <= 0 {
		ttl = defaultGroupTTL
	}
	if now == nil {
		now = time.Now
	}
	return &groupCache{
		client:  client,
		ttl:     ttl,
		now:     now,
		entries: make(map[string]groupEntry),
		brk:     breaker.New(breaker.Config{Now: now}),
	}
}

// Get returns group metadata, fetching through the breaker with backoff on
// a miss or expired entry.
func (g *groupCache) Get(ctx context.Context, chat string) (*transport.GroupMetadata, error) {
	g.mu.Lock()
	if e, ok := g.entries[chat]; ok && g.now().Sub(e.fetchedAt) < g.ttl {
		g.mu.Unlock()
		return e.meta, nil
	}
	g.mu.Unlock()

	var meta *transport.GroupMetadata
	err := g.brk.Do(ctx, func(ctx context.Context) error {
		backoff := retry.WithMaxRetries(metadataRetryRetries, retry.NewFibonacci(metadataRetryBase))
		return retry.Do(ctx, backoff, func(ctx context.Context) error {
			m, err := g.client.GroupMetadata(ctx, chat)
			if err != nil {
				return retry.RetryableError(err)
			}
			meta = m
			return nil
		})
	})
	if err != nil {
		return nil, oops.Code(CodeMetadataUnavailable).With("chat", chat).Wrap(err)
	}

	g.mu.Lock()
	g.entries[chat] = groupEntry{meta: meta, fetchedAt: g.now()}
	g.mu.Unlock()
	return meta, nil
}

// Invalidate drops the cached entry for a chat.
func (g *groupCache) Invalidate(chat string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.entries, chat)
}
