// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hermod Contributors

// Package hooks provides the ordered lifecycle-event bus plugins subscribe to.
package hooks

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/hermodbot/hermod/internal/classify"
)

// Event names a lifecycle extension point.
type Event string

// Lifecycle events published by the dispatcher and registry.
const (
	BeforeCommand      Event = "beforeCommand"
	AfterCommand       Event = "afterCommand"
	OnError            Event = "onError"
	OnPermissionDenied Event = "onPermissionDenied"
	OnGroupJoin        Event = "onGroupJoin"
	OnGroupLeave       Event = "onGroupLeave"
	PluginLoaded       Event = "pluginLoaded"
	PluginUnloaded     Event = "pluginUnloaded"
	PluginError        Event = "pluginError"
)

// Payload carries the context of the lifecycle event being published.
// Fields are set as applicable: Command for command-scoped events,
// Invocation when a classified context exists, Err for error events,
// Reason for admission denials.
type Payload struct {
	Command    string
	Plugin     string
	Invocation *classify.Context
	Err        error
	Reason     string
	Data       map[string]any
}

// Result is returned by a hook callback. Abort stops the dispatch pipeline
// for pre-execution events; it is ignored for notification-only events.
type Result struct {
	Abort bool
}

// Func is a hook callback. Errors are absorbed and logged; a failing hook
// never breaks the dispatch it observes.
type Func func(ctx context.Context, p *Payload) (Result, error)

type subscription struct {
	owner    string
	priority int
	seq      int
	fn       Func
}

// Bus is the priority-ordered publish mechanism for lifecycle events.
// Subscriptions are grouped by event and invoked in descending priority;
// equal priorities run in subscription order.
type Bus struct {
	mu   sync.RWMutex
	subs map[Event][]subscription
	seq  int
}

// NewBus creates an empty hook bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Event][]subscription)}
}

// Subscribe registers a callback for an event on behalf of owner.
func (b *Bus) Subscribe(ev Event, owner string, priority int, fn Func) {
	if fn == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	subs := append(b.subs[ev], subscription{owner: owner, priority: priority, seq: b.seq, fn: fn})
	sort.SliceStable(subs, func(i, j int) bool {
		if subs[i].priority != subs[j].priority {
			return subs[i].priority > subs[j].priority
		}
		return subs[i].seq < subs[j].seq
	})
	b.subs[ev] = subs
}

// RemoveOwner drops every subscription held by owner across all events.
// Removal is transactional with respect to Publish: a concurrent publish
// sees either all of the owner's hooks or none of them.
func (b *Bus) RemoveOwner(owner string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ev, subs := range b.subs {
		kept := subs[:0]
		for _, s := range subs {
			if s.owner != owner {
				kept = append(kept, s)
			}
		}
		if len(kept) == 0 {
			delete(b.subs, ev)
			continue
		}
		b.subs[ev] = kept
	}
}

// Count returns the number of subscriptions for an event. Used by tests and
// the stats command.
func (b *Bus) Count(ev Event) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[ev])
}

// Publish invokes all subscribers of ev in priority order and reports
// whether any of them requested an abort. Callback errors are logged and
// absorbed.
func (b *Bus) Publish(ctx context.Context, ev Event, p *Payload) (aborted bool) {
	b.mu.RLock()
	subs := make([]subscription, len(b.subs[ev]))
	copy(subs, b.subs[ev])
	b.mu.RUnlock()

	for _, s := range subs {
		res, err := s.fn(ctx, p)
		if err != nil {
			slog.WarnContext(ctx, "hook callback failed",
				"event", string(ev),
				"owner", s.owner,
				"error", err,
			)
			continue
		}
		if res.Abort {
			aborted = true
		}
	}
	return aborted
}
