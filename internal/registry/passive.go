// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hermod Contributors

package registry

import (
	"sort"

	"github.com/gobwas/glob"
	"github.com/samber/oops"

	"github.com/hermodbot/hermod/internal/classify"
)

// MessageEntry is one handler in the passive message chain.
type MessageEntry struct {
	Owner    string
	Priority int
	Filter   func(ic *classify.Context) bool
	Fn       MessageHandler
}

// keyedEntry is a reaction/poll/button/list handler matched by glob key.
type keyedEntry struct {
	owner   string
	pattern string
	g       glob.Glob
	fn      Handler
}

// passiveTables indexes handlers not addressed by name. Owned by the
// registry; entries are removed by owner on unload and rebuilt on reload.
type passiveTables struct {
	messages  []MessageEntry
	reactions []keyedEntry
	polls     []keyedEntry
	buttons   []keyedEntry
	lists     []keyedEntry
}

func (t *passiveTables) add(def *Definition) error {
	tables := []struct {
		src  map[string]Handler
		dst  *[]keyedEntry
		kind string
	}{
		{def.Reactions, &t.reactions, "reaction"},
		{def.Polls, &t.polls, "poll"},
		{def.Buttons, &t.buttons, "button"},
		{def.Lists, &t.lists, "list"},
	}

	// Compile every pattern before touching any table: a bad key rejects the
	// whole definition without leaving partial entries no unload could reach.
	type staged struct {
		dst   *[]keyedEntry
		entry keyedEntry
	}
	var pending []staged
	for _, tb := range tables {
		for pattern, fn := range tb.src {
			g, err := glob.Compile(pattern)
			if err != nil {
				return oops.Code(CodeInvalidPattern).
					With("plugin", def.ownerKey).
					With("kind", tb.kind).
					With("pattern", pattern).
					Wrap(err)
			}
			pending = append(pending, staged{
				dst: tb.dst,
				entry: keyedEntry{
					owner:   def.ownerKey,
					pattern: pattern,
					g:       g,
					fn:      fn,
				},
			})
		}
	}

	if def.OnMessage != nil {
		t.messages = append(t.messages, MessageEntry{
			Owner:    def.ownerKey,
			Priority: def.Priority,
			Filter:   def.MessageFilter,
			Fn:       def.OnMessage,
		})
		sort.SliceStable(t.messages, func(i, j int) bool {
			return t.messages[i].Priority > t.messages[j].Priority
		})
	}
	for _, p := range pending {
		*p.dst = append(*p.dst, p.entry)
	}
	return nil
}

func (t *passiveTables) removeOwner(owner string) {
	t.messages = filterMessages(t.messages, owner)
	t.reactions = filterKeyed(t.reactions, owner)
	t.polls = filterKeyed(t.polls, owner)
	t.buttons = filterKeyed(t.buttons, owner)
	t.lists = filterKeyed(t.lists, owner)
}

func filterMessages(entries []MessageEntry, owner string) []MessageEntry {
	kept := entries[:0]
	for _, e := range entries {
		if e.Owner != owner {
			kept = append(kept, e)
		}
	}
	return kept
}

func filterKeyed(entries []keyedEntry, owner string) []keyedEntry {
	kept := entries[:0]
	for _, e := range entries {
		if e.owner != owner {
			kept = append(kept, e)
		}
	}
	return kept
}

func matchKeyed(entries []keyedEntry, key string) []Handler {
	var out []Handler
	for _, e := range entries {
		if e.g.Match(key) {
			out = append(out, e.fn)
		}
	}
	return out
}

// MessageHandlers returns the passive message chain, priority-ordered.
func (r *Registry) MessageHandlers() []MessageEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]MessageEntry, len(r.passive.messages))
	copy(out, r.passive.messages)
	return out
}

// ReactionHandlers returns handlers whose key pattern matches the emoji.
func (r *Registry) ReactionHandlers(emoji string) []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return matchKeyed(r.passive.reactions, emoji)
}

// PollHandlers returns handlers whose key pattern matches the poll id.
func (r *Registry) PollHandlers(pollID string) []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return matchKeyed(r.passive.polls, pollID)
}

// ButtonHandlers returns handlers whose key pattern matches the button id.
func (r *Registry) ButtonHandlers(id string) []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return matchKeyed(r.passive.buttons, id)
}

// ListHandlers returns handlers whose key pattern matches the list row id.
func (r *Registry) ListHandlers(id string) []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return matchKeyed(r.passive.lists, id)
}
