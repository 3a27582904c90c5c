// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hermod Contributors

// Package registry owns the authoritative mapping from command name or alias
// to plugin definition, and from passive-handler key to handler, with safe
// hot reload.
package registry

import (
	"context"
	"regexp"
	"sync"
	"time"

	"github.com/hermodbot/hermod/internal/classify"
	"github.com/hermodbot/hermod/internal/hooks"
	"github.com/hermodbot/hermod/internal/transport"
)

// DefaultPriority orders hooks and passive handlers when a definition does
// not declare one.
const DefaultPriority = 50

// Invocation is what a command handler receives: the raw event, the
// classified context, and the parsed argument forms.
type Invocation struct {
	Event   *transport.Event
	Context *classify.Context
	Client  transport.Client

	// MatchedAlias is the name or alias the user actually typed.
	MatchedAlias string
	// ArgsText is the remainder after the command token, flags removed.
	ArgsText string
	// Args are the whitespace-delimited non-flag tokens.
	Args []string
	// Flags holds --flag / --flag=value tokens; bare flags map to "true".
	Flags map[string]string
}

// Handler executes a matched command or keyed passive handler.
type Handler func(ctx context.Context, inv *Invocation) error

// MessageHandler processes a non-command message. Returning handled=true
// stops the passive chain.
type MessageHandler func(ctx context.Context, inv *Invocation) (handled bool, err error)

// PermissionResult is the verdict of a plugin-supplied permission hook.
// A non-nil result with Allowed=false is honored verbatim by admission.
type PermissionResult struct {
	Allowed bool
	Reason  string
	Message string
}

// Policy holds the admission-control flags and throttles of a definition.
type Policy struct {
	OwnerOnly    bool
	GroupOnly    bool
	PrivateOnly  bool
	AdminOnly    bool
	BotAdminOnly bool
	ChannelOnly  bool
	NSFWOnly     bool
	PremiumOnly  bool

	// Cooldown is the minimum gap between successful invocations per user.
	// Zero inherits the configured default.
	Cooldown time.Duration

	// RateMax and RateWindow define the per-user fixed window. Zero RateMax
	// inherits the configured default.
	RateMax    int
	RateWindow time.Duration

	RequiresMedia bool
	RequiresQuote bool
}

// Definition describes one plugin: a named command, a set of passive
// handlers, or both. Definitions are immutable once registered; only the
// registry mutates the lifecycle fields, under its own lock.
type Definition struct {
	Name        string
	DisplayName string
	Description string
	Aliases     []string
	Category    string
	Tags        []string

	Policy   Policy
	Priority int // hook/passive ordering; defaults to DefaultPriority

	// MessageKinds a command responds to. Empty defaults to text.
	MessageKinds []classify.Kind

	// Handler runs the command when the match pattern fires.
	Handler Handler

	// Hooks are lifecycle subscriptions installed on registration and
	// removed transactionally on unload.
	Hooks map[hooks.Event]hooks.Func

	// CheckPermission is the optional custom admission check, consulted
	// last in the admission order.
	CheckPermission func(ctx context.Context, ic *classify.Context) *PermissionResult

	// Dependencies are plugin names that must be present after a full load
	// pass; unmet dependencies auto-disable the definition.
	Dependencies []string

	// Passive capabilities. Keys for Reactions/Polls/Buttons/Lists are
	// glob patterns; "*" matches everything.
	OnMessage     MessageHandler
	MessageFilter func(ic *classify.Context) bool
	Reactions     map[string]Handler
	Polls         map[string]Handler
	Buttons       map[string]Handler
	Lists         map[string]Handler

	// Lifecycle metadata, owned by the registry.
	Enabled        bool
	DisabledReason string
	LoadedAt       time.Time
	SourceID       string

	Stats *Stats

	pattern  *regexp.Regexp
	ownerKey string
}

// OwnerKey identifies the definition for hook and passive-handler
// bookkeeping. It is the case-folded name, or a synthetic key for
// passive-only definitions.
func (d *Definition) OwnerKey() string { return d.ownerKey }

// isCommand reports whether the definition participates in command matching.
func (d *Definition) isCommand() bool { return d.Handler != nil }

// isPassive reports whether the definition registers any passive handler.
func (d *Definition) isPassive() bool {
	return d.OnMessage != nil || len(d.Reactions) > 0 || len(d.Polls) > 0 ||
		len(d.Buttons) > 0 || len(d.Lists) > 0
}

// supportsKind reports whether the definition accepts the canonical kind.
func (d *Definition) supportsKind(kind classify.Kind) bool {
	for _, k := range d.MessageKinds {
		if k == classify.KindAny || k == kind {
			return true
		}
	}
	return false
}

// Stats is the per-definition usage block. It has its own lock so recording
// does not contend with registry mutation.
type Stats struct {
	mu           sync.Mutex
	calls        uint64
	errors       uint64
	avgLatencyMs float64
	perUser      map[string]uint64
	perChat      map[string]uint64
}

// NewStats creates an empty stats block.
func NewStats() *Stats {
	return &Stats{
		perUser: make(map[string]uint64),
		perChat: make(map[string]uint64),
	}
}

// RecordCall counts one successful invocation and folds latency into the
// running average.
func (s *Stats) RecordCall(user, chat string, latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	n := float64(s.calls)
	s.avgLatencyMs = (s.avgLatencyMs*(n-1) + float64(latency.Milliseconds())) / n
	s.perUser[user]++
	s.perChat[chat]++
}

// RecordError counts one handler failure, independent of calls.
func (s *Stats) RecordError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors++
}

// StatsSnapshot is a point-in-time copy of a stats block.
type StatsSnapshot struct {
	Calls        uint64
	Errors       uint64
	AvgLatencyMs float64
	PerUser      map[string]uint64
	PerChat      map[string]uint64
}

// Snapshot returns a defensive copy of the stats.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	perUser := make(map[string]uint64, len(s.perUser))
	for k, v := range s.perUser {
		perUser[k] = v
	}
	perChat := make(map[string]uint64, len(s.perChat))
	for k, v := range s.perChat {
		perChat[k] = v
	}
	return StatsSnapshot{
		Calls:        s.calls,
		Errors:       s.errors,
		AvgLatencyMs: s.avgLatencyMs,
		PerUser:      perUser,
		PerChat:      perChat,
	}
}
