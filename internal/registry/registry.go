// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hermod Contributors

package registry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hermodbot/hermod/internal/hooks"
)

// Registry manages plugin registration, lookup, and hot reload.
// It is an explicitly constructed instance, not a process global; tests may
// run several registries side by side.
type Registry struct {
	mu     sync.RWMutex
	prefix string
	bus    *hooks.Bus
	now    func() time.Time

	order   []*Definition          // registration order, drives match resolution
	byKey   map[string]*Definition // case-folded name and aliases
	byCat   map[string][]string    // category -> names in registration order
	byTag   map[string][]string
	passive passiveTables

	seq          int // synthetic owner keys for passive-only definitions
	loadFailures int

	// reloadMu serializes reloads; concurrent reload requests are rejected
	// rather than queued.
	reloadMu sync.Mutex
}

// Option configures a Registry during construction.
type Option func(*Registry)

// WithClock injects a time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// New creates a registry resolving commands against the given prefix.
func New(prefix string, bus *hooks.Bus, opts ...Option) *Registry {
	if bus == nil {
		bus = hooks.NewBus()
	}
	r := &Registry{
		prefix: prefix,
		bus:    bus,
		now:    time.Now,
		byKey:  make(map[string]*Definition),
		byCat:  make(map[string][]string),
		byTag:  make(map[string][]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Prefix returns the configured command prefix.
func (r *Registry) Prefix() string { return r.prefix }

// Bus returns the hook bus the registry installs plugin hooks on.
func (r *Registry) Bus() *hooks.Bus { return r.bus }

// LoadFailures returns how many definitions were rejected at load time.
func (r *Registry) LoadFailures() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loadFailures
}

// Register adds one definition owned by sourceID. Duplicate names are
// rejected, not overwritten. A definition with neither a resolvable name
// nor a passive handler is rejected.
func (r *Registry) Register(def *Definition, sourceID string) error {
	r.mu.Lock()
	err := r.register(def, sourceID)
	r.mu.Unlock()

	// Published after the lock is released: pluginLoaded subscribers may
	// call back into the registry.
	if err == nil {
		r.bus.Publish(context.Background(), hooks.PluginLoaded, &hooks.Payload{Plugin: def.ownerKey})
	}
	return err
}

func (r *Registry) register(def *Definition, sourceID string) error {
	name := deriveName(def)

	if name == "" && !def.isPassive() {
		r.loadFailures++
		return ErrMissingHandler(sourceID)
	}

	key := strings.ToLower(name)
	if name != "" {
		if existing, ok := r.byKey[key]; ok {
			r.loadFailures++
			return ErrDuplicateName(name, existing.SourceID)
		}
	}

	def.Name = name
	def.SourceID = sourceID
	def.LoadedAt = r.now()
	// A source may hand over a definition pre-disabled (manifest override);
	// anything else starts enabled.
	if def.DisabledReason == "" {
		def.Enabled = true
	}
	if def.Priority == 0 {
		def.Priority = DefaultPriority
	}
	if len(def.MessageKinds) == 0 {
		def.MessageKinds = defaultKinds()
	}
	if def.Stats == nil {
		def.Stats = NewStats()
	}

	if name != "" {
		def.ownerKey = key
	} else {
		r.seq++
		def.ownerKey = fmt.Sprintf("%s#%d", sourceID, r.seq)
	}

	if def.isCommand() && name != "" {
		pattern, err := buildPattern(r.prefix, name, def.Aliases)
		if err != nil {
			r.loadFailures++
			return err
		}
		def.pattern = pattern
	}

	if err := r.passive.add(def); err != nil {
		r.loadFailures++
		return err
	}

	r.order = append(r.order, def)
	if name != "" {
		r.byKey[key] = def
		for _, alias := range def.Aliases {
			ak := strings.ToLower(alias)
			if _, taken := r.byKey[ak]; taken {
				slog.Warn("alias shadowed by existing registration",
					"plugin", name,
					"alias", alias)
				continue
			}
			r.byKey[ak] = def
		}
	}
	if def.Category != "" && name != "" {
		r.byCat[def.Category] = append(r.byCat[def.Category], name)
	}
	for _, tag := range def.Tags {
		if name != "" {
			r.byTag[tag] = append(r.byTag[tag], name)
		}
	}

	for ev, fn := range def.Hooks {
		r.bus.Subscribe(ev, def.ownerKey, def.Priority, fn)
	}

	slog.Info("plugin registered",
		"plugin", def.ownerKey,
		"source", sourceID,
		"command", def.isCommand(),
		"passive", def.isPassive())
	return nil
}

// deriveName resolves the registration name: explicit name first, then the
// head of the alias list.
func deriveName(def *Definition) string {
	if def.Name != "" {
		return def.Name
	}
	if len(def.Aliases) > 0 {
		return def.Aliases[0]
	}
	return ""
}

// Get resolves a definition by name or alias, case-insensitively.
func (r *Registry) Get(name string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.byKey[strings.ToLower(name)]
	return def, ok
}

// All returns the registered definitions in registration order.
func (r *Registry) All() []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Definition, len(r.order))
	copy(out, r.order)
	return out
}

// Categories returns category names with at least one registered command.
func (r *Registry) Categories() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byCat))
	for cat := range r.byCat {
		out = append(out, cat)
	}
	return out
}

// ByCategory returns command names in a category, registration-ordered.
func (r *Registry) ByCategory(category string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := r.byCat[category]
	out := make([]string, len(names))
	copy(out, names)
	return out
}

// Unload removes a definition and every trace it owns: key and alias
// entries, category and tag buckets, passive handlers, hook subscriptions.
// Unloading an unknown name is a no-op.
func (r *Registry) Unload(name string) {
	r.mu.Lock()
	def, ok := r.byKey[strings.ToLower(name)]
	if ok {
		r.remove(def)
	}
	r.mu.Unlock()

	if ok {
		r.publishUnloaded(def.ownerKey)
	}
}

// UnregisterBySource removes every definition owned by sourceID.
func (r *Registry) UnregisterBySource(sourceID string) {
	r.mu.Lock()
	// Collect first: remove mutates order.
	var owned []*Definition
	for _, def := range r.order {
		if def.SourceID == sourceID {
			owned = append(owned, def)
		}
	}
	for _, def := range owned {
		r.remove(def)
	}
	r.mu.Unlock()

	for _, def := range owned {
		r.publishUnloaded(def.ownerKey)
	}
}

// publishUnloaded emits pluginUnloaded. Never called under r.mu: subscribers
// may call back into the registry.
func (r *Registry) publishUnloaded(ownerKey string) {
	r.bus.Publish(context.Background(), hooks.PluginUnloaded, &hooks.Payload{Plugin: ownerKey})
}

func (r *Registry) remove(def *Definition) {
	for i, d := range r.order {
		if d == def {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	if def.Name != "" {
		delete(r.byKey, strings.ToLower(def.Name))
		for _, alias := range def.Aliases {
			if r.byKey[strings.ToLower(alias)] == def {
				delete(r.byKey, strings.ToLower(alias))
			}
		}
		r.byCat[def.Category] = removeString(r.byCat[def.Category], def.Name)
		if len(r.byCat[def.Category]) == 0 {
			delete(r.byCat, def.Category)
		}
		for _, tag := range def.Tags {
			r.byTag[tag] = removeString(r.byTag[tag], def.Name)
			if len(r.byTag[tag]) == 0 {
				delete(r.byTag, tag)
			}
		}
	}
	r.passive.removeOwner(def.ownerKey)
	r.bus.RemoveOwner(def.ownerKey)
}

func removeString(list []string, s string) []string {
	for i, v := range list {
		if v == s {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// Disable marks a definition disabled with a reason. Disabled definitions
// stay visible for introspection but never match.
func (r *Registry) Disable(name, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	def, ok := r.byKey[strings.ToLower(name)]
	if !ok {
		return ErrUnknownPlugin(name)
	}
	def.Enabled = false
	def.DisabledReason = reason
	return nil
}

// Enable re-enables a disabled definition. Re-enabling is always an explicit
// action; a reload that satisfies a missing dependency does not re-enable
// the dependent automatically.
func (r *Registry) Enable(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	def, ok := r.byKey[strings.ToLower(name)]
	if !ok {
		return ErrUnknownPlugin(name)
	}
	def.Enabled = true
	def.DisabledReason = ""
	return nil
}

// ResolveDependencies runs after a full load pass and auto-disables any
// definition whose declared dependency is absent from the registry.
func (r *Registry) ResolveDependencies() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, def := range r.order {
		if !def.Enabled || len(def.Dependencies) == 0 {
			continue
		}
		for _, dep := range def.Dependencies {
			if _, ok := r.byKey[strings.ToLower(dep)]; !ok {
				def.Enabled = false
				def.DisabledReason = "missing dependency: " + dep
				slog.Warn("plugin disabled: unmet dependency",
					"plugin", def.Name,
					"dependency", dep)
				break
			}
		}
	}
}

// LoadSource registers every definition the source yields, then resolves
// dependencies. Individual bad definitions are logged and skipped; the rest
// of the batch proceeds.
func (r *Registry) LoadSource(src Source) error {
	defs, err := src.Definitions()
	if err != nil {
		return ErrSourceFailed(src.ID(), err)
	}

	var loaded []string
	r.mu.Lock()
	for _, def := range defs {
		if regErr := r.register(def, src.ID()); regErr != nil {
			slog.Error("failed to register plugin",
				"source", src.ID(),
				"error", regErr)
			continue
		}
		loaded = append(loaded, def.ownerKey)
	}
	r.mu.Unlock()

	for _, owner := range loaded {
		r.bus.Publish(context.Background(), hooks.PluginLoaded, &hooks.Payload{Plugin: owner})
	}

	r.ResolveDependencies()
	return nil
}

// Reload unregisters everything owned by the source, then registers the
// refreshed definitions. Only one reload runs at a time; concurrent requests
// are rejected. If the source fails, its plugins stay unloaded: a missing
// command is preferred over a stale one.
func (r *Registry) Reload(src Source) error {
	if !r.reloadMu.TryLock() {
		return ErrReloadInFlight(src.ID())
	}
	defer r.reloadMu.Unlock()

	r.UnregisterBySource(src.ID())
	if err := r.LoadSource(src); err != nil {
		slog.Error("reload failed, plugins left unloaded",
			"source", src.ID(),
			"error", err)
		return err
	}
	return nil
}
