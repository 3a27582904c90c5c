// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hermod Contributors

package admission

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/hermodbot/hermod/internal/classify"
	"github.com/hermodbot/hermod/internal/registry"
)

// Default throttle values applied when neither the definition nor the
// configuration specifies one.
const (
	DefaultCooldown   = 3 * time.Second
	DefaultRateMax    = 10
	DefaultRateWindow = time.Minute

	// DefaultMaxTrackedUsers bounds the cooldown/window maps.
	DefaultMaxTrackedUsers = 10000

	quotaPeriod = 24 * time.Hour
)

// Config tunes the Controller.
type Config struct {
	// MessagesPerDay is the global daily quota; zero disables the check.
	MessagesPerDay int

	// Defaults applied to definitions that leave their policy zero.
	DefaultCooldown   time.Duration
	DefaultRateMax    int
	DefaultRateWindow time.Duration

	// MaxTrackedUsers bounds the per-user throttle state.
	MaxTrackedUsers int

	// Now is the clock; defaults to time.Now. Injected for tests.
	Now func() time.Time
}

// userState holds one user's throttle records. lastSeen drives eviction
// when the tracked-user bound is hit.
type userState struct {
	cooldowns map[string]time.Time   // plugin -> last successful invocation
	windows   map[string]*rateWindow // plugin -> fixed window
	lastSeen  time.Time
}

// rateWindow is a fixed window: reset wholesale when it expires, never slid.
type rateWindow struct {
	count       int
	windowStart time.Time
}

// quota is the process-wide daily counter, reset lazily on read once 24h of
// wall time have passed since the last reset.
type quota struct {
	messages   int
	broadcasts int
	marketing  int
	lastReset  time.Time
}

// QuotaSnapshot is a point-in-time copy of the daily quota counters.
type QuotaSnapshot struct {
	Messages   int
	Broadcasts int
	Marketing  int
	LastReset  time.Time
}

// Controller evaluates admission checks and records usage. A single mutex
// covers every check-then-increment sequence, so two near-simultaneous
// invocations cannot both slip past a limit between check and record.
type Controller struct {
	mu    sync.Mutex
	cfg   Config
	now   func() time.Time
	users map[string]*userState
	quota quota
}

// New creates a Controller.
func New(cfg Config) *Controller {
	if cfg.DefaultCooldown < 0 {
		cfg.DefaultCooldown = 0
	}
	if cfg.DefaultRateMax <= 0 {
		cfg.DefaultRateMax = DefaultRateMax
	}
	if cfg.DefaultRateWindow <= 0 {
		cfg.DefaultRateWindow = DefaultRateWindow
	}
	if cfg.MaxTrackedUsers <= 0 {
		cfg.MaxTrackedUsers = DefaultMaxTrackedUsers
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	c := &Controller{
		cfg:   cfg,
		now:   now,
		users: make(map[string]*userState),
	}
	c.quota.lastReset = now()
	return c
}

// CanExecute runs the admission checks in their fixed order and returns the
// first failing check. Structural checks run before throttling checks,
// before content-shape checks, before the custom hook. A throttle pass
// commits the usage immediately; a later content-shape or custom denial has
// already consumed the slot.
func (c *Controller) CanExecute(ctx context.Context, def *registry.Definition, ic *classify.Context) Decision {
	p := def.Policy

	// 1-6: structural permission and location flags.
	if p.OwnerOnly && !ic.IsOwner {
		return Deny(ReasonOwnerOnly)
	}
	if p.GroupOnly && !ic.IsGroup {
		return Deny(ReasonGroupOnly)
	}
	if p.PrivateOnly && ic.IsGroup {
		return Deny(ReasonPrivateOnly)
	}
	if p.AdminOnly && !(ic.IsOwner || (ic.IsGroup && ic.IsAdmin)) {
		return Deny(ReasonAdminOnly)
	}
	if p.BotAdminOnly && !ic.IsBotAdmin {
		return Deny(ReasonBotAdminRequired)
	}
	if p.ChannelOnly && !ic.IsChannel {
		return Deny(ReasonChannelOnly)
	}
	if p.NSFWOnly && !isNSFWGroup(ic) {
		return Deny(ReasonNSFWRequired)
	}
	if p.PremiumOnly && !(ic.IsPremium || ic.IsOwner) {
		return Deny(ReasonPremiumOnly)
	}

	// 7-9: throttling, under the controller lock.
	if d := c.checkThrottles(def, ic.Sender); !d.Allowed {
		return d
	}

	// 10: content shape.
	if p.RequiresMedia && !ic.HasMedia && !(ic.Quoted != nil && ic.Quoted.HasMedia) {
		return Deny(ReasonMediaRequired)
	}
	if p.RequiresQuote && !ic.HasQuote() {
		return Deny(ReasonQuoteRequired)
	}

	// 11: plugin-supplied custom check, honored verbatim.
	if def.CheckPermission != nil {
		if res := def.CheckPermission(ctx, ic); res != nil && !res.Allowed {
			reason := Reason(res.Reason)
			if reason == "" {
				reason = ReasonCustom
			}
			return Decision{Reason: reason, Message: res.Message}
		}
	}
	return Allow()
}

// checkThrottles evaluates cooldown, rate limit, and daily quota. On allow
// the usage is committed inside the same critical section: the cooldown
// stamp, the window increment, and the quota increment land before any
// concurrent check can observe the pre-commit state, so two near-
// simultaneous invocations cannot both pass a limit. Denied attempts never
// write state: a cooldown denial does not refresh the clock.
func (c *Controller) checkThrottles(def *registry.Definition, user string) Decision {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	plugin := def.OwnerKey()
	state := c.users[user]

	if cd := c.cooldownFor(def); cd > 0 && state != nil {
		if last, ok := state.cooldowns[plugin]; ok {
			if elapsed := now.Sub(last); elapsed < cd {
				return Decision{Reason: ReasonCooldown, RetryAfter: cd - elapsed}
			}
		}
	}

	maxCount, window := c.rateFor(def)
	if maxCount > 0 && state != nil {
		if w, ok := state.windows[plugin]; ok && now.Sub(w.windowStart) <= window {
			if w.count >= maxCount {
				return Decision{Reason: ReasonRateLimit, RetryAfter: w.windowStart.Add(window).Sub(now)}
			}
		}
	}

	if c.cfg.MessagesPerDay > 0 {
		c.rollQuota(now)
		if c.quota.messages >= c.cfg.MessagesPerDay {
			return Decision{Reason: ReasonDailyLimit, RetryAfter: c.quota.lastReset.Add(quotaPeriod).Sub(now)}
		}
	}

	// Commit. Admission pass is the use: stale windows reset implicitly on
	// the next committed use.
	state = c.userState(user, now)
	state.cooldowns[plugin] = now
	w, ok := state.windows[plugin]
	if !ok || now.Sub(w.windowStart) > window {
		state.windows[plugin] = &rateWindow{count: 1, windowStart: now}
	} else {
		w.count++
	}
	c.rollQuota(now)
	c.quota.messages++
	return Allow()
}

// RecordUsage updates the definition's stats after the handler returns. The
// throttle bookkeeping happens at admission time, so by the time the handler
// runs the cooldown and window already reflect this invocation.
func (c *Controller) RecordUsage(def *registry.Definition, user, chat string, latency time.Duration) {
	def.Stats.RecordCall(user, chat, latency)
	recordUsage(def.Name)
}

// RecordError counts a handler failure against the definition. Independent
// of RecordUsage: success means "handler returned without failing".
func (c *Controller) RecordError(def *registry.Definition, err error) {
	def.Stats.RecordError()
	recordError(def.Name, err)
}

// RecordBroadcast bumps the daily broadcast counter.
func (c *Controller) RecordBroadcast() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rollQuota(c.now())
	c.quota.broadcasts++
}

// RecordMarketing bumps the daily marketing counter.
func (c *Controller) RecordMarketing() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rollQuota(c.now())
	c.quota.marketing++
}

// Quota returns a snapshot of the daily counters after a lazy rollover
// check.
func (c *Controller) Quota() QuotaSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rollQuota(c.now())
	return QuotaSnapshot{
		Messages:   c.quota.messages,
		Broadcasts: c.quota.broadcasts,
		Marketing:  c.quota.marketing,
		LastReset:  c.quota.lastReset,
	}
}

// rollQuota resets the counters once per 24h rollover, measured from the
// last reset rather than midnight. Caller holds the lock.
func (c *Controller) rollQuota(now time.Time) {
	if now.Sub(c.quota.lastReset) > quotaPeriod {
		c.quota = quota{lastReset: now}
	}
}

func (c *Controller) userState(user string, now time.Time) *userState {
	state, ok := c.users[user]
	if !ok {
		if len(c.users) >= c.cfg.MaxTrackedUsers {
			c.evictOldest()
		}
		state = &userState{
			cooldowns: make(map[string]time.Time),
			windows:   make(map[string]*rateWindow),
		}
		c.users[user] = state
	}
	state.lastSeen = now
	return state
}

// evictOldest drops the least-recently-seen user to keep the map bounded.
// Caller holds the lock.
func (c *Controller) evictOldest() {
	var oldestKey string
	var oldest time.Time
	first := true
	for user, state := range c.users {
		if first || state.lastSeen.Before(oldest) {
			first = false
			oldest = state.lastSeen
			oldestKey = user
		}
	}
	if oldestKey != "" {
		delete(c.users, oldestKey)
	}
}

func (c *Controller) cooldownFor(def *registry.Definition) time.Duration {
	if def.Policy.Cooldown > 0 {
		return def.Policy.Cooldown
	}
	return c.cfg.DefaultCooldown
}

func (c *Controller) rateFor(def *registry.Definition) (int, time.Duration) {
	maxCount := def.Policy.RateMax
	if maxCount <= 0 {
		maxCount = c.cfg.DefaultRateMax
	}
	window := def.Policy.RateWindow
	if window <= 0 {
		window = c.cfg.DefaultRateWindow
	}
	return maxCount, window
}

// isNSFWGroup applies the "nsfw" marker heuristic: a substring match on the
// group subject or description.
func isNSFWGroup(ic *classify.Context) bool {
	if ic.Group == nil {
		return false
	}
	return strings.Contains(strings.ToLower(ic.Group.Subject), "nsfw") ||
		strings.Contains(strings.ToLower(ic.Group.Description), "nsfw")
}
