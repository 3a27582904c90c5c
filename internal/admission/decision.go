// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hermod Contributors

// Package admission gates command execution: permission flags, cooldowns,
// fixed-window rate limits, the global daily quota, and content-shape
// requirements, evaluated in a fixed order.
package admission

import "time"

// Reason is the stable token identifying why admission denied a command.
// The transport boundary maps these to user-facing messages.
type Reason string

// Denial reasons, in roughly the order the checks run.
const (
	ReasonOwnerOnly        Reason = "owner_only"
	ReasonGroupOnly        Reason = "group_only"
	ReasonPrivateOnly      Reason = "private_only"
	ReasonAdminOnly        Reason = "admin_only"
	ReasonBotAdminRequired Reason = "bot_admin_required"
	ReasonChannelOnly      Reason = "channel_only"
	ReasonNSFWRequired     Reason = "nsfw_group_required"
	ReasonPremiumOnly      Reason = "premium_only"
	ReasonCooldown         Reason = "cooldown"
	ReasonRateLimit        Reason = "rate_limit"
	ReasonDailyLimit       Reason = "daily_limit_reached"
	ReasonMediaRequired    Reason = "media_required"
	ReasonQuoteRequired    Reason = "quote_required"
	ReasonCustom           Reason = "custom"
)

// Decision is the structured outcome of an admission evaluation. A denial is
// not an error; it carries the first failing check's reason.
type Decision struct {
	Allowed bool
	Reason  Reason

	// RetryAfter is set for cooldown, rate-limit, and quota denials.
	RetryAfter time.Duration

	// Message optionally overrides the user-facing text, supplied by
	// custom permission hooks.
	Message string
}

// Allow is the single allowed decision.
func Allow() Decision { return Decision{Allowed: true} }

// Deny builds a denial with the given reason.
func Deny(reason Reason) Decision { return Decision{Reason: reason} }
