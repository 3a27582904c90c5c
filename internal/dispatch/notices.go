// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hermod Contributors

package dispatch

import (
	"fmt"
	"math"

	"github.com/hermodbot/hermod/internal/admission"
)

// DenialMessage maps an admission denial onto the user-facing notice sent at
// the transport boundary. Custom-hook messages pass through verbatim.
func DenialMessage(dec admission.Decision) string {
	if dec.Message != "" {
		return dec.Message
	}

	switch dec.Reason {
	case admission.ReasonOwnerOnly:
		return "This command is restricted to the bot owner."
	case admission.ReasonGroupOnly:
		return "This command only works in groups."
	case admission.ReasonPrivateOnly:
		return "This command only works in private chat."
	case admission.ReasonAdminOnly:
		return "Only group admins can use this command."
	case admission.ReasonBotAdminRequired:
		return "I need to be a group admin to do that."
	case admission.ReasonChannelOnly:
		return "This command only works in channels."
	case admission.ReasonNSFWRequired:
		return "This command is only available in NSFW-marked groups."
	case admission.ReasonPremiumOnly:
		return "This command requires premium access."
	case admission.ReasonCooldown:
		return fmt.Sprintf("Slow down. Try again in %ds.", ceilSeconds(dec))
	case admission.ReasonRateLimit:
		return fmt.Sprintf("Rate limit reached. Resets in %ds.", ceilSeconds(dec))
	case admission.ReasonDailyLimit:
		return "Daily message limit reached. Try again tomorrow."
	case admission.ReasonMediaRequired:
		return "Attach or quote a media message to use this command."
	case admission.ReasonQuoteRequired:
		return "Reply to a message to use this command."
	default:
		return "You can't use this command here."
	}
}

func ceilSeconds(dec admission.Decision) int {
	return int(math.Ceil(dec.RetryAfter.Seconds()))
}
