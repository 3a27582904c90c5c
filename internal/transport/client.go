// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hermod Contributors

package transport

import "context"

// GroupRole is a participant's role within a group.
type GroupRole string

// Roles reported by the protocol layer.
const (
	RoleMember     GroupRole = "member"
	RoleAdmin      GroupRole = "admin"
	RoleSuperAdmin GroupRole = "superadmin"
)

// GroupParticipant is one member of a group.
type GroupParticipant struct {
	JID  string
	Role GroupRole
}

// GroupMetadata describes a group chat.
type GroupMetadata struct {
	JID          string
	Subject      string
	Description  string
	Participants []GroupParticipant
}

// Content is an outbound message payload.
type Content struct {
	Text     string
	Mentions []string
}

// SendOptions adjusts how an outbound message is addressed.
type SendOptions struct {
	QuotedID string // reply to this message id
}

// Client is the outbound surface of the protocol layer. Implementations wrap
// the external messaging library; handlers and hooks only ever see this
// interface.
type Client interface {
	// Send delivers content to a chat and returns the new message id.
	Send(ctx context.Context, chat string, content Content, opts *SendOptions) (string, error)
	React(ctx context.Context, chat, messageID, emoji string) error
	Edit(ctx context.Context, chat, messageID string, content Content) error
	Delete(ctx context.Context, chat, messageID string) error
	PresenceUpdate(ctx context.Context, chat, state string) error
	DownloadMedia(ctx context.Context, ev *Event) ([]byte, error)
	// GroupMetadata fetches group details. Callers must front this with a
	// cache; the protocol layer rate-limits it aggressively.
	GroupMetadata(ctx context.Context, chat string) (*GroupMetadata, error)
	// BotJID returns the bot's own normalized identity.
	BotJID() string
}
