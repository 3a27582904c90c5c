// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hermod Contributors

// Package classify turns raw inbound events into normalized invocation
// contexts consumed by command routing and admission control.
package classify

import (
	"context"

	"github.com/hermodbot/hermod/internal/transport"
)

// Kind is the canonical message kind. Protocol-specific type names (raw text
// vs. extended text and friends) normalize onto this small set.
type Kind string

// Canonical kinds. KindAny matches any kind in a definition's supported set.
const (
	KindText     Kind = "text"
	KindImage    Kind = "image"
	KindVideo    Kind = "video"
	KindAudio    Kind = "audio"
	KindSticker  Kind = "sticker"
	KindDocument Kind = "document"
	KindButton   Kind = "button"
	KindList     Kind = "list"
	KindPoll     Kind = "poll"
	KindReaction Kind = "reaction"
	KindUnknown  Kind = "unknown"
	KindAny      Kind = "*"
)

// QuotedMessage is the synthetic projection of a replied-to message,
// reconstructed from the context-info block.
type QuotedMessage struct {
	ID        string
	Sender    string
	Text      string
	Kind      Kind
	HasMedia  bool
	Mentions  []string
	Forwarded bool
}

// Interactive projects a button/list/template selection or poll vote.
type Interactive struct {
	Kind  Kind // KindButton, KindList, or KindPoll
	ID    string
	Title string
}

// Capabilities is the outbound surface handed to handlers, bound to the
// event's addressing context.
type Capabilities struct {
	// Reply sends text into the chat, quoting the triggering message.
	Reply func(ctx context.Context, text string) (string, error)
	// Send sends text into the chat without quoting.
	Send func(ctx context.Context, text string) (string, error)
	// React applies an emoji reaction to the triggering message.
	React func(ctx context.Context, emoji string) error
	// Edit replaces a previously sent message.
	Edit func(ctx context.Context, messageID, text string) error
	// Delete removes a previously sent message.
	Delete func(ctx context.Context, messageID string) error
	// Presence updates the bot's typing/online state in the chat.
	Presence func(ctx context.Context, state string) error
	// Download fetches the media payload of the triggering message.
	Download func(ctx context.Context) ([]byte, error)
}

// Context is the normalized, per-event view built by the Classifier.
// It is created fresh per inbound event and discarded after dispatch.
type Context struct {
	Event *transport.Event

	Sender   string // normalized, device suffix stripped
	Chat     string
	PushName string

	IsGroup     bool
	IsPrivate   bool
	IsBroadcast bool
	IsChannel   bool
	FromSelf    bool

	IsOwner      bool
	IsAdmin      bool
	IsSuperAdmin bool
	IsBotAdmin   bool
	IsPremium    bool

	Body     string // sanitized extracted text used for command matching
	Kind     Kind
	HasMedia bool

	Quoted      *QuotedMessage
	Mentions    []string
	Interactive *Interactive
	Group       *transport.GroupMetadata

	Caps *Capabilities
}

// HasQuote reports whether the event replied to a prior message.
func (c *Context) HasQuote() bool { return c.Quoted != nil }
