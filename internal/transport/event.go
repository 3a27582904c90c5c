// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hermod Contributors

// Package transport defines the boundary with the external messaging-protocol
// library: the inbound event model the dispatcher consumes and the outbound
// client surface handlers invoke. Wire formats stay on the other side of this
// boundary.
package transport

import (
	"strings"
	"time"
)

// StatusBroadcast is the pseudo-chat used by the protocol for status posts.
// Events addressed to it are never dispatched.
const StatusBroadcast = "status@broadcast"

// JID suffixes distinguishing chat types.
const (
	groupSuffix     = "@g.us"
	broadcastSuffix = "@broadcast"
	channelSuffix   = "@newsletter"
)

// Event is one raw inbound occurrence delivered by the protocol layer.
// Exactly one of Message, Reaction, PollVote, GroupUpdate, Presence is set.
type Event struct {
	ID        string
	Chat      string // JID of the chat the event belongs to
	Sender    string // JID of the author, may carry a device suffix
	PushName  string
	FromSelf  bool
	Timestamp time.Time

	Message     *MessageContent
	Reaction    *Reaction
	PollVote    *PollVote
	GroupUpdate *GroupUpdate
	Presence    *Presence
}

// MessageContent is the polymorphic message payload. At most one content
// field is set; Ephemeral and ViewOnce wrap a nested inner payload.
type MessageContent struct {
	Conversation string
	ExtendedText *ExtendedText

	Image    *MediaContent
	Video    *MediaContent
	Audio    *MediaContent
	Sticker  *MediaContent
	Document *DocumentContent

	ButtonReply   *InteractiveReply
	ListReply     *InteractiveReply
	TemplateReply *InteractiveReply

	// Protocol marks system/control messages (history sync, key distribution).
	Protocol bool

	Ephemeral *MessageContent
	ViewOnce  *MessageContent

	ContextInfo *ContextInfo
}

// ExtendedText is a text body carrying formatting or context metadata.
type ExtendedText struct {
	Text        string
	ContextInfo *ContextInfo
}

// MediaContent covers image, video, audio, and sticker payloads.
type MediaContent struct {
	Caption     string
	MimeType    string
	URL         string
	ContextInfo *ContextInfo
}

// DocumentContent is a document payload with its original filename.
type DocumentContent struct {
	MediaContent
	FileName string
}

// InteractiveReply is a button, list, or template selection.
type InteractiveReply struct {
	ID    string
	Title string
}

// ContextInfo is the structured quote/mention block attached to a message.
type ContextInfo struct {
	StanzaID      string // id of the quoted message
	Participant   string // author of the quoted message
	QuotedMessage *MessageContent
	MentionedJIDs []string
	IsForwarded   bool
}

// Reaction is an emoji reaction to a prior message.
type Reaction struct {
	Emoji    string
	TargetID string
}

// PollVote is a vote cast on a poll message.
type PollVote struct {
	PollID  string
	Options []string
}

// GroupUpdate reports a membership or metadata change in a group.
type GroupUpdate struct {
	Action       string // "join", "leave", "subject", "settings"
	Participants []string
}

// Presence reports typing/online state changes.
type Presence struct {
	State string
}

// IsGroupJID reports whether jid addresses a group chat.
func IsGroupJID(jid string) bool { return strings.HasSuffix(jid, groupSuffix) }

// IsBroadcastJID reports whether jid addresses a broadcast list.
func IsBroadcastJID(jid string) bool { return strings.HasSuffix(jid, broadcastSuffix) }

// IsChannelJID reports whether jid addresses a channel.
func IsChannelJID(jid string) bool { return strings.HasSuffix(jid, channelSuffix) }

// NormalizeJID strips the device suffix from a JID so identities compare
// stably across devices: "123:7@s.whatsapp.net" -> "123@s.whatsapp.net".
func NormalizeJID(jid string) string {
	at := strings.IndexByte(jid, '@')
	if at < 0 {
		return jid
	}
	user := jid[:at]
	if colon := strings.IndexByte(user, ':'); colon >= 0 {
		user = user[:colon]
	}
	return user + jid[at:]
}
