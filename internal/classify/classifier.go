// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hermod Contributors

package classify

import (
	"context"
	"log/slog"
	"time"

	"github.com/hermodbot/hermod/internal/transport"
)

// Config tunes the Classifier.
type Config struct {
	// OwnerJIDs are the bot operators, normalized or not.
	OwnerJIDs []string

	// PremiumJIDs are users granted premium-gated commands.
	PremiumJIDs []string

	GroupCacheTTL time.Duration
	DedupTTL      time.Duration
	DedupCap      int

	// Now is the clock; defaults to time.Now.
	Now func() time.Time
}

// Classifier turns raw inbound events into invocation contexts.
type Classifier struct {
	client  transport.Client
	owners  map[string]bool
	premium map[string]bool
	groups  *groupCache
	seen    *dedup
}

// New creates a Classifier over the given transport client.
func New(client transport.Client, cfg Config) *Classifier {
	owners := make(map[string]bool, len(cfg.OwnerJIDs))
	for _, j := range cfg.OwnerJIDs {
		owners[transport.NormalizeJID(j)] = true
	}
	premium := make(map[string]bool, len(cfg.PremiumJIDs))
	for _, j := range cfg.PremiumJIDs {
		premium[transport.NormalizeJID(j)] = true
	}
	return &Classifier{
		client:  client,
		owners:  owners,
		premium: premium,
		groups:  newGroupCache(client, cfg.GroupCacheTTL, cfg.Now),
		seen:    newDedup(cfg.DedupTTL, cfg.DedupCap, cfg.Now),
	}
}

// Invalidate drops cached metadata for a chat. Called whenever a
// group-membership or metadata event for that chat is observed.
func (c *Classifier) Invalidate(chat string) {
	c.groups.Invalidate(chat)
}

// Classify builds the invocation context for an event. It returns a
// DUPLICATE_EVENT error for redelivered ids and UNSUPPORTED_EVENT when the
// event carries nothing classifiable.
func (c *Classifier) Classify(ctx context.Context, ev *transport.Event) (*Context, error) {
	if c.seen.Seen(ev.ID) {
		return nil, ErrDuplicateEvent(ev.ID)
	}

	ic := &Context{
		Event:       ev,
		Sender:      transport.NormalizeJID(ev.Sender),
		Chat:        ev.Chat,
		PushName:    ev.PushName,
		FromSelf:    ev.FromSelf,
		IsGroup:     transport.IsGroupJID(ev.Chat),
		IsBroadcast: transport.IsBroadcastJID(ev.Chat),
		IsChannel:   transport.IsChannelJID(ev.Chat),
		Kind:        KindUnknown,
	}
	ic.IsPrivate = !ic.IsGroup && !ic.IsBroadcast && !ic.IsChannel
	ic.IsOwner = c.owners[ic.Sender]
	ic.IsPremium = c.premium[ic.Sender]
	ic.Caps = c.buildCaps(ev)

	switch {
	case ev.Reaction != nil:
		ic.Kind = KindReaction
	case ev.PollVote != nil:
		ic.Kind = KindPoll
		ic.Body = pollVotePlaceholder
		ic.Interactive = &Interactive{Kind: KindPoll, ID: ev.PollVote.PollID}
	case ev.Message != nil:
		if err := c.classifyMessage(ev, ic); err != nil {
			return nil, err
		}
	default:
		return nil, ErrUnsupportedEvent(ev.ID)
	}

	if ic.IsGroup {
		c.resolveGroupRoles(ctx, ic)
	}
	return ic, nil
}

func (c *Classifier) classifyMessage(ev *transport.Event, ic *Context) error {
	content := unwrap(ev.Message)
	if content == nil {
		return ErrUnsupportedEvent(ev.ID)
	}

	ic.Kind = detectKind(content)
	ic.Body = sanitize(extractText(content))
	ic.HasMedia = hasMedia(content)

	switch {
	case content.ButtonReply != nil:
		ic.Interactive = &Interactive{Kind: KindButton, ID: content.ButtonReply.ID, Title: content.ButtonReply.Title}
	case content.TemplateReply != nil:
		ic.Interactive = &Interactive{Kind: KindButton, ID: content.TemplateReply.ID, Title: content.TemplateReply.Title}
	case content.ListReply != nil:
		ic.Interactive = &Interactive{Kind: KindList, ID: content.ListReply.ID, Title: content.ListReply.Title}
	}

	if ci := contextInfo(content); ci != nil {
		ic.Quoted = projectQuoted(ci)
		ic.Mentions = normalizeAll(ci.MentionedJIDs)
	}
	return nil
}

// resolveGroupRoles fills admin flags from group metadata. Metadata failure
// degrades to non-admin rather than failing the event.
func (c *Classifier) resolveGroupRoles(ctx context.Context, ic *Context) {
	meta, err := c.groups.Get(ctx, ic.Chat)
	if err != nil {
		slog.DebugContext(ctx, "group metadata unavailable",
			"chat", ic.Chat,
			"error", err,
		)
		return
	}
	ic.Group = meta

	bot := transport.NormalizeJID(c.client.BotJID())
	for _, p := range meta.Participants {
		jid := transport.NormalizeJID(p.JID)
		if jid == ic.Sender {
			ic.IsAdmin = p.Role == transport.RoleAdmin || p.Role == transport.RoleSuperAdmin
			ic.IsSuperAdmin = p.Role == transport.RoleSuperAdmin
		}
		if jid == bot {
			ic.IsBotAdmin = p.Role == transport.RoleAdmin || p.Role == transport.RoleSuperAdmin
		}
	}
}

func (c *Classifier) buildCaps(ev *transport.Event) *Capabilities {
	client := c.client
	chat := ev.Chat
	messageID := ev.ID
	return &Capabilities{
		Reply: func(ctx context.Context, text string) (string, error) {
			return client.Send(ctx, chat, transport.Content{Text: text}, &transport.SendOptions{QuotedID: messageID})
		},
		Send: func(ctx context.Context, text string) (string, error) {
			return client.Send(ctx, chat, transport.Content{Text: text}, nil)
		},
		React: func(ctx context.Context, emoji string) error {
			return client.React(ctx, chat, messageID, emoji)
		},
		Edit: func(ctx context.Context, id, text string) error {
			return client.Edit(ctx, chat, id, transport.Content{Text: text})
		},
		Delete: func(ctx context.Context, id string) error {
			return client.Delete(ctx, chat, id)
		},
		Presence: func(ctx context.Context, state string) error {
			return client.PresenceUpdate(ctx, chat, state)
		},
		Download: func(ctx context.Context) ([]byte, error) {
			return client.DownloadMedia(ctx, ev)
		},
	}
}
