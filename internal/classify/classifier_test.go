// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hermod Contributors

package classify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hermodbot/hermod/internal/transport"
	"github.com/hermodbot/hermod/pkg/errutil"
)

const (
	botJID   = "bot@s.whatsapp.net"
	aliceJID = "alice@s.whatsapp.net"
	teamJID  = "team@g.us"
)

func textEvent(id, chat, sender, text string) *transport.Event {
	return &transport.Event{
		ID:        id,
		Chat:      chat,
		Sender:    sender,
		Timestamp: time.Now(),
		Message:   &transport.MessageContent{Conversation: text},
	}
}

func TestClassify_PrivateText(t *testing.T) {
	client := transport.NewMemory(botJID)
	cls := New(client, Config{OwnerJIDs: []string{aliceJID}})

	ic, err := cls.Classify(context.Background(), textEvent("ev-1", aliceJID, "alice:3@s.whatsapp.net", "hello"))
	require.NoError(t, err)

	assert.Equal(t, aliceJID, ic.Sender, "device suffix stripped")
	assert.True(t, ic.IsPrivate)
	assert.False(t, ic.IsGroup)
	assert.True(t, ic.IsOwner, "owner resolved against normalized sender")
	assert.Equal(t, KindText, ic.Kind)
	assert.Equal(t, "hello", ic.Body)
	assert.False(t, ic.HasMedia)
}

func TestClassify_DuplicateEventDropped(t *testing.T) {
	client := transport.NewMemory(botJID)
	cls := New(client, Config{})

	_, err := cls.Classify(context.Background(), textEvent("dup-1", aliceJID, aliceJID, "first"))
	require.NoError(t, err)

	_, err = cls.Classify(context.Background(), textEvent("dup-1", aliceJID, aliceJID, "second"))
	require.Error(t, err)
	assert.True(t, IsDuplicate(err))
}

func TestClassify_UnsupportedEvent(t *testing.T) {
	client := transport.NewMemory(botJID)
	cls := New(client, Config{})

	_, err := cls.Classify(context.Background(), &transport.Event{ID: "ev-x", Chat: aliceJID, Sender: aliceJID})
	errutil.AssertErrorCode(t, err, CodeUnsupportedEvent)
}

func TestClassify_Reaction(t *testing.T) {
	client := transport.NewMemory(botJID)
	cls := New(client, Config{})

	ic, err := cls.Classify(context.Background(), &transport.Event{
		ID:       "ev-r",
		Chat:     aliceJID,
		Sender:   aliceJID,
		Reaction: &transport.Reaction{Emoji: "🔥", TargetID: "msg-9"},
	})
	require.NoError(t, err)
	assert.Equal(t, KindReaction, ic.Kind)
	assert.Empty(t, ic.Body)
}

func TestClassify_PollVote(t *testing.T) {
	client := transport.NewMemory(botJID)
	cls := New(client, Config{})

	ic, err := cls.Classify(context.Background(), &transport.Event{
		ID:       "ev-p",
		Chat:     aliceJID,
		Sender:   aliceJID,
		PollVote: &transport.PollVote{PollID: "poll-1", Options: []string{"a"}},
	})
	require.NoError(t, err)
	assert.Equal(t, KindPoll, ic.Kind)
	assert.Equal(t, pollVotePlaceholder, ic.Body)
	require.NotNil(t, ic.Interactive)
	assert.Equal(t, "poll-1", ic.Interactive.ID)
}

func TestClassify_EphemeralUnwrapped(t *testing.T) {
	client := transport.NewMemory(botJID)
	cls := New(client, Config{})

	ev := &transport.Event{
		ID:     "ev-e",
		Chat:   aliceJID,
		Sender: aliceJID,
		Message: &transport.MessageContent{
			Ephemeral: &transport.MessageContent{
				ViewOnce: &transport.MessageContent{
					Image: &transport.MediaContent{Caption: "look"},
				},
			},
		},
	}

	ic, err := cls.Classify(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, KindImage, ic.Kind)
	assert.Equal(t, "look", ic.Body)
	assert.True(t, ic.HasMedia)
}

func TestClassify_QuotedAndMentions(t *testing.T) {
	client := transport.NewMemory(botJID)
	cls := New(client, Config{})

	ev := &transport.Event{
		ID:     "ev-q",
		Chat:   aliceJID,
		Sender: aliceJID,
		Message: &transport.MessageContent{
			ExtendedText: &transport.ExtendedText{
				Text: "what about this?",
				ContextInfo: &transport.ContextInfo{
					StanzaID:      "orig-1",
					Participant:   "bob:2@s.whatsapp.net",
					QuotedMessage: &transport.MessageContent{Conversation: "*bold* claim"},
					MentionedJIDs: []string{"carol:1@s.whatsapp.net"},
					IsForwarded:   true,
				},
			},
		},
	}

	ic, err := cls.Classify(context.Background(), ev)
	require.NoError(t, err)
	require.True(t, ic.HasQuote())
	assert.Equal(t, "orig-1", ic.Quoted.ID)
	assert.Equal(t, "bob@s.whatsapp.net", ic.Quoted.Sender)
	assert.Equal(t, "bold claim", ic.Quoted.Text, "quoted text sanitized")
	assert.True(t, ic.Quoted.Forwarded)
	assert.Equal(t, []string{"carol@s.whatsapp.net"}, ic.Mentions)
}

func TestClassify_InteractiveReplies(t *testing.T) {
	client := transport.NewMemory(botJID)
	cls := New(client, Config{})

	t.Run("button", func(t *testing.T) {
		ic, err := cls.Classify(context.Background(), &transport.Event{
			ID: "ev-b", Chat: aliceJID, Sender: aliceJID,
			Message: &transport.MessageContent{
				ButtonReply: &transport.InteractiveReply{ID: "btn-yes", Title: "Yes"},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, KindButton, ic.Kind)
		require.NotNil(t, ic.Interactive)
		assert.Equal(t, "btn-yes", ic.Interactive.ID)
		assert.Equal(t, "btn-yes", ic.Body, "selection id becomes the body")
	})

	t.Run("list", func(t *testing.T) {
		ic, err := cls.Classify(context.Background(), &transport.Event{
			ID: "ev-l", Chat: aliceJID, Sender: aliceJID,
			Message: &transport.MessageContent{
				ListReply: &transport.InteractiveReply{ID: "row-2", Title: "Second"},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, KindList, ic.Kind)
		require.NotNil(t, ic.Interactive)
		assert.Equal(t, KindList, ic.Interactive.Kind)
	})
}

func TestClassify_GroupRoles(t *testing.T) {
	client := transport.NewMemory(botJID)
	client.SetGroup(&transport.GroupMetadata{
		JID:     teamJID,
		Subject: "Team",
		Participants: []transport.GroupParticipant{
			{JID: "alice:9@s.whatsapp.net", Role: transport.RoleSuperAdmin},
			{JID: botJID, Role: transport.RoleAdmin},
			{JID: "bob@s.whatsapp.net", Role: transport.RoleMember},
		},
	})
	cls := New(client, Config{})

	ic, err := cls.Classify(context.Background(), textEvent("ev-g", teamJID, aliceJID, "hi team"))
	require.NoError(t, err)

	assert.True(t, ic.IsGroup)
	assert.True(t, ic.IsAdmin)
	assert.True(t, ic.IsSuperAdmin)
	assert.True(t, ic.IsBotAdmin)
	require.NotNil(t, ic.Group)
	assert.Equal(t, "Team", ic.Group.Subject)
}

func TestClassify_GroupMetadataFailureDegrades(t *testing.T) {
	client := transport.NewMemory(botJID)
	client.SetGroupError(errors.New("rate limited"))
	cls := New(client, Config{})

	ic, err := cls.Classify(context.Background(), textEvent("ev-g2", teamJID, aliceJID, "hi"))
	require.NoError(t, err, "metadata failure must not fail the event")
	assert.False(t, ic.IsAdmin)
	assert.False(t, ic.IsBotAdmin)
	assert.Nil(t, ic.Group)
}

func TestClassify_CapsReplyQuotesTrigger(t *testing.T) {
	client := transport.NewMemory(botJID)
	cls := New(client, Config{})

	ic, err := cls.Classify(context.Background(), textEvent("ev-c", aliceJID, aliceJID, "ping"))
	require.NoError(t, err)

	_, err = ic.Caps.Reply(context.Background(), "pong")
	require.NoError(t, err)

	sent := client.Sent()
	require.Len(t, sent, 1)
	require.NotNil(t, sent[0].Options)
	assert.Equal(t, "ev-c", sent[0].Options.QuotedID)

	_, err = ic.Caps.Send(context.Background(), "plain")
	require.NoError(t, err)
	sent = client.Sent()
	require.Len(t, sent, 2)
	assert.Nil(t, sent[1].Options)
}

func TestExtractText_Precedence(t *testing.T) {
	tests := []struct {
		name string
		m    *transport.MessageContent
		want string
	}{
		{"conversation wins", &transport.MessageContent{
			Conversation: "plain",
			Image:        &transport.MediaContent{Caption: "cap"},
		}, "plain"},
		{"extended text", &transport.MessageContent{
			ExtendedText: &transport.ExtendedText{Text: "extended"},
		}, "extended"},
		{"image caption", &transport.MessageContent{
			Image: &transport.MediaContent{Caption: "img cap"},
		}, "img cap"},
		{"video caption", &transport.MessageContent{
			Video: &transport.MediaContent{Caption: "vid cap"},
		}, "vid cap"},
		{"document caption before filename", &transport.MessageContent{
			Document: &transport.DocumentContent{
				MediaContent: transport.MediaContent{Caption: "doc cap"},
				FileName:     "report.pdf",
			},
		}, "doc cap"},
		{"document filename last resort", &transport.MessageContent{
			Document: &transport.DocumentContent{FileName: "report.pdf"},
		}, "report.pdf"},
		{"button reply id", &transport.MessageContent{
			ButtonReply: &transport.InteractiveReply{ID: "btn-1", Title: "One"},
		}, "btn-1"},
		{"empty payload", &transport.MessageContent{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractText(tt.m))
		})
	}
}

func TestDetectKind(t *testing.T) {
	tests := []struct {
		name string
		m    *transport.MessageContent
		want Kind
	}{
		{"nil", nil, KindUnknown},
		{"conversation", &transport.MessageContent{Conversation: "x"}, KindText},
		{"audio", &transport.MessageContent{Audio: &transport.MediaContent{}}, KindAudio},
		{"sticker", &transport.MessageContent{Sticker: &transport.MediaContent{}}, KindSticker},
		{"document", &transport.MessageContent{Document: &transport.DocumentContent{}}, KindDocument},
		{"template reply is button", &transport.MessageContent{TemplateReply: &transport.InteractiveReply{ID: "t"}}, KindButton},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, detectKind(tt.m))
		})
	}
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "bold and italic", sanitize("*bold* and _italic_"))
	assert.Equal(t, "code", sanitize("`code`"))
	assert.Equal(t, "spaced", sanitize("  spaced  "))
	assert.Equal(t, "", sanitize(""))
	assert.Equal(t, "zero width", sanitize("zero​width ‎‏"))
}

func TestDedup(t *testing.T) {
	clock := time.Unix(1700000000, 0)
	now := func() time.Time { return clock }
	d := newDedup(time.Minute, 10, now)

	assert.False(t, d.Seen("id-1"))
	assert.True(t, d.Seen("id-1"))

	// TTL expiry readmits the id.
	clock = clock.Add(2 * time.Minute)
	assert.False(t, d.Seen("id-1"))

	// Blank ids are never deduplicated.
	assert.False(t, d.Seen(""))
	assert.False(t, d.Seen(""))
}

func TestDedup_PrunesPastCapacity(t *testing.T) {
	clock := time.Unix(1700000000, 0)
	now := func() time.Time { return clock }
	d := newDedup(time.Minute, 3, now)

	d.Seen("a")
	d.Seen("b")
	d.Seen("c")
	clock = clock.Add(2 * time.Minute)
	d.Seen("d")

	assert.LessOrEqual(t, len(d.entries), 3)
}

func TestGroupCache(t *testing.T) {
	clock := time.Unix(1700000000, 0)
	now := func() time.Time { return clock }

	client := transport.NewMemory(botJID)
	client.SetGroup(&transport.GroupMetadata{JID: teamJID, Subject: "Team"})

	g := newGroupCache(client, time.Minute, now)

	t.Run("fetch then cache hit", func(t *testing.T) {
		_, err := g.Get(context.Background(), teamJID)
		require.NoError(t, err)
		_, err = g.Get(context.Background(), teamJID)
		require.NoError(t, err)
		assert.Equal(t, 1, client.MetadataCalls())
	})

	t.Run("ttl expiry refetches", func(t *testing.T) {
		clock = clock.Add(2 * time.Minute)
		_, err := g.Get(context.Background(), teamJID)
		require.NoError(t, err)
		assert.Equal(t, 2, client.MetadataCalls())
	})

	t.Run("hot invalidation refetches", func(t *testing.T) {
		g.Invalidate(teamJID)
		_, err := g.Get(context.Background(), teamJID)
		require.NoError(t, err)
		assert.Equal(t, 3, client.MetadataCalls())
	})

	t.Run("failure surfaces metadata code after retries", func(t *testing.T) {
		client.SetGroupError(errors.New("throttled"))
		g.Invalidate(teamJID)
		_, err := g.Get(context.Background(), teamJID)
		errutil.AssertErrorCode(t, err, CodeMetadataUnavailable)
		// Initial attempt plus two retries.
		assert.Equal(t, 6, client.MetadataCalls())
	})
}
