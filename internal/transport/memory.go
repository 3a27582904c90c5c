// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hermod Contributors

package transport

import (
	"context"
	"log/slog"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// SentMessage records one outbound call made against the Memory client.
type SentMessage struct {
	Chat    string
	Content Content
	Options *SendOptions
}

// Memory is an in-process Client used by tests and the loopback run mode.
// It records outbound traffic and lets callers inject group metadata and
// media payloads.
type Memory struct {
	mu        sync.Mutex
	botJID    string
	sent      []SentMessage
	reactions map[string]string // messageID -> emoji
	groups    map[string]*GroupMetadata
	media     map[string][]byte // event id -> payload
	outbound  chan SentMessage
	metaErr   error
	metaCalls int
}

// NewMemory creates a Memory client with the given bot identity.
func NewMemory(botJID string) *Memory {
	return &Memory{
		botJID:    botJID,
		reactions: make(map[string]string),
		groups:    make(map[string]*GroupMetadata),
		media:     make(map[string][]byte),
		outbound:  make(chan SentMessage, 100),
	}
}

// SetGroup installs metadata returned by GroupMetadata for a chat.
func (m *Memory) SetGroup(meta *GroupMetadata) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups[meta.JID] = meta
}

// SetGroupError makes GroupMetadata fail until cleared.
func (m *Memory) SetGroupError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metaErr = err
}

// SetMedia installs a media payload returned by DownloadMedia for an event id.
func (m *Memory) SetMedia(eventID string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.media[eventID] = data
}

// Sent returns a copy of all recorded outbound messages.
func (m *Memory) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentMessage, len(m.sent))
	copy(out, m.sent)
	return out
}

// Reactions returns a copy of recorded reactions keyed by message id.
func (m *Memory) Reactions() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.reactions))
	for k, v := range m.reactions {
		out[k] = v
	}
	return out
}

// MetadataCalls returns how many times GroupMetadata was invoked.
func (m *Memory) MetadataCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.metaCalls
}

// Outbound exposes sent messages as a channel for the loopback run mode.
func (m *Memory) Outbound() <-chan SentMessage { return m.outbound }

// Send implements Client.
func (m *Memory) Send(_ context.Context, chat string, content Content, opts *SendOptions) (string, error) {
	m.mu.Lock()
	msg := SentMessage{Chat: chat, Content: content, Options: opts}
	m.sent = append(m.sent, msg)
	m.mu.Unlock()

	select {
	case m.outbound <- msg:
	default:
		// Same policy as event fan-out: drop rather than block the sender.
		slog.Warn("outbound dropped: buffer full", "chat", chat)
	}
	return ulid.Make().String(), nil
}

// React implements Client.
func (m *Memory) React(_ context.Context, _, messageID, emoji string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reactions[messageID] = emoji
	return nil
}

// Edit implements Client.
func (m *Memory) Edit(ctx context.Context, chat, _ string, content Content) error {
	_, err := m.Send(ctx, chat, content, nil)
	return err
}

// Delete implements Client.
func (m *Memory) Delete(_ context.Context, _, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.reactions, messageID)
	return nil
}

// PresenceUpdate implements Client.
func (m *Memory) PresenceUpdate(_ context.Context, _, _ string) error { return nil }

// DownloadMedia implements Client.
func (m *Memory) DownloadMedia(_ context.Context, ev *Event) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.media[ev.ID]
	if !ok {
		return nil, oops.Code("NO_MEDIA").With("event_id", ev.ID).Errorf("no media payload for event")
	}
	return data, nil
}

// GroupMetadata implements Client.
func (m *Memory) GroupMetadata(_ context.Context, chat string) (*GroupMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metaCalls++
	if m.metaErr != nil {
		return nil, m.metaErr
	}
	meta, ok := m.groups[chat]
	if !ok {
		return nil, oops.Code("UNKNOWN_GROUP").With("chat", chat).Errorf("no metadata for chat")
	}
	return meta, nil
}

// BotJID implements Client.
func (m *Memory) BotJID() string { return m.botJID }
