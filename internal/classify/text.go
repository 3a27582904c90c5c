// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hermod Contributors

package classify

import "github.com/hermodbot/hermod/internal/transport"

// pollVotePlaceholder is the fixed body assigned to poll-vote events.
const pollVotePlaceholder = "[poll vote]"

// unwrap peels ephemeral / view-once envelopes so classification always
// operates on the inner payload.
func unwrap(m *transport.MessageContent) *transport.MessageContent {
	for m != nil {
		switch {
		case m.Ephemeral != nil:
			m = m.Ephemeral
		case m.ViewOnce != nil:
			m = m.ViewOnce
		default:
			return m
		}
	}
	return nil
}

// extractText resolves the message body. First non-empty wins: plain text,
// extended text, media captions, interactive selection id, document
// filename as last resort.
func extractText(m *transport.MessageContent) string {
	if m == nil {
		return ""
	}
	if m.Conversation != "" {
		return m.Conversation
	}
	if m.ExtendedText != nil && m.ExtendedText.Text != "" {
		return m.ExtendedText.Text
	}
	for _, media := range []*transport.MediaContent{m.Image, m.Video} {
		if media != nil && media.Caption != "" {
			return media.Caption
		}
	}
	if m.Document != nil && m.Document.Caption != "" {
		return m.Document.Caption
	}
	for _, ir := range []*transport.InteractiveReply{m.ButtonReply, m.ListReply, m.TemplateReply} {
		if ir != nil && ir.ID != "" {
			return ir.ID
		}
	}
	if m.Document != nil && m.Document.FileName != "" {
		return m.Document.FileName
	}
	return ""
}

// detectKind maps a message payload onto the canonical kind set. The media
// allow-list is fixed: image, video, audio, sticker, document.
func detectKind(m *transport.MessageContent) Kind {
	switch {
	case m == nil:
		return KindUnknown
	case m.Conversation != "" || m.ExtendedText != nil:
		return KindText
	case m.Image != nil:
		return KindImage
	case m.Video != nil:
		return KindVideo
	case m.Audio != nil:
		return KindAudio
	case m.Sticker != nil:
		return KindSticker
	case m.Document != nil:
		return KindDocument
	case m.ButtonReply != nil || m.TemplateReply != nil:
		return KindButton
	case m.ListReply != nil:
		return KindList
	default:
		return KindUnknown
	}
}

// hasMedia reports whether the payload carries a downloadable media kind.
func hasMedia(m *transport.MessageContent) bool {
	if m == nil {
		return false
	}
	return m.Image != nil || m.Video != nil || m.Audio != nil || m.Sticker != nil || m.Document != nil
}

// contextInfo returns the context-info block of whichever content field
// carries one.
func contextInfo(m *transport.MessageContent) *transport.ContextInfo {
	if m == nil {
		return nil
	}
	if m.ContextInfo != nil {
		return m.ContextInfo
	}
	if m.ExtendedText != nil && m.ExtendedText.ContextInfo != nil {
		return m.ExtendedText.ContextInfo
	}
	for _, media := range []*transport.MediaContent{m.Image, m.Video, m.Audio, m.Sticker} {
		if media != nil && media.ContextInfo != nil {
			return media.ContextInfo
		}
	}
	if m.Document != nil && m.Document.ContextInfo != nil {
		return m.Document.ContextInfo
	}
	return nil
}

// projectQuoted reconstructs the replied-to message view from context info.
func projectQuoted(ci *transport.ContextInfo) *QuotedMessage {
	if ci == nil || ci.QuotedMessage == nil {
		return nil
	}
	inner := unwrap(ci.QuotedMessage)
	return &QuotedMessage{
		ID:        ci.StanzaID,
		Sender:    transport.NormalizeJID(ci.Participant),
		Text:      sanitize(extractText(inner)),
		Kind:      detectKind(inner),
		HasMedia:  hasMedia(inner),
		Mentions:  normalizeAll(ci.MentionedJIDs),
		Forwarded: ci.IsForwarded,
	}
}

func normalizeAll(jids []string) []string {
	if len(jids) == 0 {
		return nil
	}
	out := make([]string, len(jids))
	for i, j := range jids {
		out[i] = transport.NormalizeJID(j)
	}
	return out
}
