// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"

	"github.com/jeranaias/secondme-tui/internal/util"
)

// DefaultSessionTitle is used until a session receives its first message.
const DefaultSessionTitle = "New Conversation"

// MaxTitleRunes is the longest title kept verbatim.
const MaxTitleRunes = 30

// ChatSession is one persisted conversation thread.
type ChatSession struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	LastMessage string        `json:"lastMessage"`
	Timestamp   string        `json:"timestamp"`
	Messages    []ChatMessage `json:"messages"`
}

// NewSession creates an empty session. An empty title means DefaultSessionTitle.
func NewSession(title string) ChatSession {
	if strings.TrimSpace(title) == "" {
		title = DefaultSessionTitle
	}
	return ChatSession{
		ID:        NewID(),
		Title:     title,
		Timestamp: Now(),
		Messages:  []ChatMessage{},
	}
}

// DeriveTitle builds a session title from the first user message.
func DeriveTitle(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return DefaultSessionTitle
	}
	return util.Ellipsize(text, MaxTitleRunes)
}

// Recompute refreshes LastMessage and Timestamp from the final message. An
// empty session falls back to an empty preview and the default title; its
// timestamp is kept.
func (s *ChatSession) Recompute() {
	if len(s.Messages) == 0 {
		s.LastMessage = ""
		s.Title = DefaultSessionTitle
		return
	}
	last := s.Messages[len(s.Messages)-1]
	s.LastMessage = last.Content
	if last.Timestamp != "" {
		s.Timestamp = last.Timestamp
	}
}

// Clone returns a copy that does not share the message slice.
func (s ChatSession) Clone() ChatSession {
	s.Messages = CloneMessages(s.Messages)
	return s
}

// CloneMessages copies a message slice. A nil input yields an empty slice.
func CloneMessages(msgs []ChatMessage) []ChatMessage {
	out := make([]ChatMessage, len(msgs))
	copy(out, msgs)
	return out
}
