// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"bytes"
	"encoding/json"

	"github.com/jeranaias/secondme-tui/internal/model"
)

// =============================================================================
// VERSIONED DECODE
// =============================================================================

// looseString accepts a JSON string or number. Early data stored ids as
// millisecond timestamps.
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = looseString(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = looseString(n.String())
	return nil
}

// storedMessage is every message shape ever written.
//
//	v1: {id, content, isUser, timestamp}
//	v2: {id, content, role, timestamp}
type storedMessage struct {
	ID        looseString `json:"id"`
	Content   string      `json:"content"`
	Role      model.Role  `json:"role,omitempty"`
	IsUser    *bool       `json:"isUser,omitempty"`
	Timestamp looseString `json:"timestamp"`
}

// current returns the v2 shape. A message with neither role nor isUser is
// an assistant message.
func (m storedMessage) current() model.ChatMessage {
	role := m.Role
	if role == "" {
		role = model.RoleFromIsUser(m.IsUser != nil && *m.IsUser)
	}
	return model.ChatMessage{
		ID:        string(m.ID),
		Content:   m.Content,
		Role:      role,
		Timestamp: string(m.Timestamp),
	}
}

func decodeMessages(in []storedMessage) []model.ChatMessage {
	out := make([]model.ChatMessage, 0, len(in))
	for _, m := range in {
		out = append(out, m.current())
	}
	return out
}

type storedSession struct {
	ID          looseString     `json:"id"`
	Title       string          `json:"title"`
	LastMessage string          `json:"lastMessage"`
	Timestamp   looseString     `json:"timestamp"`
	Messages    []storedMessage `json:"messages"`
}

func (s storedSession) current() model.ChatSession {
	return model.ChatSession{
		ID:          string(s.ID),
		Title:       s.Title,
		LastMessage: s.LastMessage,
		Timestamp:   string(s.Timestamp),
		Messages:    decodeMessages(s.Messages),
	}
}

// =============================================================================
// DOCUMENTS
// =============================================================================

type sessionsDoc struct {
	Sessions []storedSession `json:"sessions"`
}

type sessionsOut struct {
	Sessions []model.ChatSession `json:"sessions"`
}

type messagesDoc struct {
	Messages []storedMessage `json:"messages"`
}

type messagesOut struct {
	Messages []model.ChatMessage `json:"messages"`
}

type roleChatsDoc map[string]messagesDoc

type roleChatsOut map[string]messagesOut
