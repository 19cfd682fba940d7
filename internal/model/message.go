// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Second Me"
	default:
		return string(r)
	}
}

// RoleFromIsUser maps the legacy boolean sender flag to a Role.
func RoleFromIsUser(isUser bool) Role {
	if isUser {
		return RoleUser
	}
	return RoleAssistant
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// ChatMessage is one turn of a conversation.
type ChatMessage struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	Role      Role   `json:"role"`
	Timestamp string `json:"timestamp"`
}

// NewMessage creates a message stamped with a fresh ID and the current time.
func NewMessage(role Role, content string) ChatMessage {
	return ChatMessage{
		ID:        NewID(),
		Content:   content,
		Role:      role,
		Timestamp: Now(),
	}
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) ChatMessage {
	return NewMessage(RoleUser, content)
}

// NewAssistantPlaceholder creates the empty assistant message that a stream
// fills in.
func NewAssistantPlaceholder() ChatMessage {
	return NewMessage(RoleAssistant, "")
}

// WelcomeMessage is the greeting seeded into a role chat on first open.
func WelcomeMessage(roleName string) ChatMessage {
	return NewMessage(RoleAssistant, "Hello! I am a "+roleName+". How can I help you today?")
}

// IsUser reports whether the message was sent by the user.
func (m ChatMessage) IsUser() bool {
	return m.Role == RoleUser
}

// =============================================================================
// HISTORY
// =============================================================================

// Turn is the minimal {role, content} pair sent to the chat endpoint.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// History converts messages into request history, preserving order.
func History(msgs []ChatMessage) []Turn {
	turns := make([]Turn, 0, len(msgs))
	for _, m := range msgs {
		turns = append(turns, Turn{Role: m.Role, Content: m.Content})
	}
	return turns
}

// =============================================================================
// IDS AND TIME
// =============================================================================

// NewID returns a random identifier for messages and sessions.
func NewID() string {
	return uuid.NewString()
}

// nowFunc is replaced in tests.
var nowFunc = time.Now

// Now returns the current time in the stored timestamp format.
func Now() string {
	return nowFunc().Format(time.RFC3339)
}

// Clock formats a stored timestamp as HH:MM for display. Legacy timestamps
// that are not RFC 3339 are returned unchanged.
func Clock(ts string) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	return t.Local().Format("15:04")
}
