// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveTitle(t *testing.T) {
	assert.Equal(t, "0123456789", DeriveTitle("0123456789"))
	assert.Equal(t, "abcdefghijklmnopqrstuvwxyz0123…", DeriveTitle("abcdefghijklmnopqrstuvwxyz0123456789"))
	assert.Equal(t, DefaultSessionTitle, DeriveTitle("   "))
	assert.Equal(t, "cafe\u0301", DeriveTitle("cafe\u0301"), "short titles are kept byte for byte")
}

func TestNewSession_DefaultTitle(t *testing.T) {
	s := NewSession("")
	assert.Equal(t, DefaultSessionTitle, s.Title)
	assert.NotEmpty(t, s.ID)
	assert.NotNil(t, s.Messages)

	named := NewSession("Trip planning")
	assert.Equal(t, "Trip planning", named.Title)
	assert.NotEqual(t, s.ID, named.ID)
}

func TestRecompute(t *testing.T) {
	s := NewSession("Existing")
	s.Timestamp = "2025-01-01T00:00:00Z"
	s.Messages = []ChatMessage{
		{ID: "1", Role: RoleUser, Content: "Hello", Timestamp: "2025-01-02T10:00:00Z"},
		{ID: "2", Role: RoleAssistant, Content: "Hi there", Timestamp: "2025-01-02T10:00:01Z"},
	}
	s.Recompute()
	assert.Equal(t, "Hi there", s.LastMessage)
	assert.Equal(t, "2025-01-02T10:00:01Z", s.Timestamp)
	assert.Equal(t, "Existing", s.Title)

	s.Messages = nil
	s.Recompute()
	assert.Equal(t, "", s.LastMessage)
	assert.Equal(t, DefaultSessionTitle, s.Title)
	assert.Equal(t, "2025-01-02T10:00:01Z", s.Timestamp)
}

func TestHistoryPreservesOrder(t *testing.T) {
	msgs := []ChatMessage{
		NewUserMessage("a"),
		NewMessage(RoleAssistant, "b"),
		NewUserMessage("c"),
	}
	h := History(msgs)
	require.Len(t, h, 3)
	assert.Equal(t, Turn{Role: RoleUser, Content: "a"}, h[0])
	assert.Equal(t, Turn{Role: RoleAssistant, Content: "b"}, h[1])
	assert.Equal(t, Turn{Role: RoleUser, Content: "c"}, h[2])
}

func TestWelcomeMessage(t *testing.T) {
	m := WelcomeMessage("Travel Agent")
	assert.Equal(t, RoleAssistant, m.Role)
	assert.Equal(t, "Hello! I am a Travel Agent. How can I help you today?", m.Content)
}

func TestClock(t *testing.T) {
	orig := nowFunc
	defer func() { nowFunc = orig }()
	nowFunc = func() time.Time { return time.Date(2025, 3, 4, 9, 7, 0, 0, time.Local) }

	assert.Equal(t, "09:07", Clock(Now()))
	assert.Equal(t, "10:42 AM", Clock("10:42 AM"))
}

func TestCloneMessagesIsIndependent(t *testing.T) {
	orig := []ChatMessage{NewUserMessage("x")}
	c := CloneMessages(orig)
	c[0].Content = "y"
	assert.Equal(t, "x", orig[0].Content)
	assert.NotNil(t, CloneMessages(nil))
}
