// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"fmt"

	"github.com/jeranaias/secondme-tui/internal/model"
)

// =============================================================================
// SESSION STORE
// =============================================================================

// SessionStore persists the multi-session chat list.
type SessionStore struct {
	a *Adapter
}

// NewSessionStore returns a session store over a.
func NewSessionStore(a *Adapter) *SessionStore {
	return &SessionStore{a: a}
}

// SessionPatch holds the fields UpdateSession may change. Nil fields are
// left as they are.
type SessionPatch struct {
	Title       *string
	LastMessage *string
	Timestamp   *string
	Messages    []model.ChatMessage
	// ReplaceMessages applies Messages even when it is nil or empty.
	ReplaceMessages bool
}

func (p SessionPatch) apply(s *model.ChatSession) {
	if p.Title != nil {
		s.Title = *p.Title
	}
	if p.LastMessage != nil {
		s.LastMessage = *p.LastMessage
	}
	if p.Timestamp != nil {
		s.Timestamp = *p.Timestamp
	}
	if p.Messages != nil || p.ReplaceMessages {
		s.Messages = model.CloneMessages(p.Messages)
	}
}

func (st *SessionStore) load() []model.ChatSession {
	var doc sessionsDoc
	if !st.a.readJSON(KeySessions, &doc) {
		return []model.ChatSession{}
	}
	out := make([]model.ChatSession, 0, len(doc.Sessions))
	for _, s := range doc.Sessions {
		out = append(out, s.current())
	}
	return out
}

func (st *SessionStore) save(sessions []model.ChatSession) error {
	return st.a.writeJSON(KeySessions, sessionsOut{Sessions: sessions})
}

// Sessions returns every stored session, most recently created first.
func (st *SessionStore) Sessions() []model.ChatSession {
	st.a.mu.Lock()
	defer st.a.mu.Unlock()
	return st.load()
}

// Session returns one session by id.
func (st *SessionStore) Session(id string) (model.ChatSession, bool) {
	for _, s := range st.Sessions() {
		if s.ID == id {
			return s, true
		}
	}
	return model.ChatSession{}, false
}

// SessionMessages returns the messages of a session, or an empty slice.
func (st *SessionStore) SessionMessages(id string) []model.ChatMessage {
	s, ok := st.Session(id)
	if !ok {
		return []model.ChatMessage{}
	}
	return s.Messages
}

// CreateSession prepends a new empty session and returns it.
func (st *SessionStore) CreateSession(title string) (model.ChatSession, error) {
	s := model.NewSession(title)
	err := st.a.update(func() error {
		sessions := st.load()
		sessions = append([]model.ChatSession{s}, sessions...)
		return st.save(sessions)
	})
	return s, err
}

// UpdateSession merges patch into session id.
func (st *SessionStore) UpdateSession(id string, patch SessionPatch) error {
	return st.modify(id, func(s *model.ChatSession) {
		patch.apply(s)
	})
}

// SaveSessionMessages replaces the messages of session id and recomputes
// its preview and timestamp from the last message. The title falls back to
// the default only when msgs is empty.
func (st *SessionStore) SaveSessionMessages(id string, msgs []model.ChatMessage) error {
	return st.modify(id, func(s *model.ChatSession) {
		s.Messages = model.CloneMessages(msgs)
		s.Recompute()
	})
}

// AddMessage appends msg to session id.
func (st *SessionStore) AddMessage(id string, msg model.ChatMessage) error {
	return st.modify(id, func(s *model.ChatSession) {
		s.Messages = append(s.Messages, msg)
		s.Recompute()
	})
}

// DeleteSession removes session id. Deleting a missing id is a no-op.
func (st *SessionStore) DeleteSession(id string) error {
	return st.a.update(func() error {
		sessions := st.load()
		kept := sessions[:0]
		for _, s := range sessions {
			if s.ID != id {
				kept = append(kept, s)
			}
		}
		return st.save(kept)
	})
}

func (st *SessionStore) modify(id string, fn func(*model.ChatSession)) error {
	return st.a.update(func() error {
		sessions := st.load()
		for i := range sessions {
			if sessions[i].ID == id {
				fn(&sessions[i])
				return st.save(sessions)
			}
		}
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	})
}
