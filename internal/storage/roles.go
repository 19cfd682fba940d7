// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"sort"

	"github.com/jeranaias/secondme-tui/internal/model"
)

// RoleChatStore keeps one message log per role id, isolated from sessions.
type RoleChatStore struct {
	a *Adapter
}

// NewRoleChatStore returns a role chat store over a.
func NewRoleChatStore(a *Adapter) *RoleChatStore {
	return &RoleChatStore{a: a}
}

func (st *RoleChatStore) load() roleChatsOut {
	var doc roleChatsDoc
	out := roleChatsOut{}
	if !st.a.readJSON(KeyRoleChats, &doc) {
		return out
	}
	for id, m := range doc {
		out[id] = messagesOut{Messages: decodeMessages(m.Messages)}
	}
	return out
}

// Messages returns the log of roleID, or an empty slice.
func (st *RoleChatStore) Messages(roleID string) []model.ChatMessage {
	st.a.mu.Lock()
	defer st.a.mu.Unlock()
	if m, ok := st.load()[roleID]; ok {
		return m.Messages
	}
	return []model.ChatMessage{}
}

// RoleIDs lists roles with a stored log.
func (st *RoleChatStore) RoleIDs() []string {
	st.a.mu.Lock()
	defer st.a.mu.Unlock()
	var ids []string
	for id := range st.load() {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SaveMessages replaces the log of roleID.
func (st *RoleChatStore) SaveMessages(roleID string, msgs []model.ChatMessage) error {
	return st.a.update(func() error {
		all := st.load()
		all[roleID] = messagesOut{Messages: model.CloneMessages(msgs)}
		return st.a.writeJSON(KeyRoleChats, all)
	})
}

// AddMessage appends msg to the log of roleID.
func (st *RoleChatStore) AddMessage(roleID string, msg model.ChatMessage) error {
	return st.a.update(func() error {
		all := st.load()
		m := all[roleID]
		m.Messages = append(m.Messages, msg)
		all[roleID] = m
		return st.a.writeJSON(KeyRoleChats, all)
	})
}

// ClearMessages empties the log of roleID but keeps its entry.
func (st *RoleChatStore) ClearMessages(roleID string) error {
	return st.SaveMessages(roleID, []model.ChatMessage{})
}

// DeleteRole drops the log of roleID entirely.
func (st *RoleChatStore) DeleteRole(roleID string) error {
	return st.a.update(func() error {
		all := st.load()
		if _, ok := all[roleID]; !ok {
			return nil
		}
		delete(all, roleID)
		return st.a.writeJSON(KeyRoleChats, all)
	})
}

// EnsureWelcome seeds the welcome message the first time a role is opened
// and returns the resulting log.
func (st *RoleChatStore) EnsureWelcome(roleID, roleName string) ([]model.ChatMessage, error) {
	var msgs []model.ChatMessage
	err := st.a.update(func() error {
		all := st.load()
		if m, ok := all[roleID]; ok && len(m.Messages) > 0 {
			msgs = m.Messages
			return nil
		}
		msgs = []model.ChatMessage{model.WelcomeMessage(roleName)}
		all[roleID] = messagesOut{Messages: msgs}
		return st.a.writeJSON(KeyRoleChats, all)
	})
	return msgs, err
}
