// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import "github.com/jeranaias/secondme-tui/internal/model"

// PlaygroundStore keeps the single unnamed playground log.
type PlaygroundStore struct {
	a *Adapter
}

// NewPlaygroundStore returns a playground store over a.
func NewPlaygroundStore(a *Adapter) *PlaygroundStore {
	return &PlaygroundStore{a: a}
}

func (st *PlaygroundStore) load() []model.ChatMessage {
	var doc messagesDoc
	if !st.a.readJSON(KeyPlayground, &doc) {
		return []model.ChatMessage{}
	}
	return decodeMessages(doc.Messages)
}

// Messages returns the playground log.
func (st *PlaygroundStore) Messages() []model.ChatMessage {
	st.a.mu.Lock()
	defer st.a.mu.Unlock()
	return st.load()
}

// SaveMessages replaces the playground log.
func (st *PlaygroundStore) SaveMessages(msgs []model.ChatMessage) error {
	return st.a.update(func() error {
		return st.a.writeJSON(KeyPlayground, messagesOut{Messages: model.CloneMessages(msgs)})
	})
}

// AddMessage appends msg to the playground log.
func (st *PlaygroundStore) AddMessage(msg model.ChatMessage) error {
	return st.a.update(func() error {
		msgs := append(st.load(), msg)
		return st.a.writeJSON(KeyPlayground, messagesOut{Messages: msgs})
	})
}

// Clear empties the playground log.
func (st *PlaygroundStore) Clear() error {
	return st.SaveMessages([]model.ChatMessage{})
}
