// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"fmt"

	"github.com/jeranaias/secondme-tui/internal/model"
	"github.com/jeranaias/secondme-tui/internal/storage"
)

// =============================================================================
// SESSION CHAT
// =============================================================================

type sessionBackend struct {
	store *storage.SessionStore
}

func (b sessionBackend) load(id string) []model.ChatMessage {
	return b.store.SessionMessages(id)
}

func (b sessionBackend) save(id string, msgs []model.ChatMessage) error {
	return b.store.SaveSessionMessages(id, msgs)
}

func (b sessionBackend) sent(id string, first bool, text string) error {
	patch := storage.SessionPatch{LastMessage: &text}
	if first {
		title := model.DeriveTitle(text)
		patch.Title = &title
	}
	return b.store.UpdateSession(id, patch)
}

// Controller drives the multi-session chat.
type Controller struct {
	store    *storage.SessionStore
	settings SettingsFunc
	e        *engine
}

// NewController wires a session store to a stream consumer. settings is
// read on every send.
func NewController(store *storage.SessionStore, consumer Streamer, settings SettingsFunc) *Controller {
	return &Controller{
		store:    store,
		settings: settings,
		e:        newEngine(consumer, sessionBackend{store: store}, "chat"),
	}
}

// Mount selects the first stored session, creating one when none exist.
func (c *Controller) Mount() error {
	sessions := c.store.Sessions()
	if len(sessions) == 0 {
		s, err := c.store.CreateSession("")
		if err != nil {
			return fmt.Errorf("create initial session: %w", err)
		}
		c.e.activate(s.ID)
		return nil
	}
	c.e.activate(sessions[0].ID)
	return nil
}

// NewSession creates a session and selects it.
func (c *Controller) NewSession() (model.ChatSession, error) {
	s, err := c.store.CreateSession("")
	if err != nil {
		return model.ChatSession{}, err
	}
	c.e.activate(s.ID)
	return s, nil
}

// SelectSession stops any running stream and then loads session id.
func (c *Controller) SelectSession(id string) error {
	if _, ok := c.store.Session(id); !ok {
		return fmt.Errorf("select session %q: %w", id, storage.ErrNotFound)
	}
	c.e.activate(id)
	return nil
}

// SendMessage appends text with an assistant placeholder to the active
// session and streams the answer into it.
func (c *Controller) SendMessage(ctx context.Context, text string) error {
	if _, open := c.e.activeKey(); !open {
		if err := c.Mount(); err != nil {
			return err
		}
	}
	return c.e.send(ctx, text, requestFrom(c.settings()))
}

// DeleteSession removes id. When it was active the first remaining session
// is selected, or a fresh one is created.
func (c *Controller) DeleteSession(id string) error {
	active, _ := c.e.activeKey()
	if id == active {
		c.e.consumer.Stop()
	}
	if err := c.store.DeleteSession(id); err != nil {
		return err
	}
	remaining := c.store.Sessions()
	if len(remaining) == 0 {
		_, err := c.NewSession()
		return err
	}
	if id == active {
		c.e.activate(remaining[0].ID)
		return nil
	}
	c.e.changed()
	return nil
}

// ClearSession empties the active session.
func (c *Controller) ClearSession() error {
	return c.e.clear()
}

// StopStream aborts the running answer, keeping what arrived so far.
func (c *Controller) StopStream() {
	c.e.consumer.Stop()
}

// Messages returns the active session's messages.
func (c *Controller) Messages() []model.ChatMessage {
	return c.e.snapshot()
}

// Sessions returns every stored session.
func (c *Controller) Sessions() []model.ChatSession {
	return c.store.Sessions()
}

// Active returns the active session.
func (c *Controller) Active() (model.ChatSession, bool) {
	id, open := c.e.activeKey()
	if !open {
		return model.ChatSession{}, false
	}
	return c.store.Session(id)
}

// Streaming reports whether an answer is streaming.
func (c *Controller) Streaming() bool {
	return c.e.streaming()
}

// Watch calls fn after every change to sessions, messages or stream state.
func (c *Controller) Watch(fn func()) (cancel func()) {
	return c.e.watch(fn)
}

// Unmount stops the stream and detaches from the consumer.
func (c *Controller) Unmount() {
	c.e.close()
}
