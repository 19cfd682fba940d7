// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"

	"github.com/jeranaias/secondme-tui/internal/api"
	"github.com/jeranaias/secondme-tui/internal/model"
	"github.com/jeranaias/secondme-tui/internal/storage"
)

// =============================================================================
// ROLE CHAT
// =============================================================================

type roleBackend struct {
	store *storage.RoleChatStore
}

func (b roleBackend) load(id string) []model.ChatMessage {
	return b.store.Messages(id)
}

func (b roleBackend) save(id string, msgs []model.ChatMessage) error {
	return b.store.SaveMessages(id, msgs)
}

func (roleBackend) sent(string, bool, string) error { return nil }

// RoleController chats with one role at a time.
type RoleController struct {
	store    *storage.RoleChatStore
	settings SettingsFunc
	e        *engine
	role     api.Role
}

// NewRoleController wires a role chat store to a stream consumer.
func NewRoleController(store *storage.RoleChatStore, consumer Streamer, settings SettingsFunc) *RoleController {
	return &RoleController{
		store:    store,
		settings: settings,
		e:        newEngine(consumer, roleBackend{store: store}, "chat"),
	}
}

// Open stops any running stream, seeds the welcome message on first open
// and loads the role's log.
func (c *RoleController) Open(role api.Role) error {
	c.e.consumer.Stop()
	if _, err := c.store.EnsureWelcome(role.UUID, role.Name); err != nil {
		return err
	}
	c.e.mu.Lock()
	c.role = role
	c.e.mu.Unlock()
	c.e.activate(role.UUID)
	return nil
}

// Role returns the open role.
func (c *RoleController) Role() api.Role {
	c.e.mu.Lock()
	defer c.e.mu.Unlock()
	return c.role
}

// SendMessage streams an answer from the open role.
func (c *RoleController) SendMessage(ctx context.Context, text string) error {
	role := c.Role()
	req := requestFrom(c.settings())
	req.RoleID = role.UUID
	req.SystemPrompt = role.SystemPrompt
	req.EnableL0Retrieval = role.EnableL0Retrieval
	req.EnableL1Retrieval = role.EnableL1Retrieval
	return c.e.send(ctx, text, req)
}

// Clear empties the role's log and seeds the welcome message again.
func (c *RoleController) Clear() error {
	if err := c.e.clear(); err != nil {
		return err
	}
	role := c.Role()
	if _, err := c.store.EnsureWelcome(role.UUID, role.Name); err != nil {
		return err
	}
	c.e.reload()
	return nil
}

// Forget deletes the role's log entirely and closes it.
func (c *RoleController) Forget() error {
	role := c.Role()
	c.e.deactivate()
	return c.store.DeleteRole(role.UUID)
}

// StopStream aborts the running answer.
func (c *RoleController) StopStream() { c.e.consumer.Stop() }

// Messages returns the open role's log.
func (c *RoleController) Messages() []model.ChatMessage { return c.e.snapshot() }

// Streaming reports whether an answer is streaming.
func (c *RoleController) Streaming() bool { return c.e.streaming() }

// Watch calls fn after every change.
func (c *RoleController) Watch(fn func()) (cancel func()) { return c.e.watch(fn) }

// Unmount stops the stream and detaches from the consumer.
func (c *RoleController) Unmount() { c.e.close() }
