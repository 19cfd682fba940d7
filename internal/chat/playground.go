// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"

	"github.com/jeranaias/secondme-tui/internal/model"
	"github.com/jeranaias/secondme-tui/internal/storage"
)

// =============================================================================
// PLAYGROUND
// =============================================================================

const playgroundKey = "playground"

type playgroundBackend struct {
	store *storage.PlaygroundStore
}

func (b playgroundBackend) load(string) []model.ChatMessage {
	return b.store.Messages()
}

func (b playgroundBackend) save(_ string, msgs []model.ChatMessage) error {
	return b.store.SaveMessages(msgs)
}

func (playgroundBackend) sent(string, bool, string) error { return nil }

// PlaygroundController chats against the single playground log using the
// saved playground settings.
type PlaygroundController struct {
	settings SettingsFunc
	e        *engine
}

// NewPlaygroundController wires the playground log to a stream consumer.
func NewPlaygroundController(store *storage.PlaygroundStore, consumer Streamer, settings SettingsFunc) *PlaygroundController {
	return &PlaygroundController{
		settings: settings,
		e:        newEngine(consumer, playgroundBackend{store: store}, "chat"),
	}
}

// Mount loads the playground log.
func (c *PlaygroundController) Mount() { c.e.activate(playgroundKey) }

// SendMessage streams an answer into the playground log.
func (c *PlaygroundController) SendMessage(ctx context.Context, text string) error {
	if _, open := c.e.activeKey(); !open {
		c.Mount()
	}
	return c.e.send(ctx, text, requestFrom(c.settings()))
}

// Clear empties the playground log.
func (c *PlaygroundController) Clear() error { return c.e.clear() }

// StopStream aborts the running answer.
func (c *PlaygroundController) StopStream() { c.e.consumer.Stop() }

// Messages returns the playground log.
func (c *PlaygroundController) Messages() []model.ChatMessage { return c.e.snapshot() }

// Streaming reports whether an answer is streaming.
func (c *PlaygroundController) Streaming() bool { return c.e.streaming() }

// Watch calls fn after every change.
func (c *PlaygroundController) Watch(fn func()) (cancel func()) { return c.e.watch(fn) }

// Unmount stops the stream and detaches from the consumer.
func (c *PlaygroundController) Unmount() { c.e.close() }
