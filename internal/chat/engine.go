// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat coordinates a stream consumer with persisted message logs.
//
// Controller drives the multi-session chat, RoleController the per-role
// chats and PlaygroundController the single playground log. All three share
// one engine: it appends the user message and an empty assistant
// placeholder, persists both, streams with the prior history and rewrites
// only the final assistant message as content arrives.
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/jeranaias/secondme-tui/internal/logging"
	"github.com/jeranaias/secondme-tui/internal/model"
	"github.com/jeranaias/secondme-tui/internal/storage"
	"github.com/jeranaias/secondme-tui/internal/stream"
)

var (
	// ErrEmptyMessage is returned when the user text is blank.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrNoActiveLog is returned when nothing has been opened yet.
	ErrNoActiveLog = errors.New("no active conversation")
)

// Streamer is the part of *stream.Consumer the controllers use.
type Streamer interface {
	Send(ctx context.Context, req stream.ChatRequest)
	Stop()
	State() stream.State
	Subscribe(fn func(stream.State)) (cancel func())
}

// SettingsFunc returns the chat settings to use for the next request.
type SettingsFunc func() storage.PlaygroundSettings

// backend persists one family of message logs keyed by string.
type backend interface {
	load(key string) []model.ChatMessage
	save(key string, msgs []model.ChatMessage) error
	// sent runs after the user message and placeholder are persisted.
	// first is true when the log held no user message before.
	sent(key string, first bool, text string) error
}

// =============================================================================
// ENGINE
// =============================================================================

type engine struct {
	consumer Streamer
	backend  backend
	log      *zap.SugaredLogger

	mu        sync.Mutex
	key       string
	open      bool
	messages  []model.ChatMessage
	streamKey string
	watchers  map[int]func()
	nextWatch int

	unsub    func()
	teardown sync.Once
}

func newEngine(consumer Streamer, b backend, name string) *engine {
	e := &engine{
		consumer: consumer,
		backend:  b,
		log:      logging.NewLogger(name),
		watchers: make(map[int]func()),
	}
	e.unsub = consumer.Subscribe(e.onStream)
	return e
}

// activate stops any running stream and then loads the log for key.
func (e *engine) activate(key string) {
	e.consumer.Stop()

	e.mu.Lock()
	e.key = key
	e.open = true
	e.streamKey = ""
	e.messages = e.backend.load(key)
	e.mu.Unlock()
	e.changed()
}

// reload re-reads the active log without touching the stream.
func (e *engine) reload() {
	e.mu.Lock()
	if e.open {
		e.messages = e.backend.load(e.key)
	}
	e.mu.Unlock()
	e.changed()
}

func (e *engine) deactivate() {
	e.consumer.Stop()
	e.mu.Lock()
	e.key = ""
	e.open = false
	e.messages = nil
	e.mu.Unlock()
	e.changed()
}

func (e *engine) activeKey() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.key, e.open
}

func (e *engine) snapshot() []model.ChatMessage {
	e.mu.Lock()
	defer e.mu.Unlock()
	return model.CloneMessages(e.messages)
}

// send persists the user message with an assistant placeholder and starts
// streaming. req carries everything but Message and History.
func (e *engine) send(ctx context.Context, text string, req stream.ChatRequest) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}

	e.mu.Lock()
	if !e.open {
		e.mu.Unlock()
		return ErrNoActiveLog
	}
	key := e.key
	prior := model.CloneMessages(e.messages)
	first := true
	for _, m := range prior {
		if m.IsUser() {
			first = false
			break
		}
	}
	next := append(model.CloneMessages(prior), model.NewUserMessage(text), model.NewAssistantPlaceholder())
	if err := e.backend.save(key, next); err != nil {
		e.mu.Unlock()
		return err
	}
	e.messages = next
	e.streamKey = key
	e.mu.Unlock()

	if err := e.backend.sent(key, first, text); err != nil {
		e.log.Warnw("post-send update failed", "key", key, "error", err)
	}

	req.Message = text
	req.History = model.History(prior)
	e.consumer.Send(ctx, req)
	e.changed()
	return nil
}

// onStream writes streamed content into the final assistant message.
func (e *engine) onStream(st stream.State) {
	if st.Content != "" {
		e.mu.Lock()
		if e.open && e.streamKey == e.key && len(e.messages) > 0 {
			last := &e.messages[len(e.messages)-1]
			if !last.IsUser() && last.Content != st.Content {
				last.Content = st.Content
				if err := e.backend.save(e.key, e.messages); err != nil {
					e.log.Warnw("persisting streamed content failed", "key", e.key, "error", err)
				}
			}
		}
		e.mu.Unlock()
	}
	e.changed()
}

// clear stops the stream and empties the active log.
func (e *engine) clear() error {
	e.consumer.Stop()
	key, open := e.activeKey()
	if !open {
		return ErrNoActiveLog
	}
	if err := e.backend.save(key, []model.ChatMessage{}); err != nil {
		return err
	}
	e.reload()
	return nil
}

func (e *engine) streaming() bool {
	return e.consumer.State().Streaming
}

// watch registers fn to run after every change. fn runs on the stream
// goroutine and must not call back into the controller's stream methods.
func (e *engine) watch(fn func()) (cancel func()) {
	e.mu.Lock()
	e.nextWatch++
	id := e.nextWatch
	e.watchers[id] = fn
	e.mu.Unlock()
	return func() {
		e.mu.Lock()
		delete(e.watchers, id)
		e.mu.Unlock()
	}
}

func (e *engine) changed() {
	e.mu.Lock()
	fns := make([]func(), 0, len(e.watchers))
	for _, fn := range e.watchers {
		fns = append(fns, fn)
	}
	e.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (e *engine) close() {
	e.teardown.Do(func() {
		e.consumer.Stop()
		if e.unsub != nil {
			e.unsub()
		}
	})
}

func requestFrom(s storage.PlaygroundSettings) stream.ChatRequest {
	return stream.ChatRequest{
		SystemPrompt:      s.SystemPrompt,
		EnableL0Retrieval: s.EnableL0Retrieval,
		EnableL1Retrieval: s.EnableL1Retrieval,
		Temperature:       s.Temperature,
	}
}
