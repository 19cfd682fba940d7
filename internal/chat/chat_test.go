// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/secondme-tui/internal/api"
	"github.com/jeranaias/secondme-tui/internal/kv"
	"github.com/jeranaias/secondme-tui/internal/model"
	"github.com/jeranaias/secondme-tui/internal/storage"
	"github.com/jeranaias/secondme-tui/internal/stream"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// recordingStore keeps every value written to the sessions key.
type recordingStore struct {
	*kv.MemoryStore
	mu     sync.Mutex
	writes []string
}

func (r *recordingStore) Set(key, value string) error {
	if key == storage.KeySessions {
		r.mu.Lock()
		r.writes = append(r.writes, value)
		r.mu.Unlock()
	}
	return r.MemoryStore.Set(key, value)
}

func (r *recordingStore) sessionWrites() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.writes...)
}

// fakeStreamer records calls and lets tests publish states by hand.
type fakeStreamer struct {
	mu       sync.Mutex
	calls    []string
	requests []stream.ChatRequest
	state    stream.State
	fn       func(stream.State)
}

func (f *fakeStreamer) Send(_ context.Context, req stream.ChatRequest) {
	f.mu.Lock()
	f.calls = append(f.calls, "send")
	f.requests = append(f.requests, req)
	f.state = stream.State{Streaming: true}
	f.mu.Unlock()
}

func (f *fakeStreamer) Stop() {
	f.mu.Lock()
	f.calls = append(f.calls, "stop")
	f.state.Streaming = false
	f.mu.Unlock()
}

func (f *fakeStreamer) State() stream.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeStreamer) Subscribe(fn func(stream.State)) func() {
	f.fn = fn
	return func() { f.fn = nil }
}

func (f *fakeStreamer) emit(content string) {
	st := stream.State{Streaming: true, Content: content}
	f.mu.Lock()
	f.state = st
	f.mu.Unlock()
	if f.fn != nil {
		f.fn(st)
	}
}

func (f *fakeStreamer) lastRequest() stream.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func defaultSettings() storage.PlaygroundSettings {
	return storage.DefaultSettings("Ada", 0.3)
}

func newSessionController(t *testing.T, s Streamer) (*Controller, *storage.SessionStore) {
	t.Helper()
	store := storage.NewSessionStore(storage.New(kv.NewMemoryStore()))
	c := NewController(store, s, defaultSettings)
	t.Cleanup(c.Unmount)
	return c, store
}

func delta(s string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []any{map[string]any{"delta": map[string]string{"content": s}}},
	})
	return "data: " + string(b) + "\n\n"
}

// =============================================================================
// END TO END
// =============================================================================

func TestController_EndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		for _, chunk := range []string{delta("Hi"), delta(" there"), "data: [DONE]\n\n"} {
			_, _ = w.Write([]byte(chunk))
			flusher.Flush()
			time.Sleep(30 * time.Millisecond)
		}
	}))
	defer srv.Close()

	rec := &recordingStore{MemoryStore: kv.NewMemoryStore()}
	store := storage.NewSessionStore(storage.New(rec))
	other, err := store.CreateSession("Other")
	require.NoError(t, err)
	require.NoError(t, store.SaveSessionMessages(other.ID, []model.ChatMessage{model.NewUserMessage("keep me")}))

	consumer := stream.New(api.New(srv.URL), stream.Options{PumpInterval: time.Millisecond})
	c := NewController(store, consumer, defaultSettings)
	defer c.Unmount()

	_, err = c.NewSession()
	require.NoError(t, err)
	require.NoError(t, c.SendMessage(context.Background(), "Hello"))

	require.Eventually(t, func() bool {
		return !c.Streaming() && len(c.Messages()) == 2 && c.Messages()[1].Content == "Hi there"
	}, 5*time.Second, 5*time.Millisecond)
	consumer.Wait()

	msgs := c.Messages()
	assert.Equal(t, model.RoleUser, msgs[0].Role)
	assert.Equal(t, "Hello", msgs[0].Content)
	assert.Equal(t, model.RoleAssistant, msgs[1].Role)

	active, ok := c.Active()
	require.True(t, ok)
	assert.Equal(t, "Hello", active.Title)
	assert.Equal(t, "Hi there", active.LastMessage)
	require.Len(t, active.Messages, 2)

	var sawPartial, sawFull bool
	for _, w := range rec.sessionWrites() {
		if strings.Contains(w, `"content":"Hi"`) {
			sawPartial = true
		}
		if strings.Contains(w, `"content":"Hi there"`) {
			sawFull = true
		}
	}
	assert.True(t, sawPartial, "partial content persisted")
	assert.True(t, sawFull, "final content persisted")

	untouched, ok := store.Session(other.ID)
	require.True(t, ok)
	assert.Equal(t, "Other", untouched.Title)
	require.Len(t, untouched.Messages, 1)
	assert.Equal(t, "keep me", untouched.Messages[0].Content)
}

// =============================================================================
// SESSION CONTROLLER
// =============================================================================

func TestController_MountCreatesSession(t *testing.T) {
	c, store := newSessionController(t, &fakeStreamer{})
	require.NoError(t, c.Mount())

	sessions := store.Sessions()
	require.Len(t, sessions, 1)
	active, ok := c.Active()
	require.True(t, ok)
	assert.Equal(t, sessions[0].ID, active.ID)
	assert.Equal(t, model.DefaultSessionTitle, active.Title)
}

func TestController_MountSelectsFirst(t *testing.T) {
	c, store := newSessionController(t, &fakeStreamer{})
	_, err := store.CreateSession("older")
	require.NoError(t, err)
	newest, err := store.CreateSession("newest")
	require.NoError(t, err)

	require.NoError(t, c.Mount())
	active, _ := c.Active()
	assert.Equal(t, newest.ID, active.ID)
	assert.Len(t, store.Sessions(), 2)
}

func TestController_SendBuildsRequest(t *testing.T) {
	fs := &fakeStreamer{}
	c, _ := newSessionController(t, fs)
	require.NoError(t, c.Mount())

	require.NoError(t, c.SendMessage(context.Background(), "first question"))
	fs.emit("first answer")
	require.NoError(t, c.SendMessage(context.Background(), "second"))

	req := fs.lastRequest()
	assert.Equal(t, "second", req.Message)
	assert.InDelta(t, 0.3, req.Temperature, 0.0001)
	assert.Contains(t, req.SystemPrompt, `Ada's "Second Me"`)
	require.Len(t, req.History, 2)
	assert.Equal(t, "first question", req.History[0].Content)
	assert.Equal(t, "first answer", req.History[1].Content)

	active, _ := c.Active()
	assert.Equal(t, "first question", active.Title, "title is set once")
	assert.Equal(t, "second", active.LastMessage)
}

func TestController_SendRejectsBlank(t *testing.T) {
	c, _ := newSessionController(t, &fakeStreamer{})
	require.NoError(t, c.Mount())
	assert.ErrorIs(t, c.SendMessage(context.Background(), "   "), ErrEmptyMessage)
	assert.Empty(t, c.Messages())
}

func TestController_LongTitle(t *testing.T) {
	c, _ := newSessionController(t, &fakeStreamer{})
	require.NoError(t, c.Mount())
	text := strings.Repeat("abcdef", 6)
	require.NoError(t, c.SendMessage(context.Background(), text))

	active, _ := c.Active()
	assert.Equal(t, text[:30]+"…", active.Title)
}

func TestController_SelectStopsBeforeLoading(t *testing.T) {
	fs := &fakeStreamer{}
	c, store := newSessionController(t, fs)
	require.NoError(t, c.Mount())
	first, _ := c.Active()

	require.NoError(t, c.SendMessage(context.Background(), "hello"))
	second, err := store.CreateSession("")
	require.NoError(t, err)

	fs.mu.Lock()
	fs.calls = nil
	fs.mu.Unlock()
	require.NoError(t, c.SelectSession(second.ID))
	assert.Equal(t, []string{"stop"}, fs.calls)

	// A late update from the first session's stream is ignored.
	fs.emit("late")
	assert.Empty(t, c.Messages())
	stored, _ := store.Session(first.ID)
	assert.Equal(t, "", stored.Messages[1].Content)

	assert.ErrorIs(t, c.SelectSession("missing"), storage.ErrNotFound)
}

func TestController_IgnoresEmptyAndUserTail(t *testing.T) {
	fs := &fakeStreamer{}
	c, _ := newSessionController(t, fs)
	require.NoError(t, c.Mount())
	require.NoError(t, c.SendMessage(context.Background(), "q"))

	fs.emit("")
	assert.Equal(t, "", c.Messages()[1].Content)
	fs.emit("answer")
	assert.Equal(t, "answer", c.Messages()[1].Content)
	assert.Equal(t, "q", c.Messages()[0].Content)
}

func TestController_DeleteSession(t *testing.T) {
	c, store := newSessionController(t, &fakeStreamer{})
	require.NoError(t, c.Mount())
	only, _ := c.Active()

	require.NoError(t, c.DeleteSession(only.ID))
	sessions := store.Sessions()
	require.Len(t, sessions, 1, "a fresh session replaces the last one")
	assert.NotEqual(t, only.ID, sessions[0].ID)
	active, _ := c.Active()
	assert.Equal(t, sessions[0].ID, active.ID)

	keep, err := c.NewSession()
	require.NoError(t, err)
	require.NoError(t, c.DeleteSession(keep.ID))
	active, _ = c.Active()
	assert.Equal(t, sessions[0].ID, active.ID)
}

func TestController_ClearSession(t *testing.T) {
	c, _ := newSessionController(t, &fakeStreamer{})
	require.NoError(t, c.Mount())
	require.NoError(t, c.SendMessage(context.Background(), "something"))

	require.NoError(t, c.ClearSession())
	assert.Empty(t, c.Messages())
	active, _ := c.Active()
	assert.Equal(t, model.DefaultSessionTitle, active.Title)
	assert.Equal(t, "", active.LastMessage)
}

func TestController_Watch(t *testing.T) {
	fs := &fakeStreamer{}
	c, _ := newSessionController(t, fs)
	var n int
	cancel := c.Watch(func() { n++ })
	require.NoError(t, c.Mount())
	assert.Positive(t, n)

	cancel()
	before := n
	require.NoError(t, c.SendMessage(context.Background(), "x"))
	assert.Equal(t, before, n)
}

// =============================================================================
// ROLE AND PLAYGROUND
// =============================================================================

func TestRoleController(t *testing.T) {
	fs := &fakeStreamer{}
	a := storage.New(kv.NewMemoryStore())
	store := storage.NewRoleChatStore(a)
	c := NewRoleController(store, fs, defaultSettings)
	defer c.Unmount()

	role := api.Role{UUID: "r-1", Name: "Coach", SystemPrompt: "You coach.", EnableL0Retrieval: true}
	require.NoError(t, c.Open(role))

	msgs := c.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "Hello! I am a Coach. How can I help you today?", msgs[0].Content)

	require.NoError(t, c.SendMessage(context.Background(), "help"))
	req := fs.lastRequest()
	assert.Equal(t, "r-1", req.RoleID)
	assert.Equal(t, "You coach.", req.SystemPrompt)
	assert.True(t, req.EnableL0Retrieval)
	assert.False(t, req.EnableL1Retrieval)
	require.Len(t, req.History, 1)

	fs.emit("sure")
	assert.Equal(t, "sure", store.Messages("r-1")[2].Content)

	require.NoError(t, c.Clear())
	require.Len(t, c.Messages(), 1, "welcome is seeded again")

	require.NoError(t, c.Forget())
	assert.NotContains(t, store.RoleIDs(), "r-1")
}

func TestPlaygroundController(t *testing.T) {
	fs := &fakeStreamer{}
	store := storage.NewPlaygroundStore(storage.New(kv.NewMemoryStore()))
	settings := storage.DefaultSettings("Ada", 0.7)
	settings.EnableL1Retrieval = false
	c := NewPlaygroundController(store, fs, func() storage.PlaygroundSettings { return settings })
	defer c.Unmount()

	require.NoError(t, c.SendMessage(context.Background(), "hi"))
	fs.emit("hello")

	req := fs.lastRequest()
	assert.InDelta(t, 0.7, req.Temperature, 0.0001)
	assert.False(t, req.EnableL1Retrieval)
	assert.Empty(t, req.History)

	stored := store.Messages()
	require.Len(t, stored, 2)
	assert.Equal(t, "hello", stored[1].Content)

	require.NoError(t, c.Clear())
	assert.Empty(t, store.Messages())
	assert.False(t, c.Streaming())
}
