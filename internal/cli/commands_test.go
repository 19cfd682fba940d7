// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/secondme-tui/internal/api"
	"github.com/jeranaias/secondme-tui/internal/config"
	"github.com/jeranaias/secondme-tui/internal/training"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// syncBuffer is a bytes.Buffer safe for writes from stream listeners.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf.Bytes()...)
}

func (b *syncBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

// backend is a fake server keyed by "METHOD /path".
type backend struct {
	mu       sync.Mutex
	routes   map[string]http.HandlerFunc
	requests []string
	bodies   map[string][]byte
}

func newBackend() *backend {
	return &backend{routes: map[string]http.HandlerFunc{}, bodies: map[string][]byte{}}
}

func (b *backend) handle(method, path string, fn http.HandlerFunc) {
	b.routes[method+" "+path] = fn
}

func (b *backend) json(method, path, data string) {
	b.handle(method, path, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"code":0,"message":"ok","data":%s}`, data)
	})
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.Path
	body, _ := io.ReadAll(r.Body)
	b.mu.Lock()
	b.requests = append(b.requests, key)
	b.bodies[key] = body
	fn, ok := b.routes[key]
	b.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	fn(w, r)
}

func (b *backend) called(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, r := range b.requests {
		if r == key {
			return true
		}
	}
	return false
}

func (b *backend) body(key string) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bodies[key]
}

func sseDelta(s string) string {
	data, _ := json.Marshal(map[string]any{
		"choices": []any{map[string]any{"delta": map[string]string{"content": s}}},
	})
	return "data: " + string(data) + "\n\n"
}

// newTestRuntime builds a Runtime on in-memory storage. A nil handler
// points the client at an address nothing listens on.
func newTestRuntime(t *testing.T, h http.Handler) (*Runtime, *syncBuffer) {
	t.Helper()
	t.Setenv("SECONDME_HOME", t.TempDir())

	cfg := config.Default()
	cfg.Storage.Backend = "memory"
	cfg.Storage.Dir = t.TempDir()
	cfg.Training.PollInterval = 100 * time.Millisecond
	cfg.Chat.PumpInterval = time.Millisecond
	cfg.Server.BaseURL = "http://127.0.0.1:1"
	if h != nil {
		srv := httptest.NewServer(h)
		t.Cleanup(srv.Close)
		cfg.Server.BaseURL = srv.URL
	}

	out := &syncBuffer{}
	rt, err := NewRuntime(cfg, WithOutput(out, io.Discard))
	require.NoError(t, err)
	t.Cleanup(rt.Close)
	return rt, out
}

// =============================================================================
// SESSIONS
// =============================================================================

func TestHandleSessions_Lifecycle(t *testing.T) {
	rt, out := newTestRuntime(t, nil)
	ctx := context.Background()

	require.NoError(t, HandleSessions(ctx, rt, Args{Raw: []string{"list"}}))
	assert.Contains(t, out.String(), "No sessions yet.")

	require.NoError(t, HandleSessions(ctx, rt, Args{Raw: []string{"new", "Trip", "ideas"}}))
	sessions := rt.Sessions.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, "Trip ideas", sessions[0].Title)

	out.Reset()
	require.NoError(t, HandleSessions(ctx, rt, Args{JSON: true, Raw: []string{"show", "1"}}))
	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, sessions[0].ID, resp.Data.ID)

	require.NoError(t, HandleSessions(ctx, rt, Args{Raw: []string{"delete", sessions[0].ID[:8]}}))
	assert.Empty(t, rt.Sessions.Sessions())

	err := HandleSessions(ctx, rt, Args{Raw: []string{"delete", "missing"}})
	assert.Equal(t, ExitNotFoundError, ExitCodeFor(err))
}

// =============================================================================
// ROLES
// =============================================================================

func TestHandleRoles_CreateValidatesLocally(t *testing.T) {
	be := newBackend()
	rt, _ := newTestRuntime(t, be)

	err := HandleRoles(context.Background(), rt, Args{Raw: []string{"create", "--prompt", "Be kind"}})
	assert.Equal(t, ExitUsageError, ExitCodeFor(err))

	err = HandleRoles(context.Background(), rt, Args{Raw: []string{"create", "--name", strings.Repeat("n", 65), "--prompt", "x"}})
	assert.Equal(t, ExitUsageError, ExitCodeFor(err))

	assert.False(t, be.called("POST /api/kernel2/roles"), "invalid input never reaches the backend")
}

func TestHandleRoles_CreateAndList(t *testing.T) {
	be := newBackend()
	be.json(http.MethodPost, "/api/kernel2/roles", `{"id":1,"uuid":"r-1","name":"Coach","system_prompt":"Be kind"}`)
	be.json(http.MethodGet, "/api/kernel2/roles", `[{"id":1,"uuid":"r-1","name":"Coach","description":"Career help\nmore","is_active":true}]`)
	rt, out := newTestRuntime(t, be)
	ctx := context.Background()

	require.NoError(t, HandleRoles(ctx, rt, Args{Raw: []string{"create", "--name", "Coach", "--prompt", "Be kind", "--no-l1"}}))
	assert.Contains(t, out.String(), "r-1")

	var req api.RoleRequest
	require.NoError(t, json.Unmarshal(be.body("POST /api/kernel2/roles"), &req))
	assert.Equal(t, "Coach", req.Name)
	assert.Equal(t, "Be kind", req.SystemPrompt)
	assert.True(t, req.EnableL0Retrieval)
	assert.False(t, req.EnableL1Retrieval)

	out.Reset()
	require.NoError(t, HandleRoles(ctx, rt, Args{Raw: []string{"list"}}))
	assert.Contains(t, out.String(), "Coach")
	assert.Contains(t, out.String(), "Career help")
	assert.NotContains(t, out.String(), "more")
}

// =============================================================================
// SPACES AND MEMORIES
// =============================================================================

func TestHandleSpaces_ListJSON(t *testing.T) {
	be := newBackend()
	be.json(http.MethodGet, "/api/space/all", `[{"id":"s1","title":"Plan","objective":"Decide","host":"a","participants":["a","b"],"status":1}]`)
	rt, out := newTestRuntime(t, be)

	require.NoError(t, HandleSpaces(context.Background(), rt, Args{JSON: true, Raw: []string{"list"}}))
	var resp struct {
		Data []api.Space `json:"data"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "Plan", resp.Data[0].Title)
}

func TestHandleSpaces_CreateValidates(t *testing.T) {
	be := newBackend()
	rt, _ := newTestRuntime(t, be)

	err := HandleSpaces(context.Background(), rt, Args{Raw: []string{"create", "--title", "Plan"}})
	assert.Equal(t, ExitUsageError, ExitCodeFor(err))
	assert.False(t, be.called("POST /api/space/create"))
}

func TestHandleMemories_List(t *testing.T) {
	be := newBackend()
	be.json(http.MethodGet, "/api/documents/list", `[{"id":1,"name":"diary.md","document_size":2048,"embedding_status":"SUCCESS","create_time":"2025-01-02"}]`)
	rt, out := newTestRuntime(t, be)

	require.NoError(t, HandleMemories(context.Background(), rt, Args{}))
	assert.Contains(t, out.String(), "diary.md")
	assert.Contains(t, out.String(), "2.0 KB")
	assert.Contains(t, out.String(), "1 of 3 memories needed")
}

// =============================================================================
// SERVICE AND TRAINING
// =============================================================================

func TestHandleService_Status(t *testing.T) {
	be := newBackend()
	be.json(http.MethodGet, "/api/kernel2/llama/status", `{"is_running":true,"process_info":{"pid":4242,"cpu_percent":1.5,"memory_percent":3,"cmdline":["llama-server","-m","x.gguf"]}}`)
	rt, out := newTestRuntime(t, be)

	require.NoError(t, HandleService(context.Background(), rt, Args{JSON: true, Raw: []string{"status"}}))
	var resp struct {
		Data ServiceInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.True(t, resp.Data.Running)
	assert.Equal(t, "4242", resp.Data.PID)
	assert.Equal(t, "llama-server -m x.gguf", resp.Data.Command)
	assert.Equal(t, training.StatusRunning, resp.Data.ModelStatus)
}

func TestHandleTrain_RequiresMemories(t *testing.T) {
	be := newBackend()
	be.json(http.MethodGet, "/api/documents/list", `[{"name":"a"}]`)
	rt, _ := newTestRuntime(t, be)

	err := HandleTrain(context.Background(), rt, Args{Raw: []string{"start", "--detach"}})
	require.ErrorIs(t, err, training.ErrInsufficientMemories)
	assert.Equal(t, ExitUsageError, ExitCodeFor(err))
	assert.False(t, be.called("POST /api/trainprocess/start"))
}

func TestHandleTrain_StartAndWatch(t *testing.T) {
	be := newBackend()
	be.json(http.MethodGet, "/api/documents/list", `[{"name":"a"},{"name":"b"},{"name":"c"}]`)
	be.json(http.MethodPost, "/api/trainprocess/start", `{"progress_id":"p1"}`)
	be.json(http.MethodGet, "/api/trainprocess/progress/Qwen2.5-0.5B-Instruct",
		`{"overall_progress":100,"current_stage":"training_to_create_second_me","status":"completed","stages":{}}`)
	be.handle(http.MethodGet, "/api/trainprocess/logs", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"message\":\"loading weights\"}\n\n")
	})
	rt, out := newTestRuntime(t, be)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, HandleTrain(ctx, rt, Args{Raw: []string{"start"}}))

	assert.Contains(t, out.String(), "Training started")
	assert.Contains(t, out.String(), "Training complete.")

	var body struct {
		ModelName string `json:"model_name"`
	}
	require.NoError(t, json.Unmarshal(be.body("POST /api/trainprocess/start"), &body))
	assert.Equal(t, "Qwen2.5-0.5B-Instruct", body.ModelName)

	tc, ok := rt.Blobs.TrainingConfig()
	require.True(t, ok)
	assert.Equal(t, "Qwen2.5-0.5B-Instruct", tc.BaseModel)
}

func TestHandleTrain_StatusJSON(t *testing.T) {
	be := newBackend()
	be.json(http.MethodGet, "/api/trainprocess/progress/Qwen2.5-0.5B-Instruct",
		`{"overall_progress":20,"current_stage":"downloading_the_base_model","status":"in_progress",
		  "stages":{"downloading_the_base_model":{"name":"Downloading","progress":100,"status":"completed","steps":{}}}}`)
	be.json(http.MethodGet, "/api/kernel2/llama/status", `{"is_running":false}`)
	rt, out := newTestRuntime(t, be)

	require.NoError(t, HandleTrain(context.Background(), rt, Args{JSON: true, Raw: []string{"status"}}))
	var resp struct {
		Data training.Snapshot `json:"data"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.InDelta(t, 20, resp.Data.Progress.Overall, 1e-9)
	assert.Equal(t, training.StatusCompleted, resp.Data.Progress.StageDetails[0].Status)
	assert.Equal(t, training.StatusPending, resp.Data.Progress.StageDetails[1].Status)
}

// =============================================================================
// ASK
// =============================================================================

func TestHandleAsk_StreamsAnswer(t *testing.T) {
	be := newBackend()
	be.handle(http.MethodPost, "/api/kernel2/chat", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, chunk := range []string{sseDelta("Hi"), sseDelta(" there"), "data: [DONE]\n\n"} {
			_, _ = io.WriteString(w, chunk)
			flusher.Flush()
			time.Sleep(10 * time.Millisecond)
		}
	})
	rt, out := newTestRuntime(t, be)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, HandleAsk(ctx, rt, Args{JSON: true, Raw: []string{"Who", "am", "I?"}}))

	var resp struct {
		Data AskResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, "Who am I?", resp.Data.Question)
	assert.Equal(t, "Hi there", resp.Data.Answer)

	msgs := rt.Playground.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Hi there", msgs[1].Content)
}
