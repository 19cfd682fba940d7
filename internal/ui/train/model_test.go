// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package train

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/secondme-tui/internal/api"
	"github.com/jeranaias/secondme-tui/internal/kv"
	"github.com/jeranaias/secondme-tui/internal/logtail"
	"github.com/jeranaias/secondme-tui/internal/storage"
	"github.com/jeranaias/secondme-tui/internal/training"
	"github.com/jeranaias/secondme-tui/internal/ui/styles"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type fakeServer struct {
	mu     sync.Mutex
	routes map[string]string
	hits   map[string]int
}

func newFakeServer() *fakeServer {
	return &fakeServer{routes: map[string]string{}, hits: map[string]int{}}
}

func (s *fakeServer) set(method, path, data string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[method+" "+path] = data
}

func (s *fakeServer) count(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[method+" "+path]
}

func (s *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.Path
	s.mu.Lock()
	s.hits[key]++
	data, ok := s.routes[key]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"code":0,"message":"ok","data":%s}`, data)
}

const progressPath = "/api/trainprocess/progress/" + training.DefaultBaseModel

type fixture struct {
	model *Model
	srv   *fakeServer
	ctl   *training.Controller
	blobs *storage.Blobs
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	srv := newFakeServer()
	srv.set(http.MethodGet, "/api/kernel2/llama/status", `{"is_running":false}`)
	hs := httptest.NewServer(srv)
	t.Cleanup(hs.Close)

	client := api.New(hs.URL)
	blobs := storage.NewBlobs(storage.New(kv.NewMemoryStore()))
	monitor := training.NewMonitor(client, nil)
	logs := logtail.NewFollower(client, blobs, 100)
	ctl := training.NewController(client, monitor, logs, blobs, training.ControllerOptions{
		PollInterval: 20 * time.Millisecond,
	})
	svc := training.NewServiceWatcher(client, monitor, 20*time.Millisecond)
	t.Cleanup(monitor.Unmount)

	m := New(context.Background(), ctl, svc, logs, styles.NewTheme("dark"), Options{Blobs: blobs})
	t.Cleanup(m.Close)
	m.SetSize(120, 40)
	return &fixture{model: m, srv: srv, ctl: ctl, blobs: blobs}
}

// exec runs cmd and every command it batches, feeding results back.
func exec(m *Model, cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	switch msg := cmd().(type) {
	case nil:
	case tea.BatchMsg:
		for _, c := range msg {
			exec(m, c)
		}
	case actionDoneMsg, checkDoneMsg, probeDoneMsg:
		m.Update(msg)
	}
}

func press(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func lastToast(t *testing.T, m *Model) string {
	t.Helper()
	toasts := m.toasts.Toasts()
	require.NotEmpty(t, toasts)
	return toasts[0].Message
}

// =============================================================================
// TESTS
// =============================================================================

func TestView_Initial(t *testing.T) {
	f := newFixture(t)
	view := f.model.View()
	assert.Contains(t, view, "Training")
	assert.Contains(t, view, training.StatusSeedIdentity.Label())
	assert.Contains(t, view, training.DefaultBaseModel)
	for _, name := range training.StageNames {
		assert.Contains(t, view, name[:20])
	}
	assert.Contains(t, view, "No training logs yet.")
}

func TestInit_ReadsProgress(t *testing.T) {
	f := newFixture(t)
	f.srv.set(http.MethodGet, progressPath,
		`{"overall_progress":40,"current_stage":"activating_the_memory_matrix","status":"in_progress",
		  "stages":{"activating_the_memory_matrix":{"name":"Memory","progress":50,"status":"in_progress",
		  "current_step":"embed","steps":{"embed":{"name":"Embedding memories","status":"in_progress"}}}}}`)

	exec(f.model, f.model.Init())
	t.Cleanup(f.ctl.Close)

	snap := f.model.Snapshot()
	assert.Equal(t, training.StatusTraining, snap.Status)
	assert.InDelta(t, 40, snap.Progress.Overall, 1e-9)
	assert.Equal(t, training.PollPolling, f.ctl.Poller().State(), "mid-run progress resumes polling")

	view := f.model.View()
	assert.Contains(t, view, " 40%")
	assert.Contains(t, view, "Embedding memories")
}

func TestTrainKey_NeedsMemories(t *testing.T) {
	f := newFixture(t)
	f.srv.set(http.MethodGet, "/api/documents/list", `[{"name":"a"}]`)

	exec(f.model, f.model.Update(press('s')))

	assert.Contains(t, lastToast(t, f.model), "Upload at least 3 memories")
	assert.Zero(t, f.srv.count(http.MethodPost, "/api/trainprocess/start"))
	assert.False(t, f.model.busy)
}

func TestTrainKey_Starts(t *testing.T) {
	f := newFixture(t)
	f.srv.set(http.MethodGet, "/api/documents/list", `[{"name":"a"},{"name":"b"},{"name":"c"}]`)
	f.srv.set(http.MethodPost, "/api/trainprocess/start", `{"progress_id":"p1"}`)
	f.srv.set(http.MethodGet, progressPath, `{"overall_progress":5,"status":"in_progress","stages":{}}`)
	t.Cleanup(f.ctl.Close)

	exec(f.model, f.model.Update(press('s')))

	assert.Equal(t, 1, f.srv.count(http.MethodPost, "/api/trainprocess/start"))
	assert.Equal(t, "Training started", lastToast(t, f.model))
	assert.Equal(t, training.StatusTraining, f.model.Snapshot().Status)
}

func TestStopKey_IdleIsNoop(t *testing.T) {
	f := newFixture(t)
	f.model.Update(press('x'))
	assert.Equal(t, "No training in progress", lastToast(t, f.model))
	assert.Zero(t, f.srv.count(http.MethodPost, "/api/trainprocess/stop"))
}

func TestServiceKey_RequiresTrainedModel(t *testing.T) {
	f := newFixture(t)
	f.model.Update(press('r'))
	assert.Contains(t, lastToast(t, f.model), "Train the model")
	assert.Zero(t, f.srv.count(http.MethodPost, "/api/kernel2/llama/start"))
}

func TestServiceKey_StartsService(t *testing.T) {
	f := newFixture(t)
	f.srv.set(http.MethodPost, "/api/kernel2/llama/start", `null`)
	f.srv.set(http.MethodGet, "/api/kernel2/llama/status", `{"is_running":true}`)
	f.ctl.Monitor().SetStatus(training.StatusTrained)
	f.model.Update(SnapshotMsg{Snap: f.ctl.Monitor().Snapshot()})

	exec(f.model, f.model.Update(press('r')))

	assert.Equal(t, training.StatusRunning, f.model.Snapshot().Status)
	assert.Equal(t, "Model service running", lastToast(t, f.model))
}

func TestPollExit_CompletedShownOnce(t *testing.T) {
	f := newFixture(t)

	f.model.Update(PollExitMsg{State: training.PollCompleted})
	assert.Contains(t, lastToast(t, f.model), "Training complete")
	assert.True(t, f.blobs.Flag(storage.KeyHasShownTrainingComplete))

	f.model.toasts.Dismiss()
	f.model.Update(PollExitMsg{State: training.PollCompleted})
	assert.False(t, f.model.toasts.HasToasts())
}

func TestPollExit_FailedNamesStage(t *testing.T) {
	f := newFixture(t)
	f.srv.set(http.MethodGet, progressPath,
		`{"overall_progress":45,"current_stage":"synthesize_your_life_narrative","status":"failed",
		  "stages":{"synthesize_your_life_narrative":{"name":"Life Narrative","progress":20,"status":"failed","steps":{}}}}`)
	_, err := f.ctl.Monitor().CheckTrainStatus(context.Background())
	require.NoError(t, err)

	f.model.Update(PollExitMsg{State: training.PollFailed})
	assert.Equal(t, "Training failed during Life Narrative", lastToast(t, f.model))
}

func TestAttach_ForwardsSnapshots(t *testing.T) {
	f := newFixture(t)
	got := make(chan tea.Msg, 8)
	f.model.Attach(func(msg tea.Msg) { got <- msg })

	f.ctl.Monitor().SetStatus(training.StatusTrained)

	select {
	case msg := <-got:
		snap, ok := msg.(SnapshotMsg)
		require.True(t, ok, "got %T", msg)
		assert.Equal(t, training.StatusTrained, snap.Snap.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("no SnapshotMsg forwarded")
	}
}

func TestLogsView(t *testing.T) {
	f := newFixture(t)
	f.model.Update(LogsMsg{Entries: []storage.LogEntry{
		{Message: "loading weights", Timestamp: "2025-01-02T10:00:00Z"},
		{Message: "epoch 1", Timestamp: "2025-01-02T10:00:05Z"},
	}})
	view := f.model.View()
	assert.Contains(t, view, "Logs (2)")
	assert.Contains(t, view, "epoch 1")
}

func TestCurrentStep(t *testing.T) {
	stage := training.StageInfo{
		CurrentStep: "model_download",
		Steps:       map[string]training.Step{"model_download": {Name: "Downloading weights"}},
	}
	assert.Equal(t, "Downloading weights", currentStep(stage, ""))
	assert.Equal(t, "split chunks", currentStep(training.StageInfo{}, "split_chunks"))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, clamp(-5))
	assert.Equal(t, 0.5, clamp(50))
	assert.Equal(t, 1.0, clamp(150))
}
