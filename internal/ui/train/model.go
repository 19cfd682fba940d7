// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package train

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/secondme-tui/internal/api"
	"github.com/jeranaias/secondme-tui/internal/logging"
	"github.com/jeranaias/secondme-tui/internal/logtail"
	"github.com/jeranaias/secondme-tui/internal/storage"
	"github.com/jeranaias/secondme-tui/internal/training"
	"github.com/jeranaias/secondme-tui/internal/ui/components"
	"github.com/jeranaias/secondme-tui/internal/ui/styles"
)

// =============================================================================
// MESSAGES
// =============================================================================

// SnapshotMsg carries the monitor state.
type SnapshotMsg struct{ Snap training.Snapshot }

// LogsMsg carries the buffered training log.
type LogsMsg struct{ Entries []storage.LogEntry }

// PollExitMsg reports that polling ended on its own.
type PollExitMsg struct{ State training.PollState }

// LogErrorMsg reports a broken log stream.
type LogErrorMsg struct{ Err error }

type action int

const (
	actionTrain action = iota
	actionStop
	actionStartService
	actionStopService
)

type actionDoneMsg struct {
	action    action
	retrained bool
	err       error
}

type checkDoneMsg struct{ err error }

type probeDoneMsg struct {
	status api.ServiceStatus
	err    error
}

// =============================================================================
// MODEL
// =============================================================================

// Options configure the training tab.
type Options struct {
	// Blobs records that the completion notice was shown. Optional.
	Blobs *storage.Blobs
}

// Model is the training tab.
type Model struct {
	ctl   *training.Controller
	svc   *training.ServiceWatcher
	logs  *logtail.Follower
	theme *styles.Theme
	keys  KeyMap
	opts  Options
	ctx   context.Context

	width  int
	height int

	snap    training.Snapshot
	entries []storage.LogEntry
	busy    bool
	ticking bool

	overall progress.Model
	stages  [5]progress.Model
	logView viewport.Model
	spinner spinner.Model
	toasts  *components.ToastManager

	cancels   []func()
	done      chan struct{}
	closeOnce sync.Once
	log       *zap.SugaredLogger
}

// New creates the training tab. logs may be nil.
func New(ctx context.Context, ctl *training.Controller, svc *training.ServiceWatcher, logs *logtail.Follower, theme *styles.Theme, opts Options) *Model {
	bar := func() progress.Model {
		return progress.New(
			progress.WithGradient(string(styles.Purple.Dark), string(styles.Cyan.Dark)),
			progress.WithoutPercentage(),
			progress.WithWidth(30),
		)
	}
	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}
	sp.Style = theme.Spinner

	m := &Model{
		ctl:     ctl,
		svc:     svc,
		logs:    logs,
		theme:   theme,
		keys:    DefaultKeyMap(),
		opts:    opts,
		ctx:     ctx,
		snap:    ctl.Monitor().Snapshot(),
		overall: bar(),
		logView: viewport.New(80, 8),
		spinner: sp,
		toasts:  components.NewToastManager(),
		done:    make(chan struct{}),
		log:     logging.NewLogger("ui.train"),
	}
	for i := range m.stages {
		m.stages[i] = bar()
	}
	if logs != nil {
		m.entries = logs.Entries()
	}
	return m
}

// Attach forwards monitor, poller and log changes to send, normally
// tea.Program.Send. Callbacks only signal; the forwarder reads the
// current state and sends it, so no callback ever blocks.
func (m *Model) Attach(send func(tea.Msg)) {
	snapCh := make(chan struct{}, 1)
	logCh := make(chan struct{}, 1)
	exitCh := make(chan training.PollState, 4)
	errCh := make(chan error, 4)

	signal := func(ch chan struct{}) {
		select {
		case ch <- struct{}{}:
		default:
		}
	}

	monitor := m.ctl.Monitor()
	m.cancels = append(m.cancels, monitor.Subscribe(func(training.Snapshot) { signal(snapCh) }))

	poller := m.ctl.Poller()
	poller.OnExit(func(st training.PollState) {
		select {
		case exitCh <- st:
		default:
		}
	})
	m.cancels = append(m.cancels, func() { poller.OnExit(nil) })

	if m.logs != nil {
		logs := m.logs
		logs.OnEntry(func(storage.LogEntry) { signal(logCh) })
		logs.OnError(func(err error) {
			select {
			case errCh <- err:
			default:
			}
		})
		m.cancels = append(m.cancels, func() {
			logs.OnEntry(nil)
			logs.OnError(nil)
		})
	}

	go func() {
		for {
			select {
			case <-m.done:
				return
			case <-snapCh:
				send(SnapshotMsg{Snap: monitor.Snapshot()})
			case <-logCh:
				send(LogsMsg{Entries: m.logs.Entries()})
			case st := <-exitCh:
				send(PollExitMsg{State: st})
			case err := <-errCh:
				send(LogErrorMsg{Err: err})
			}
		}
	}()
}

// Close detaches every callback.
func (m *Model) Close() {
	m.closeOnce.Do(func() {
		for _, cancel := range m.cancels {
			cancel()
		}
		close(m.done)
	})
}

// Init reads the current progress and service state and reattaches to a
// run in progress.
func (m *Model) Init() tea.Cmd {
	ctx, ctl, svc := m.ctx, m.ctl, m.svc
	check := func() tea.Msg {
		_, err := ctl.Monitor().CheckTrainStatus(ctx)
		return checkDoneMsg{err: err}
	}
	probe := func() tea.Msg {
		st, err := svc.ProbeServiceStatus(ctx)
		return probeDoneMsg{status: st, err: err}
	}
	return tea.Batch(check, probe)
}

// SetSize lays the tab out in width x height cells.
func (m *Model) SetSize(width, height int) {
	m.width, m.height = width, height
	barWidth := width - 60
	if barWidth < 10 {
		barWidth = 10
	}
	if barWidth > 50 {
		barWidth = 50
	}
	m.overall.Width = barWidth
	for i := range m.stages {
		m.stages[i].Width = barWidth
	}
	logHeight := height - 18
	if logHeight < 3 {
		logHeight = 3
	}
	m.logView.Width = width - 4
	m.logView.Height = logHeight
	m.refreshLogs(true)
}

// Update handles a message.
func (m *Model) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case SnapshotMsg:
		m.snap = msg.Snap
		return m.startSpinner()

	case LogsMsg:
		m.entries = msg.Entries
		m.refreshLogs(m.logView.AtBottom())
		return nil

	case PollExitMsg:
		return m.pollExited(msg.State)

	case LogErrorMsg:
		m.toasts.AddWarning("Training log stream interrupted: " + api.UserMessage(msg.Err))
		return m.toastTick()

	case checkDoneMsg:
		m.snap = m.ctl.Monitor().Snapshot()
		if msg.err != nil && !errors.Is(msg.err, api.ErrBusiness) {
			m.toasts.AddWarning("Cannot read training progress: " + api.UserMessage(msg.err))
			return m.toastTick()
		}
		if m.ctl.Resume(m.ctx) {
			m.log.Infow("reattached to running training")
		}
		return m.startSpinner()

	case probeDoneMsg:
		if msg.err != nil {
			m.log.Debugw("service status unavailable", "error", msg.err)
		}
		m.snap = m.ctl.Monitor().Snapshot()
		return nil

	case actionDoneMsg:
		m.busy = false
		m.snap = m.ctl.Monitor().Snapshot()
		return m.actionDone(msg)

	case spinner.TickMsg:
		if !m.active() {
			m.ticking = false
			return nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return cmd

	case components.ToastTickMsg:
		if m.toasts.Tick(msg.Time) {
			return components.ToastTickCmd()
		}
		return nil

	case components.ToastMsg:
		m.toasts.Add(components.NewToast(msg.Kind, msg.Message))
		return m.toastTick()

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.logView, cmd = m.logView.Update(msg)
		return cmd
	}
	return nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Train):
		return m.run(actionTrain)

	case key.Matches(msg, m.keys.Stop):
		if m.ctl.Poller().State() != training.PollPolling && m.snap.Status != training.StatusTraining {
			m.toasts.AddStatus("No training in progress")
			return m.toastTick()
		}
		return m.run(actionStop)

	case key.Matches(msg, m.keys.Service):
		switch m.snap.Status {
		case training.StatusRunning:
			return m.run(actionStopService)
		case training.StatusTrained:
			return m.run(actionStartService)
		default:
			m.toasts.AddWarning("Train the model before starting the service")
			return m.toastTick()
		}

	case key.Matches(msg, m.keys.Refresh):
		return m.Init()

	case key.Matches(msg, m.keys.PageUp):
		m.logView.HalfViewUp()

	case key.Matches(msg, m.keys.PageDown):
		m.logView.HalfViewDown()

	case key.Matches(msg, m.keys.Dismiss):
		m.toasts.Dismiss()
	}
	return nil
}

// run starts a, one action at a time. Service actions block until the
// backend confirms, so they run as commands.
func (m *Model) run(a action) tea.Cmd {
	if m.busy {
		return nil
	}
	m.busy = true
	ctx, ctl, svc := m.ctx, m.ctl, m.svc
	work := func() tea.Msg {
		switch a {
		case actionTrain:
			retrained, err := ctl.Train(ctx)
			return actionDoneMsg{action: a, retrained: retrained, err: err}
		case actionStop:
			return actionDoneMsg{action: a, err: ctl.StopTraining(ctx)}
		case actionStartService:
			return actionDoneMsg{action: a, err: svc.StartService(ctx)}
		default:
			return actionDoneMsg{action: a, err: svc.StopService(ctx)}
		}
	}
	return tea.Batch(work, m.startSpinner())
}

func (m *Model) actionDone(msg actionDoneMsg) tea.Cmd {
	if msg.err != nil {
		switch {
		case errors.Is(msg.err, training.ErrInsufficientMemories):
			m.toasts.AddWarning(fmt.Sprintf("Upload at least %d memories before training", training.DefaultMinMemories))
		case errors.Is(msg.err, context.Canceled):
			return nil
		default:
			m.toasts.AddError(actionName(msg.action) + " failed: " + api.UserMessage(msg.err))
		}
		return m.toastTick()
	}

	switch msg.action {
	case actionTrain:
		if msg.retrained {
			m.toasts.AddStatus("Retraining started")
		} else {
			m.toasts.AddStatus("Training started")
		}
		if m.logs != nil {
			m.entries = m.logs.Entries()
			m.refreshLogs(true)
		}
	case actionStop:
		m.toasts.AddStatus("Training stopped")
	case actionStartService:
		m.toasts.AddSuccess("Model service running")
	case actionStopService:
		m.toasts.AddStatus("Model service stopped")
	}
	return tea.Batch(m.toastTick(), m.startSpinner())
}

func (m *Model) pollExited(st training.PollState) tea.Cmd {
	m.snap = m.ctl.Monitor().Snapshot()
	switch st {
	case training.PollCompleted:
		if m.opts.Blobs != nil {
			if m.opts.Blobs.Flag(storage.KeyHasShownTrainingComplete) {
				return nil
			}
			if err := m.opts.Blobs.SetFlag(storage.KeyHasShownTrainingComplete, true); err != nil {
				m.log.Warnw("saving completion flag failed", "error", err)
			}
		}
		m.toasts.AddSuccess("Training complete. Press r to start the model service.")
	case training.PollFailed:
		msg := "Training failed"
		if stage := failedStage(m.snap.Progress); stage != "" {
			msg += " during " + stage
		}
		m.toasts.AddError(msg)
	default:
		return nil
	}
	return m.toastTick()
}

func actionName(a action) string {
	switch a {
	case actionTrain:
		return "Training"
	case actionStop:
		return "Stop"
	case actionStartService:
		return "Service start"
	default:
		return "Service stop"
	}
}

// failedStage names the first failed stage, or the current one.
func failedStage(p training.Progress) string {
	for _, s := range p.StageDetails {
		if s.Status == training.StatusFailed {
			return s.Name
		}
	}
	if i := training.StageIndex(p.CurrentStage); i >= 0 {
		return p.StageDetails[i].Name
	}
	return ""
}

// active reports whether anything is in flight worth animating.
func (m *Model) active() bool {
	return m.busy || m.snap.ServiceStarting || m.snap.ServiceStopping ||
		m.ctl.Poller().State() == training.PollPolling
}

func (m *Model) startSpinner() tea.Cmd {
	if m.ticking || !m.active() {
		return nil
	}
	m.ticking = true
	return m.spinner.Tick
}

func (m *Model) toastTick() tea.Cmd {
	if !m.toasts.HasToasts() {
		return nil
	}
	return components.ToastTickCmd()
}

// Snapshot returns the state the tab last rendered from.
func (m *Model) Snapshot() training.Snapshot {
	return m.snap
}
