// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/secondme-tui/internal/api"
	"github.com/jeranaias/secondme-tui/internal/chat"
	"github.com/jeranaias/secondme-tui/internal/logging"
	"github.com/jeranaias/secondme-tui/internal/stream"
	"github.com/jeranaias/secondme-tui/internal/ui/components"
	"github.com/jeranaias/secondme-tui/internal/ui/styles"
)

// =============================================================================
// MESSAGES
// =============================================================================

// ChangedMsg reports that sessions, messages or the stream changed.
type ChangedMsg struct{}

// sendDoneMsg carries the result of a SendMessage call.
type sendDoneMsg struct{ err error }

// =============================================================================
// MODEL
// =============================================================================

// Options configure the chat tab.
type Options struct {
	// Markdown renders finished answers with glamour.
	Markdown bool
	// StreamState reads the consumer state so stream failures can be
	// reported. Optional.
	StreamState func() stream.State
}

// Model is the chat tab.
type Model struct {
	ctl   *chat.Controller
	theme *styles.Theme
	keys  KeyMap
	opts  Options
	ctx   context.Context

	width     int
	height    int
	listWidth int

	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model
	toasts   *components.ToastManager
	render   *renderer

	sessionCount int
	lastErr      error
	ticking      bool

	stopWatch func()
	done      chan struct{}
	closeOnce sync.Once
	log       *zap.SugaredLogger
}

// New creates the chat tab for ctl. ctx bounds every request it issues.
func New(ctx context.Context, ctl *chat.Controller, theme *styles.Theme, opts Options) *Model {
	ta := textarea.New()
	ta.Placeholder = "Message your second me..."
	ta.Prompt = "> "
	ta.ShowLineNumbers = false
	ta.CharLimit = 8000
	ta.SetHeight(3)
	ta.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("alt+enter", "ctrl+j"))
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}
	sp.Style = theme.Spinner

	return &Model{
		ctl:       ctl,
		theme:     theme,
		keys:      DefaultKeyMap(),
		opts:      opts,
		ctx:       ctx,
		listWidth: 28,
		viewport:  viewport.New(80, 20),
		input:     ta,
		spinner:   sp,
		toasts:    components.NewToastManager(),
		render:    newRenderer(theme, opts.Markdown),
		done:      make(chan struct{}),
		log:       logging.NewLogger("ui.chat"),
	}
}

// Attach forwards controller changes to send, normally tea.Program.Send.
// The watcher never blocks the stream: changes are coalesced and
// delivered from a separate goroutine.
func (m *Model) Attach(send func(tea.Msg)) {
	notify := make(chan struct{}, 1)
	m.stopWatch = m.ctl.Watch(func() {
		select {
		case notify <- struct{}{}:
		default:
		}
	})
	go func() {
		for {
			select {
			case <-m.done:
				return
			case <-notify:
				send(ChangedMsg{})
			}
		}
	}()
}

// Close detaches from the controller.
func (m *Model) Close() {
	m.closeOnce.Do(func() {
		if m.stopWatch != nil {
			m.stopWatch()
		}
		close(m.done)
	})
}

// Init mounts the controller and starts the cursor blink.
func (m *Model) Init() tea.Cmd {
	if err := m.ctl.Mount(); err != nil {
		m.toasts.AddError("Cannot open chat: " + err.Error())
	}
	m.refresh(true)
	return tea.Batch(textarea.Blink, m.toastTick())
}

// SetSize lays the tab out in width x height cells.
func (m *Model) SetSize(width, height int) {
	m.width, m.height = width, height
	if width < 70 {
		m.listWidth = 0
	} else {
		m.listWidth = 28
	}
	mainWidth := width - m.listWidth - 2
	if m.listWidth == 0 {
		mainWidth = width
	}
	if mainWidth < 20 {
		mainWidth = 20
	}
	m.input.SetWidth(mainWidth - 4)
	vpHeight := height - m.input.Height() - 5
	if vpHeight < 3 {
		vpHeight = 3
	}
	m.viewport.Width = mainWidth
	m.viewport.Height = vpHeight
	m.render.setWidth(mainWidth - 2)
	m.refresh(true)
}

// Update handles a message.
func (m *Model) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case ChangedMsg:
		m.refresh(m.viewport.AtBottom())
		var cmds []tea.Cmd
		if m.checkStreamError() {
			cmds = append(cmds, m.toastTick())
		}
		if m.ctl.Streaming() && !m.ticking {
			m.ticking = true
			cmds = append(cmds, m.spinner.Tick)
		}
		return tea.Batch(cmds...)

	case sendDoneMsg:
		if msg.err != nil {
			m.toasts.AddError(api.UserMessage(msg.err))
			return m.toastTick()
		}
		return nil

	case spinner.TickMsg:
		if !m.ctl.Streaming() {
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
		m.viewport, cmd = m.viewport.Update(msg)
		return cmd
	}
	return nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Send):
		return m.submit()

	case key.Matches(msg, m.keys.NewSession):
		if _, err := m.ctl.NewSession(); err != nil {
			m.toasts.AddError("New chat failed: " + err.Error())
			return m.toastTick()
		}
		m.input.Reset()
		return nil

	case key.Matches(msg, m.keys.PrevSession):
		return m.step(-1)

	case key.Matches(msg, m.keys.NextSession):
		return m.step(1)

	case key.Matches(msg, m.keys.Stop):
		if m.ctl.Streaming() {
			m.ctl.StopStream()
			m.toasts.AddStatus("Stopped")
			return m.toastTick()
		}
		return nil

	case key.Matches(msg, m.keys.Delete):
		active, ok := m.ctl.Active()
		if !ok {
			return nil
		}
		if err := m.ctl.DeleteSession(active.ID); err != nil {
			m.toasts.AddError("Delete failed: " + err.Error())
			return m.toastTick()
		}
		m.toasts.AddStatus("Deleted " + active.Title)
		return m.toastTick()

	case key.Matches(msg, m.keys.Clear):
		if err := m.ctl.ClearSession(); err != nil {
			m.toasts.AddError("Clear failed: " + err.Error())
			return m.toastTick()
		}
		return nil

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return nil

	case key.Matches(msg, m.keys.Dismiss):
		m.toasts.Dismiss()
		return nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

// submit sends the input text. The controller call runs as a command so
// persistence never stalls the event loop.
func (m *Model) submit() tea.Cmd {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return nil
	}
	m.input.Reset()
	m.lastErr = nil
	ctx, ctl := m.ctx, m.ctl
	return func() tea.Msg {
		return sendDoneMsg{err: ctl.SendMessage(ctx, text)}
	}
}

// step selects the session delta positions away in the list.
func (m *Model) step(delta int) tea.Cmd {
	sessions := m.ctl.Sessions()
	if len(sessions) < 2 {
		return nil
	}
	active, _ := m.ctl.Active()
	idx := 0
	for i, s := range sessions {
		if s.ID == active.ID {
			idx = i
			break
		}
	}
	next := (idx + delta + len(sessions)) % len(sessions)
	if err := m.ctl.SelectSession(sessions[next].ID); err != nil {
		m.toasts.AddError(err.Error())
		return m.toastTick()
	}
	return nil
}

func (m *Model) refresh(follow bool) {
	m.sessionCount = len(m.ctl.Sessions())
	msgs := m.ctl.Messages()
	m.viewport.SetContent(m.render.messages(msgs, m.ctl.Streaming()))
	if follow {
		m.viewport.GotoBottom()
	}
}

// checkStreamError toasts a stream failure once and reports whether it did.
func (m *Model) checkStreamError() bool {
	if m.opts.StreamState == nil {
		return false
	}
	st := m.opts.StreamState()
	if st.Err == nil || st.Err == m.lastErr {
		return false
	}
	m.lastErr = st.Err
	m.toasts.AddError(api.UserMessage(st.Err))
	return true
}

func (m *Model) toastTick() tea.Cmd {
	if !m.toasts.HasToasts() {
		return nil
	}
	return components.ToastTickCmd()
}

// Streaming reports whether an answer is streaming.
func (m *Model) Streaming() bool {
	return m.ctl.Streaming()
}

// Input returns the text being composed.
func (m *Model) Input() string {
	return m.input.Value()
}
