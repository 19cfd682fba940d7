// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/secondme-tui/internal/chat"
	"github.com/jeranaias/secondme-tui/internal/cli"
	uichat "github.com/jeranaias/secondme-tui/internal/ui/chat"
	"github.com/jeranaias/secondme-tui/internal/ui/components"
	"github.com/jeranaias/secondme-tui/internal/ui/styles"
	uitrain "github.com/jeranaias/secondme-tui/internal/ui/train"
)

// =============================================================================
// APPLICATION MODEL
// =============================================================================

// Tab identifies a top-level view.
type Tab int

const (
	TabChat Tab = iota
	TabTraining
)

var tabNames = []string{"Chat", "Training"}

// App is the root Bubble Tea model. It owns the tab strip and routes
// messages to the tabs.
type App struct {
	theme *styles.Theme
	tab   Tab

	width  int
	height int

	chat     *uichat.Model
	training *uitrain.Model
	chatCtl  *chat.Controller
}

// NewApp builds both tabs on rt.
func NewApp(ctx context.Context, rt *cli.Runtime, theme *styles.Theme) *App {
	ctl := chat.NewController(rt.Sessions, rt.Consumer, rt.Settings)
	return &App{
		theme:   theme,
		chatCtl: ctl,
		chat: uichat.New(ctx, ctl, theme, uichat.Options{
			Markdown:    rt.Config.UI.Markdown,
			StreamState: rt.Consumer.State,
		}),
		training: uitrain.New(ctx, rt.Training, rt.Service, rt.Logs, theme, uitrain.Options{Blobs: rt.Blobs}),
	}
}

// Attach connects both tabs to send, normally tea.Program.Send.
func (a *App) Attach(send func(tea.Msg)) {
	a.chat.Attach(send)
	a.training.Attach(send)
}

// Close detaches the tabs and stops the chat stream.
func (a *App) Close() {
	a.chat.Close()
	a.training.Close()
	a.chatCtl.Unmount()
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Init initializes both tabs.
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.chat.Init(), a.training.Init())
}

// Update routes msg. Tab-specific messages reach their tab regardless of
// which one is visible; input goes to the active tab only.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		inner := msg.Height - lipgloss.Height(a.tabsView())
		a.chat.SetSize(msg.Width, inner)
		a.training.SetSize(msg.Width, inner)
		return a, nil

	case tea.KeyMsg:
		return a.handleKeyPress(msg)

	case tea.MouseMsg, components.ToastMsg:
		return a, a.active(msg)

	case components.ToastTickMsg:
		// One tick chain serves both tabs.
		c1, c2 := a.chat.Update(msg), a.training.Update(msg)
		if c1 != nil || c2 != nil {
			return a, components.ToastTickCmd()
		}
		return a, nil

	case uichat.ChangedMsg:
		return a, a.chat.Update(msg)

	case uitrain.SnapshotMsg, uitrain.LogsMsg, uitrain.PollExitMsg, uitrain.LogErrorMsg:
		return a, a.training.Update(msg)
	}

	// Spinner ticks and command results carry unexported types; each tab
	// ignores what is not its own.
	return a, tea.Batch(a.chat.Update(msg), a.training.Update(msg))
}

// handleKeyPress processes keyboard input.
func (a *App) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		if a.tab == TabChat && a.chat.Streaming() {
			a.chatCtl.StopStream()
			return a, nil
		}
		return a, tea.Quit
	case "tab":
		a.tab = (a.tab + 1) % Tab(len(tabNames))
		return a, nil
	case "shift+tab":
		a.tab = (a.tab + Tab(len(tabNames)) - 1) % Tab(len(tabNames))
		return a, nil
	case "f1":
		a.tab = TabChat
		return a, nil
	case "f2":
		a.tab = TabTraining
		return a, nil
	case "q":
		if a.tab == TabTraining {
			return a, tea.Quit
		}
	}
	return a, a.active(msg)
}

func (a *App) active(msg tea.Msg) tea.Cmd {
	if a.tab == TabTraining {
		return a.training.Update(msg)
	}
	return a.chat.Update(msg)
}

// View renders the tab strip above the active tab.
func (a *App) View() string {
	if a.width == 0 {
		return "Loading..."
	}
	body := a.chat.View()
	if a.tab == TabTraining {
		body = a.training.View()
	}
	return lipgloss.JoinVertical(lipgloss.Left, a.tabsView(), body)
}

func (a *App) tabsView() string {
	tabs := components.RenderTabs(a.theme, tabNames, int(a.tab))
	hint := a.theme.Muted.Render("  tab switch  ctrl+c quit")
	return lipgloss.JoinHorizontal(lipgloss.Bottom, tabs, hint)
}
