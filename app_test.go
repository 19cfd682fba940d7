// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/secondme-tui/internal/cli"
	"github.com/jeranaias/secondme-tui/internal/config"
	"github.com/jeranaias/secondme-tui/internal/ui/styles"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	t.Setenv("SECONDME_HOME", t.TempDir())
	cfg := config.Default()
	cfg.Storage.Backend = "memory"
	cfg.Storage.Dir = t.TempDir()
	cfg.Server.BaseURL = "http://127.0.0.1:1"

	rt, err := cli.NewRuntime(cfg)
	require.NoError(t, err)
	t.Cleanup(rt.Close)

	app := NewApp(context.Background(), rt, styles.NewTheme("dark"))
	t.Cleanup(app.Close)
	app.chat.Init()
	app.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return app
}

func TestApp_TabSwitching(t *testing.T) {
	app := newTestApp(t)
	assert.Equal(t, TabChat, app.tab)
	assert.Contains(t, app.View(), "Chats (1)")

	app.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, TabTraining, app.tab)
	assert.Contains(t, app.View(), "Logs (")

	app.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	assert.Equal(t, TabChat, app.tab)

	app.Update(tea.KeyMsg{Type: tea.KeyF2})
	assert.Equal(t, TabTraining, app.tab)
}

func TestApp_QuitKeys(t *testing.T) {
	app := newTestApp(t)

	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	assert.Equal(t, "q", app.chat.Input(), "q types into the chat input")

	app.Update(tea.KeyMsg{Type: tea.KeyF2})
	_, cmd = app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestRun_VersionAndUnknown(t *testing.T) {
	assert.Equal(t, cli.ExitSuccess, run([]string{"version"}))
	assert.Equal(t, cli.ExitUsageError, run([]string{"frobnicate"}))
}
