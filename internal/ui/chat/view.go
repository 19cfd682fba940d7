// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/jeranaias/secondme-tui/internal/model"
	"github.com/jeranaias/secondme-tui/internal/ui/components"
	"github.com/jeranaias/secondme-tui/internal/ui/styles"
	"github.com/jeranaias/secondme-tui/internal/util"
)

// =============================================================================
// VIEW
// =============================================================================

// View renders the tab.
func (m *Model) View() string {
	if m.width == 0 {
		return ""
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		m.headerView(),
		m.viewport.View(),
		m.theme.InputFocused.Render(m.input.View()),
		components.RenderHelpBar(m.theme, m.keys.ShortHelp(), m.width-m.listWidth),
	)

	view := content
	if m.listWidth > 0 {
		view = lipgloss.JoinHorizontal(lipgloss.Top, m.sessionsView(), content)
	}
	stack := components.RenderToastStack(m.toasts.Toasts(), m.width, time.Now())
	return components.Overlay(view, stack, m.width, m.height)
}

func (m *Model) headerView() string {
	title := "New Chat"
	if s, ok := m.ctl.Active(); ok {
		title = s.Title
	}
	header := m.theme.HeaderTitle.Render(util.TruncateWidth(title, m.viewport.Width-20))
	if m.ctl.Streaming() {
		header += "  " + m.spinner.View() + m.theme.ThinkingText.Render(" answering")
	}
	return header
}

func (m *Model) sessionsView() string {
	sessions := m.ctl.Sessions()
	active, _ := m.ctl.Active()
	inner := m.listWidth - 2

	var b strings.Builder
	b.WriteString(m.theme.PanelTitle.Render(fmt.Sprintf("Chats (%d)", len(sessions))))
	b.WriteString("\n")
	rows := 1
	for _, s := range sessions {
		if rows+2 > m.height-1 {
			break
		}
		style := m.theme.SessionItem
		if s.ID == active.ID {
			style = m.theme.SessionItemSelected
		}
		b.WriteString(style.Width(inner).Render(util.TruncateWidth(s.Title, inner-1)))
		b.WriteString("\n")
		meta := model.Clock(s.Timestamp)
		if s.LastMessage != "" {
			meta += " " + util.FirstLine(s.LastMessage)
		}
		b.WriteString(m.theme.SessionMeta.Render(util.TruncateWidth(meta, inner-1)))
		b.WriteString("\n")
		rows += 2
	}
	return m.theme.SessionList.Width(m.listWidth).Height(m.height).Render(b.String())
}

// =============================================================================
// MESSAGE RENDERING
// =============================================================================

// renderer turns messages into viewport text. Finished assistant answers
// are rendered once with glamour and cached by id and content.
type renderer struct {
	theme    *styles.Theme
	markdown bool
	width    int
	md       *glamour.TermRenderer
	cache    map[string]string
}

func newRenderer(theme *styles.Theme, markdown bool) *renderer {
	return &renderer{theme: theme, markdown: markdown, width: 78, cache: map[string]string{}}
}

func (r *renderer) setWidth(w int) {
	if w < 20 {
		w = 20
	}
	if w == r.width {
		return
	}
	r.width = w
	r.md = nil
	r.cache = map[string]string{}
}

func (r *renderer) glamour() *glamour.TermRenderer {
	if r.md != nil {
		return r.md
	}
	style := "light"
	switch {
	case r.theme.ColorProfile == termenv.Ascii:
		style = "notty"
	case r.theme.IsDark:
		style = "dark"
	}
	md, err := glamour.NewTermRenderer(glamour.WithStandardStyle(style), glamour.WithWordWrap(r.width-2))
	if err != nil {
		r.markdown = false
		return nil
	}
	r.md = md
	return md
}

// messages renders msgs. When streaming the last message is rendered as
// plain wrapped text.
func (r *renderer) messages(msgs []model.ChatMessage, streaming bool) string {
	if len(msgs) == 0 {
		return r.theme.Muted.Render("Say hello to start the conversation.")
	}
	parts := make([]string, 0, len(msgs))
	for i, msg := range msgs {
		live := streaming && i == len(msgs)-1
		parts = append(parts, r.message(msg, live))
	}
	return strings.Join(parts, "\n\n")
}

func (r *renderer) message(msg model.ChatMessage, live bool) string {
	label := r.theme.AssistantLabel
	if msg.Role == model.RoleUser {
		label = r.theme.UserLabel
	}
	head := label.Render(msg.Role.DisplayName()) + " " + r.theme.Timestamp.Render(model.Clock(msg.Timestamp))

	var body string
	switch {
	case msg.Role == model.RoleUser:
		body = r.theme.UserText.Width(r.width - 2).Render(msg.Content)
	case live && msg.Content == "":
		body = r.theme.ThinkingText.Render("...")
	case live || !r.markdown:
		body = r.theme.AssistantText.Width(r.width).Render(msg.Content)
	default:
		body = r.markdownBody(msg)
	}
	return head + "\n" + body
}

func (r *renderer) markdownBody(msg model.ChatMessage) string {
	key := fmt.Sprintf("%s:%d", msg.ID, len(msg.Content))
	if out, ok := r.cache[key]; ok {
		return out
	}
	md := r.glamour()
	if md == nil {
		return r.theme.AssistantText.Width(r.width).Render(msg.Content)
	}
	out, err := md.Render(msg.Content)
	if err != nil {
		return r.theme.AssistantText.Width(r.width).Render(msg.Content)
	}
	out = strings.Trim(out, "\n")
	r.cache[key] = out
	return out
}
