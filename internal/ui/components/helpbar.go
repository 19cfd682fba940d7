// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/secondme-tui/internal/ui/styles"
)

// RenderHelpBar renders the enabled bindings as "key desc" pairs, cut to
// width.
func RenderHelpBar(theme *styles.Theme, bindings []key.Binding, width int) string {
	var parts []string
	used := 0
	for _, b := range bindings {
		if !b.Enabled() {
			continue
		}
		h := b.Help()
		part := theme.ShortcutKey.Render(h.Key) + " " + theme.ShortcutDesc.Render(h.Desc)
		w := lipgloss.Width(part) + 3
		if width > 0 && used+w > width-2 {
			break
		}
		used += w
		parts = append(parts, part)
	}
	return theme.StatusBar.Width(max(width, 0)).Render(strings.Join(parts, "   "))
}

// RenderTabs renders the tab strip with active highlighted.
func RenderTabs(theme *styles.Theme, names []string, active int) string {
	tabs := make([]string, len(names))
	for i, n := range names {
		if i == active {
			tabs[i] = theme.TabActive.Render(n)
			continue
		}
		tabs[i] = theme.Tab.Render(n)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}
