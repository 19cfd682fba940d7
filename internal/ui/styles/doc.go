// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the colour palette and lipgloss styles of the
secondme TUI.

All colours are lipgloss.AdaptiveColor values, so the light or dark variant
is picked from the terminal background. NewTheme("dark") or
NewTheme("light") pins the choice, matching the [ui] theme config key.

# Usage

	theme := styles.NewTheme(cfg.UI.Theme)
	header := theme.Header.Render("secondme")

Stage statuses map to colours with StageColor and to ASCII indicators with
StageIndicator so the training view stays readable without colour.
*/
package styles
