// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds all the styled components for the application.
type Theme struct {
	IsDark       bool
	ColorProfile termenv.Profile

	// ==========================================================================
	// HEADER AND TABS
	// ==========================================================================

	Header         lipgloss.Style
	HeaderTitle    lipgloss.Style
	HeaderSubtitle lipgloss.Style
	Tab            lipgloss.Style
	TabActive      lipgloss.Style

	// ==========================================================================
	// MESSAGES
	// ==========================================================================

	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	UserText       lipgloss.Style
	AssistantText  lipgloss.Style
	Timestamp      lipgloss.Style

	// ==========================================================================
	// INPUT AND STATUS BAR
	// ==========================================================================

	InputContainer lipgloss.Style
	InputFocused   lipgloss.Style
	StatusBar      lipgloss.Style
	ShortcutKey    lipgloss.Style
	ShortcutDesc   lipgloss.Style

	// ==========================================================================
	// SESSION LIST
	// ==========================================================================

	SessionList         lipgloss.Style
	SessionItem         lipgloss.Style
	SessionItemSelected lipgloss.Style
	SessionMeta         lipgloss.Style

	// ==========================================================================
	// TRAINING
	// ==========================================================================

	Panel      lipgloss.Style
	PanelTitle lipgloss.Style
	StageName  lipgloss.Style
	StepText   lipgloss.Style
	LogLine    lipgloss.Style
	Badge      lipgloss.Style

	// ==========================================================================
	// FEEDBACK
	// ==========================================================================

	Spinner      lipgloss.Style
	ThinkingText lipgloss.Style
	SuccessStyle lipgloss.Style
	ErrorStyle   lipgloss.Style
	WarningStyle lipgloss.Style
	InfoStyle    lipgloss.Style
	Muted        lipgloss.Style
}

// NewTheme creates a theme. mode is "dark", "light" or "auto"; auto asks
// the terminal.
func NewTheme(mode string) *Theme {
	profile := termenv.ColorProfile()
	var isDark bool
	switch strings.ToLower(mode) {
	case "dark":
		isDark = true
		lipgloss.SetHasDarkBackground(true)
	case "light":
		isDark = false
		lipgloss.SetHasDarkBackground(false)
	default:
		isDark = termenv.HasDarkBackground()
	}

	t := &Theme{IsDark: isDark, ColorProfile: profile}
	t.initStyles()
	return t
}

func (t *Theme) initStyles() {
	t.Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan).
		Padding(0, 1)

	t.HeaderTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple)

	t.HeaderSubtitle = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Italic(true)

	t.Tab = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Padding(0, 2)

	t.TabActive = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextInverse).
		Background(Purple).
		Padding(0, 2)

	// Messages
	t.UserLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(UserBubbleBorder)

	t.AssistantLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(AssistantBubbleBorder)

	t.UserText = lipgloss.NewStyle().
		Foreground(UserBubbleFg).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(UserBubbleBorder).
		BorderLeft(true).
		PaddingLeft(1)

	t.AssistantText = lipgloss.NewStyle().
		Foreground(AssistantBubbleFg)

	t.Timestamp = lipgloss.NewStyle().
		Foreground(TextMuted)

	// Input area
	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.InputFocused = t.InputContainer.
		BorderForeground(Cyan)

	// Status bar
	t.StatusBar = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)

	t.ShortcutKey = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.ShortcutDesc = lipgloss.NewStyle().
		Foreground(TextMuted)

	// Session list
	t.SessionList = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(Overlay).
		BorderRight(true).
		PaddingRight(1)

	t.SessionItem = lipgloss.NewStyle().
		Foreground(TextPrimary).
		PaddingLeft(1)

	t.SessionItemSelected = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan).
		Background(SelectionBg).
		PaddingLeft(1)

	t.SessionMeta = lipgloss.NewStyle().
		Foreground(TextMuted).
		PaddingLeft(1)

	// Training
	t.Panel = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(OverlayDim).
		Padding(0, 1)

	t.PanelTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple)

	t.StageName = lipgloss.NewStyle().
		Foreground(TextPrimary)

	t.StepText = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Italic(true)

	t.LogLine = lipgloss.NewStyle().
		Foreground(TextSecondary)

	t.Badge = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextInverse).
		Padding(0, 1)

	// Feedback
	t.Spinner = lipgloss.NewStyle().
		Foreground(Purple)

	t.ThinkingText = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Italic(true)

	t.SuccessStyle = lipgloss.NewStyle().
		Foreground(Emerald).
		Bold(true)

	t.ErrorStyle = lipgloss.NewStyle().
		Foreground(Rose).
		Bold(true)

	t.WarningStyle = lipgloss.NewStyle().
		Foreground(Amber).
		Bold(true)

	t.InfoStyle = lipgloss.NewStyle().
		Foreground(Cyan)

	t.Muted = lipgloss.NewStyle().
		Foreground(TextMuted)
}

// StatusBadge renders a model status label on a coloured background.
func (t *Theme) StatusBadge(label string, color lipgloss.TerminalColor) string {
	return t.Badge.Background(color).Render(label)
}

// Stage renders a stage status with its indicator and colour.
func (t *Theme) Stage(status string) string {
	return lipgloss.NewStyle().Foreground(StageColor(status)).Render(StageIndicator(status))
}
