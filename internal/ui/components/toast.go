// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides shared UI pieces for the secondme TUI.
//
// This file implements non-blocking toasts. Toasts stack in the bottom
// right corner and auto-dismiss so the views stay usable while a message
// is shown.
package components

import (
	"strconv"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/secondme-tui/internal/ui/styles"
)

// =============================================================================
// TOAST TYPES
// =============================================================================

// ToastKind represents the type of toast notification.
type ToastKind int

const (
	ToastStatus ToastKind = iota
	ToastError
	ToastWarning
	ToastSuccess
)

// Auto-dismiss durations per kind. Errors stay longest.
const (
	DefaultToastDuration = 4 * time.Second
	WarningToastDuration = 6 * time.Second
	ErrorToastDuration   = 8 * time.Second
)

// Toast is one notification.
type Toast struct {
	ID        int
	Message   string
	Kind      ToastKind
	CreatedAt time.Time
	Duration  time.Duration
}

// NewToast creates a toast of kind with its default duration.
func NewToast(kind ToastKind, message string) Toast {
	d := DefaultToastDuration
	switch kind {
	case ToastError:
		d = ErrorToastDuration
	case ToastWarning:
		d = WarningToastDuration
	}
	return Toast{Message: message, Kind: kind, CreatedAt: time.Now(), Duration: d}
}

// IsExpired returns true if the toast should be dismissed.
func (t Toast) IsExpired(now time.Time) bool {
	return now.Sub(t.CreatedAt) >= t.Duration
}

// TimeRemaining returns how much time is left before auto-dismiss.
func (t Toast) TimeRemaining(now time.Time) time.Duration {
	remaining := t.Duration - now.Sub(t.CreatedAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// =============================================================================
// TOAST MANAGER
// =============================================================================

// ToastManager holds the visible toasts, newest first.
type ToastManager struct {
	mu        sync.Mutex
	toasts    []Toast
	nextID    int
	maxToasts int
}

// NewToastManager creates a manager showing at most 5 toasts.
func NewToastManager() *ToastManager {
	return &ToastManager{nextID: 1, maxToasts: 5}
}

// Add adds a toast and returns its id.
func (m *ToastManager) Add(t Toast) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t.ID == 0 {
		t.ID = m.nextID
		m.nextID++
	}
	m.toasts = append([]Toast{t}, m.toasts...)
	if len(m.toasts) > m.maxToasts {
		m.toasts = m.toasts[:m.maxToasts]
	}
	return t.ID
}

// AddError adds an error toast.
func (m *ToastManager) AddError(message string) int {
	return m.Add(NewToast(ToastError, message))
}

// AddWarning adds a warning toast.
func (m *ToastManager) AddWarning(message string) int {
	return m.Add(NewToast(ToastWarning, message))
}

// AddStatus adds an informational toast.
func (m *ToastManager) AddStatus(message string) int {
	return m.Add(NewToast(ToastStatus, message))
}

// AddSuccess adds a success toast.
func (m *ToastManager) AddSuccess(message string) int {
	return m.Add(NewToast(ToastSuccess, message))
}

// Dismiss removes the newest toast.
func (m *ToastManager) Dismiss() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.toasts) > 0 {
		m.toasts = m.toasts[1:]
	}
}

// Tick drops expired toasts and reports whether any remain.
func (m *ToastManager) Tick(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	active := m.toasts[:0]
	for _, t := range m.toasts {
		if !t.IsExpired(now) {
			active = append(active, t)
		}
	}
	m.toasts = active
	return len(m.toasts) > 0
}

// Toasts returns a copy of the current toasts.
func (m *ToastManager) Toasts() []Toast {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Toast, len(m.toasts))
	copy(out, m.toasts)
	return out
}

// HasToasts returns true if there are any active toasts.
func (m *ToastManager) HasToasts() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.toasts) > 0
}

// =============================================================================
// TOAST MESSAGES
// =============================================================================

// ToastTickMsg is sent periodically while toasts are visible.
type ToastTickMsg struct {
	Time time.Time
}

// ToastMsg asks the receiving view to show a toast.
type ToastMsg struct {
	Kind    ToastKind
	Message string
}

// ToastTickCmd ticks toasts every 250ms.
func ToastTickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return ToastTickMsg{Time: t}
	})
}

// =============================================================================
// TOAST RENDERING
// =============================================================================

// RenderToast renders a single toast.
func RenderToast(t Toast, width int, now time.Time) string {
	maxWidth := 60
	if width > 0 && width-8 < maxWidth {
		maxWidth = width - 8
	}
	if maxWidth < 30 {
		maxWidth = 30
	}

	var color lipgloss.AdaptiveColor
	var icon string
	switch t.Kind {
	case ToastError:
		color, icon = styles.Rose, styles.StatusIndicators.Error
	case ToastWarning:
		color, icon = styles.Amber, styles.StatusIndicators.Warning
	case ToastSuccess:
		color, icon = styles.Emerald, styles.StatusIndicators.Success
	default:
		color, icon = styles.Cyan, styles.StatusIndicators.Info
	}

	iconStyle := lipgloss.NewStyle().Foreground(color).Bold(true)
	messageStyle := lipgloss.NewStyle().Foreground(styles.TextPrimary)
	hintStyle := lipgloss.NewStyle().Foreground(styles.TextMuted).Italic(true)

	content := iconStyle.Render(icon+" ") + messageStyle.Render(wrapText(t.Message, maxWidth-10))
	hint := "[esc] dismiss"
	if secs := int(t.TimeRemaining(now).Seconds()); secs > 0 {
		hint += "  " + strconv.Itoa(secs) + "s"
	}
	content += "\n" + hintStyle.Render(hint)

	return lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Padding(0, 2).
		MaxWidth(maxWidth).
		Render(content)
}

// RenderToastStack renders toasts stacked vertically, oldest on top.
func RenderToastStack(toasts []Toast, width int, now time.Time) string {
	if len(toasts) == 0 {
		return ""
	}
	rendered := make([]string, 0, len(toasts))
	for i := len(toasts) - 1; i >= 0; i-- {
		rendered = append(rendered, RenderToast(toasts[i], width, now))
	}
	return lipgloss.JoinVertical(lipgloss.Right, rendered...)
}

// Overlay places the toast stack at the bottom right of a view of the
// given size, replacing the view's bottom lines.
func Overlay(view, stack string, width, height int) string {
	if stack == "" || height <= 0 {
		return view
	}
	lines := strings.Split(view, "\n")
	for len(lines) < height {
		lines = append(lines, "")
	}
	stackLines := strings.Split(lipgloss.PlaceHorizontal(width, lipgloss.Right, stack), "\n")
	if len(stackLines) > height {
		stackLines = stackLines[len(stackLines)-height:]
	}
	copy(lines[height-len(stackLines):], stackLines)
	return strings.Join(lines[:height], "\n")
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// wrapText performs simple word wrapping.
func wrapText(text string, maxWidth int) string {
	if maxWidth <= 0 {
		return text
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return text
	}

	var lines []string
	var current strings.Builder
	for _, word := range words {
		switch {
		case current.Len() == 0:
			current.WriteString(word)
		case current.Len()+1+len(word) <= maxWidth:
			current.WriteString(" ")
			current.WriteString(word)
		default:
			lines = append(lines, current.String())
			current.Reset()
			current.WriteString(word)
		}
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	return strings.Join(lines, "\n")
}
