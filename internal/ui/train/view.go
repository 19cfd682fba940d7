// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package train

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/secondme-tui/internal/model"
	"github.com/jeranaias/secondme-tui/internal/training"
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
	view := lipgloss.JoinVertical(lipgloss.Left,
		m.headerView(),
		"",
		m.progressView(),
		"",
		m.logsView(),
		components.RenderHelpBar(m.theme, m.keys.ShortHelp(), m.width),
	)
	stack := components.RenderToastStack(m.toasts.Toasts(), m.width, time.Now())
	return components.Overlay(view, stack, m.width, m.height)
}

func (m *Model) headerView() string {
	parts := []string{
		m.theme.HeaderTitle.Render("Training"),
		m.theme.StatusBadge(m.snap.Status.Label(), statusColor(m.snap.Status)),
		m.theme.Muted.Render(m.ctl.BaseModel()),
	}
	switch {
	case m.snap.ServiceStarting:
		parts = append(parts, m.spinner.View()+m.theme.ThinkingText.Render(" starting service"))
	case m.snap.ServiceStopping:
		parts = append(parts, m.spinner.View()+m.theme.ThinkingText.Render(" stopping service"))
	case m.busy:
		parts = append(parts, m.spinner.View()+m.theme.ThinkingText.Render(" working"))
	case m.ctl.Poller().State() == training.PollPolling:
		parts = append(parts, m.spinner.View()+m.theme.ThinkingText.Render(" polling"))
	}
	if m.snap.Error {
		parts = append(parts, m.theme.ErrorStyle.Render(styles.StatusIndicators.Error+" last run failed"))
	}
	return strings.Join(parts, "  ")
}

func (m *Model) progressView() string {
	p := m.snap.Progress
	nameWidth := 46
	if m.width < 100 {
		nameWidth = 30
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s %s %s\n",
		m.theme.StageName.Width(nameWidth+4).Render("Overall"),
		m.overall.ViewAs(clamp(p.Overall)),
		percent(p.Overall)))

	current := training.StageIndex(p.CurrentStage)
	for i, stage := range p.StageDetails {
		name := stage.Name
		if name == "" {
			name = training.StageNames[i]
		}
		b.WriteString(fmt.Sprintf("%s %s %s %s\n",
			m.theme.Stage(stage.Status),
			m.theme.StageName.Width(nameWidth).Render(util.TruncateWidth(name, nameWidth)),
			m.stages[i].ViewAs(clamp(p.Stages[i])),
			percent(p.Stages[i])))
		if i == current && stage.Status == training.StatusInProgress {
			if step := currentStep(stage, p.CurrentStageStep); step != "" {
				b.WriteString(m.theme.StepText.Render("     > "+step) + "\n")
			}
		}
	}
	return m.theme.Panel.Width(max(m.width-2, 20)).Render(strings.TrimRight(b.String(), "\n"))
}

func (m *Model) logsView() string {
	title := m.theme.PanelTitle.Render(fmt.Sprintf("Logs (%d)", len(m.entries)))
	return title + "\n" + m.logView.View()
}

func (m *Model) refreshLogs(follow bool) {
	if len(m.entries) == 0 {
		m.logView.SetContent(m.theme.Muted.Render("No training logs yet."))
		return
	}
	lines := make([]string, len(m.entries))
	for i, e := range m.entries {
		lines[i] = m.theme.Timestamp.Render(model.Clock(e.Timestamp)) + " " +
			m.theme.LogLine.Render(util.TruncateWidth(e.Message, max(m.logView.Width-8, 10)))
	}
	m.logView.SetContent(strings.Join(lines, "\n"))
	if follow {
		m.logView.GotoBottom()
	}
}

// currentStep names the step in progress, preferring the server's name
// for it.
func currentStep(stage training.StageInfo, fallback string) string {
	key := stage.CurrentStep
	if key == "" {
		key = fallback
	}
	if st, ok := stage.Steps[key]; ok && st.Name != "" {
		return st.Name
	}
	return strings.ReplaceAll(key, "_", " ")
}

func statusColor(s training.ModelStatus) lipgloss.TerminalColor {
	switch s {
	case training.StatusMemoryUpload:
		return styles.Amber
	case training.StatusTraining:
		return styles.Cyan
	case training.StatusTrained:
		return styles.Emerald
	case training.StatusRunning:
		return styles.Purple
	default:
		return styles.TextMuted
	}
}

func clamp(pct float64) float64 {
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 1
	default:
		return pct / 100
	}
}

func percent(pct float64) string {
	return fmt.Sprintf("%3.0f%%", pct)
}
