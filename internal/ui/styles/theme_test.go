// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTheme_Modes(t *testing.T) {
	dark := NewTheme("dark")
	assert.True(t, dark.IsDark)

	light := NewTheme("LIGHT")
	assert.False(t, light.IsDark)

	auto := NewTheme("auto")
	assert.NotNil(t, auto)
}

func TestStageIndicators(t *testing.T) {
	tests := map[string]string{
		"completed":   StatusIndicators.Success,
		"failed":      StatusIndicators.Error,
		"in_progress": StatusIndicators.Active,
		"suspended":   StatusIndicators.Warning,
		"pending":     StatusIndicators.Pending,
		"":            StatusIndicators.Pending,
	}
	for status, want := range tests {
		assert.Equal(t, want, StageIndicator(status), status)
	}
}

func TestStageColor(t *testing.T) {
	assert.Equal(t, Emerald, StageColor("completed"))
	assert.Equal(t, Rose, StageColor("failed"))
	assert.Equal(t, TextMuted, StageColor("unknown"))
}

func TestThemeRenderKeepsText(t *testing.T) {
	theme := NewTheme("dark")
	assert.True(t, strings.Contains(theme.StatusBadge("Training", Cyan), "Training"))
	assert.True(t, strings.Contains(theme.Stage("completed"), "[OK]"))
}
