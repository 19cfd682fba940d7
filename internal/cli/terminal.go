// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// terminal.go - Terminal detection for command output.

package cli

import (
	"io"
	"os"

	"golang.org/x/term"
)

const (
	// DefaultTerminalWidth is used when the width cannot be read.
	DefaultTerminalWidth = 80

	minTerminalWidth = 40
)

// IsTTY reports whether stdin is a terminal.
func IsTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// IsStdoutTTY reports whether stdout is a terminal.
func IsStdoutTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// GetTerminalWidth returns the stdout width, never below 40 columns.
func GetTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return DefaultTerminalWidth
	}
	return max(width, minTerminalWidth)
}

// richOutput reports whether replies written to w may be rendered as
// markdown and redrawn in place. NO_COLOR turns it off.
func richOutput(rt *Runtime, w io.Writer) bool {
	if !rt.Config.UI.Markdown || os.Getenv("NO_COLOR") != "" {
		return false
	}
	return w == io.Writer(os.Stdout) && IsStdoutTTY()
}
