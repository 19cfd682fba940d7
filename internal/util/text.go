// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/text/unicode/norm"
)

// Ellipsis is appended by Ellipsize when text is cut.
const Ellipsis = "…"

// Ellipsize returns s unchanged when it has at most maxRunes characters,
// otherwise the first maxRunes characters followed by Ellipsis.
//
// Characters are counted in NFC form, so a decomposed accent counts as part
// of its base character. Text that is not cut is returned as given.
func Ellipsize(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	runes := []rune(norm.NFC.String(s))
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes]) + Ellipsis
}

// TruncateWidth cuts s to at most width terminal columns, marking the cut
// with Ellipsis. CJK and emoji count as two columns.
func TruncateWidth(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, Ellipsis)
}

// PadRight truncates or pads s with spaces to exactly width columns.
func PadRight(s string, width int) string {
	s = TruncateWidth(s, width)
	return runewidth.FillRight(s, width)
}

// FirstLine returns the first non-blank line of s, trimmed.
func FirstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
