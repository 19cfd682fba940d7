// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// output.go - JSON and table output shared by all commands.

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/secondme-tui/internal/util"
)

// JSONResponse is the response format used when --json is passed.
type JSONResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data"`
	Error     *string     `json:"error"`
	Timestamp string      `json:"timestamp"`
	Command   string      `json:"command,omitempty"`
}

// NewJSONResponse creates a new successful JSON response.
func NewJSONResponse(command string, data interface{}) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Print writes the response to w.
func (r *JSONResponse) Print(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

// =============================================================================
// TABLES
// =============================================================================

// table prints aligned columns. Widths are measured in terminal cells so
// CJK titles line up.
type table struct {
	header []string
	rows   [][]string
	max    int
}

func newTable(header ...string) *table {
	return &table{header: header, max: 48}
}

func (t *table) add(cells ...string) {
	t.rows = append(t.rows, cells)
}

func (t *table) render(w io.Writer) {
	widths := make([]int, len(t.header))
	measure := func(cells []string) {
		for i, c := range cells {
			if i >= len(widths) {
				break
			}
			if cw := runewidth.StringWidth(c); cw > widths[i] {
				widths[i] = cw
			}
		}
	}
	measure(t.header)
	for _, r := range t.rows {
		measure(r)
	}
	for i := range widths {
		if widths[i] > t.max {
			widths[i] = t.max
		}
	}

	line := func(cells []string, style func(string) string) {
		var b strings.Builder
		for i, c := range cells {
			if i >= len(widths) {
				break
			}
			if i > 0 {
				b.WriteString("  ")
			}
			c = util.TruncateWidth(c, widths[i])
			if i < len(cells)-1 {
				c = util.PadRight(c, widths[i])
			}
			b.WriteString(c)
		}
		fmt.Fprintln(w, style(b.String()))
	}

	line(t.header, func(s string) string { return DimStyle.Render(s) })
	for _, r := range t.rows {
		line(r, func(s string) string { return s })
	}
}

// field prints one "label value" line.
func field(w io.Writer, label string, value interface{}) {
	fmt.Fprintf(w, "%s %v\n", RenderLabel(label), value)
}
