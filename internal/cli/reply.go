// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// reply.go - Live printing of streamed answers.

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/termenv"

	"github.com/jeranaias/secondme-tui/internal/stream"
)

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

var (
	markdownOnce     sync.Once
	markdownRenderer *glamour.TermRenderer
)

// renderMarkdown renders content for the terminal, returning it unchanged
// if the renderer is unavailable.
func renderMarkdown(content string) string {
	markdownOnce.Do(func() {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(GetTerminalWidth()-4),
		)
		if err == nil {
			markdownRenderer = r
		}
	})
	if markdownRenderer == nil {
		return content
	}
	rendered, err := markdownRenderer.Render(content)
	if err != nil {
		return content
	}
	return rendered
}

// visualLines counts the terminal rows s occupies at width columns.
func visualLines(s string, width int) int {
	if width <= 0 {
		width = DefaultTerminalWidth
	}
	rows := 0
	for _, line := range strings.Split(s, "\n") {
		w := runewidth.StringWidth(line)
		if w == 0 {
			rows++
			continue
		}
		rows += (w + width - 1) / width
	}
	return rows
}

// =============================================================================
// REPLY PRINTER
// =============================================================================

// replyPrinter prints the growing content of one stream to w and reports
// the final state. It is registered as a consumer listener.
type replyPrinter struct {
	w        io.Writer
	markdown bool

	mu      sync.Mutex
	active  bool
	started bool
	printed string
	done    chan stream.State
}

func newReplyPrinter(w io.Writer, markdown bool) *replyPrinter {
	return &replyPrinter{w: w, markdown: markdown}
}

// begin arms the printer for the next stream.
func (p *replyPrinter) begin() <-chan stream.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = true
	p.started = false
	p.printed = ""
	p.done = make(chan stream.State, 1)
	return p.done
}

// abort disarms the printer without waiting for the stream.
func (p *replyPrinter) abort() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = false
}

func (p *replyPrinter) onState(st stream.State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.active {
		return
	}
	if st.Streaming {
		p.started = true
	}
	if strings.HasPrefix(st.Content, p.printed) && len(st.Content) > len(p.printed) {
		fmt.Fprint(p.w, st.Content[len(p.printed):])
		p.printed = st.Content
	}
	if p.started && !st.Streaming {
		p.active = false
		p.done <- st
	}
}

// finish replaces the raw text with its markdown rendering when enabled.
func (p *replyPrinter) finish() {
	p.mu.Lock()
	text := p.printed
	p.mu.Unlock()
	if text == "" {
		return
	}
	if !p.markdown {
		fmt.Fprintln(p.w)
		return
	}
	out := termenv.NewOutput(os.Stdout)
	out.ClearLines(visualLines(text, GetTerminalWidth()) - 1)
	out.ClearLine()
	fmt.Fprint(p.w, "\r"+strings.TrimRight(renderMarkdown(text), "\n")+"\n")
}

// awaitReply waits for the stream started after begin to end. Ctrl+C stops
// the stream instead of killing the process.
func awaitReply(ctx context.Context, done <-chan stream.State, stop func()) stream.State {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	defer signal.Stop(sig)

	ctxDone := ctx.Done()
	for {
		select {
		case st := <-done:
			return st
		case <-sig:
			stop()
		case <-ctxDone:
			ctxDone = nil
			stop()
		}
	}
}
