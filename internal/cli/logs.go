// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// logs.go - Training log viewer.
//
// Command: logs [--follow] [--clear] [-n N]

package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/jeranaias/secondme-tui/internal/storage"
)

// HandleLogs handles the "logs" command. Without --follow it prints the
// persisted window.
func HandleLogs(ctx context.Context, rt *Runtime, args Args) error {
	p := NewArgParser(args.Raw, "json", "follow", "f", "clear")
	jsonMode := args.JSON || p.BoolFlag("json")

	if p.BoolFlag("clear") {
		if err := rt.Logs.Clear(); err != nil {
			return NewCommandError("logs", "clear", "cannot clear logs", err)
		}
		fmt.Fprintln(rt.Out, SuccessStyle.Render("Training logs cleared."))
		return nil
	}

	n := p.FlagIntOrDefault("n", 0)
	if v := p.Flag("lines"); v != "" {
		n = p.FlagIntOrDefault("lines", 0)
	}
	if n < 0 {
		return NewValidationError("n", p.Flag("n", "lines"), "must be a positive number of lines")
	}
	entries := rt.Logs.Entries()
	if n > 0 && n < len(entries) {
		entries = entries[len(entries)-n:]
	}
	if jsonMode {
		return NewJSONResponse("logs", entries).Print(rt.Out)
	}
	for _, e := range entries {
		printLogEntry(rt.Out, e)
	}

	if !p.BoolFlag("follow", "f") {
		if len(entries) == 0 {
			fmt.Fprintln(rt.Out, DimStyle.Render("No training logs."))
		}
		return nil
	}

	rt.Logs.OnEntry(func(e storage.LogEntry) { printLogEntry(rt.Out, e) })
	rt.Logs.OnError(func(err error) {
		fmt.Fprintln(rt.Err, WarningStyle.Render("log stream: "+err.Error()))
	})
	if err := rt.Logs.Follow(ctx); err != nil {
		return NewCommandError("logs", "follow", "cannot open log stream", err)
	}
	<-ctx.Done()
	rt.Logs.Close()
	return nil
}

func printLogEntry(w io.Writer, e storage.LogEntry) {
	fmt.Fprintf(w, "%s %s\n", DimStyle.Render(e.Timestamp), e.Message)
}
