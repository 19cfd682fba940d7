// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - One-shot question through the playground log.
//
// Command: ask
// Short:   Ask a single question and stream the answer
//
// Examples:
//   secondme ask "What did I work on last spring?"
//   echo "Summarise my goals" | secondme ask
//   secondme ask --fresh "Start over: who am I?"
//
// Flags:
//   --fresh     Clear the playground conversation first
//   --json      Print {question, answer} as JSON

package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jeranaias/secondme-tui/internal/chat"
)

// AskResult is the --json payload of the ask command.
type AskResult struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// HandleAsk handles the "ask" command.
func HandleAsk(ctx context.Context, rt *Runtime, args Args) error {
	p := NewArgParser(args.Raw, "fresh", "json")
	question := strings.TrimSpace(p.Rest(0))
	if question == "" && !IsTTY() {
		data, err := io.ReadAll(bufio.NewReader(os.Stdin))
		if err != nil {
			return fmt.Errorf("failed to read question from stdin: %w", err)
		}
		question = strings.TrimSpace(string(data))
	}
	if question == "" {
		return ErrMissingArgument("question", `secondme ask "What do I value most?"`)
	}
	jsonMode := args.JSON || p.BoolFlag("json")

	ctl := chat.NewPlaygroundController(rt.Playground, rt.Consumer, rt.Settings)
	defer ctl.Unmount()
	ctl.Mount()
	if p.BoolFlag("fresh") {
		if err := ctl.Clear(); err != nil {
			return err
		}
	}

	var w io.Writer = rt.Out
	if jsonMode {
		w = io.Discard
	}
	printer := newReplyPrinter(w, !jsonMode && richOutput(rt, rt.Out))
	unsub := rt.Consumer.Subscribe(printer.onState)
	defer unsub()

	done := printer.begin()
	defer printer.abort()
	if err := ctl.SendMessage(ctx, question); err != nil {
		return err
	}
	st := awaitReply(ctx, done, ctl.StopStream)
	if st.Err != nil {
		return st.Err
	}
	printer.finish()

	if jsonMode {
		return NewJSONResponse("ask", AskResult{Question: question, Answer: st.Content}).Print(rt.Out)
	}
	return nil
}
