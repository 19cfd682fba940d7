// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive chat command handler.
//
// Command: chat
// Short:   Chat with your Second Me, a role, or resume a session
//
// Examples:
//   secondme chat                     Continue the most recent session
//   secondme chat --new               Start a fresh session
//   secondme chat --session ID        Resume a specific session
//   secondme chat --role UUID         Chat with a role
//
// Interactive Commands (during chat):
//   /help               Show available commands
//   /new                Start a new session
//   /sessions           List sessions
//   /switch N|ID        Switch to session N (from /sessions) or by id prefix
//   /clear              Clear the current conversation
//   /history            Reprint the conversation
//   /quit               Exit chat
//   Ctrl+C              Stop the current answer
//   Ctrl+D              Exit chat

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/peterh/liner"

	"github.com/jeranaias/secondme-tui/internal/chat"
	"github.com/jeranaias/secondme-tui/internal/config"
	"github.com/jeranaias/secondme-tui/internal/model"
	"github.com/jeranaias/secondme-tui/internal/storage"
	"github.com/jeranaias/secondme-tui/internal/util"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// ChatCLI provides input history and line editing for interactive chat.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a new ChatCLI with input history support.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}

	cli := &ChatCLI{
		line:        line,
		historyFile: filepath.Join(configDir, "chat_history"),
	}
	cli.LoadHistory()
	return cli
}

// LoadHistory loads command history from file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		_, _ = c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line of input with the given prompt.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory persists command history with 0600 permissions.
func (c *ChatCLI) SaveHistory() {
	if err := config.EnsureConfigDir(); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = c.line.WriteHistory(f)
}

// Close saves history and closes the liner.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// =============================================================================
// CHAT TARGETS
// =============================================================================

// chatTarget is what the REPL talks to: a session or a role.
type chatTarget interface {
	SendMessage(ctx context.Context, text string) error
	StopStream()
	Messages() []model.ChatMessage
	Unmount()
}

// sessionTarget adapts *chat.Controller.
type sessionTarget struct{ *chat.Controller }

// roleTarget adapts *chat.RoleController.
type roleTarget struct{ *chat.RoleController }

// =============================================================================
// REPL
// =============================================================================

// chatREPL holds the state of one chat command.
type chatREPL struct {
	rt       *Runtime
	target   chatTarget
	sessions *chat.Controller // nil in role chat
	roleName string
	printer  *replyPrinter
	out      io.Writer
	listed   []model.ChatSession
	unsub    func()
}

// HandleChat handles the "chat" command.
func HandleChat(ctx context.Context, rt *Runtime, args Args) error {
	p := NewArgParser(args.Raw, "new")

	identityCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	rt.RefreshIdentity(identityCtx)
	cancel()

	r, err := newChatREPL(ctx, rt, p)
	if err != nil {
		return err
	}
	defer r.close()

	input := NewChatCLI()
	defer input.Close()

	r.printWelcome()
	for {
		line, err := input.ReadInput(PromptStyle.Render("you> "))
		if err != nil {
			// Ctrl+C at the prompt, Ctrl+D or EOF
			fmt.Fprintln(r.out)
			return nil
		}
		cont, err := r.handle(ctx, line)
		if err != nil {
			DisplayError(rt.Err, err, false)
		}
		if !cont {
			return nil
		}
	}
}

func newChatREPL(ctx context.Context, rt *Runtime, p *ArgParser) (*chatREPL, error) {
	r := &chatREPL{
		rt:      rt,
		out:     rt.Out,
		printer: newReplyPrinter(rt.Out, richOutput(rt, rt.Out)),
	}

	if roleID := p.Flag("role", "r"); roleID != "" {
		role, err := rt.Client.Role(ctx, roleID)
		if err != nil {
			return nil, NewCommandError("chat", "open role", roleID, err)
		}
		ctl := chat.NewRoleController(rt.RoleChats, rt.Consumer, rt.Settings)
		if err := ctl.Open(role); err != nil {
			ctl.Unmount()
			return nil, err
		}
		r.target = roleTarget{ctl}
		r.roleName = role.Name
	} else {
		ctl := chat.NewController(rt.Sessions, rt.Consumer, rt.Settings)
		if err := ctl.Mount(); err != nil {
			ctl.Unmount()
			return nil, err
		}
		switch {
		case p.BoolFlag("new", "n"):
			if _, err := ctl.NewSession(); err != nil {
				ctl.Unmount()
				return nil, err
			}
		case p.Flag("session", "s") != "":
			id, err := resolveSession(ctl.Sessions(), p.Flag("session", "s"))
			if err == nil {
				err = ctl.SelectSession(id)
			}
			if err != nil {
				ctl.Unmount()
				return nil, err
			}
		}
		r.target = sessionTarget{ctl}
		r.sessions = ctl
	}

	// Subscribed after the controller so the answer is persisted before it
	// is printed.
	r.unsub = rt.Consumer.Subscribe(r.printer.onState)
	return r, nil
}

func (r *chatREPL) close() {
	r.unsub()
	r.target.Unmount()
}

func (r *chatREPL) printWelcome() {
	fmt.Fprintln(r.out, TitleStyle.Render("Second Me chat"))
	if r.roleName != "" {
		fmt.Fprintln(r.out, DimStyle.Render("Role: "+r.roleName))
	} else if s, ok := r.sessions.Active(); ok {
		fmt.Fprintln(r.out, DimStyle.Render("Session: "+s.Title+" ("+shortID(s.ID)+")"))
	}
	fmt.Fprintln(r.out, DimStyle.Render("Type /help for commands, Ctrl+D to exit."))
	fmt.Fprintln(r.out)
	r.printHistory(6)
}

// handle processes one input line. It reports false when the REPL should
// exit.
func (r *chatREPL) handle(ctx context.Context, input string) (bool, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return true, nil
	}
	if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
		return false, nil
	}
	if strings.HasPrefix(input, "/") {
		return r.slash(input)
	}
	return true, r.send(ctx, input)
}

func (r *chatREPL) send(ctx context.Context, text string) error {
	done := r.printer.begin()
	defer r.printer.abort()
	fmt.Fprintln(r.out, SpeakerStyle.Render(model.RoleAssistant.DisplayName()+":"))
	if err := r.target.SendMessage(ctx, text); err != nil {
		r.printer.abort()
		return err
	}
	st := awaitReply(ctx, done, r.target.StopStream)
	r.printer.finish()
	if st.Err != nil {
		return st.Err
	}
	fmt.Fprintln(r.out)
	return nil
}

func (r *chatREPL) slash(input string) (bool, error) {
	parts := strings.Fields(input)
	cmd, rest := strings.ToLower(parts[0]), parts[1:]

	switch cmd {
	case "/quit", "/q", "/exit":
		return false, nil
	case "/help", "/h", "/?":
		r.printHelp()
	case "/history":
		r.printHistory(0)
	case "/clear", "/c":
		var err error
		switch t := r.target.(type) {
		case sessionTarget:
			err = t.ClearSession()
		case roleTarget:
			err = t.Clear()
		}
		if err != nil {
			return true, err
		}
		fmt.Fprintln(r.out, SuccessStyle.Render("Conversation cleared."))
	case "/new", "/sessions", "/switch":
		if r.sessions == nil {
			return true, NewValidationError("command", cmd, "not available in role chat")
		}
		return true, r.sessionCommand(cmd, rest)
	default:
		return true, NewValidationError("command", cmd, "unknown chat command, try /help")
	}
	return true, nil
}

func (r *chatREPL) sessionCommand(cmd string, rest []string) error {
	switch cmd {
	case "/new":
		s, err := r.sessions.NewSession()
		if err != nil {
			return err
		}
		fmt.Fprintf(r.out, "%s %s\n", SuccessStyle.Render("New session"), shortID(s.ID))
	case "/sessions":
		r.listed = r.sessions.Sessions()
		active, _ := r.sessions.Active()
		printSessions(r.out, r.listed, active.ID)
	case "/switch":
		if len(rest) == 0 {
			return ErrMissingArgument("session", "/switch 2")
		}
		list := r.listed
		if list == nil {
			list = r.sessions.Sessions()
		}
		id, err := resolveSession(list, rest[0])
		if err != nil {
			return err
		}
		if err := r.sessions.SelectSession(id); err != nil {
			return err
		}
		s, _ := r.sessions.Active()
		fmt.Fprintf(r.out, "%s %s\n\n", SuccessStyle.Render("Switched to"), s.Title)
		r.printHistory(6)
	}
	return nil
}

func (r *chatREPL) printHelp() {
	lines := [][2]string{
		{"/new", "start a new session"},
		{"/sessions", "list sessions"},
		{"/switch N|ID", "switch session"},
		{"/clear", "clear the conversation"},
		{"/history", "reprint the conversation"},
		{"/quit", "exit"},
		{"Ctrl+C", "stop the current answer"},
	}
	for _, l := range lines {
		fmt.Fprintf(r.out, "  %s %s\n", util.PadRight(l[0], 14), DimStyle.Render(l[1]))
	}
}

// printHistory prints the last n messages, or all when n <= 0.
func (r *chatREPL) printHistory(n int) {
	msgs := r.target.Messages()
	if n > 0 && len(msgs) > n {
		fmt.Fprintln(r.out, DimStyle.Render(fmt.Sprintf("... %d earlier messages", len(msgs)-n)))
		msgs = msgs[len(msgs)-n:]
	}
	for _, m := range msgs {
		fmt.Fprintf(r.out, "%s %s\n%s\n\n",
			SpeakerStyle.Render(m.Role.DisplayName()+":"),
			DimStyle.Render(model.Clock(m.Timestamp)),
			m.Content)
	}
}

// =============================================================================
// SESSION HELPERS
// =============================================================================

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// resolveSession maps a 1-based list index or an id prefix to a session id.
func resolveSession(sessions []model.ChatSession, ref string) (string, error) {
	if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(sessions) {
		return sessions[n-1].ID, nil
	}
	var match string
	for _, s := range sessions {
		if s.ID == ref {
			return s.ID, nil
		}
		if strings.HasPrefix(s.ID, ref) {
			if match != "" {
				return "", NewValidationError("session", ref, "ambiguous id prefix")
			}
			match = s.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("session %s: %w", ref, storage.ErrNotFound)
	}
	return match, nil
}

func printSessions(w io.Writer, sessions []model.ChatSession, activeID string) {
	if len(sessions) == 0 {
		fmt.Fprintln(w, DimStyle.Render("No sessions yet."))
		return
	}
	t := newTable("#", "ID", "TITLE", "LAST MESSAGE", "UPDATED")
	for i, s := range sessions {
		mark := strconv.Itoa(i + 1)
		if s.ID == activeID {
			mark = "*" + mark
		}
		t.add(mark, shortID(s.ID), s.Title, util.FirstLine(s.LastMessage), s.Timestamp)
	}
	t.render(w)
}
