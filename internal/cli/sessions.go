// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// sessions.go - Local chat session management.
//
// Command: sessions
//
// Examples:
//   secondme sessions                 List sessions (newest first)
//   secondme sessions show 2          Print session 2 from the list
//   secondme sessions new "Trip ideas"
//   secondme sessions delete 3f2a     Delete by id prefix

package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/jeranaias/secondme-tui/internal/model"
)

// HandleSessions handles the "sessions" command.
func HandleSessions(_ context.Context, rt *Runtime, args Args) error {
	p := NewArgParser(args.Raw, "json")
	jsonMode := args.JSON || p.BoolFlag("json")
	store := rt.Sessions

	switch sub := p.Subcommand(); sub {
	case "", "list", "ls":
		sessions := store.Sessions()
		if jsonMode {
			return NewJSONResponse("sessions list", sessions).Print(rt.Out)
		}
		printSessions(rt.Out, sessions, "")
		return nil

	case "show":
		ref, err := requireID(p, 1, "session", "secondme sessions show 1")
		if err != nil {
			return err
		}
		id, err := resolveSession(store.Sessions(), ref)
		if err != nil {
			return err
		}
		s, _ := store.Session(id)
		s.Messages = store.SessionMessages(id)
		if jsonMode {
			return NewJSONResponse("sessions show", s).Print(rt.Out)
		}
		fmt.Fprintln(rt.Out, TitleStyle.Render(s.Title))
		field(rt.Out, "ID", s.ID)
		field(rt.Out, "Updated", s.Timestamp)
		field(rt.Out, "Messages", len(s.Messages))
		fmt.Fprintln(rt.Out)
		for _, m := range s.Messages {
			fmt.Fprintf(rt.Out, "%s %s\n%s\n\n",
				SpeakerStyle.Render(m.Role.DisplayName()+":"),
				DimStyle.Render(model.Clock(m.Timestamp)),
				m.Content)
		}
		return nil

	case "new", "create":
		s, err := store.CreateSession(strings.TrimSpace(p.Rest(1)))
		if err != nil {
			return err
		}
		if jsonMode {
			return NewJSONResponse("sessions new", s).Print(rt.Out)
		}
		fmt.Fprintf(rt.Out, "%s %s %s\n", SuccessStyle.Render("Created"), s.ID, s.Title)
		return nil

	case "delete", "rm":
		ref, err := requireID(p, 1, "session", "secondme sessions delete 1")
		if err != nil {
			return err
		}
		id, err := resolveSession(store.Sessions(), ref)
		if err != nil {
			return err
		}
		if err := store.DeleteSession(id); err != nil {
			return err
		}
		fmt.Fprintf(rt.Out, "%s %s\n", SuccessStyle.Render("Deleted"), id)
		return nil

	default:
		return ErrUnknownSubcommand("sessions", sub, []string{"list", "show", "new", "delete"})
	}
}
