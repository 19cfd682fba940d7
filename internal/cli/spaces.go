// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// spaces.go - Multi-persona discussion spaces.
//
// Command: spaces
//
// Examples:
//   secondme spaces
//   secondme spaces create --title "Plan" --objective "Pick a city" --host URL --participants URL1,URL2
//   secondme spaces start ID --follow
//   secondme spaces watch             Print space status changes from any process

package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/secondme-tui/internal/api"
	"github.com/jeranaias/secondme-tui/internal/broadcast"
)

// HandleSpaces handles the "spaces" command.
func HandleSpaces(ctx context.Context, rt *Runtime, args Args) error {
	p := NewArgParser(args.Raw, "json", "follow", "f")
	jsonMode := args.JSON || p.BoolFlag("json")

	switch sub := p.Subcommand(); sub {
	case "", "list", "ls":
		spaces, err := rt.Client.Spaces(ctx)
		if err != nil {
			return NewCommandError("spaces", "list", "backend request failed", err)
		}
		if jsonMode {
			return NewJSONResponse("spaces list", spaces).Print(rt.Out)
		}
		if len(spaces) == 0 {
			fmt.Fprintln(rt.Out, DimStyle.Render("No spaces yet."))
			return nil
		}
		t := newTable("ID", "TITLE", "STATUS", "PARTICIPANTS", "CREATED")
		for _, s := range spaces {
			t.add(s.ID, s.Title, s.Status.String(), fmt.Sprint(len(s.Participants)), s.CreateTime)
		}
		t.render(rt.Out)
		return nil

	case "show":
		id, err := requireID(p, 1, "space", "secondme spaces show ID")
		if err != nil {
			return err
		}
		space, err := rt.Client.Space(ctx, id)
		if err != nil {
			return NewCommandError("spaces", "show", id, err)
		}
		if jsonMode {
			return NewJSONResponse("spaces show", space).Print(rt.Out)
		}
		printSpace(rt, space)
		return nil

	case "create", "new":
		req := api.CreateSpaceRequest{
			Title:     strings.TrimSpace(p.Flag("title")),
			Objective: strings.TrimSpace(p.Flag("objective")),
			Host:      strings.TrimSpace(p.Flag("host")),
		}
		for _, part := range strings.Split(p.Flag("participants"), ",") {
			if part = strings.TrimSpace(part); part != "" {
				req.Participants = append(req.Participants, part)
			}
		}
		if err := validateSpace(req); err != nil {
			return err
		}
		space, err := rt.Client.CreateSpace(ctx, req)
		if err != nil {
			return NewCommandError("spaces", "create", req.Title, err)
		}
		fmt.Fprintf(rt.Out, "%s %s %s\n", SuccessStyle.Render("Created"), space.ID, space.Title)
		return nil

	case "start":
		id, err := requireID(p, 1, "space", "secondme spaces start ID")
		if err != nil {
			return err
		}
		return startSpace(ctx, rt, id, p.BoolFlag("follow", "f"))

	case "delete", "rm":
		id, err := requireID(p, 1, "space", "secondme spaces delete ID")
		if err != nil {
			return err
		}
		if err := rt.Client.DeleteSpace(ctx, id); err != nil {
			return NewCommandError("spaces", "delete", id, err)
		}
		fmt.Fprintf(rt.Out, "%s %s\n", SuccessStyle.Render("Deleted"), id)
		return nil

	case "share":
		id, err := requireID(p, 1, "space", "secondme spaces share ID")
		if err != nil {
			return err
		}
		share, err := rt.Client.ShareSpace(ctx, id)
		if err != nil {
			return NewCommandError("spaces", "share", id, err)
		}
		if jsonMode {
			return NewJSONResponse("spaces share", share).Print(rt.Out)
		}
		fmt.Fprintf(rt.Out, "%s %s\n", SuccessStyle.Render("Share id"), share.ShareID)
		return nil

	case "watch":
		return watchSpaces(ctx, rt, jsonMode)

	default:
		return ErrUnknownSubcommand("spaces", sub, []string{"list", "show", "create", "start", "delete", "share", "watch"})
	}
}

func validateSpace(req api.CreateSpaceRequest) error {
	switch {
	case req.Title == "":
		return ErrMissingArgument("title", "--title \"Weekend plan\"")
	case req.Objective == "":
		return ErrMissingArgument("objective", "--objective \"Pick a destination\"")
	case req.Host == "":
		return ErrMissingArgument("host", "--host http://127.0.0.1:8002")
	case len(req.Participants) == 0:
		return ErrMissingArgument("participants", "--participants URL1,URL2")
	}
	return nil
}

// startSpace starts the discussion and announces it. With follow it polls
// until the discussion finishes, printing new messages and announcing each
// status change.
func startSpace(ctx context.Context, rt *Runtime, id string, follow bool) error {
	ch, err := rt.OpenBroadcast(ctx)
	if err != nil {
		return NewCommandError("spaces", "start", "cannot open broadcast channel", err)
	}
	defer ch.Close()

	space, err := rt.Client.StartSpace(ctx, id)
	if err != nil {
		return NewCommandError("spaces", "start", id, err)
	}
	status := space.Status
	if status == api.SpaceUnknown || status == api.SpaceInitialized {
		status = api.SpaceDiscussing
	}
	announce := func(s api.SpaceStatus) {
		if err := ch.Publish(ctx, broadcast.Message{SpaceID: id, Status: s}); err != nil {
			rt.log.Warnw("failed to announce space status", "space", id, "error", err)
		}
	}
	announce(status)
	fmt.Fprintf(rt.Out, "%s %s (%s)\n", SuccessStyle.Render("Started"), id, status)
	if !follow {
		return nil
	}

	ticker := time.NewTicker(rt.Config.Training.PollInterval)
	defer ticker.Stop()
	seen := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		space, err := rt.Client.Space(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return NewCommandError("spaces", "follow", id, err)
		}
		for _, m := range space.Messages[min(seen, len(space.Messages)):] {
			fmt.Fprintf(rt.Out, "%s %s\n%s\n\n",
				SpeakerStyle.Render(fmt.Sprintf("[round %d] %s:", m.Round, m.Role)),
				DimStyle.Render(m.CreateTime), m.Content)
		}
		seen = len(space.Messages)
		if space.Status != api.SpaceUnknown && space.Status != status {
			status = space.Status
			announce(status)
			fmt.Fprintln(rt.Out, DimStyle.Render("status: "+status.String()))
		}
		if status.Finished() {
			if space.Conclusion != nil && *space.Conclusion != "" {
				fmt.Fprintln(rt.Out, TitleStyle.Render("Conclusion"))
				fmt.Fprintln(rt.Out, *space.Conclusion)
			}
			return nil
		}
	}
}

// watchSpaces prints every space status announcement until ctx ends.
func watchSpaces(ctx context.Context, rt *Runtime, jsonMode bool) error {
	ch, err := rt.OpenBroadcast(ctx)
	if err != nil {
		return NewCommandError("spaces", "watch", "cannot open broadcast channel", err)
	}
	defer ch.Close()

	err = ch.Subscribe(ctx, func(m broadcast.Message) {
		if jsonMode {
			_ = NewJSONResponse("spaces watch", m).Print(rt.Out)
			return
		}
		fmt.Fprintf(rt.Out, "%s space %s %s\n",
			DimStyle.Render(time.Now().Format("15:04:05")), m.SpaceID, m.Status)
	})
	if err != nil {
		return NewCommandError("spaces", "watch", "subscribe failed", err)
	}
	if !jsonMode {
		fmt.Fprintln(rt.Err, DimStyle.Render("Watching space updates, Ctrl+C to stop."))
	}
	<-ctx.Done()
	return nil
}

func printSpace(rt *Runtime, s api.Space) {
	fmt.Fprintln(rt.Out, TitleStyle.Render(s.Title))
	field(rt.Out, "ID", s.ID)
	field(rt.Out, "Objective", s.Objective)
	field(rt.Out, "Status", s.Status)
	field(rt.Out, "Host", s.Host)
	field(rt.Out, "Participants", strings.Join(s.Participants, ", "))
	field(rt.Out, "Created", s.CreateTime)
	if len(s.Messages) > 0 {
		fmt.Fprintln(rt.Out)
		for _, m := range s.Messages {
			fmt.Fprintf(rt.Out, "%s\n%s\n\n",
				SpeakerStyle.Render(fmt.Sprintf("[round %d] %s:", m.Round, m.Role)), m.Content)
		}
	}
	if s.Conclusion != nil && *s.Conclusion != "" {
		fmt.Fprintln(rt.Out, TitleStyle.Render("Conclusion"))
		fmt.Fprintln(rt.Out, *s.Conclusion)
	}
}
