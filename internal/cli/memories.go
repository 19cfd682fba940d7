// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// memories.go - Uploaded memory listing.
//
// Command: memories [list|delete NAME]

package cli

import (
	"context"
	"fmt"

	"github.com/jeranaias/secondme-tui/internal/training"
)

// HandleMemories handles the "memories" command.
func HandleMemories(ctx context.Context, rt *Runtime, args Args) error {
	p := NewArgParser(args.Raw, "json")
	jsonMode := args.JSON || p.BoolFlag("json")

	switch sub := p.Subcommand(); sub {
	case "", "list", "ls":
		list, err := rt.Client.Memories(ctx)
		if err != nil {
			return NewCommandError("memories", "list", "cannot list memories", err)
		}
		if jsonMode {
			return NewJSONResponse("memories list", list).Print(rt.Out)
		}
		if len(list) == 0 {
			fmt.Fprintln(rt.Out, DimStyle.Render("No memories uploaded."))
			return nil
		}
		t := newTable("NAME", "SIZE", "EMBEDDING", "CREATED")
		for _, m := range list {
			t.add(m.Name, formatSize(m.DocumentSize), m.EmbeddingStatus, m.CreateTime)
		}
		t.render(rt.Out)
		need := rt.Config.Training.MinMemories
		if need <= 0 {
			need = training.DefaultMinMemories
		}
		if len(list) < need {
			fmt.Fprintln(rt.Out, WarningStyle.Render(fmt.Sprintf("\n%d of %d memories needed before training.", len(list), need)))
		}
		return nil

	case "delete", "rm":
		name, err := requireID(p, 1, "memory name", "secondme memories delete NAME")
		if err != nil {
			return err
		}
		if err := rt.Client.DeleteMemory(ctx, name); err != nil {
			return NewCommandError("memories", "delete", "cannot delete memory", err)
		}
		fmt.Fprintln(rt.Out, SuccessStyle.Render("Deleted "+name))
		return nil

	default:
		return ErrUnknownSubcommand("memories", sub, []string{"list", "delete"})
	}
}

func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
