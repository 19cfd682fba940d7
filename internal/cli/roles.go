// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// roles.go - Role management.
//
// Command: roles
//
// Examples:
//   secondme roles
//   secondme roles create --name "Career coach" --prompt "You coach me on..."
//   secondme roles update UUID --prompt "Be more direct"
//   secondme roles chat UUID
//   secondme roles delete UUID

package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/jeranaias/secondme-tui/internal/api"
	"github.com/jeranaias/secondme-tui/internal/util"
)

// HandleRoles handles the "roles" command.
func HandleRoles(ctx context.Context, rt *Runtime, args Args) error {
	p := NewArgParser(args.Raw, "json", "no-l0", "no-l1")
	jsonMode := args.JSON || p.BoolFlag("json")

	switch sub := p.Subcommand(); sub {
	case "", "list", "ls":
		roles, err := rt.Client.Roles(ctx)
		if err != nil {
			return NewCommandError("roles", "list", "backend request failed", err)
		}
		if jsonMode {
			return NewJSONResponse("roles list", roles).Print(rt.Out)
		}
		if len(roles) == 0 {
			fmt.Fprintln(rt.Out, DimStyle.Render("No roles yet. Create one with: secondme roles create --name NAME --prompt PROMPT"))
			return nil
		}
		t := newTable("UUID", "NAME", "DESCRIPTION", "ACTIVE")
		for _, r := range roles {
			t.add(r.UUID, r.Name, util.FirstLine(r.Description), fmt.Sprint(r.IsActive))
		}
		t.render(rt.Out)
		return nil

	case "show":
		id, err := requireID(p, 1, "role", "secondme roles show UUID")
		if err != nil {
			return err
		}
		role, err := rt.Client.Role(ctx, id)
		if err != nil {
			return NewCommandError("roles", "show", id, err)
		}
		if jsonMode {
			return NewJSONResponse("roles show", role).Print(rt.Out)
		}
		printRole(rt, role)
		return nil

	case "create", "new":
		req, err := roleRequest(p, api.RoleRequest{EnableL0Retrieval: true, EnableL1Retrieval: true}, true)
		if err != nil {
			return err
		}
		role, err := rt.Client.CreateRole(ctx, req)
		if err != nil {
			return NewCommandError("roles", "create", req.Name, err)
		}
		if jsonMode {
			return NewJSONResponse("roles create", role).Print(rt.Out)
		}
		fmt.Fprintf(rt.Out, "%s %s %s\n", SuccessStyle.Render("Created"), role.UUID, role.Name)
		return nil

	case "update", "edit":
		id, err := requireID(p, 1, "role", "secondme roles update UUID --prompt PROMPT")
		if err != nil {
			return err
		}
		current, err := rt.Client.Role(ctx, id)
		if err != nil {
			return NewCommandError("roles", "update", id, err)
		}
		req, err := roleRequest(p, api.RoleRequest{
			Name:              current.Name,
			Description:       current.Description,
			SystemPrompt:      current.SystemPrompt,
			Icon:              current.Icon,
			EnableL0Retrieval: current.EnableL0Retrieval,
			EnableL1Retrieval: current.EnableL1Retrieval,
		}, false)
		if err != nil {
			return err
		}
		role, err := rt.Client.UpdateRole(ctx, id, req)
		if err != nil {
			return NewCommandError("roles", "update", id, err)
		}
		fmt.Fprintf(rt.Out, "%s %s\n", SuccessStyle.Render("Updated"), role.Name)
		return nil

	case "delete", "rm":
		id, err := requireID(p, 1, "role", "secondme roles delete UUID")
		if err != nil {
			return err
		}
		if err := rt.Client.DeleteRole(ctx, id); err != nil {
			return NewCommandError("roles", "delete", id, err)
		}
		if err := rt.RoleChats.DeleteRole(id); err != nil {
			rt.log.Warnw("failed to drop local role chat", "role", id, "error", err)
		}
		fmt.Fprintf(rt.Out, "%s %s\n", SuccessStyle.Render("Deleted"), id)
		return nil

	case "share":
		id, err := requireID(p, 1, "role", "secondme roles share UUID")
		if err != nil {
			return err
		}
		role, err := rt.Client.ShareRole(ctx, id)
		if err != nil {
			return NewCommandError("roles", "share", id, err)
		}
		if jsonMode {
			return NewJSONResponse("roles share", role).Print(rt.Out)
		}
		fmt.Fprintf(rt.Out, "%s %s\n", SuccessStyle.Render("Shared"), role.Name)
		return nil

	case "chat":
		id, err := requireID(p, 1, "role", "secondme roles chat UUID")
		if err != nil {
			return err
		}
		return HandleChat(ctx, rt, Args{Raw: []string{"--role", id}})

	default:
		return ErrUnknownSubcommand("roles", sub, []string{"list", "show", "create", "update", "delete", "share", "chat"})
	}
}

// roleRequest overlays flags on base. create requires a name and prompt.
func roleRequest(p *ArgParser, base api.RoleRequest, create bool) (api.RoleRequest, error) {
	req := base
	if v := p.Flag("name"); v != "" {
		req.Name = strings.TrimSpace(v)
	}
	if v := p.Flag("prompt", "system-prompt"); v != "" {
		req.SystemPrompt = v
	}
	if v := p.Flag("description", "d"); v != "" {
		req.Description = v
	}
	if v := p.Flag("icon"); v != "" {
		req.Icon = v
	}
	if p.BoolFlag("no-l0") {
		req.EnableL0Retrieval = false
	}
	if p.BoolFlag("no-l1") {
		req.EnableL1Retrieval = false
	}

	if create && req.Name == "" {
		return req, ErrMissingArgument("name", `secondme roles create --name "Career coach" --prompt "..."`)
	}
	if create && strings.TrimSpace(req.SystemPrompt) == "" {
		return req, ErrMissingArgument("prompt", `secondme roles create --name "Career coach" --prompt "..."`)
	}
	if len([]rune(req.Name)) > 64 {
		return req, NewValidationError("name", req.Name, "must be at most 64 characters")
	}
	return req, nil
}

func printRole(rt *Runtime, r api.Role) {
	fmt.Fprintln(rt.Out, TitleStyle.Render(r.Name))
	field(rt.Out, "UUID", r.UUID)
	field(rt.Out, "Description", r.Description)
	field(rt.Out, "Active", r.IsActive)
	field(rt.Out, "L0 retrieval", r.EnableL0Retrieval)
	field(rt.Out, "L1 retrieval", r.EnableL1Retrieval)
	field(rt.Out, "Updated", r.UpdateTime)
	fmt.Fprintln(rt.Out)
	fmt.Fprintln(rt.Out, r.SystemPrompt)
	if n := len(rt.RoleChats.Messages(r.UUID)); n > 0 {
		fmt.Fprintln(rt.Out)
		fmt.Fprintln(rt.Out, DimStyle.Render(fmt.Sprintf("%d local chat messages", n)))
	}
}
