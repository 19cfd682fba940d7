// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// service.go - Inference service control.
//
// Command: service [start|stop|status]

package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/jeranaias/secondme-tui/internal/training"
)

// ServiceInfo is the JSON shape of "service status".
type ServiceInfo struct {
	Running     bool                 `json:"running"`
	ModelStatus training.ModelStatus `json:"model_status"`
	PID         string               `json:"pid,omitempty"`
	CPUPercent  string               `json:"cpu_percent,omitempty"`
	MemPercent  string               `json:"memory_percent,omitempty"`
	Command     string               `json:"command,omitempty"`
}

// HandleService handles the "service" command.
func HandleService(ctx context.Context, rt *Runtime, args Args) error {
	p := NewArgParser(args.Raw, "json")
	jsonMode := args.JSON || p.BoolFlag("json")

	switch sub := p.Subcommand(); sub {
	case "start":
		fmt.Fprintln(rt.Out, DimStyle.Render("Starting inference service..."))
		if err := rt.Service.StartService(ctx); err != nil {
			return NewCommandError("service", "start", "service did not start", err)
		}
		fmt.Fprintln(rt.Out, SuccessStyle.Render("Service running."))
		return nil

	case "stop":
		fmt.Fprintln(rt.Out, DimStyle.Render("Stopping inference service..."))
		if err := rt.Service.StopService(ctx); err != nil {
			return NewCommandError("service", "stop", "service did not stop", err)
		}
		fmt.Fprintln(rt.Out, SuccessStyle.Render("Service stopped."))
		return nil

	case "", "status":
		st, err := rt.Service.ProbeServiceStatus(ctx)
		if err != nil {
			return NewCommandError("service", "status", "cannot read service status", err)
		}
		info := ServiceInfo{Running: st.IsRunning, ModelStatus: rt.Monitor.Status()}
		if pi := st.ProcessInfo; pi != nil {
			info.PID = string(pi.PID)
			info.CPUPercent = string(pi.CPUPercent)
			info.MemPercent = string(pi.MemoryPercent)
			info.Command = strings.Join(pi.Cmdline, " ")
		}
		if jsonMode {
			return NewJSONResponse("service status", info).Print(rt.Out)
		}
		running := ErrorStyle.Render("stopped")
		if info.Running {
			running = SuccessStyle.Render("running")
		}
		field(rt.Out, "Service", running)
		field(rt.Out, "Model", RenderModelStatus(info.ModelStatus))
		if info.PID != "" {
			field(rt.Out, "PID", info.PID)
			field(rt.Out, "CPU", info.CPUPercent+"%")
			field(rt.Out, "Memory", info.MemPercent+"%")
		}
		if info.Command != "" {
			field(rt.Out, "Command", DimStyle.Render(info.Command))
		}
		return nil

	default:
		return ErrUnknownSubcommand("service", sub, []string{"start", "stop", "status"})
	}
}
