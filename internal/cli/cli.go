// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Command parsing and dispatch for secondme.

package cli

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdChat
	CmdAsk
	CmdSessions
	CmdRoles
	CmdSpaces
	CmdTrain
	CmdService
	CmdLogs
	CmdMemories
	CmdConfig
	CmdServeMetrics
	CmdVersion
	CmdHelp
)

var commandNames = map[Command]string{
	CmdTUI:          "tui",
	CmdChat:         "chat",
	CmdAsk:          "ask",
	CmdSessions:     "sessions",
	CmdRoles:        "roles",
	CmdSpaces:       "spaces",
	CmdTrain:        "train",
	CmdService:      "service",
	CmdLogs:         "logs",
	CmdMemories:     "memories",
	CmdConfig:       "config",
	CmdServeMetrics: "serve-metrics",
	CmdVersion:      "version",
	CmdHelp:         "help",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("command(%d)", int(c))
}

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	ConfigPath string
	BaseURL    string
	Debug      bool
	Metrics    string
	JSON       bool

	// Raw holds the arguments after the command name.
	Raw []string
}

const usageText = `secondme - terminal client for a Second Me backend

Usage:
  secondme                          Start the TUI (default on a terminal)
  secondme chat [--session ID] [--new] [--role ID]
                                    Interactive chat REPL
  secondme ask <text>               One-shot answer via the playground
  secondme sessions [list|show ID|new [TITLE]|delete ID]
  secondme roles [list|show ID|create --name N --prompt P [--description D]
                  |delete ID|share ID|chat ID]
  secondme spaces [list|show ID|start ID|delete ID|watch]
  secondme train [start|retrain|stop|status [--watch]]
  secondme service [start|stop|status]
  secondme logs [--follow]          Show or follow training logs
  secondme memories [list]          List uploaded memories
  secondme config [show|get KEY|set KEY VALUE|path|keys]
  secondme serve-metrics            Serve /metrics until interrupted
  secondme version
  secondme help

Global flags:
  --config PATH     Use this config file instead of ~/.secondme/config.toml
  --base-url URL    Override server.base_url
  --metrics ADDR    Expose prometheus metrics on ADDR while running
  --debug           Log at debug level
  --json            Machine-readable output for list and status commands

Environment:
  SECONDME_BASE_URL, SECONDME_BASE_MODEL, SECONDME_STORAGE, SECONDME_DATA_DIR,
  SECONDME_LOG_LEVEL, SECONDME_REDIS_ADDR, SECONDME_METRICS_ADDR, SECONDME_HOME

Version: %s
`

// PrintUsage writes the usage text to w.
func PrintUsage(w io.Writer) {
	fmt.Fprintf(w, usageText, Version)
}

// PrintVersion writes version information to w.
func PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "secondme version %s\n", Version)
	fmt.Fprintf(w, "  Git commit: %s\n", GitCommit)
	fmt.Fprintf(w, "  Build date: %s\n", BuildDate)
	fmt.Fprintf(w, "  Go version: %s\n", runtime.Version())
}

// Parse splits argv (without the program name) into a command and its args.
// Unknown commands are reported as a ValidationError.
func Parse(argv []string) (Command, Args, error) {
	remaining, parsed, err := parseGlobalFlags(argv)
	if err != nil {
		return CmdHelp, parsed, err
	}

	if len(remaining) == 0 {
		return CmdTUI, parsed, nil
	}

	cmd := strings.ToLower(remaining[0])
	parsed.Raw = remaining[1:]

	switch cmd {
	case "tui":
		return CmdTUI, parsed, nil
	case "chat":
		return CmdChat, parsed, nil
	case "ask":
		return CmdAsk, parsed, nil
	case "session", "sessions":
		return CmdSessions, parsed, nil
	case "role", "roles":
		return CmdRoles, parsed, nil
	case "space", "spaces":
		return CmdSpaces, parsed, nil
	case "train", "training":
		return CmdTrain, parsed, nil
	case "service":
		return CmdService, parsed, nil
	case "logs", "log":
		return CmdLogs, parsed, nil
	case "memories", "memory":
		return CmdMemories, parsed, nil
	case "config":
		return CmdConfig, parsed, nil
	case "serve-metrics":
		return CmdServeMetrics, parsed, nil
	case "version", "-v", "--version":
		return CmdVersion, parsed, nil
	case "help", "-h", "--help":
		return CmdHelp, parsed, nil
	default:
		return CmdHelp, parsed, &ValidationError{
			Field:   "command",
			Value:   cmd,
			Reason:  "unknown command",
			Example: "secondme help",
		}
	}
}

// parseGlobalFlags extracts global flags from anywhere in args.
func parseGlobalFlags(args []string) ([]string, Args, error) {
	var remaining []string
	var parsed Args

	value := func(i *int, name string) (string, error) {
		if *i+1 >= len(args) {
			return "", ErrMissingArgument(name, "--"+name+" VALUE")
		}
		*i++
		return args[*i], nil
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		var err error
		switch {
		case arg == "--debug":
			parsed.Debug = true
		case arg == "--json":
			parsed.JSON = true
		case arg == "--config":
			parsed.ConfigPath, err = value(&i, "config")
		case strings.HasPrefix(arg, "--config="):
			parsed.ConfigPath = strings.TrimPrefix(arg, "--config=")
		case arg == "--base-url":
			parsed.BaseURL, err = value(&i, "base-url")
		case strings.HasPrefix(arg, "--base-url="):
			parsed.BaseURL = strings.TrimPrefix(arg, "--base-url=")
		case arg == "--metrics":
			parsed.Metrics, err = value(&i, "metrics")
		case strings.HasPrefix(arg, "--metrics="):
			parsed.Metrics = strings.TrimPrefix(arg, "--metrics=")
		default:
			remaining = append(remaining, arg)
		}
		if err != nil {
			return nil, parsed, err
		}
	}

	return remaining, parsed, nil
}

// =============================================================================
// DISPATCH
// =============================================================================

// Run executes a non-TUI command against rt.
func Run(ctx context.Context, cmd Command, args Args, rt *Runtime) error {
	switch cmd {
	case CmdChat:
		return HandleChat(ctx, rt, args)
	case CmdAsk:
		return HandleAsk(ctx, rt, args)
	case CmdSessions:
		return HandleSessions(ctx, rt, args)
	case CmdRoles:
		return HandleRoles(ctx, rt, args)
	case CmdSpaces:
		return HandleSpaces(ctx, rt, args)
	case CmdTrain:
		return HandleTrain(ctx, rt, args)
	case CmdService:
		return HandleService(ctx, rt, args)
	case CmdLogs:
		return HandleLogs(ctx, rt, args)
	case CmdMemories:
		return HandleMemories(ctx, rt, args)
	case CmdConfig:
		return HandleConfig(rt, args)
	case CmdVersion:
		PrintVersion(rt.Out)
		return nil
	case CmdHelp:
		PrintUsage(rt.Out)
		return nil
	default:
		return fmt.Errorf("%s cannot be run as a plain command", cmd)
	}
}
