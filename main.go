// secondme - A terminal client for a Second Me backend.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/secondme-tui/internal/cli"
	"github.com/jeranaias/secondme-tui/internal/config"
	"github.com/jeranaias/secondme-tui/internal/logging"
	"github.com/jeranaias/secondme-tui/internal/metrics"
	"github.com/jeranaias/secondme-tui/internal/ui/styles"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// exitInterrupted is the conventional code for a SIGINT exit.
const exitInterrupted = 130

func init() {
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	os.Exit(run(os.Args[1:]))
}

// run executes argv and returns the process exit code.
func run(argv []string) int {
	cmd, args, err := cli.Parse(argv)
	if err != nil {
		cli.DisplayError(os.Stderr, err, args.JSON)
		return cli.ExitCodeFor(err)
	}

	switch cmd {
	case cli.CmdVersion:
		cli.PrintVersion(os.Stdout)
		return cli.ExitSuccess
	case cli.CmdHelp:
		cli.PrintUsage(os.Stdout)
		return cli.ExitSuccess
	case cli.CmdConfig:
		// Config commands work on a broken config file, so they skip
		// validation and runtime setup.
		return runConfig(args)
	}

	cfg, err := loadConfig(args)
	if err != nil {
		cli.DisplayError(os.Stderr, err, args.JSON)
		return cli.ExitCodeFor(err)
	}

	if err := initLogging(cfg, args, cmd); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging disabled: %v\n", err)
	}
	defer logging.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricsAddr := args.Metrics
	if metricsAddr == "" {
		metricsAddr = cfg.Metrics.Addr
	}
	if cmd == cli.CmdServeMetrics {
		if metricsAddr == "" {
			metricsAddr = ":9464"
		}
		if err := metrics.Serve(ctx, metricsAddr); err != nil {
			cli.DisplayError(os.Stderr, err, args.JSON)
			return cli.ExitGeneralError
		}
		return cli.ExitSuccess
	}
	if metricsAddr != "" {
		log := logging.NewLogger("main")
		go func() {
			if err := metrics.Serve(ctx, metricsAddr); err != nil {
				log.Warnw("metrics endpoint failed", "addr", metricsAddr, "error", err)
			}
		}()
	}

	if cmd == cli.CmdTUI && !(cli.IsTTY() && cli.IsStdoutTTY()) {
		cli.PrintUsage(os.Stdout)
		return cli.ExitSuccess
	}

	rt, err := cli.NewRuntime(cfg)
	if err != nil {
		cli.DisplayError(os.Stderr, err, args.JSON)
		return cli.ExitCodeFor(err)
	}
	defer rt.Close()

	if cmd == cli.CmdTUI {
		err = runTUI(ctx, rt)
	} else {
		err = cli.Run(ctx, cmd, args, rt)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return exitInterrupted
		}
		cli.DisplayError(os.Stderr, err, args.JSON)
		return cli.ExitCodeFor(err)
	}
	return cli.ExitSuccess
}

// loadConfig reads the config file named by --config or the default one
// and applies --base-url.
func loadConfig(args cli.Args) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if args.ConfigPath != "" {
		cfg, err = config.LoadFromPath(args.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if args.BaseURL != "" {
		cfg.Server.BaseURL = args.BaseURL
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid --base-url: %w", err)
		}
	}
	return cfg, nil
}

// runConfig runs a config command without opening storage.
func runConfig(args cli.Args) int {
	cfg, err := loadConfig(args)
	if err != nil {
		cfg = config.Default()
	}
	rt := &cli.Runtime{Config: cfg, Out: os.Stdout, Err: os.Stderr}
	if err := cli.HandleConfig(rt, args); err != nil {
		cli.DisplayError(os.Stderr, err, args.JSON)
		return cli.ExitCodeFor(err)
	}
	return cli.ExitSuccess
}

// initLogging points the logger at the log file. The TUI owns the
// terminal, so it never logs to stderr.
func initLogging(cfg *config.Config, args cli.Args, cmd cli.Command) error {
	file, err := cfg.LogFile()
	if err != nil && cmd == cli.CmdTUI {
		return err
	}
	if err := logging.Init(logging.Options{Level: cfg.Log.Level, File: file, JSON: cfg.Log.JSON}); err != nil {
		return err
	}
	if args.Debug {
		logging.SetDebug(true)
	}
	return nil
}

// runTUI runs the tabbed interface until the user quits or ctx ends.
func runTUI(ctx context.Context, rt *cli.Runtime) error {
	go rt.RefreshIdentity(ctx)

	theme := styles.NewTheme(rt.Config.UI.Theme)
	app := NewApp(ctx, rt, theme)
	defer app.Close()

	p := tea.NewProgram(
		app,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	app.Attach(p.Send)

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("TUI failed: %w", err)
	}
	return nil
}
