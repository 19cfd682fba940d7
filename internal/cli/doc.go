// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line parsing and the non-interactive
// commands of secondme.
//
// Every command runs against a Runtime, which owns the API client, the
// local stores and the chat and training controllers built from the
// loaded configuration.
//
// # Usage
//
//	cmd, args, err := cli.Parse(os.Args[1:])
//	if err != nil {
//	    cli.DisplayError(os.Stderr, err, false)
//	    os.Exit(cli.ExitCodeFor(err))
//	}
//	rt, err := cli.NewRuntime(cfg)
//	...
//	err = cli.Run(ctx, cmd, args, rt)
//
// # Commands
//
//   - chat: interactive chat with the second me or a role
//   - ask: single question through the playground
//   - sessions, roles, spaces: manage stored conversations and backend objects
//   - train, service, logs: model training and the inference service
//   - memories: uploaded memory files
//   - config: show and edit ~/.secondme/config.toml
//
// # Exit Codes
//
// ExitCodeFor maps errors onto the documented exit codes so scripts can
// tell a usage error from an unreachable backend.
package cli
