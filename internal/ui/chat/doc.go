// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat tab of the TUI: a session list, the
// active session's messages and an input box.
//
// The model does not poll. Attach registers a watcher on the chat
// controller that forwards every change through the program's Send, so
// streamed tokens arrive as ChangedMsg values.
package chat
