// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists chat sessions, role chats and the small JSON
// blobs the client keeps between runs.
//
// Every record set lives under one key of a kv.Store and is read and
// written wholesale. Reads never fail: a missing or corrupt value yields the
// empty default and a warning in the log. Reads also upgrade the legacy
// message shape ({isUser: bool} instead of {role}) in memory only; the new
// shape reaches disk on the next explicit save.
//
// # Key Types
//
//   - Adapter: JSON codec over a kv.Store, shared by all record stores
//   - SessionStore: multi-session chat (key "chatWithUpload")
//   - RoleChatStore: per-role message logs (key "roleplayChat")
//   - PlaygroundStore: single playground log (key "playgroundChat")
//   - Blobs: settings, training config, training logs, identity and flags
//
// # Usage
//
//	a := storage.New(store)
//	sessions := storage.NewSessionStore(a)
//	s, err := sessions.CreateSession("")
//	err = sessions.SaveSessionMessages(s.ID, msgs)
package storage
