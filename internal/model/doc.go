// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the chat data structures shared by storage, the
// stream consumer and the chat controllers.
//
// # Key Types
//
//   - ChatMessage: one turn with id, role, content and timestamp
//   - ChatSession: a persisted conversation with title and preview
//   - Role: message sender (user, assistant)
//   - Turn: the {role, content} pair sent as chat history
//
// # Usage
//
//	s := model.NewSession("")
//	s.Messages = append(s.Messages, model.NewUserMessage("Hello"))
//	s.Recompute()
package model
