// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package sse implements the two server-sent-event decoders the client
// needs.
//
// LineBuffer and ParseChatLine form the incremental chat decoder: raw
// chunks are fed in as they arrive, complete lines come out, and each data
// line decodes to a Frame value. Malformed lines become FrameMalformed
// instead of an error so one bad line never ends a stream.
//
// EventReader is a blocking event-at-a-time reader for the log stream,
// where events may span several data lines.
package sse
