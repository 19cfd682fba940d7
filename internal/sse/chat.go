// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sse

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DataPrefix marks a data line. Chat streams always put a space after the
// colon.
const DataPrefix = "data: "

// DoneSentinel is the payload that ends a chat stream.
const DoneSentinel = "[DONE]"

// FrameKind classifies one decoded line.
type FrameKind int

const (
	// FrameIgnored is a non-data line (comments, event:, id:, blank) or a
	// data line with an empty payload.
	FrameIgnored FrameKind = iota
	// FrameDelta carries text to append. Delta may be empty when the chunk
	// has no content (role-only or finish chunks).
	FrameDelta
	// FrameDone is the end-of-stream sentinel.
	FrameDone
	// FrameMalformed is a data line whose JSON did not parse.
	FrameMalformed
)

func (k FrameKind) String() string {
	switch k {
	case FrameIgnored:
		return "ignored"
	case FrameDelta:
		return "delta"
	case FrameDone:
		return "done"
	case FrameMalformed:
		return "malformed"
	default:
		return fmt.Sprintf("FrameKind(%d)", int(k))
	}
}

// Frame is the result of decoding one line.
type Frame struct {
	Kind  FrameKind
	Delta string
	Err   error
}

// ChatChunk is the JSON payload of one chat data line.
type ChatChunk struct {
	ID      string `json:"id,omitempty"`
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
			Role    string `json:"role,omitempty"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason,omitempty"`
	} `json:"choices"`
}

// Content returns the first choice's delta text.
func (c *ChatChunk) Content() string {
	if len(c.Choices) > 0 {
		return c.Choices[0].Delta.Content
	}
	return ""
}

// ParseChatLine decodes one complete line of a chat stream.
func ParseChatLine(line string) Frame {
	if !strings.HasPrefix(line, DataPrefix) {
		return Frame{Kind: FrameIgnored}
	}
	payload := strings.TrimSpace(line[len(DataPrefix):])
	if payload == "" {
		return Frame{Kind: FrameIgnored}
	}
	if payload == DoneSentinel {
		return Frame{Kind: FrameDone}
	}
	var chunk ChatChunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		return Frame{Kind: FrameMalformed, Err: err}
	}
	return Frame{Kind: FrameDelta, Delta: chunk.Content()}
}
