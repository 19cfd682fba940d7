// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sse

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// LINE BUFFER TESTS
// =============================================================================

func TestLineBuffer_SplitsAcrossChunks(t *testing.T) {
	var b LineBuffer
	assert.Empty(t, b.Feed([]byte("data: {\"a\"")))
	assert.Equal(t, 10, b.Pending())
	assert.Equal(t, []string{`data: {"a":1}`}, b.Feed([]byte(":1}\n")))
	assert.Equal(t, []string{"one", "two", ""}, b.Feed([]byte("one\r\ntwo\n\nthr")))

	rest, ok := b.Flush()
	assert.True(t, ok)
	assert.Equal(t, "thr", rest)

	_, ok = b.Flush()
	assert.False(t, ok)
}

func TestLineBuffer_ByteAtATime(t *testing.T) {
	var (
		b   LineBuffer
		got []string
	)
	for _, c := range []byte("ab\ncd\n") {
		got = append(got, b.Feed([]byte{c})...)
	}
	assert.Equal(t, []string{"ab", "cd"}, got)
}

func TestLineBuffer_DropsOverlongLine(t *testing.T) {
	var b LineBuffer
	assert.Empty(t, b.Feed([]byte(strings.Repeat("x", MaxLineSize+1))))
	assert.Empty(t, b.Feed([]byte("still long")))
	assert.Equal(t, []string{"next"}, b.Feed([]byte("\nnext\n")))
}

// =============================================================================
// CHAT LINE TESTS
// =============================================================================

func TestParseChatLine(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		kind  FrameKind
		delta string
	}{
		{"delta", `data: {"choices":[{"delta":{"content":"Hi"}}]}`, FrameDelta, "Hi"},
		{"role only", `data: {"choices":[{"delta":{"role":"assistant"}}]}`, FrameDelta, ""},
		{"no choices", `data: {"choices":[]}`, FrameDelta, ""},
		{"done", "data: [DONE]", FrameDone, ""},
		{"done with trailing space", "data: [DONE] \r", FrameDone, ""},
		{"padded payload", "data:  {\"choices\":[{\"delta\":{\"content\":\" x\"}}]}  ", FrameDelta, " x"},
		{"empty payload", "data: ", FrameIgnored, ""},
		{"whitespace payload", "data:    ", FrameIgnored, ""},
		{"malformed", `data: {"choices":[{"delta"`, FrameMalformed, ""},
		{"comment", ": keepalive", FrameIgnored, ""},
		{"event field", "event: message", FrameIgnored, ""},
		{"no space after colon", `data:{"choices":[]}`, FrameIgnored, ""},
		{"blank", "", FrameIgnored, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := ParseChatLine(tt.line)
			assert.Equal(t, tt.kind, f.Kind, f.Kind.String())
			assert.Equal(t, tt.delta, f.Delta)
			if tt.kind == FrameMalformed {
				assert.Error(t, f.Err)
			}
		})
	}
}

func TestAccumulationSkipsMalformed(t *testing.T) {
	chunks := []string{
		"data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n",
		"data: {broken\n",
		"data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\ndata: {\"choi",
		"ces\":[{\"delta\":{\"content\":\"!\"}}]}\n",
		"data: [DONE]\n",
		"data: {\"choices\":[{\"delta\":{\"content\":\"after done\"}}]}\n",
	}

	var (
		b    LineBuffer
		acc  strings.Builder
		done bool
	)
	for _, c := range chunks {
		for _, line := range b.Feed([]byte(c)) {
			if done {
				break
			}
			f := ParseChatLine(line)
			switch f.Kind {
			case FrameDelta:
				acc.WriteString(f.Delta)
			case FrameDone:
				done = true
			}
		}
	}
	assert.True(t, done)
	assert.Equal(t, "Hello!", acc.String())
}

// =============================================================================
// EVENT READER TESTS
// =============================================================================

func TestEventReader(t *testing.T) {
	body := ": comment\n" +
		"data: {\"message\":\"first\"}\n\n" +
		"event: progress\nid: 7\ndata: line one\ndata: line two\n\n" +
		"data: plain text\n\n" +
		"data: no trailing newline"

	r := NewEventReader(strings.NewReader(body))

	ev, err := r.ReadEvent()
	require.NoError(t, err)
	assert.True(t, ev.IsMessage())
	assert.Equal(t, `{"message":"first"}`, ev.Data)

	ev, err = r.ReadEvent()
	require.NoError(t, err)
	assert.Equal(t, "progress", ev.Type)
	assert.Equal(t, "7", ev.ID)
	assert.False(t, ev.IsMessage())
	assert.Equal(t, "line one\nline two", ev.Data)

	ev, err = r.ReadEvent()
	require.NoError(t, err)
	assert.Equal(t, "plain text", ev.Data)

	ev, err = r.ReadEvent()
	require.NoError(t, err)
	assert.Equal(t, "no trailing newline", ev.Data)

	_, err = r.ReadEvent()
	assert.True(t, errors.Is(err, io.EOF))
}

func TestEventReader_PropagatesReadError(t *testing.T) {
	boom := errors.New("connection reset")
	r := NewEventReader(io.MultiReader(strings.NewReader("data: partial"), &errReader{err: boom}))
	_, err := r.ReadEvent()
	assert.ErrorIs(t, err, boom)
}

type errReader struct{ err error }

func (e *errReader) Read([]byte) (int, error) { return 0, e.err }
