// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sse

import (
	"bytes"
)

// MaxLineSize bounds a buffered partial line. A line that grows past it is
// discarded up to the next newline.
const MaxLineSize = 1 << 20

// LineBuffer splits a byte stream into lines across arbitrary chunk
// boundaries. The zero value is ready to use.
type LineBuffer struct {
	partial  []byte
	overflow bool
}

// Feed appends p and returns every line completed by it, without the line
// terminator. A trailing partial line is held until a later Feed or Flush.
func (b *LineBuffer) Feed(p []byte) []string {
	var lines []string
	for len(p) > 0 {
		i := bytes.IndexByte(p, '\n')
		if i < 0 {
			b.hold(p)
			break
		}
		if b.overflow {
			b.overflow = false
		} else {
			b.partial = append(b.partial, p[:i]...)
			lines = append(lines, string(bytes.TrimSuffix(b.partial, []byte{'\r'})))
		}
		b.partial = b.partial[:0]
		p = p[i+1:]
	}
	return lines
}

// Flush returns the held partial line, if any, and resets the buffer.
func (b *LineBuffer) Flush() (string, bool) {
	defer func() {
		b.partial = b.partial[:0]
		b.overflow = false
	}()
	if b.overflow || len(b.partial) == 0 {
		return "", false
	}
	return string(bytes.TrimSuffix(b.partial, []byte{'\r'})), true
}

// Pending reports the number of buffered bytes.
func (b *LineBuffer) Pending() int {
	return len(b.partial)
}

func (b *LineBuffer) hold(p []byte) {
	if b.overflow {
		return
	}
	if len(b.partial)+len(p) > MaxLineSize {
		b.partial = b.partial[:0]
		b.overflow = true
		return
	}
	b.partial = append(b.partial, p...)
}
