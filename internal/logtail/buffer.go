// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logtail

import (
	"sync"

	"github.com/jeranaias/secondme-tui/internal/storage"
)

// DefaultWindow is how many entries a Buffer keeps.
const DefaultWindow = 100

// Buffer keeps the most recent log entries.
type Buffer struct {
	mu      sync.Mutex
	window  int
	entries []storage.LogEntry
}

// NewBuffer creates a buffer keeping window entries. A non-positive window
// means DefaultWindow.
func NewBuffer(window int) *Buffer {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Buffer{window: window}
}

// Add appends e, dropping the oldest entries beyond the window.
func (b *Buffer) Add(e storage.LogEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, e)
	if over := len(b.entries) - b.window; over > 0 {
		b.entries = append(b.entries[:0:0], b.entries[over:]...)
	}
}

// Load replaces the contents with the tail of entries.
func (b *Buffer) Load(entries []storage.LogEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if over := len(entries) - b.window; over > 0 {
		entries = entries[over:]
	}
	b.entries = append([]storage.LogEntry(nil), entries...)
}

// Snapshot returns a copy of the entries, oldest first.
func (b *Buffer) Snapshot() []storage.LogEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]storage.LogEntry, len(b.entries))
	copy(out, b.entries)
	return out
}

// Len returns the number of entries.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Clear drops every entry.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = nil
}
