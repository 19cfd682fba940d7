// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logtail

import (
	"context"
	"sync"

	"github.com/jeranaias/secondme-tui/internal/storage"
)

// Follower keeps one buffer across training runs and owns at most one open
// Tailer. It satisfies training.LogSink.
type Follower struct {
	src   Source
	blobs *storage.Blobs
	buf   *Buffer

	mu      sync.Mutex
	tailer  *Tailer
	notify  Notifier
	onEntry func(storage.LogEntry)
}

// NewFollower creates a follower. When blobs is set the buffer starts with
// the persisted snapshot.
func NewFollower(src Source, blobs *storage.Blobs, window int) *Follower {
	f := &Follower{src: src, blobs: blobs, buf: NewBuffer(window)}
	if blobs != nil {
		f.buf.Load(blobs.TrainingLogs())
	}
	return f
}

// OnError sets the notifier for stream failures.
func (f *Follower) OnError(fn Notifier) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notify = fn
}

// OnEntry sets a callback for every new entry.
func (f *Follower) OnEntry(fn func(storage.LogEntry)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onEntry = fn
}

// Entries returns the buffered entries.
func (f *Follower) Entries() []storage.LogEntry {
	return f.buf.Snapshot()
}

// Clear drops buffered and persisted entries.
func (f *Follower) Clear() error {
	f.buf.Clear()
	if f.blobs != nil {
		return f.blobs.ClearTrainingLogs()
	}
	return nil
}

// Follow opens a new tailer, closing the previous one.
func (f *Follower) Follow(ctx context.Context) error {
	f.Close()

	f.mu.Lock()
	opts := Options{Buffer: f.buf, Blobs: f.blobs, Notify: f.notify, OnEntry: f.onEntry}
	f.mu.Unlock()

	t, err := Open(ctx, f.src, opts)
	if err != nil {
		if opts.Notify != nil {
			opts.Notify(err)
		}
		return err
	}
	f.mu.Lock()
	f.tailer = t
	f.mu.Unlock()
	return nil
}

// Following reports whether a tailer is open and still reading.
func (f *Follower) Following() bool {
	f.mu.Lock()
	t := f.tailer
	f.mu.Unlock()
	if t == nil {
		return false
	}
	select {
	case <-t.Done():
		return false
	default:
		return true
	}
}

// Close closes the open tailer, if any.
func (f *Follower) Close() {
	f.mu.Lock()
	t := f.tailer
	f.tailer = nil
	f.mu.Unlock()
	if t != nil {
		t.Close()
	}
}
