// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package broadcast

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/jeranaias/secondme-tui/internal/logging"
	"github.com/jeranaias/secondme-tui/internal/metrics"
)

// =============================================================================
// FILE CHANNEL
// =============================================================================

// FileChannel appends one JSON line per message to <dir>/<channel>.jsonl.
// Subscribers watch the file with fsnotify and read what was appended.
type FileChannel struct {
	path string
	log  *zap.SugaredLogger

	mu       sync.Mutex
	watchers []*fsnotify.Watcher
	closed   bool
}

// NewFileChannel creates the channel file's directory if needed.
func NewFileChannel(dir, channel string) (*FileChannel, error) {
	if dir == "" {
		return nil, errors.New("broadcast directory is required")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create broadcast dir: %w", err)
	}
	return &FileChannel{
		path: filepath.Join(dir, channel+".jsonl"),
		log:  logging.NewLogger("broadcast"),
	}, nil
}

// Path returns the channel file.
func (c *FileChannel) Path() string { return c.path }

// Publish appends msg as one line.
func (c *FileChannel) Publish(_ context.Context, msg Message) error {
	line, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("broadcast channel closed")
	}
	f, err := os.OpenFile(c.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0600)
	if err != nil {
		return fmt.Errorf("open channel file: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("append to channel file: %w", err)
	}
	metrics.BroadcastMessages.WithLabelValues("published").Inc()
	return f.Close()
}

// Subscribe watches the channel file's directory and delivers lines
// appended after the call.
func (c *FileChannel) Subscribe(ctx context.Context, fn func(Message)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(c.path)); err != nil {
		w.Close()
		return fmt.Errorf("watch channel dir: %w", err)
	}

	var offset int64
	if st, err := os.Stat(c.path); err == nil {
		offset = st.Size()
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		w.Close()
		return errors.New("broadcast channel closed")
	}
	c.watchers = append(c.watchers, w)
	c.mu.Unlock()

	go c.watch(ctx, w, offset, fn)
	return nil
}

func (c *FileChannel) watch(ctx context.Context, w *fsnotify.Watcher, offset int64, fn func(Message)) {
	defer w.Close()
	var partial []byte
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(c.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			offset, partial = c.drain(offset, partial, fn)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			c.log.Warnw("broadcast watcher error", "error", err)
		}
	}
}

// drain reads everything after offset and delivers complete lines.
func (c *FileChannel) drain(offset int64, partial []byte, fn func(Message)) (int64, []byte) {
	f, err := os.Open(c.path)
	if err != nil {
		return offset, partial
	}
	defer f.Close()

	if st, err := f.Stat(); err == nil && st.Size() < offset {
		offset, partial = 0, nil
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return offset, partial
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return offset, partial
	}
	offset += int64(len(data))
	partial = append(partial, data...)

	for {
		i := bytes.IndexByte(partial, '\n')
		if i < 0 {
			break
		}
		line := bytes.TrimSpace(partial[:i])
		partial = partial[i+1:]
		if len(line) == 0 {
			continue
		}
		var msg Message
		if err := json.Unmarshal(line, &msg); err != nil {
			c.log.Warnw("bad broadcast line", "error", err)
			continue
		}
		metrics.BroadcastMessages.WithLabelValues("received").Inc()
		fn(msg)
	}
	return offset, append([]byte(nil), partial...)
}

// Close stops every subscription.
func (c *FileChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	var errs []error
	for _, w := range c.watchers {
		errs = append(errs, w.Close())
	}
	c.watchers = nil
	return errors.Join(errs...)
}
