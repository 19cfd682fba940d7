// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logtail follows the training log stream.
//
// A Tailer reads one SSE connection into a Buffer. A Follower owns the
// buffer across runs and reopens tailers as training starts.
package logtail

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/secondme-tui/internal/api"
	"github.com/jeranaias/secondme-tui/internal/logging"
	"github.com/jeranaias/secondme-tui/internal/metrics"
	"github.com/jeranaias/secondme-tui/internal/sse"
	"github.com/jeranaias/secondme-tui/internal/storage"
)

// ErrStreamFailed is passed to the Notifier when the log stream breaks.
var ErrStreamFailed = errors.New("failed to get training logs")

// Source opens the log stream. *api.Client implements it.
type Source interface {
	OpenStream(ctx context.Context, method, path string, body any) (*http.Response, error)
}

// Notifier is told when the stream fails.
type Notifier func(err error)

// Options configure a Tailer.
type Options struct {
	// Buffer receives entries. Nil means a fresh buffer of DefaultWindow.
	Buffer *Buffer
	// Blobs, when set, receives the buffer snapshot on close.
	Blobs *storage.Blobs
	// Notify is called once if the stream fails.
	Notify Notifier
	// OnEntry is called for every entry after it is buffered.
	OnEntry func(storage.LogEntry)
	// Path overrides api.TrainLogsPath.
	Path string
}

// Tailer follows one log stream connection.
type Tailer struct {
	opts   Options
	log    *zap.SugaredLogger
	cancel context.CancelFunc
	body   io.Closer
	done   chan struct{}
	once   sync.Once
}

// Open connects to the log stream and starts reading in the background.
func Open(ctx context.Context, src Source, opts Options) (*Tailer, error) {
	if opts.Buffer == nil {
		opts.Buffer = NewBuffer(DefaultWindow)
	}
	if opts.Path == "" {
		opts.Path = api.TrainLogsPath
	}

	runCtx, cancel := context.WithCancel(ctx)
	resp, err := src.OpenStream(runCtx, http.MethodGet, opts.Path, nil)
	if err != nil {
		cancel()
		return nil, err
	}

	t := &Tailer{
		opts:   opts,
		log:    logging.NewLogger("logtail"),
		cancel: cancel,
		body:   resp.Body,
		done:   make(chan struct{}),
	}
	go t.read(runCtx, resp.Body)
	return t, nil
}

// Buffer returns the buffer entries go to.
func (t *Tailer) Buffer() *Buffer { return t.opts.Buffer }

// Done is closed when the reader goroutine exits.
func (t *Tailer) Done() <-chan struct{} { return t.done }

// Close stops reading and persists the buffer. It is safe to call any
// number of times.
func (t *Tailer) Close() {
	t.once.Do(func() {
		t.cancel()
		_ = t.body.Close()
		if t.opts.Blobs != nil {
			if err := t.opts.Blobs.SaveTrainingLogs(t.opts.Buffer.Snapshot()); err != nil {
				t.log.Warnw("persisting training logs failed", "error", err)
			}
		}
	})
}

func (t *Tailer) read(ctx context.Context, body io.Reader) {
	defer close(t.done)
	reader := sse.NewEventReader(body)
	for {
		ev, err := reader.ReadEvent()
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, io.EOF) {
				t.log.Warnw("training log stream failed", "error", err)
				if t.opts.Notify != nil {
					t.opts.Notify(errors.Join(ErrStreamFailed, err))
				}
			}
			t.Close()
			return
		}
		if !ev.IsMessage() {
			continue
		}
		entry := storage.LogEntry{
			Message:   messageOf(ev.Data),
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		}
		t.opts.Buffer.Add(entry)
		metrics.LogLines.Inc()
		if t.opts.OnEntry != nil {
			t.opts.OnEntry(entry)
		}
	}
}

// messageOf returns the message field of a JSON payload, or the raw data.
func messageOf(data string) string {
	var payload struct {
		Message *string `json:"message"`
	}
	trimmed := strings.TrimSpace(data)
	if strings.HasPrefix(trimmed, "{") && json.Unmarshal([]byte(trimmed), &payload) == nil && payload.Message != nil {
		return *payload.Message
	}
	return data
}
