// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logtail

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/secondme-tui/internal/api"
	"github.com/jeranaias/secondme-tui/internal/kv"
	"github.com/jeranaias/secondme-tui/internal/storage"
)

func TestBuffer_Window(t *testing.T) {
	b := NewBuffer(3)
	for i := range 5 {
		b.Add(storage.LogEntry{Message: fmt.Sprint(i)})
	}
	snap := b.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "2", snap[0].Message)
	assert.Equal(t, "4", snap[2].Message)

	b.Load([]storage.LogEntry{{Message: "a"}, {Message: "b"}, {Message: "c"}, {Message: "d"}})
	assert.Equal(t, "b", b.Snapshot()[0].Message)

	b.Clear()
	assert.Zero(t, b.Len())
	assert.Equal(t, DefaultWindow, NewBuffer(0).window)
}

func TestMessageOf(t *testing.T) {
	assert.Equal(t, "step 1", messageOf(`{"message":"step 1"}`))
	assert.Equal(t, "plain line", messageOf("plain line"))
	assert.Equal(t, `{"other":1}`, messageOf(`{"other":1}`))
	assert.Equal(t, "{broken", messageOf("{broken"))
}

// logServer streams events and then holds the connection until the client
// goes away.
func logServer(t *testing.T, events ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, api.TrainLogsPath, r.URL.Path)
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, ev := range events {
			_, _ = fmt.Fprintf(w, "data: %s\n\n", ev)
			flusher.Flush()
		}
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newBlobs() *storage.Blobs {
	return storage.NewBlobs(storage.New(kv.NewMemoryStore()))
}

func TestTailer_ReadsAndPersists(t *testing.T) {
	srv := logServer(t, `{"message":"Downloading model"}`, "raw text line", `{"message":"Done"}`)
	blobs := newBlobs()

	var mu sync.Mutex
	var got []string
	tl, err := Open(context.Background(), api.New(srv.URL), Options{
		Blobs: blobs,
		OnEntry: func(e storage.LogEntry) {
			mu.Lock()
			got = append(got, e.Message)
			mu.Unlock()
		},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return tl.Buffer().Len() == 3 }, 5*time.Second, 5*time.Millisecond)
	tl.Close()
	tl.Close()
	<-tl.Done()

	mu.Lock()
	assert.Equal(t, []string{"Downloading model", "raw text line", "Done"}, got)
	mu.Unlock()

	persisted := blobs.TrainingLogs()
	require.Len(t, persisted, 3)
	assert.Equal(t, "Downloading model", persisted[0].Message)
	_, err = time.Parse(time.RFC3339Nano, persisted[0].Timestamp)
	assert.NoError(t, err)
}

func TestTailer_TransportErrorNotifies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hj, ok := w.(http.Hijacker)
		require.True(t, ok)
		conn, buf, err := hj.Hijack()
		require.NoError(t, err)
		_, _ = buf.WriteString("HTTP/1.1 200 OK\r\nContent-Type: text/event-stream\r\nTransfer-Encoding: chunked\r\n\r\n")
		payload := "data: hello\n\n"
		_, _ = fmt.Fprintf(buf, "%x\r\n%s\r\n", len(payload), payload)
		_ = buf.Flush()
		time.Sleep(20 * time.Millisecond)
		_ = conn.Close()
	}))
	defer srv.Close()

	blobs := newBlobs()
	notified := make(chan error, 1)
	tl, err := Open(context.Background(), api.New(srv.URL), Options{
		Blobs:  blobs,
		Notify: func(err error) { notified <- err },
	})
	require.NoError(t, err)

	select {
	case err := <-notified:
		assert.ErrorIs(t, err, ErrStreamFailed)
	case <-time.After(5 * time.Second):
		t.Fatal("notifier not called")
	}
	<-tl.Done()
	require.Len(t, blobs.TrainingLogs(), 1, "closing persists what was read")
}

func TestOpen_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := Open(context.Background(), api.New(srv.URL), Options{})
	assert.ErrorIs(t, err, api.ErrHTTPStatus)
}

func TestFollower(t *testing.T) {
	srv := logServer(t, `{"message":"run"}`)
	blobs := newBlobs()
	require.NoError(t, blobs.SaveTrainingLogs([]storage.LogEntry{{Message: "old"}}))

	f := NewFollower(api.New(srv.URL), blobs, 10)
	assert.Equal(t, "old", f.Entries()[0].Message)

	require.NoError(t, f.Clear())
	assert.Empty(t, f.Entries())
	assert.Empty(t, blobs.TrainingLogs())

	require.NoError(t, f.Follow(context.Background()))
	assert.Eventually(t, func() bool { return len(f.Entries()) == 1 }, 5*time.Second, 5*time.Millisecond)
	assert.True(t, f.Following())

	f.Close()
	f.Close()
	assert.False(t, f.Following())
	require.Len(t, blobs.TrainingLogs(), 1)
}
