// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream consumes the chat SSE endpoint and exposes the streamed
// answer as an observable State.
//
// A reader goroutine copies raw body chunks into a channel. A pump drains
// that channel at a fixed cadence through sse.LineBuffer and publishes the
// accumulated content. Every publish is tagged with a generation; Stop and
// Send bump the generation, so nothing from an older stream is published
// after they return.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jeranaias/secondme-tui/internal/api"
	"github.com/jeranaias/secondme-tui/internal/logging"
	"github.com/jeranaias/secondme-tui/internal/metrics"
	"github.com/jeranaias/secondme-tui/internal/model"
	"github.com/jeranaias/secondme-tui/internal/sse"
)

const (
	// ChatPath is the streaming chat endpoint.
	ChatPath = "/api/kernel2/chat"

	// DefaultPumpInterval is the drain cadence of the pump.
	DefaultPumpInterval = 10 * time.Millisecond

	readChunkSize = 4096
)

// ErrStreamFailed matches every terminal stream error in State.Err.
var ErrStreamFailed = errors.New("chat stream failed")

// Failure wraps a request or transport error. Its text is the underlying
// error's text, which is also what ends up in State.Content.
type Failure struct {
	Err error
}

func (f *Failure) Error() string { return f.Err.Error() }
func (f *Failure) Unwrap() error { return f.Err }

// Is makes errors.Is(err, ErrStreamFailed) match.
func (f *Failure) Is(target error) bool { return target == ErrStreamFailed }

// =============================================================================
// REQUEST AND STATE
// =============================================================================

// ChatRequest is the body posted to the chat endpoint.
type ChatRequest struct {
	Message           string       `json:"message"`
	SystemPrompt      string       `json:"system_prompt"`
	RoleID            string       `json:"role_id,omitempty"`
	EnableL0Retrieval bool         `json:"enable_l0_retrieval"`
	EnableL1Retrieval bool         `json:"enable_l1_retrieval"`
	Temperature       float64      `json:"temperature"`
	History           []model.Turn `json:"history"`
}

// State is the observable state of the consumer.
type State struct {
	Streaming bool
	Content   string
	Err       error
}

// Transport opens a streaming request. *api.Client implements it.
type Transport interface {
	OpenStream(ctx context.Context, method, path string, body any) (*http.Response, error)
}

// Options tune a Consumer.
type Options struct {
	// PumpInterval is the drain cadence. Zero means DefaultPumpInterval.
	PumpInterval time.Duration
	// Path overrides ChatPath.
	Path string
}

type listener struct {
	id int
	fn func(State)
}

// =============================================================================
// CONSUMER
// =============================================================================

// Consumer runs at most one chat stream at a time.
//
// Listeners are called synchronously while the consumer's publish lock is
// held. A listener must not call Send or Stop on the same consumer.
type Consumer struct {
	transport Transport
	opts      Options
	log       *zap.SugaredLogger

	// publishMu serializes generation checks with listener notification.
	publishMu sync.Mutex

	mu        sync.Mutex
	state     State
	gen       uint64
	cancel    context.CancelFunc
	listeners []listener
	nextID    int

	wg sync.WaitGroup
}

// New creates a consumer on top of t.
func New(t Transport, opts Options) *Consumer {
	if opts.PumpInterval <= 0 {
		opts.PumpInterval = DefaultPumpInterval
	}
	if opts.Path == "" {
		opts.Path = ChatPath
	}
	return &Consumer{
		transport: t,
		opts:      opts,
		log:       logging.NewLogger("stream"),
	}
}

// State returns a snapshot of the current state.
func (c *Consumer) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe registers fn for every state change. The returned function
// removes it.
func (c *Consumer) Subscribe(fn func(State)) (cancel func()) {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.listeners = append(c.listeners, listener{id: id, fn: fn})
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			for i, l := range c.listeners {
				if l.id == id {
					c.listeners = append(c.listeners[:i:i], c.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// Send starts streaming req and returns immediately. Any stream already in
// flight is cancelled first.
func (c *Consumer) Send(ctx context.Context, req ChatRequest) {
	if req.History == nil {
		req.History = []model.Turn{}
	}

	c.publishMu.Lock()
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.gen++
	gen := c.gen
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.state = State{Streaming: true}
	st, ls := c.state, c.snapshot()
	c.mu.Unlock()
	notify(ls, st)
	c.publishMu.Unlock()

	c.wg.Add(1)
	go c.run(runCtx, gen, req)
}

// Stop aborts the current stream. It is safe to call at any time and any
// number of times; once it returns no update from the aborted stream is
// published.
func (c *Consumer) Stop() {
	c.publishMu.Lock()
	defer c.publishMu.Unlock()

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.gen++
	changed := c.state.Streaming
	c.state.Streaming = false
	st, ls := c.state, c.snapshot()
	c.mu.Unlock()

	if changed {
		notify(ls, st)
	}
}

// Wait blocks until every stream goroutine has exited.
func (c *Consumer) Wait() {
	c.wg.Wait()
}

// Close stops the consumer and waits for its goroutines.
func (c *Consumer) Close() {
	c.Stop()
	c.Wait()
}

func (c *Consumer) snapshot() []listener {
	ls := make([]listener, len(c.listeners))
	copy(ls, c.listeners)
	sort.Slice(ls, func(i, j int) bool { return ls[i].id < ls[j].id })
	return ls
}

func notify(ls []listener, st State) {
	for _, l := range ls {
		l.fn(st)
	}
}

// publish applies fn to the state when gen is still current and notifies
// listeners. It reports false for a stale generation.
func (c *Consumer) publish(gen uint64, fn func(*State)) bool {
	c.publishMu.Lock()
	defer c.publishMu.Unlock()

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return false
	}
	fn(&c.state)
	if !c.state.Streaming && c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	st, ls := c.state, c.snapshot()
	c.mu.Unlock()

	notify(ls, st)
	return true
}

// =============================================================================
// STREAM LOOP
// =============================================================================

type readResult struct {
	chunk []byte
	err   error
}

func (c *Consumer) run(ctx context.Context, gen uint64, req ChatRequest) {
	defer c.wg.Done()
	outcome := "cancelled"
	defer func() {
		if r := recover(); r != nil {
			c.log.Errorw("chat stream panicked", "panic", r)
			outcome = "read_error"
			c.publish(gen, func(s *State) { s.Streaming = false })
		}
		if outcome == "cancelled" {
			// A caller-cancelled context still ends the stream. After Stop
			// or a newer Send the generation is stale and nothing is sent.
			c.publish(gen, func(s *State) { s.Streaming = false })
		}
		metrics.StreamSessions.WithLabelValues(outcome).Inc()
	}()

	start := time.Now()
	resp, err := c.transport.OpenStream(ctx, http.MethodPost, c.opts.Path, req)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		outcome = "transport_error"
		if errors.Is(err, api.ErrHTTPStatus) {
			outcome = "http_error"
		}
		c.log.Warnw("chat request failed", "error", err)
		fail := &Failure{Err: err}
		c.publish(gen, func(s *State) {
			s.Streaming = false
			s.Err = fail
			s.Content = fail.Error()
		})
		return
	}
	defer resp.Body.Close()

	reads := make(chan readResult, 64)
	go readBody(ctx, resp.Body, reads)

	limiter := rate.NewLimiter(rate.Every(c.opts.PumpInterval), 1)
	var (
		lines   sse.LineBuffer
		content string
		first   = true
	)

	// apply handles one complete line and reports whether the stream ended.
	apply := func(line string) (done bool, stale bool) {
		frame := sse.ParseChatLine(line)
		switch frame.Kind {
		case sse.FrameDone:
			return true, !c.publish(gen, func(s *State) { s.Streaming = false })
		case sse.FrameMalformed:
			metrics.StreamFrames.WithLabelValues("malformed").Inc()
			c.log.Debugw("skipping malformed chat line", "error", frame.Err)
		case sse.FrameDelta:
			if frame.Delta == "" {
				metrics.StreamFrames.WithLabelValues("empty").Inc()
				return false, false
			}
			metrics.StreamFrames.WithLabelValues("delta").Inc()
			if first {
				metrics.StreamFirstByte.Observe(time.Since(start).Seconds())
				first = false
			}
			content += frame.Delta
			text := content
			return false, !c.publish(gen, func(s *State) { s.Content = text })
		}
		return false, false
	}

	for {
		if err := limiter.Wait(ctx); err != nil {
			return
		}

		var batch []readResult
		select {
		case <-ctx.Done():
			return
		case r := <-reads:
			batch = append(batch, r)
		}
	drain:
		for {
			select {
			case r := <-reads:
				batch = append(batch, r)
			default:
				break drain
			}
		}

		for _, r := range batch {
			if r.err != nil {
				if ctx.Err() != nil {
					return
				}
				if tail, ok := lines.Flush(); ok {
					if done, stale := apply(tail); done || stale {
						if done {
							outcome = "done"
						}
						return
					}
				}
				outcome = "eof"
				if !errors.Is(r.err, io.EOF) {
					outcome = "read_error"
					c.log.Warnw("chat stream read failed", "error", r.err)
				}
				c.publish(gen, func(s *State) { s.Streaming = false })
				return
			}
			for _, line := range lines.Feed(r.chunk) {
				done, stale := apply(line)
				if done {
					outcome = "done"
					return
				}
				if stale {
					return
				}
			}
		}
	}
}

// readBody copies body into out until an error, which is always sent last.
func readBody(ctx context.Context, body io.Reader, out chan<- readResult) {
	buf := make([]byte, readChunkSize)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case out <- readResult{chunk: chunk}:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			select {
			case out <- readResult{err: err}:
			case <-ctx.Done():
			}
			return
		}
	}
}

// String renders a state for debug logs.
func (s State) String() string {
	return fmt.Sprintf("streaming=%t len=%d err=%v", s.Streaming, len(s.Content), s.Err)
}
