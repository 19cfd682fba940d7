// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api is the HTTP client for the Second Me backend.
//
// JSON endpoints answer with the envelope {code, message, data}. A non-zero
// code is returned as *BusinessError carrying the server message verbatim;
// a non-2xx status is returned as *StatusError. Streaming endpoints are
// opened with OpenStream and read by the stream and logtail packages.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/secondme-tui/internal/logging"
	"github.com/jeranaias/secondme-tui/internal/metrics"
)

const (
	// DefaultBaseURL is the local backend started by the Second Me stack.
	DefaultBaseURL = "http://127.0.0.1:8002"

	// DefaultTimeout bounds plain JSON calls. Training start can take a
	// while on the server, so this is generous.
	DefaultTimeout = 10 * time.Minute

	// MaxResponseSize is the maximum JSON response body read.
	MaxResponseSize = 10 * 1024 * 1024
)

var (
	sharedHTTPClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
		Timeout: DefaultTimeout,
	}

	// sharedStreamingClient has no timeout; streams are bounded by context.
	sharedStreamingClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
)

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to one backend.
type Client struct {
	baseURL string
	http    *http.Client
	stream  *http.Client
	log     *zap.SugaredLogger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the client used for JSON calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithStreamClient replaces the client used for streams.
func WithStreamClient(hc *http.Client) Option {
	return func(c *Client) { c.stream = hc }
}

// WithTimeout sets the timeout for JSON calls.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		hc := *c.http
		hc.Timeout = d
		c.http = &hc
	}
}

// New creates a client for baseURL. An empty baseURL means DefaultBaseURL.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    sharedHTTPClient,
		stream:  sharedStreamingClient,
		log:     logging.NewLogger("api"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// envelope is the common response wrapper.
type envelope[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	return req, nil
}

// call performs one JSON request and decodes the envelope's data into T.
func call[T any](ctx context.Context, c *Client, endpoint, method, path string, body any) (result T, err error) {
	start := time.Now()
	defer func() { metrics.ObserveAPI(endpoint, start, err) }()

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return result, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debugw("request failed", "endpoint", endpoint, "error", err)
		return result, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return result, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return result, newStatusError(resp.StatusCode, data)
	}

	var env envelope[T]
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &env); err != nil {
			return result, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
	}
	if env.Code != 0 {
		c.log.Infow("business error", "endpoint", endpoint, "code", env.Code, "message", env.Message)
		return result, &BusinessError{Code: env.Code, Message: env.Message}
	}
	return env.Data, nil
}

// OpenStream issues a request that answers with text/event-stream. The
// caller owns the returned body. A non-2xx answer is returned as
// *StatusError with the body already closed.
func (c *Client) OpenStream(ctx context.Context, method, path string, body any) (*http.Response, error) {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Connection", "keep-alive")

	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, newStatusError(resp.StatusCode, data)
	}
	return resp, nil
}
