// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package broadcast carries space status changes between processes on a
// named channel, either through an append-only file or redis pub/sub.
package broadcast

import (
	"context"
	"fmt"

	"github.com/jeranaias/secondme-tui/internal/api"
)

// DefaultChannel is the channel space updates are published on.
const DefaultChannel = "updateSpace"

// Backend names.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
)

// Message announces a space status change.
type Message struct {
	SpaceID string          `json:"spaceId"`
	Status  api.SpaceStatus `json:"status"`
}

// Channel publishes and delivers Messages.
type Channel interface {
	// Publish sends msg to every subscriber, including other processes.
	Publish(ctx context.Context, msg Message) error
	// Subscribe delivers messages published after it returns to fn until
	// ctx ends. fn runs on a single goroutine.
	Subscribe(ctx context.Context, fn func(Message)) error
	// Close releases the channel.
	Close() error
}

// Options select and configure a backend.
type Options struct {
	Backend   string
	Channel   string
	Dir       string
	RedisAddr string
}

// Open creates the channel described by opts.
func Open(ctx context.Context, opts Options) (Channel, error) {
	if opts.Channel == "" {
		opts.Channel = DefaultChannel
	}
	switch opts.Backend {
	case "", BackendFile:
		return NewFileChannel(opts.Dir, opts.Channel)
	case BackendRedis:
		return NewRedisChannel(ctx, opts.RedisAddr, opts.Channel)
	default:
		return nil, fmt.Errorf("unknown broadcast backend %q", opts.Backend)
	}
}
