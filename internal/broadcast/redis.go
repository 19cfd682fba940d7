// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/jeranaias/secondme-tui/internal/logging"
	"github.com/jeranaias/secondme-tui/internal/metrics"
)

// =============================================================================
// REDIS CHANNEL
// =============================================================================

// RedisChannel uses redis pub/sub.
type RedisChannel struct {
	rdb     *goredis.Client
	channel string
	log     *zap.SugaredLogger
}

// NewRedisChannel connects to addr and pings it.
func NewRedisChannel(ctx context.Context, addr, channel string) (*RedisChannel, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("missing redis address")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisChannel{
		rdb:     rdb,
		channel: channel,
		log:     logging.NewLogger("broadcast"),
	}, nil
}

// Publish sends msg on the channel.
func (c *RedisChannel) Publish(ctx context.Context, msg Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := c.rdb.Publish(ctx, c.channel, raw).Err(); err != nil {
		return err
	}
	metrics.BroadcastMessages.WithLabelValues("published").Inc()
	return nil
}

// Subscribe starts a subscription and forwards messages to fn.
func (c *RedisChannel) Subscribe(ctx context.Context, fn func(Message)) error {
	if fn == nil {
		return errors.New("subscriber callback required")
	}
	sub := c.rdb.Subscribe(ctx, c.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				var msg Message
				if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
					c.log.Warnw("bad broadcast payload", "error", err)
					continue
				}
				metrics.BroadcastMessages.WithLabelValues("received").Inc()
				fn(msg)
			}
		}
	}()
	return nil
}

// Close closes the redis client.
func (c *RedisChannel) Close() error {
	return c.rdb.Close()
}
