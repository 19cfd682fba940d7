// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/jeranaias/secondme-tui/internal/kv"
	"github.com/jeranaias/secondme-tui/internal/logging"
	"github.com/jeranaias/secondme-tui/internal/metrics"
)

// Storage keys. These names are shared with existing data directories and
// must not change.
const (
	KeySettings                 = "playgroundSettings"
	KeySessions                 = "chatWithUpload"
	KeyRoleChats                = "roleplayChat"
	KeyPlayground               = "playgroundChat"
	KeyTrainingConfig           = "trainingConfig"
	KeyTrainingLogs             = "trainingLogs"
	KeyUpload                   = "upload"
	KeyHasShownTrainingComplete = "hasShownTrainingComplete"
	KeyIsRetraining             = "isRetraining"
)

// ErrNotFound is returned when a record id does not exist.
var ErrNotFound = errors.New("record not found")

// Adapter is the JSON codec over a kv.Store. It is the sole owner of the
// underlying store; record stores share one Adapter and its lock.
type Adapter struct {
	mu    sync.Mutex
	store kv.Store
	log   *zap.SugaredLogger
}

// New wraps store.
func New(store kv.Store) *Adapter {
	return &Adapter{
		store: store,
		log:   logging.NewLogger("storage"),
	}
}

// Store returns the underlying key-value store.
func (a *Adapter) Store() kv.Store {
	return a.store
}

// Close closes the underlying store.
func (a *Adapter) Close() error {
	return a.store.Close()
}

// readJSON decodes key into v. It reports false when the key is missing,
// unreadable or corrupt; v is left untouched in that case.
func (a *Adapter) readJSON(key string, v any) bool {
	raw, ok, err := a.store.Get(key)
	if err != nil {
		metrics.StorageErrors.WithLabelValues("read").Inc()
		a.log.Warnw("failed to read key, using default", "key", key, "error", err)
		return false
	}
	if !ok || raw == "" {
		return false
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		metrics.StorageErrors.WithLabelValues("decode").Inc()
		a.log.Warnw("corrupt stored value, using default", "key", key, "error", err)
		return false
	}
	return true
}

func (a *Adapter) writeJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := a.store.Set(key, string(data)); err != nil {
		metrics.StorageErrors.WithLabelValues("write").Inc()
		a.log.Errorw("failed to save key", "key", key, "error", err)
		return err
	}
	return nil
}

func (a *Adapter) remove(key string) error {
	if err := a.store.Remove(key); err != nil {
		metrics.StorageErrors.WithLabelValues("write").Inc()
		return err
	}
	return nil
}

// update runs a read-modify-write cycle under the adapter lock.
func (a *Adapter) update(fn func() error) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return fn()
}
