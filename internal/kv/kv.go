// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package kv provides the flat string key-value stores that back local
// persistence. Values are whole JSON documents; callers always read and
// write a key wholesale.
package kv

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// =============================================================================
// STORE INTERFACE
// =============================================================================

// Store is a synchronous key-value store. Missing keys are not an error:
// Get reports ok=false.
type Store interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Remove(key string) error
	Keys() ([]string, error)
	Close() error
}

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

var (
	// ErrInvalidKey is returned for keys that cannot be stored safely.
	ErrInvalidKey = errors.New("invalid storage key")
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store closed")
)

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,128}$`)

// ValidateKey rejects keys that could escape the store directory.
func ValidateKey(key string) error {
	if !keyPattern.MatchString(key) || strings.Contains(key, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// Open returns the store for backend rooted at dir.
func Open(backend, dir string) (Store, error) {
	switch strings.ToLower(backend) {
	case "", BackendFile:
		return NewFileStore(dir)
	case BackendSQLite:
		return NewSQLiteStore(SQLitePath(dir))
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q (want file, sqlite or memory)", backend)
	}
}
