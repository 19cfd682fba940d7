// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging owns the process-wide zap logger. Components ask for a
// named child with NewLogger and never build their own.
//
// Until Init is called every logger is a no-op, which keeps package tests
// quiet without extra setup.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options selects the sink, format and level of the root logger.
type Options struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string
	// File is the log file path. Empty means stderr.
	File string
	// JSON switches from the console encoder to the JSON encoder.
	JSON bool
}

var (
	mu     sync.RWMutex
	logger = zap.NewNop()
	root   = logger.Sugar()
	atom   = zap.NewAtomicLevel()
	closer io.Closer
)

// Init builds the root logger. Calling it again replaces the previous one.
func Init(opts Options) error {
	level, err := parseLevel(opts.Level)
	if err != nil {
		return err
	}

	var (
		sink zapcore.WriteSyncer
		c    io.Closer
	)
	if opts.File == "" {
		sink = zapcore.Lock(os.Stderr)
	} else {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0700); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		sink = zapcore.Lock(f)
		c = f
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.RFC3339TimeEncoder

	var encoder zapcore.Encoder
	if opts.JSON {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	} else {
		encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	}

	mu.Lock()
	defer mu.Unlock()
	if closer != nil {
		_ = logger.Sync()
		closer.Close()
	}
	atom.SetLevel(level)
	logger = zap.New(zapcore.NewCore(encoder, sink, atom))
	root = logger.Sugar()
	closer = c
	return nil
}

// NewLogger returns a child logger tagged with the component name.
func NewLogger(name string) *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return root.Named(name)
}

// SetDebug toggles debug level on the root logger.
func SetDebug(enable bool) {
	if enable {
		atom.SetLevel(zap.DebugLevel)
		return
	}
	atom.SetLevel(zap.InfoLevel)
}

// Level returns the current root level.
func Level() zapcore.Level {
	return atom.Level()
}

// Sync flushes buffered entries and closes the log file, if any.
func Sync() {
	mu.Lock()
	defer mu.Unlock()
	_ = logger.Sync()
	if closer != nil {
		closer.Close()
		closer = nil
	}
}

func parseLevel(s string) (zapcore.Level, error) {
	if strings.TrimSpace(s) == "" {
		return zap.InfoLevel, nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return zap.InfoLevel, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return l, nil
}
