// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// runtime.go - Wiring of stores, client and controllers from config.

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/jeranaias/secondme-tui/internal/api"
	"github.com/jeranaias/secondme-tui/internal/broadcast"
	"github.com/jeranaias/secondme-tui/internal/config"
	"github.com/jeranaias/secondme-tui/internal/kv"
	"github.com/jeranaias/secondme-tui/internal/logging"
	"github.com/jeranaias/secondme-tui/internal/logtail"
	"github.com/jeranaias/secondme-tui/internal/storage"
	"github.com/jeranaias/secondme-tui/internal/stream"
	"github.com/jeranaias/secondme-tui/internal/training"
)

// Runtime holds every long-lived object a command may need. Commands and
// the TUI share one Runtime per process.
type Runtime struct {
	Config *config.Config
	Client *api.Client

	Adapter    *storage.Adapter
	Sessions   *storage.SessionStore
	RoleChats  *storage.RoleChatStore
	Playground *storage.PlaygroundStore
	Blobs      *storage.Blobs

	Consumer *stream.Consumer
	Monitor  *training.Monitor
	Logs     *logtail.Follower
	Training *training.Controller
	Service  *training.ServiceWatcher

	Out io.Writer
	Err io.Writer

	dataDir string
	log     *zap.SugaredLogger
}

// RuntimeOption customises NewRuntime.
type RuntimeOption func(*Runtime, *[]api.Option)

// WithOutput redirects command output.
func WithOutput(out, errOut io.Writer) RuntimeOption {
	return func(r *Runtime, _ *[]api.Option) {
		r.Out = out
		r.Err = errOut
	}
}

// WithAPIOptions passes options to api.New.
func WithAPIOptions(opts ...api.Option) RuntimeOption {
	return func(_ *Runtime, o *[]api.Option) {
		*o = append(*o, opts...)
	}
}

// NewRuntime opens storage and builds the controllers described by cfg.
func NewRuntime(cfg *config.Config, opts ...RuntimeOption) (*Runtime, error) {
	dataDir, err := cfg.DataDir()
	if err != nil {
		return nil, err
	}

	r := &Runtime{
		Config:  cfg,
		Out:     os.Stdout,
		Err:     os.Stderr,
		dataDir: dataDir,
		log:     logging.NewLogger("cli"),
	}
	apiOpts := []api.Option{api.WithTimeout(cfg.Server.RequestTimeout)}
	for _, opt := range opts {
		opt(r, &apiOpts)
	}

	store, err := kv.Open(cfg.Storage.Backend, dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", cfg.Storage.Backend, err)
	}

	r.Client = api.New(cfg.Server.BaseURL, apiOpts...)
	r.Adapter = storage.New(store)
	r.Sessions = storage.NewSessionStore(r.Adapter)
	r.RoleChats = storage.NewRoleChatStore(r.Adapter)
	r.Playground = storage.NewPlaygroundStore(r.Adapter)
	r.Blobs = storage.NewBlobs(r.Adapter)

	r.Consumer = stream.New(r.Client, stream.Options{PumpInterval: cfg.Chat.PumpInterval})
	r.Monitor = training.NewMonitor(r.Client, r.BaseModel)
	r.Logs = logtail.NewFollower(r.Client, r.Blobs, cfg.Training.LogWindow)
	r.Training = training.NewController(r.Client, r.Monitor, r.Logs, r.Blobs, training.ControllerOptions{
		BaseModel:    cfg.Training.BaseModel,
		MinMemories:  cfg.Training.MinMemories,
		PollInterval: cfg.Training.PollInterval,
	})
	r.Service = training.NewServiceWatcher(r.Client, r.Monitor, cfg.Training.PollInterval)

	r.log.Debugw("runtime ready", "base_url", r.Client.BaseURL(), "storage", cfg.Storage.Backend, "dir", dataDir)
	return r, nil
}

// BaseModel is the model progress is queried for: the one the last run
// used, else the configured one.
func (r *Runtime) BaseModel() string {
	if tc, ok := r.Blobs.TrainingConfig(); ok && tc.BaseModel != "" {
		return tc.BaseModel
	}
	return r.Config.Training.BaseModel
}

// Settings returns the saved playground settings, defaulting from config
// and the cached identity.
func (r *Runtime) Settings() storage.PlaygroundSettings {
	name := ""
	if id, ok := r.Blobs.Identity(); ok {
		name = id.Name
	}
	def := storage.DefaultSettings(name, r.Config.Chat.Temperature)
	def.EnableL0Retrieval = r.Config.Chat.EnableL0Retrieval
	def.EnableL1Retrieval = r.Config.Chat.EnableL1Retrieval
	if r.Config.Chat.SystemPrompt != "" {
		def.SystemPrompt = r.Config.Chat.SystemPrompt
	}
	return r.Blobs.Settings(def)
}

// RefreshIdentity caches the backend's identity for prompt defaults. A
// failure keeps the cached one.
func (r *Runtime) RefreshIdentity(ctx context.Context) {
	id, err := r.Client.CurrentIdentity(ctx)
	if err != nil {
		r.log.Debugw("identity unavailable", "error", err)
		return
	}
	if err := r.Blobs.SaveIdentity(id); err != nil {
		r.log.Warnw("failed to cache identity", "error", err)
	}
}

// OpenBroadcast opens the configured space-update channel.
func (r *Runtime) OpenBroadcast(ctx context.Context) (broadcast.Channel, error) {
	return broadcast.Open(ctx, broadcast.Options{
		Backend:   r.Config.Broadcast.Backend,
		Channel:   r.Config.Broadcast.Channel,
		Dir:       filepath.Join(r.dataDir, "broadcast"),
		RedisAddr: r.Config.Broadcast.RedisAddr,
	})
}

// Close stops background work and closes storage.
func (r *Runtime) Close() {
	r.Training.Close()
	r.Consumer.Close()
	r.Monitor.Unmount()
	r.Logs.Close()
	if err := r.Adapter.Close(); err != nil {
		r.log.Warnw("failed to close storage", "error", err)
	}
}
