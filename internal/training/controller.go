// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package training

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/secondme-tui/internal/api"
	"github.com/jeranaias/secondme-tui/internal/logging"
	"github.com/jeranaias/secondme-tui/internal/storage"
)

// DefaultMinMemories is the number of memories required to train.
const DefaultMinMemories = 3

// ErrInsufficientMemories is returned when too few memories are uploaded.
var ErrInsufficientMemories = errors.New("not enough memories to train")

// Backend is the part of *api.Client the controller needs.
type Backend interface {
	ProgressSource
	StartTraining(ctx context.Context, baseModel string) (api.StartTrainResult, error)
	Retrain(ctx context.Context, baseModel string) (api.StartTrainResult, error)
	StopTraining(ctx context.Context) error
	TrainedModelName(ctx context.Context) (string, error)
	MemoryCount(ctx context.Context) (int, error)
}

// LogSink owns the training log tail.
type LogSink interface {
	// Clear drops buffered and persisted log lines.
	Clear() error
	// Follow opens the tail, replacing any open one.
	Follow(ctx context.Context) error
	// Close stops following. Safe to call repeatedly.
	Close()
}

// ControllerOptions tune a Controller.
type ControllerOptions struct {
	BaseModel    string
	MinMemories  int
	PollInterval time.Duration
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller starts, retrains and stops training runs.
type Controller struct {
	backend Backend
	monitor *Monitor
	poller  *Poller
	logs    LogSink
	blobs   *storage.Blobs
	opts    ControllerOptions
	log     *zap.SugaredLogger
}

// NewController wires a backend to m. logs and blobs may be nil.
func NewController(b Backend, m *Monitor, logs LogSink, blobs *storage.Blobs, opts ControllerOptions) *Controller {
	if opts.BaseModel == "" {
		opts.BaseModel = DefaultBaseModel
	}
	if opts.MinMemories <= 0 {
		opts.MinMemories = DefaultMinMemories
	}
	c := &Controller{
		backend: b,
		monitor: m,
		poller:  NewPoller(m, opts.PollInterval),
		logs:    logs,
		blobs:   blobs,
		opts:    opts,
		log:     logging.NewLogger("training"),
	}
	c.poller.onSettle(c.settled)
	m.AddTeardown(c.Close)
	return c
}

// Monitor returns the state container.
func (c *Controller) Monitor() *Monitor { return c.monitor }

// Poller returns the progress poller.
func (c *Controller) Poller() *Poller { return c.poller }

// BaseModel returns the configured base model.
func (c *Controller) BaseModel() string { return c.opts.BaseModel }

// StartTraining starts a fresh run.
func (c *Controller) StartTraining(ctx context.Context) error {
	return c.begin(ctx, false)
}

// Retrain reruns training for the existing model.
func (c *Controller) Retrain(ctx context.Context) error {
	return c.begin(ctx, true)
}

// Train retrains when the backend already holds a trained model for the
// configured base model, otherwise it starts a new run. It reports whether
// a retrain was issued.
func (c *Controller) Train(ctx context.Context) (retrained bool, err error) {
	name, err := c.backend.TrainedModelName(ctx)
	if err != nil {
		c.log.Debugw("trained model name unavailable", "error", err)
		name = ""
	}
	status := c.monitor.Status()
	if name != "" && name == c.opts.BaseModel && (status == StatusTrained || status == StatusRunning) {
		return true, c.Retrain(ctx)
	}
	return false, c.StartTraining(ctx)
}

func (c *Controller) begin(ctx context.Context, retrain bool) error {
	count, err := c.backend.MemoryCount(ctx)
	if err != nil {
		return fmt.Errorf("count memories: %w", err)
	}
	if count < c.opts.MinMemories {
		return fmt.Errorf("%w: have %d, need at least %d", ErrInsufficientMemories, count, c.opts.MinMemories)
	}

	if c.logs != nil {
		c.logs.Close()
		if err := c.logs.Clear(); err != nil {
			c.log.Warnw("clearing training logs failed", "error", err)
		}
	}
	c.monitor.Reset()

	action := c.backend.StartTraining
	if retrain {
		action = c.backend.Retrain
	}
	if _, err := action(ctx, c.opts.BaseModel); err != nil {
		c.log.Warnw("training request rejected", "retrain", retrain, "error", err)
		return err
	}

	c.monitor.SetStatus(StatusTraining)
	if c.blobs != nil {
		if err := c.blobs.SaveTrainingConfig(storage.TrainingConfig{BaseModel: c.opts.BaseModel}); err != nil {
			c.log.Warnw("saving training config failed", "error", err)
		}
		c.setFlag(storage.KeyIsRetraining, retrain)
		c.setFlag(storage.KeyHasShownTrainingComplete, false)
	}

	c.poller.Start(ctx)
	if c.logs != nil {
		if err := c.logs.Follow(ctx); err != nil {
			c.log.Warnw("opening training log stream failed", "error", err)
		}
	}
	c.log.Infow("training started", "model", c.opts.BaseModel, "retrain", retrain)
	return nil
}

// StopTraining asks the backend to stop and stops polling.
func (c *Controller) StopTraining(ctx context.Context) error {
	if err := c.backend.StopTraining(ctx); err != nil {
		return err
	}
	c.poller.Stop()
	if c.logs != nil {
		c.logs.Close()
	}
	return nil
}

// Resume starts polling when the last observed progress is mid-run, or
// when a retrain was left unfinished by an earlier process. Use it after
// CheckTrainStatus on startup to reattach to a running training.
func (c *Controller) Resume(ctx context.Context) bool {
	snap := c.monitor.Snapshot()
	retraining := c.blobs != nil && c.blobs.Flag(storage.KeyIsRetraining)
	switch {
	case snap.Status == StatusRunning:
		return false
	case snap.Progress.Terminal():
		if retraining {
			c.setFlag(storage.KeyIsRetraining, false)
		}
		return false
	case retraining:
		c.monitor.SetStatus(StatusTraining)
	case snap.Progress.Status != StatusInProgress && snap.Status != StatusTraining:
		return false
	}

	c.poller.Start(ctx)
	if c.logs != nil {
		if err := c.logs.Follow(ctx); err != nil {
			c.log.Warnw("opening training log stream failed", "error", err)
		}
	}
	c.log.Infow("resumed training run", "retrain", retraining)
	return true
}

// settled runs when the poller stops on its own.
func (c *Controller) settled(state PollState) {
	if state == PollCompleted || state == PollFailed {
		c.setFlag(storage.KeyIsRetraining, false)
	}
}

func (c *Controller) setFlag(key string, v bool) {
	if c.blobs == nil {
		return
	}
	if err := c.blobs.SetFlag(key, v); err != nil {
		c.log.Warnw("saving flag failed", "key", key, "error", err)
	}
}

// Close stops polling and the log tail.
func (c *Controller) Close() {
	c.poller.Stop()
	if c.logs != nil {
		c.logs.Close()
	}
}
