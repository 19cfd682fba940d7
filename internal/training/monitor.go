// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package training tracks a persona's training run and model service.
//
// Monitor is the shared state container (status, progress, sticky error
// flag). Poller refreshes it on a fixed cadence as an explicit state
// machine. Controller starts, retrains and stops runs; ServiceWatcher
// starts and stops the inference service.
package training

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/jeranaias/secondme-tui/internal/api"
	"github.com/jeranaias/secondme-tui/internal/logging"
	"github.com/jeranaias/secondme-tui/internal/metrics"
)

// DefaultBaseModel is used when no training config was saved.
const DefaultBaseModel = "Qwen2.5-0.5B-Instruct"

// ProgressSource fetches training progress. *api.Client implements it.
type ProgressSource interface {
	TrainProgress(ctx context.Context, baseModel string) (api.TrainProgress, error)
}

// Snapshot is a copy of the monitor state.
type Snapshot struct {
	Status          ModelStatus
	Error           bool
	Progress        Progress
	ServiceStarting bool
	ServiceStopping bool
}

// =============================================================================
// MONITOR
// =============================================================================

// Monitor holds training state and notifies subscribers on every change.
// Subscribers run synchronously and must not call back into the Monitor.
type Monitor struct {
	src       ProgressSource
	baseModel func() string
	log       *zap.SugaredLogger

	mu        sync.Mutex
	snap      Snapshot
	listeners map[int]func(Snapshot)
	nextID    int
	teardowns []func()
	unmount   sync.Once
}

// NewMonitor creates a monitor that reads progress for the model returned
// by baseModel. A nil baseModel means DefaultBaseModel.
func NewMonitor(src ProgressSource, baseModel func() string) *Monitor {
	if baseModel == nil {
		baseModel = func() string { return DefaultBaseModel }
	}
	return &Monitor{
		src:       src,
		baseModel: baseModel,
		log:       logging.NewLogger("training"),
		snap:      Snapshot{Status: StatusSeedIdentity, Progress: DefaultProgress()},
		listeners: make(map[int]func(Snapshot)),
	}
}

// Snapshot returns a copy of the current state.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

// Status returns the current model status.
func (m *Monitor) Status() ModelStatus {
	return m.Snapshot().Status
}

// Subscribe registers fn for every change.
func (m *Monitor) Subscribe(fn func(Snapshot)) (cancel func()) {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.listeners[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

func (m *Monitor) update(fn func(*Snapshot)) {
	m.mu.Lock()
	fn(&m.snap)
	snap := m.snap
	fns := make([]func(Snapshot), 0, len(m.listeners))
	for _, l := range m.listeners {
		fns = append(fns, l)
	}
	m.mu.Unlock()
	for _, l := range fns {
		l(snap)
	}
}

// SetStatus overrides the model status.
func (m *Monitor) SetStatus(s ModelStatus) {
	m.update(func(snap *Snapshot) { snap.Status = s })
}

// AdvanceStatus raises the status to s when it is still at an earlier
// setup stage (seed identity or memory upload).
func (m *Monitor) AdvanceStatus(s ModelStatus) {
	m.update(func(snap *Snapshot) {
		if snap.Status == StatusSeedIdentity || (snap.Status == StatusMemoryUpload && s != StatusSeedIdentity) {
			snap.Status = s
		}
	})
}

// SetError sets the sticky error flag.
func (m *Monitor) SetError() {
	m.update(func(snap *Snapshot) { snap.Error = true })
}

func (m *Monitor) setService(starting, stopping bool) {
	m.update(func(snap *Snapshot) {
		snap.ServiceStarting = starting
		snap.ServiceStopping = stopping
	})
}

// Reset prepares for a new run: progress goes back to the stage-one
// defaults and the error flag is cleared. The status is left alone.
func (m *Monitor) Reset() {
	m.update(func(snap *Snapshot) {
		snap.Progress = ResetProgress()
		snap.Error = false
	})
	metrics.TrainingOverall.Set(0)
}

// BaseModel returns the model progress is read for.
func (m *Monitor) BaseModel() string {
	if name := m.baseModel(); name != "" {
		return name
	}
	return DefaultBaseModel
}

// CheckTrainStatus fetches progress once and folds it into the state.
//
// A business error is returned without touching state. Any other error
// sets the error flag. A failed stage-set status sets the error flag; the
// status is derived from overall progress and never leaves running.
func (m *Monitor) CheckTrainStatus(ctx context.Context) (Progress, error) {
	res, err := m.src.TrainProgress(ctx, m.BaseModel())
	if err != nil {
		if errors.Is(err, api.ErrBusiness) {
			m.log.Infow("progress not available", "error", err)
			return Progress{}, err
		}
		m.log.Warnw("checking training status failed", "error", err)
		m.SetError()
		return Progress{}, err
	}

	p := FromResponse(res)
	m.update(func(snap *Snapshot) {
		snap.Progress = p
		if p.Status == StatusFailed {
			snap.Error = true
		}
		snap.Status = DeriveStatus(snap.Status, p.Overall)
	})
	metrics.TrainingOverall.Set(p.Overall)
	return p, nil
}

// AddTeardown registers fn to run on Unmount.
func (m *Monitor) AddTeardown(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teardowns = append(m.teardowns, fn)
}

// Unmount runs every registered teardown once and drops subscribers.
func (m *Monitor) Unmount() {
	m.unmount.Do(func() {
		m.mu.Lock()
		fns := m.teardowns
		m.teardowns = nil
		m.listeners = make(map[int]func(Snapshot))
		m.mu.Unlock()
		for _, fn := range fns {
			fn()
		}
	})
}
