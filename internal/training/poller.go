// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package training

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/secondme-tui/internal/api"
	"github.com/jeranaias/secondme-tui/internal/logging"
	"github.com/jeranaias/secondme-tui/internal/metrics"
)

// DefaultPollInterval is the progress polling cadence.
const DefaultPollInterval = 3 * time.Second

// PollState is the state of a Poller.
type PollState int

const (
	PollIdle PollState = iota
	PollPolling
	PollCompleted
	PollFailed
	PollStopped
)

func (s PollState) String() string {
	switch s {
	case PollIdle:
		return "idle"
	case PollPolling:
		return "polling"
	case PollCompleted:
		return "completed"
	case PollFailed:
		return "failed"
	case PollStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Terminal reports whether the poller has finished a run.
func (s PollState) Terminal() bool {
	return s == PollCompleted || s == PollFailed || s == PollStopped
}

// Checker is what a Poller calls on every tick. *Monitor implements it.
type Checker interface {
	CheckTrainStatus(ctx context.Context) (Progress, error)
}

// =============================================================================
// POLLER
// =============================================================================

// Poller calls a Checker every interval until the run completes, fails or
// is stopped. Transitions: Idle -> Polling -> {Completed, Failed, Stopped}.
// A terminal poller can be started again.
type Poller struct {
	check    Checker
	interval time.Duration
	log      *zap.SugaredLogger

	mu     sync.Mutex
	state  PollState
	run    uint64
	cancel context.CancelFunc
	done   chan struct{}
	onExit func(PollState)
	settle func(PollState)
}

// NewPoller creates an idle poller. A non-positive interval means
// DefaultPollInterval.
func NewPoller(c Checker, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	done := make(chan struct{})
	close(done)
	return &Poller{
		check:    c,
		interval: interval,
		log:      logging.NewLogger("training"),
		done:     done,
	}
}

// OnExit registers fn to run when a polling run reaches a terminal state
// on its own (completed or failed).
func (p *Poller) OnExit(fn func(PollState)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onExit = fn
}

// onSettle registers the owner's hook, run before the OnExit callback.
func (p *Poller) onSettle(fn func(PollState)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settle = fn
}

// State returns the current state.
func (p *Poller) State() PollState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Done is closed when the current run's goroutine exits.
func (p *Poller) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// Start begins polling. It is a no-op while already polling.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == PollPolling {
		return
	}
	p.run++
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.state = PollPolling
	p.done = make(chan struct{})
	go p.loop(runCtx, p.run, p.done)
}

// Stop ends polling. It is safe to call any number of times and does not
// wait for an in-flight check.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	if p.state == PollPolling {
		p.state = PollStopped
	}
}

// finish moves run to state unless the run was superseded or stopped.
func (p *Poller) finish(run uint64, state PollState) {
	p.mu.Lock()
	if run != p.run || p.state != PollPolling {
		p.mu.Unlock()
		return
	}
	p.state = state
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	settle, fn := p.settle, p.onExit
	p.mu.Unlock()
	if settle != nil {
		settle(state)
	}
	if fn != nil {
		fn(state)
	}
}

func (p *Poller) loop(ctx context.Context, run uint64, done chan struct{}) {
	defer close(done)
	defer func() {
		if r := recover(); r != nil {
			p.log.Errorw("training poller panicked", "panic", r)
			p.finish(run, PollFailed)
		}
	}()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if next, stop := p.tick(ctx); stop {
			p.finish(run, next)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// tick runs one check and returns the terminal state to move to, if any.
func (p *Poller) tick(ctx context.Context) (PollState, bool) {
	progress, err := p.check.CheckTrainStatus(ctx)
	if ctx.Err() != nil {
		return PollStopped, false
	}
	switch {
	case errors.Is(err, api.ErrBusiness):
		metrics.PollTicks.WithLabelValues("training", "business_error").Inc()
		return PollPolling, false
	case err != nil:
		metrics.PollTicks.WithLabelValues("training", "error").Inc()
		p.log.Errorw("training poll failed, stopping", "error", err)
		return PollFailed, true
	}
	metrics.PollTicks.WithLabelValues("training", "ok").Inc()
	switch progress.Status {
	case StatusCompleted:
		return PollCompleted, true
	case StatusFailed:
		return PollFailed, true
	}
	return PollPolling, false
}
