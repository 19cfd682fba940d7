// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package training

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/secondme-tui/internal/api"
	"github.com/jeranaias/secondme-tui/internal/logging"
	"github.com/jeranaias/secondme-tui/internal/metrics"
)

// ServiceBackend is the part of *api.Client the service watcher needs.
type ServiceBackend interface {
	StartService(ctx context.Context, modelName string) error
	StopService(ctx context.Context) error
	ServiceStatus(ctx context.Context) (api.ServiceStatus, error)
}

// ServiceWatcher starts and stops the inference service and waits for the
// backend to confirm. It polls only while an action is pending.
type ServiceWatcher struct {
	backend  ServiceBackend
	monitor  *Monitor
	interval time.Duration
	log      *zap.SugaredLogger
}

// NewServiceWatcher creates a watcher. A non-positive interval means
// DefaultPollInterval.
func NewServiceWatcher(b ServiceBackend, m *Monitor, interval time.Duration) *ServiceWatcher {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &ServiceWatcher{
		backend:  b,
		monitor:  m,
		interval: interval,
		log:      logging.NewLogger("training"),
	}
}

// StartService starts the service and blocks until it reports running or
// ctx ends. The status becomes running on success.
func (w *ServiceWatcher) StartService(ctx context.Context) error {
	w.monitor.setService(true, false)
	defer w.monitor.setService(false, false)

	if err := w.backend.StartService(ctx, w.monitor.BaseModel()); err != nil {
		return err
	}
	if err := w.waitFor(ctx, true); err != nil {
		return err
	}
	w.monitor.SetStatus(StatusRunning)
	w.log.Infow("model service running")
	return nil
}

// StopService stops the service and blocks until it reports stopped or ctx
// ends. The status becomes trained on success.
func (w *ServiceWatcher) StopService(ctx context.Context) error {
	w.monitor.setService(false, true)
	defer w.monitor.setService(false, false)

	if err := w.backend.StopService(ctx); err != nil {
		return err
	}
	if err := w.waitFor(ctx, false); err != nil {
		return err
	}
	w.monitor.SetStatus(StatusTrained)
	w.log.Infow("model service stopped")
	return nil
}

// ProbeServiceStatus reads the service state once. A running service moves
// the status to running.
func (w *ServiceWatcher) ProbeServiceStatus(ctx context.Context) (api.ServiceStatus, error) {
	st, err := w.backend.ServiceStatus(ctx)
	if err != nil {
		metrics.PollTicks.WithLabelValues("service", "error").Inc()
		return st, err
	}
	metrics.PollTicks.WithLabelValues("service", "ok").Inc()
	if st.IsRunning {
		w.monitor.SetStatus(StatusRunning)
	}
	return st, nil
}

func (w *ServiceWatcher) waitFor(ctx context.Context, running bool) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		st, err := w.backend.ServiceStatus(ctx)
		switch {
		case err != nil:
			metrics.PollTicks.WithLabelValues("service", "error").Inc()
			w.log.Debugw("service status check failed", "error", err)
		default:
			metrics.PollTicks.WithLabelValues("service", "ok").Inc()
			if st.IsRunning == running {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
