// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package metrics declares the prometheus collectors for the client and an
// optional /metrics endpoint.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jeranaias/secondme-tui/internal/logging"
)

var (
	// StreamSessions counts finished chat streams by outcome
	// (done, eof, cancelled, http_error, transport_error, read_error).
	StreamSessions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secondme_chat_streams_total",
			Help: "Chat streams by terminal outcome.",
		},
		[]string{"outcome"},
	)
	// StreamFrames counts SSE data lines by parse result (delta, empty, malformed).
	StreamFrames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secondme_chat_stream_frames_total",
			Help: "Chat stream data lines by parse result.",
		},
		[]string{"result"},
	)
	// StreamFirstByte observes time from request to first delta.
	StreamFirstByte = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "secondme_chat_first_delta_seconds",
			Help:    "Latency from sending a chat request to its first content delta.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)
	// APIRequestLatency observes JSON API calls by endpoint and result.
	APIRequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "secondme_api_request_latency_seconds",
			Help:    "The latency of backend API calls.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 15),
		},
		[]string{"endpoint", "result"},
	)
	// PollTicks counts training and service poll ticks by result.
	PollTicks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secondme_poll_ticks_total",
			Help: "Poll ticks by poller and result.",
		},
		[]string{"poller", "result"},
	)
	// TrainingOverall is the last observed overall training progress.
	TrainingOverall = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "secondme_training_overall_progress",
			Help: "Last observed overall training progress percent.",
		},
	)
	// LogLines counts log tail entries received.
	LogLines = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "secondme_training_log_lines_total",
			Help: "Training log lines received by the log tailer.",
		},
	)
	// StorageErrors counts persistence failures by operation.
	StorageErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secondme_storage_errors_total",
			Help: "Local storage errors by operation (read, write, decode).",
		},
		[]string{"operation"},
	)
	// BroadcastMessages counts space status messages by direction.
	BroadcastMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secondme_broadcast_messages_total",
			Help: "Broadcast channel messages by direction (published, received).",
		},
		[]string{"direction"},
	)
)

func init() {
	prometheus.MustRegister(
		collectors.NewBuildInfoCollector(),
		StreamSessions,
		StreamFrames,
		StreamFirstByte,
		APIRequestLatency,
		PollTicks,
		TrainingOverall,
		LogLines,
		StorageErrors,
		BroadcastMessages,
	)
}

// ObserveAPI records one API call.
func ObserveAPI(endpoint string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	APIRequestLatency.WithLabelValues(endpoint, result).Observe(time.Since(start).Seconds())
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	log := logging.NewLogger("metrics")
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Infow("metrics endpoint listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
