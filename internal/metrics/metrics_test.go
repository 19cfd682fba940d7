// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestStreamCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(StreamSessions.WithLabelValues("done"))
	StreamSessions.WithLabelValues("done").Inc()
	require.Equal(t, before+1, testutil.ToFloat64(StreamSessions.WithLabelValues("done")))
}

func TestObserveAPI(t *testing.T) {
	ObserveAPI("progress", time.Now(), nil)
	ObserveAPI("progress", time.Now(), errors.New("boom"))
	require.Equal(t, 2, testutil.CollectAndCount(APIRequestLatency, "secondme_api_request_latency_seconds"))
}
