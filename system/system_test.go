// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2023 wiremq

package system

import (
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestClone(t *testing.T) {
	info := new(Info)
	atomic.AddInt64(&info.BytesReceived, 11)
	atomic.AddInt64(&info.PacketsSent, 2)
	atomic.AddInt64(&info.Inflight, 3)

	c := info.Clone()
	require.Equal(t, int64(11), c.BytesReceived)
	require.Equal(t, int64(2), c.PacketsSent)
	require.Equal(t, int64(3), c.Inflight)
	require.Equal(t, int64(0), c.MessagesReceived)
}

func TestRegisterPrometheusMetrics(t *testing.T) {
	info := new(Info)
	registry := prometheus.NewRegistry()
	info.RegisterPrometheusMetrics(registry)

	atomic.AddInt64(&info.PingsSent, 5)

	mf, err := registry.Gather()
	require.NoError(t, err)

	found := false
	for _, fam := range mf {
		if fam.GetName() == "pings_sent" {
			found = true
			require.Equal(t, float64(5), fam.GetMetric()[0].GetCounter().GetValue())
		}
	}
	require.True(t, found)
}
