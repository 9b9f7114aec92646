// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2023 wiremq

// Package system provides atomic counters describing a live session.
package system

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Info contains atomic counters and values for various session statistics.
type Info struct {
	Started          int64 `json:"started"`           // the time the session started in unix seconds
	BytesReceived    int64 `json:"bytes_received"`    // total number of bytes received since the session started
	BytesSent        int64 `json:"bytes_sent"`        // total number of bytes sent since the session started
	PacketsReceived  int64 `json:"packets_received"`  // total number of packets of any type received
	PacketsSent      int64 `json:"packets_sent"`      // total number of packets of any type sent
	MessagesReceived int64 `json:"messages_received"` // total number of publish messages received
	MessagesSent     int64 `json:"messages_sent"`     // total number of publish messages sent
	Inflight         int64 `json:"inflight"`          // the number of qos messages currently in-flight
	PingsSent        int64 `json:"pings_sent"`        // total number of ping requests sent
	PingsReceived    int64 `json:"pings_received"`    // total number of ping responses received
}

// Clone makes a copy of Info using atomic operations.
func (i *Info) Clone() *Info {
	return &Info{
		Started:          atomic.LoadInt64(&i.Started),
		BytesReceived:    atomic.LoadInt64(&i.BytesReceived),
		BytesSent:        atomic.LoadInt64(&i.BytesSent),
		PacketsReceived:  atomic.LoadInt64(&i.PacketsReceived),
		PacketsSent:      atomic.LoadInt64(&i.PacketsSent),
		MessagesReceived: atomic.LoadInt64(&i.MessagesReceived),
		MessagesSent:     atomic.LoadInt64(&i.MessagesSent),
		Inflight:         atomic.LoadInt64(&i.Inflight),
		PingsSent:        atomic.LoadInt64(&i.PingsSent),
		PingsReceived:    atomic.LoadInt64(&i.PingsReceived),
	}
}

// RegisterPrometheusMetrics registers the session counters with a prometheus
// registry. A nil registry registers with the default registerer.
func (i *Info) RegisterPrometheusMetrics(registry prometheus.Registerer) {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	type metric struct {
		metricType string
		name       string
		help       string
		value      *int64
	}

	metricsList := []metric{
		{"c", "bytes_received", "A counter of total number of bytes received", &i.BytesReceived},
		{"c", "bytes_sent", "A counter of total number of bytes sent", &i.BytesSent},
		{"c", "packets_received", "A counter of the total number of packets received", &i.PacketsReceived},
		{"c", "packets_sent", "A counter of the total number of packets sent", &i.PacketsSent},
		{"c", "messages_received", "A counter of total number of publish messages received", &i.MessagesReceived},
		{"c", "messages_sent", "A counter of total number of publish messages sent", &i.MessagesSent},
		{"g", "inflight", "A gauge of the number of messages currently in-flight", &i.Inflight},
		{"c", "pings_sent", "A counter of the total number of ping requests sent", &i.PingsSent},
		{"c", "pings_received", "A counter of the total number of ping responses received", &i.PingsReceived},
	}

	for _, m := range metricsList {
		m := m
		fn := func() float64 {
			return float64(atomic.LoadInt64(m.value))
		}

		switch m.metricType {
		case "c":
			registry.MustRegister(
				prometheus.NewCounterFunc(
					prometheus.CounterOpts{
						Name: m.name,
						Help: m.help,
					},
					fn,
				),
			)
		case "g":
			registry.MustRegister(
				prometheus.NewGaugeFunc(
					prometheus.GaugeOpts{
						Name: m.name,
						Help: m.help,
					},
					fn,
				),
			)
		}
	}
}
