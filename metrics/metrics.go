// Package metrics exposes the gateway's prometheus instrumentation,
// served by the local status API on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FramesReceived counts frames accepted per transport
	FramesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_frames_received_total",
		Help: "Radio frames successfully parsed, by transport.",
	}, []string{"transport"})

	// FramesDropped counts malformed or truncated frames per transport
	FramesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_frames_dropped_total",
		Help: "Radio frames dropped due to parse failure, by transport.",
	}, []string{"transport"})

	// ReadingsSynced counts readings accepted by the collector
	ReadingsSynced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_readings_synced_total",
		Help: "Readings the remote collector accepted.",
	})

	// SendFailures counts data pushes that exhausted their retries
	SendFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_send_failures_total",
		Help: "Data pushes that failed after all retry attempts.",
	})

	// BufferedEntries tracks the ring buffer fill level
	BufferedEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gateway_buffered_entries",
		Help: "Readings currently held in the ring buffer.",
	})

	// BackendReachable is 1 while the collector answers health probes
	BackendReachable = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gateway_backend_reachable",
		Help: "Whether the remote collector currently answers health probes.",
	})
)
