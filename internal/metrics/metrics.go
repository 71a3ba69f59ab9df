// Package metrics exposes the daemon's Prometheus counters and gauges.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveSessions tracks the number of in-progress sessions across all
	// transports.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "useai_active_sessions",
		Help: "Number of sessions currently in progress across all transports.",
	})

	// Heartbeats counts heartbeat tool calls handled.
	Heartbeats = promauto.NewCounter(prometheus.CounterOpts{
		Name: "useai_heartbeats_total",
		Help: "Total number of heartbeat calls handled.",
	})

	// ChainAppendSeconds observes the latency of a single chain-record
	// append (build, sign, write, fsync).
	ChainAppendSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "useai_chain_append_seconds",
		Help:    "Latency of a single chain record append.",
		Buckets: prometheus.DefBuckets,
	})

	// HandlerErrors counts tool-handler calls that returned isError=true.
	HandlerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "useai_handler_errors_total",
		Help: "Total number of tool-handler calls that returned an error result.",
	}, []string{"tool"})

	// SealActiveSweeps counts sessions sealed by the periodic seal-active
	// sweep and by the startup scan for orphaned chain files.
	SealActiveSweeps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "useai_seal_active_sweeps_total",
		Help: "Total number of sessions sealed by the periodic seal-active sweep or the startup orphan scan.",
	})
)
