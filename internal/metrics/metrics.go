// SPDX-License-Identifier: LGPL-2.1-only

// Package metrics exposes the transaction engine and RPC dispatcher's
// Prometheus instrumentation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry bundles the engine's counters and histograms. A single instance
// is created at daemon startup and threaded into the engine and dispatcher.
type Registry struct {
	CommitTotal    *prometheus.CounterVec
	CommitDuration *prometheus.HistogramVec
	RPCTotal       *prometheus.CounterVec
	SessionsActive prometheus.Gauge
}

// New registers the standard metric set against reg (pass
// prometheus.NewRegistry() in production, or DefaultRegisterer at the call
// site for a shared /metrics endpoint).
func New(reg prometheus.Registerer) *Registry {
	r := &Registry{
		CommitTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "yconfd",
			Name:      "commit_total",
			Help:      "Total number of commit attempts by outcome.",
		}, []string{"outcome"}),
		CommitDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "yconfd",
			Name:      "commit_duration_seconds",
			Help:      "Commit phase duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"phase"}),
		RPCTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "yconfd",
			Name:      "rpc_total",
			Help:      "Total number of RPC requests by method and result.",
		}, []string{"method", "result"}),
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "yconfd",
			Name:      "sessions_active",
			Help:      "Number of currently connected client sessions.",
		}),
	}
	reg.MustRegister(r.CommitTotal, r.CommitDuration, r.RPCTotal, r.SessionsActive)
	return r
}

// ObservePhase records how long phase took.
func (r *Registry) ObservePhase(phase string, since time.Time) {
	if r == nil {
		return
	}
	r.CommitDuration.WithLabelValues(phase).Observe(time.Since(since).Seconds())
}

// CountCommit records a terminal commit outcome.
func (r *Registry) CountCommit(outcome string) {
	if r == nil {
		return
	}
	r.CommitTotal.WithLabelValues(outcome).Inc()
}

// CountRPC records a dispatched RPC's result.
func (r *Registry) CountRPC(method, result string) {
	if r == nil {
		return
	}
	r.RPCTotal.WithLabelValues(method, result).Inc()
}
