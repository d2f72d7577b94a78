// Package metrics exposes Prometheus instrumentation for the sync engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReconcilesTotal counts zone reconcile attempts by outcome.
	ReconcilesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netbox_pdns_reconciles_total",
		Help: "Total number of zone reconcile attempts",
	}, []string{"result"})

	// ReconcileDuration tracks single-zone reconcile latency.
	ReconcileDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "netbox_pdns_reconcile_duration_seconds",
		Help:    "Histogram of single-zone reconcile duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"source"})

	// FullSyncsTotal counts full-sync runs by outcome.
	FullSyncsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netbox_pdns_full_syncs_total",
		Help: "Total number of full-sync runs",
	}, []string{"source", "result"})

	// ReplicaCallsTotal counts replica API calls by operation and outcome.
	ReplicaCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netbox_pdns_replica_calls_total",
		Help: "Total number of replica API calls",
	}, []string{"operation", "result"})

	// ReplicaRetriesTotal counts retry attempts made by the replica client.
	ReplicaRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netbox_pdns_replica_retries_total",
		Help: "Total number of replica API retry attempts",
	}, []string{"operation"})

	// GateWaitDuration tracks how long callers wait to acquire the gate.
	GateWaitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "netbox_pdns_gate_wait_seconds",
		Help:    "Histogram of time spent waiting to acquire the concurrency gate",
		Buckets: prometheus.DefBuckets,
	})

	// GateHoldDuration tracks how long callers hold the gate.
	GateHoldDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "netbox_pdns_gate_hold_seconds",
		Help:    "Histogram of time spent holding the concurrency gate",
		Buckets: prometheus.DefBuckets,
	})

	// GateTimeoutsTotal counts gate acquisition timeouts.
	GateTimeoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netbox_pdns_gate_timeouts_total",
		Help: "Total number of gate acquisition timeouts",
	})

	// RateLimitRejectionsTotal counts requests rejected by the ingest rate limiter.
	RateLimitRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netbox_pdns_rate_limit_rejections_total",
		Help: "Total number of requests rejected by the per-endpoint rate limiter",
	}, []string{"endpoint"})
)
