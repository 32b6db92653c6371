// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts HTTP requests by route pattern and status.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "duka",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// RequestDuration tracks HTTP request latency.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "duka",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// LedgerOperations counts stock ledger operations by outcome
	// (ok, replayed, not_found, validation, insufficient_stock, conflict, error).
	LedgerOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "duka",
			Name:      "ledger_operations_total",
			Help:      "Total number of stock ledger operations",
		},
		[]string{"operation", "outcome"},
	)

	// LedgerRetries counts attempts restarted after a concurrent writer
	// changed the item first.
	LedgerRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "duka",
			Name:      "ledger_retries_total",
			Help:      "Total number of ledger attempts retried after a version conflict",
		},
		[]string{"operation"},
	)

	// UnitsMoved counts stock units by movement kind.
	UnitsMoved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "duka",
			Name:      "ledger_units_total",
			Help:      "Total number of stock units moved, by movement kind",
		},
		[]string{"kind"},
	)
)
