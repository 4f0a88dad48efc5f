// Package metrics exposes the Prometheus collectors for the reconciliation
// engine. Collectors register themselves on the default registry; the server
// serves them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IngestTotal counts processed SMS by outcome:
	// transaction, parse_failure, gate_error, rejected.
	IngestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "momoledger_ingest_total",
		Help: "Processed payment SMS by outcome.",
	}, []string{"outcome"})

	// AllocationsTotal counts allocation attempts by outcome:
	// allocated, conflict, not_found, rejected, error.
	AllocationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "momoledger_allocations_total",
		Help: "Allocation attempts by outcome.",
	}, []string{"outcome"})

	// ReversalsTotal counts successful allocation reversals.
	ReversalsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "momoledger_reversals_total",
		Help: "Successful allocation reversals.",
	})

	// DuplicateMarksTotal counts duplicate adjudications by action:
	// mark, unmark.
	DuplicateMarksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "momoledger_duplicate_marks_total",
		Help: "Duplicate adjudications by action.",
	}, []string{"action"})

	// ParseRetriesTotal counts parse-failure retries by outcome:
	// parsed, still_failed, gate_error.
	ParseRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "momoledger_parse_retries_total",
		Help: "Parse failure retries by outcome.",
	}, []string{"outcome"})

	// HTTPRequestDuration observes request latency per route and status.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "momoledger_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)
