// Package metrics holds the Prometheus collectors shared by the ledger processes
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_operations_total",
			Help: "Total number of ledger operations by outcome code",
		},
		[]string{"operation", "code"},
	)

	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledger_operation_duration_seconds",
			Help:    "Duration of ledger operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	OracleRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_requests_total",
			Help: "Total number of price lookups by source and outcome",
		},
		[]string{"source", "outcome"},
	)

	SweepOrders = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweep_orders_total",
			Help: "Orders handled by the sweep, by result",
		},
		[]string{"result"},
	)

	SignalsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "signals_expired_total",
			Help: "Total number of signals deactivated by the expiry job",
		},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_events_published_total",
			Help: "Ledger events handed to a sink, by sink and outcome",
		},
		[]string{"sink", "outcome"},
	)

	DepositsDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deposit_watcher_deposits_total",
			Help: "Custody deposits seen by the watcher, by outcome",
		},
		[]string{"outcome"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "status"},
	)
)

// ObserveOperation records one finished ledger operation
func ObserveOperation(operation, code string, start time.Time) {
	if code == "" {
		code = "ok"
	}
	OperationsTotal.WithLabelValues(operation, code).Inc()
	OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// RecordSweep adds the counts of one sweep pass
func RecordSweep(filled, skipped, failed int) {
	SweepOrders.WithLabelValues("filled").Add(float64(filled))
	SweepOrders.WithLabelValues("skipped").Add(float64(skipped))
	SweepOrders.WithLabelValues("failed").Add(float64(failed))
}
