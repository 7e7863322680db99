// Package metrics exposes Prometheus counters for the trading run.
//
//   - trader_orders_submitted_total{order_type,side} – accepted submissions
//   - trader_submissions_rejected_total{order_type}  – broker rejections
//   - trader_cancels_issued_total                    – cancel operations sent
//   - trader_rows_failed_total{table}                – intent rows that errored
//   - trader_reconcile_runs_total                    – reconciliation passes
//
// Registered in init() and served at /metrics when a listen address is
// configured.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	OrdersSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_orders_submitted_total",
			Help: "Broker-accepted order submissions",
		},
		[]string{"order_type", "side"},
	)

	SubmissionsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_submissions_rejected_total",
			Help: "Submissions the broker rejected or timed out",
		},
		[]string{"order_type"},
	)

	CancelsIssued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "trader_cancels_issued_total",
			Help: "Cancel operations issued to the gateway",
		},
	)

	RowsFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_rows_failed_total",
			Help: "Intent rows that failed during dispatch",
		},
		[]string{"table"},
	)

	ReconcileRuns = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "trader_reconcile_runs_total",
			Help: "Completed reconciliation passes",
		},
	)
)

func init() {
	prometheus.MustRegister(
		OrdersSubmitted,
		SubmissionsRejected,
		CancelsIssued,
		RowsFailed,
		ReconcileRuns,
	)
}

// Handler serves the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
