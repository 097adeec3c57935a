// Package metrics defines the Prometheus collectors shared by the csv
// operations, the exporter and the HTTP surface.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RowsRead counts data records consumed per operation.
	RowsRead = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "csvkit_rows_read_total",
			Help: "Total number of records read",
		},
		[]string{"operation"},
	)
	// RowsWritten counts records written per operation, headers excluded.
	RowsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "csvkit_rows_written_total",
			Help: "Total number of records written",
		},
		[]string{"operation"},
	)
	// ShardsWritten counts output shard files completed.
	ShardsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "csvkit_shards_written_total",
			Help: "Total number of shard files written",
		},
		[]string{"operation"},
	)
	// OperationsTotal counts finished operations by outcome.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "csvkit_operations_total",
			Help: "Total number of operations by status",
		},
		[]string{"operation", "status"},
	)
	// OperationDuration is the wall time of finished operations.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "csvkit_operation_duration_seconds",
			Help:    "Operation duration in seconds",
			Buckets: []float64{.01, .05, .25, 1, 5, 30, 120, 600, 1800},
		},
		[]string{"operation"},
	)
	// RequestTotal counts HTTP requests by method, route and status.
	RequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "csvkit_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
)

// Observe records the outcome of an operation that started at start.
func Observe(operation string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	OperationsTotal.WithLabelValues(operation, status).Inc()
	OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
