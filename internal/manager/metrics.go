package manager

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	operationCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskhub_operations_total",
			Help: "Total number of task and user operations",
		},
		[]string{"entity", "op", "status"},
	)

	operationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taskhub_operation_duration_seconds",
			Help:    "Duration of task and user operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"entity", "op"},
	)

	syncFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskhub_sync_failures_total",
			Help: "Failed writes to the referenced collection during reference synchronization",
		},
		[]string{"step"},
	)

	reconcileRepairs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskhub_reconcile_repairs_total",
			Help: "Records repaired by reconciliation",
		},
		[]string{"kind"},
	)

	taskDescLength = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "taskhub_task_desc_length_bytes",
			Help:    "Length distribution of task descriptions",
			Buckets: []float64{50, 100, 500, 1000},
		},
	)
)

// observe учитывает операцию; err передаётся указателем, чтобы прочитать итог после return
func observe(entity, op string, start time.Time, err *error) {
	operationDuration.WithLabelValues(entity, op).Observe(time.Since(start).Seconds())
	operationCount.WithLabelValues(entity, op, status(*err)).Inc()
}
