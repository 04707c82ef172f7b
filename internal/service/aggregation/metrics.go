package aggregation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	aggregationRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cohortlens_aggregation_requests_total",
		Help: "Aggregation requests by kind and outcome",
	}, []string{"kind", "status"})

	aggregationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cohortlens_aggregation_duration_seconds",
		Help:    "Aggregation request latency",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
	}, []string{"kind"})

	columnFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cohortlens_column_aggregation_failures_total",
		Help: "Per-column failures isolated during table aggregation",
	}, []string{"display_type"})

	droppedFilters = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cohortlens_filters_dropped_total",
		Help: "Cross-table filter fragments dropped because no relationship path exists",
	})
)

func observe(kind string, seconds float64, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	aggregationRequests.WithLabelValues(kind, status).Inc()
	aggregationDuration.WithLabelValues(kind).Observe(seconds)
}
