package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RecordsPersisted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reqtrail_records_persisted_total",
		Help: "The total number of request history records written",
	})

	RecordsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reqtrail_records_skipped_total",
		Help: "Requests that did not qualify for capture",
	}, []string{"reason"})

	PersistFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reqtrail_persist_failures_total",
		Help: "Failed history record writes",
	})

	LatencyBucket = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reqtrail_latency_bucket",
		Help:    "Request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})
)
