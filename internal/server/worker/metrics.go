package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sleepsupervisor",
			Subsystem: "worker",
			Name:      "requests_total",
			Help:      "Worker Agent calls by operation and outcome.",
		},
		[]string{"op", "outcome"},
	)

	retriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sleepsupervisor",
			Subsystem: "worker",
			Name:      "retries_total",
			Help:      "Worker Agent calls retried after a transient failure.",
		},
		[]string{"op"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sleepsupervisor",
			Subsystem: "worker",
			Name:      "request_duration_seconds",
			Help:      "Wall time of Worker Agent calls, retries included.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op"},
	)
)
