package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transfersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transactflow_transfers_total",
		Help: "Transfers processed, labeled by outcome",
	}, []string{"result"})

	transferDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "transactflow_transfer_duration_seconds",
		Help:    "Latency distribution of transfer processing",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	})

	transferRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transactflow_transfer_retries_total",
		Help: "Transfer attempts retried after a concurrent modification",
	})

	eventPublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transactflow_event_publish_failures_total",
		Help: "Committed transfers whose event could not be published",
	})
)
