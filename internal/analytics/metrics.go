// Dealerlink - Car Marketplace Client Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dealerlink

package analytics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the telemetry pipeline
var (
	// eventsTracked counts events accepted into the queue.
	eventsTracked = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dealerlink_events_tracked_total",
		Help: "Total number of events accepted into the queue",
	}, []string{"event_type"})

	// eventsSuppressed counts calls absorbed by dedup or aggregation.
	eventsSuppressed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dealerlink_events_suppressed_total",
		Help: "Total number of track calls absorbed by dedup or aggregation",
	}, []string{"reason"}) // reason: "debounce", "aggregated"

	// eventsDropped counts events lost to caps and expiry.
	eventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dealerlink_events_dropped_total",
		Help: "Total number of events dropped",
	}, []string{"reason"}) // reason: "overflow", "pending_overflow", "pending_expired"

	// queueSize is the current queue length.
	queueSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dealerlink_queue_size",
		Help: "Current number of queued events",
	})

	// flushResults counts Flush outcomes.
	flushResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dealerlink_flush_results_total",
		Help: "Total number of flush attempts by outcome",
	}, []string{"result"})

	// flushLatency measures batch send latency.
	flushLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dealerlink_flush_latency_seconds",
		Help:    "Batch send latency in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// batchSize observes the number of events per sent batch.
	batchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dealerlink_batch_size",
		Help:    "Events per batch sent",
		Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
	})

	// retryDelay is the currently scheduled retry delay.
	retryDelay = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dealerlink_retry_delay_seconds",
		Help: "Delay before the next scheduled retry, 0 when none",
	})

	// persistOps counts queue mirror operations.
	persistOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dealerlink_persist_operations_total",
		Help: "Total number of queue mirror operations",
	}, []string{"op", "result"}) // op: "save", "clear", "load", "heal", "discard"
)

// RecordFlush records a flush outcome.
func RecordFlush(result FlushResult) {
	flushResults.WithLabelValues(result.String()).Inc()
}

// RecordBatchSent records a sent batch.
func RecordBatchSent(events int, latency time.Duration) {
	batchSize.Observe(float64(events))
	flushLatency.Observe(latency.Seconds())
}

func recordPersist(op string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	persistOps.WithLabelValues(op, result).Inc()
}
