// Dealerlink - Car Marketplace Client Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dealerlink

package store

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for store operations
var (
	// storeOpsTotal counts operations by backend, op and result.
	storeOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dealerlink_store_operations_total",
		Help: "Total number of key-value store operations",
	}, []string{"backend", "op", "result"})

	// storeOpLatency measures operation latency.
	storeOpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dealerlink_store_operation_seconds",
		Help:    "Key-value store operation latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"backend", "op"})
)

func recordOp(backend, op string, start time.Time, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	storeOpsTotal.WithLabelValues(backend, op, result).Inc()
	storeOpLatency.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
}
