// Dealerlink - Car Marketplace Client Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dealerlink

// Package metrics holds the Prometheus series shared by more than one
// Dealerlink package.
//
// All metrics register with the default registry through promauto and are
// served by the agent on GET /metrics.
//
// # Circuit Breaker
//
//   - circuit_breaker_state{name}: 0=closed, 1=half-open, 2=open
//   - circuit_breaker_requests_total{name,result}: success, failure, rejected
//   - circuit_breaker_consecutive_failures{name}
//   - circuit_breaker_state_transitions_total{name,from_state,to_state}
//
// # Outbound HTTP
//
//   - dealerlink_http_client_requests_total{endpoint,status_code}
//   - dealerlink_http_client_duration_seconds{endpoint}
//
// # Local Agent API
//
//   - dealerlink_api_requests_total{method,endpoint,status_code}
//   - dealerlink_api_request_duration_seconds{method,endpoint}
//   - dealerlink_api_active_requests
//   - dealerlink_api_rate_limit_hits_total{endpoint}
//
// Example PromQL, flush error rate over five minutes:
//
//	sum(rate(dealerlink_http_client_requests_total{endpoint="/api/analytics/events",status_code!~"2.."}[5m]))
//	  / sum(rate(dealerlink_http_client_requests_total{endpoint="/api/analytics/events"}[5m]))
package metrics
