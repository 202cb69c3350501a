// Dealerlink - Car Marketplace Client Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dealerlink

/*
Package api is the agent's local HTTP surface.

A host app that cannot link the analytics package directly posts its
tracking calls and lifecycle reports here:

	POST /v1/track         {"eventType":"CAR_VIEW","targetType":"CAR","targetId":"car123"}
	POST /v1/screen        {"screen":"CarDetails"}
	POST /v1/lifecycle     {"state":"background"}
	POST /v1/connectivity  {"state":"offline"}
	POST /v1/flush
	POST /v1/session/end
	GET  /v1/stats
	GET  /healthz
	GET  /metrics

Tracking endpoints answer 202 as soon as the call is handed to the pipeline.
Like the in-process API they never report pipeline failures back to the
caller; only malformed requests are rejected. Lifecycle and connectivity
reports go to the same feeds the prober and signal sources publish on.

Every JSON response uses the Response envelope. Requests under /v1 are
rate limited per client IP with httprate and counted in the
dealerlink_api_* Prometheus series by chi route pattern.
*/
package api
