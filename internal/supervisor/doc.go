// Dealerlink - Car Marketplace Client Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dealerlink

/*
Package supervisor runs the agent's long-lived services under suture v4.

# Layout

	dealerlink
	├── data-layer
	│   └── badger-gc            (badger backend only)
	├── pipeline-layer
	│   ├── analytics-session
	│   └── analytics-sweep
	├── lifecycle-layer
	│   ├── connectivity-prober  (unless AGENT_PROBE_TARGET=off)
	│   └── lifecycle-signals    (SIGUSR1/SIGUSR2 app state)
	└── api-layer
	    └── agent-api

Each layer counts failures on its own. A prober that keeps failing backs off
inside lifecycle-layer; the analytics session and the HTTP listener carry on.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddPipelineService(services.NewAnalyticsSessionService(svc, city, 0))
	tree.AddAPIService(services.NewHTTPServerService(server, 0))

	errCh := tree.ServeBackground(ctx)
	<-ctx.Done()
	<-errCh

Supervisor events (start, failure, backoff, stop timeout) are logged through
sutureslog, which writes to the zerolog stream via logging.SlogHandler.

StubService is a scriptable suture.Service for restart tests.
*/
package supervisor
