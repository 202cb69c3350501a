// Dealerlink - Car Marketplace Client Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dealerlink

/*
Package services provides suture.Service wrappers for the agent's components.

Each wrapper translates a component's own lifecycle into suture's
Serve(ctx) error, returns an error when the component should be restarted,
and names itself through fmt.Stringer for the supervisor's event log.

# Available Services

  - HTTPServerService: the local agent API (ListenAndServe/Shutdown)
  - ComponentService: Start/Stop components such as the connectivity
    prober and the lifecycle signal source
  - AnalyticsSessionService: opens an analytics session on start and ends it
    (final flush, session end) on stop
  - TickerService: periodic maintenance on an injectable quartz clock, used
    for dedup/aggregation sweeps and Badger value-log GC

# Usage

	tree.AddLifecycleService(services.NewComponentService("connectivity-prober", prober))
	tree.AddPipelineService(services.NewAnalyticsSessionService(svc, cfg.Analytics.City, 10*time.Second))
	tree.AddPipelineService(services.NewTickerService("analytics-sweep", time.Minute, nil,
	    func(_ context.Context, now time.Time) error {
	        svc.Sweep(now)
	        return nil
	    }))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
*/
package services
