// Dealerlink - Car Marketplace Client Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dealerlink

/*
Command analytics-agent runs the telemetry pipeline as a sidecar for apps
that cannot embed it.

It opens the configured store, starts one analytics session, and exposes the
local ingestion API. The session ends with a final flush on SIGINT/SIGTERM.
SIGUSR1 and SIGUSR2 report the app going to the background and returning to
the foreground.

Configuration is read from config.yaml (or CONFIG_PATH) and environment
variables; API_BASE_URL is the only required setting:

	API_BASE_URL=https://api.example.com STORE_BACKEND=badger analytics-agent

See internal/config for every option.
*/
package main
