// Dealerlink - Car Marketplace Client Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dealerlink

/*
Package config loads the analytics agent configuration with Koanf v2.

Sources are layered, later ones winning:

 1. Built-in defaults (defaultConfig, loaded via the structs provider)
 2. An optional YAML file: $CONFIG_PATH, then config.yaml, config.yml,
    /etc/dealerlink/config.yaml, /etc/dealerlink/config.yml
 3. Environment variables listed in envMappings

Only mapped environment variables are read. Durations accept Go syntax
("30s", "2m"); ANALYTICS_AGGREGATED_TYPES is comma-separated and an empty
value turns aggregation off.

# Example File

	analytics:
	  city: Tirana
	  batch_size: 20
	  flush_interval: 30s
	  aggregated_types: [CAR_VIEW, IMAGE_SWIPE]
	transport:
	  base_url: https://api.example.com
	store:
	  backend: badger
	  path: /var/lib/dealerlink/queue
	agent:
	  listen_addr: 127.0.0.1:8787
	logging:
	  level: debug
	  format: console

# Required

API_BASE_URL (transport.base_url) has no default. REDIS_URL is required when
STORE_BACKEND=redis.

# Errors

Validate returns *Error naming the offending koanf path.
*/
package config
