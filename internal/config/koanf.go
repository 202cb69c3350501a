// Dealerlink - Car Marketplace Client Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dealerlink

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/tomtom215/dealerlink/internal/analytics"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/dealerlink/config.yaml",
	"/etc/dealerlink/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	a := analytics.DefaultConfig()
	aggregated := make([]string, len(a.AggregatedTypes))
	for i, et := range a.AggregatedTypes {
		aggregated[i] = string(et)
	}

	return &Config{
		Analytics: AnalyticsConfig{
			BatchSize:         a.BatchSize,
			MaxQueueSize:      a.MaxQueueSize,
			FlushInterval:     a.FlushInterval,
			MinFlushInterval:  a.MinFlushInterval,
			FollowUpDelay:     a.FollowUpDelay,
			DebounceWindow:    a.DebounceWindow,
			AggregationWindow: a.AggregationWindow,
			AggregatedTypes:   aggregated,
			AppStateDebounce:  a.AppStateDebounce,
			RetryBase:         a.RetryBase,
			RetryMultiplier:   a.RetryMultiplier,
			RetryMax:          a.RetryMax,
			PendingLimit:      a.PendingLimit,
			PendingTTL:        a.PendingTTL,
		},
		Transport: TransportConfig{
			BaseURL:             "", // required
			Timeout:             15 * time.Second,
			UserAgent:           "dealerlink-agent",
			BreakerMinRequests:  5,
			BreakerFailureRatio: 0.6,
			BreakerOpenTimeout:  time.Minute,
		},
		Store: StoreConfig{
			Backend:      "badger",
			Path:         "/data/dealerlink/queue",
			SyncWrites:   true, // the mirror exists to survive crashes
			Compression:  true,
			CloseTimeout: 10 * time.Second,
			RedisURL:     "",
			Prefix:       "dealerlink:",
		},
		Agent: AgentConfig{
			ListenAddr:        "127.0.0.1:8787",
			RateLimitRequests: 600,
			RateLimitWindow:   time.Minute,
			ProbeTarget:       "",
			ProbeInterval:     15 * time.Second,
			ProbeTimeout:      3 * time.Second,
			SignalLifecycle:   true,
			ShutdownTimeout:   15 * time.Second,
		},
		App: AppConfig{
			Version:    "dev",
			DeviceType: "",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load loads configuration with the following precedence (highest to lowest):
//
//  1. Environment variables (mapped names only, see envMappings)
//  2. Config file: optional YAML file
//  3. Defaults
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first config file found, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"analytics.aggregated_types",
}

// processSliceFields converts comma-separated env values to slices for known
// slice fields. Values from YAML are already slices and are left alone.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		// An empty value disables aggregation.
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to config paths.
var envMappings = map[string]string{
	// Analytics pipeline
	"analytics_city":               "analytics.city",
	"analytics_batch_size":         "analytics.batch_size",
	"analytics_max_queue_size":     "analytics.max_queue_size",
	"analytics_flush_interval":     "analytics.flush_interval",
	"analytics_min_flush_interval": "analytics.min_flush_interval",
	"analytics_follow_up_delay":    "analytics.follow_up_delay",
	"analytics_debounce_window":    "analytics.debounce_window",
	"analytics_aggregation_window": "analytics.aggregation_window",
	"analytics_aggregated_types":   "analytics.aggregated_types",
	"analytics_app_state_debounce": "analytics.app_state_debounce",
	"analytics_retry_base":         "analytics.retry_base",
	"analytics_retry_multiplier":   "analytics.retry_multiplier",
	"analytics_retry_max":          "analytics.retry_max",
	"analytics_pending_limit":      "analytics.pending_limit",
	"analytics_pending_ttl":        "analytics.pending_ttl",

	// Analytics API
	"api_base_url":              "transport.base_url",
	"api_timeout":               "transport.timeout",
	"api_user_agent":            "transport.user_agent",
	"api_breaker_min_requests":  "transport.breaker_min_requests",
	"api_breaker_failure_ratio": "transport.breaker_failure_ratio",
	"api_breaker_open_timeout":  "transport.breaker_open_timeout",

	// Store
	"store_backend":       "store.backend",
	"store_path":          "store.path",
	"store_sync_writes":   "store.sync_writes",
	"store_compression":   "store.compression",
	"store_close_timeout": "store.close_timeout",
	"redis_url":           "store.redis_url",
	"store_prefix":        "store.prefix",

	// Agent
	"agent_listen_addr":         "agent.listen_addr",
	"agent_rate_limit_requests": "agent.rate_limit_requests",
	"agent_rate_limit_window":   "agent.rate_limit_window",
	"agent_probe_target":        "agent.probe_target",
	"agent_probe_interval":      "agent.probe_interval",
	"agent_probe_timeout":       "agent.probe_timeout",
	"agent_signal_lifecycle":    "agent.signal_lifecycle",
	"agent_shutdown_timeout":    "agent.shutdown_timeout",

	// Host application
	"app_version":     "app.version",
	"app_device_type": "app.device_type",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps an environment variable name to a koanf path.
// Unmapped variables return "" and are skipped, so unrelated environment
// does not leak into the configuration.
//
// Examples:
//   - ANALYTICS_BATCH_SIZE -> analytics.batch_size
//   - API_BASE_URL -> transport.base_url
//   - REDIS_URL -> store.redis_url
//   - LOG_LEVEL -> logging.level
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
