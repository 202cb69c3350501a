// Dealerlink - Car Marketplace Client Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dealerlink

package config

import (
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/tomtom215/dealerlink/internal/analytics"
	"github.com/tomtom215/dealerlink/internal/lifecycle"
	"github.com/tomtom215/dealerlink/internal/logging"
	"github.com/tomtom215/dealerlink/internal/store"
	"github.com/tomtom215/dealerlink/internal/transport"
)

// Config is the complete agent configuration.
type Config struct {
	Analytics AnalyticsConfig `koanf:"analytics"`
	Transport TransportConfig `koanf:"transport"`
	Store     StoreConfig     `koanf:"store"`
	Agent     AgentConfig     `koanf:"agent"`
	App       AppConfig       `koanf:"app"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// AnalyticsConfig tunes the telemetry pipeline.
type AnalyticsConfig struct {
	// City is attached to session start and every batch. Optional.
	City string `koanf:"city"`

	BatchSize    int `koanf:"batch_size"`
	MaxQueueSize int `koanf:"max_queue_size"`

	FlushInterval    time.Duration `koanf:"flush_interval"`
	MinFlushInterval time.Duration `koanf:"min_flush_interval"`
	FollowUpDelay    time.Duration `koanf:"follow_up_delay"`

	DebounceWindow    time.Duration `koanf:"debounce_window"`
	AggregationWindow time.Duration `koanf:"aggregation_window"`
	// AggregatedTypes lists event type names collapsed per window.
	AggregatedTypes []string `koanf:"aggregated_types"`

	AppStateDebounce time.Duration `koanf:"app_state_debounce"`

	RetryBase       time.Duration `koanf:"retry_base"`
	RetryMultiplier float64       `koanf:"retry_multiplier"`
	RetryMax        time.Duration `koanf:"retry_max"`

	PendingLimit int           `koanf:"pending_limit"`
	PendingTTL   time.Duration `koanf:"pending_ttl"`
}

// TransportConfig points the agent at the analytics API.
type TransportConfig struct {
	// BaseURL is the API origin, e.g. https://api.example.com.
	BaseURL   string        `koanf:"base_url"`
	Timeout   time.Duration `koanf:"timeout"`
	UserAgent string        `koanf:"user_agent"`

	BreakerMinRequests  uint32        `koanf:"breaker_min_requests"`
	BreakerFailureRatio float64       `koanf:"breaker_failure_ratio"`
	BreakerOpenTimeout  time.Duration `koanf:"breaker_open_timeout"`
}

// StoreConfig selects and configures the persistent key-value store.
type StoreConfig struct {
	// Backend is badger, redis or memory.
	Backend      string        `koanf:"backend"`
	Path         string        `koanf:"path"`
	SyncWrites   bool          `koanf:"sync_writes"`
	Compression  bool          `koanf:"compression"`
	CloseTimeout time.Duration `koanf:"close_timeout"`
	RedisURL     string        `koanf:"redis_url"`
	Prefix       string        `koanf:"prefix"`
}

// AgentConfig configures the local process around the pipeline.
type AgentConfig struct {
	ListenAddr string `koanf:"listen_addr"`

	// RateLimitRequests per RateLimitWindow per client IP on the local API.
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`

	// ProbeTarget is dialed to detect connectivity. Empty derives host:port
	// from transport.base_url; "off" disables probing.
	ProbeTarget   string        `koanf:"probe_target"`
	ProbeInterval time.Duration `koanf:"probe_interval"`
	ProbeTimeout  time.Duration `koanf:"probe_timeout"`

	// SignalLifecycle maps SIGUSR1/SIGUSR2 to background/active.
	SignalLifecycle bool `koanf:"signal_lifecycle"`

	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// AppConfig describes the host application.
type AppConfig struct {
	Version string `koanf:"version"`
	// DeviceType overrides the platform reported by the host.
	DeviceType string `koanf:"device_type"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	// Default: info
	Level string `koanf:"level"`

	// Format is json or console.
	// Default: json
	Format string `koanf:"format"`

	// Caller includes caller file and line number in logs.
	Caller bool `koanf:"caller"`
}

// AnalyticsOptions converts the analytics section. Dedup horizon, capacity
// and sweep threshold keep their package defaults.
func (c *Config) AnalyticsOptions() analytics.Config {
	a := c.Analytics
	cfg := analytics.Config{
		BatchSize:         a.BatchSize,
		MaxQueueSize:      a.MaxQueueSize,
		FlushInterval:     a.FlushInterval,
		MinFlushInterval:  a.MinFlushInterval,
		FollowUpDelay:     a.FollowUpDelay,
		DebounceWindow:    a.DebounceWindow,
		AggregationWindow: a.AggregationWindow,
		AppStateDebounce:  a.AppStateDebounce,
		RetryBase:         a.RetryBase,
		RetryMultiplier:   a.RetryMultiplier,
		RetryMax:          a.RetryMax,
		PendingLimit:      a.PendingLimit,
		PendingTTL:        a.PendingTTL,
	}
	if a.AggregatedTypes != nil {
		cfg.AggregatedTypes = make([]analytics.EventType, 0, len(a.AggregatedTypes))
		for _, name := range a.AggregatedTypes {
			// Validate has already rejected unknown names.
			if et, err := analytics.ParseEventType(name); err == nil {
				cfg.AggregatedTypes = append(cfg.AggregatedTypes, et)
			}
		}
	}
	return cfg
}

// TransportOptions converts the transport section.
func (c *Config) TransportOptions() transport.Config {
	cfg := transport.DefaultConfig(strings.TrimRight(c.Transport.BaseURL, "/"))
	cfg.Timeout = c.Transport.Timeout
	if c.Transport.UserAgent != "" {
		cfg.UserAgent = c.Transport.UserAgent
	}
	if c.App.Version != "" {
		cfg.UserAgent += "/" + c.App.Version
	}
	cfg.BreakerMinRequests = c.Transport.BreakerMinRequests
	cfg.BreakerFailureRatio = c.Transport.BreakerFailureRatio
	cfg.BreakerOpenTimeout = c.Transport.BreakerOpenTimeout
	return cfg
}

// StoreOptions converts the store section.
func (c *Config) StoreOptions() store.Options {
	return store.Options{
		Backend:      c.Store.Backend,
		Path:         c.Store.Path,
		SyncWrites:   c.Store.SyncWrites,
		Compression:  c.Store.Compression,
		CloseTimeout: c.Store.CloseTimeout,
		RedisURL:     c.Store.RedisURL,
		Prefix:       c.Store.Prefix,
	}
}

// LoggingOptions converts the logging section.
func (c *Config) LoggingOptions() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = c.Logging.Level
	if c.Logging.Format != "" {
		cfg.Format = c.Logging.Format
	}
	cfg.Caller = c.Logging.Caller
	return cfg
}

// ProberOptions returns the connectivity probe settings and whether probing
// is enabled.
func (c *Config) ProberOptions() (lifecycle.ProberConfig, bool) {
	target := c.Agent.ProbeTarget
	if strings.EqualFold(target, "off") {
		return lifecycle.ProberConfig{}, false
	}
	if target == "" {
		target = hostPort(c.Transport.BaseURL)
	}
	if target == "" {
		return lifecycle.ProberConfig{}, false
	}
	return lifecycle.ProberConfig{
		Target:   target,
		Interval: c.Agent.ProbeInterval,
		Timeout:  c.Agent.ProbeTimeout,
	}, true
}

// hostPort derives a dialable host:port from a base URL, filling in the
// scheme's default port.
func hostPort(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	port := u.Port()
	if port == "" {
		switch u.Scheme {
		case "https":
			port = "443"
		case "http":
			port = "80"
		default:
			return ""
		}
	}
	return net.JoinHostPort(u.Hostname(), port)
}
