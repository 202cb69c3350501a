// Dealerlink - Car Marketplace Client Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dealerlink

package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/tomtom215/dealerlink/internal/analytics"
	"github.com/tomtom215/dealerlink/internal/logging"
	"github.com/tomtom215/dealerlink/internal/store"
)

// Error represents a configuration validation error.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config error: %s: %s", e.Field, e.Message)
}

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validateAnalytics(); err != nil {
		return err
	}
	if err := c.validateTransport(); err != nil {
		return err
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateAgent(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateAnalytics() error {
	a := c.Analytics
	if a.BatchSize < 1 {
		return &Error{Field: "analytics.batch_size", Message: "must be at least 1"}
	}
	if a.MaxQueueSize < a.BatchSize {
		return &Error{Field: "analytics.max_queue_size", Message: "must be at least batch_size"}
	}
	if a.FlushInterval < time.Second {
		return &Error{Field: "analytics.flush_interval", Message: "must be at least 1 second"}
	}
	if a.MinFlushInterval < 0 || a.MinFlushInterval > a.FlushInterval {
		return &Error{Field: "analytics.min_flush_interval", Message: "must be between 0 and flush_interval"}
	}
	if a.DebounceWindow < 0 || a.AggregationWindow < 0 || a.AppStateDebounce < 0 {
		return &Error{Field: "analytics", Message: "windows must not be negative"}
	}
	if a.RetryBase <= 0 {
		return &Error{Field: "analytics.retry_base", Message: "must be positive"}
	}
	if a.RetryMax < a.RetryBase {
		return &Error{Field: "analytics.retry_max", Message: "must be at least retry_base"}
	}
	if a.RetryMultiplier < 1 {
		return &Error{Field: "analytics.retry_multiplier", Message: "must be at least 1"}
	}
	if a.PendingLimit < 0 {
		return &Error{Field: "analytics.pending_limit", Message: "must not be negative"}
	}
	for _, name := range a.AggregatedTypes {
		if _, err := analytics.ParseEventType(name); err != nil {
			return &Error{Field: "analytics.aggregated_types", Message: err.Error()}
		}
	}
	return nil
}

func (c *Config) validateTransport() error {
	t := c.Transport
	if t.BaseURL == "" {
		return &Error{Field: "transport.base_url", Message: "API_BASE_URL is required"}
	}
	u, err := url.Parse(t.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return &Error{Field: "transport.base_url", Message: "must be an absolute http(s) URL"}
	}
	if t.Timeout < 0 {
		return &Error{Field: "transport.timeout", Message: "must not be negative"}
	}
	if t.BreakerFailureRatio < 0 || t.BreakerFailureRatio > 1 {
		return &Error{Field: "transport.breaker_failure_ratio", Message: "must be between 0 and 1"}
	}
	return nil
}

func (c *Config) validateStore() error {
	s := c.Store
	switch s.Backend {
	case store.BackendBadger:
		if s.Path == "" {
			return &Error{Field: "store.path", Message: "is required for the badger backend"}
		}
	case store.BackendRedis:
		if s.RedisURL == "" {
			return &Error{Field: "store.redis_url", Message: "REDIS_URL is required for the redis backend"}
		}
	case store.BackendMemory:
	default:
		return &Error{Field: "store.backend", Message: fmt.Sprintf("must be one of: %s, %s, %s",
			store.BackendBadger, store.BackendRedis, store.BackendMemory)}
	}
	return nil
}

func (c *Config) validateAgent() error {
	a := c.Agent
	if a.ListenAddr != "" {
		if _, _, err := net.SplitHostPort(a.ListenAddr); err != nil {
			return &Error{Field: "agent.listen_addr", Message: "must be host:port"}
		}
	}
	if a.RateLimitRequests < 0 {
		return &Error{Field: "agent.rate_limit_requests", Message: "must not be negative"}
	}
	if a.RateLimitRequests > 0 && a.RateLimitWindow < time.Second {
		return &Error{Field: "agent.rate_limit_window", Message: "must be at least 1 second"}
	}
	if a.ProbeTarget != "" && !strings.EqualFold(a.ProbeTarget, "off") {
		if _, _, err := net.SplitHostPort(a.ProbeTarget); err != nil {
			return &Error{Field: "agent.probe_target", Message: "must be host:port or off"}
		}
	}
	if a.ProbeInterval < 0 || a.ProbeTimeout < 0 {
		return &Error{Field: "agent.probe_interval", Message: "must not be negative"}
	}
	return nil
}

var validLogFormats = map[string]bool{
	"":        true,
	"json":    true,
	"console": true,
}

func (c *Config) validateLogging() error {
	if !logging.ValidLevel(c.Logging.Level) {
		return &Error{Field: "logging.level", Message: "LOG_LEVEL must be one of: trace, debug, info, warn, error"}
	}
	if !validLogFormats[c.Logging.Format] {
		return &Error{Field: "logging.format", Message: "LOG_FORMAT must be one of: json, console"}
	}
	return nil
}
