// Dealerlink - Car Marketplace Client Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dealerlink

package services

import (
	"context"
	"time"

	"github.com/coder/quartz"

	"github.com/tomtom215/dealerlink/internal/logging"
)

// TickFunc is one round of periodic maintenance. now is the tick time from
// the service's clock.
type TickFunc func(ctx context.Context, now time.Time) error

// TickerService runs a TickFunc on a fixed interval. It drives the explicit
// maintenance passes: dedup/aggregation sweeps and Badger value-log GC.
//
// A failing tick is logged and the loop continues; only cancellation ends
// Serve.
type TickerService struct {
	name     string
	interval time.Duration
	clock    quartz.Clock
	fn       TickFunc
}

// NewTickerService creates a ticker service. A nil clock uses the real clock.
func NewTickerService(name string, interval time.Duration, clock quartz.Clock, fn TickFunc) *TickerService {
	if clock == nil {
		clock = quartz.NewReal()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &TickerService{name: name, interval: interval, clock: clock, fn: fn}
}

// Serve implements suture.Service.
func (s *TickerService) Serve(ctx context.Context) error {
	ticker := s.clock.NewTicker(s.interval, s.name)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			if err := s.fn(ctx, now); err != nil {
				logging.Warn().Str("service", s.name).Err(err).Msg("Maintenance tick failed")
			}
		}
	}
}

func (s *TickerService) String() string {
	return s.name
}
