// Dealerlink - Car Marketplace Client Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dealerlink

package lifecycle

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/tomtom215/dealerlink/internal/logging"
)

// DialFunc opens a connection; net.Dialer.DialContext satisfies it.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// ProberConfig configures a Prober.
type ProberConfig struct {
	// Target is a host:port dialed over TCP.
	Target   string
	Interval time.Duration
	Timeout  time.Duration
}

// Prober periodically dials Target and publishes Online or Offline into a
// feed whenever reachability changes.
type Prober struct {
	cfg   ProberConfig
	feed  *Feed[Connectivity]
	clock quartz.Clock
	dial  DialFunc
	r     runner

	mu   sync.Mutex
	last Connectivity
}

// NewProber returns a prober. A nil dial uses net.Dialer; a nil clock uses
// the real clock.
func NewProber(cfg ProberConfig, feed *Feed[Connectivity], clock quartz.Clock, dial DialFunc) *Prober {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if clock == nil {
		clock = quartz.NewReal()
	}
	if dial == nil {
		d := &net.Dialer{}
		dial = d.DialContext
	}
	return &Prober{cfg: cfg, feed: feed, clock: clock, dial: dial}
}

// Start probes once immediately and then every Interval.
func (p *Prober) Start(ctx context.Context) error {
	if p.r.start(ctx, p.run) {
		logging.Info().
			Str("target", p.cfg.Target).
			Dur("interval", p.cfg.Interval).
			Msg("Connectivity prober started")
	}
	return nil
}

func (p *Prober) Stop() {
	if p.r.stop() {
		logging.Info().Msg("Connectivity prober stopped")
	}
}

func (p *Prober) IsRunning() bool {
	return p.r.isRunning()
}

// Last returns the most recent probe result.
func (p *Prober) Last() Connectivity {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

func (p *Prober) run(ctx context.Context) {
	ticker := p.clock.NewTicker(p.cfg.Interval, "prober")
	defer ticker.Stop()

	p.Probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Probe(ctx)
		}
	}
}

// Probe dials the target once and publishes the result if it changed.
func (p *Prober) Probe(ctx context.Context) Connectivity {
	dialCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	state := Online
	conn, err := p.dial(dialCtx, "tcp", p.cfg.Target)
	if err != nil {
		if ctx.Err() != nil {
			return p.Last()
		}
		state = Offline
	} else {
		_ = conn.Close()
	}

	p.mu.Lock()
	changed := state != p.last
	p.last = state
	p.mu.Unlock()

	if changed {
		ev := logging.Info().Str("target", p.cfg.Target).Str("state", state.String())
		if err != nil {
			ev = ev.Err(err)
		}
		ev.Msg("Connectivity changed")
		p.feed.Publish(state)
	}
	return state
}
