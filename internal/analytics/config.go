// Dealerlink - Car Marketplace Client Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dealerlink

package analytics

import "time"

// Config tunes the pipeline. Zero fields take DefaultConfig values.
type Config struct {
	// BatchSize is the most events sent per request, and the queue length
	// that triggers an immediate flush.
	BatchSize int
	// MaxQueueSize caps the queue; overflow drops the oldest events.
	MaxQueueSize int

	// FlushInterval is the periodic timer cadence.
	FlushInterval time.Duration
	// MinFlushInterval is the minimum spacing between sends started by
	// Flush, the periodic timer and size triggers.
	MinFlushInterval time.Duration
	// FollowUpDelay spaces back-to-back batches when a backlog remains.
	FollowUpDelay time.Duration

	// DebounceWindow suppresses identical events fired in quick succession.
	DebounceWindow time.Duration
	// DedupHorizon is how long dedup entries are kept before a sweep.
	DedupHorizon time.Duration
	// DedupCapacity bounds the dedup window.
	DedupCapacity int
	// AggregationWindow is the fixed bucket repeats are collapsed into.
	AggregationWindow time.Duration
	// AggregatedTypes are collapsed within AggregationWindow.
	AggregatedTypes []EventType
	// SweepThreshold is the map size above which Track sweeps stale entries.
	SweepThreshold int

	// AppStateDebounce delays settling an app-state change.
	AppStateDebounce time.Duration

	// RetryBase, RetryMultiplier and RetryMax shape the retry backoff.
	RetryBase       time.Duration
	RetryMultiplier float64
	RetryMax        time.Duration

	// PendingLimit caps calls buffered before Initialize; PendingTTL drops
	// buffered calls older than this at replay.
	PendingLimit int
	PendingTTL   time.Duration
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{
		BatchSize:         20,
		MaxQueueSize:      500,
		FlushInterval:     30 * time.Second,
		MinFlushInterval:  5 * time.Second,
		FollowUpDelay:     time.Second,
		DebounceWindow:    500 * time.Millisecond,
		DedupHorizon:      10 * time.Second,
		DedupCapacity:     1024,
		AggregationWindow: time.Minute,
		AggregatedTypes: []EventType{
			EventCarView, EventImageView, EventImageSwipe, EventSearch, EventScreenView,
		},
		SweepThreshold:   100,
		AppStateDebounce: time.Second,
		RetryBase:        5 * time.Second,
		RetryMultiplier:  1.5,
		RetryMax:         2 * time.Minute,
		PendingLimit:     100,
		PendingTTL:       5 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = d.MaxQueueSize
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = d.FlushInterval
	}
	if c.MinFlushInterval <= 0 {
		c.MinFlushInterval = d.MinFlushInterval
	}
	if c.FollowUpDelay <= 0 {
		c.FollowUpDelay = d.FollowUpDelay
	}
	if c.DebounceWindow <= 0 {
		c.DebounceWindow = d.DebounceWindow
	}
	if c.DedupHorizon <= 0 {
		c.DedupHorizon = d.DedupHorizon
	}
	if c.DedupCapacity <= 0 {
		c.DedupCapacity = d.DedupCapacity
	}
	if c.AggregationWindow <= 0 {
		c.AggregationWindow = d.AggregationWindow
	}
	if c.AggregatedTypes == nil {
		c.AggregatedTypes = d.AggregatedTypes
	}
	if c.SweepThreshold <= 0 {
		c.SweepThreshold = d.SweepThreshold
	}
	if c.AppStateDebounce <= 0 {
		c.AppStateDebounce = d.AppStateDebounce
	}
	if c.RetryBase <= 0 {
		c.RetryBase = d.RetryBase
	}
	if c.RetryMultiplier < 1 {
		c.RetryMultiplier = d.RetryMultiplier
	}
	if c.RetryMax <= 0 {
		c.RetryMax = d.RetryMax
	}
	if c.PendingLimit <= 0 {
		c.PendingLimit = d.PendingLimit
	}
	if c.PendingTTL <= 0 {
		c.PendingTTL = d.PendingTTL
	}
	return c
}
