// Dealerlink - Car Marketplace Client Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dealerlink

package analytics

import "time"

type aggregate struct {
	windowStart time.Time
	count       int
	rep         *Event
}

// aggregateWindow collapses repeats of high-volume events into one queued
// representative per fixed window. It is owned by Service and guarded by
// Service.mu.
type aggregateWindow struct {
	window  time.Duration
	entries map[string]*aggregate
}

func newAggregateWindow(window time.Duration) *aggregateWindow {
	return &aggregateWindow{window: window, entries: make(map[string]*aggregate)}
}

// absorb folds an occurrence of key at now into the queued representative
// and reports true, or reports false when the caller must enqueue ev as a
// new representative. ev is recorded as that representative.
//
// A representative that already left the queue cannot be updated, so the
// repeat starts a fresh count.
func (a *aggregateWindow) absorb(key string, now time.Time, ev *Event) bool {
	start := now.Truncate(a.window)
	if cur, ok := a.entries[key]; ok && cur.windowStart.Equal(start) && cur.rep.queued {
		cur.count++
		if cur.rep.Metadata == nil {
			cur.rep.Metadata = make(map[string]any, 2)
		}
		cur.rep.Metadata["aggregated"] = true
		cur.rep.Metadata["count"] = cur.count
		return true
	}
	a.entries[key] = &aggregate{windowStart: start, count: 1, rep: ev}
	return false
}

// Sweep drops entries whose window has closed at now.
func (a *aggregateWindow) Sweep(now time.Time) int {
	removed := 0
	for k, e := range a.entries {
		if !now.Before(e.windowStart.Add(a.window)) {
			delete(a.entries, k)
			removed++
		}
	}
	return removed
}

func (a *aggregateWindow) Len() int {
	return len(a.entries)
}

func (a *aggregateWindow) reset() {
	a.entries = make(map[string]*aggregate)
}
