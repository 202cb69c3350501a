// Dealerlink - Car Marketplace Client Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dealerlink

// Package cache provides the small time-indexed structures the telemetry
// pipeline uses to suppress duplicate events.
//
// Nothing in this package reads the wall clock. Every operation takes the
// current time as an argument so callers can drive it from an injected clock
// and tests can assert expiry deterministically.
package cache

import (
	"sync"
	"time"
)

type windowEntry struct {
	key  string
	at   time.Time
	prev *windowEntry
	next *windowEntry
}

// TimeWindow remembers when each key was last admitted.
//
// Entries live in a doubly linked list ordered by admission time (head.next is
// the newest) backed by a map for O(1) lookup. Capacity overflow evicts the
// oldest entry; Sweep drops everything older than the horizon. Callers must
// pass non-decreasing times, which keeps list order equal to time order.
type TimeWindow struct {
	mu       sync.Mutex
	capacity int
	horizon  time.Duration
	items    map[string]*windowEntry
	head     *windowEntry
	tail     *windowEntry

	admitted   int64
	suppressed int64
	evicted    int64
}

// NewTimeWindow creates a window holding at most capacity keys, each for at
// most horizon.
func NewTimeWindow(capacity int, horizon time.Duration) *TimeWindow {
	if capacity <= 0 {
		capacity = 1024
	}
	if horizon <= 0 {
		horizon = 10 * time.Second
	}
	w := &TimeWindow{
		capacity: capacity,
		horizon:  horizon,
		items:    make(map[string]*windowEntry),
		head:     &windowEntry{},
		tail:     &windowEntry{},
	}
	w.head.next = w.tail
	w.tail.prev = w.head
	return w
}

// Admit reports whether key may pass at now. A key admitted less than within
// ago is suppressed and its recorded time is left untouched, so a burst of
// calls cannot keep extending the window. Otherwise now is recorded.
func (w *TimeWindow) Admit(key string, now time.Time, within time.Duration) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if e, ok := w.items[key]; ok {
		if now.Sub(e.at) < within {
			w.suppressed++
			return false
		}
		e.at = now
		w.unlink(e)
		w.pushFront(e)
		w.admitted++
		return true
	}

	e := &windowEntry{key: key, at: now}
	w.pushFront(e)
	w.items[key] = e
	for len(w.items) > w.capacity {
		w.removeEntry(w.tail.prev)
		w.evicted++
	}
	w.admitted++
	return true
}

// Sweep removes entries admitted more than horizon before now and returns how
// many were removed.
func (w *TimeWindow) Sweep(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	removed := 0
	for e := w.tail.prev; e != w.head; {
		if now.Sub(e.at) <= w.horizon {
			break
		}
		prev := e.prev
		w.removeEntry(e)
		removed++
		e = prev
	}
	return removed
}

// Len returns the number of tracked keys.
func (w *TimeWindow) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.items)
}

// Reset forgets every key.
func (w *TimeWindow) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.items = make(map[string]*windowEntry)
	w.head.next = w.tail
	w.tail.prev = w.head
}

// WindowStats is a point-in-time copy of the counters.
type WindowStats struct {
	Size       int
	Admitted   int64
	Suppressed int64
	Evicted    int64
}

func (w *TimeWindow) Stats() WindowStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return WindowStats{
		Size:       len(w.items),
		Admitted:   w.admitted,
		Suppressed: w.suppressed,
		Evicted:    w.evicted,
	}
}

func (w *TimeWindow) pushFront(e *windowEntry) {
	e.prev = w.head
	e.next = w.head.next
	w.head.next.prev = e
	w.head.next = e
}

func (w *TimeWindow) unlink(e *windowEntry) {
	e.prev.next = e.next
	e.next.prev = e.prev
}

func (w *TimeWindow) removeEntry(e *windowEntry) {
	if e == w.head || e == w.tail {
		return
	}
	w.unlink(e)
	delete(w.items, e.key)
}
