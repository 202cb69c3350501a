// Dealerlink - Car Marketplace Client Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dealerlink

package analytics

import (
	"testing"
	"time"
)

func TestAggregateWindow_Absorb(t *testing.T) {
	a := newAggregateWindow(time.Minute)
	key := eventKey(EventImageSwipe, TargetImage, "img1")

	rep := &Event{EventType: EventImageSwipe, queued: true}
	if a.absorb(key, testBase, rep) {
		t.Fatal("first occurrence must become the representative")
	}
	for i := 1; i <= 4; i++ {
		if !a.absorb(key, testBase.Add(time.Duration(i)*time.Second), &Event{}) {
			t.Fatalf("repeat %d should be absorbed", i)
		}
	}
	if got := windowCount(a, key, testBase.Add(10*time.Second)); got != 5 {
		t.Errorf("count = %d, want 5", got)
	}
	if rep.Metadata["count"] != 5 || rep.Metadata["aggregated"] != true {
		t.Errorf("representative metadata = %v", rep.Metadata)
	}
}

func TestAggregateWindow_NewWindowStartsOver(t *testing.T) {
	a := newAggregateWindow(time.Minute)
	key := eventKey(EventSearch, TargetSearch, "corolla")

	first := &Event{queued: true}
	a.absorb(key, testBase.Add(50*time.Second), first)
	a.absorb(key, testBase.Add(55*time.Second), &Event{})

	next := &Event{queued: true}
	if a.absorb(key, testBase.Add(61*time.Second), next) {
		t.Error("occurrence in the next window must not be absorbed")
	}
	if got := windowCount(a, key, testBase.Add(61*time.Second)); got != 1 {
		t.Errorf("count in new window = %d, want 1", got)
	}
	if first.Metadata["count"] != 2 {
		t.Errorf("previous representative count = %v, want 2", first.Metadata["count"])
	}
}

func TestAggregateWindow_UnqueuedRepresentative(t *testing.T) {
	a := newAggregateWindow(time.Minute)
	key := eventKey(EventCarView, TargetCar, "car1")

	inFlight := &Event{queued: true}
	a.absorb(key, testBase, inFlight)
	inFlight.queued = false

	if a.absorb(key, testBase.Add(time.Second), &Event{queued: true}) {
		t.Error("an in-flight representative must not be updated")
	}
	if inFlight.Metadata != nil {
		t.Errorf("in-flight event was mutated: %v", inFlight.Metadata)
	}
}

func TestAggregateWindow_Sweep(t *testing.T) {
	a := newAggregateWindow(time.Minute)
	a.absorb("a", testBase, &Event{queued: true})
	a.absorb("b", testBase.Add(70*time.Second), &Event{queued: true})

	if got := a.Sweep(testBase.Add(59 * time.Second)); got != 0 {
		t.Errorf("Sweep before close removed %d", got)
	}
	if got := a.Sweep(testBase.Add(time.Minute)); got != 1 {
		t.Errorf("Sweep at close removed %d, want 1", got)
	}
	if a.Len() != 1 {
		t.Errorf("Len = %d, want 1", a.Len())
	}
}

func TestEventKeyAndTimestamp(t *testing.T) {
	if got := eventKey(EventCarView, TargetCar, "c1"); got != "CAR_VIEW|CAR|c1" {
		t.Errorf("eventKey = %q", got)
	}
	ts := formatTimestamp(time.Date(2026, 3, 1, 13, 4, 5, 678_000_000, time.FixedZone("CET", 3600)))
	if ts != "2026-03-01T12:04:05.678Z" {
		t.Errorf("formatTimestamp = %q", ts)
	}
}

func TestParseEventType(t *testing.T) {
	tests := []struct {
		in      string
		want    EventType
		wantErr bool
	}{
		{"CAR_VIEW", EventCarView, false},
		{"car_save", EventCarSave, false},
		{" APP_BACKGROUND ", EventAppBackground, false},
		{"CAR_BUY", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseEventType(tt.in)
			if (err != nil) != tt.wantErr || got != tt.want {
				t.Errorf("ParseEventType(%q) = %q, %v", tt.in, got, err)
			}
		})
	}

	if tt, err := ParseTargetType(""); err != nil || tt != TargetNone {
		t.Errorf("ParseTargetType(\"\") = %q, %v", tt, err)
	}
	if _, err := ParseTargetType("BOAT"); err == nil {
		t.Error("BOAT should be rejected")
	}
}

func TestConfigDefaults(t *testing.T) {
	c := Config{BatchSize: 5, RetryMultiplier: 0.5}.withDefaults()
	if c.BatchSize != 5 {
		t.Errorf("BatchSize = %d, want 5", c.BatchSize)
	}
	d := DefaultConfig()
	if c.MaxQueueSize != d.MaxQueueSize || c.FlushInterval != d.FlushInterval {
		t.Error("zero fields should take defaults")
	}
	if c.RetryMultiplier != d.RetryMultiplier {
		t.Errorf("RetryMultiplier = %v, want default", c.RetryMultiplier)
	}
}

// windowCount returns the running count for key in the window containing now.
func windowCount(a *aggregateWindow, key string, now time.Time) int {
	cur, ok := a.entries[key]
	if !ok || !cur.windowStart.Equal(now.Truncate(a.window)) {
		return 0
	}
	return cur.count
}
