// Dealerlink - Car Marketplace Client Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dealerlink

package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestTimeWindow_AdmitSuppressesWithinWindow(t *testing.T) {
	w := NewTimeWindow(10, time.Minute)

	if !w.Admit("CAR_VIEW|CAR|car123", base, 500*time.Millisecond) {
		t.Fatal("first call should be admitted")
	}
	if w.Admit("CAR_VIEW|CAR|car123", base.Add(300*time.Millisecond), 500*time.Millisecond) {
		t.Error("call inside the window should be suppressed")
	}
	if !w.Admit("CAR_VIEW|CAR|car123", base.Add(600*time.Millisecond), 500*time.Millisecond) {
		t.Error("call after the window should be admitted")
	}
}

func TestTimeWindow_SuppressedCallDoesNotExtendWindow(t *testing.T) {
	w := NewTimeWindow(10, time.Minute)
	within := 500 * time.Millisecond

	w.Admit("k", base, within)
	w.Admit("k", base.Add(400*time.Millisecond), within) // suppressed

	got, ok := lastSeen(w, "k")
	if !ok || !got.Equal(base) {
		t.Fatalf("LastSeen = %v, %v; want %v", got, ok, base)
	}
	if !w.Admit("k", base.Add(500*time.Millisecond), within) {
		t.Error("window should be measured from the admitted call")
	}
}

func TestTimeWindow_DistinctKeys(t *testing.T) {
	w := NewTimeWindow(10, time.Minute)
	within := time.Second

	if !w.Admit("CAR_VIEW|CAR|a", base, within) || !w.Admit("CAR_VIEW|CAR|b", base, within) {
		t.Error("different keys must not suppress each other")
	}
	if w.Len() != 2 {
		t.Errorf("Len = %d, want 2", w.Len())
	}
}

func TestTimeWindow_CapacityEvictsOldest(t *testing.T) {
	w := NewTimeWindow(3, time.Hour)
	for i := 0; i < 4; i++ {
		w.Admit(fmt.Sprintf("k%d", i), base.Add(time.Duration(i)*time.Second), time.Second)
	}

	if w.Len() != 3 {
		t.Fatalf("Len = %d, want 3", w.Len())
	}
	if _, ok := lastSeen(w, "k0"); ok {
		t.Error("k0 should have been evicted")
	}
	if _, ok := lastSeen(w, "k3"); !ok {
		t.Error("k3 should be present")
	}
	if got := w.Stats().Evicted; got != 1 {
		t.Errorf("Evicted = %d, want 1", got)
	}
}

func TestTimeWindow_Sweep(t *testing.T) {
	w := NewTimeWindow(100, 10*time.Second)
	w.Admit("old", base, time.Second)
	w.Admit("mid", base.Add(5*time.Second), time.Second)
	w.Admit("new", base.Add(9*time.Second), time.Second)

	tests := []struct {
		name    string
		now     time.Time
		removed int
		left    int
	}{
		{"nothing stale yet", base.Add(10 * time.Second), 0, 3},
		{"oldest past horizon", base.Add(11 * time.Second), 1, 2},
		{"all stale", base.Add(time.Minute), 2, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := w.Sweep(tt.now); got != tt.removed {
				t.Errorf("Sweep removed %d, want %d", got, tt.removed)
			}
			if w.Len() != tt.left {
				t.Errorf("Len = %d, want %d", w.Len(), tt.left)
			}
		})
	}
}

func TestTimeWindow_ReAdmitMovesToFront(t *testing.T) {
	w := NewTimeWindow(100, 10*time.Second)
	w.Admit("a", base, time.Second)
	w.Admit("b", base.Add(time.Second), time.Second)
	w.Admit("a", base.Add(8*time.Second), time.Second)

	// b is now the oldest; sweeping at base+12s must drop b but keep a.
	if got := w.Sweep(base.Add(12 * time.Second)); got != 1 {
		t.Fatalf("Sweep removed %d, want 1", got)
	}
	if _, ok := lastSeen(w, "a"); !ok {
		t.Error("a should survive the sweep")
	}
}

func TestTimeWindow_Reset(t *testing.T) {
	w := NewTimeWindow(10, time.Minute)
	w.Admit("a", base, time.Second)
	w.Reset()
	if w.Len() != 0 {
		t.Errorf("Len = %d after Reset", w.Len())
	}
	if !w.Admit("a", base, time.Second) {
		t.Error("key should be admitted after Reset")
	}
}

func TestTimeWindow_Concurrent(t *testing.T) {
	w := NewTimeWindow(50, time.Minute)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				w.Admit(fmt.Sprintf("k%d", i%60), base, time.Second)
				w.Sweep(base)
			}
		}(g)
	}
	wg.Wait()
	if w.Len() > 50 {
		t.Errorf("Len = %d exceeds capacity", w.Len())
	}
}

func lastSeen(w *TimeWindow, key string) (time.Time, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if e, ok := w.items[key]; ok {
		return e.at, true
	}
	return time.Time{}, false
}
