// Dealerlink - Car Marketplace Client Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dealerlink

package store

import (
	"context"
	"errors"
	"testing"
)

// runContract exercises the behavior every backend must share.
func runContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get(missing) err = %v, want ErrNotFound", err)
		}
	})

	t.Run("set then get", func(t *testing.T) {
		if err := s.Set(ctx, QueueKey, `[{"eventType":"CAR_VIEW"}]`); err != nil {
			t.Fatalf("Set: %v", err)
		}
		got, err := s.Get(ctx, QueueKey)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got != `[{"eventType":"CAR_VIEW"}]` {
			t.Errorf("Get = %q", got)
		}
	})

	t.Run("overwrite", func(t *testing.T) {
		if err := s.Set(ctx, QueueKey, "[]"); err != nil {
			t.Fatalf("Set: %v", err)
		}
		if got, _ := s.Get(ctx, QueueKey); got != "[]" {
			t.Errorf("Get = %q, want []", got)
		}
	})

	t.Run("remove", func(t *testing.T) {
		if err := s.Remove(ctx, QueueKey); err != nil {
			t.Fatalf("Remove: %v", err)
		}
		if _, err := s.Get(ctx, QueueKey); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get after Remove err = %v", err)
		}
		if err := s.Remove(ctx, QueueKey); err != nil {
			t.Errorf("Remove of absent key: %v", err)
		}
	})

	t.Run("empty key", func(t *testing.T) {
		if err := s.Set(ctx, "", "x"); !errors.Is(err, ErrEmptyKey) {
			t.Errorf("Set(\"\") err = %v", err)
		}
	})

	t.Run("closed", func(t *testing.T) {
		if err := s.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
		if err := s.Set(ctx, SessionKey, "x"); !errors.Is(err, ErrClosed) {
			t.Errorf("Set after Close err = %v, want ErrClosed", err)
		}
		if _, err := s.Get(ctx, SessionKey); !errors.Is(err, ErrClosed) {
			t.Errorf("Get after Close err = %v, want ErrClosed", err)
		}
		if err := s.Close(); err != nil {
			t.Errorf("second Close: %v", err)
		}
	})
}

func TestMemoryStore(t *testing.T) {
	runContract(t, NewMemoryStore())
}

func TestBadgerStore(t *testing.T) {
	s, err := OpenBadger(Options{Path: t.TempDir(), SyncWrites: true})
	if err != nil {
		t.Fatalf("OpenBadger: %v", err)
	}
	runContract(t, s)
}

func TestBadgerStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := OpenBadger(Options{Path: dir, SyncWrites: true, Compression: true})
	if err != nil {
		t.Fatalf("OpenBadger: %v", err)
	}
	if err := s.Set(ctx, QueueKey, "persisted"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got := s.Stats().Writes; got != 1 {
		t.Errorf("Writes = %d, want 1", got)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := OpenBadger(Options{Path: dir})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	got, err := s2.Get(ctx, QueueKey)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "persisted" {
		t.Errorf("Get = %q, want persisted", got)
	}
	if err := s2.RunGC(); err != nil {
		t.Errorf("RunGC: %v", err)
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"memory", Options{Backend: BackendMemory}, false},
		{"badger", Options{Backend: BackendBadger, Path: t.TempDir()}, false},
		{"badger without path", Options{Backend: BackendBadger}, true},
		{"redis without url", Options{Backend: BackendRedis}, true},
		{"unknown", Options{Backend: "sqlite"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Open(ctx, tt.opts)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Open err = %v, wantErr %v", err, tt.wantErr)
			}
			if s != nil {
				_ = s.Close()
			}
		})
	}
}
