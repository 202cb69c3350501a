// Dealerlink - Car Marketplace Client Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dealerlink

package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/tomtom215/dealerlink/internal/logging"
)

// BadgerStore implements Store on an embedded BadgerDB.
//
// With SyncWrites enabled every Set is fsynced before returning, which is
// what lets the queue mirror survive the process being killed right after a
// background transition.
type BadgerStore struct {
	db   *badger.DB
	opts Options

	totalWrites  atomic.Int64
	totalReads   atomic.Int64
	totalRemoves atomic.Int64

	mu     sync.RWMutex
	closed bool
}

// OpenBadger opens (or creates) a BadgerDB at opts.Path.
func OpenBadger(opts Options) (*BadgerStore, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("badger store: path is required")
	}

	bopts := badger.DefaultOptions(opts.Path)
	bopts.SyncWrites = opts.SyncWrites
	if opts.Compression {
		bopts.Compression = options.Snappy
	}
	// The queue mirror is a handful of small values.
	bopts.MemTableSize = 8 << 20
	bopts.ValueLogFileSize = 16 << 20
	bopts.NumCompactors = 2

	// Reduce logging verbosity
	bopts.Logger = nil

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().
		Str("path", opts.Path).
		Bool("sync_writes", opts.SyncWrites).
		Msg("Badger store opened")

	return &BadgerStore{db: db, opts: opts}, nil
}

func (s *BadgerStore) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Get returns the value stored under key.
func (s *BadgerStore) Get(_ context.Context, key string) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}
	if err := s.checkOpen(); err != nil {
		return "", err
	}

	start := time.Now()
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	s.totalReads.Add(1)

	if errors.Is(err, badger.ErrKeyNotFound) {
		recordOp(BackendBadger, "get", start, nil)
		return "", ErrNotFound
	}
	recordOp(BackendBadger, "get", start, err)
	if err != nil {
		return "", fmt.Errorf("badger get %q: %w", key, err)
	}
	return string(value), nil
}

// Set stores value under key.
func (s *BadgerStore) Set(_ context.Context, key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if err := s.checkOpen(); err != nil {
		return err
	}

	start := time.Now()
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), []byte(value))
	})
	recordOp(BackendBadger, "set", start, err)
	if err != nil {
		return fmt.Errorf("badger set %q: %w", key, err)
	}
	s.totalWrites.Add(1)
	return nil
}

// Remove deletes key. Deleting an absent key is not an error.
func (s *BadgerStore) Remove(_ context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if err := s.checkOpen(); err != nil {
		return err
	}

	start := time.Now()
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	recordOp(BackendBadger, "remove", start, err)
	if err != nil {
		return fmt.Errorf("badger remove %q: %w", key, err)
	}
	s.totalRemoves.Add(1)
	return nil
}

// RunGC reclaims value-log space until BadgerDB reports nothing to rewrite.
func (s *BadgerStore) RunGC() error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	for {
		err := s.db.RunValueLogGC(0.5)
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run GC: %w", err)
		}
	}
}

// BadgerStats are lifetime operation counters.
type BadgerStats struct {
	Reads   int64
	Writes  int64
	Removes int64
}

func (s *BadgerStore) Stats() BadgerStats {
	return BadgerStats{
		Reads:   s.totalReads.Load(),
		Writes:  s.totalWrites.Load(),
		Removes: s.totalRemoves.Load(),
	}
}

// Close closes the database, giving up after opts.CloseTimeout (default 10s).
func (s *BadgerStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	timeout := s.opts.CloseTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	s.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- s.db.Close()
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("close BadgerDB: %w", err)
		}
		logging.Info().Msg("Badger store closed")
		return nil
	case <-time.After(timeout):
		logging.Warn().Dur("timeout", timeout).Msg("BadgerDB close timed out")
		return fmt.Errorf("badgerdb close timeout after %v", timeout)
	}
}
