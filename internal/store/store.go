// Dealerlink - Car Marketplace Client Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dealerlink

// Package store provides the durable key-value store the telemetry pipeline
// mirrors its queue into.
//
// The contract is deliberately small: string values under string keys, with
// Get reporting ErrNotFound for absent keys. Three backends implement it:
//
//   - BadgerStore: embedded BadgerDB, the default for a single agent process
//   - RedisStore: shared Redis, for agents running on ephemeral hosts
//   - MemoryStore: process-local map, for tests and the "memory" backend
//
// Use Open to build the backend selected in configuration.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Fixed keys shared with the mobile client.
const (
	// QueueKey holds the JSON-encoded event queue mirror.
	QueueKey = "analytics_event_queue"

	// SessionKey holds metadata about the active session.
	SessionKey = "analytics_session"

	// AuthTokenKey holds the bearer credential written by the login flow.
	AuthTokenKey = "auth_token"
)

// Store is a string key-value store.
type Store interface {
	// Get returns ErrNotFound when key is absent.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	// Remove is a no-op for absent keys.
	Remove(ctx context.Context, key string) error
	Close() error
}

// Errors
var (
	// ErrNotFound is returned by Get when the key does not exist.
	ErrNotFound = errors.New("key not found")

	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("store is closed")

	// ErrEmptyKey is returned when an empty key is passed.
	ErrEmptyKey = errors.New("key cannot be empty")
)

// Backend names accepted by Open.
const (
	BackendBadger = "badger"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Options selects and tunes a backend.
type Options struct {
	Backend string

	// Badger
	Path         string
	SyncWrites   bool
	Compression  bool
	CloseTimeout time.Duration

	// Redis
	RedisURL string
	Prefix   string
}

// Open builds the backend named by opts.Backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case BackendBadger, "":
		s, err := OpenBadger(opts)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendRedis:
		s, err := OpenRedis(ctx, opts)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
}
