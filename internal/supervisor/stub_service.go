// Dealerlink - Car Marketplace Client Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dealerlink

package supervisor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrSimulated is returned by a StubService configured to fail.
var ErrSimulated = errors.New("simulated failure")

// StubService is a suture.Service for exercising restart behavior. Every
// Serve call is announced on Started; it then fails while failures remain and
// otherwise blocks until its context is canceled.
type StubService struct {
	name     string
	serves   atomic.Int32
	returns  atomic.Int32
	mu       sync.Mutex
	failures int
	err      error
	started  chan int32
}

// NewStubService creates a stub that runs until canceled.
func NewStubService(name string) *StubService {
	return &StubService{name: name, started: make(chan int32, 64)}
}

func (s *StubService) Serve(ctx context.Context) error {
	n := s.serves.Add(1)
	defer s.returns.Add(1)

	select {
	case s.started <- n:
	default:
	}

	s.mu.Lock()
	fail := s.failures > 0
	if fail {
		s.failures--
	}
	err := s.err
	s.mu.Unlock()

	if fail {
		return ErrSimulated
	}
	if err != nil {
		return err
	}
	<-ctx.Done()
	return ctx.Err()
}

// FailNext makes the next n Serve calls return ErrSimulated.
func (s *StubService) FailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = n
}

// ReturnError makes every Serve call return err once failures are exhausted.
func (s *StubService) ReturnError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Started receives the 1-based serve count each time Serve begins.
func (s *StubService) Started() <-chan int32 {
	return s.started
}

func (s *StubService) Serves() int32  { return s.serves.Load() }
func (s *StubService) Returns() int32 { return s.returns.Load() }

func (s *StubService) String() string {
	return s.name
}
