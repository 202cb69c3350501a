// Dealerlink - Car Marketplace Client Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dealerlink

package lifecycle

import (
	"context"
	"sync"
)

// runner owns the Start/Stop bookkeeping for a background loop. Stop waits
// for the loop goroutine to exit; a Start racing a Stop waits for the Stop.
type runner struct {
	mu       sync.Mutex
	running  bool
	stopping bool
	cancel   context.CancelFunc
	stopDone chan struct{}
}

// start launches loop unless already running. It reports whether a new loop
// was started.
func (r *runner) start(ctx context.Context, loop func(ctx context.Context)) bool {
	r.mu.Lock()

	for r.stopping {
		stopDone := r.stopDone
		r.mu.Unlock()
		<-stopDone
		r.mu.Lock()
	}

	if r.running {
		r.mu.Unlock()
		return false
	}

	loopCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true
	r.stopDone = make(chan struct{})
	done := r.stopDone
	r.mu.Unlock()

	go func() {
		defer close(done)
		loop(loopCtx)
	}()
	return true
}

// stop cancels the loop and waits for it. It reports whether a loop was
// running.
func (r *runner) stop() bool {
	r.mu.Lock()
	if !r.running || r.stopping {
		r.mu.Unlock()
		return false
	}
	r.cancel()
	r.running = false
	r.stopping = true
	stopDone := r.stopDone
	r.mu.Unlock()

	<-stopDone

	r.mu.Lock()
	r.stopping = false
	r.mu.Unlock()
	return true
}

func (r *runner) isRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}
