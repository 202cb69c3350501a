// Dealerlink - Car Marketplace Client Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dealerlink

package lifecycle

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/dealerlink/internal/logging"
)

// SignalSource turns process signals into app-state notifications:
// SIGUSR1 means the app went to the background, SIGUSR2 that it returned
// to the foreground. The mobile shell sends these to the agent process.
type SignalSource struct {
	feed *Feed[AppState]
	r    runner

	// notify and stopNotify default to signal.Notify/signal.Stop.
	notify     func(c chan<- os.Signal, sig ...os.Signal)
	stopNotify func(c chan<- os.Signal)
}

// NewSignalSource publishes into feed.
func NewSignalSource(feed *Feed[AppState]) *SignalSource {
	return &SignalSource{
		feed:       feed,
		notify:     signal.Notify,
		stopNotify: signal.Stop,
	}
}

// Start begins listening. It returns immediately.
func (s *SignalSource) Start(ctx context.Context) error {
	if s.r.start(ctx, s.run) {
		logging.Info().Msg("Lifecycle signal source started")
	}
	return nil
}

// Stop stops listening and waits for the listener to exit.
func (s *SignalSource) Stop() {
	if s.r.stop() {
		logging.Info().Msg("Lifecycle signal source stopped")
	}
}

func (s *SignalSource) IsRunning() bool {
	return s.r.isRunning()
}

func (s *SignalSource) run(ctx context.Context) {
	ch := make(chan os.Signal, 4)
	s.notify(ch, syscall.SIGUSR1, syscall.SIGUSR2)
	defer s.stopNotify(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-ch:
			state, ok := signalState(sig)
			if !ok {
				continue
			}
			logging.Debug().Str("signal", sig.String()).Str("state", state.String()).Msg("App state signal received")
			s.feed.Publish(state)
		}
	}
}

func signalState(sig os.Signal) (AppState, bool) {
	switch sig {
	case syscall.SIGUSR1:
		return AppBackground, true
	case syscall.SIGUSR2:
		return AppActive, true
	default:
		return AppActive, false
	}
}
