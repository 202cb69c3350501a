// Dealerlink - Car Marketplace Client Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dealerlink

package analytics

import (
	"context"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/dealerlink/internal/lifecycle"
	"github.com/tomtom215/dealerlink/internal/logging"
	"github.com/tomtom215/dealerlink/internal/store"
	"github.com/tomtom215/dealerlink/internal/transport"
)

// sessionStartRequest is the body of POST /api/analytics/session/start.
type sessionStartRequest struct {
	identity
	EntryScreen string `json:"entryScreen"`
}

// sessionEndRequest is the body of POST /api/analytics/session/end.
type sessionEndRequest struct {
	identity
	ExitScreen string `json:"exitScreen"`
}

// sessionRecord is stored under store.SessionKey while a session is active.
type sessionRecord struct {
	SessionID    string `json:"sessionId"`
	SessionStart string `json:"sessionStart"`
	City         string `json:"city,omitempty"`
}

// newSessionID returns "session_<unix millis>_<9 base-36 chars>".
func newSessionID(now time.Time) string {
	u := uuid.New()
	suffix := strconv.FormatUint(binary.BigEndian.Uint64(u[:8]), 36)
	if len(suffix) < 9 {
		suffix = strings.Repeat("0", 9-len(suffix)) + suffix
	}
	return "session_" + strconv.FormatInt(now.UnixMilli(), 10) + "_" + suffix[len(suffix)-9:]
}

// Initialize starts a session. It is a no-op when a session is already
// active. On failure the service stays uninitialized and keeps buffering
// Track calls; the error is only for the caller's logs.
func (s *Service) Initialize(ctx context.Context, city string) error {
	s.initMu.Lock()
	defer s.initMu.Unlock()

	s.mu.Lock()
	if s.initialized {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	info, err := s.devices.Info(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Analytics initialization failed: device info unavailable")
		return fmt.Errorf("device info: %w", err)
	}

	now := s.clock.Now()
	sessionID := newSessionID(now)

	s.mu.Lock()
	s.sessionID = sessionID
	s.sessionStart = now
	s.lastDuration = 0
	s.city = city
	s.device = info
	s.dedup.Reset()
	s.aggregates.reset()
	s.backoff.Reset()
	s.retryCount = 0
	s.nextRetryDelay = 0
	entryScreen := s.currentScreen
	start := sessionStartRequest{identity: s.identityLocked(), EntryScreen: entryScreen}
	s.mu.Unlock()

	// Notifications published from here on are recorded by the handlers
	// even though the session is not live yet.
	s.subscribe()

	recovered := s.loadPersistedQueue(ctx)
	s.writeSessionRecord(ctx, sessionID, now, city)

	if err := s.sender.Post(ctx, transport.PathSessionStart, start); err != nil {
		s.log.Warn().Err(err).Msg("Session start notification failed")
	}

	s.mu.Lock()
	s.syncFeedsLocked()
	s.initialized = true
	if s.appState == lifecycle.AppActive {
		s.startTimerLocked()
	}
	s.replayPendingLocked(s.clock.Now())
	background := s.appState == lifecycle.AppBackground && len(s.queue) > 0
	s.mu.Unlock()

	if background {
		s.persistQueue(ctx)
	}

	logging.Info().
		Str("component", "analytics").
		Str("session_id", logging.RedactSessionID(sessionID)).
		Str("device_type", info.DeviceType).
		Str("app_version", info.AppVersion).
		Int("recovered_events", recovered).
		Msg("Analytics session started")
	return nil
}

// syncFeedsLocked adopts the latest published states. Without a feed the
// state last passed to the handlers is kept. s.mu must be held.
func (s *Service) syncFeedsLocked() {
	if s.appFeed != nil {
		if st, ok := s.appFeed.Last(); ok {
			s.desiredState = st
		}
	}
	s.appState = s.desiredState
	if s.connFeed != nil {
		if c, ok := s.connFeed.Last(); ok {
			s.connectivity = c
		}
	}
}

func (s *Service) subscribe() {
	var unsubs []func()
	if s.appFeed != nil {
		unsubs = append(unsubs, s.appFeed.Subscribe(s.HandleAppState))
	}
	if s.connFeed != nil {
		unsubs = append(unsubs, s.connFeed.Subscribe(s.HandleConnectivity))
	}
	s.mu.Lock()
	s.unsubscribe = append(s.unsubscribe, unsubs...)
	s.mu.Unlock()
}

// EndSession sends a final batch and the session end notification, stops
// all timers and marks the service uninitialized. Events still queued are
// persisted for the next session.
func (s *Service) EndSession(ctx context.Context) {
	s.initMu.Lock()
	defer s.initMu.Unlock()

	s.mu.Lock()
	if !s.initialized {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	result := s.flush(ctx, triggerFinal)

	s.mu.Lock()
	end := sessionEndRequest{identity: s.identityLocked(), ExitScreen: s.currentScreen}
	sessionID := s.sessionID
	s.mu.Unlock()

	if err := s.sender.Post(ctx, transport.PathSessionEnd, end); err != nil {
		s.log.Warn().Err(err).Msg("Session end notification failed")
	}

	s.mu.Lock()
	s.stopAllTimersLocked()
	unsubs := s.unsubscribe
	s.unsubscribe = nil
	s.initialized = false
	s.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}

	s.persistQueue(ctx)
	if err := s.store.Remove(ctx, store.SessionKey); err != nil {
		s.log.Warn().Err(err).Msg("Failed to remove session record")
	}

	logging.Info().
		Str("component", "analytics").
		Str("session_id", logging.RedactSessionID(sessionID)).
		Str("final_flush", result.String()).
		Int("remaining_events", s.QueueSize()).
		Msg("Analytics session ended")
}

func (s *Service) writeSessionRecord(ctx context.Context, sessionID string, start time.Time, city string) {
	data, err := json.Marshal(sessionRecord{
		SessionID:    sessionID,
		SessionStart: formatTimestamp(start),
		City:         city,
	})
	if err == nil {
		err = s.store.Set(ctx, store.SessionKey, string(data))
	}
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to write session record")
	}
}

// HandleAppState receives app-state notifications. Changes settle after
// AppStateDebounce; a newer notification restarts the wait, so only the last
// state within the window takes effect. Before Initialize completes the state
// is only recorded and becomes the session's starting state.
func (s *Service) HandleAppState(state lifecycle.AppState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.desiredState = state
	if !s.initialized {
		return
	}

	s.stateGen++
	if s.stateTimer != nil {
		s.stateTimer.Stop()
	}
	gen := s.stateGen
	s.stateTimer = s.clock.AfterFunc(s.cfg.AppStateDebounce, func() {
		s.settleAppState(gen)
	}, "app-state")
}

func (s *Service) settleAppState(gen uint64) {
	s.mu.Lock()
	if gen != s.stateGen || !s.initialized {
		s.mu.Unlock()
		return
	}
	s.stateTimer = nil
	prev := s.appState
	next, effects := lifecycle.NextAppState(s.appState, s.desiredState, len(s.queue))
	s.appState = next
	s.mu.Unlock()

	if len(effects) == 0 {
		return
	}
	s.log.Info().Str("from", prev.String()).Str("to", next.String()).Msg("App state changed")
	s.applyEffects(s.ctx, effects)
}

// HandleConnectivity receives reachability notifications. Recovering from
// offline with queued events flushes right away.
func (s *Service) HandleConnectivity(c lifecycle.Connectivity) {
	s.mu.Lock()
	prev := s.connectivity
	next, effects := lifecycle.NextConnectivity(s.connectivity, c, len(s.queue))
	s.connectivity = next
	initialized := s.initialized
	s.mu.Unlock()

	if prev != next {
		s.log.Info().Str("from", prev.String()).Str("to", next.String()).Msg("Connectivity changed")
	}
	if !initialized {
		return
	}
	for _, e := range effects {
		if e == lifecycle.EffectFlush {
			s.goFlush(triggerReconnect)
		}
	}
}

func (s *Service) applyEffects(ctx context.Context, effects []lifecycle.Effect) {
	for _, e := range effects {
		switch e {
		case lifecycle.EffectRecordBackground:
			s.Track(EventAppBackground, TargetNone, "", nil)
		case lifecycle.EffectRecordForeground:
			s.Track(EventAppForeground, TargetNone, "", nil)
		case lifecycle.EffectStopTimer:
			s.mu.Lock()
			s.stopTimerLocked()
			s.stopRetryLocked()
			s.mu.Unlock()
		case lifecycle.EffectStartTimer:
			s.mu.Lock()
			s.startTimerLocked()
			s.mu.Unlock()
		case lifecycle.EffectFlush:
			s.flush(ctx, triggerLifecycle)
		case lifecycle.EffectPersist:
			s.persistQueue(ctx)
		}
	}
}
