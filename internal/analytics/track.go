// Dealerlink - Car Marketplace Client Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dealerlink

package analytics

import (
	"fmt"
	"time"

	"github.com/tomtom215/dealerlink/internal/lifecycle"
)

// Track records an event. It never blocks on I/O and never fails: before
// Initialize the call is buffered, duplicates inside the debounce window are
// dropped, and repeats of aggregated types fold into one queued event.
func (s *Service) Track(eventType EventType, targetType TargetType, targetID string, metadata map[string]any) {
	defer s.recoverTrack(eventType)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		s.bufferLocked(pendingCall{
			eventType:  eventType,
			targetType: targetType,
			targetID:   targetID,
			metadata:   SanitizeMetadata(metadata),
		})
		return
	}
	s.trackLocked(s.clock.Now(), eventType, targetType, targetID, metadata)
}

// TrackScreen records a navigation to screen and makes it the current screen
// for subsequent events.
func (s *Service) TrackScreen(screen string) {
	defer s.recoverTrack(EventScreenView)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		s.bufferLocked(pendingCall{screen: true, targetID: screen})
		return
	}
	s.trackScreenLocked(s.clock.Now(), screen)
}

// TrackCarView records a listing view.
func (s *Service) TrackCarView(carID string, metadata map[string]any) {
	s.Track(EventCarView, TargetCar, carID, metadata)
}

// TrackCarSave records a save, or an unsave when saved is false.
func (s *Service) TrackCarSave(carID string, saved bool) {
	et := EventCarSave
	if !saved {
		et = EventCarUnsave
	}
	s.Track(et, TargetCar, carID, nil)
}

// TrackCarShare records a share through method ("whatsapp", "link", ...).
func (s *Service) TrackCarShare(carID, method string) {
	s.Track(EventCarShare, TargetCar, carID, map[string]any{"method": method})
}

// TrackCarContact records a buyer contacting the dealer of a listing.
func (s *Service) TrackCarContact(carID, dealerID, method string) {
	s.Track(EventCarContact, TargetCar, carID, map[string]any{
		"dealerId": dealerID,
		"method":   method,
	})
}

// TrackSearch records a search and its result count.
func (s *Service) TrackSearch(query string, resultCount int, filters map[string]any) {
	meta := map[string]any{"query": query, "resultCount": resultCount}
	if len(filters) > 0 {
		meta["filters"] = filters
	}
	s.Track(EventSearch, TargetSearch, query, meta)
}

// TrackFilter records a filter change on the listing screen.
func (s *Service) TrackFilter(filters map[string]any) {
	s.Track(EventFilterApply, TargetSearch, "", map[string]any{"filters": filters})
}

// TrackError records an application error shown on screen.
func (s *Service) TrackError(errorType, message, screen string) {
	s.Track(EventError, TargetScreen, screen, map[string]any{
		"errorType": errorType,
		"message":   message,
	})
}

func (s *Service) recoverTrack(et EventType) {
	if r := recover(); r != nil {
		s.log.Error().Str("event_type", string(et)).Str("panic", fmt.Sprint(r)).Msg("Track recovered from panic")
	}
}

// bufferLocked appends to the pre-initialization list, dropping the oldest
// call beyond PendingLimit.
func (s *Service) bufferLocked(call pendingCall) {
	call.at = s.clock.Now()
	s.pending = append(s.pending, call)
	if over := len(s.pending) - s.cfg.PendingLimit; over > 0 {
		s.pending = append([]pendingCall(nil), s.pending[over:]...)
		eventsDropped.WithLabelValues("pending_overflow").Add(float64(over))
		s.counters.dropped += uint64(over)
	}
}

// replayPendingLocked feeds buffered calls through the normal path in their
// original order. Calls older than PendingTTL are discarded.
func (s *Service) replayPendingLocked(now time.Time) {
	calls := s.pending
	s.pending = nil
	expired := 0
	for _, c := range calls {
		if now.Sub(c.at) > s.cfg.PendingTTL {
			expired++
			continue
		}
		if c.screen {
			s.trackScreenLocked(now, c.targetID)
			continue
		}
		s.trackLocked(now, c.eventType, c.targetType, c.targetID, c.metadata)
	}
	if expired > 0 {
		eventsDropped.WithLabelValues("pending_expired").Add(float64(expired))
		s.counters.dropped += uint64(expired)
	}
	if len(calls) > 0 {
		s.log.Debug().Int("replayed", len(calls)-expired).Int("expired", expired).Msg("Replayed pending track calls")
	}
}

func (s *Service) trackScreenLocked(now time.Time, screen string) {
	s.previousScreen = s.currentScreen
	s.currentScreen = screen
	var meta map[string]any
	if s.previousScreen != "" {
		meta = map[string]any{"previousScreen": s.previousScreen}
	}
	s.trackLocked(now, EventScreenView, TargetScreen, screen, meta)
}

// trackLocked is the accept path. s.mu must be held.
func (s *Service) trackLocked(now time.Time, et EventType, tt TargetType, targetID string, metadata map[string]any) {
	key := eventKey(et, tt, targetID)

	if s.dedup.Len() > s.cfg.SweepThreshold {
		s.dedup.Sweep(now)
	}
	if s.aggregates.Len() > s.cfg.SweepThreshold {
		s.aggregates.Sweep(now)
	}

	if !s.dedup.Admit(key, now, s.cfg.DebounceWindow) {
		s.counters.debounced++
		eventsSuppressed.WithLabelValues("debounce").Inc()
		return
	}

	ev := &Event{
		SessionID:       s.sessionID,
		EventType:       et,
		TargetType:      tt,
		TargetID:        targetID,
		Metadata:        SanitizeMetadata(metadata),
		ScreenName:      s.currentScreen,
		PreviousScreen:  s.previousScreen,
		SessionDuration: s.elapsedLocked(now),
		ClientTimestamp: formatTimestamp(now),
	}

	if _, ok := s.aggregated[et]; ok && s.aggregates.absorb(key, now, ev) {
		s.counters.aggregated++
		eventsSuppressed.WithLabelValues("aggregated").Inc()
		return
	}

	wasEmpty := len(s.queue) == 0
	ev.queued = true
	s.queue = append(s.queue, ev)
	s.enforceCapLocked()
	s.counters.tracked++
	eventsTracked.WithLabelValues(string(et)).Inc()
	queueSize.Set(float64(len(s.queue)))

	if s.appState != lifecycle.AppActive {
		return
	}
	if wasEmpty {
		s.startTimerLocked()
	}
	if len(s.queue) >= s.cfg.BatchSize {
		s.goFlush(triggerSize)
	}
}

// elapsedLocked returns whole seconds since session start, never less than
// a value already handed out.
func (s *Service) elapsedLocked(now time.Time) int64 {
	d := int64(now.Sub(s.sessionStart) / time.Second)
	if d < s.lastDuration {
		return s.lastDuration
	}
	s.lastDuration = d
	return d
}

// enforceCapLocked keeps the most recent MaxQueueSize events.
func (s *Service) enforceCapLocked() {
	over := len(s.queue) - s.cfg.MaxQueueSize
	if over <= 0 {
		return
	}
	for _, ev := range s.queue[:over] {
		ev.queued = false
	}
	s.queue = append([]*Event(nil), s.queue[over:]...)
	s.counters.dropped += uint64(over)
	eventsDropped.WithLabelValues("overflow").Add(float64(over))
	s.log.Warn().Int("dropped", over).Int("max_queue_size", s.cfg.MaxQueueSize).Msg("Event queue overflow, dropped oldest events")
}
