// Dealerlink - Car Marketplace Client Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dealerlink

package analytics

import (
	"context"
	"errors"

	"github.com/goccy/go-json"

	"github.com/tomtom215/dealerlink/internal/store"
)

// persistQueue writes the queue to the store. An empty queue is not written,
// so it never replaces a mirror that may still hold events.
func (s *Service) persistQueue(ctx context.Context) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	if len(s.queue) == 0 {
		s.mu.Unlock()
		return
	}
	data, err := json.Marshal(s.queue)
	n := len(s.queue)
	s.mu.Unlock()

	if err != nil {
		recordPersist("save", err)
		s.log.Error().Err(err).Msg("Failed to encode event queue")
		return
	}
	err = s.store.Set(ctx, store.QueueKey, string(data))
	recordPersist("save", err)
	if err != nil {
		s.log.Warn().Err(err).Int("events", n).Msg("Failed to persist event queue")
		return
	}
	s.log.Debug().Int("events", n).Msg("Event queue persisted")
}

// syncMirror makes the stored mirror match the queue after a successful
// send: removed when the queue drained, rewritten otherwise.
func (s *Service) syncMirror(ctx context.Context) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	var (
		data []byte
		err  error
	)
	empty := len(s.queue) == 0
	if !empty {
		data, err = json.Marshal(s.queue)
	}
	s.mu.Unlock()

	if empty {
		err = s.store.Remove(ctx, store.QueueKey)
		recordPersist("clear", err)
		if err != nil {
			s.log.Warn().Err(err).Msg("Failed to clear persisted event queue")
		}
		return
	}
	if err == nil {
		err = s.store.Set(ctx, store.QueueKey, string(data))
	}
	recordPersist("save", err)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to persist remaining event queue")
	}
}

// loadPersistedQueue prepends the stored mirror to the queue. Records with no
// session id are attributed to the current session. An undecodable mirror is
// removed and ignored. Returns the number of events recovered.
func (s *Service) loadPersistedQueue(ctx context.Context) int {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	raw, err := s.store.Get(ctx, store.QueueKey)
	if errors.Is(err, store.ErrNotFound) {
		return 0
	}
	if err != nil {
		recordPersist("load", err)
		s.log.Warn().Err(err).Msg("Failed to read persisted event queue")
		return 0
	}

	var loaded []*Event
	if err := json.Unmarshal([]byte(raw), &loaded); err != nil {
		recordPersist("discard", nil)
		s.log.Warn().Err(err).Int("bytes", len(raw)).Msg("Discarding corrupt persisted event queue")
		if rmErr := s.store.Remove(ctx, store.QueueKey); rmErr != nil {
			s.log.Warn().Err(rmErr).Msg("Failed to remove corrupt event queue")
		}
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	recovered := make([]*Event, 0, len(loaded))
	healed := 0
	for _, ev := range loaded {
		if ev == nil || ev.EventType == "" {
			continue
		}
		if ev.SessionID == "" {
			ev.SessionID = s.sessionID
			healed++
		}
		ev.queued = true
		recovered = append(recovered, ev)
	}

	merged := make([]*Event, 0, len(recovered)+len(s.queue))
	merged = append(merged, recovered...)
	merged = append(merged, s.queue...)
	s.queue = merged
	s.enforceCapLocked()
	queueSize.Set(float64(len(s.queue)))

	recordPersist("load", nil)
	if healed > 0 {
		persistOps.WithLabelValues("heal", "success").Add(float64(healed))
	}
	s.log.Info().Int("recovered", len(recovered)).Int("healed", healed).Msg("Recovered persisted events")
	return len(recovered)
}
