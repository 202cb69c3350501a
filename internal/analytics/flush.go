// Dealerlink - Car Marketplace Client Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dealerlink

package analytics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tomtom215/dealerlink/internal/device"
	"github.com/tomtom215/dealerlink/internal/lifecycle"
	"github.com/tomtom215/dealerlink/internal/logging"
	"github.com/tomtom215/dealerlink/internal/transport"
)

var tracer = otel.Tracer("github.com/tomtom215/dealerlink/internal/analytics")

// FlushResult is the outcome of one flush attempt.
type FlushResult int

const (
	FlushSent FlushResult = iota + 1
	FlushFailed
	FlushSkippedNotInitialized
	FlushSkippedInProgress
	FlushSkippedRateLimited
	FlushSkippedEmpty
	FlushDeferredNoAuth
	FlushDeferredOffline
)

func (r FlushResult) String() string {
	switch r {
	case FlushSent:
		return "sent"
	case FlushFailed:
		return "failed"
	case FlushSkippedNotInitialized:
		return "skipped_not_initialized"
	case FlushSkippedInProgress:
		return "skipped_in_progress"
	case FlushSkippedRateLimited:
		return "skipped_rate_limited"
	case FlushSkippedEmpty:
		return "skipped_empty"
	case FlushDeferredNoAuth:
		return "deferred_no_auth"
	case FlushDeferredOffline:
		return "deferred_offline"
	default:
		return fmt.Sprintf("FlushResult(%d)", int(r))
	}
}

// flushTrigger names what started a flush. Scheduled and final flushes are
// already spaced by their own timing and skip the rate guard.
type flushTrigger int

const (
	triggerManual flushTrigger = iota
	triggerTimer
	triggerSize
	triggerReconnect
	triggerScheduled
	triggerLifecycle
	triggerFinal
)

func (t flushTrigger) String() string {
	switch t {
	case triggerManual:
		return "manual"
	case triggerTimer:
		return "timer"
	case triggerSize:
		return "size"
	case triggerReconnect:
		return "reconnect"
	case triggerScheduled:
		return "scheduled"
	case triggerLifecycle:
		return "lifecycle"
	case triggerFinal:
		return "final"
	default:
		return "unknown"
	}
}

func (t flushTrigger) bypassRate() bool {
	return t == triggerScheduled || t == triggerLifecycle || t == triggerFinal
}

// eventsRequest is the body of POST /api/analytics/events.
type eventsRequest struct {
	identity
	Events []*Event `json:"events"`
}

// identity is the session and device block shared by every request.
type identity struct {
	SessionID string `json:"sessionId"`
	device.Info
	City string `json:"city,omitempty"`
}

func (s *Service) identityLocked() identity {
	return identity{SessionID: s.sessionID, Info: s.device, City: s.city}
}

// Flush attempts to send one batch. It is safe to call from any goroutine;
// at most one send is ever in flight.
func (s *Service) Flush(ctx context.Context) FlushResult {
	return s.flush(ctx, triggerManual)
}

func (s *Service) flush(ctx context.Context, trigger flushTrigger) FlushResult {
	result := s.doFlush(ctx, trigger)
	RecordFlush(result)
	s.mu.Lock()
	s.lastFlushResult = result
	s.mu.Unlock()
	return result
}

func (s *Service) doFlush(ctx context.Context, trigger flushTrigger) FlushResult {
	s.mu.Lock()
	if !s.initialized {
		s.mu.Unlock()
		return FlushSkippedNotInitialized
	}
	if s.inProgress {
		s.mu.Unlock()
		return FlushSkippedInProgress
	}
	now := s.clock.Now()
	if !trigger.bypassRate() && s.limiter.TokensAt(now) < 1 {
		s.mu.Unlock()
		return FlushSkippedRateLimited
	}
	if len(s.queue) == 0 {
		s.mu.Unlock()
		return FlushSkippedEmpty
	}
	// Claim the flush before the credential lookup, which is store I/O.
	s.inProgress = true
	s.mu.Unlock()

	result := s.gateAndSend(ctx, trigger)

	s.mu.Lock()
	s.inProgress = false
	s.mu.Unlock()
	return result
}

// gateAndSend runs with the in-progress flag held.
func (s *Service) gateAndSend(ctx context.Context, trigger flushTrigger) FlushResult {
	if _, err := s.creds.Token(ctx); err != nil {
		s.log.Debug().Err(err).Str("trigger", trigger.String()).Msg("No credential, deferring flush")
		s.persistQueue(ctx)
		return FlushDeferredNoAuth
	}

	s.mu.Lock()
	if s.connectivity == lifecycle.Offline {
		s.mu.Unlock()
		s.log.Debug().Str("trigger", trigger.String()).Msg("Offline, deferring flush")
		s.persistQueue(ctx)
		return FlushDeferredOffline
	}
	if len(s.queue) == 0 {
		s.mu.Unlock()
		return FlushSkippedEmpty
	}

	now := s.clock.Now()
	n := min(s.cfg.BatchSize, len(s.queue))
	batch := make([]*Event, n)
	copy(batch, s.queue[:n])
	for _, ev := range batch {
		ev.queued = false
	}
	s.queue = append([]*Event(nil), s.queue[n:]...)
	s.limiter.AllowN(now, 1)
	s.lastFlushAttempt = now
	s.stopRetryLocked()
	body := eventsRequest{identity: s.identityLocked(), Events: batch}
	sessionID := s.sessionID
	s.mu.Unlock()

	correlationID := logging.NewCorrelationID()
	ctx = logging.ContextWithCorrelationID(ctx, correlationID)
	ctx, span := tracer.Start(ctx, "analytics.flush",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.Int("batch.size", n),
			attribute.String("flush.trigger", trigger.String()),
		))
	defer span.End()

	start := time.Now()
	err := s.sender.Post(ctx, transport.PathEvents, body)
	latency := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "send failed")
		s.handleSendFailure(ctx, batch, err)
		return FlushFailed
	}

	span.SetStatus(codes.Ok, "")
	RecordBatchSent(n, latency)
	s.handleSendSuccess(ctx, n)
	logging.Ctx(ctx).Debug().
		Str("component", "analytics").
		Str("session_id", logging.RedactSessionID(sessionID)).
		Int("events", n).
		Dur("latency", latency).
		Msg("Batch sent")
	return FlushSent
}

func (s *Service) handleSendSuccess(ctx context.Context, sent int) {
	s.mu.Lock()
	s.counters.sent += uint64(sent)
	s.counters.batches++
	s.backoff.Reset()
	s.retryCount = 0
	s.nextRetryDelay = 0
	retryDelay.Set(0)
	remaining := len(s.queue)
	queueSize.Set(float64(remaining))
	if remaining > 0 && s.initialized && s.appState == lifecycle.AppActive {
		s.scheduleLocked(s.cfg.FollowUpDelay)
	}
	s.mu.Unlock()

	// Clears the mirror, or rewrites it with events that arrived meanwhile.
	s.syncMirror(ctx)
}

func (s *Service) handleSendFailure(ctx context.Context, batch []*Event, err error) {
	s.mu.Lock()
	for _, ev := range batch {
		ev.queued = true
	}
	merged := make([]*Event, 0, len(batch)+len(s.queue))
	merged = append(merged, batch...)
	merged = append(merged, s.queue...)
	s.queue = merged
	s.enforceCapLocked()
	queueSize.Set(float64(len(s.queue)))

	s.counters.failures++
	s.retryCount++
	delay := s.backoff.NextBackOff()
	s.nextRetryDelay = delay
	retryDelay.Set(delay.Seconds())
	if s.initialized && s.appState == lifecycle.AppActive {
		s.scheduleLocked(delay)
	}
	retries := s.retryCount
	s.mu.Unlock()

	logging.Ctx(ctx).Warn().
		Str("component", "analytics").
		Err(err).
		Int("events", len(batch)).
		Int("retry_count", retries).
		Dur("retry_in", delay).
		Msg("Batch send failed, re-queued")

	s.persistQueue(ctx)
}

// scheduleLocked arms the single follow-up/retry timer, replacing any
// previous one.
func (s *Service) scheduleLocked(delay time.Duration) {
	s.stopRetryLocked()
	gen := s.retryGen
	s.retryTimer = s.clock.AfterFunc(delay, func() {
		s.mu.Lock()
		if gen != s.retryGen {
			s.mu.Unlock()
			return
		}
		s.retryTimer = nil
		s.mu.Unlock()
		s.flush(s.ctx, triggerScheduled)
	}, "retry")
}

func (s *Service) stopRetryLocked() {
	s.retryGen++
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
}

// startTimerLocked arms the periodic flush timer unless it is running.
func (s *Service) startTimerLocked() {
	if s.flushTimer != nil {
		return
	}
	s.armTimerLocked()
}

func (s *Service) armTimerLocked() {
	gen := s.flushTimerGen
	s.flushTimer = s.clock.AfterFunc(s.cfg.FlushInterval, func() {
		s.onTimer(gen)
	}, "flush-timer")
}

func (s *Service) onTimer(gen uint64) {
	s.mu.Lock()
	if gen != s.flushTimerGen || !s.initialized {
		s.mu.Unlock()
		return
	}
	s.armTimerLocked()
	empty := len(s.queue) == 0
	s.mu.Unlock()

	if !empty {
		s.flush(s.ctx, triggerTimer)
	}
}

func (s *Service) stopTimerLocked() {
	s.flushTimerGen++
	if s.flushTimer != nil {
		s.flushTimer.Stop()
		s.flushTimer = nil
	}
}

func (s *Service) stopAllTimersLocked() {
	s.stopTimerLocked()
	s.stopRetryLocked()
	s.stateGen++
	if s.stateTimer != nil {
		s.stateTimer.Stop()
		s.stateTimer = nil
	}
}
