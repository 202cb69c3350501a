// Dealerlink - Car Marketplace Client Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dealerlink

/*
Package analytics implements the client telemetry pipeline for the car
marketplace app: an in-memory event queue, session lifecycle and the flush
and retry controller that ships batches to the analytics API.

# Accept Path

Track and the typed wrappers (TrackCarView, TrackSearch, ...) never block on
I/O and never return errors. Each call passes through, in order:

 1. Pre-initialization buffer: before Initialize, calls are held (bounded by
    PendingLimit, expiring after PendingTTL) and replayed once a session
    starts.
 2. Debounce: the same (eventType, targetType, targetID) within
    DebounceWindow is dropped. Suppressed calls do not extend the window.
 3. Aggregation: repeats of high-volume types (CAR_VIEW, IMAGE_VIEW,
    IMAGE_SWIPE, SEARCH, SCREEN_VIEW) inside one AggregationWindow bucket
    increment metadata.count on the already-queued event instead of
    enqueuing a new one.
 4. Enqueue: the queue is capped at MaxQueueSize; overflow drops the oldest.

# Flushing

Flush sends at most BatchSize events in one POST. At most one send is in
flight at any time. A send is started by:

  - the periodic FlushInterval timer (runs only while the app is active)
  - the queue reaching BatchSize
  - Flush called by the host
  - connectivity returning with a non-empty queue
  - the app moving to the background
  - EndSession

Manual, timer, size and reconnect triggers share a MinFlushInterval rate
guard backed by golang.org/x/time/rate. A failed batch is put back at the
front of the queue and retried after an exponential backoff
(RetryBase * RetryMultiplier^n, capped at RetryMax). A successful batch with a
remaining backlog schedules a follow-up after FollowUpDelay.

# Persistence

The queue is mirrored to a store.Store under store.QueueKey whenever a send
fails, is deferred for lack of credentials or connectivity, or the app moves
to the background. The mirror is cleared after a send drains the queue and
merged back in at the next Initialize.

# Time

Every timer uses the injected quartz.Clock with tags "flush-timer", "retry"
and "app-state", so tests drive the whole controller with quartz.NewMock.
Stale dedup and aggregation entries are removed by Sweep, which Track also
calls once either structure grows past SweepThreshold.
*/
package analytics
