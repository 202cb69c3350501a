// Dealerlink - Car Marketplace Client Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dealerlink

package analytics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/coder/quartz"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tomtom215/dealerlink/internal/cache"
	"github.com/tomtom215/dealerlink/internal/device"
	"github.com/tomtom215/dealerlink/internal/lifecycle"
	"github.com/tomtom215/dealerlink/internal/logging"
	"github.com/tomtom215/dealerlink/internal/store"
)

// Sender posts a JSON body to a server path. transport.Client satisfies it.
type Sender interface {
	Post(ctx context.Context, path string, body any) error
}

// Credentials reports whether a bearer credential is available.
// auth.TokenSource satisfies it.
type Credentials interface {
	Token(ctx context.Context) (string, error)
}

// Options wires a Service to its collaborators. Store, Sender, Credentials
// and Device are required.
type Options struct {
	Config      Config
	Store       store.Store
	Sender      Sender
	Credentials Credentials
	Device      device.Provider

	// Clock drives every timer. Defaults to the real clock.
	Clock quartz.Clock

	// AppStates and Connectivity are subscribed to at Initialize when set.
	AppStates    *lifecycle.Feed[lifecycle.AppState]
	Connectivity *lifecycle.Feed[lifecycle.Connectivity]
}

// ErrMissingDependency is returned by New when a required collaborator is nil.
var ErrMissingDependency = errors.New("analytics: missing dependency")

type pendingCall struct {
	at         time.Time
	screen     bool
	eventType  EventType
	targetType TargetType
	targetID   string
	metadata   map[string]any
}

// Service is the telemetry pipeline. All state is guarded by mu; network
// and store I/O happen outside it.
type Service struct {
	cfg     Config
	store   store.Store
	sender  Sender
	creds   Credentials
	devices device.Provider
	clock   quartz.Clock
	log     zerolog.Logger

	appFeed  *lifecycle.Feed[lifecycle.AppState]
	connFeed *lifecycle.Feed[lifecycle.Connectivity]

	// initMu serializes Initialize and EndSession.
	initMu sync.Mutex
	// persistMu orders queue mirror writes so an older snapshot never
	// overwrites a newer one.
	persistMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu           sync.Mutex
	initialized  bool
	sessionID    string
	sessionStart time.Time
	city         string
	device       device.Info
	lastDuration int64

	currentScreen  string
	previousScreen string

	queue      []*Event
	pending    []pendingCall
	dedup      *cache.TimeWindow
	aggregates *aggregateWindow
	aggregated map[EventType]struct{}

	appState     lifecycle.AppState
	desiredState lifecycle.AppState
	connectivity lifecycle.Connectivity
	stateTimer   *quartz.Timer
	stateGen     uint64

	flushTimer    *quartz.Timer
	flushTimerGen uint64
	retryTimer    *quartz.Timer
	retryGen      uint64

	inProgress       bool
	limiter          *rate.Limiter
	backoff          *backoff.ExponentialBackOff
	retryCount       int
	nextRetryDelay   time.Duration
	lastFlushAttempt time.Time
	lastFlushResult  FlushResult

	unsubscribe []func()

	counters counters
}

type counters struct {
	tracked    uint64
	debounced  uint64
	aggregated uint64
	dropped    uint64
	sent       uint64
	batches    uint64
	failures   uint64
}

// backoffClock adapts quartz.Clock to backoff.Clock.
type backoffClock struct{ c quartz.Clock }

func (b backoffClock) Now() time.Time { return b.c.Now("backoff") }

// New builds an uninitialized Service.
func New(opts Options) (*Service, error) {
	if opts.Store == nil || opts.Sender == nil || opts.Credentials == nil || opts.Device == nil {
		return nil, ErrMissingDependency
	}
	cfg := opts.Config.withDefaults()
	clock := opts.Clock
	if clock == nil {
		clock = quartz.NewReal()
	}

	aggregated := make(map[EventType]struct{}, len(cfg.AggregatedTypes))
	for _, et := range cfg.AggregatedTypes {
		aggregated[et] = struct{}{}
	}

	bo := &backoff.ExponentialBackOff{
		InitialInterval:     cfg.RetryBase,
		RandomizationFactor: 0,
		Multiplier:          cfg.RetryMultiplier,
		MaxInterval:         cfg.RetryMax,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoffClock{clock},
	}
	bo.Reset()

	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		cfg:        cfg,
		store:      opts.Store,
		sender:     opts.Sender,
		creds:      opts.Credentials,
		devices:    opts.Device,
		clock:      clock,
		log:        logging.WithComponent("analytics"),
		appFeed:    opts.AppStates,
		connFeed:   opts.Connectivity,
		ctx:        ctx,
		cancel:     cancel,
		dedup:      cache.NewTimeWindow(cfg.DedupCapacity, cfg.DedupHorizon),
		aggregates: newAggregateWindow(cfg.AggregationWindow),
		aggregated: aggregated,
		limiter:    rate.NewLimiter(rate.Every(cfg.MinFlushInterval), 1),
		backoff:    bo,
	}, nil
}

// Close ends the session if one is active, stops all timers and waits for
// background flushes to return.
func (s *Service) Close(ctx context.Context) error {
	s.EndSession(ctx)
	s.mu.Lock()
	s.stopAllTimersLocked()
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
	return nil
}

// SessionID returns the active session id, or "" before Initialize.
func (s *Service) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// CurrentScreen returns the last screen passed to TrackScreen.
func (s *Service) CurrentScreen() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentScreen
}

// QueueSize returns the number of queued events.
func (s *Service) QueueSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Initialized reports whether a session is active.
func (s *Service) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

// Stats is a point-in-time snapshot of the pipeline.
type Stats struct {
	SessionID        string    `json:"sessionId"`
	Initialized      bool      `json:"initialized"`
	AppState         string    `json:"appState"`
	Connectivity     string    `json:"connectivity"`
	CurrentScreen    string    `json:"currentScreen,omitempty"`
	SessionDuration  int64     `json:"sessionDuration"`
	QueueSize        int       `json:"queueSize"`
	PendingCalls     int       `json:"pendingCalls"`
	FlushInProgress  bool      `json:"flushInProgress"`
	TimerRunning     bool      `json:"timerRunning"`
	RetryCount       int       `json:"retryCount"`
	NextRetryDelay   string    `json:"nextRetryDelay,omitempty"`
	LastFlushAttempt time.Time `json:"lastFlushAttempt,omitempty"`
	LastFlushResult  string    `json:"lastFlushResult,omitempty"`
	DedupEntries     int       `json:"dedupEntries"`
	DedupEvicted     int64     `json:"dedupEvicted"`
	AggregateEntries int       `json:"aggregateEntries"`

	Tracked       uint64 `json:"tracked"`
	Debounced     uint64 `json:"debounced"`
	Aggregated    uint64 `json:"aggregated"`
	Dropped       uint64 `json:"dropped"`
	Sent          uint64 `json:"sent"`
	Batches       uint64 `json:"batches"`
	FailedFlushes uint64 `json:"failedFlushes"`
}

// Stats returns a snapshot of the pipeline state and counters.
func (s *Service) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	window := s.dedup.Stats()
	st := Stats{
		SessionID:        s.sessionID,
		Initialized:      s.initialized,
		AppState:         s.appState.String(),
		Connectivity:     s.connectivity.String(),
		CurrentScreen:    s.currentScreen,
		QueueSize:        len(s.queue),
		PendingCalls:     len(s.pending),
		FlushInProgress:  s.inProgress,
		TimerRunning:     s.flushTimer != nil,
		RetryCount:       s.retryCount,
		LastFlushAttempt: s.lastFlushAttempt,
		DedupEntries:     window.Size,
		DedupEvicted:     window.Evicted,
		AggregateEntries: s.aggregates.Len(),
		Tracked:          s.counters.tracked,
		Debounced:        s.counters.debounced,
		Aggregated:       s.counters.aggregated,
		Dropped:          s.counters.dropped,
		Sent:             s.counters.sent,
		Batches:          s.counters.batches,
		FailedFlushes:    s.counters.failures,
	}
	if s.initialized {
		st.SessionDuration = s.elapsedLocked(s.clock.Now())
	}
	if s.nextRetryDelay > 0 {
		st.NextRetryDelay = s.nextRetryDelay.String()
	}
	if s.lastFlushResult != 0 {
		st.LastFlushResult = s.lastFlushResult.String()
	}
	return st
}

// Sweep removes stale dedup and aggregation entries as of now and returns
// how many were removed from each.
func (s *Service) Sweep(now time.Time) (dedup, aggregates int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dedup.Sweep(now), s.aggregates.Sweep(now)
}

// goFlush runs a flush on its own goroutine so the caller never blocks on
// network I/O.
func (s *Service) goFlush(trigger flushTrigger) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.flush(s.ctx, trigger)
	}()
}
