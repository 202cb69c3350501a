// Dealerlink - Car Marketplace Client Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dealerlink

package services

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/thejerf/suture/v4"
)

var (
	_ suture.Service = (*HTTPServerService)(nil)
	_ suture.Service = (*ComponentService)(nil)
	_ suture.Service = (*AnalyticsSessionService)(nil)
	_ suture.Service = (*TickerService)(nil)
)

// fakeServer blocks in ListenAndServe until Shutdown unless listenErr is set.
type fakeServer struct {
	listenErr   error
	shutdownErr error
	started     chan struct{}
	stop        chan struct{}
	shutdowns   atomic.Int32
	once        sync.Once
}

func newFakeServer() *fakeServer {
	return &fakeServer{started: make(chan struct{}, 1), stop: make(chan struct{})}
}

func (f *fakeServer) ListenAndServe() error {
	select {
	case f.started <- struct{}{}:
	default:
	}
	if f.listenErr != nil {
		return f.listenErr
	}
	<-f.stop
	return http.ErrServerClosed
}

func (f *fakeServer) Shutdown(context.Context) error {
	f.shutdowns.Add(1)
	f.once.Do(func() { close(f.stop) })
	return f.shutdownErr
}

func serveAsync(ctx context.Context, svc suture.Service) <-chan error {
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()
	return errCh
}

func waitErr(t *testing.T, errCh <-chan error) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
		return nil
	}
}

func TestHTTPServerService(t *testing.T) {
	t.Run("default shutdown timeout", func(t *testing.T) {
		svc := NewHTTPServerService(newFakeServer(), 0)
		if svc.shutdownTimeout != 10*time.Second || svc.String() != "agent-api" {
			t.Errorf("got timeout=%v name=%q", svc.shutdownTimeout, svc.String())
		}
	})

	t.Run("graceful shutdown on cancel", func(t *testing.T) {
		server := newFakeServer()
		svc := NewHTTPServerService(server, time.Second)
		ctx, cancel := context.WithCancel(context.Background())

		errCh := serveAsync(ctx, svc)
		<-server.started
		cancel()

		if err := waitErr(t, errCh); !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
		if server.shutdowns.Load() != 1 {
			t.Errorf("Shutdown calls = %d", server.shutdowns.Load())
		}
	})

	t.Run("listen failure is returned", func(t *testing.T) {
		bindErr := errors.New("bind: address already in use")
		server := newFakeServer()
		server.listenErr = bindErr

		err := NewHTTPServerService(server, time.Second).Serve(context.Background())
		if !errors.Is(err, bindErr) {
			t.Errorf("err = %v, want bind error", err)
		}
	})

	t.Run("shutdown failure is returned", func(t *testing.T) {
		shutdownErr := errors.New("connections did not drain")
		server := newFakeServer()
		server.shutdownErr = shutdownErr
		ctx, cancel := context.WithCancel(context.Background())

		errCh := serveAsync(ctx, NewHTTPServerService(server, time.Second))
		<-server.started
		cancel()

		if err := waitErr(t, errCh); !errors.Is(err, shutdownErr) {
			t.Errorf("err = %v, want shutdown error", err)
		}
	})
}

type fakeComponent struct {
	startErr error
	running  atomic.Bool
	started  chan struct{}
}

func (f *fakeComponent) Start(context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.running.Store(true)
	close(f.started)
	return nil
}

func (f *fakeComponent) Stop()           { f.running.Store(false) }
func (f *fakeComponent) IsRunning() bool { return f.running.Load() }

func TestComponentService(t *testing.T) {
	t.Run("starts and stops component", func(t *testing.T) {
		comp := &fakeComponent{started: make(chan struct{})}
		svc := NewComponentService("connectivity-prober", comp)
		ctx, cancel := context.WithCancel(context.Background())

		errCh := serveAsync(ctx, svc)
		<-comp.started
		if !comp.IsRunning() {
			t.Fatal("component should be running")
		}
		cancel()

		if err := waitErr(t, errCh); !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v", err)
		}
		if comp.IsRunning() {
			t.Error("component should be stopped")
		}
		if svc.String() != "connectivity-prober" {
			t.Errorf("String = %q", svc.String())
		}
	})

	t.Run("start failure", func(t *testing.T) {
		startErr := errors.New("already running")
		svc := NewComponentService("signals", &fakeComponent{startErr: startErr})
		if err := svc.Serve(context.Background()); !errors.Is(err, startErr) {
			t.Errorf("err = %v, want start error", err)
		}
	})
}

type fakeRunner struct {
	initErr error
	city    string
	inits   atomic.Int32
	ends    atomic.Int32
	started chan struct{}
}

func (f *fakeRunner) Initialize(_ context.Context, city string) error {
	f.inits.Add(1)
	if f.initErr != nil {
		return f.initErr
	}
	f.city = city
	close(f.started)
	return nil
}

func (f *fakeRunner) EndSession(ctx context.Context) {
	if _, ok := ctx.Deadline(); ok {
		f.ends.Add(1)
	}
}

func TestAnalyticsSessionService(t *testing.T) {
	t.Run("session spans the service lifetime", func(t *testing.T) {
		runner := &fakeRunner{started: make(chan struct{})}
		svc := NewAnalyticsSessionService(runner, "Tirana", time.Second)
		ctx, cancel := context.WithCancel(context.Background())

		errCh := serveAsync(ctx, svc)
		<-runner.started
		if runner.city != "Tirana" {
			t.Errorf("city = %q", runner.city)
		}
		cancel()

		if err := waitErr(t, errCh); !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v", err)
		}
		if runner.ends.Load() != 1 {
			t.Errorf("EndSession calls with deadline = %d, want 1", runner.ends.Load())
		}
	})

	t.Run("initialize failure is returned and session not ended", func(t *testing.T) {
		initErr := errors.New("device info unavailable")
		runner := &fakeRunner{initErr: initErr}
		err := NewAnalyticsSessionService(runner, "", 0).Serve(context.Background())
		if !errors.Is(err, initErr) {
			t.Errorf("err = %v", err)
		}
		if runner.ends.Load() != 0 {
			t.Error("EndSession should not run after a failed start")
		}
	})
}

func TestTickerService(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	mClock := quartz.NewMock(t)
	trap := mClock.Trap().NewTicker("analytics-sweep")
	defer trap.Close()

	var (
		mu    sync.Mutex
		ticks []time.Time
	)
	tickErr := errors.New("store closed")
	svc := NewTickerService("analytics-sweep", time.Minute, mClock, func(_ context.Context, now time.Time) error {
		mu.Lock()
		defer mu.Unlock()
		ticks = append(ticks, now)
		if len(ticks) == 1 {
			return tickErr
		}
		return nil
	})

	serveCtx, stop := context.WithCancel(ctx)
	errCh := serveAsync(serveCtx, svc)
	trap.MustWait(ctx).MustRelease(ctx)

	waitTicks := func(want int) {
		t.Helper()
		deadline := time.Now().Add(2 * time.Second)
		for {
			mu.Lock()
			n := len(ticks)
			mu.Unlock()
			if n >= want {
				return
			}
			if time.Now().After(deadline) {
				t.Fatalf("ticks = %d, want %d", n, want)
			}
			time.Sleep(5 * time.Millisecond)
		}
	}

	start := mClock.Now()
	// The first tick fails; the service must keep ticking.
	mClock.Advance(time.Minute).MustWait(ctx)
	waitTicks(1)
	mClock.Advance(time.Minute).MustWait(ctx)
	waitTicks(2)

	stop()
	if err := waitErr(t, errCh); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if !ticks[1].Equal(start.Add(2 * time.Minute)) {
		t.Errorf("second tick at %v, want %v", ticks[1], start.Add(2*time.Minute))
	}
}
