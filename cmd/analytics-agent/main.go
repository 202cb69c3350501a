// Dealerlink - Car Marketplace Client Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dealerlink

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/coder/quartz"

	"github.com/tomtom215/dealerlink/internal/analytics"
	"github.com/tomtom215/dealerlink/internal/api"
	"github.com/tomtom215/dealerlink/internal/auth"
	"github.com/tomtom215/dealerlink/internal/config"
	"github.com/tomtom215/dealerlink/internal/device"
	"github.com/tomtom215/dealerlink/internal/lifecycle"
	"github.com/tomtom215/dealerlink/internal/logging"
	"github.com/tomtom215/dealerlink/internal/metrics"
	"github.com/tomtom215/dealerlink/internal/store"
	"github.com/tomtom215/dealerlink/internal/supervisor"
	"github.com/tomtom215/dealerlink/internal/supervisor/services"
	"github.com/tomtom215/dealerlink/internal/transport"
)

const (
	sweepInterval    = 30 * time.Second
	badgerGCInterval = 5 * time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(cfg.LoggingOptions())
	metrics.SetAppInfo(cfg.App.Version, runtime.Version())

	logging.Info().
		Str("version", cfg.App.Version).
		Str("base_url", cfg.Transport.BaseURL).
		Str("store", cfg.Store.Backend).
		Str("listen", cfg.Agent.ListenAddr).
		Msg("Starting analytics agent")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	kv, err := store.Open(ctx, cfg.StoreOptions())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open store")
	}
	defer func() {
		if err := kv.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}()

	clock := quartz.NewReal()
	tokens := auth.NewTokenSource(kv, store.AuthTokenKey, clock)
	client := transport.New(cfg.TransportOptions(), tokens)

	appStates := lifecycle.NewFeed[lifecycle.AppState]()
	connectivity := lifecycle.NewFeed[lifecycle.Connectivity]()

	svc, err := analytics.New(analytics.Options{
		Config:       cfg.AnalyticsOptions(),
		Store:        kv,
		Sender:       client,
		Credentials:  tokens,
		Device:       device.NewHostProvider(cfg.App.Version, cfg.App.DeviceType),
		Clock:        clock,
		AppStates:    appStates,
		Connectivity: connectivity,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create analytics service")
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Agent.ShutdownTimeout,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	// Data layer
	if badger, ok := kv.(*store.BadgerStore); ok {
		tree.AddDataService(services.NewTickerService("badger-gc", badgerGCInterval, clock,
			func(context.Context, time.Time) error { return badger.RunGC() }))
	}

	// Pipeline layer
	tree.AddPipelineService(services.NewAnalyticsSessionService(svc, cfg.Analytics.City, cfg.Agent.ShutdownTimeout))
	started := clock.Now()
	tree.AddPipelineService(services.NewTickerService("analytics-sweep", sweepInterval, clock,
		func(_ context.Context, now time.Time) error {
			dedup, aggregates := svc.Sweep(now)
			if dedup+aggregates > 0 {
				logging.Debug().Int("dedup", dedup).Int("aggregates", aggregates).Msg("Swept stale analytics windows")
			}
			metrics.AppUptime.Set(now.Sub(started).Seconds())
			return nil
		}))

	// Lifecycle layer
	if proberCfg, ok := cfg.ProberOptions(); ok {
		prober := lifecycle.NewProber(proberCfg, connectivity, clock, nil)
		tree.AddLifecycleService(services.NewComponentService("connectivity-prober", prober))
		logging.Info().Str("target", proberCfg.Target).Dur("interval", proberCfg.Interval).Msg("Connectivity prober enabled")
	} else {
		logging.Info().Msg("Connectivity prober disabled")
	}
	if cfg.Agent.SignalLifecycle {
		tree.AddLifecycleService(services.NewComponentService("lifecycle-signals", lifecycle.NewSignalSource(appStates)))
	}

	// API layer
	routerCfg := api.DefaultRouterConfig()
	routerCfg.RateLimitRequests = cfg.Agent.RateLimitRequests
	routerCfg.RateLimitWindow = cfg.Agent.RateLimitWindow
	server := &http.Server{
		Addr:              cfg.Agent.ListenAddr,
		Handler:           api.NewRouter(routerCfg, svc, appStates, connectivity).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.Transport.Timeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Agent.ShutdownTimeout))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, u := range unstopped {
		logging.Warn().Str("service", u.Name).Msg("Service failed to stop within timeout")
	}

	closeCtx, closeCancel := context.WithTimeout(context.Background(), cfg.Agent.ShutdownTimeout)
	defer closeCancel()
	if err := svc.Close(closeCtx); err != nil {
		logging.Error().Err(err).Msg("Error closing analytics service")
	}

	logging.Info().Msg("Analytics agent stopped")
}
