// Dealerlink - Car Marketplace Client Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dealerlink

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/dealerlink/internal/analytics"
	"github.com/tomtom215/dealerlink/internal/lifecycle"
)

// Pipeline is the part of *analytics.Service the API drives.
type Pipeline interface {
	Track(eventType analytics.EventType, targetType analytics.TargetType, targetID string, metadata map[string]any)
	TrackScreen(screen string)
	Flush(ctx context.Context) analytics.FlushResult
	EndSession(ctx context.Context)
	Stats() analytics.Stats
}

// Publisher accepts lifecycle observations. *lifecycle.Feed satisfies it.
type Publisher[T any] interface {
	Publish(v T)
}

// RouterConfig controls the agent API.
type RouterConfig struct {
	// RateLimitRequests per RateLimitWindow per client IP. Zero disables
	// limiting.
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// MaxBodyBytes caps request bodies. Default: 64 KiB.
	MaxBodyBytes int64
}

// DefaultRouterConfig returns 600 requests per minute and a 64 KiB body cap.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		RateLimitRequests: 600,
		RateLimitWindow:   time.Minute,
		MaxBodyBytes:      64 << 10,
	}
}

// Router serves the local ingestion API.
type Router struct {
	config       RouterConfig
	pipeline     Pipeline
	appStates    Publisher[lifecycle.AppState]
	connectivity Publisher[lifecycle.Connectivity]
}

// NewRouter wires the handlers. The publishers receive lifecycle reports
// posted by the host app.
func NewRouter(config RouterConfig, pipeline Pipeline, appStates Publisher[lifecycle.AppState], connectivity Publisher[lifecycle.Connectivity]) *Router {
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = DefaultRouterConfig().MaxBodyBytes
	}
	return &Router{
		config:       config,
		pipeline:     pipeline,
		appStates:    appStates,
		connectivity: connectivity,
	}
}

// Handler builds the chi route tree.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(requestLogging)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", rt.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(rateLimit(rt.config.RateLimitRequests, rt.config.RateLimitWindow))
		r.Use(prometheusMetrics)
		r.Use(apiHeaders)

		r.Post("/track", rt.track)
		r.Post("/screen", rt.screen)
		r.Post("/lifecycle", rt.appState)
		r.Post("/connectivity", rt.connectivityChange)
		r.Post("/flush", rt.flush)
		r.Post("/session/end", rt.endSession)
		r.Get("/stats", rt.stats)
	})

	return r
}
