// Dealerlink - Car Marketplace Client Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dealerlink

// Package testinfra provides test infrastructure shared by Dealerlink's
// package tests.
//
// # Collector
//
// MockCollector is an httptest server that stands in for the analytics
// backend. It records every request and can be told to fail, which is how
// the flush and retry paths are exercised without a network:
//
//	collector := testinfra.NewMockCollector(t)
//	collector.SetStatus(http.StatusServiceUnavailable)
//	client := transport.New(transport.Config{BaseURL: collector.URL()}, tokens)
//
// # Containers
//
// Behind the integration build tag, NewRedisContainer starts a real Redis
// with testcontainers-go for the store package:
//
//	func TestRedisStore(t *testing.T) {
//	    testinfra.SkipIfNoDocker(t)
//	    ctx := context.Background()
//	    redis, err := testinfra.NewRedisContainer(ctx)
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    defer testinfra.CleanupContainer(t, ctx, redis.Container)
//	    // use redis.URL
//	}
//
// Run them with:
//
//	go test -tags integration ./internal/store/...
package testinfra
