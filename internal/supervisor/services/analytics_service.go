// Dealerlink - Car Marketplace Client Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dealerlink

package services

import (
	"context"
	"fmt"
	"time"
)

// SessionRunner is the session half of *analytics.Service.
type SessionRunner interface {
	Initialize(ctx context.Context, city string) error
	EndSession(ctx context.Context)
}

// AnalyticsSessionService keeps one analytics session open while it runs.
//
// Serve starts the session and blocks; on cancellation it ends the session
// (final flush, session end notification, queue persisted) within
// endTimeout. A failed Initialize is returned so suture retries it; track
// calls made meanwhile stay buffered in the service.
type AnalyticsSessionService struct {
	runner     SessionRunner
	city       string
	endTimeout time.Duration
	name       string
}

// NewAnalyticsSessionService wraps runner. A non-positive endTimeout means 10s.
func NewAnalyticsSessionService(runner SessionRunner, city string, endTimeout time.Duration) *AnalyticsSessionService {
	if endTimeout <= 0 {
		endTimeout = 10 * time.Second
	}
	return &AnalyticsSessionService{
		runner:     runner,
		city:       city,
		endTimeout: endTimeout,
		name:       "analytics-session",
	}
}

// Serve implements suture.Service.
func (s *AnalyticsSessionService) Serve(ctx context.Context) error {
	if err := s.runner.Initialize(ctx, s.city); err != nil {
		return fmt.Errorf("analytics session start failed: %w", err)
	}

	<-ctx.Done()

	endCtx, cancel := context.WithTimeout(context.Background(), s.endTimeout)
	defer cancel()
	s.runner.EndSession(endCtx)
	return ctx.Err()
}

func (s *AnalyticsSessionService) String() string {
	return s.name
}
