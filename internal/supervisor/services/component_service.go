// Dealerlink - Car Marketplace Client Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dealerlink

package services

import (
	"context"
	"fmt"
)

// StartStopper is a component that owns a background goroutine.
//
// Satisfied by *lifecycle.Prober and *lifecycle.SignalSource.
type StartStopper interface {
	Start(ctx context.Context) error
	Stop()
	IsRunning() bool
}

// ComponentService adapts a StartStopper to suture's Serve pattern:
// Start, block until ctx is canceled, then Stop (which waits for the
// component's goroutine).
type ComponentService struct {
	component StartStopper
	name      string
}

// NewComponentService wraps component under name.
func NewComponentService(name string, component StartStopper) *ComponentService {
	return &ComponentService{component: component, name: name}
}

// Serve implements suture.Service. A failed Start is returned so suture
// restarts the component with backoff.
func (s *ComponentService) Serve(ctx context.Context) error {
	if err := s.component.Start(ctx); err != nil {
		return fmt.Errorf("%s start failed: %w", s.name, err)
	}

	<-ctx.Done()
	s.component.Stop()
	return ctx.Err()
}

func (s *ComponentService) String() string {
	return s.name
}
