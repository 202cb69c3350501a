// Dealerlink - Car Marketplace Client Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dealerlink

// Package validation provides struct validation using go-playground/validator v10.
//
// A single validator instance is built on first use and shared; validator
// caches struct metadata, so repeated validation of request types is cheap.
// Field names in errors are taken from json tags so messages refer to the
// names clients actually send.
//
// # Custom Tags
//
//   - event_type: one of the analytics event types (case-insensitive)
//   - target_type: empty or one of the analytics target types
//   - app_state: active, foreground, inactive or background
//   - connectivity: online, offline or one of their aliases
//
// # Usage
//
//	type trackRequest struct {
//	    EventType string `json:"eventType" validate:"required,event_type"`
//	    TargetID  string `json:"targetId" validate:"max=256"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    writeJSON(w, http.StatusBadRequest, verr.ToAPIError())
//	    return
//	}
package validation
