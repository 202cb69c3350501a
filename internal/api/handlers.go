// Dealerlink - Car Marketplace Client Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dealerlink

package api

import (
	"net/http"

	"github.com/tomtom215/dealerlink/internal/analytics"
	"github.com/tomtom215/dealerlink/internal/lifecycle"
)

// TrackRequest is the body of POST /v1/track.
type TrackRequest struct {
	EventType  string         `json:"eventType" validate:"required,event_type"`
	TargetType string         `json:"targetType,omitempty" validate:"omitempty,target_type"`
	TargetID   string         `json:"targetId,omitempty" validate:"max=256"`
	Metadata   map[string]any `json:"metadata,omitempty" validate:"omitempty,max=50"`
}

// ScreenRequest is the body of POST /v1/screen.
type ScreenRequest struct {
	Screen string `json:"screen" validate:"required,max=128"`
}

// AppStateRequest is the body of POST /v1/lifecycle.
type AppStateRequest struct {
	State string `json:"state" validate:"required,app_state"`
}

// ConnectivityRequest is the body of POST /v1/connectivity.
type ConnectivityRequest struct {
	State string `json:"state" validate:"required,connectivity"`
}

// FlushResponse reports the outcome of POST /v1/flush.
type FlushResponse struct {
	Result    string `json:"result"`
	QueueSize int    `json:"queueSize"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status      string `json:"status"`
	Initialized bool   `json:"initialized"`
	SessionID   string `json:"sessionId,omitempty"`
}

type accepted struct {
	Accepted bool `json:"accepted"`
}

func (rt *Router) track(w http.ResponseWriter, r *http.Request) {
	var req TrackRequest
	if !decodeAndValidate(w, r, rt.config.MaxBodyBytes, &req) {
		return
	}
	// Both parses already passed validation.
	eventType, _ := analytics.ParseEventType(req.EventType)
	targetType, _ := analytics.ParseTargetType(req.TargetType)

	rt.pipeline.Track(eventType, targetType, req.TargetID, req.Metadata)
	respondOK(w, http.StatusAccepted, accepted{Accepted: true})
}

func (rt *Router) screen(w http.ResponseWriter, r *http.Request) {
	var req ScreenRequest
	if !decodeAndValidate(w, r, rt.config.MaxBodyBytes, &req) {
		return
	}
	rt.pipeline.TrackScreen(req.Screen)
	respondOK(w, http.StatusAccepted, accepted{Accepted: true})
}

func (rt *Router) appState(w http.ResponseWriter, r *http.Request) {
	var req AppStateRequest
	if !decodeAndValidate(w, r, rt.config.MaxBodyBytes, &req) {
		return
	}
	state, _ := lifecycle.ParseAppState(req.State)
	rt.appStates.Publish(state)
	respondOK(w, http.StatusAccepted, map[string]string{"state": state.String()})
}

func (rt *Router) connectivityChange(w http.ResponseWriter, r *http.Request) {
	var req ConnectivityRequest
	if !decodeAndValidate(w, r, rt.config.MaxBodyBytes, &req) {
		return
	}
	state, _ := lifecycle.ParseConnectivity(req.State)
	rt.connectivity.Publish(state)
	respondOK(w, http.StatusAccepted, map[string]string{"state": state.String()})
}

func (rt *Router) flush(w http.ResponseWriter, r *http.Request) {
	result := rt.pipeline.Flush(r.Context())
	resp := FlushResponse{Result: result.String(), QueueSize: rt.pipeline.Stats().QueueSize}

	status := http.StatusOK
	switch result {
	case analytics.FlushFailed:
		status = http.StatusBadGateway
	case analytics.FlushSkippedNotInitialized:
		status = http.StatusConflict
	}
	respondOK(w, status, resp)
}

func (rt *Router) endSession(w http.ResponseWriter, r *http.Request) {
	rt.pipeline.EndSession(r.Context())
	respondOK(w, http.StatusOK, rt.pipeline.Stats())
}

func (rt *Router) stats(w http.ResponseWriter, _ *http.Request) {
	respondOK(w, http.StatusOK, rt.pipeline.Stats())
}

// health reports 503 until a session is running.
func (rt *Router) health(w http.ResponseWriter, _ *http.Request) {
	st := rt.pipeline.Stats()
	resp := HealthResponse{Status: "ok", Initialized: st.Initialized, SessionID: st.SessionID}
	status := http.StatusOK
	if !st.Initialized {
		resp.Status = "starting"
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Cache-Control", "no-store")
	respondOK(w, status, resp)
}
