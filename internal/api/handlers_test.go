// Dealerlink - Car Marketplace Client Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dealerlink

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/dealerlink/internal/analytics"
	"github.com/tomtom215/dealerlink/internal/lifecycle"
)

type trackCall struct {
	eventType  analytics.EventType
	targetType analytics.TargetType
	targetID   string
	metadata   map[string]any
}

type fakePipeline struct {
	mu          sync.Mutex
	tracks      []trackCall
	screens     []string
	ends        int
	flushResult analytics.FlushResult
	stats       analytics.Stats
}

func (f *fakePipeline) Track(et analytics.EventType, tt analytics.TargetType, id string, meta map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tracks = append(f.tracks, trackCall{et, tt, id, meta})
}

func (f *fakePipeline) TrackScreen(screen string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.screens = append(f.screens, screen)
}

func (f *fakePipeline) Flush(context.Context) analytics.FlushResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.flushResult
}

func (f *fakePipeline) EndSession(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ends++
	f.stats.Initialized = false
}

func (f *fakePipeline) Stats() analytics.Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats
}

type testAPI struct {
	pipeline *fakePipeline
	apps     *lifecycle.Feed[lifecycle.AppState]
	conns    *lifecycle.Feed[lifecycle.Connectivity]
	handler  http.Handler
}

func newTestAPI(t *testing.T, mutate func(*RouterConfig)) *testAPI {
	t.Helper()
	cfg := DefaultRouterConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	ta := &testAPI{
		pipeline: &fakePipeline{
			flushResult: analytics.FlushSent,
			stats:       analytics.Stats{SessionID: "session_1772366400000_abc123def", Initialized: true, QueueSize: 3},
		},
		apps:  lifecycle.NewFeed[lifecycle.AppState](),
		conns: lifecycle.NewFeed[lifecycle.Connectivity](),
	}
	ta.handler = NewRouter(cfg, ta.pipeline, ta.apps, ta.conns).Handler()
	return ta
}

func (ta *testAPI) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.RemoteAddr = "192.0.2.10:51234"
	rec := httptest.NewRecorder()
	ta.handler.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return env
}

func TestTrack(t *testing.T) {
	ta := newTestAPI(t, nil)

	rec := ta.do(http.MethodPost, "/v1/track",
		`{"eventType":"car_view","targetType":"car","targetId":"car123","metadata":{"source":"search"}}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if env := decode(t, rec); env.Status != "success" {
		t.Errorf("status field = %q", env.Status)
	}

	if len(ta.pipeline.tracks) != 1 {
		t.Fatalf("Track calls = %d", len(ta.pipeline.tracks))
	}
	got := ta.pipeline.tracks[0]
	if got.eventType != analytics.EventCarView || got.targetType != analytics.TargetCar || got.targetID != "car123" {
		t.Errorf("Track(%q, %q, %q)", got.eventType, got.targetType, got.targetID)
	}
	if got.metadata["source"] != "search" {
		t.Errorf("metadata = %v", got.metadata)
	}
}

func TestTrack_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"unknown event type", `{"eventType":"CAR_TELEPORT"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"missing event type", `{"targetId":"car1"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown target type", `{"eventType":"CAR_VIEW","targetType":"BOAT"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown field", `{"eventType":"CAR_VIEW","userEmail":"a@b.c"}`, http.StatusBadRequest, "INVALID_JSON"},
		{"malformed", `{"eventType":`, http.StatusBadRequest, "INVALID_JSON"},
		{"empty", ``, http.StatusBadRequest, "INVALID_JSON"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ta := newTestAPI(t, nil)
			rec := ta.do(http.MethodPost, "/v1/track", tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.status, rec.Body.String())
			}
			env := decode(t, rec)
			if env.Error == nil || env.Error.Code != tt.code {
				t.Errorf("error = %+v, want code %s", env.Error, tt.code)
			}
			if len(ta.pipeline.tracks) != 0 {
				t.Error("rejected request reached the pipeline")
			}
		})
	}
}

func TestTrack_ValidationNamesJSONField(t *testing.T) {
	ta := newTestAPI(t, nil)
	rec := ta.do(http.MethodPost, "/v1/track", `{"eventType":"NOPE"}`)
	env := decode(t, rec)
	if env.Error == nil || !strings.Contains(env.Error.Message, "eventType") {
		t.Errorf("error = %+v, want message naming eventType", env.Error)
	}
}

func TestTrack_BodyTooLarge(t *testing.T) {
	ta := newTestAPI(t, func(c *RouterConfig) { c.MaxBodyBytes = 32 })
	rec := ta.do(http.MethodPost, "/v1/track",
		`{"eventType":"SEARCH","metadata":{"query":"a very long query that will not fit"}}`)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
}

func TestScreen(t *testing.T) {
	ta := newTestAPI(t, nil)
	if rec := ta.do(http.MethodPost, "/v1/screen", `{"screen":"CarDetails"}`); rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec := ta.do(http.MethodPost, "/v1/screen", `{"screen":""}`); rec.Code != http.StatusBadRequest {
		t.Errorf("empty screen status = %d, want 400", rec.Code)
	}
	if len(ta.pipeline.screens) != 1 || ta.pipeline.screens[0] != "CarDetails" {
		t.Errorf("screens = %v", ta.pipeline.screens)
	}
}

func TestLifecycle_PublishesAppState(t *testing.T) {
	ta := newTestAPI(t, nil)
	var got []lifecycle.AppState
	ta.apps.Subscribe(func(s lifecycle.AppState) { got = append(got, s) })

	rec := ta.do(http.MethodPost, "/v1/lifecycle", `{"state":"background"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec := ta.do(http.MethodPost, "/v1/lifecycle", `{"state":"asleep"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid state status = %d", rec.Code)
	}
	if len(got) != 1 || got[0] != lifecycle.AppBackground {
		t.Errorf("published = %v", got)
	}
}

func TestConnectivity_PublishesState(t *testing.T) {
	ta := newTestAPI(t, nil)

	if rec := ta.do(http.MethodPost, "/v1/connectivity", `{"state":"offline"}`); rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rec.Code)
	}
	last, ok := ta.conns.Last()
	if !ok || last != lifecycle.Offline {
		t.Errorf("Last = %v, %v; want offline", last, ok)
	}
}

func TestFlush_StatusByResult(t *testing.T) {
	tests := []struct {
		result analytics.FlushResult
		status int
	}{
		{analytics.FlushSent, http.StatusOK},
		{analytics.FlushSkippedRateLimited, http.StatusOK},
		{analytics.FlushDeferredOffline, http.StatusOK},
		{analytics.FlushFailed, http.StatusBadGateway},
		{analytics.FlushSkippedNotInitialized, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.result.String(), func(t *testing.T) {
			ta := newTestAPI(t, nil)
			ta.pipeline.flushResult = tt.result

			rec := ta.do(http.MethodPost, "/v1/flush", "")
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			var resp FlushResponse
			if err := json.Unmarshal(decode(t, rec).Data, &resp); err != nil {
				t.Fatal(err)
			}
			if resp.Result != tt.result.String() || resp.QueueSize != 3 {
				t.Errorf("resp = %+v", resp)
			}
		})
	}
}

func TestEndSessionAndStats(t *testing.T) {
	ta := newTestAPI(t, nil)

	rec := ta.do(http.MethodGet, "/v1/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("stats status = %d", rec.Code)
	}
	var st analytics.Stats
	if err := json.Unmarshal(decode(t, rec).Data, &st); err != nil {
		t.Fatal(err)
	}
	if !st.Initialized || st.QueueSize != 3 {
		t.Errorf("stats = %+v", st)
	}
	if rec.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("Cache-Control = %q", rec.Header().Get("Cache-Control"))
	}

	if rec := ta.do(http.MethodPost, "/v1/session/end", ""); rec.Code != http.StatusOK {
		t.Fatalf("end status = %d", rec.Code)
	}
	if ta.pipeline.ends != 1 {
		t.Errorf("EndSession calls = %d", ta.pipeline.ends)
	}
}

func TestHealth(t *testing.T) {
	ta := newTestAPI(t, nil)
	rec := ta.do(http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var h HealthResponse
	if err := json.Unmarshal(decode(t, rec).Data, &h); err != nil {
		t.Fatal(err)
	}
	if h.Status != "ok" || h.SessionID == "" {
		t.Errorf("health = %+v", h)
	}

	ta.pipeline.stats.Initialized = false
	if rec := ta.do(http.MethodGet, "/healthz", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status before session = %d, want 503", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	ta := newTestAPI(t, func(c *RouterConfig) {
		c.RateLimitRequests = 2
		c.RateLimitWindow = time.Hour
	})
	for i := 0; i < 2; i++ {
		if rec := ta.do(http.MethodGet, "/v1/stats", ""); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, rec.Code)
		}
	}
	rec := ta.do(http.MethodGet, "/v1/stats", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if env := decode(t, rec); env.Error == nil || env.Error.Code != "RATE_LIMITED" {
		t.Errorf("error = %+v", env.Error)
	}

	// Health is outside the limited group.
	if rec := ta.do(http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ta := newTestAPI(t, nil)
	ta.do(http.MethodGet, "/v1/stats", "")

	rec := ta.do(http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `dealerlink_api_requests_total{endpoint="/v1/stats"`) {
		t.Error("metrics output lacks the /v1/stats request counter")
	}
}

func TestSanitizeLogValue(t *testing.T) {
	if got := sanitizeLogValue("a\nb\x7f"); got != `a\x0ab\x7f` {
		t.Errorf("sanitizeLogValue = %q", got)
	}
}
