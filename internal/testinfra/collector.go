// Dealerlink - Car Marketplace Client Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dealerlink

package testinfra

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

// Capture is one request received by MockCollector.
type Capture struct {
	Method  string
	Path    string
	Headers http.Header
	Body    []byte
}

// Decode unmarshals the captured body into v.
func (c Capture) Decode(v any) error {
	return json.Unmarshal(c.Body, v)
}

// MockCollector records requests to the analytics endpoints and answers
// with a configurable status.
type MockCollector struct {
	server *httptest.Server

	mu       sync.Mutex
	captures []Capture
	status   int
	// block, when non-nil, holds every request until it is closed.
	block chan struct{}
}

// NewMockCollector starts a collector that answers 200 and is closed at test
// cleanup.
func NewMockCollector(t *testing.T) *MockCollector {
	t.Helper()

	m := &MockCollector{status: http.StatusOK}
	m.server = httptest.NewServer(http.HandlerFunc(m.handle))
	t.Cleanup(m.Close)
	return m
}

func (m *MockCollector) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	_ = r.Body.Close()

	m.mu.Lock()
	m.captures = append(m.captures, Capture{
		Method:  r.Method,
		Path:    r.URL.Path,
		Headers: r.Header.Clone(),
		Body:    body,
	})
	status := m.status
	block := m.block
	m.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-r.Context().Done():
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"ok":true}`))
}

// URL is the base URL of the collector.
func (m *MockCollector) URL() string {
	return m.server.URL
}

func (m *MockCollector) Close() {
	m.Release()
	m.server.Close()
}

// SetStatus changes the status code returned to subsequent requests.
func (m *MockCollector) SetStatus(code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = code
}

// Hold makes subsequent requests wait until Release is called.
func (m *MockCollector) Hold() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.block == nil {
		m.block = make(chan struct{})
	}
}

// Release lets held requests complete.
func (m *MockCollector) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.block != nil {
		close(m.block)
		m.block = nil
	}
}

// Captures returns a copy of every request received so far.
func (m *MockCollector) Captures() []Capture {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Capture, len(m.captures))
	copy(out, m.captures)
	return out
}

// CapturesFor returns the requests whose path equals path.
func (m *MockCollector) CapturesFor(path string) []Capture {
	var out []Capture
	for _, c := range m.Captures() {
		if c.Path == path {
			out = append(out, c)
		}
	}
	return out
}

// WaitForCaptures polls until at least n requests have arrived on path.
func (m *MockCollector) WaitForCaptures(t *testing.T, path string, n int) []Capture {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if got := m.CapturesFor(path); len(got) >= n {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d requests on %s, got %d", n, path, len(m.CapturesFor(path)))
	return nil
}
