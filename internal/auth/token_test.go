// Dealerlink - Car Marketplace Client Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dealerlink

package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/golang-jwt/jwt/v5"
	"github.com/tomtom215/dealerlink/internal/store"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   "buyer-42",
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret-test-secret-test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}

func TestTokenSource(t *testing.T) {
	ctx := context.Background()
	clock := quartz.NewMock(t)
	now := clock.Now()

	tests := []struct {
		name    string
		stored  *string
		want    string
		wantErr error
	}{
		{name: "missing", stored: nil, wantErr: ErrNoCredential},
		{name: "empty", stored: ptr("  "), wantErr: ErrNoCredential},
		{name: "opaque", stored: ptr("opaque-token-123"), want: "opaque-token-123"},
		{name: "bearer prefix stripped", stored: ptr("Bearer opaque-token-123"), want: "opaque-token-123"},
		{name: "expired jwt", stored: ptr(signedToken(t, now.Add(-time.Minute))), wantErr: ErrNoCredential},
		{name: "expiring within skew", stored: ptr(signedToken(t, now.Add(2*time.Second))), wantErr: ErrNoCredential},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := store.NewMemoryStore()
			if tt.stored != nil {
				if err := s.Set(ctx, store.AuthTokenKey, *tt.stored); err != nil {
					t.Fatal(err)
				}
			}
			got, err := NewTokenSource(s, "", clock).Token(ctx)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Token: %v", err)
			}
			if got != tt.want {
				t.Errorf("Token = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTokenSource_ValidJWT(t *testing.T) {
	ctx := context.Background()
	clock := quartz.NewMock(t)
	tok := signedToken(t, clock.Now().Add(time.Hour))

	s := store.NewMemoryStore()
	_ = s.Set(ctx, store.AuthTokenKey, tok)
	ts := NewTokenSource(s, store.AuthTokenKey, clock)

	got, err := ts.Token(ctx)
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if got != tok {
		t.Error("valid JWT should be returned unchanged")
	}

	clock.Set(clock.Now().Add(2 * time.Hour))
	if _, err := ts.Token(ctx); !errors.Is(err, ErrNoCredential) {
		t.Errorf("after expiry err = %v, want ErrNoCredential", err)
	}
}

func TestTokenSource_StoreError(t *testing.T) {
	s := store.NewMemoryStore()
	_ = s.Close()
	_, err := NewTokenSource(s, "", quartz.NewMock(t)).Token(context.Background())
	if !errors.Is(err, store.ErrClosed) {
		t.Errorf("err = %v, want wrapped ErrClosed", err)
	}
	if errors.Is(err, ErrNoCredential) {
		t.Error("store failure must not look like a missing credential")
	}
}

func ptr(s string) *string { return &s }
