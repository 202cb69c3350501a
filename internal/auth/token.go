// Dealerlink - Car Marketplace Client Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dealerlink

// Package auth reads the bearer credential the login flow leaves in the
// key-value store.
//
// The telemetry pipeline never refreshes or issues tokens. It only needs to
// know whether a usable one exists: a missing key, an empty value, or a JWT
// whose exp claim has passed all count as "no credential", which defers the
// flush instead of sending an unauthenticated batch. Opaque (non-JWT) tokens
// are passed through untouched.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coder/quartz"
	"github.com/golang-jwt/jwt/v5"
	"github.com/tomtom215/dealerlink/internal/store"
)

// ErrNoCredential means no usable bearer token is available right now.
var ErrNoCredential = errors.New("no credential available")

// expirySkew treats tokens that expire within this margin as already expired,
// so a batch is not sent with a token that lapses in flight.
const expirySkew = 5 * time.Second

// TokenSource reads the bearer token from a store key on every call.
type TokenSource struct {
	store store.Store
	key   string
	clock quartz.Clock
}

// NewTokenSource reads key from s. An empty key means store.AuthTokenKey.
func NewTokenSource(s store.Store, key string, clock quartz.Clock) *TokenSource {
	if key == "" {
		key = store.AuthTokenKey
	}
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &TokenSource{store: s, key: key, clock: clock}
}

// Token returns the current bearer token or an error wrapping ErrNoCredential.
// Store failures other than a missing key are returned as-is.
func (ts *TokenSource) Token(ctx context.Context) (string, error) {
	raw, err := ts.store.Get(ctx, ts.key)
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrNoCredential
	}
	if err != nil {
		return "", fmt.Errorf("read credential: %w", err)
	}

	token := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "Bearer "))
	if token == "" {
		return "", ErrNoCredential
	}
	if exp, ok := jwtExpiry(token); ok && !ts.clock.Now().Add(expirySkew).Before(exp) {
		return "", fmt.Errorf("%w: token expired at %s", ErrNoCredential, exp.UTC().Format(time.RFC3339))
	}
	return token, nil
}

// jwtExpiry returns the exp claim when token parses as a JWT that has one.
// The signature is not checked; the server does that.
func jwtExpiry(token string) (time.Time, bool) {
	if strings.Count(token, ".") != 2 {
		return time.Time{}, false
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
