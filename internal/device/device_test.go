// Dealerlink - Car Marketplace Client Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dealerlink

package device

import (
	"context"
	"errors"
	"testing"
)

func TestHostProvider(t *testing.T) {
	p := NewHostProvider("2.4.1", "android")

	info, err := p.Info(context.Background())
	if err != nil {
		t.Skipf("host info not available here: %v", err)
	}
	if info.DeviceType != "android" {
		t.Errorf("DeviceType = %q, want override android", info.DeviceType)
	}
	if info.AppVersion != "2.4.1" {
		t.Errorf("AppVersion = %q", info.AppVersion)
	}
	if info.DeviceModel == "" {
		t.Error("DeviceModel should be detected")
	}

	again, _ := p.Info(context.Background())
	if again != info {
		t.Errorf("second lookup = %+v, want cached %+v", again, info)
	}
}

func TestHostProvider_DetectsPlatform(t *testing.T) {
	info, err := NewHostProvider("1.0.0", "").Info(context.Background())
	if err != nil {
		t.Skipf("host info not available here: %v", err)
	}
	if info.DeviceType == "" {
		t.Error("DeviceType should never be empty")
	}
}

func TestStatic(t *testing.T) {
	want := Info{DeviceType: "ios", DeviceModel: "iPhone15,2", AppVersion: "3.0.0", OSVersion: "17.4"}
	got, err := Static(want).Info(context.Background())
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if got != want {
		t.Errorf("Info = %+v, want %+v", got, want)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Static(want).Info(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("canceled ctx err = %v", err)
	}
}
