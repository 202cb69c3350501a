// Dealerlink - Car Marketplace Client Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dealerlink

// Package device reports the device context attached to every session and
// event batch.
package device

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/elastic/go-sysinfo"
)

// Info is the identity block sent with session start, session end and event
// batches.
type Info struct {
	DeviceType  string `json:"deviceType"`
	DeviceModel string `json:"deviceModel"`
	AppVersion  string `json:"appVersion"`
	OSVersion   string `json:"osVersion"`
}

// Provider returns the current device info.
type Provider interface {
	Info(ctx context.Context) (Info, error)
}

// ErrUnavailable is returned when the host cannot be inspected.
var ErrUnavailable = errors.New("device info unavailable")

// HostProvider reads platform details from the host with go-sysinfo. The
// lookup runs once; later calls return the cached result.
type HostProvider struct {
	appVersion string
	deviceType string

	once sync.Once
	info Info
	err  error
}

// NewHostProvider returns a provider for appVersion. A non-empty deviceType
// overrides the detected platform (the mobile shell sets "ios" or "android").
func NewHostProvider(appVersion, deviceType string) *HostProvider {
	return &HostProvider{appVersion: appVersion, deviceType: deviceType}
}

func (p *HostProvider) Info(ctx context.Context) (Info, error) {
	if err := ctx.Err(); err != nil {
		return Info{}, err
	}
	p.once.Do(func() {
		p.info, p.err = p.lookup()
	})
	return p.info, p.err
}

func (p *HostProvider) lookup() (Info, error) {
	host, err := sysinfo.Host()
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	hi := host.Info()

	info := Info{
		DeviceType:  p.deviceType,
		DeviceModel: hi.Architecture,
		AppVersion:  p.appVersion,
	}
	if hi.OS != nil {
		if info.DeviceType == "" {
			info.DeviceType = hi.OS.Platform
		}
		info.OSVersion = hi.OS.Version
		if info.OSVersion == "" {
			info.OSVersion = hi.KernelVersion
		}
		if hi.OS.Name != "" {
			info.DeviceModel = hi.OS.Name + " " + hi.Architecture
		}
	}
	if info.DeviceType == "" {
		info.DeviceType = "unknown"
	}
	return info, nil
}

// Static always returns the same Info.
type Static Info

func (s Static) Info(ctx context.Context) (Info, error) {
	if err := ctx.Err(); err != nil {
		return Info{}, err
	}
	return Info(s), nil
}
