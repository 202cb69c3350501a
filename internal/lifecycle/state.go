// Dealerlink - Car Marketplace Client Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dealerlink

// Package lifecycle models the host application's foreground state and
// network reachability as explicit state machines.
//
// The transition functions NextAppState and NextConnectivity are pure: they
// map (current, observed) to the next state and an ordered list of Effects
// for the caller to apply. Timers, subscriptions and I/O stay with the
// caller, which keeps the decision logic testable with plain tables.
//
// Notifications arrive through a Feed. Two sources publish into feeds here:
// SignalSource (SIGUSR1/SIGUSR2 from the mobile shell) and Prober (periodic
// TCP reachability checks).
package lifecycle

import (
	"fmt"
	"strings"
)

// AppState is the host application's foreground state.
type AppState int

const (
	AppActive AppState = iota
	AppBackground
)

func (s AppState) String() string {
	switch s {
	case AppActive:
		return "active"
	case AppBackground:
		return "background"
	default:
		return fmt.Sprintf("AppState(%d)", int(s))
	}
}

// ParseAppState accepts the platform's names. "inactive" is folded into
// background: both mean the app is not in the foreground.
func ParseAppState(s string) (AppState, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "active", "foreground":
		return AppActive, nil
	case "inactive", "background":
		return AppBackground, nil
	default:
		return AppActive, fmt.Errorf("unknown app state %q", s)
	}
}

// Connectivity is the last known network reachability.
type Connectivity int

const (
	// ConnectivityUnknown is the state before the first report. It does not
	// gate flushing.
	ConnectivityUnknown Connectivity = iota
	Online
	Offline
)

func (c Connectivity) String() string {
	switch c {
	case ConnectivityUnknown:
		return "unknown"
	case Online:
		return "online"
	case Offline:
		return "offline"
	default:
		return fmt.Sprintf("Connectivity(%d)", int(c))
	}
}

// ParseConnectivity accepts "online"/"offline" and the boolean spellings the
// reachability libraries use.
func ParseConnectivity(s string) (Connectivity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "online", "connected", "true":
		return Online, nil
	case "offline", "disconnected", "false":
		return Offline, nil
	case "unknown", "":
		return ConnectivityUnknown, nil
	default:
		return ConnectivityUnknown, fmt.Errorf("unknown connectivity %q", s)
	}
}

// Effect is a side effect requested by a transition. The caller applies
// effects in the order returned.
type Effect int

const (
	EffectRecordBackground Effect = iota + 1
	EffectRecordForeground
	EffectStopTimer
	EffectStartTimer
	EffectFlush
	EffectPersist
)

func (e Effect) String() string {
	switch e {
	case EffectRecordBackground:
		return "record_background"
	case EffectRecordForeground:
		return "record_foreground"
	case EffectStopTimer:
		return "stop_timer"
	case EffectStartTimer:
		return "start_timer"
	case EffectFlush:
		return "flush"
	case EffectPersist:
		return "persist"
	default:
		return fmt.Sprintf("Effect(%d)", int(e))
	}
}

// NextAppState settles a debounced app-state change. A settled state equal
// to the current one yields no effects, which is how rapid toggles inside
// the debounce window collapse to nothing.
//
// Callers must switch to the returned state before applying the effects, so
// that events recorded by the effects see the new state.
func NextAppState(current, settled AppState, queueLen int) (AppState, []Effect) {
	if current == settled {
		return current, nil
	}
	switch settled {
	case AppBackground:
		return AppBackground, []Effect{
			EffectRecordBackground,
			EffectStopTimer,
			EffectFlush,
			EffectPersist,
		}
	case AppActive:
		effects := []Effect{EffectRecordForeground}
		if queueLen > 0 {
			effects = append(effects, EffectStartTimer)
		}
		return AppActive, effects
	default:
		return current, nil
	}
}

// NextConnectivity applies a reachability report. Only a recovery from a
// known Offline state with queued events asks for an immediate flush.
func NextConnectivity(current, observed Connectivity, queueLen int) (Connectivity, []Effect) {
	if current == observed {
		return current, nil
	}
	if current == Offline && observed == Online && queueLen > 0 {
		return observed, []Effect{EffectFlush}
	}
	return observed, nil
}
