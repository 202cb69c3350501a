// Dealerlink - Car Marketplace Client Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dealerlink

package analytics

import (
	"fmt"
	"strings"
	"time"
)

// EventType is the closed set of tracked actions.
type EventType string

const (
	EventCarView       EventType = "CAR_VIEW"
	EventCarSave       EventType = "CAR_SAVE"
	EventCarUnsave     EventType = "CAR_UNSAVE"
	EventCarShare      EventType = "CAR_SHARE"
	EventCarContact    EventType = "CAR_CONTACT"
	EventDealerView    EventType = "DEALER_VIEW"
	EventGroupView     EventType = "GROUP_VIEW"
	EventChatOpen      EventType = "CHAT_OPEN"
	EventSearch        EventType = "SEARCH"
	EventFilterApply   EventType = "FILTER_APPLY"
	EventScreenView    EventType = "SCREEN_VIEW"
	EventImageView     EventType = "IMAGE_VIEW"
	EventImageSwipe    EventType = "IMAGE_SWIPE"
	EventError         EventType = "ERROR"
	EventAppBackground EventType = "APP_BACKGROUND"
	EventAppForeground EventType = "APP_FOREGROUND"
)

var eventTypes = map[EventType]struct{}{
	EventCarView: {}, EventCarSave: {}, EventCarUnsave: {}, EventCarShare: {},
	EventCarContact: {}, EventDealerView: {}, EventGroupView: {}, EventChatOpen: {},
	EventSearch: {}, EventFilterApply: {}, EventScreenView: {}, EventImageView: {},
	EventImageSwipe: {}, EventError: {}, EventAppBackground: {}, EventAppForeground: {},
}

// ParseEventType validates s against the closed set. Matching is
// case-insensitive.
func ParseEventType(s string) (EventType, error) {
	et := EventType(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := eventTypes[et]; !ok {
		return "", fmt.Errorf("unknown event type %q", s)
	}
	return et, nil
}

// Valid reports whether t is in the closed set.
func (t EventType) Valid() bool {
	_, ok := eventTypes[t]
	return ok
}

// TargetType categorizes the subject of an event.
type TargetType string

const (
	TargetNone   TargetType = ""
	TargetCar    TargetType = "CAR"
	TargetDealer TargetType = "DEALER"
	TargetUser   TargetType = "USER"
	TargetScreen TargetType = "SCREEN"
	TargetSearch TargetType = "SEARCH"
	TargetGroup  TargetType = "GROUP"
	TargetChat   TargetType = "CHAT"
	TargetImage  TargetType = "IMAGE"
)

var targetTypes = map[TargetType]struct{}{
	TargetCar: {}, TargetDealer: {}, TargetUser: {}, TargetScreen: {},
	TargetSearch: {}, TargetGroup: {}, TargetChat: {}, TargetImage: {},
}

// ParseTargetType validates s. The empty string is TargetNone.
func ParseTargetType(s string) (TargetType, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return TargetNone, nil
	}
	tt := TargetType(strings.ToUpper(s))
	if _, ok := targetTypes[tt]; !ok {
		return "", fmt.Errorf("unknown target type %q", s)
	}
	return tt, nil
}

// Valid reports whether t is TargetNone or in the closed set.
func (t TargetType) Valid() bool {
	if t == TargetNone {
		return true
	}
	_, ok := targetTypes[t]
	return ok
}

// EventTypes returns every event type name, for validators and docs.
func EventTypes() []string {
	out := make([]string, 0, len(eventTypes))
	for et := range eventTypes {
		out = append(out, string(et))
	}
	return out
}

// TargetTypes returns every target type name.
func TargetTypes() []string {
	out := make([]string, 0, len(targetTypes))
	for tt := range targetTypes {
		out = append(out, string(tt))
	}
	return out
}

// Event is one telemetry record as sent to the server.
type Event struct {
	SessionID       string         `json:"sessionId"`
	EventType       EventType      `json:"eventType"`
	TargetType      TargetType     `json:"targetType,omitempty"`
	TargetID        string         `json:"targetId,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	ScreenName      string         `json:"screenName,omitempty"`
	PreviousScreen  string         `json:"previousScreen,omitempty"`
	SessionDuration int64          `json:"sessionDuration"`
	ClientTimestamp string         `json:"clientTimestamp"`

	// queued is true while the event sits in the service queue. Events
	// sliced into an in-flight batch are not queued and are never mutated.
	queued bool
}

// timestampLayout is RFC 3339 with millisecond precision.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// eventKey identifies "the same event" for dedup and aggregation.
func eventKey(et EventType, tt TargetType, targetID string) string {
	return string(et) + "|" + string(tt) + "|" + targetID
}
