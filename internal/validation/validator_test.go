// Dealerlink - Car Marketplace Client Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dealerlink

package validation

import (
	"strings"
	"testing"
)

func TestGetValidator_Singleton(t *testing.T) {
	v1 := GetValidator()
	v2 := GetValidator()
	if v1 == nil || v1 != v2 {
		t.Error("GetValidator() should return the same non-nil instance")
	}
}

type trackInput struct {
	EventType  string `json:"eventType" validate:"required,event_type"`
	TargetType string `json:"targetType" validate:"target_type"`
	TargetID   string `json:"targetId" validate:"max=8"`
}

type stateInput struct {
	State        string `json:"state" validate:"required,app_state"`
	Connectivity string `json:"connectivity" validate:"omitempty,connectivity"`
	Batch        int    `json:"batch" validate:"gte=1,lte=100"`
}

func TestValidateStruct_TelemetryTags(t *testing.T) {
	tests := []struct {
		name      string
		input     interface{}
		wantField string
		wantTag   string
	}{
		{"valid track", &trackInput{EventType: "CAR_VIEW", TargetType: "CAR", TargetID: "c1"}, "", ""},
		{"lowercase event", &trackInput{EventType: "car_save"}, "", ""},
		{"unknown event", &trackInput{EventType: "CAR_BUY"}, "eventType", "event_type"},
		{"missing event", &trackInput{}, "eventType", "required"},
		{"unknown target", &trackInput{EventType: "SEARCH", TargetType: "BOAT"}, "targetType", "target_type"},
		{"long target id", &trackInput{EventType: "SEARCH", TargetID: "123456789"}, "targetId", "max"},
		{"valid state", &stateInput{State: "background", Connectivity: "online", Batch: 5}, "", ""},
		{"bad state", &stateInput{State: "sleeping", Batch: 5}, "state", "app_state"},
		{"bad connectivity", &stateInput{State: "active", Connectivity: "maybe", Batch: 5}, "connectivity", "connectivity"},
		{"batch too big", &stateInput{State: "active", Batch: 500}, "batch", "lte"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(tt.input)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected validation error")
			}
			first := err.Errors()[0]
			if first.Field() != tt.wantField || first.Tag() != tt.wantTag {
				t.Errorf("got field=%q tag=%q, want %q/%q", first.Field(), first.Tag(), tt.wantField, tt.wantTag)
			}
		})
	}
}

func TestToAPIError(t *testing.T) {
	err := ValidateStruct(&trackInput{EventType: "CAR_BUY"})
	apiErr := err.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("Code = %q", apiErr.Code)
	}
	if apiErr.Message != "eventType must be a known event type" {
		t.Errorf("Message = %q", apiErr.Message)
	}
	if apiErr.Details["field"] != "eventType" {
		t.Errorf("Details = %v", apiErr.Details)
	}

	multi := ValidateStruct(&stateInput{State: "x", Batch: 0}).ToAPIError()
	if !strings.Contains(multi.Message, "state:") || !strings.Contains(multi.Message, "batch:") {
		t.Errorf("multi message = %q", multi.Message)
	}
	if fields, ok := multi.Details["fields"].([]map[string]interface{}); !ok || len(fields) != 2 {
		t.Errorf("fields = %v", multi.Details["fields"])
	}
}

func TestTranslateMinMax(t *testing.T) {
	type lengths struct {
		Name  string `json:"name" validate:"min=3"`
		Count int    `json:"count" validate:"max=2"`
	}
	err := ValidateStruct(&lengths{Name: "ab", Count: 3})
	if err == nil {
		t.Fatal("expected errors")
	}
	msgs := err.Error()
	if !strings.Contains(msgs, "name must be at least 3 characters") {
		t.Errorf("missing string min message: %s", msgs)
	}
	if !strings.Contains(msgs, "count must be at most 2") {
		t.Errorf("missing numeric max message: %s", msgs)
	}
}
