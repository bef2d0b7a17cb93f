package event

import (
	"testing"
	"time"
)

func TestType_IsValid(t *testing.T) {
	tests := []struct {
		name      string
		eventType Type
		want      bool
	}{
		{"submitted", TypeInvoiceSubmitted, true},
		{"status changed", TypeStatusChanged, true},
		{"extraction completed", TypeExtractionCompleted, true},
		{"extraction failed", TypeExtractionFailed, true},
		{"notification created", TypeNotificationCreated, true},
		{"unknown", Type("voucher.generated"), false},
		{"empty", Type(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.eventType.IsValid(); got != tt.want {
				t.Errorf("Type.IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewEvent(t *testing.T) {
	before := time.Now()
	evt := NewEvent(TypeStatusChanged, "inv-1", map[string]interface{}{KeyToStatus: "APPROVED"})

	if evt.ID == "" {
		t.Error("NewEvent() should assign an id")
	}
	if evt.InvoiceID != "inv-1" {
		t.Errorf("InvoiceID = %v, want inv-1", evt.InvoiceID)
	}
	if evt.Timestamp.Before(before) {
		t.Error("Timestamp should not be before creation")
	}
	if got := evt.GetPayloadString(KeyToStatus); got != "APPROVED" {
		t.Errorf("GetPayloadString() = %v, want APPROVED", got)
	}

	other := NewEvent(TypeStatusChanged, "inv-1", nil)
	if other.ID == evt.ID {
		t.Error("two events should not share an id")
	}
	if other.Payload == nil {
		t.Error("nil payload should be replaced with an empty map")
	}
}

func TestEvent_WithPayloadDoesNotMutateOriginal(t *testing.T) {
	evt := NewEvent(TypeNotificationCreated, "inv-1", map[string]interface{}{KeyUserID: "u-1"})
	next := evt.WithPayload(KeyMessage, "hello")

	if _, ok := evt.Payload[KeyMessage]; ok {
		t.Error("WithPayload() mutated the original payload")
	}
	if next.GetPayloadString(KeyMessage) != "hello" || next.GetPayloadString(KeyUserID) != "u-1" {
		t.Errorf("WithPayload() payload = %v", next.Payload)
	}
	if next.ID != evt.ID {
		t.Error("WithPayload() should keep the event id")
	}
	if next.GetPayloadString("missing") != "" {
		t.Error("missing key should return empty string")
	}
}
