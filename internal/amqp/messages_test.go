package amqp

import (
	"testing"
	"time"
)

func TestNewLedgerEvent(t *testing.T) {
	event := NewLedgerEvent(EventTransactionCreated, "owner-1")

	if event.Kind != EventTransactionCreated {
		t.Errorf("Kind = %v, want %v", event.Kind, EventTransactionCreated)
	}
	if event.OwnerID != "owner-1" {
		t.Errorf("OwnerID = %v, want owner-1", event.OwnerID)
	}
	if event.Timestamp.IsZero() {
		t.Error("Timestamp should not be zero")
	}
	if time.Since(event.Timestamp) > time.Second {
		t.Error("Timestamp should be recent")
	}
}

func TestLedgerEvent_JSON(t *testing.T) {
	event := LedgerEvent{
		Kind:        EventTransferCompleted,
		OwnerID:     "owner-1",
		GroupID:     "grp-1",
		AccountID:   "acc-1",
		AmountCents: 4000,
		Timestamp:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	data, err := event.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	parsed, err := LedgerEventFromJSON(data)
	if err != nil {
		t.Fatalf("LedgerEventFromJSON() error = %v", err)
	}
	if parsed.Kind != event.Kind || parsed.GroupID != event.GroupID || parsed.AmountCents != event.AmountCents {
		t.Errorf("parsed event %+v does not match %+v", parsed, event)
	}
	if !parsed.Timestamp.Equal(event.Timestamp) {
		t.Errorf("parsed Timestamp = %v, want %v", parsed.Timestamp, event.Timestamp)
	}

	if _, err := LedgerEventFromJSON([]byte(`{"amountCents": "nope"}`)); err == nil {
		t.Error("LedgerEventFromJSON() should fail with invalid JSON")
	}
}
