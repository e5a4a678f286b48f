package amqp

import (
	"testing"
	"time"
)

func TestNewBalanceChangedMessage(t *testing.T) {
	msg := NewBalanceChangedMessage(3, -2500, 97500, "groceries")

	if msg.AccountID != 3 {
		t.Errorf("AccountID = %d, want 3", msg.AccountID)
	}
	if msg.DeltaCents != -2500 {
		t.Errorf("DeltaCents = %d, want -2500", msg.DeltaCents)
	}
	if msg.BalanceCents != 97500 {
		t.Errorf("BalanceCents = %d, want 97500", msg.BalanceCents)
	}
	if msg.Timestamp.IsZero() || time.Since(msg.Timestamp) > time.Second {
		t.Errorf("Timestamp not recent: %v", msg.Timestamp)
	}
}

func TestBalanceChangedMessageJSONRoundTrip(t *testing.T) {
	msg := &BalanceChangedMessage{
		AccountID:    7,
		DeltaCents:   1200,
		BalanceCents: 5400,
		Note:         "salary",
		Timestamp:    time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC),
	}

	raw, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	parsed, err := BalanceChangedMessageFromJSON(raw)
	if err != nil {
		t.Fatalf("BalanceChangedMessageFromJSON: %v", err)
	}
	if parsed.AccountID != msg.AccountID || parsed.DeltaCents != msg.DeltaCents ||
		parsed.BalanceCents != msg.BalanceCents || parsed.Note != msg.Note {
		t.Fatalf("round trip mismatch: %+v", parsed)
	}
	if !parsed.Timestamp.Equal(msg.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", parsed.Timestamp, msg.Timestamp)
	}
}

func TestBalanceChangedMessageInvalidJSON(t *testing.T) {
	if _, err := BalanceChangedMessageFromJSON([]byte(`{"account_id": "x"}`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
}
