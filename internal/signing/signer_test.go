package signing

import (
	"testing"
	"time"
)

func TestEventSigner_Sign(t *testing.T) {
	signer := NewEventSigner([]byte("device-secret"), "sentinel-audit")
	timestamp := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	eventID := "event-123"
	data := []byte(`{"test": "data"}`)

	signature := signer.Sign(eventID, timestamp, data)

	// Signature should not be empty
	if signature == "" {
		t.Error("expected non-empty signature")
	}

	// Signature should be deterministic
	signature2 := signer.Sign(eventID, timestamp, data)
	if signature != signature2 {
		t.Error("expected deterministic signatures for same input")
	}

	// Different inputs should produce different signatures
	signature3 := signer.Sign("different-event", timestamp, data)
	if signature == signature3 {
		t.Error("expected different signatures for different event IDs")
	}
}

func TestEventSigner_Verify(t *testing.T) {
	signer := NewEventSigner([]byte("device-secret"), "sentinel-audit")
	timestamp := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	eventID := "event-456"
	data := []byte(`{"user": "admin", "action": "login"}`)

	signature := signer.Sign(eventID, timestamp, data)

	tests := []struct {
		name      string
		eventID   string
		timestamp time.Time
		data      []byte
		wantValid bool
	}{
		{
			name:      "valid signature",
			eventID:   eventID,
			timestamp: timestamp,
			data:      data,
			wantValid: true,
		},
		{
			name:      "wrong event ID",
			eventID:   "wrong-event",
			timestamp: timestamp,
			data:      data,
			wantValid: false,
		},
		{
			name:      "wrong timestamp",
			eventID:   eventID,
			timestamp: timestamp.Add(1 * time.Hour),
			data:      data,
			wantValid: false,
		},
		{
			name:      "tampered data",
			eventID:   eventID,
			timestamp: timestamp,
			data:      []byte(`{"tampered": "data"}`),
			wantValid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := signer.Verify(tt.eventID, tt.timestamp, tt.data, signature)
			if result != tt.wantValid {
				t.Errorf("Verify() = %v, want %v", result, tt.wantValid)
			}
		})
	}
}

func TestEventSigner_AliasesAreIndependent(t *testing.T) {
	signer1 := NewEventSigner([]byte("device-secret"), "alias-1")
	signer2 := NewEventSigner([]byte("device-secret"), "alias-2")

	timestamp := time.Now()
	data := []byte(`{"test": "data"}`)

	signature1 := signer1.Sign("event-abc", timestamp, data)
	signature2 := signer2.Sign("event-abc", timestamp, data)

	if signature1 == signature2 {
		t.Error("expected different signatures for different key aliases")
	}
	if signer2.Verify("event-abc", timestamp, data, signature1) {
		t.Error("expected verification to fail across aliases")
	}
}

func TestEventSigner_SignatureFormat(t *testing.T) {
	signer := NewEventSigner([]byte("format-test"), "alias")
	signature := signer.Sign("event-id", time.Now(), []byte("data"))

	// HMAC-SHA256 produces 32 bytes, hex encoded = 64 characters
	if len(signature) != 64 {
		t.Errorf("expected signature length of 64 characters (hex-encoded SHA256), got %d", len(signature))
	}

	for _, c := range signature {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			t.Errorf("signature contains non-hex character: %c", c)
		}
	}
}
