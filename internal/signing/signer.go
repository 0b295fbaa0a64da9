// Package signing provides the device-held-key signature primitive used
// for tamper-evident audit records.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

// EventSigner signs canonical payloads with a key derived from a
// device-held secret under a named alias.
type EventSigner struct {
	key []byte
}

// NewEventSigner derives the signing key from the device secret and the
// key alias. The alias acts as the derivation salt so distinct aliases
// yield independent keys from one device secret.
func NewEventSigner(deviceSecret []byte, keyAlias string) *EventSigner {
	key := pbkdf2.Key(deviceSecret, []byte(keyAlias), 10000, 32, sha256.New)
	return &EventSigner{key: key}
}

// Sign returns the hex HMAC-SHA256 over the canonical event payload.
func (s *EventSigner) Sign(eventID string, timestamp time.Time, data []byte) string {
	payload := eventID + timestamp.Format(time.RFC3339Nano) + string(data)
	h := hmac.New(sha256.New, s.key)
	h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil))
}

// Verify reports whether signature matches the canonical payload.
func (s *EventSigner) Verify(eventID string, timestamp time.Time, data []byte, signature string) bool {
	expected := s.Sign(eventID, timestamp, data)
	return hmac.Equal([]byte(expected), []byte(signature))
}
