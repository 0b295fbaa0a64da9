package audit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustedge/sentinel/internal/logging"
	"github.com/trustedge/sentinel/internal/models"
)

type fakeSink struct {
	mu      sync.Mutex
	batches [][]SecurityEvent
	fail    bool
}

func (f *fakeSink) Append(_ context.Context, events []SecurityEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("sink unavailable")
	}
	batch := make([]SecurityEvent, len(events))
	copy(batch, events)
	f.batches = append(f.batches, batch)
	return nil
}

func (f *fakeSink) Close() error { return nil }

func (f *fakeSink) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.batches {
		n += len(b)
	}
	return n
}

func newTestLedger(sink Sink, opts Options) *Ledger {
	return NewLedger(sink, logging.New(slog.LevelError, "text"), opts)
}

func testContext() models.SecurityContext {
	return models.SecurityContext{
		DeviceID:  "device-1",
		Platform:  "ios",
		SessionID: "session-1",
		Timestamp: time.Now(),
	}
}

func TestLogSecurityEvent_Buffered(t *testing.T) {
	sink := &fakeSink{}
	l := newTestLedger(sink, Options{})

	ev := l.LogSecurityEvent(context.Background(), EventDataAccess, CategoryDataProtection,
		"vault opened", testContext(), nil)
	require.NotNil(t, ev)
	assert.Equal(t, models.SeverityInfo, ev.Severity)
	assert.Equal(t, 1, l.BufferLen())
	assert.Equal(t, 0, sink.total(), "info events wait for the timer flush")
}

func TestLogSecurityEvent_MinLevelFiltering(t *testing.T) {
	sink := &fakeSink{}
	l := newTestLedger(sink, Options{MinLevel: models.SeverityHigh})

	ev := l.LogSecurityEvent(context.Background(), EventDataAccess, CategoryDataProtection,
		"below threshold", testContext(), nil)
	assert.Nil(t, ev)
	assert.Equal(t, 0, l.BufferLen())

	ev = l.LogSecurityEvent(context.Background(), EventPolicyViolation, CategoryPolicy,
		"at threshold", testContext(), nil)
	assert.NotNil(t, ev)
}

func TestLogSecurityEvent_CriticalFlushesImmediately(t *testing.T) {
	sink := &fakeSink{}
	l := newTestLedger(sink, Options{})

	// Nothing flushed for a low-severity event.
	l.LogSecurityEvent(context.Background(), EventDataAccess, CategoryDataProtection,
		"routine", testContext(), nil)
	require.Equal(t, 1, l.BufferLen())

	// A critical event flushes the whole buffer synchronously.
	l.LogSecurityEvent(context.Background(), EventDeviceCompromised, CategoryDeviceSecurity,
		"jailbreak detected", testContext(), nil)

	assert.Equal(t, 0, l.BufferLen(), "buffer must be empty when the call returns")
	assert.Equal(t, 2, sink.total())
}

func TestLogSecurityEvent_ErrorSeverityFlushesImmediately(t *testing.T) {
	sink := &fakeSink{}
	l := newTestLedger(sink, Options{})

	l.LogSecurityEvent(context.Background(), EventEmergencyResponse, CategorySystem,
		"emergency", testContext(), nil)

	assert.Equal(t, 0, l.BufferLen())
	assert.Equal(t, 1, sink.total())
}

func TestLogSecurityEvent_SanitizesMetadata(t *testing.T) {
	sink := &fakeSink{}
	l := newTestLedger(sink, Options{})

	ev := l.LogSecurityEvent(context.Background(), EventAuthFailure, CategoryAuthentication,
		"login failed", testContext(), map[string]any{"password": "x", "ok": "y"})

	require.NotNil(t, ev)
	assert.Equal(t, Redacted, ev.Metadata["password"])
	assert.Equal(t, "y", ev.Metadata["ok"])
}

func TestLogSecurityEvent_SensitiveLoggingEnabled(t *testing.T) {
	sink := &fakeSink{}
	l := newTestLedger(sink, Options{LogSensitiveData: true})

	ev := l.LogSecurityEvent(context.Background(), EventAuthFailure, CategoryAuthentication,
		"login failed", testContext(), map[string]any{"password": "x"})

	require.NotNil(t, ev)
	assert.Equal(t, "x", ev.Metadata["password"])
}

func TestSanitize_SubstringAndCaseInsensitive(t *testing.T) {
	out := sanitizeMetadata(map[string]any{
		"API_Token":   "t",
		"refreshKey":  "k",
		"Credentials": "c",
		"plain":       "p",
	}, false)

	assert.Equal(t, Redacted, out["API_Token"])
	assert.Equal(t, Redacted, out["refreshKey"])
	assert.Equal(t, Redacted, out["Credentials"])
	assert.Equal(t, "p", out["plain"])
}

func TestFlush_FailureRequeuesBounded(t *testing.T) {
	sink := &fakeSink{fail: true}
	l := newTestLedger(sink, Options{MaxBufferSize: 3})

	for i := 0; i < 5; i++ {
		l.LogSecurityEvent(context.Background(), EventDataAccess, CategoryDataProtection,
			"event", testContext(), nil)
	}
	require.Equal(t, 5, l.BufferLen())

	first := l.Events(time.Time{}, time.Now().Add(time.Hour))[0]

	l.Flush(context.Background(), "timer")

	// Bounded requeue: oldest preserved, newest dropped beyond the cap.
	assert.Equal(t, 3, l.BufferLen())

	// Once the sink recovers, the oldest event is the first delivered.
	sink.fail = false
	l.Flush(context.Background(), "timer")
	require.Equal(t, 3, sink.total())
	assert.Equal(t, first.ID, sink.batches[0][0].ID)
	assert.Equal(t, 0, l.BufferLen())
}

func TestStop_SafeToCallTwice(t *testing.T) {
	sink := &fakeSink{}
	l := newTestLedger(sink, Options{FlushInterval: time.Hour})

	go l.Start(context.Background())
	require.Eventually(t, func() bool {
		l.mu.Lock()
		defer l.mu.Unlock()
		return l.started
	}, time.Second, time.Millisecond)

	l.LogSecurityEvent(context.Background(), EventDataAccess, CategoryDataProtection,
		"event", testContext(), nil)

	l.Stop()
	require.NotPanics(t, l.Stop)
	assert.Equal(t, 1, len(sink.batches), "shutdown flush happens once")
}

func TestRiskScore_MetadataAdjustments(t *testing.T) {
	base := computeRiskScore(EventAuthFailure, CategoryAuthentication, nil)

	critical := computeRiskScore(EventAuthFailure, CategoryAuthentication,
		map[string]any{"severity": "critical"})
	assert.InDelta(t, base*1.3, critical, 1e-9)

	manual := computeRiskScore(EventAuthFailure, CategoryAuthentication,
		map[string]any{"automated": false})
	assert.InDelta(t, base*1.1, manual, 1e-9)

	repeated := computeRiskScore(EventAuthFailure, CategoryAuthentication,
		map[string]any{"repeated": true})
	assert.InDelta(t, base*1.2, repeated, 1e-9)
}

func TestRiskScore_Clamped(t *testing.T) {
	score := computeRiskScore(EventSecurityIncident, CategoryThreat, map[string]any{
		"severity": "critical", "automated": false, "repeated": true,
	})
	assert.LessOrEqual(t, score, 10.0)
	assert.GreaterOrEqual(t, score, 0.0)
}
