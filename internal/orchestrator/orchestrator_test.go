package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustedge/sentinel/internal/audit"
	"github.com/trustedge/sentinel/internal/config"
	"github.com/trustedge/sentinel/internal/logging"
	"github.com/trustedge/sentinel/internal/models"
	"github.com/trustedge/sentinel/internal/policy"
	"github.com/trustedge/sentinel/internal/probes"
	"github.com/trustedge/sentinel/internal/securestore"
	"github.com/trustedge/sentinel/internal/session"
	"github.com/trustedge/sentinel/internal/threat"
	"github.com/trustedge/sentinel/internal/trust"
)

type nopEnforcer struct{}

func (nopEnforcer) Execute(context.Context, policy.Action, policy.Violation) error { return nil }

type nopResponder struct{}

func (nopResponder) Execute(context.Context, threat.MitigationAction, *threat.Alert) error {
	return nil
}

type fixedBehavior struct {
	metrics map[string]float64
}

func (f *fixedBehavior) Observe(context.Context) (map[string]float64, error) {
	return f.metrics, nil
}

// failingStore rejects writes, simulating unusable secure storage.
type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("keystore unavailable")
}
func (failingStore) Set(context.Context, string, []byte) error {
	return errors.New("keystore unavailable")
}
func (failingStore) Delete(context.Context, string) error { return errors.New("keystore unavailable") }
func (failingStore) Close() error                         { return nil }

// flakyProbes fails hardware attestation only.
type flakyProbes struct {
	*probes.Static
}

func (f *flakyProbes) HardwareAttestation(context.Context) (bool, error) {
	return false, errors.New("attestation service unreachable")
}

func testDeps(store securestore.Store, device probes.DeviceProbes) Deps {
	logger := logging.New(slog.LevelError, "text")
	cfg := config.Default()
	ledger := audit.NewLedger(audit.NewStoreSink(store), logger, audit.Options{
		FlushInterval: time.Hour, // tests flush via severity, not timers
	})
	return Deps{
		Config:      cfg,
		Store:       store,
		Probes:      device,
		Policy:      policy.NewEngine(nopEnforcer{}, logger, cfg.Policy.CheckInterval),
		Trust:       trust.NewAssessor(device, cfg.Trust.AssessmentTTL, logger),
		Threat:      threat.NewEngine(nopResponder{}, logger),
		Behavior:    threat.NewDetector(store, &fixedBehavior{metrics: map[string]float64{"usage": 5}}, 50, 3.0, logger),
		Audit:       ledger,
		Sessions:    session.NewStore([]byte("test-secret"), time.Hour),
		Logger:      logger,
		CurrentUser: func() string { return "user-1" },
		SecurityContext: func() models.SecurityContext {
			return models.SecurityContext{
				DeviceID:      "device-0000",
				Platform:      "ios",
				Timestamp:     time.Now(),
				NetworkSecure: true,
			}
		},
	}
}

func newTestOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	o := New(testDeps(securestore.NewMemoryStore(), probes.Healthy()))
	t.Cleanup(func() { o.Shutdown(context.Background()) })
	return o
}

func initialized(t *testing.T) *Orchestrator {
	t.Helper()
	o := newTestOrchestrator(t)
	_, err := o.Initialize(context.Background())
	require.NoError(t, err)
	return o
}

func TestInitialize_HealthyDevice(t *testing.T) {
	o := newTestOrchestrator(t)

	result, err := o.Initialize(context.Background())
	require.NoError(t, err)

	assert.Equal(t, InitSuccess, result.Status)
	assert.Equal(t, LevelEnterprise, result.SecurityLevel)
	assert.True(t, result.ReadyForProduction)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Services, 7)
	for _, s := range result.Services {
		assert.Equal(t, models.ServiceInitialized, s.State, "service %s", s.Name)
	}
	assert.True(t, o.Initialized())
}

func TestInitialize_Order(t *testing.T) {
	o := initialized(t)

	var names []string
	for _, s := range o.InitResult().Services {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{
		"secure_storage", "device_security", "authentication", "attestation",
		"policy_enforcement", "threat_detection", "security_audit",
	}, names)
}

func TestInitialize_SecureStorageFailureIsFatal(t *testing.T) {
	o := New(testDeps(failingStore{}, probes.Healthy()))
	t.Cleanup(func() { o.Shutdown(context.Background()) })

	result, err := o.Initialize(context.Background())
	require.Error(t, err)

	assert.Equal(t, InitFailed, result.Status)
	assert.False(t, result.ReadyForProduction)
	assert.Equal(t, models.ServiceFailed, result.Services[0].State)
	assert.False(t, o.Initialized())

	resp := o.ExecuteSecurityOperation(context.Background(), Request{
		Operation: models.OpValidateDevice,
	})
	require.NotNil(t, resp.Error)
	assert.Equal(t, "not_initialized", resp.Error.Code)
}

func TestInitialize_NonCriticalFailureIsPartial(t *testing.T) {
	o := New(testDeps(securestore.NewMemoryStore(), &flakyProbes{Static: probes.Healthy()}))
	t.Cleanup(func() { o.Shutdown(context.Background()) })

	result, err := o.Initialize(context.Background())
	require.NoError(t, err, "non-critical failures do not fail initialization")

	assert.Equal(t, InitPartial, result.Status)
	assert.Equal(t, LevelHigh, result.SecurityLevel)
	assert.False(t, result.ReadyForProduction, "recorded errors block production readiness")
	assert.True(t, o.Initialized())
}

func TestInitialize_DisabledServicesSkipped(t *testing.T) {
	deps := testDeps(securestore.NewMemoryStore(), probes.Healthy())
	deps.Config.Security.ThreatDetectionEnabled = false
	o := New(deps)
	t.Cleanup(func() { o.Shutdown(context.Background()) })

	result, err := o.Initialize(context.Background())
	require.NoError(t, err)

	assert.Equal(t, InitSuccess, result.Status)
	for _, s := range result.Services {
		if s.Name == "threat_detection" {
			assert.Equal(t, models.ServiceDisabled, s.State)
		}
	}
}

func TestInitialize_Idempotent(t *testing.T) {
	o := initialized(t)
	first := o.InitResult()

	again, err := o.Initialize(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, again)
}

func TestExecute_UnknownOperation(t *testing.T) {
	o := initialized(t)

	resp := o.ExecuteSecurityOperation(context.Background(), Request{
		Operation: models.Operation("self_destruct"),
	})
	require.NotNil(t, resp.Error)
	assert.Equal(t, "unknown_operation", resp.Error.Code)
	assert.False(t, resp.Error.Recoverable)
}

func TestExecute_AuthenticateAndAuthorize(t *testing.T) {
	o := initialized(t)
	ctx := context.Background()

	resp := o.ExecuteSecurityOperation(ctx, Request{
		Operation: models.OpAuthenticate,
		UserID:    "user-1",
		Context:   o.deps.SecurityContext(),
	})
	require.Nil(t, resp.Error)
	require.True(t, resp.Success)
	token, _ := resp.Result["token"].(string)
	require.NotEmpty(t, token)

	authz := o.ExecuteSecurityOperation(ctx, Request{
		Operation: models.OpAuthorize,
		Token:     token,
		Context:   o.deps.SecurityContext(),
	})
	require.True(t, authz.Success)
	assert.Equal(t, "user-1", authz.Result["user_id"])

	bad := o.ExecuteSecurityOperation(ctx, Request{
		Operation: models.OpAuthorize,
		Token:     "not-a-token",
		Context:   o.deps.SecurityContext(),
	})
	require.NotNil(t, bad.Error)
	assert.Equal(t, "unauthorized", bad.Error.Code)
}

func TestExecute_AuthenticateRequiresUser(t *testing.T) {
	o := initialized(t)

	resp := o.ExecuteSecurityOperation(context.Background(), Request{
		Operation: models.OpAuthenticate,
		Context:   o.deps.SecurityContext(),
	})
	require.NotNil(t, resp.Error)
	assert.Equal(t, "missing_user", resp.Error.Code)
}

func TestExecute_ValidateDevice(t *testing.T) {
	o := initialized(t)

	resp := o.ExecuteSecurityOperation(context.Background(), Request{
		Operation: models.OpValidateDevice,
		Context:   o.deps.SecurityContext(),
	})
	require.True(t, resp.Success)
	assert.Equal(t, 1.0, resp.Result["trust_score"])
	assert.Equal(t, "verified", resp.Result["trust_level"])
	assert.Empty(t, resp.Warnings)
}

func TestExecute_EnforcePolicy(t *testing.T) {
	o := initialized(t)

	resp := o.ExecuteSecurityOperation(context.Background(), Request{
		Operation: models.OpEnforcePolicy,
		Context:   o.deps.SecurityContext(),
	})
	require.True(t, resp.Success)
	assert.Equal(t, true, resp.Result["overall_compliance"])
	assert.Equal(t, 1.0, resp.Result["compliance_score"])
	assert.False(t, resp.RequiresFollowUp)
}

func TestExecute_DetectThreats(t *testing.T) {
	o := initialized(t)

	resp := o.ExecuteSecurityOperation(context.Background(), Request{
		Operation: models.OpDetectThreats,
		UserID:    "user-1",
		Context:   o.deps.SecurityContext(),
		Indicators: []threat.Indicator{{
			Type:       threat.IndicatorDeviceCompromise,
			Severity:   models.SeverityCritical,
			Confidence: 1.0,
			Source:     "test",
			DetectedAt: time.Now(),
		}},
	})
	require.True(t, resp.Success)
	assert.Equal(t, "critical", resp.Result["risk_level"])
	assert.Contains(t, resp.Warnings, "high-risk threat detected")
	assert.True(t, resp.RequiresFollowUp)
	// Cold-start behavioral pass returns zero anomalies.
	assert.Equal(t, 0, resp.Result["anomalies"])
}

func TestExecute_AuditEvent(t *testing.T) {
	o := initialized(t)

	resp := o.ExecuteSecurityOperation(context.Background(), Request{
		Operation: models.OpAuditEvent,
		Context:   o.deps.SecurityContext(),
		Payload: map[string]any{
			"type":        string(audit.EventDataAccess),
			"category":    string(audit.CategoryDataProtection),
			"description": "vault record opened",
		},
	})
	require.True(t, resp.Success)
	assert.NotEmpty(t, resp.Result["event_id"])

	missing := o.ExecuteSecurityOperation(context.Background(), Request{
		Operation: models.OpAuditEvent,
		Context:   o.deps.SecurityContext(),
	})
	require.NotNil(t, missing.Error)
	assert.Equal(t, "invalid_payload", missing.Error.Code)
}

func TestExecute_GenerateReport(t *testing.T) {
	o := initialized(t)

	resp := o.ExecuteSecurityOperation(context.Background(), Request{
		Operation: models.OpGenerateReport,
		Context:   o.deps.SecurityContext(),
	})
	require.True(t, resp.Success)
	assert.NotEmpty(t, resp.Result["report_id"])
}

func TestExecute_EmergencyResponse(t *testing.T) {
	o := initialized(t)

	resp := o.ExecuteSecurityOperation(context.Background(), Request{
		Operation: models.OpEmergencyResponse,
		Context:   o.deps.SecurityContext(),
		Payload:   map[string]any{"emergency_type": "device_compromise"},
	})
	require.True(t, resp.Success)
	assert.True(t, resp.RequiresFollowUp)
	assert.Contains(t, resp.NextActions, "review_incident")
	assert.Equal(t, "critical", resp.Result["risk_level"])
	assert.NotEmpty(t, resp.Result["incident_event_id"])

	// The emergency opened an incident in the threat engine.
	incidents := o.deps.Threat.Incidents()
	require.Len(t, incidents, 1)
	assert.Equal(t, models.RiskCritical, incidents[0].RiskLevel)
}

func TestGetSecurityStatus_HealthyPosture(t *testing.T) {
	o := initialized(t)

	status, err := o.GetSecurityStatus(context.Background())
	require.NoError(t, err)

	// 0.4·1.0 + 0.3·1.0 + 0.2·1.0 − 0 = 0.9
	assert.InDelta(t, 0.9, status.Health, 1e-9)
	assert.Equal(t, HealthExcellent, status.Category)
	assert.Equal(t, models.RiskInfo, status.ThreatLevel)
	assert.Equal(t, 1.0, status.InitRate)
	assert.Equal(t, 0, status.AnomalyCount)
}

func TestGetSecurityStatus_AnomaliesDegradeHealth(t *testing.T) {
	o := initialized(t)
	o.recordAnomalies(5)

	status, err := o.GetSecurityStatus(context.Background())
	require.NoError(t, err)

	assert.InDelta(t, 0.8, status.Health, 1e-9)
	assert.Equal(t, HealthGood, status.Category)
	assert.Equal(t, models.RiskHigh, status.ThreatLevel)
}

func TestGetSecurityStatus_AnomaliesAgeOut(t *testing.T) {
	o := initialized(t)
	o.recordAnomalies(5)

	status, err := o.GetSecurityStatus(context.Background())
	require.NoError(t, err)
	require.Equal(t, models.RiskHigh, status.ThreatLevel)

	// Once the observations fall outside the window the posture recovers.
	o.now = func() time.Time { return time.Now().Add(anomalyWindow + time.Minute) }
	status, err = o.GetSecurityStatus(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, status.AnomalyCount)
	assert.Equal(t, models.RiskInfo, status.ThreatLevel)
	assert.InDelta(t, 0.9, status.Health, 1e-9)
	assert.Equal(t, HealthExcellent, status.Category)
}

func TestShutdown_Idempotent(t *testing.T) {
	o := initialized(t)
	ctx := context.Background()
	o.StartScheduler(ctx)

	// The signal handler and the deferred cleanup both shut down.
	o.Shutdown(ctx)
	require.NotPanics(t, func() { o.Shutdown(ctx) })
}

func TestGenerateSecurityDashboard(t *testing.T) {
	o := initialized(t)
	ctx := context.Background()

	o.ExecuteSecurityOperation(ctx, Request{
		Operation: models.OpEnforcePolicy,
		Context:   o.deps.SecurityContext(),
	})

	timeframe := audit.Timeframe{From: time.Now().Add(-time.Hour), To: time.Now().Add(time.Hour)}
	dash, err := o.GenerateSecurityDashboard(ctx, timeframe)
	require.NoError(t, err)

	assert.NotNil(t, dash.Status)
	require.NotNil(t, dash.Policy)
	assert.True(t, dash.Policy.OverallCompliance)
	assert.Greater(t, dash.AuditMetrics.EventsInWindow, 0,
		"initialization and operations leave audit events in the window")
}

func TestScheduler_TriggeredPolicyCheck(t *testing.T) {
	o := initialized(t)
	ctx := context.Background()

	o.StartScheduler(ctx)
	require.Nil(t, o.deps.Policy.State(), "no pass before the trigger")

	o.TriggerPolicyCheck()
	assert.Eventually(t, func() bool {
		return o.deps.Policy.State() != nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCheckDevice_CachedWithinWindow(t *testing.T) {
	device := probes.Healthy()
	o := New(testDeps(securestore.NewMemoryStore(), device))
	t.Cleanup(func() { o.Shutdown(context.Background()) })
	_, err := o.Initialize(context.Background())
	require.NoError(t, err)

	ok, err := o.checkDevice(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	// The device turns bad, but the cached verdict still holds.
	device.Compromised = true
	ok, err = o.checkDevice(context.Background())
	require.NoError(t, err)
	assert.True(t, ok, "verdict is cached for the device check window")
}
