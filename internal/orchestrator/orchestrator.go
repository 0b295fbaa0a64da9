// Package orchestrator coordinates the security subsystems: ordered
// initialization, operation dispatch, status aggregation, the emergency
// path, and the scheduled background task group.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/trustedge/sentinel/internal/audit"
	"github.com/trustedge/sentinel/internal/config"
	"github.com/trustedge/sentinel/internal/expiry"
	"github.com/trustedge/sentinel/internal/logging"
	"github.com/trustedge/sentinel/internal/models"
	"github.com/trustedge/sentinel/internal/notify"
	"github.com/trustedge/sentinel/internal/policy"
	"github.com/trustedge/sentinel/internal/probes"
	"github.com/trustedge/sentinel/internal/securestore"
	"github.com/trustedge/sentinel/internal/session"
	"github.com/trustedge/sentinel/internal/threat"
	"github.com/trustedge/sentinel/internal/trust"
)

// Service names, in initialization order.
const (
	svcSecureStorage     = "secure_storage"
	svcDeviceSecurity    = "device_security"
	svcAuthentication    = "authentication"
	svcAttestation       = "attestation"
	svcPolicyEnforcement = "policy_enforcement"
	svcThreatDetection   = "threat_detection"
	svcSecurityAudit     = "security_audit"
)

var initOrder = []string{
	svcSecureStorage,
	svcDeviceSecurity,
	svcAuthentication,
	svcAttestation,
	svcPolicyEnforcement,
	svcThreatDetection,
	svcSecurityAudit,
}

// criticalServices cannot fail without failing the whole initialization.
var criticalServices = map[string]bool{
	svcSecureStorage:     true,
	svcDeviceSecurity:    true,
	svcPolicyEnforcement: true,
	svcSecurityAudit:     true,
}

// InitStatus is the overall outcome of Initialize.
type InitStatus string

const (
	InitSuccess InitStatus = "success"
	InitPartial InitStatus = "partial"
	InitFailed  InitStatus = "failed"
)

// SecurityLevel grades the initialized posture.
type SecurityLevel string

const (
	LevelEnterprise SecurityLevel = "enterprise"
	LevelHigh       SecurityLevel = "high"
	LevelMedium     SecurityLevel = "medium"
	LevelLow        SecurityLevel = "low"
)

// InitResult summarizes one Initialize call.
type InitResult struct {
	Status             InitStatus             `json:"status"`
	SecurityLevel      SecurityLevel          `json:"security_level"`
	ReadyForProduction bool                   `json:"ready_for_production"`
	Services           []models.ServiceStatus `json:"services"`
	Errors             []string               `json:"errors,omitempty"`
	CompletedAt        time.Time              `json:"completed_at"`
}

// Deps are the collaborators the orchestrator coordinates. All must be
// non-nil except Notifier, which defaults to the log notifier.
type Deps struct {
	Config   *config.Config
	Store    securestore.Store
	Probes   probes.DeviceProbes
	Policy   *policy.Engine
	Trust    *trust.Assessor
	Threat   *threat.Engine
	Behavior *threat.Detector
	Audit    *audit.Ledger
	Sessions *session.Store
	Notifier notify.Notifier
	Logger   *logging.Logger

	// CurrentUser resolves the active user for scheduled behavioral
	// analysis and enforcement. Supplied by the host application.
	CurrentUser func() string
	// SecurityContext supplies the ambient device context for audited
	// operations and scheduled checks.
	SecurityContext func() models.SecurityContext
}

// Orchestrator is the single entry point the host application talks to.
type Orchestrator struct {
	deps   Deps
	logger *logging.Logger
	now    func() time.Time

	deviceOK *expiry.Value[bool] // cached device integrity check

	mu          sync.Mutex
	initialized bool
	initResult  *InitResult
	anomalies   []anomalyRecord // recent anomaly observations, pruned by window

	sched        *scheduler
	shutdownOnce sync.Once
}

// anomalyWindow bounds how long an observed anomaly keeps degrading the
// reported posture. Older observations age out of the status counts.
const anomalyWindow = time.Hour

type anomalyRecord struct {
	at    time.Time
	count int
}

// New creates an orchestrator. Call Initialize before executing
// operations.
func New(deps Deps) *Orchestrator {
	if deps.Notifier == nil {
		deps.Notifier = notify.NewLogNotifier(deps.Logger)
	}
	if deps.CurrentUser == nil {
		deps.CurrentUser = func() string { return "" }
	}
	if deps.SecurityContext == nil {
		deps.SecurityContext = func() models.SecurityContext {
			return models.SecurityContext{Timestamp: time.Now()}
		}
	}
	return &Orchestrator{
		deps:     deps,
		logger:   deps.Logger.With(logging.Component("orchestrator")),
		now:      time.Now,
		deviceOK: expiry.New[bool](),
	}
}

// Initialize brings the subsystems up in fixed order. A critical service
// failing marks the whole result failed; a non-critical failure degrades
// it to partial. Initialization is idempotent: a second call returns the
// first result.
func (o *Orchestrator) Initialize(ctx context.Context) (*InitResult, error) {
	o.mu.Lock()
	if o.initialized {
		result := o.initResult
		o.mu.Unlock()
		return result, nil
	}
	o.mu.Unlock()

	result := &InitResult{Status: InitSuccess}
	okTotal, okCritical, nCritical := 0, 0, 0

	for _, name := range initOrder {
		status := models.ServiceStatus{Name: name, LastCheck: o.now()}

		if o.serviceDisabled(name) {
			status.State = models.ServiceDisabled
			result.Services = append(result.Services, status)
			okTotal++ // disabled by configuration is not a failure
			if criticalServices[name] {
				nCritical++
				okCritical++
			}
			continue
		}

		err := o.initService(ctx, name)
		if criticalServices[name] {
			nCritical++
		}
		if err != nil {
			status.State = models.ServiceFailed
			status.Error = err.Error()
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", name, err))
			o.logger.ErrorContext(ctx, "service initialization failed",
				"service", name, logging.Error(err))
			if criticalServices[name] {
				result.Status = InitFailed
			} else if result.Status != InitFailed {
				result.Status = InitPartial
			}
		} else {
			status.State = models.ServiceInitialized
			okTotal++
			if criticalServices[name] {
				okCritical++
			}
		}
		result.Services = append(result.Services, status)
	}

	criticalRate := 1.0
	if nCritical > 0 {
		criticalRate = float64(okCritical) / float64(nCritical)
	}
	totalRate := float64(okTotal) / float64(len(initOrder))
	result.SecurityLevel = levelFor(criticalRate, totalRate)
	result.ReadyForProduction = result.Status != InitFailed &&
		result.SecurityLevel != LevelLow &&
		len(result.Errors) == 0
	result.CompletedAt = o.now()

	o.mu.Lock()
	o.initialized = result.Status != InitFailed
	o.initResult = result
	o.mu.Unlock()

	o.deps.Audit.LogSecurityEvent(ctx, audit.EventServiceLifecycle, audit.CategorySystem,
		"security subsystems initialized", o.deps.SecurityContext(), map[string]any{
			"status":         string(result.Status),
			"security_level": string(result.SecurityLevel),
			"ready":          result.ReadyForProduction,
		})

	o.logger.InfoContext(ctx, "initialization complete",
		"status", string(result.Status),
		"security_level", string(result.SecurityLevel),
		"ready_for_production", result.ReadyForProduction)

	if result.Status == InitFailed {
		return result, fmt.Errorf("orchestrator: initialization failed: %v", result.Errors)
	}
	return result, nil
}

// levelFor grades posture from the critical and total init fractions.
func levelFor(criticalRate, totalRate float64) SecurityLevel {
	switch {
	case criticalRate == 1.0 && totalRate == 1.0:
		return LevelEnterprise
	case criticalRate == 1.0 && totalRate >= 0.8:
		return LevelHigh
	case criticalRate == 1.0:
		return LevelMedium
	default:
		return LevelLow
	}
}

func (o *Orchestrator) serviceDisabled(name string) bool {
	sec := o.deps.Config.Security
	switch name {
	case svcAttestation:
		return !sec.DeviceAttestationEnabled
	case svcPolicyEnforcement:
		return !sec.PolicyEnforcementEnabled
	case svcThreatDetection:
		return !sec.ThreatDetectionEnabled
	case svcSecurityAudit:
		return !sec.AuditingEnabled
	default:
		return false
	}
}

// initService performs the concrete bring-up check for one subsystem.
func (o *Orchestrator) initService(ctx context.Context, name string) error {
	switch name {
	case svcSecureStorage:
		// Round-trip a probe value to prove the store is usable.
		key := "orchestrator:init:probe"
		if err := o.deps.Store.Set(ctx, key, []byte("ok")); err != nil {
			return fmt.Errorf("store write: %w", err)
		}
		if _, err := o.deps.Store.Get(ctx, key); err != nil {
			return fmt.Errorf("store read: %w", err)
		}
		return o.deps.Store.Delete(ctx, key)

	case svcDeviceSecurity:
		if _, err := o.deps.Probes.DeviceID(ctx); err != nil {
			return fmt.Errorf("device identity: %w", err)
		}
		_, err := o.checkDevice(ctx)
		return err

	case svcAuthentication:
		if o.deps.Sessions == nil {
			return fmt.Errorf("session store not configured")
		}
		return nil

	case svcAttestation:
		_, err := o.deps.Probes.HardwareAttestation(ctx)
		return err

	case svcPolicyEnforcement:
		platform := o.deps.SecurityContext().Platform
		for _, rule := range policy.BuiltinRules(o.deps.Probes, platform) {
			if err := o.deps.Policy.AddRule(rule); err != nil {
				return err
			}
		}
		return policy.LoadRulePacks(o.deps.Policy, o.deps.Probes, o.deps.Config.Policy.RulePacks)

	case svcThreatDetection:
		if o.deps.Threat == nil || o.deps.Behavior == nil {
			return fmt.Errorf("threat engine not configured")
		}
		return nil

	case svcSecurityAudit:
		go o.deps.Audit.Start(context.WithoutCancel(ctx))
		return nil

	default:
		return fmt.Errorf("unknown service %q", name)
	}
}

// checkDevice runs the compromise/emulator probes, caching the verdict
// for the configured device-check window.
func (o *Orchestrator) checkDevice(ctx context.Context) (bool, error) {
	return o.deviceOK.GetOrCompute(o.deps.Config.Trust.DeviceCheckWindow, func() (bool, error) {
		compromised, err := o.deps.Probes.CompromiseDetected(ctx)
		if err != nil {
			return false, fmt.Errorf("compromise probe: %w", err)
		}
		emulator, err := o.deps.Probes.EmulatorDetected(ctx)
		if err != nil {
			return false, fmt.Errorf("emulator probe: %w", err)
		}
		ok := !compromised && !emulator
		if !ok {
			o.deps.Audit.LogSecurityEvent(ctx, audit.EventDeviceCompromised,
				audit.CategoryDeviceSecurity, "device integrity check failed",
				o.deps.SecurityContext(), map[string]any{
					"compromised": compromised,
					"emulator":    emulator,
				})
		}
		return ok, nil
	})
}

// Initialized reports whether Initialize completed without overall failure.
func (o *Orchestrator) Initialized() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.initialized
}

// InitResult returns the recorded initialization outcome, or nil before
// Initialize runs.
func (o *Orchestrator) InitResult() *InitResult {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.initResult
}

func (o *Orchestrator) recordAnomalies(n int) {
	if n <= 0 {
		return
	}
	o.mu.Lock()
	o.anomalies = append(o.anomalies, anomalyRecord{at: o.now(), count: n})
	o.mu.Unlock()
}

// anomalyCount returns the number of anomalies observed within the recent
// window, pruning older records as a side effect.
func (o *Orchestrator) anomalyCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	cutoff := o.now().Add(-anomalyWindow)
	kept := o.anomalies[:0]
	total := 0
	for _, rec := range o.anomalies {
		if rec.at.Before(cutoff) {
			continue
		}
		kept = append(kept, rec)
		total += rec.count
	}
	o.anomalies = kept
	return total
}

// Shutdown stops the scheduled task group and flushes the ledger. It is
// idempotent: the host's signal handler and its deferred cleanup may both
// call it.
func (o *Orchestrator) Shutdown(ctx context.Context) {
	o.shutdownOnce.Do(func() {
		if o.sched != nil {
			o.sched.Stop()
		}
		o.deps.Audit.Stop()
		if err := o.deps.Notifier.Close(); err != nil {
			o.logger.WarnContext(ctx, "notifier close failed", logging.Error(err))
		}
		o.logger.InfoContext(ctx, "orchestrator shut down")
	})
}
