package threat

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/trustedge/sentinel/internal/logging"
	"github.com/trustedge/sentinel/internal/models"
	"github.com/trustedge/sentinel/internal/notify"
)

// SessionController is the session-store surface mitigations need.
type SessionController interface {
	RevokeUser(userID string) int
	RequireReauth(userID string)
}

// DeviceResponder is the host-app surface for device-level containment.
type DeviceResponder interface {
	Isolate(ctx context.Context, reason string) error
	LimitNetwork(ctx context.Context, reason string) error
	QuarantineFiles(ctx context.Context, reason string) error
}

// ForensicCollector captures device state for later investigation.
type ForensicCollector interface {
	Collect(ctx context.Context, alertID string) error
}

// Dispatcher executes mitigation actions against the collaborators. The
// switch over MitigationAction is exhaustive, mirroring policy
// enforcement: unknown actions fail loudly instead of silently no-oping.
type Dispatcher struct {
	sessions  SessionController
	device    DeviceResponder
	notifier  notify.Notifier
	forensics ForensicCollector
	userID    func() string
	logger    *logging.Logger

	enhancedMonitoring atomic.Bool
}

// NewDispatcher wires the mitigation collaborators.
func NewDispatcher(sessions SessionController, device DeviceResponder, notifier notify.Notifier, forensics ForensicCollector, currentUser func() string, logger *logging.Logger) *Dispatcher {
	return &Dispatcher{
		sessions:  sessions,
		device:    device,
		notifier:  notifier,
		forensics: forensics,
		userID:    currentUser,
		logger:    logger.With(logging.Component("mitigation")),
	}
}

// EnhancedMonitoring reports whether a mitigation raised the monitoring
// level. The scheduler tightens its check intervals while this is set.
func (d *Dispatcher) EnhancedMonitoring() bool {
	return d.enhancedMonitoring.Load()
}

// ResetMonitoring returns monitoring to its normal level, typically
// after the triggering alert is resolved.
func (d *Dispatcher) ResetMonitoring() {
	d.enhancedMonitoring.Store(false)
}

// Execute performs one mitigation action for an alert.
func (d *Dispatcher) Execute(ctx context.Context, action MitigationAction, alert *Alert) error {
	reason := fmt.Sprintf("threat alert %s (%s)", alert.ID, alert.RiskLevel)

	switch action {
	case MitigateIsolateDevice:
		return d.device.Isolate(ctx, reason)

	case MitigateRevokeCredentials:
		n := d.sessions.RevokeUser(d.userID())
		d.logger.InfoContext(ctx, "credentials revoked",
			logging.AlertID(alert.ID), "revoked", n)
		return nil

	case MitigateCollectForensics:
		return d.forensics.Collect(ctx, alert.ID)

	case MitigateAlertSecurityTeam:
		return d.notifier.AlertSecurityTeam(ctx, notify.Notification{
			Kind:      "security_team",
			Subject:   fmt.Sprintf("%s risk alert %s", alert.RiskLevel, alert.ID),
			Body:      reason,
			Severity:  severityForRisk(alert.RiskLevel),
			CreatedAt: time.Now(),
		})

	case MitigateRequireReauth:
		d.sessions.RequireReauth(d.userID())
		return nil

	case MitigateLimitNetworkAccess:
		return d.device.LimitNetwork(ctx, reason)

	case MitigateMonitorEnhanced:
		d.enhancedMonitoring.Store(true)
		return nil

	case MitigateQuarantineFiles:
		return d.device.QuarantineFiles(ctx, reason)

	case MitigateForceLogout:
		d.sessions.RevokeUser(d.userID())
		return nil

	default:
		return fmt.Errorf("threat: unknown mitigation action %q", action)
	}
}

func severityForRisk(level models.RiskLevel) models.Severity {
	switch level {
	case models.RiskCritical:
		return models.SeverityCritical
	case models.RiskHigh:
		return models.SeverityHigh
	case models.RiskMedium:
		return models.SeverityMedium
	case models.RiskLow:
		return models.SeverityLow
	default:
		return models.SeverityInfo
	}
}
