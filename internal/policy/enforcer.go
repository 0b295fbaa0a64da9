package policy

import (
	"context"
	"fmt"
	"time"

	"github.com/trustedge/sentinel/internal/logging"
	"github.com/trustedge/sentinel/internal/notify"
)

// SessionController is the session-store surface enforcement needs.
type SessionController interface {
	RevokeUser(userID string) int
	RequireReauth(userID string)
}

// DeviceControls is the UI/app surface for user-facing restrictions.
// The host application implements it; the engine only invokes it.
type DeviceControls interface {
	ShowWarning(ctx context.Context, message string) error
	BlockAccess(ctx context.Context, reason string) error
	LimitFunctionality(ctx context.Context, reason string) error
	WipeData(ctx context.Context, reason string) error
}

// AuditLogger is the slice of the audit ledger enforcement writes to.
type AuditLogger interface {
	LogViolation(ctx context.Context, v Violation)
}

// Dispatcher executes enforcement actions against the collaborators. The
// switch over Action is exhaustive; adding an action without a branch
// fails the default case at runtime and the exhaustiveness tests.
type Dispatcher struct {
	sessions SessionController
	controls DeviceControls
	notifier notify.Notifier
	auditor  AuditLogger
	userID   func() string // current user resolution, supplied by the host
	logger   *logging.Logger
}

// NewDispatcher wires the enforcement collaborators.
func NewDispatcher(sessions SessionController, controls DeviceControls, notifier notify.Notifier, auditor AuditLogger, currentUser func() string, logger *logging.Logger) *Dispatcher {
	return &Dispatcher{
		sessions: sessions,
		controls: controls,
		notifier: notifier,
		auditor:  auditor,
		userID:   currentUser,
		logger:   logger.With(logging.Component("enforcement")),
	}
}

// Execute performs one enforcement action for a violation.
func (d *Dispatcher) Execute(ctx context.Context, action Action, v Violation) error {
	reason := fmt.Sprintf("policy %s violated (%s)", v.PolicyID, v.Severity)

	switch action {
	case ActionWarn:
		return d.controls.ShowWarning(ctx, reason)

	case ActionBlockAccess:
		return d.controls.BlockAccess(ctx, reason)

	case ActionRequireAuthentication:
		d.sessions.RequireReauth(d.userID())
		return nil

	case ActionLimitFunctionality:
		return d.controls.LimitFunctionality(ctx, reason)

	case ActionAuditLog:
		d.auditor.LogViolation(ctx, v)
		return nil

	case ActionNotifyAdmin:
		return d.notifier.NotifyAdmin(ctx, notify.Notification{
			Kind:      "admin",
			Subject:   "policy violation: " + v.PolicyID,
			Body:      reason,
			Severity:  v.Severity,
			Metadata:  v.Evidence,
			CreatedAt: time.Now(),
		})

	case ActionRevokeSession:
		n := d.sessions.RevokeUser(d.userID())
		d.logger.InfoContext(ctx, "sessions revoked",
			logging.PolicyID(v.PolicyID), "revoked", n)
		return nil

	case ActionWipeData:
		return d.controls.WipeData(ctx, reason)

	default:
		return fmt.Errorf("policy: unknown enforcement action %q", action)
	}
}
