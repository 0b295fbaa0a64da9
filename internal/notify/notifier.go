// Package notify is the delivery boundary for admin notifications and
// security-team alerts. Push/email rendering is owned by the backend;
// this package only hands structured notifications off.
package notify

import (
	"context"
	"time"

	"github.com/trustedge/sentinel/internal/logging"
	"github.com/trustedge/sentinel/internal/models"
)

// Notification is the payload published for admins or the security team.
type Notification struct {
	Kind      string          `json:"kind"` // admin | security_team
	Subject   string          `json:"subject"`
	Body      string          `json:"body"`
	Severity  models.Severity `json:"severity"`
	DeviceID  string          `json:"device_id,omitempty"`
	Metadata  map[string]any  `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Notifier delivers notifications. Implementations must not block the
// caller beyond ctx.
type Notifier interface {
	NotifyAdmin(ctx context.Context, n Notification) error
	AlertSecurityTeam(ctx context.Context, n Notification) error
	Close() error
}

// LogNotifier writes notifications to the structured log. It is the
// default when no delivery channel is configured.
type LogNotifier struct {
	logger *logging.Logger
}

// NewLogNotifier creates a log-only notifier.
func NewLogNotifier(logger *logging.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With(logging.Component("notify"))}
}

func (l *LogNotifier) NotifyAdmin(ctx context.Context, n Notification) error {
	l.logger.InfoContext(ctx, "admin notification",
		"subject", n.Subject, "severity", string(n.Severity), "device_id", n.DeviceID)
	return nil
}

func (l *LogNotifier) AlertSecurityTeam(ctx context.Context, n Notification) error {
	l.logger.WarnContext(ctx, "security team alert",
		"subject", n.Subject, "severity", string(n.Severity), "device_id", n.DeviceID)
	return nil
}

func (l *LogNotifier) Close() error { return nil }
