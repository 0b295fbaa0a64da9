package orchestrator

import (
	"context"
	"time"

	"github.com/trustedge/sentinel/internal/audit"
	"github.com/trustedge/sentinel/internal/policy"
	"github.com/trustedge/sentinel/internal/threat"
)

// Dashboard aggregates the live security picture for operators.
type Dashboard struct {
	Status       *Status           `json:"status"`
	Policy       *policy.State     `json:"policy,omitempty"`
	ActiveAlerts []*threat.Alert   `json:"active_alerts,omitempty"`
	Incidents    []threat.Incident `json:"incidents,omitempty"`
	AuditMetrics AuditMetrics      `json:"audit_metrics"`
	Timeframe    audit.Timeframe   `json:"timeframe"`
	GeneratedAt  time.Time         `json:"generated_at"`
}

// AuditMetrics is the ledger view embedded in a dashboard.
type AuditMetrics struct {
	BufferedEvents int                    `json:"buffered_events"`
	EventsInWindow int                    `json:"events_in_window"`
	BySeverity     map[string]int         `json:"by_severity,omitempty"`
	ByCategory     map[audit.Category]int `json:"by_category,omitempty"`
}

// GenerateSecurityDashboard aggregates status, policy state, recent
// alerts, incidents, and audit activity over the timeframe.
func (o *Orchestrator) GenerateSecurityDashboard(ctx context.Context, timeframe audit.Timeframe) (*Dashboard, error) {
	status, err := o.GetSecurityStatus(ctx)
	if err != nil {
		return nil, err
	}

	events := o.deps.Audit.Events(timeframe.From, timeframe.To)
	auditMetrics := AuditMetrics{
		BufferedEvents: o.deps.Audit.BufferLen(),
		EventsInWindow: len(events),
		BySeverity:     make(map[string]int),
		ByCategory:     make(map[audit.Category]int),
	}
	for _, ev := range events {
		auditMetrics.BySeverity[string(ev.Severity)]++
		auditMetrics.ByCategory[ev.Category]++
	}

	return &Dashboard{
		Status:       status,
		Policy:       o.deps.Policy.State(),
		ActiveAlerts: o.deps.Threat.ActiveAlerts(),
		Incidents:    o.deps.Threat.Incidents(),
		AuditMetrics: auditMetrics,
		Timeframe:    timeframe,
		GeneratedAt:  o.now(),
	}, nil
}
