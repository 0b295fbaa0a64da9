// Package audit implements the buffered, tamper-evident security event
// ledger: severity classification, metadata sanitization, risk scoring,
// timed and immediate flushing, and report generation.
package audit

import (
	"time"

	"github.com/trustedge/sentinel/internal/models"
)

// EventType is the closed set of auditable occurrence kinds.
type EventType string

const (
	EventAuthSuccess       EventType = "authentication_success"
	EventAuthFailure       EventType = "authentication_failure"
	EventSessionRevoked    EventType = "session_revoked"
	EventPolicyViolation   EventType = "policy_violation"
	EventPolicyEnforcement EventType = "policy_enforcement"
	EventThreatDetected    EventType = "threat_detected"
	EventAnomalyDetected   EventType = "anomaly_detected"
	EventDeviceCompromised EventType = "device_compromised"
	EventSecurityIncident  EventType = "security_incident"
	EventDataAccess        EventType = "data_access"
	EventConfigChange      EventType = "configuration_change"
	EventOperationExecuted EventType = "operation_executed"
	EventReportGenerated   EventType = "report_generated"
	EventEmergencyResponse EventType = "emergency_response"
	EventServiceLifecycle  EventType = "service_lifecycle"
)

// Category groups events for reporting.
type Category string

const (
	CategoryAuthentication Category = "authentication"
	CategoryAuthorization  Category = "authorization"
	CategoryDeviceSecurity Category = "device_security"
	CategoryPolicy         Category = "policy"
	CategoryThreat         Category = "threat"
	CategoryDataProtection Category = "data_protection"
	CategorySystem         Category = "system"
)

// SecurityEvent is one immutable audit record. It is written once and
// never mutated; reports reference events but do not change them.
type SecurityEvent struct {
	ID          string                 `json:"id"`
	Type        EventType              `json:"type"`
	Category    Category               `json:"category"`
	Severity    models.Severity        `json:"severity"`
	Description string                 `json:"description"`
	Context     models.SecurityContext `json:"context"`
	Metadata    map[string]any         `json:"metadata,omitempty"`
	RiskScore   float64                `json:"risk_score"`
	Mitigated   bool                   `json:"mitigated"`
	CreatedAt   time.Time              `json:"created_at"`
}

// typeSeverity maps each event type to its fixed severity.
var typeSeverity = map[EventType]models.Severity{
	EventAuthSuccess:       models.SeverityInfo,
	EventAuthFailure:       models.SeverityMedium,
	EventSessionRevoked:    models.SeverityMedium,
	EventPolicyViolation:   models.SeverityHigh,
	EventPolicyEnforcement: models.SeverityMedium,
	EventThreatDetected:    models.SeverityHigh,
	EventAnomalyDetected:   models.SeverityMedium,
	EventDeviceCompromised: models.SeverityCritical,
	EventSecurityIncident:  models.SeverityCritical,
	EventDataAccess:        models.SeverityInfo,
	EventConfigChange:      models.SeverityLow,
	EventOperationExecuted: models.SeverityInfo,
	EventReportGenerated:   models.SeverityInfo,
	EventEmergencyResponse: models.SeverityError,
	EventServiceLifecycle:  models.SeverityInfo,
}

// SeverityFor returns the fixed severity for an event type, defaulting
// to info for unknown types.
func SeverityFor(t EventType) models.Severity {
	if s, ok := typeSeverity[t]; ok {
		return s
	}
	return models.SeverityInfo
}
