// Package models defines the shared domain types for the Sentinel engine.
package models

import "time"

// Severity classifies events, violations, and indicators.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Rank returns an ordering for severity comparisons. Higher is more severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 5
	case SeverityError:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether s is at least as severe as min.
func (s Severity) AtLeast(min Severity) bool {
	return s.Rank() >= min.Rank()
}

// RiskLevel classifies an overall threat score.
type RiskLevel string

const (
	RiskInfo     RiskLevel = "info"
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// TrustLevel classifies an overall device trust score.
type TrustLevel string

const (
	TrustUntrusted TrustLevel = "untrusted"
	TrustLow       TrustLevel = "low"
	TrustMedium    TrustLevel = "medium"
	TrustHigh      TrustLevel = "high"
	TrustVerified  TrustLevel = "verified"
)

// Priority orders security operations.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// SecurityContext captures the device/session environment for one operation.
// It is created per operation and embedded in events, never persisted alone.
type SecurityContext struct {
	DeviceID      string    `json:"device_id"`
	Platform      string    `json:"platform"`
	SessionID     string    `json:"session_id"`
	AppVersion    string    `json:"app_version"`
	OSVersion     string    `json:"os_version"`
	Timestamp     time.Time `json:"timestamp"`
	Location      string    `json:"location,omitempty"`
	NetworkType   string    `json:"network_type,omitempty"`
	NetworkSecure bool      `json:"network_secure"`
}

// ServiceState is the lifecycle state of one orchestrated collaborator.
type ServiceState string

const (
	ServiceInitialized ServiceState = "initialized"
	ServicePartial     ServiceState = "partial"
	ServiceFailed      ServiceState = "failed"
	ServiceDisabled    ServiceState = "disabled"
)

// ServiceStatus describes one collaborator as seen by the orchestrator.
type ServiceStatus struct {
	Name      string       `json:"name"`
	State     ServiceState `json:"state"`
	LastCheck time.Time    `json:"last_check"`
	Error     string       `json:"error,omitempty"`
}

// Operation is the closed set of dispatchable security operations.
type Operation string

const (
	OpAuthenticate      Operation = "authenticate"
	OpAuthorize         Operation = "authorize"
	OpValidateDevice    Operation = "validate_device"
	OpAssessRisk        Operation = "assess_risk"
	OpEnforcePolicy     Operation = "enforce_policy"
	OpDetectThreats     Operation = "detect_threats"
	OpAuditEvent        Operation = "audit_event"
	OpGenerateReport    Operation = "generate_report"
	OpEmergencyResponse Operation = "emergency_response"
)

// Valid reports whether op is one of the known operations.
func (op Operation) Valid() bool {
	switch op {
	case OpAuthenticate, OpAuthorize, OpValidateDevice, OpAssessRisk,
		OpEnforcePolicy, OpDetectThreats, OpAuditEvent, OpGenerateReport,
		OpEmergencyResponse:
		return true
	}
	return false
}

// OperationError is the structured failure carried in a SecurityResponse.
type OperationError struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Recoverable bool   `json:"recoverable"`
}

func (e *OperationError) Error() string {
	return e.Code + ": " + e.Message
}

// Recoverable error codes signal that the caller may retry.
var recoverableCodes = map[string]bool{
	"network_error": true,
	"timeout":       true,
	"temporary":     true,
	"rate_limited":  true,
}

// NewOperationError builds an OperationError, deriving recoverability
// from the code.
func NewOperationError(code, message string) *OperationError {
	return &OperationError{
		Code:        code,
		Message:     message,
		Recoverable: recoverableCodes[code],
	}
}
