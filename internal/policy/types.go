// Package policy implements the declarative rule engine: a registry of
// compliance checks, wholesale compliance scoring, and best-effort
// enforcement-action dispatch.
package policy

import (
	"context"
	"time"

	"github.com/trustedge/sentinel/internal/models"
)

// RuleCategory groups rules for reporting.
type RuleCategory string

const (
	CategoryDeviceSecurity RuleCategory = "device_security"
	CategoryAppIntegrity   RuleCategory = "app_integrity"
	CategoryAuthentication RuleCategory = "authentication"
	CategoryDataProtection RuleCategory = "data_protection"
)

// Action is the closed set of enforcement actions a rule may declare.
// Execution side effects belong to collaborators; the engine only decides
// which action fires and records that it did.
type Action string

const (
	ActionWarn                  Action = "warn"
	ActionBlockAccess           Action = "block_access"
	ActionRequireAuthentication Action = "require_authentication"
	ActionLimitFunctionality    Action = "limit_functionality"
	ActionAuditLog              Action = "audit_log"
	ActionNotifyAdmin           Action = "notify_admin"
	ActionRevokeSession         Action = "revoke_session"
	ActionWipeData              Action = "wipe_data"
)

// Valid reports whether a is a known enforcement action.
func (a Action) Valid() bool {
	switch a {
	case ActionWarn, ActionBlockAccess, ActionRequireAuthentication,
		ActionLimitFunctionality, ActionAuditLog, ActionNotifyAdmin,
		ActionRevokeSession, ActionWipeData:
		return true
	}
	return false
}

// CheckResult is the outcome of one rule's check function.
type CheckResult struct {
	Compliant bool
	Evidence  map[string]any
}

// CheckFunc evaluates one rule. It must be idempotent and side-effect
// free; side effects belong to enforcement actions only.
type CheckFunc func(ctx context.Context) (CheckResult, error)

// Rule is one registered compliance check.
type Rule struct {
	ID        string
	Category  RuleCategory
	Severity  models.Severity
	Mandatory bool
	Check     CheckFunc
	Actions   []Action
}

// Violation records a failed policy check. It is never deleted; a later
// successful check of the same rule marks it resolved.
type Violation struct {
	PolicyID   string          `json:"policy_id"`
	Category   RuleCategory    `json:"category"`
	Severity   models.Severity `json:"severity"`
	Evidence   map[string]any  `json:"evidence,omitempty"`
	DetectedAt time.Time       `json:"detected_at"`
	Resolved   bool            `json:"resolved"`
	ResolvedAt time.Time       `json:"resolved_at,omitempty"`
}

// Enforcement records one executed enforcement action.
type Enforcement struct {
	PolicyID   string    `json:"policy_id"`
	Action     Action    `json:"action"`
	EnforcedAt time.Time `json:"enforced_at"`
	Reason     string    `json:"reason"`
}

// State is the wholesale result of one full policy check pass. It is
// recomputed on every pass and replaced atomically, never patched.
type State struct {
	OverallCompliance bool          `json:"overall_compliance"`
	ComplianceScore   float64       `json:"compliance_score"`
	Violations        []Violation   `json:"violations"`
	Enforcements      []Enforcement `json:"enforcements"`
	LastChecked       time.Time     `json:"last_checked"`
	NextCheckDue      time.Time     `json:"next_check_due"`
}
