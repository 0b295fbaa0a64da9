package policy

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/trustedge/sentinel/internal/logging"
	"github.com/trustedge/sentinel/internal/metrics"
	"github.com/trustedge/sentinel/internal/models"
)

var (
	ErrDuplicateRule = errors.New("policy: rule id already registered")
	ErrRuleNotFound  = errors.New("policy: rule not found")
)

// Enforcer executes one enforcement action for a violation. The engine
// treats execution as best effort: a failing action is logged and must
// not suppress the remaining actions or rules.
type Enforcer interface {
	Execute(ctx context.Context, action Action, violation Violation) error
}

// Engine holds the rule registry and the current policy state.
type Engine struct {
	enforcer      Enforcer
	logger        *logging.Logger
	checkInterval time.Duration
	now           func() time.Time

	mu         sync.Mutex
	rules      []Rule // registration order
	byID       map[string]int
	violations map[string]*Violation // open or resolved, by policy ID
	state      *State
}

// NewEngine creates an engine dispatching enforcement through enforcer.
func NewEngine(enforcer Enforcer, logger *logging.Logger, checkInterval time.Duration) *Engine {
	if checkInterval <= 0 {
		checkInterval = 10 * time.Minute
	}
	return &Engine{
		enforcer:      enforcer,
		logger:        logger.With(logging.Component("policy")),
		checkInterval: checkInterval,
		now:           time.Now,
		byID:          make(map[string]int),
		violations:    make(map[string]*Violation),
	}
}

// AddRule registers a rule. Rule IDs are unique.
func (e *Engine) AddRule(rule Rule) error {
	if rule.ID == "" {
		return fmt.Errorf("policy: rule id must not be empty")
	}
	for _, a := range rule.Actions {
		if !a.Valid() {
			return fmt.Errorf("policy: rule %s declares unknown action %q", rule.ID, a)
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.byID[rule.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateRule, rule.ID)
	}
	e.byID[rule.ID] = len(e.rules)
	e.rules = append(e.rules, rule)
	return nil
}

// RemoveRule unregisters a rule by ID. Its violation history is kept.
func (e *Engine) RemoveRule(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx, exists := e.byID[id]
	if !exists {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	e.rules = append(e.rules[:idx], e.rules[idx+1:]...)
	delete(e.byID, id)
	for i := idx; i < len(e.rules); i++ {
		e.byID[e.rules[i].ID] = i
	}
	return nil
}

// RuleCount returns the number of registered rules.
func (e *Engine) RuleCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.rules)
}

// CheckRule runs a single rule's check function without touching the
// engine's violation or state bookkeeping.
func (e *Engine) CheckRule(ctx context.Context, id string) (CheckResult, error) {
	e.mu.Lock()
	idx, exists := e.byID[id]
	if !exists {
		e.mu.Unlock()
		return CheckResult{}, fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	rule := e.rules[idx]
	e.mu.Unlock()

	return runCheck(ctx, rule)
}

// PerformPolicyCheck evaluates every registered rule in registration
// order, executes enforcement for violations, and returns the wholesale
// recomputed State.
//
// A failed check produces a violation with the rule's declared severity.
// An erroring check on a mandatory rule escalates to severity high
// regardless of the declared severity: an unverifiable mandatory control
// fails closed. Erroring optional rules are logged and skipped.
func (e *Engine) PerformPolicyCheck(ctx context.Context) *State {
	metrics.PolicyChecksTotal.Inc()

	e.mu.Lock()
	rules := make([]Rule, len(e.rules))
	copy(rules, e.rules)
	e.mu.Unlock()

	now := e.now()
	compliant := 0
	var openViolations []Violation
	var enforcements []Enforcement

	for _, rule := range rules {
		result, err := runCheck(ctx, rule)

		switch {
		case err != nil && rule.Mandatory:
			v := e.recordViolation(rule, models.SeverityHigh, map[string]any{
				"check_error": err.Error(),
			}, now)
			enforcements = append(enforcements, e.enforce(ctx, rule, v)...)
			openViolations = append(openViolations, v)

		case err != nil:
			e.logger.WarnContext(ctx, "optional rule check failed, skipping",
				logging.PolicyID(rule.ID), logging.Error(err))
			compliant++

		case result.Compliant:
			compliant++
			e.resolveViolation(rule.ID, now)

		default:
			v := e.recordViolation(rule, rule.Severity, result.Evidence, now)
			enforcements = append(enforcements, e.enforce(ctx, rule, v)...)
			openViolations = append(openViolations, v)
		}
	}

	score := 1.0
	if len(rules) > 0 {
		score = float64(compliant) / float64(len(rules))
	}

	state := &State{
		OverallCompliance: len(openViolations) == 0,
		ComplianceScore:   score,
		Violations:        openViolations,
		Enforcements:      enforcements,
		LastChecked:       now,
		NextCheckDue:      now.Add(e.checkInterval),
	}

	e.mu.Lock()
	e.state = state
	e.mu.Unlock()

	return state
}

// State returns the result of the last full check pass, or nil if no pass
// has run yet.
func (e *Engine) State() *State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Violations returns all recorded violations, open and resolved.
func (e *Engine) Violations() []Violation {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Violation, 0, len(e.violations))
	for _, v := range e.violations {
		out = append(out, *v)
	}
	return out
}

// runCheck executes a rule's check, converting a panic into an error so a
// misbehaving check cannot crash the host process.
func runCheck(ctx context.Context, rule Rule) (result CheckResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("policy: check %s panicked: %v", rule.ID, r)
		}
	}()
	return rule.Check(ctx)
}

func (e *Engine) recordViolation(rule Rule, severity models.Severity, evidence map[string]any, now time.Time) Violation {
	metrics.PolicyViolationsTotal.WithLabelValues(rule.ID, string(severity)).Inc()

	e.mu.Lock()
	defer e.mu.Unlock()
	v, exists := e.violations[rule.ID]
	if exists && !v.Resolved {
		// Still open: keep the original detection time, refresh evidence.
		v.Evidence = evidence
		v.Severity = severity
		return *v
	}
	nv := &Violation{
		PolicyID:   rule.ID,
		Category:   rule.Category,
		Severity:   severity,
		Evidence:   evidence,
		DetectedAt: now,
	}
	e.violations[rule.ID] = nv
	return *nv
}

// resolveViolation marks an open violation resolved after a fully
// successful check of the same rule. Partial matches never resolve.
func (e *Engine) resolveViolation(policyID string, now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if v, exists := e.violations[policyID]; exists && !v.Resolved {
		v.Resolved = true
		v.ResolvedAt = now
	}
}

// enforce executes each of the rule's declared actions in order. Failures
// are logged and do not abort the remaining actions.
func (e *Engine) enforce(ctx context.Context, rule Rule, v Violation) []Enforcement {
	var out []Enforcement
	reason := fmt.Sprintf("violation of %s (%s)", rule.ID, v.Severity)
	for _, action := range rule.Actions {
		if err := e.enforcer.Execute(ctx, action, v); err != nil {
			e.logger.ErrorContext(ctx, "enforcement action failed",
				logging.PolicyID(rule.ID), logging.Action(string(action)), logging.Error(err))
			metrics.EnforcementActionsTotal.WithLabelValues(string(action), "error").Inc()
		} else {
			metrics.EnforcementActionsTotal.WithLabelValues(string(action), "ok").Inc()
		}
		out = append(out, Enforcement{
			PolicyID:   rule.ID,
			Action:     action,
			EnforcedAt: e.now(),
			Reason:     reason,
		})
	}
	return out
}
