package orchestrator

import (
	"context"
	"time"

	"github.com/trustedge/sentinel/internal/audit"
	"github.com/trustedge/sentinel/internal/logging"
	"github.com/trustedge/sentinel/internal/metrics"
	"github.com/trustedge/sentinel/internal/models"
	"github.com/trustedge/sentinel/internal/threat"
)

// Request describes one security operation to execute.
type Request struct {
	Operation  models.Operation       `json:"operation"`
	Priority   models.Priority        `json:"priority"`
	UserID     string                 `json:"user_id,omitempty"`
	Token      string                 `json:"token,omitempty"`
	Context    models.SecurityContext `json:"context"`
	Indicators []threat.Indicator     `json:"indicators,omitempty"`
	Payload    map[string]any         `json:"payload,omitempty"`
}

// Response is the uniform result envelope for every operation.
type Response struct {
	Success          bool                   `json:"success"`
	Operation        models.Operation       `json:"operation"`
	Result           map[string]any         `json:"result,omitempty"`
	Warnings         []string               `json:"warnings,omitempty"`
	RequiresFollowUp bool                   `json:"requires_follow_up"`
	NextActions      []string               `json:"next_actions,omitempty"`
	Error            *models.OperationError `json:"error,omitempty"`
	CompletedAt      time.Time              `json:"completed_at"`
}

// ExecuteSecurityOperation runs one operation end to end: pre-checks,
// dispatch on the closed operation set, post-processing, and an audit
// record regardless of outcome.
func (o *Orchestrator) ExecuteSecurityOperation(ctx context.Context, req Request) *Response {
	start := o.now()
	resp := &Response{Operation: req.Operation}

	if opErr := o.preCheck(req); opErr != nil {
		resp.Error = opErr
		resp.CompletedAt = o.now()
		o.auditOperation(ctx, req, resp, start)
		return resp
	}

	o.dispatch(ctx, req, resp)
	o.postProcess(resp)
	resp.CompletedAt = o.now()
	o.auditOperation(ctx, req, resp, start)
	return resp
}

func (o *Orchestrator) preCheck(req Request) *models.OperationError {
	if !o.Initialized() {
		return models.NewOperationError("not_initialized",
			"security subsystems are not initialized")
	}
	if !req.Operation.Valid() {
		return models.NewOperationError("unknown_operation",
			"unsupported operation: "+string(req.Operation))
	}
	return nil
}

// dispatch routes the request over the closed Operation set. The switch
// is exhaustive; preCheck already rejected unknown operations.
func (o *Orchestrator) dispatch(ctx context.Context, req Request, resp *Response) {
	switch req.Operation {
	case models.OpAuthenticate:
		o.opAuthenticate(ctx, req, resp)
	case models.OpAuthorize:
		o.opAuthorize(ctx, req, resp)
	case models.OpValidateDevice:
		o.opValidateDevice(ctx, req, resp)
	case models.OpAssessRisk:
		o.opAssessRisk(ctx, req, resp)
	case models.OpEnforcePolicy:
		o.opEnforcePolicy(ctx, req, resp)
	case models.OpDetectThreats:
		o.opDetectThreats(ctx, req, resp)
	case models.OpAuditEvent:
		o.opAuditEvent(ctx, req, resp)
	case models.OpGenerateReport:
		o.opGenerateReport(ctx, req, resp)
	case models.OpEmergencyResponse:
		o.opEmergencyResponse(ctx, req, resp)
	}
}

// postProcess derives follow-up guidance from the outcome.
func (o *Orchestrator) postProcess(resp *Response) {
	if resp.Error != nil && resp.Error.Recoverable {
		resp.NextActions = append(resp.NextActions, "retry")
	}
	if len(resp.Warnings) > 0 {
		resp.RequiresFollowUp = true
	}
}

func (o *Orchestrator) auditOperation(ctx context.Context, req Request, resp *Response, start time.Time) {
	status := "ok"
	if !resp.Success {
		status = "error"
	}
	metrics.OperationsTotal.WithLabelValues(string(req.Operation), status).Inc()
	metrics.OperationDuration.WithLabelValues(string(req.Operation)).
		Observe(o.now().Sub(start).Seconds())

	metadata := map[string]any{"success": resp.Success}
	if resp.Error != nil {
		metadata["error_code"] = resp.Error.Code
	}
	o.deps.Audit.LogSecurityEvent(ctx, audit.EventOperationExecuted, audit.CategorySystem,
		"security operation "+string(req.Operation), req.Context, metadata)
}

func (o *Orchestrator) opAuthenticate(ctx context.Context, req Request, resp *Response) {
	if req.UserID == "" {
		resp.Error = models.NewOperationError("missing_user", "authenticate requires a user id")
		return
	}

	deviceOK, err := o.checkDevice(ctx)
	if err != nil {
		resp.Error = models.NewOperationError("network_error", err.Error())
		return
	}
	if !deviceOK {
		resp.Error = models.NewOperationError("device_untrusted",
			"authentication refused on a compromised device")
		o.deps.Audit.LogSecurityEvent(ctx, audit.EventAuthFailure, audit.CategoryAuthentication,
			"authentication refused: device integrity", req.Context, nil)
		return
	}

	sessionID, token, err := o.deps.Sessions.Create(req.UserID, req.Context.DeviceID)
	if err != nil {
		resp.Error = models.NewOperationError("session_error", err.Error())
		return
	}
	o.deps.Sessions.ClearReauth(req.UserID)

	resp.Success = true
	resp.Result = map[string]any{"session_id": sessionID, "token": token}
	o.deps.Audit.LogSecurityEvent(ctx, audit.EventAuthSuccess, audit.CategoryAuthentication,
		"user authenticated", req.Context, map[string]any{"session_id": sessionID})
}

func (o *Orchestrator) opAuthorize(ctx context.Context, req Request, resp *Response) {
	claims, err := o.deps.Sessions.Validate(req.Token)
	if err != nil {
		resp.Error = models.NewOperationError("unauthorized", err.Error())
		o.deps.Audit.LogSecurityEvent(ctx, audit.EventAuthFailure, audit.CategoryAuthorization,
			"authorization failed", req.Context, nil)
		return
	}
	resp.Success = true
	resp.Result = map[string]any{
		"user_id":    claims.UserID,
		"session_id": claims.SessionID,
		"device_id":  claims.DeviceID,
	}
}

func (o *Orchestrator) opValidateDevice(ctx context.Context, req Request, resp *Response) {
	assessment, err := o.deps.Trust.Current(ctx)
	if err != nil {
		resp.Error = models.NewOperationError("network_error", err.Error())
		return
	}

	resp.Success = true
	resp.Result = map[string]any{
		"trust_score": assessment.Score,
		"trust_level": string(assessment.Level),
		"valid_until": assessment.ValidUntil,
	}
	switch assessment.Level {
	case models.TrustUntrusted:
		resp.Warnings = append(resp.Warnings, "device is untrusted")
		resp.NextActions = append(resp.NextActions, "block_sensitive_operations")
	case models.TrustLow:
		resp.Warnings = append(resp.Warnings, "device trust is low")
	}
}

func (o *Orchestrator) opAssessRisk(ctx context.Context, req Request, resp *Response) {
	assessment, err := o.deps.Trust.Current(ctx)
	if err != nil {
		resp.Error = models.NewOperationError("network_error", err.Error())
		return
	}

	policyScore := 1.0
	if state := o.deps.Policy.State(); state != nil {
		policyScore = state.ComplianceScore
	}

	// Risk is the inverse of combined posture: device trust and policy
	// compliance in the proportions used by the status health score.
	risk := clamp01(1.0 - (0.6*assessment.Score + 0.4*policyScore))
	resp.Success = true
	resp.Result = map[string]any{
		"risk_score":        risk,
		"risk_level":        string(threat.RiskFor(risk)),
		"trust_score":       assessment.Score,
		"policy_compliance": policyScore,
	}
	if risk >= 0.5 {
		resp.Warnings = append(resp.Warnings, "elevated device risk")
	}
}

func (o *Orchestrator) opEnforcePolicy(ctx context.Context, req Request, resp *Response) {
	state := o.deps.Policy.PerformPolicyCheck(ctx)
	resp.Success = true
	resp.Result = map[string]any{
		"overall_compliance": state.OverallCompliance,
		"compliance_score":   state.ComplianceScore,
		"violations":         len(state.Violations),
		"enforcements":       len(state.Enforcements),
	}
	if !state.OverallCompliance {
		resp.Warnings = append(resp.Warnings, "policy violations detected")
		for _, v := range state.Violations {
			o.deps.Audit.LogSecurityEvent(ctx, audit.EventPolicyViolation, audit.CategoryPolicy,
				"policy violation: "+v.PolicyID, req.Context, map[string]any{
					"policy_id": v.PolicyID,
					"severity":  string(v.Severity),
				})
		}
	}
}

func (o *Orchestrator) opDetectThreats(ctx context.Context, req Request, resp *Response) {
	result := map[string]any{}

	if len(req.Indicators) > 0 {
		alert, err := o.deps.Threat.AnalyzeThreat(ctx, req.Indicators, req.Context)
		if err != nil {
			resp.Error = models.NewOperationError("analysis_error", err.Error())
			return
		}
		result["alert_id"] = alert.ID
		result["threat_score"] = alert.ThreatScore
		result["risk_level"] = string(alert.RiskLevel)
		result["mitigations"] = len(alert.Mitigations)
		if alert.RiskLevel == models.RiskHigh || alert.RiskLevel == models.RiskCritical {
			resp.Warnings = append(resp.Warnings, "high-risk threat detected")
			o.deps.Audit.LogSecurityEvent(ctx, audit.EventThreatDetected, audit.CategoryThreat,
				"threat alert "+alert.ID, req.Context, map[string]any{
					"risk_level":   string(alert.RiskLevel),
					"threat_score": alert.ThreatScore,
				})
		}
	}

	if userID := req.UserID; userID != "" {
		anomalies, err := o.deps.Behavior.DetectAnomalies(ctx, userID)
		if err != nil {
			o.logger.WarnContext(ctx, "behavioral analysis failed",
				logging.UserID(userID), logging.Error(err))
		} else {
			result["anomalies"] = len(anomalies)
			o.recordAnomalies(len(anomalies))
			if len(anomalies) > 0 {
				resp.Warnings = append(resp.Warnings, "behavioral anomalies detected")
				o.deps.Audit.LogSecurityEvent(ctx, audit.EventAnomalyDetected, audit.CategoryThreat,
					"behavioral anomalies detected", req.Context,
					map[string]any{"count": len(anomalies)})
			}
		}
	}

	resp.Success = true
	resp.Result = result
}

func (o *Orchestrator) opAuditEvent(ctx context.Context, req Request, resp *Response) {
	eventType, _ := req.Payload["type"].(string)
	category, _ := req.Payload["category"].(string)
	description, _ := req.Payload["description"].(string)
	if eventType == "" || description == "" {
		resp.Error = models.NewOperationError("invalid_payload",
			"audit_event requires type and description")
		return
	}
	if category == "" {
		category = string(audit.CategorySystem)
	}

	metadata, _ := req.Payload["metadata"].(map[string]any)
	event := o.deps.Audit.LogSecurityEvent(ctx, audit.EventType(eventType),
		audit.Category(category), description, req.Context, metadata)

	resp.Success = true
	if event != nil {
		resp.Result = map[string]any{"event_id": event.ID, "risk_score": event.RiskScore}
	}
}

func (o *Orchestrator) opGenerateReport(ctx context.Context, req Request, resp *Response) {
	timeframe := audit.Timeframe{From: o.now().Add(-24 * time.Hour), To: o.now()}
	if from, ok := req.Payload["from"].(time.Time); ok {
		timeframe.From = from
	}
	if to, ok := req.Payload["to"].(time.Time); ok {
		timeframe.To = to
	}
	reportType := audit.ReportSecuritySummary
	if t, ok := req.Payload["report_type"].(string); ok && t != "" {
		reportType = audit.ReportType(t)
	}

	report, err := o.deps.Audit.GenerateAuditReport(ctx, o.deps.Store, reportType, timeframe, nil)
	if err != nil {
		resp.Error = models.NewOperationError("report_error", err.Error())
		return
	}

	resp.Success = true
	resp.Result = map[string]any{
		"report_id":    report.ID,
		"total_events": report.Summary.TotalEvents,
		"overall_risk": string(report.Risk.OverallRisk),
	}
	o.deps.Audit.LogSecurityEvent(ctx, audit.EventReportGenerated, audit.CategorySystem,
		"audit report generated", req.Context, map[string]any{"report_id": report.ID})
}

func (o *Orchestrator) opEmergencyResponse(ctx context.Context, req Request, resp *Response) {
	emergencyType, _ := req.Payload["emergency_type"].(string)
	if emergencyType == "" {
		emergencyType = "unspecified"
	}
	result, err := o.HandleSecurityEmergency(ctx, emergencyType, req.Context, req.Payload)
	if err != nil {
		resp.Error = models.NewOperationError("emergency_error", err.Error())
		return
	}
	resp.Success = true
	resp.Result = result
	resp.RequiresFollowUp = true
	resp.NextActions = append(resp.NextActions, "review_incident")
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
