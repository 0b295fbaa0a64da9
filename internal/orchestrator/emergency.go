package orchestrator

import (
	"context"
	"time"

	"github.com/trustedge/sentinel/internal/audit"
	"github.com/trustedge/sentinel/internal/logging"
	"github.com/trustedge/sentinel/internal/models"
	"github.com/trustedge/sentinel/internal/notify"
	"github.com/trustedge/sentinel/internal/threat"
)

// emergencyIndicators maps the declared emergency type to the indicator
// fed into threat analysis. Unknown types fall back to device_compromise.
var emergencyIndicators = map[string]threat.IndicatorType{
	"device_compromise": threat.IndicatorDeviceCompromise,
	"malware":           threat.IndicatorMalwareDetection,
	"data_exfiltration": threat.IndicatorDataExfiltration,
	"network_intrusion": threat.IndicatorNetworkIntrusion,
	"credential_theft":  threat.IndicatorCredentialTheft,
	"apt":               threat.IndicatorAPT,
}

// HandleSecurityEmergency is the critical-priority path: it forces a
// security_incident audit record (flushed synchronously), alerts the
// security team, and drives a full-confidence threat analysis so the
// critical mitigation set executes immediately.
func (o *Orchestrator) HandleSecurityEmergency(ctx context.Context, emergencyType string, sctx models.SecurityContext, metadata map[string]any) (map[string]any, error) {
	o.logger.ErrorContext(ctx, "security emergency declared",
		"emergency_type", emergencyType, logging.DeviceID(sctx.DeviceID))

	// The incident record is forced before anything else so the trail
	// survives even if the response path fails.
	event := o.deps.Audit.LogSecurityEvent(ctx, audit.EventSecurityIncident,
		audit.CategoryThreat, "security emergency: "+emergencyType, sctx, metadata)

	indicatorType, ok := emergencyIndicators[emergencyType]
	if !ok {
		indicatorType = threat.IndicatorDeviceCompromise
	}
	alert, err := o.deps.Threat.AnalyzeThreat(ctx, []threat.Indicator{{
		Type:       indicatorType,
		Severity:   models.SeverityCritical,
		Confidence: 1.0,
		Source:     "emergency_declaration",
		Evidence:   metadata,
		DetectedAt: o.now(),
	}}, sctx)
	if err != nil {
		return nil, err
	}

	if err := o.deps.Notifier.AlertSecurityTeam(ctx, notify.Notification{
		Kind:      "security_team",
		Subject:   "security emergency: " + emergencyType,
		Body:      "emergency response executed for device " + sctx.DeviceID,
		Severity:  models.SeverityCritical,
		DeviceID:  sctx.DeviceID,
		Metadata:  metadata,
		CreatedAt: time.Now(),
	}); err != nil {
		// The alert channel failing must not abort containment.
		o.logger.ErrorContext(ctx, "security team alert failed", logging.Error(err))
	}

	result := map[string]any{
		"emergency_type": emergencyType,
		"priority":       string(models.PriorityCritical),
		"alert_id":       alert.ID,
		"risk_level":     string(alert.RiskLevel),
		"mitigations":    len(alert.Mitigations),
	}
	if event != nil {
		result["incident_event_id"] = event.ID
	}
	return result, nil
}
