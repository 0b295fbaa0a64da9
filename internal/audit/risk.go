package audit

// Per-event risk scoring on a 0-10 scale: a base score by event type,
// a category modifier, and metadata adjustments.

var typeBaseScore = map[EventType]float64{
	EventAuthSuccess:       1.0,
	EventAuthFailure:       4.0,
	EventSessionRevoked:    4.0,
	EventPolicyViolation:   6.0,
	EventPolicyEnforcement: 3.0,
	EventThreatDetected:    7.0,
	EventAnomalyDetected:   5.0,
	EventDeviceCompromised: 9.0,
	EventSecurityIncident:  9.0,
	EventDataAccess:        2.0,
	EventConfigChange:      2.0,
	EventOperationExecuted: 1.0,
	EventReportGenerated:   0.5,
	EventEmergencyResponse: 8.0,
	EventServiceLifecycle:  0.5,
}

var categoryModifier = map[Category]float64{
	CategoryAuthentication: 1.0,
	CategoryAuthorization:  1.1,
	CategoryDeviceSecurity: 1.2,
	CategoryPolicy:         1.0,
	CategoryThreat:         1.2,
	CategoryDataProtection: 1.1,
	CategorySystem:         0.8,
}

// computeRiskScore derives the per-event risk score. Metadata adjustments:
// severity:critical x1.3, non-automated origin x1.1, repetition x1.2.
func computeRiskScore(t EventType, category Category, metadata map[string]any) float64 {
	score, ok := typeBaseScore[t]
	if !ok {
		score = 1.0
	}

	if mod, ok := categoryModifier[category]; ok {
		score *= mod
	}

	if sev, ok := metadata["severity"].(string); ok && sev == "critical" {
		score *= 1.3
	}
	if automated, ok := metadata["automated"].(bool); ok && !automated {
		score *= 1.1
	}
	if repeated, ok := metadata["repeated"].(bool); ok && repeated {
		score *= 1.2
	}

	if score > 10 {
		score = 10
	}
	if score < 0 {
		score = 0
	}
	return score
}
