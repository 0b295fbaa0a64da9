package threat

import (
	"github.com/trustedge/sentinel/internal/models"
)

// PlanMitigations builds the response plan for an alert. The plan is
// two-tier: a base set selected by risk level, plus additions keyed to
// the specific indicator types present. Duplicate actions collapse to
// the first (highest-priority) planned entry.
func PlanMitigations(level models.RiskLevel, indicators []Indicator) []Mitigation {
	var plan []Mitigation

	switch level {
	case models.RiskCritical:
		plan = append(plan,
			Mitigation{Action: MitigateIsolateDevice, Automated: true, Priority: 1},
			Mitigation{Action: MitigateRevokeCredentials, Automated: true, Priority: 1},
			Mitigation{Action: MitigateCollectForensics, Automated: true, Priority: 2},
			Mitigation{Action: MitigateAlertSecurityTeam, Automated: true, Priority: 2},
		)
	case models.RiskHigh:
		plan = append(plan,
			Mitigation{Action: MitigateRequireReauth, Automated: true, Priority: 2},
			Mitigation{Action: MitigateLimitNetworkAccess, Automated: true, Priority: 3},
			Mitigation{Action: MitigateMonitorEnhanced, Automated: true, Priority: 3},
		)
	case models.RiskMedium:
		plan = append(plan,
			Mitigation{Action: MitigateMonitorEnhanced, Automated: true, Priority: 3},
			Mitigation{Action: MitigateAlertSecurityTeam, Automated: false, Priority: 4},
		)
	}

	for _, ind := range indicators {
		switch ind.Type {
		case IndicatorMalwareDetection:
			plan = append(plan, Mitigation{Action: MitigateQuarantineFiles, Automated: true, Priority: 2})
		case IndicatorDataExfiltration:
			plan = append(plan, Mitigation{Action: MitigateLimitNetworkAccess, Automated: true, Priority: 2})
		case IndicatorNetworkIntrusion:
			plan = append(plan, Mitigation{Action: MitigateForceLogout, Automated: true, Priority: 2})
		}
	}

	return dedupe(plan)
}

func dedupe(plan []Mitigation) []Mitigation {
	seen := make(map[MitigationAction]bool, len(plan))
	out := plan[:0]
	for _, m := range plan {
		if seen[m.Action] {
			continue
		}
		seen[m.Action] = true
		out = append(out, m)
	}
	return out
}
