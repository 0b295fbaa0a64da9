package orchestrator

import (
	"context"
	"time"

	"github.com/trustedge/sentinel/internal/models"
)

// HealthCategory buckets the composite health score.
type HealthCategory string

const (
	HealthExcellent HealthCategory = "excellent"
	HealthGood      HealthCategory = "good"
	HealthFair      HealthCategory = "fair"
	HealthPoor      HealthCategory = "poor"
)

// Status is the aggregated security posture at a point in time.
type Status struct {
	Health           float64                `json:"health"` // in [0,1]
	Category         HealthCategory         `json:"category"`
	ThreatLevel      models.RiskLevel       `json:"threat_level"`
	InitRate         float64                `json:"init_rate"`
	DeviceTrust      float64                `json:"device_trust"`
	PolicyCompliance float64                `json:"policy_compliance"`
	AnomalyCount     int                    `json:"anomaly_count"`
	Services         []models.ServiceStatus `json:"services"`
	GeneratedAt      time.Time              `json:"generated_at"`
}

// GetSecurityStatus computes the composite health score:
//
//	0.4·initRate + 0.3·deviceTrust + 0.2·policyCompliance − 0.02·anomalies
//
// clamped to [0,1]. The anomaly count covers the recent window only, so
// the posture recovers once observations age out. Device trust comes from
// the cached assessment so a status poll never forces a probe sweep.
func (o *Orchestrator) GetSecurityStatus(ctx context.Context) (*Status, error) {
	initRate := 0.0
	var services []models.ServiceStatus
	if result := o.InitResult(); result != nil {
		ok := 0
		for _, s := range result.Services {
			if s.State == models.ServiceInitialized || s.State == models.ServiceDisabled {
				ok++
			}
		}
		initRate = float64(ok) / float64(len(result.Services))
		services = result.Services
	}

	deviceTrust := 0.0
	if assessment, err := o.deps.Trust.Current(ctx); err == nil {
		deviceTrust = assessment.Score
	}

	policyCompliance := 1.0
	if state := o.deps.Policy.State(); state != nil {
		policyCompliance = state.ComplianceScore
	}

	anomalies := o.anomalyCount()
	health := clamp01(0.4*initRate + 0.3*deviceTrust + 0.2*policyCompliance -
		0.02*float64(anomalies))

	return &Status{
		Health:           health,
		Category:         categoryFor(health),
		ThreatLevel:      threatLevelFor(anomalies),
		InitRate:         initRate,
		DeviceTrust:      deviceTrust,
		PolicyCompliance: policyCompliance,
		AnomalyCount:     anomalies,
		Services:         services,
		GeneratedAt:      o.now(),
	}, nil
}

func categoryFor(health float64) HealthCategory {
	switch {
	case health >= 0.9:
		return HealthExcellent
	case health >= 0.75:
		return HealthGood
	case health >= 0.5:
		return HealthFair
	default:
		return HealthPoor
	}
}

// threatLevelFor grades the ambient threat from the recent anomaly count.
func threatLevelFor(anomalies int) models.RiskLevel {
	switch {
	case anomalies >= 10:
		return models.RiskCritical
	case anomalies >= 5:
		return models.RiskHigh
	case anomalies >= 2:
		return models.RiskMedium
	case anomalies >= 1:
		return models.RiskLow
	default:
		return models.RiskInfo
	}
}
