// Package threat implements indicator scoring, risk classification,
// mitigation planning/execution, and behavioral-anomaly detection.
package threat

import (
	"time"

	"github.com/trustedge/sentinel/internal/models"
)

// IndicatorType classifies one piece of threat evidence.
type IndicatorType string

const (
	IndicatorZeroDay           IndicatorType = "zero_day"
	IndicatorAPT               IndicatorType = "apt"
	IndicatorMalwareDetection  IndicatorType = "malware_detection"
	IndicatorDeviceCompromise  IndicatorType = "device_compromise"
	IndicatorSocialEngineering IndicatorType = "social_engineering"
	IndicatorDataExfiltration  IndicatorType = "data_exfiltration"
	IndicatorNetworkIntrusion  IndicatorType = "network_intrusion"
	IndicatorCredentialTheft   IndicatorType = "credential_theft"
	IndicatorPhishing          IndicatorType = "phishing"
)

// Indicator is one piece of evidence feeding a threat analysis. It is
// ephemeral: stored only as part of the resulting Alert.
type Indicator struct {
	Type       IndicatorType   `json:"type"`
	Severity   models.Severity `json:"severity"`
	Confidence float64         `json:"confidence"` // in [0,1]
	Source     string          `json:"source"`
	Evidence   map[string]any  `json:"evidence,omitempty"`
	DetectedAt time.Time       `json:"detected_at"`
}

// MitigationAction is the closed set of planned responses.
type MitigationAction string

const (
	MitigateIsolateDevice      MitigationAction = "isolate_device"
	MitigateRevokeCredentials  MitigationAction = "revoke_credentials"
	MitigateCollectForensics   MitigationAction = "collect_forensic_data"
	MitigateAlertSecurityTeam  MitigationAction = "alert_security_team"
	MitigateRequireReauth      MitigationAction = "require_re_authentication"
	MitigateLimitNetworkAccess MitigationAction = "limit_network_access"
	MitigateMonitorEnhanced    MitigationAction = "monitor_enhanced"
	MitigateQuarantineFiles    MitigationAction = "quarantine_files"
	MitigateForceLogout        MitigationAction = "force_logout"
)

// Mitigation is one planned response. Automated mitigations execute in
// ascending priority order; advisory ones are surfaced only.
type Mitigation struct {
	Action    MitigationAction `json:"action"`
	Automated bool             `json:"automated"`
	Priority  int              `json:"priority"`
	Executed  bool             `json:"executed"`
}

// Alert is the immutable outcome of one analyzeThreat call. Only the
// Acknowledged/Resolved flags change after creation.
type Alert struct {
	ID           string           `json:"id"`
	ThreatScore  float64          `json:"threat_score"` // in [0,1]
	RiskLevel    models.RiskLevel `json:"risk_level"`
	Indicators   []Indicator      `json:"indicators"`
	Correlations []string         `json:"correlations,omitempty"`
	Mitigations  []Mitigation     `json:"mitigations"`
	Acknowledged bool             `json:"acknowledged"`
	Resolved     bool             `json:"resolved"`
	CreatedAt    time.Time        `json:"created_at"`
}

// Incident is opened for high and critical alerts only.
type Incident struct {
	ID        string           `json:"id"`
	AlertID   string           `json:"alert_id"`
	RiskLevel models.RiskLevel `json:"risk_level"`
	Status    string           `json:"status"` // open | acknowledged | closed
	CreatedAt time.Time        `json:"created_at"`
}

// Anomaly is one behavioral deviation from the stored baseline.
type Anomaly struct {
	Pattern    string    `json:"pattern"`
	Observed   float64   `json:"observed"`
	Mean       float64   `json:"mean"`
	StdDev     float64   `json:"stddev"`
	Deviation  float64   `json:"deviation"` // |observed-mean| in stddev units
	DetectedAt time.Time `json:"detected_at"`
}
