package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/trustedge/sentinel/internal/models"
	"github.com/trustedge/sentinel/internal/securestore"
)

// ReportType selects the audit report flavor.
type ReportType string

const (
	ReportSecuritySummary ReportType = "security_summary"
	ReportCompliance      ReportType = "compliance"
	ReportThreatActivity  ReportType = "threat_activity"
)

// Timeframe bounds the events a report covers.
type Timeframe struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// ReportFilter optionally narrows report input.
type ReportFilter struct {
	Categories  []Category      `json:"categories,omitempty"`
	MinSeverity models.Severity `json:"min_severity,omitempty"`
}

// ReportSummary aggregates event counts.
type ReportSummary struct {
	TotalEvents      int                     `json:"total_events"`
	ByCategory       map[Category]int        `json:"by_category"`
	BySeverity       map[models.Severity]int `json:"by_severity"`
	PolicyViolations int                     `json:"policy_violations"`
	ThreatsDetected  int                     `json:"threats_detected"`
}

// RiskAssessment summarizes the risk profile of the reported window.
type RiskAssessment struct {
	AverageRiskScore float64          `json:"average_risk_score"`
	PeakRiskScore    float64          `json:"peak_risk_score"`
	OverallRisk      models.RiskLevel `json:"overall_risk"`
}

// ComplianceSnapshot is the compliance view embedded in a report.
type ComplianceSnapshot struct {
	Compliant      bool      `json:"compliant"`
	OpenViolations int       `json:"open_violations"`
	CheckedAt      time.Time `json:"checked_at"`
}

// Report is a stored aggregation over retained audit events.
type Report struct {
	ID              string             `json:"id"`
	Type            ReportType         `json:"type"`
	Timeframe       Timeframe          `json:"timeframe"`
	Summary         ReportSummary      `json:"summary"`
	Findings        []string           `json:"findings"`
	Recommendations []string           `json:"recommendations"`
	Compliance      ComplianceSnapshot `json:"compliance"`
	Risk            RiskAssessment     `json:"risk"`
	GeneratedAt     time.Time          `json:"generated_at"`
}

// GenerateAuditReport aggregates retained events into a report and stores
// it in the secure store for later retrieval.
func (l *Ledger) GenerateAuditReport(ctx context.Context, store securestore.Store, reportType ReportType, timeframe Timeframe, filter *ReportFilter) (*Report, error) {
	events := l.Events(timeframe.From, timeframe.To)
	if filter != nil {
		events = applyFilter(events, filter)
	}

	summary := ReportSummary{
		ByCategory: make(map[Category]int),
		BySeverity: make(map[models.Severity]int),
	}
	var riskSum, riskPeak float64
	for _, ev := range events {
		summary.TotalEvents++
		summary.ByCategory[ev.Category]++
		summary.BySeverity[ev.Severity]++
		if ev.Type == EventPolicyViolation {
			summary.PolicyViolations++
		}
		if ev.Type == EventThreatDetected || ev.Type == EventSecurityIncident {
			summary.ThreatsDetected++
		}
		riskSum += ev.RiskScore
		if ev.RiskScore > riskPeak {
			riskPeak = ev.RiskScore
		}
	}

	risk := RiskAssessment{PeakRiskScore: riskPeak, OverallRisk: models.RiskInfo}
	if summary.TotalEvents > 0 {
		risk.AverageRiskScore = riskSum / float64(summary.TotalEvents)
	}
	switch {
	case riskPeak >= 9:
		risk.OverallRisk = models.RiskCritical
	case riskPeak >= 7:
		risk.OverallRisk = models.RiskHigh
	case riskPeak >= 5:
		risk.OverallRisk = models.RiskMedium
	case riskPeak >= 3:
		risk.OverallRisk = models.RiskLow
	}

	id, _ := uuid.NewV7()
	report := &Report{
		ID:              id.String(),
		Type:            reportType,
		Timeframe:       timeframe,
		Summary:         summary,
		Findings:        buildFindings(summary),
		Recommendations: buildRecommendations(summary),
		Compliance: ComplianceSnapshot{
			Compliant:      summary.PolicyViolations == 0,
			OpenViolations: summary.PolicyViolations,
			CheckedAt:      l.now(),
		},
		Risk:        risk,
		GeneratedAt: l.now(),
	}

	if store != nil {
		key := fmt.Sprintf("audit:report:%s", report.ID)
		if err := securestore.SetJSON(ctx, store, key, report); err != nil {
			return nil, fmt.Errorf("audit: store report: %w", err)
		}
	}

	return report, nil
}

// GetReport retrieves a stored report by ID.
func GetReport(ctx context.Context, store securestore.Store, id string) (*Report, error) {
	var report Report
	if err := securestore.GetJSON(ctx, store, "audit:report:"+id, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func applyFilter(events []SecurityEvent, filter *ReportFilter) []SecurityEvent {
	var out []SecurityEvent
	for _, ev := range events {
		if filter.MinSeverity != "" && !ev.Severity.AtLeast(filter.MinSeverity) {
			continue
		}
		if len(filter.Categories) > 0 && !containsCategory(filter.Categories, ev.Category) {
			continue
		}
		out = append(out, ev)
	}
	return out
}

func containsCategory(cats []Category, c Category) bool {
	for _, x := range cats {
		if x == c {
			return true
		}
	}
	return false
}

func buildFindings(s ReportSummary) []string {
	findings := []string{}
	if s.PolicyViolations > 0 {
		findings = append(findings, fmt.Sprintf("%d policy violations recorded in the reporting window", s.PolicyViolations))
	}
	if s.ThreatsDetected > 0 {
		findings = append(findings, fmt.Sprintf("%d threat detections recorded in the reporting window", s.ThreatsDetected))
	}
	if n := s.BySeverity[models.SeverityCritical]; n > 0 {
		findings = append(findings, fmt.Sprintf("%d critical-severity events recorded", n))
	}
	if len(findings) == 0 {
		findings = append(findings, "no notable security findings in the reporting window")
	}
	return findings
}

func buildRecommendations(s ReportSummary) []string {
	recs := []string{}
	if s.PolicyViolations > 0 {
		recs = append(recs, "review open policy violations and confirm enforcement actions completed")
	}
	if s.ThreatsDetected > 0 {
		recs = append(recs, "review threat alerts and acknowledge or resolve outstanding incidents")
	}
	if s.BySeverity[models.SeverityCritical] > 0 {
		recs = append(recs, "escalate critical events to the security team")
	}
	return recs
}
