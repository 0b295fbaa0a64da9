package threat

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trustedge/sentinel/internal/logging"
	"github.com/trustedge/sentinel/internal/metrics"
	"github.com/trustedge/sentinel/internal/models"
)

// ErrNoIndicators is returned when an analysis is requested with no
// evidence to score.
var ErrNoIndicators = errors.New("threat: no indicators to analyze")

// severityBase maps indicator severity to its base weight.
var severityBase = map[models.Severity]float64{
	models.SeverityCritical: 1.0,
	models.SeverityHigh:     0.8,
	models.SeverityMedium:   0.6,
	models.SeverityLow:      0.4,
	models.SeverityInfo:     0.2,
}

// typeFactor adjusts the base weight for indicator classes whose
// presence alone changes the threat picture.
var typeFactor = map[IndicatorType]float64{
	IndicatorZeroDay:           1.3,
	IndicatorAPT:               1.3,
	IndicatorMalwareDetection:  1.2,
	IndicatorDeviceCompromise:  1.2,
	IndicatorSocialEngineering: 0.9,
}

// Off-hours window for the context multiplier.
const (
	offHoursStart = 22 // inclusive
	offHoursEnd   = 6  // exclusive
)

// Responder executes one mitigation action against the device or its
// sessions. Implementations must be side-effect idempotent.
type Responder interface {
	Execute(ctx context.Context, action MitigationAction, alert *Alert) error
}

// Engine scores indicators, plans and executes mitigations, and opens
// incidents for high-risk alerts.
type Engine struct {
	responder Responder
	logger    *logging.Logger
	now       func() time.Time

	mu        sync.RWMutex
	alerts    map[string]*Alert
	incidents []Incident
}

// NewEngine creates a threat engine that responds through responder.
func NewEngine(responder Responder, logger *logging.Logger) *Engine {
	return &Engine{
		responder: responder,
		logger:    logger.With(logging.Component("threat")),
		now:       time.Now,
		alerts:    make(map[string]*Alert),
	}
}

// AnalyzeThreat scores the indicators in their security context,
// plans mitigations, executes the automated ones, and records the
// resulting alert. High and critical alerts also open an incident.
//
// Mitigation failures are logged and counted but never fail the
// analysis: a degraded response is still a response.
func (e *Engine) AnalyzeThreat(ctx context.Context, indicators []Indicator, sc models.SecurityContext) (*Alert, error) {
	if len(indicators) == 0 {
		return nil, ErrNoIndicators
	}

	score := Score(indicators, sc)
	level := RiskFor(score)

	alert := &Alert{
		ID:          uuid.Must(uuid.NewV7()).String(),
		ThreatScore: score,
		RiskLevel:   level,
		Indicators:  append([]Indicator(nil), indicators...),
		Mitigations: PlanMitigations(level, indicators),
		CreatedAt:   e.now(),
	}

	e.executeAutomated(ctx, alert)

	e.mu.Lock()
	e.alerts[alert.ID] = alert
	if level == models.RiskHigh || level == models.RiskCritical {
		e.incidents = append(e.incidents, Incident{
			ID:        uuid.Must(uuid.NewV7()).String(),
			AlertID:   alert.ID,
			RiskLevel: level,
			Status:    "open",
			CreatedAt: alert.CreatedAt,
		})
	}
	e.mu.Unlock()

	metrics.ThreatAnalysesTotal.WithLabelValues(string(level)).Inc()
	e.logger.InfoContext(ctx, "threat analyzed",
		logging.AlertID(alert.ID),
		"score", score,
		"risk_level", string(level),
		"indicators", len(indicators),
		"mitigations", len(alert.Mitigations))

	return alert, nil
}

// Score computes the normalized weighted threat score for a set of
// indicators, adjusted by the security context.
//
// Each indicator contributes confidence x weight, where weight is the
// severity base times a per-type factor. The weighted mean is then
// scaled up for off-hours activity and insecure networks, and clamped
// to [0,1].
func Score(indicators []Indicator, sc models.SecurityContext) float64 {
	var sum, totalWeight float64
	for _, ind := range indicators {
		weight := severityBase[ind.Severity]
		if factor, ok := typeFactor[ind.Type]; ok {
			weight *= factor
		}
		sum += ind.Confidence * weight
		totalWeight += weight
	}
	if totalWeight == 0 {
		return 0
	}

	score := sum / totalWeight

	hour := sc.Timestamp.Hour()
	if hour < offHoursEnd || hour >= offHoursStart {
		score *= 1.2
	}
	if !sc.NetworkSecure {
		score *= 1.3
	}

	return clamp01(score)
}

// RiskFor maps a threat score to its risk level.
func RiskFor(score float64) models.RiskLevel {
	switch {
	case score >= 0.9:
		return models.RiskCritical
	case score >= 0.7:
		return models.RiskHigh
	case score >= 0.5:
		return models.RiskMedium
	case score >= 0.3:
		return models.RiskLow
	default:
		return models.RiskInfo
	}
}

// executeAutomated runs the alert's automated mitigations in ascending
// priority order, marking each one that succeeds.
func (e *Engine) executeAutomated(ctx context.Context, alert *Alert) {
	order := make([]int, 0, len(alert.Mitigations))
	for i, m := range alert.Mitigations {
		if m.Automated {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		return alert.Mitigations[order[a]].Priority < alert.Mitigations[order[b]].Priority
	})

	for _, i := range order {
		m := &alert.Mitigations[i]
		if err := e.responder.Execute(ctx, m.Action, alert); err != nil {
			metrics.MitigationsTotal.WithLabelValues(string(m.Action), "failed").Inc()
			e.logger.ErrorContext(ctx, "mitigation failed",
				logging.AlertID(alert.ID),
				logging.Action(string(m.Action)),
				logging.Error(err))
			continue
		}
		m.Executed = true
		metrics.MitigationsTotal.WithLabelValues(string(m.Action), "executed").Inc()
	}
}

// Alert returns a recorded alert by ID.
func (e *Engine) Alert(id string) (*Alert, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	a, ok := e.alerts[id]
	return a, ok
}

// ActiveAlerts returns all unresolved alerts.
func (e *Engine) ActiveAlerts() []*Alert {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []*Alert
	for _, a := range e.alerts {
		if !a.Resolved {
			out = append(out, a)
		}
	}
	return out
}

// Acknowledge marks an alert as seen by an operator.
func (e *Engine) Acknowledge(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, ok := e.alerts[id]
	if ok {
		a.Acknowledged = true
	}
	return ok
}

// Resolve closes an alert.
func (e *Engine) Resolve(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, ok := e.alerts[id]
	if ok {
		a.Resolved = true
	}
	return ok
}

// Incidents returns the incidents opened so far, newest last.
func (e *Engine) Incidents() []Incident {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]Incident(nil), e.incidents...)
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
