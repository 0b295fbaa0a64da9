package audit

import (
	"context"
	"time"

	"github.com/trustedge/sentinel/internal/models"
)

// ErrForensicModeDisabled is returned when forensic analysis is requested
// without forensic mode enabled. Fails closed.
var ErrForensicModeDisabled = models.NewOperationError(
	"FORENSIC_MODE_DISABLED",
	"forensic analysis requires forensic mode to be enabled",
)

// ForensicFindings is the result of a forensic analysis pass.
//
// Root-cause identification, attribution, and geographic intelligence are
// intentionally not populated: no algorithm is specified for them yet, so
// the fields stay typed but empty rather than guessing.
type ForensicFindings struct {
	Timeframe       Timeframe       `json:"timeframe"`
	EventsExamined  int             `json:"events_examined"`
	Timeline        []SecurityEvent `json:"timeline"`
	RootCauses      []string        `json:"root_causes"`
	Attribution     []string        `json:"attribution"`
	GeographicIntel []string        `json:"geographic_intel"`
	GeneratedAt     time.Time       `json:"generated_at"`
}

// PerformForensicAnalysis returns a chronological timeline of retained
// events in the timeframe. It is gated behind the forensic-mode flag.
func (l *Ledger) PerformForensicAnalysis(ctx context.Context, timeframe Timeframe) (*ForensicFindings, error) {
	if !l.opts.ForensicMode {
		return nil, ErrForensicModeDisabled
	}

	events := l.Events(timeframe.From, timeframe.To)
	return &ForensicFindings{
		Timeframe:       timeframe,
		EventsExamined:  len(events),
		Timeline:        events,
		RootCauses:      []string{},
		Attribution:     []string{},
		GeographicIntel: []string{},
		GeneratedAt:     l.now(),
	}, nil
}
