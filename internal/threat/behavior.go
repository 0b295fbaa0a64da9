package threat

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/trustedge/sentinel/internal/logging"
	"github.com/trustedge/sentinel/internal/metrics"
	"github.com/trustedge/sentinel/internal/securestore"
)

// minBaselineSamples is how many observations a pattern needs before
// deviations from it are trusted enough to flag.
const minBaselineSamples = 10

// BehaviorSource supplies the current behavioral metrics, one value per
// named pattern (usage, location, network, interaction, data_access).
type BehaviorSource interface {
	Observe(ctx context.Context) (map[string]float64, error)
}

// patternStats is the rolling per-pattern baseline.
type patternStats struct {
	Samples []float64 `json:"samples"`
	Mean    float64   `json:"mean"`
	StdDev  float64   `json:"stddev"`
}

// Baseline is a user's learned behavioral profile, persisted in the
// secure store.
type Baseline struct {
	UserID    string                  `json:"user_id"`
	Patterns  map[string]patternStats `json:"patterns"`
	UpdatedAt time.Time               `json:"updated_at"`
}

// Detector compares observed behavior against the stored baseline.
type Detector struct {
	store  securestore.Store
	source BehaviorSource
	window int     // rolling sample window per pattern
	k      float64 // anomaly threshold in stddev units
	logger *logging.Logger
	now    func() time.Time
}

// NewDetector creates a behavioral anomaly detector. window bounds the
// rolling sample count per pattern; k is the deviation threshold in
// standard deviations.
func NewDetector(store securestore.Store, source BehaviorSource, window int, k float64, logger *logging.Logger) *Detector {
	if window <= 0 {
		window = 50
	}
	if k <= 0 {
		k = 3.0
	}
	return &Detector{
		store:  store,
		source: source,
		window: window,
		k:      k,
		logger: logger.With(logging.Component("behavior")),
		now:    time.Now,
	}
}

func baselineKey(userID string) string {
	return "threat:baseline:" + userID
}

// DetectAnomalies observes the user's current behavior and returns the
// patterns deviating more than k standard deviations from the baseline.
//
// A user with no stored baseline gets one seeded from the current
// observation and an empty result: unknown is not anomalous. Patterns
// with too few samples likewise only learn. Every call folds the new
// observation into the baseline.
func (d *Detector) DetectAnomalies(ctx context.Context, userID string) ([]Anomaly, error) {
	observed, err := d.source.Observe(ctx)
	if err != nil {
		return nil, fmt.Errorf("threat: observe behavior: %w", err)
	}

	var baseline Baseline
	err = securestore.GetJSON(ctx, d.store, baselineKey(userID), &baseline)
	if errors.Is(err, securestore.ErrNotFound) {
		baseline = Baseline{UserID: userID, Patterns: make(map[string]patternStats)}
		d.fold(&baseline, observed)
		if err := securestore.SetJSON(ctx, d.store, baselineKey(userID), baseline); err != nil {
			return nil, err
		}
		d.logger.InfoContext(ctx, "behavioral baseline seeded",
			logging.UserID(userID), "patterns", len(observed))
		return []Anomaly{}, nil
	}
	if err != nil {
		return nil, err
	}

	var anomalies []Anomaly
	now := d.now()
	for _, name := range sortedKeys(observed) {
		stats, ok := baseline.Patterns[name]
		if !ok || len(stats.Samples) < minBaselineSamples || stats.StdDev == 0 {
			continue
		}
		value := observed[name]
		deviation := math.Abs(value-stats.Mean) / stats.StdDev
		if deviation > d.k {
			anomalies = append(anomalies, Anomaly{
				Pattern:    name,
				Observed:   value,
				Mean:       stats.Mean,
				StdDev:     stats.StdDev,
				Deviation:  deviation,
				DetectedAt: now,
			})
			metrics.AnomaliesDetected.Inc()
		}
	}

	d.fold(&baseline, observed)
	if err := securestore.SetJSON(ctx, d.store, baselineKey(userID), baseline); err != nil {
		return nil, err
	}

	if len(anomalies) > 0 {
		d.logger.WarnContext(ctx, "behavioral anomalies detected",
			logging.UserID(userID), "count", len(anomalies))
	}
	return anomalies, nil
}

// fold adds an observation to the baseline, trimming each pattern to
// the rolling window and recomputing its statistics.
func (d *Detector) fold(b *Baseline, observed map[string]float64) {
	if b.Patterns == nil {
		b.Patterns = make(map[string]patternStats)
	}
	for name, value := range observed {
		stats := b.Patterns[name]
		stats.Samples = append(stats.Samples, value)
		if len(stats.Samples) > d.window {
			stats.Samples = stats.Samples[len(stats.Samples)-d.window:]
		}
		stats.Mean, stats.StdDev = meanStdDev(stats.Samples)
		b.Patterns[name] = stats
	}
	b.UpdatedAt = d.now()
}

func meanStdDev(samples []float64) (mean, stddev float64) {
	n := float64(len(samples))
	if n == 0 {
		return 0, 0
	}
	var sum float64
	for _, s := range samples {
		sum += s
	}
	mean = sum / n

	var sq float64
	for _, s := range samples {
		sq += (s - mean) * (s - mean)
	}
	return mean, math.Sqrt(sq / n)
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
