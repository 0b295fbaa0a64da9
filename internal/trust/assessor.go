// Package trust computes the weighted multi-factor device trust level
// from hardware, platform, and runtime signals.
package trust

import (
	"context"
	"time"

	"github.com/trustedge/sentinel/internal/expiry"
	"github.com/trustedge/sentinel/internal/logging"
	"github.com/trustedge/sentinel/internal/metrics"
	"github.com/trustedge/sentinel/internal/models"
	"github.com/trustedge/sentinel/internal/probes"
)

// FactorType names one trust signal.
type FactorType string

const (
	FactorHardwareAttestation FactorType = "hardware_attestation"
	FactorPlatformIntegrity   FactorType = "platform_integrity"
	FactorDeviceIntegrity     FactorType = "device_integrity_report"
	FactorOSVersionRecency    FactorType = "os_version_recency"
	FactorPatchRecency        FactorType = "security_patch_recency"
	FactorBootloaderLock      FactorType = "bootloader_lock"
	FactorAppSignature        FactorType = "app_signature_validity"
	FactorRuntimeSecurity     FactorType = "runtime_security_mode"
)

// Factor is one weighted signal contributing to the trust score.
type Factor struct {
	Type     FactorType `json:"type"`
	Value    string     `json:"value"`
	Weight   float64    `json:"weight"`
	Positive bool       `json:"positive"`
}

// Assessment is the result of one trust computation. Callers must treat
// an expired assessment as absent, never as "untrusted".
type Assessment struct {
	Factors      []Factor          `json:"factors"`
	Score        float64           `json:"score"`
	Level        models.TrustLevel `json:"level"`
	LastAssessed time.Time         `json:"last_assessed"`
	ValidUntil   time.Time         `json:"valid_until"`
}

// Fixed factor weights. The sum is 1.0 but the score normalizes by the
// sum regardless, so weights read as relative importance.
var factorWeights = map[FactorType]float64{
	FactorHardwareAttestation: 0.20,
	FactorPlatformIntegrity:   0.18,
	FactorDeviceIntegrity:     0.15,
	FactorPatchRecency:        0.12,
	FactorOSVersionRecency:    0.10,
	FactorAppSignature:        0.10,
	FactorBootloaderLock:      0.08,
	FactorRuntimeSecurity:     0.07,
}

// maxPatchAge is how recent the security patch level must be to count as
// a positive signal.
const maxPatchAge = 90 * 24 * time.Hour

// Assessor computes device trust with a freshness-bounded cache.
type Assessor struct {
	probes probes.DeviceProbes
	ttl    time.Duration
	logger *logging.Logger
	now    func() time.Time
	cached *expiry.Value[*Assessment]
}

// NewAssessor creates a trust assessor whose results stay valid for ttl.
func NewAssessor(p probes.DeviceProbes, ttl time.Duration, logger *logging.Logger) *Assessor {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Assessor{
		probes: p,
		ttl:    ttl,
		logger: logger.With(logging.Component("trust")),
		now:    time.Now,
		cached: expiry.New[*Assessment](),
	}
}

// Current returns a fresh-enough assessment, recomputing if the cached
// one expired.
func (a *Assessor) Current(ctx context.Context) (*Assessment, error) {
	return a.cached.GetOrCompute(a.ttl, func() (*Assessment, error) {
		return a.Assess(ctx)
	})
}

// Assess recomputes all trust factors and the resulting level.
//
// Negative factors subtract half their weight rather than the full
// magnitude so a single missing optional signal degrades trust gradually
// instead of cliff-edging to untrusted.
func (a *Assessor) Assess(ctx context.Context) (*Assessment, error) {
	factors, err := a.collectFactors(ctx)
	if err != nil {
		return nil, err
	}

	var sum, totalWeight float64
	for _, f := range factors {
		totalWeight += f.Weight
		if f.Positive {
			sum += f.Weight
		} else {
			sum -= f.Weight * 0.5
		}
	}

	score := 0.0
	if totalWeight > 0 {
		score = sum / totalWeight
	}
	score = clamp01(score)

	now := a.now()
	assessment := &Assessment{
		Factors:      factors,
		Score:        score,
		Level:        LevelFor(score),
		LastAssessed: now,
		ValidUntil:   now.Add(a.ttl),
	}

	a.cached.Set(assessment, a.ttl)
	metrics.TrustAssessmentsTotal.WithLabelValues(string(assessment.Level)).Inc()
	a.logger.DebugContext(ctx, "device trust assessed",
		"score", score, "level", string(assessment.Level))

	return assessment, nil
}

// Invalidate discards the cached assessment, forcing the next Current
// call to recompute.
func (a *Assessor) Invalidate() {
	a.cached.Invalidate()
}

// LevelFor maps a trust score to its level.
func LevelFor(score float64) models.TrustLevel {
	switch {
	case score >= 0.9:
		return models.TrustVerified
	case score >= 0.7:
		return models.TrustHigh
	case score >= 0.5:
		return models.TrustMedium
	case score >= 0.3:
		return models.TrustLow
	default:
		return models.TrustUntrusted
	}
}

func (a *Assessor) collectFactors(ctx context.Context) ([]Factor, error) {
	var factors []Factor

	hw, err := a.probes.HardwareAttestation(ctx)
	if err != nil {
		return nil, err
	}
	factors = append(factors, boolFactor(FactorHardwareAttestation, hw))

	integrity, err := a.probes.PlatformIntegrity(ctx)
	if err != nil {
		return nil, err
	}
	factors = append(factors, boolFactor(FactorPlatformIntegrity, integrity))

	compromised, err := a.probes.CompromiseDetected(ctx)
	if err != nil {
		return nil, err
	}
	emulator, err := a.probes.EmulatorDetected(ctx)
	if err != nil {
		return nil, err
	}
	factors = append(factors, boolFactor(FactorDeviceIntegrity, !compromised && !emulator))

	patchDate, err := a.probes.SecurityPatchDate(ctx)
	if err != nil {
		return nil, err
	}
	patchRecent := a.now().Sub(patchDate) <= maxPatchAge
	factors = append(factors, Factor{
		Type:     FactorPatchRecency,
		Value:    patchDate.Format("2006-01-02"),
		Weight:   factorWeights[FactorPatchRecency],
		Positive: patchRecent,
	})

	osVersion, err := a.probes.OSVersion(ctx)
	if err != nil {
		return nil, err
	}
	factors = append(factors, Factor{
		Type:     FactorOSVersionRecency,
		Value:    osVersion,
		Weight:   factorWeights[FactorOSVersionRecency],
		Positive: osVersion != "",
	})

	signature, err := a.probes.AppSignatureValid(ctx)
	if err != nil {
		return nil, err
	}
	factors = append(factors, boolFactor(FactorAppSignature, signature))

	bootloader, err := a.probes.BootloaderLocked(ctx)
	if err != nil {
		return nil, err
	}
	factors = append(factors, boolFactor(FactorBootloaderLock, bootloader))

	runtimeSec, err := a.probes.RuntimeSecurityMode(ctx)
	if err != nil {
		return nil, err
	}
	factors = append(factors, boolFactor(FactorRuntimeSecurity, runtimeSec))

	return factors, nil
}

func boolFactor(t FactorType, positive bool) Factor {
	value := "false"
	if positive {
		value = "true"
	}
	return Factor{
		Type:     t,
		Value:    value,
		Weight:   factorWeights[t],
		Positive: positive,
	}
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
