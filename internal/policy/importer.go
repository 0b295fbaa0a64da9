package policy

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/trustedge/sentinel/internal/models"
	"github.com/trustedge/sentinel/internal/probes"
)

// Organization-supplied rule packs are declarative YAML documents mapping
// a probe signal to an expected boolean value:
//
//	rules:
//	  - id: org-no-emulator
//	    category: device_security
//	    severity: high
//	    mandatory: true
//	    probe: emulator_detected
//	    expect: false
//	    actions: [warn, audit_log]

type rulePackDoc struct {
	Rules []rulePackRule `yaml:"rules"`
}

type rulePackRule struct {
	ID        string   `yaml:"id"`
	Category  string   `yaml:"category"`
	Severity  string   `yaml:"severity"`
	Mandatory bool     `yaml:"mandatory"`
	Probe     string   `yaml:"probe"`
	Expect    bool     `yaml:"expect"`
	Actions   []string `yaml:"actions"`
}

// probeChecks maps declarative probe names to probe calls.
var probeChecks = map[string]func(ctx context.Context, p probes.DeviceProbes) (bool, error){
	"compromise_detected": func(ctx context.Context, p probes.DeviceProbes) (bool, error) { return p.CompromiseDetected(ctx) },
	"emulator_detected":   func(ctx context.Context, p probes.DeviceProbes) (bool, error) { return p.EmulatorDetected(ctx) },
	"biometric_available": func(ctx context.Context, p probes.DeviceProbes) (bool, error) {
		return p.BiometricHardwareAvailable(ctx)
	},
	"storage_encrypted":    func(ctx context.Context, p probes.DeviceProbes) (bool, error) { return p.StorageEncrypted(ctx) },
	"screen_lock_enabled":  func(ctx context.Context, p probes.DeviceProbes) (bool, error) { return p.ScreenLockEnabled(ctx) },
	"bootloader_locked":    func(ctx context.Context, p probes.DeviceProbes) (bool, error) { return p.BootloaderLocked(ctx) },
	"app_signature_valid":  func(ctx context.Context, p probes.DeviceProbes) (bool, error) { return p.AppSignatureValid(ctx) },
	"hardware_attestation": func(ctx context.Context, p probes.DeviceProbes) (bool, error) { return p.HardwareAttestation(ctx) },
	"platform_integrity":   func(ctx context.Context, p probes.DeviceProbes) (bool, error) { return p.PlatformIntegrity(ctx) },
	"runtime_security":     func(ctx context.Context, p probes.DeviceProbes) (bool, error) { return p.RuntimeSecurityMode(ctx) },
}

// ImportRulePack parses a YAML rule pack into Rules wired to the probes.
func ImportRulePack(data []byte, p probes.DeviceProbes) ([]Rule, error) {
	var doc rulePackDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("policy: parse rule pack: %w", err)
	}

	rules := make([]Rule, 0, len(doc.Rules))
	for _, r := range doc.Rules {
		if r.ID == "" {
			return nil, fmt.Errorf("policy: rule pack entry missing id")
		}
		check, ok := probeChecks[r.Probe]
		if !ok {
			return nil, fmt.Errorf("policy: rule %s references unknown probe %q", r.ID, r.Probe)
		}

		actions := make([]Action, 0, len(r.Actions))
		for _, a := range r.Actions {
			action := Action(a)
			if !action.Valid() {
				return nil, fmt.Errorf("policy: rule %s declares unknown action %q", r.ID, a)
			}
			actions = append(actions, action)
		}

		expect := r.Expect
		probeName := r.Probe
		rules = append(rules, Rule{
			ID:        r.ID,
			Category:  RuleCategory(r.Category),
			Severity:  models.Severity(r.Severity),
			Mandatory: r.Mandatory,
			Check: func(ctx context.Context) (CheckResult, error) {
				got, err := check(ctx, p)
				if err != nil {
					return CheckResult{}, err
				}
				return CheckResult{
					Compliant: got == expect,
					Evidence:  map[string]any{probeName: got, "expected": expect},
				}, nil
			},
			Actions: actions,
		})
	}
	return rules, nil
}

// LoadRulePacks imports every pack file and registers its rules.
func LoadRulePacks(e *Engine, p probes.DeviceProbes, paths []string) error {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("policy: read rule pack %s: %w", path, err)
		}
		rules, err := ImportRulePack(data, p)
		if err != nil {
			return fmt.Errorf("policy: rule pack %s: %w", path, err)
		}
		for _, rule := range rules {
			if err := e.AddRule(rule); err != nil {
				return err
			}
		}
	}
	return nil
}
