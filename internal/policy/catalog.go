package policy

import (
	"context"
	"strconv"
	"strings"

	"github.com/trustedge/sentinel/internal/models"
	"github.com/trustedge/sentinel/internal/probes"
)

// minOSVersion is the oldest supported OS version per platform.
var minOSVersion = map[string]string{
	"ios":     "15.0",
	"android": "12",
}

// BuiltinRules returns the built-in rule catalog wired to the platform
// probes. platform selects the minimum OS version check.
func BuiltinRules(p probes.DeviceProbes, platform string) []Rule {
	return []Rule{
		{
			ID:        "device-not-compromised",
			Category:  CategoryDeviceSecurity,
			Severity:  models.SeverityCritical,
			Mandatory: true,
			Check: func(ctx context.Context) (CheckResult, error) {
				compromised, err := p.CompromiseDetected(ctx)
				if err != nil {
					return CheckResult{}, err
				}
				return CheckResult{
					Compliant: !compromised,
					Evidence:  map[string]any{"compromise_detected": compromised},
				}, nil
			},
			Actions: []Action{ActionBlockAccess, ActionRevokeSession, ActionNotifyAdmin, ActionAuditLog},
		},
		{
			ID:        "screen-lock-required",
			Category:  CategoryDeviceSecurity,
			Severity:  models.SeverityHigh,
			Mandatory: true,
			Check: func(ctx context.Context) (CheckResult, error) {
				enabled, err := p.ScreenLockEnabled(ctx)
				if err != nil {
					return CheckResult{}, err
				}
				return CheckResult{
					Compliant: enabled,
					Evidence:  map[string]any{"screen_lock_enabled": enabled},
				}, nil
			},
			Actions: []Action{ActionWarn, ActionRequireAuthentication, ActionAuditLog},
		},
		{
			ID:        "os-version-supported",
			Category:  CategoryDeviceSecurity,
			Severity:  models.SeverityMedium,
			Mandatory: true,
			Check: func(ctx context.Context) (CheckResult, error) {
				version, err := p.OSVersion(ctx)
				if err != nil {
					return CheckResult{}, err
				}
				min := minOSVersion[strings.ToLower(platform)]
				supported := min == "" || compareVersions(version, min) >= 0
				return CheckResult{
					Compliant: supported,
					Evidence:  map[string]any{"os_version": version, "min_version": min},
				}, nil
			},
			Actions: []Action{ActionWarn, ActionAuditLog},
		},
		{
			ID:        "app-from-official-store",
			Category:  CategoryAppIntegrity,
			Severity:  models.SeverityHigh,
			Mandatory: true,
			Check: func(ctx context.Context) (CheckResult, error) {
				installer, err := p.InstallerPackage(ctx)
				if err != nil {
					return CheckResult{}, err
				}
				return CheckResult{
					Compliant: probes.OfficialInstallers[installer],
					Evidence:  map[string]any{"installer": installer},
				}, nil
			},
			Actions: []Action{ActionWarn, ActionLimitFunctionality, ActionAuditLog},
		},
		{
			ID:        "biometric-available",
			Category:  CategoryAuthentication,
			Severity:  models.SeverityMedium,
			Mandatory: false,
			Check: func(ctx context.Context) (CheckResult, error) {
				available, err := p.BiometricHardwareAvailable(ctx)
				if err != nil {
					return CheckResult{}, err
				}
				return CheckResult{
					Compliant: available,
					Evidence:  map[string]any{"biometric_available": available},
				}, nil
			},
			Actions: []Action{ActionWarn},
		},
		{
			ID:        "storage-encrypted",
			Category:  CategoryDataProtection,
			Severity:  models.SeverityCritical,
			Mandatory: true,
			Check: func(ctx context.Context) (CheckResult, error) {
				encrypted, err := p.StorageEncrypted(ctx)
				if err != nil {
					return CheckResult{}, err
				}
				return CheckResult{
					Compliant: encrypted,
					Evidence:  map[string]any{"storage_encrypted": encrypted},
				}, nil
			},
			Actions: []Action{ActionBlockAccess, ActionNotifyAdmin, ActionAuditLog},
		},
	}
}

// compareVersions compares dotted numeric versions: -1, 0, or 1.
// Non-numeric segments compare as 0.
func compareVersions(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	n := len(as)
	if len(bs) > n {
		n = len(bs)
	}
	for i := 0; i < n; i++ {
		av, bv := 0, 0
		if i < len(as) {
			av, _ = strconv.Atoi(strings.TrimSpace(as[i]))
		}
		if i < len(bs) {
			bv, _ = strconv.Atoi(strings.TrimSpace(bs[i]))
		}
		if av != bv {
			if av < bv {
				return -1
			}
			return 1
		}
	}
	return 0
}
