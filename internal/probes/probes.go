// Package probes defines the boundary to platform-specific device checks.
// Real implementations bind to OS facilities (keystore, attestation APIs,
// package manager); this package only fixes the contract the engines
// consume.
package probes

import (
	"context"
	"time"
)

// DeviceProbes exposes the platform signals the engines consume. All
// methods are read-only and must not mutate device state.
type DeviceProbes interface {
	// DeviceID returns a stable device-unique identifier.
	DeviceID(ctx context.Context) (string, error)

	// CompromiseDetected reports jailbreak/root indicators.
	CompromiseDetected(ctx context.Context) (bool, error)

	// EmulatorDetected reports whether the app runs on an emulator.
	EmulatorDetected(ctx context.Context) (bool, error)

	// OSVersion returns the platform OS version string.
	OSVersion(ctx context.Context) (string, error)

	// SecurityPatchDate returns the date of the last applied security patch.
	SecurityPatchDate(ctx context.Context) (time.Time, error)

	// InstallerPackage returns the identifier of the installing store.
	InstallerPackage(ctx context.Context) (string, error)

	// BiometricHardwareAvailable reports biometric capability.
	BiometricHardwareAvailable(ctx context.Context) (bool, error)

	// StorageEncrypted reports whether device storage is encrypted.
	StorageEncrypted(ctx context.Context) (bool, error)

	// ScreenLockEnabled reports whether a screen lock is configured.
	ScreenLockEnabled(ctx context.Context) (bool, error)

	// BootloaderLocked reports the bootloader lock state.
	BootloaderLocked(ctx context.Context) (bool, error)

	// AppSignatureValid reports whether the app signature verifies.
	AppSignatureValid(ctx context.Context) (bool, error)

	// HardwareAttestation reports hardware-backed key attestation support.
	HardwareAttestation(ctx context.Context) (bool, error)

	// PlatformIntegrity reports the platform integrity verdict
	// (Play Integrity / DeviceCheck style).
	PlatformIntegrity(ctx context.Context) (bool, error)

	// RuntimeSecurityMode reports whether runtime protections
	// (debugger/hooking detection) are active.
	RuntimeSecurityMode(ctx context.Context) (bool, error)
}

// Static is a fixed-answer DeviceProbes used in tests and as the default
// stub on platforms without native bindings.
type Static struct {
	ID              string
	Compromised     bool
	Emulator        bool
	OS              string
	PatchDate       time.Time
	Installer       string
	Biometric       bool
	Encrypted       bool
	ScreenLock      bool
	Bootloader      bool
	SignatureValid  bool
	HardwareAttest  bool
	Integrity       bool
	RuntimeSecurity bool
}

// Healthy returns a Static describing a fully compliant device.
func Healthy() *Static {
	return &Static{
		ID:              "device-0000",
		OS:              "17.2",
		PatchDate:       time.Now().AddDate(0, -1, 0),
		Installer:       "com.apple.AppStore",
		Biometric:       true,
		Encrypted:       true,
		ScreenLock:      true,
		Bootloader:      true,
		SignatureValid:  true,
		HardwareAttest:  true,
		Integrity:       true,
		RuntimeSecurity: true,
	}
}

func (s *Static) DeviceID(context.Context) (string, error)         { return s.ID, nil }
func (s *Static) CompromiseDetected(context.Context) (bool, error) { return s.Compromised, nil }
func (s *Static) EmulatorDetected(context.Context) (bool, error)   { return s.Emulator, nil }
func (s *Static) OSVersion(context.Context) (string, error)        { return s.OS, nil }
func (s *Static) SecurityPatchDate(context.Context) (time.Time, error) {
	return s.PatchDate, nil
}
func (s *Static) InstallerPackage(context.Context) (string, error) { return s.Installer, nil }
func (s *Static) BiometricHardwareAvailable(context.Context) (bool, error) {
	return s.Biometric, nil
}
func (s *Static) StorageEncrypted(context.Context) (bool, error)  { return s.Encrypted, nil }
func (s *Static) ScreenLockEnabled(context.Context) (bool, error) { return s.ScreenLock, nil }
func (s *Static) BootloaderLocked(context.Context) (bool, error)  { return s.Bootloader, nil }
func (s *Static) AppSignatureValid(context.Context) (bool, error) {
	return s.SignatureValid, nil
}
func (s *Static) HardwareAttestation(context.Context) (bool, error) {
	return s.HardwareAttest, nil
}
func (s *Static) PlatformIntegrity(context.Context) (bool, error) { return s.Integrity, nil }
func (s *Static) RuntimeSecurityMode(context.Context) (bool, error) {
	return s.RuntimeSecurity, nil
}

// OfficialInstallers are the store packages accepted by the
// app-from-official-store policy rule.
var OfficialInstallers = map[string]bool{
	"com.apple.AppStore":              true,
	"com.android.vending":             true,
	"com.amazon.venezia":              true,
	"com.sec.android.app.samsungapps": true,
}
