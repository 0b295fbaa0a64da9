package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustedge/sentinel/internal/probes"
)

const testRulePack = `
rules:
  - id: org-no-emulator
    category: device_security
    severity: high
    mandatory: true
    probe: emulator_detected
    expect: false
    actions: [warn, audit_log]
  - id: org-bootloader-locked
    category: device_security
    severity: medium
    mandatory: false
    probe: bootloader_locked
    expect: true
    actions: [warn]
`

func TestImportRulePack(t *testing.T) {
	device := probes.Healthy()
	rules, err := ImportRulePack([]byte(testRulePack), device)
	require.NoError(t, err)
	require.Len(t, rules, 2)

	assert.Equal(t, "org-no-emulator", rules[0].ID)
	assert.True(t, rules[0].Mandatory)
	assert.Equal(t, []Action{ActionWarn, ActionAuditLog}, rules[0].Actions)

	// Healthy device: not an emulator, bootloader locked.
	result, err := rules[0].Check(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Compliant)

	result, err = rules[1].Check(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Compliant)

	// Flip the probe: the declarative expectation now fails.
	device.Emulator = true
	result, err = rules[0].Check(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Compliant)
}

func TestImportRulePack_UnknownProbe(t *testing.T) {
	_, err := ImportRulePack([]byte(`
rules:
  - id: bad
    probe: nonexistent_probe
    expect: true
`), probes.Healthy())
	assert.ErrorContains(t, err, "unknown probe")
}

func TestImportRulePack_UnknownAction(t *testing.T) {
	_, err := ImportRulePack([]byte(`
rules:
  - id: bad
    probe: emulator_detected
    expect: false
    actions: [self_destruct]
`), probes.Healthy())
	assert.ErrorContains(t, err, "unknown action")
}

func TestImportRulePack_MissingID(t *testing.T) {
	_, err := ImportRulePack([]byte(`
rules:
  - probe: emulator_detected
    expect: false
`), probes.Healthy())
	assert.ErrorContains(t, err, "missing id")
}
