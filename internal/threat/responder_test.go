package threat

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustedge/sentinel/internal/logging"
	"github.com/trustedge/sentinel/internal/models"
	"github.com/trustedge/sentinel/internal/notify"
)

type fakeSessions struct {
	revoked []string
	reauth  []string
}

func (f *fakeSessions) RevokeUser(userID string) int {
	f.revoked = append(f.revoked, userID)
	return 1
}

func (f *fakeSessions) RequireReauth(userID string) {
	f.reauth = append(f.reauth, userID)
}

type fakeDevice struct {
	isolated    bool
	limited     bool
	quarantined bool
}

func (f *fakeDevice) Isolate(context.Context, string) error {
	f.isolated = true
	return nil
}

func (f *fakeDevice) LimitNetwork(context.Context, string) error {
	f.limited = true
	return nil
}

func (f *fakeDevice) QuarantineFiles(context.Context, string) error {
	f.quarantined = true
	return nil
}

type fakeForensics struct {
	alertIDs []string
}

func (f *fakeForensics) Collect(_ context.Context, alertID string) error {
	f.alertIDs = append(f.alertIDs, alertID)
	return nil
}

type countingNotifier struct {
	securityAlerts int
}

func (c *countingNotifier) NotifyAdmin(context.Context, notify.Notification) error { return nil }
func (c *countingNotifier) AlertSecurityTeam(context.Context, notify.Notification) error {
	c.securityAlerts++
	return nil
}
func (c *countingNotifier) Close() error { return nil }

func newTestDispatcher() (*Dispatcher, *fakeSessions, *fakeDevice, *fakeForensics, *countingNotifier) {
	sessions := &fakeSessions{}
	device := &fakeDevice{}
	forensics := &fakeForensics{}
	notifier := &countingNotifier{}
	d := NewDispatcher(sessions, device, notifier, forensics,
		func() string { return "user-1" }, logging.New(slog.LevelError, "text"))
	return d, sessions, device, forensics, notifier
}

func TestDispatcher_AllActionsDispatch(t *testing.T) {
	d, sessions, device, forensics, notifier := newTestDispatcher()
	alert := &Alert{ID: "a1", RiskLevel: models.RiskCritical}
	ctx := context.Background()

	actions := []MitigationAction{
		MitigateIsolateDevice,
		MitigateRevokeCredentials,
		MitigateCollectForensics,
		MitigateAlertSecurityTeam,
		MitigateRequireReauth,
		MitigateLimitNetworkAccess,
		MitigateMonitorEnhanced,
		MitigateQuarantineFiles,
		MitigateForceLogout,
	}
	for _, action := range actions {
		require.NoError(t, d.Execute(ctx, action, alert), "action %s", action)
	}

	assert.True(t, device.isolated)
	assert.True(t, device.limited)
	assert.True(t, device.quarantined)
	assert.Equal(t, []string{"a1"}, forensics.alertIDs)
	assert.Equal(t, 1, notifier.securityAlerts)
	assert.Equal(t, []string{"user-1", "user-1"}, sessions.revoked,
		"revoke_credentials and force_logout both revoke")
	assert.Equal(t, []string{"user-1"}, sessions.reauth)
	assert.True(t, d.EnhancedMonitoring())
}

func TestDispatcher_UnknownActionFailsLoudly(t *testing.T) {
	d, _, _, _, _ := newTestDispatcher()
	err := d.Execute(context.Background(), MitigationAction("self_destruct"), &Alert{ID: "a1"})
	assert.ErrorContains(t, err, "unknown mitigation action")
}

func TestDispatcher_ResetMonitoring(t *testing.T) {
	d, _, _, _, _ := newTestDispatcher()
	require.NoError(t, d.Execute(context.Background(), MitigateMonitorEnhanced, &Alert{ID: "a1"}))
	require.True(t, d.EnhancedMonitoring())

	d.ResetMonitoring()
	assert.False(t, d.EnhancedMonitoring())
}
