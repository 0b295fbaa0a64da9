package notify

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trustedge/sentinel/internal/logging"
	"github.com/trustedge/sentinel/internal/models"
)

func TestLogNotifier_NeverFails(t *testing.T) {
	n := NewLogNotifier(logging.New(slog.LevelError, "text"))
	ctx := context.Background()

	notification := Notification{
		Kind:      "admin",
		Subject:   "policy violation: screen-lock-required",
		Severity:  models.SeverityHigh,
		DeviceID:  "device-0000",
		CreatedAt: time.Now(),
	}

	assert.NoError(t, n.NotifyAdmin(ctx, notification))
	assert.NoError(t, n.AlertSecurityTeam(ctx, notification))
	assert.NoError(t, n.Close())
}
