package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/trustedge/sentinel/internal/audit"
	"github.com/trustedge/sentinel/internal/config"
	"github.com/trustedge/sentinel/internal/logging"
	"github.com/trustedge/sentinel/internal/models"
	"github.com/trustedge/sentinel/internal/notify"
	"github.com/trustedge/sentinel/internal/orchestrator"
	"github.com/trustedge/sentinel/internal/policy"
	"github.com/trustedge/sentinel/internal/probes"
	"github.com/trustedge/sentinel/internal/securestore"
	"github.com/trustedge/sentinel/internal/session"
	"github.com/trustedge/sentinel/internal/signing"
	"github.com/trustedge/sentinel/internal/threat"
	"github.com/trustedge/sentinel/internal/trust"
)

// logControls is the CLI stand-in for the host application's UI surface.
// A real integration supplies platform-native dialogs and kill switches.
type logControls struct {
	logger *logging.Logger
}

func (c *logControls) ShowWarning(ctx context.Context, message string) error {
	c.logger.WarnContext(ctx, "security warning", "message", message)
	return nil
}

func (c *logControls) BlockAccess(ctx context.Context, reason string) error {
	c.logger.ErrorContext(ctx, "access blocked", "reason", reason)
	return nil
}

func (c *logControls) LimitFunctionality(ctx context.Context, reason string) error {
	c.logger.WarnContext(ctx, "functionality limited", "reason", reason)
	return nil
}

func (c *logControls) WipeData(ctx context.Context, reason string) error {
	c.logger.ErrorContext(ctx, "data wipe requested", "reason", reason)
	return nil
}

func (c *logControls) Isolate(ctx context.Context, reason string) error {
	c.logger.ErrorContext(ctx, "device isolated", "reason", reason)
	return nil
}

func (c *logControls) LimitNetwork(ctx context.Context, reason string) error {
	c.logger.WarnContext(ctx, "network access limited", "reason", reason)
	return nil
}

func (c *logControls) QuarantineFiles(ctx context.Context, reason string) error {
	c.logger.WarnContext(ctx, "files quarantined", "reason", reason)
	return nil
}

// violationAuditor adapts the ledger to the policy audit_log action.
type violationAuditor struct {
	ledger  *audit.Ledger
	context func() models.SecurityContext
}

func (a *violationAuditor) LogViolation(ctx context.Context, v policy.Violation) {
	a.ledger.LogSecurityEvent(ctx, audit.EventPolicyViolation, audit.CategoryPolicy,
		"policy violation: "+v.PolicyID, a.context(), map[string]any{
			"policy_id": v.PolicyID,
			"severity":  string(v.Severity),
		})
}

// forensicCollector adapts the ledger's forensic path to mitigation.
type forensicCollector struct {
	ledger *audit.Ledger
	store  securestore.Store
}

func (f *forensicCollector) Collect(ctx context.Context, alertID string) error {
	timeframe := audit.Timeframe{From: time.Now().Add(-1 * time.Hour), To: time.Now()}
	findings, err := f.ledger.PerformForensicAnalysis(ctx, timeframe)
	if err != nil {
		return err
	}
	return securestore.SetJSON(ctx, f.store, "forensic:"+alertID, findings)
}

// emptyBehavior is the CLI behavior source; a real host feeds usage
// telemetry here.
type emptyBehavior struct{}

func (emptyBehavior) Observe(context.Context) (map[string]float64, error) {
	return map[string]float64{}, nil
}

// buildOrchestrator wires the full engine from configuration. The
// returned cleanup closes the store and notifier connections.
func buildOrchestrator(ctx context.Context, cfg *config.Config) (*orchestrator.Orchestrator, func(), error) {
	logger := logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)
	logging.SetDefault(logger)

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	device := probes.Healthy() // platform bindings replace this in a host build

	secret := []byte(os.Getenv("SENTINEL_DEVICE_SECRET"))
	if len(secret) == 0 {
		id, err := device.DeviceID(ctx)
		if err != nil {
			store.Close()
			return nil, nil, fmt.Errorf("resolve device identity: %w", err)
		}
		secret = []byte(id)
	}

	sink, err := buildSink(cfg, store, secret)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	ledger := audit.NewLedger(sink, logger, audit.Options{
		MinLevel:         models.Severity(cfg.Audit.MinLevel),
		FlushInterval:    cfg.Audit.FlushInterval,
		MaxBufferSize:    cfg.Audit.MaxBufferSize,
		LogSensitiveData: cfg.Audit.LogSensitiveData,
		ForensicMode:     cfg.Security.ForensicMode,
	})

	notifier, err := buildNotifier(cfg, logger)
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	sessions := session.NewStore(secret, 8*time.Hour)
	controls := &logControls{logger: logger.With(logging.Component("controls"))}

	securityContext := func() models.SecurityContext {
		id, _ := device.DeviceID(context.Background())
		osVersion, _ := device.OSVersion(context.Background())
		return models.SecurityContext{
			DeviceID:      id,
			Platform:      "ios",
			OSVersion:     osVersion,
			Timestamp:     time.Now(),
			NetworkSecure: true,
		}
	}
	currentUser := func() string { return os.Getenv("SENTINEL_USER") }

	auditor := &violationAuditor{ledger: ledger, context: securityContext}
	enforcer := policy.NewDispatcher(sessions, controls, notifier, auditor, currentUser, logger)
	engine := policy.NewEngine(enforcer, logger, cfg.Policy.CheckInterval)

	forensics := &forensicCollector{ledger: ledger, store: store}
	responder := threat.NewDispatcher(sessions, controls, notifier, forensics, currentUser, logger)
	threatEngine := threat.NewEngine(responder, logger)
	detector := threat.NewDetector(store, emptyBehavior{},
		cfg.Threat.BaselineWindow, cfg.Threat.AnomalyStdDevs, logger)

	assessor := trust.NewAssessor(device, cfg.Trust.AssessmentTTL, logger)

	orch := orchestrator.New(orchestrator.Deps{
		Config:          cfg,
		Store:           store,
		Probes:          device,
		Policy:          engine,
		Trust:           assessor,
		Threat:          threatEngine,
		Behavior:        detector,
		Audit:           ledger,
		Sessions:        sessions,
		Notifier:        notifier,
		Logger:          logger,
		CurrentUser:     currentUser,
		SecurityContext: securityContext,
	})

	cleanup := func() {
		orch.Shutdown(context.Background())
		sink.Close()
		store.Close()
	}
	return orch, cleanup, nil
}

func buildStore(ctx context.Context, cfg *config.Config) (securestore.Store, error) {
	switch cfg.Store.Type {
	case "sqlite":
		return securestore.NewSQLiteStore(ctx, cfg.Store.SQLite.Path)
	case "redis":
		return securestore.NewRedisStore(cfg.Store.Redis.URL, "sentinel")
	default:
		return securestore.NewMemoryStore(), nil
	}
}

func buildSink(cfg *config.Config, store securestore.Store, secret []byte) (audit.Sink, error) {
	switch cfg.Audit.SinkType {
	case "store":
		return audit.NewStoreSink(store), nil
	default:
		signer := signing.NewEventSigner(secret, cfg.Audit.SigningKeyAlias)
		return audit.NewChainFileSink(cfg.Audit.ChainFilePath, signer)
	}
}

func buildNotifier(cfg *config.Config, logger *logging.Logger) (notify.Notifier, error) {
	if cfg.Notify.Type == "nats" {
		return notify.NewNATSNotifier(cfg.Notify.NATSURL)
	}
	return notify.NewLogNotifier(logger), nil
}
