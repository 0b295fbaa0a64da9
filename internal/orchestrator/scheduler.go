package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/trustedge/sentinel/internal/audit"
	"github.com/trustedge/sentinel/internal/logging"
)

// scheduler runs the recurring background checks as one task group. All
// tasks share a stop channel and stop together.
type scheduler struct {
	stop     chan struct{}
	stopOnce sync.Once
	stopped  sync.WaitGroup
	trigger  chan struct{} // foreground policy-check trigger
}

// StartScheduler launches the background task group: device integrity
// checks, periodic policy checks, behavioral analysis, and network scans.
// The audit flush loop was already started during initialization. Safe to
// call once after a successful Initialize.
func (o *Orchestrator) StartScheduler(ctx context.Context) {
	if o.sched != nil || !o.Initialized() {
		return
	}
	s := &scheduler{
		stop:    make(chan struct{}),
		trigger: make(chan struct{}, 1),
	}
	o.sched = s

	cfg := o.deps.Config
	s.run(ctx, cfg.Trust.DeviceCheckWindow, func(ctx context.Context) {
		if ok, err := o.checkDevice(ctx); err != nil {
			o.logger.WarnContext(ctx, "scheduled device check failed", logging.Error(err))
		} else if !ok {
			o.logger.ErrorContext(ctx, "scheduled device check: integrity failure")
		}
	})

	s.runTriggered(ctx, cfg.Policy.CheckInterval, s.trigger, func(ctx context.Context) {
		state := o.deps.Policy.PerformPolicyCheck(ctx)
		if !state.OverallCompliance {
			o.logger.WarnContext(ctx, "scheduled policy check found violations",
				"violations", len(state.Violations))
		}
	})

	s.run(ctx, cfg.Threat.BehavioralInterval, func(ctx context.Context) {
		userID := o.deps.CurrentUser()
		if userID == "" {
			return
		}
		anomalies, err := o.deps.Behavior.DetectAnomalies(ctx, userID)
		if err != nil {
			o.logger.WarnContext(ctx, "scheduled behavioral analysis failed",
				logging.UserID(userID), logging.Error(err))
			return
		}
		o.recordAnomalies(len(anomalies))
		if len(anomalies) > 0 {
			o.deps.Audit.LogSecurityEvent(ctx, audit.EventAnomalyDetected,
				audit.CategoryThreat, "scheduled behavioral analysis found anomalies",
				o.deps.SecurityContext(), map[string]any{"count": len(anomalies)})
		}
	})

	s.run(ctx, cfg.Threat.NetworkScanInterval, func(ctx context.Context) {
		sctx := o.deps.SecurityContext()
		if !sctx.NetworkSecure {
			o.deps.Audit.LogSecurityEvent(ctx, audit.EventDataAccess,
				audit.CategoryDeviceSecurity, "operating on an insecure network",
				sctx, map[string]any{"network_type": sctx.NetworkType})
		}
	})

	o.logger.InfoContext(ctx, "scheduler started",
		"device_check", cfg.Trust.DeviceCheckWindow.String(),
		"policy_check", cfg.Policy.CheckInterval.String(),
		"behavioral", cfg.Threat.BehavioralInterval.String(),
		"network_scan", cfg.Threat.NetworkScanInterval.String())
}

// TriggerPolicyCheck requests an immediate policy pass (app foreground,
// network change). Coalesces if one is already pending.
func (o *Orchestrator) TriggerPolicyCheck() {
	if o.sched == nil {
		return
	}
	select {
	case o.sched.trigger <- struct{}{}:
	default:
	}
}

// run starts one periodic task in the group.
func (s *scheduler) run(ctx context.Context, interval time.Duration, task func(context.Context)) {
	s.runTriggered(ctx, interval, nil, task)
}

// runTriggered starts a periodic task that can also fire on demand.
func (s *scheduler) runTriggered(ctx context.Context, interval time.Duration, trigger <-chan struct{}, task func(context.Context)) {
	if interval <= 0 {
		return
	}
	s.stopped.Add(1)
	go func() {
		defer s.stopped.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				task(ctx)
			case <-trigger:
				task(ctx)
			case <-s.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts every task in the group and waits for them to exit. Safe to
// call more than once.
func (s *scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.stopped.Wait()
}
