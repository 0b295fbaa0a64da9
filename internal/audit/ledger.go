package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trustedge/sentinel/internal/logging"
	"github.com/trustedge/sentinel/internal/metrics"
	"github.com/trustedge/sentinel/internal/models"
)

const historyCap = 10000

// Options configure a Ledger.
type Options struct {
	MinLevel         models.Severity
	FlushInterval    time.Duration
	MaxBufferSize    int
	LogSensitiveData bool
	ForensicMode     bool
}

// Ledger is the append-only buffered security event log. It is the only
// writer to durable audit storage. Logging never fails the business
// operation being observed: LogSecurityEvent returns the event (or nil if
// filtered), never an error.
type Ledger struct {
	opts   Options
	sink   Sink
	logger *logging.Logger
	now    func() time.Time

	mu      sync.Mutex
	buffer  []SecurityEvent
	history []SecurityEvent

	stop    chan struct{}
	stopped chan struct{}
	started bool
}

// NewLedger creates a ledger flushing to sink.
func NewLedger(sink Sink, logger *logging.Logger, opts Options) *Ledger {
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 30 * time.Second
	}
	if opts.MaxBufferSize <= 0 {
		opts.MaxBufferSize = 1000
	}
	if opts.MinLevel == "" {
		opts.MinLevel = models.SeverityInfo
	}
	return &Ledger{
		opts:    opts,
		sink:    sink,
		logger:  logger.With(logging.Component("audit")),
		now:     time.Now,
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Start begins the periodic flush loop. Call in a goroutine.
func (l *Ledger) Start(ctx context.Context) {
	l.mu.Lock()
	l.started = true
	l.mu.Unlock()
	defer close(l.stopped)

	ticker := time.NewTicker(l.opts.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.Flush(ctx, "timer")
		case <-l.stop:
			// Final flush on shutdown.
			l.Flush(context.Background(), "shutdown")
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop signals the flush loop to stop and waits for it to finish. Safe to
// call more than once; only the first call after Start closes the loop.
func (l *Ledger) Stop() {
	l.mu.Lock()
	started := l.started
	l.started = false
	l.mu.Unlock()
	if !started {
		return
	}
	close(l.stop)
	<-l.stopped
}

// LogSecurityEvent classifies, sanitizes, risk-scores, and buffers one
// event. Events of severity error or critical trigger an immediate flush
// before the call returns so they cannot be lost to a crash ahead of the
// next scheduled flush.
func (l *Ledger) LogSecurityEvent(ctx context.Context, t EventType, category Category, description string, sctx models.SecurityContext, metadata map[string]any) *SecurityEvent {
	severity := SeverityFor(t)
	if !severity.AtLeast(l.opts.MinLevel) {
		return nil
	}

	id, err := uuid.NewV7()
	if err != nil {
		// uuid generation failing is effectively impossible; fall back
		// to the random-based variant rather than dropping the event.
		id = uuid.New()
	}

	event := SecurityEvent{
		ID:          id.String(),
		Type:        t,
		Category:    category,
		Severity:    severity,
		Description: description,
		Context:     sctx,
		Metadata:    sanitizeMetadata(metadata, l.opts.LogSensitiveData),
		RiskScore:   computeRiskScore(t, category, metadata),
		CreatedAt:   l.now(),
	}

	l.mu.Lock()
	l.buffer = append(l.buffer, event)
	l.appendHistoryLocked(event)
	metrics.AuditBufferDepth.Set(float64(len(l.buffer)))
	l.mu.Unlock()

	if severity == models.SeverityError || severity == models.SeverityCritical {
		l.Flush(ctx, "high_severity")
	}

	return &event
}

// Flush drains the buffer to the sink. On failure, events are requeued up
// to the configured maximum buffer size: the oldest events are preserved
// and the newest beyond the bound are dropped, trading durability for
// bounded memory on a client device.
func (l *Ledger) Flush(ctx context.Context, trigger string) {
	l.mu.Lock()
	if len(l.buffer) == 0 {
		l.mu.Unlock()
		return
	}
	batch := l.buffer
	l.buffer = nil
	metrics.AuditBufferDepth.Set(0)
	l.mu.Unlock()

	if err := l.sink.Append(ctx, batch); err != nil {
		l.logger.ErrorContext(ctx, "audit flush failed, requeueing",
			"trigger", trigger, "events", len(batch), logging.Error(err))
		metrics.AuditFlushesTotal.WithLabelValues(trigger, "error").Inc()

		l.mu.Lock()
		requeued := append(batch, l.buffer...)
		if len(requeued) > l.opts.MaxBufferSize {
			dropped := len(requeued) - l.opts.MaxBufferSize
			requeued = requeued[:l.opts.MaxBufferSize]
			metrics.AuditEventsDropped.Add(float64(dropped))
			l.logger.WarnContext(ctx, "audit buffer cap exceeded, dropping newest events",
				"dropped", dropped)
		}
		l.buffer = requeued
		metrics.AuditBufferDepth.Set(float64(len(l.buffer)))
		l.mu.Unlock()
		return
	}

	metrics.AuditFlushesTotal.WithLabelValues(trigger, "ok").Inc()
}

// BufferLen returns the current number of unflushed events.
func (l *Ledger) BufferLen() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buffer)
}

// Events returns the retained events with CreatedAt in [from, to).
func (l *Ledger) Events(from, to time.Time) []SecurityEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []SecurityEvent
	for _, ev := range l.history {
		if !ev.CreatedAt.Before(from) && ev.CreatedAt.Before(to) {
			out = append(out, ev)
		}
	}
	return out
}

// appendHistoryLocked retains the event for reporting, evicting the
// oldest beyond the history cap. Caller holds l.mu.
func (l *Ledger) appendHistoryLocked(event SecurityEvent) {
	l.history = append(l.history, event)
	if len(l.history) > historyCap {
		l.history = l.history[len(l.history)-historyCap:]
	}
}
