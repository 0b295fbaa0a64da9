package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Operation dispatch metrics
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_operations_total",
			Help: "Total number of security operations executed",
		},
		[]string{"operation", "status"},
	)

	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sentinel_operation_duration_seconds",
			Help:    "Duration of security operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Policy metrics
	PolicyChecksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_policy_checks_total",
			Help: "Total number of full policy check passes",
		},
	)

	PolicyViolationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_policy_violations_total",
			Help: "Total number of policy violations detected",
		},
		[]string{"policy_id", "severity"},
	)

	EnforcementActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_enforcement_actions_total",
			Help: "Total number of enforcement actions executed",
		},
		[]string{"action", "status"},
	)

	// Threat metrics
	ThreatAnalysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_threat_analyses_total",
			Help: "Total number of threat analyses performed",
		},
		[]string{"risk_level"},
	)

	MitigationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_mitigations_total",
			Help: "Total number of mitigation actions executed",
		},
		[]string{"action", "status"},
	)

	AnomaliesDetected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_behavioral_anomalies_total",
			Help: "Total number of behavioral anomalies detected",
		},
	)

	// Trust metrics
	TrustAssessmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_trust_assessments_total",
			Help: "Total number of device trust assessments",
		},
		[]string{"level"},
	)

	// Audit buffer metrics
	AuditBufferDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentinel_audit_buffer_depth",
			Help: "Current depth of the audit event buffer",
		},
	)

	AuditFlushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_audit_flushes_total",
			Help: "Total number of audit buffer flushes",
		},
		[]string{"trigger", "status"},
	)

	AuditEventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_audit_events_dropped_total",
			Help: "Total number of audit events dropped at the buffer cap",
		},
	)
)
