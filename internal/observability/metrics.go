package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the orchestration core.
type Metrics struct {
	ActiveSessions     prometheus.Gauge
	SessionEvents      *prometheus.CounterVec
	JobEvents          *prometheus.CounterVec
	RoutingDecisions   *prometheus.CounterVec
	SafetyFlags        *prometheus.CounterVec
	AuditWriteFailures *prometheus.CounterVec
	EscalationEvents   *prometheus.CounterVec
	JobsReclaimed      prometheus.Counter
	TurnStageLatency   *prometheus.HistogramVec
	DispatchLatency    prometheus.Histogram
	turnStageWindow    *turnStageWindow
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of active tutoring sessions.",
		}),
		SessionEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session lifecycle events by type.",
		}, []string{"event"}),
		JobEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_events_total",
			Help:      "Orchestration job lifecycle events by type.",
		}, []string{"event"}),
		RoutingDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routing_decisions_total",
			Help:      "Intent routing decisions by resolved subject.",
		}, []string{"subject"}),
		SafetyFlags: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "safety_flags_total",
			Help:      "Safety checker outcomes by flagged/clean.",
		}, []string{"flagged"}),
		AuditWriteFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_write_failures_total",
			Help:      "Best-effort audit writes that failed, by record kind.",
		}, []string{"kind"}),
		EscalationEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escalation_events_total",
			Help:      "Escalation bus events by type.",
		}, []string{"event"}),
		JobsReclaimed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_reclaimed_total",
			Help:      "Terminal jobs removed from the job store by TTL reclamation.",
		}),
		TurnStageLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_stage_latency_ms",
			Help:      "Pipeline stage latency in milliseconds.",
			Buckets:   []float64{20, 50, 100, 150, 250, 400, 700, 1200, 2000, 4000, 7000, 10000},
		}, []string{"stage"}),
		DispatchLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_latency_ms",
			Help:      "Latency of Orchestrator.Dispatch itself (should stay O(1)).",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50},
		}),
		turnStageWindow: newTurnStageWindow(256),
	}
}

func (m *Metrics) ObserveTurnStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	ms := float64(d.Milliseconds())
	m.TurnStageLatency.WithLabelValues(stage).Observe(ms)
	m.turnStageWindow.Observe(stage, ms)
}

func (m *Metrics) ObserveDispatchLatency(d time.Duration) {
	if m == nil || m.DispatchLatency == nil {
		return
	}
	m.DispatchLatency.Observe(float64(d.Microseconds()) / 1000.0)
}

func (m *Metrics) ObserveJobEvent(event string) {
	if m == nil || m.JobEvents == nil {
		return
	}
	m.JobEvents.WithLabelValues(event).Inc()
}

func (m *Metrics) ObserveRoutingDecision(subject string) {
	if m == nil || m.RoutingDecisions == nil {
		return
	}
	m.RoutingDecisions.WithLabelValues(subject).Inc()
}

func (m *Metrics) ObserveSafetyFlag(flagged bool) {
	if m == nil || m.SafetyFlags == nil {
		return
	}
	label := "clean"
	if flagged {
		label = "flagged"
	}
	m.SafetyFlags.WithLabelValues(label).Inc()
}

func (m *Metrics) ObserveAuditWriteFailure(kind string) {
	if m == nil || m.AuditWriteFailures == nil {
		return
	}
	m.AuditWriteFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveEscalationEvent(event string) {
	if m == nil || m.EscalationEvents == nil {
		return
	}
	m.EscalationEvents.WithLabelValues(event).Inc()
}

func (m *Metrics) ObserveJobsReclaimed(n int) {
	if m == nil || m.JobsReclaimed == nil || n <= 0 {
		return
	}
	m.JobsReclaimed.Add(float64(n))
}

func (m *Metrics) SnapshotTurnStages() TurnStageSnapshot {
	if m == nil || m.turnStageWindow == nil {
		return TurnStageSnapshot{}
	}
	return m.turnStageWindow.Snapshot()
}

func (m *Metrics) ResetTurnStages() {
	if m == nil || m.turnStageWindow == nil {
		return
	}
	m.turnStageWindow.Reset()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
