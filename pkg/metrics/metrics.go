package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Claim Engine metrics
	ClaimsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coordkernel_claims_total",
			Help: "Total number of claim() operations by path and outcome",
		},
		[]string{"path", "outcome"},
	)

	ClaimLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coordkernel_claim_latency_seconds",
			Help:    "Claim latency by path (fast vs slow)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.03, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"path"},
	)

	ProgressTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coordkernel_progress_total",
			Help: "Total number of progress() operations by outcome",
		},
		[]string{"outcome"},
	)

	CompleteTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coordkernel_complete_total",
			Help: "Total number of complete() operations by result",
		},
		[]string{"result"},
	)

	ActiveClaimsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "coordkernel_active_claims",
			Help: "Current number of non-terminal claims across the canonical and fast-append stores",
		},
	)

	// Agent Registry metrics
	AgentsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "coordkernel_agents_total",
			Help: "Total number of registered agents by status",
		},
		[]string{"status"},
	)

	// Lock Manager metrics
	LockWaitDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coordkernel_lock_wait_seconds",
			Help:    "Time spent waiting to acquire an advisory lock",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"resource"},
	)

	LockTimeoutsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coordkernel_lock_timeouts_total",
			Help: "Total number of lock acquisitions that exceeded their timeout",
		},
		[]string{"resource"},
	)

	// Telemetry Emitter metrics
	SpansEmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coordkernel_spans_emitted_total",
			Help: "Total number of telemetry spans written by operation name",
		},
		[]string{"operation_name", "status"},
	)

	// Retention Engine metrics
	RetentionRunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coordkernel_retention_run_duration_seconds",
			Help:    "Time taken for one retention operation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	RetentionRecordsAffected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coordkernel_retention_records_affected_total",
			Help: "Total number of records pruned, archived, or compacted away",
		},
		[]string{"operation"},
	)

	// Health Assessor metrics
	HealthScoreGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "coordkernel_health_score",
			Help: "Most recent health_score in [0,100] computed by the Health Assessor",
		},
	)
)

func init() {
	prometheus.MustRegister(ClaimsTotal)
	prometheus.MustRegister(ClaimLatency)
	prometheus.MustRegister(ProgressTotal)
	prometheus.MustRegister(CompleteTotal)
	prometheus.MustRegister(ActiveClaimsGauge)
	prometheus.MustRegister(AgentsTotal)
	prometheus.MustRegister(LockWaitDuration)
	prometheus.MustRegister(LockTimeoutsTotal)
	prometheus.MustRegister(SpansEmittedTotal)
	prometheus.MustRegister(RetentionRunDuration)
	prometheus.MustRegister(RetentionRecordsAffected)
	prometheus.MustRegister(HealthScoreGauge)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
