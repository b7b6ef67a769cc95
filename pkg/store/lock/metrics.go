package lock

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ============================================================================
// Prometheus Metrics for Table Locks
// ============================================================================

// Label constants for metrics.
const (
	LabelScope  = "scope"
	LabelType   = "type"
	LabelStatus = "status"
)

// Scope constants.
const (
	ScopeFile   = "file"
	ScopeRecord = "record"
)

// Status constants for lock operations.
const (
	StatusGranted = "granted"
	StatusDenied  = "denied"
	StatusAborted = "aborted"
)

// Metrics provides Prometheus metrics for lock tracking.
type Metrics struct {
	lockAcquireTotal *prometheus.CounterVec
	lockReleaseTotal *prometheus.CounterVec

	lockActiveGauge  *prometheus.GaugeVec
	lockBlockedGauge prometheus.Gauge

	lockBlockingDuration *prometheus.HistogramVec
	lockHoldDuration     *prometheus.HistogramVec

	registered bool
}

// NewMetrics creates and registers lock metrics.
// If registry is nil, metrics will be created but not registered (useful for testing).
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		lockAcquireTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "bankd",
				Subsystem: "locks",
				Name:      "acquire_total",
				Help:      "Total number of lock acquire attempts",
			},
			[]string{LabelScope, LabelType, LabelStatus},
		),

		lockReleaseTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "bankd",
				Subsystem: "locks",
				Name:      "release_total",
				Help:      "Total number of lock releases",
			},
			[]string{LabelScope},
		),

		lockActiveGauge: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "bankd",
				Subsystem: "locks",
				Name:      "active",
				Help:      "Number of currently held locks",
			},
			[]string{LabelType},
		),

		lockBlockedGauge: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "bankd",
				Subsystem: "locks",
				Name:      "blocked",
				Help:      "Number of lock requests waiting on a conflict",
			},
		),

		lockBlockingDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "bankd",
				Subsystem: "locks",
				Name:      "blocking_duration_seconds",
				Help:      "Time spent waiting for a lock",
				Buckets:   []float64{0.0001, 0.001, 0.01, 0.1, 0.5, 1, 5, 10},
			},
			[]string{LabelScope},
		),

		lockHoldDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "bankd",
				Subsystem: "locks",
				Name:      "hold_duration_seconds",
				Help:      "Time a lock was held before release",
				Buckets:   []float64{0.0001, 0.001, 0.01, 0.1, 1, 5},
			},
			[]string{LabelType},
		),
	}

	if registry != nil {
		registry.MustRegister(
			m.lockAcquireTotal,
			m.lockReleaseTotal,
			m.lockActiveGauge,
			m.lockBlockedGauge,
			m.lockBlockingDuration,
			m.lockHoldDuration,
		)
		m.registered = true
	}

	return m
}

func typeLabel(exclusive bool) string {
	if exclusive {
		return "exclusive"
	}
	return "shared"
}

// ObserveLockAcquire records a lock acquire attempt.
func (m *Metrics) ObserveLockAcquire(scope string, exclusive bool, status string) {
	if m == nil {
		return
	}
	m.lockAcquireTotal.WithLabelValues(scope, typeLabel(exclusive), status).Inc()
	if status == StatusGranted {
		m.lockActiveGauge.WithLabelValues(typeLabel(exclusive)).Inc()
	}
}

// ObserveLockRelease records a lock release and how long it was held.
func (m *Metrics) ObserveLockRelease(scope string, exclusive bool, held time.Duration) {
	if m == nil {
		return
	}
	m.lockReleaseTotal.WithLabelValues(scope).Inc()
	m.lockActiveGauge.WithLabelValues(typeLabel(exclusive)).Dec()
	m.lockHoldDuration.WithLabelValues(typeLabel(exclusive)).Observe(held.Seconds())
}

// SetBlockedLocks sets the number of blocked lock requests.
func (m *Metrics) SetBlockedLocks(count int) {
	if m == nil {
		return
	}
	m.lockBlockedGauge.Set(float64(count))
}

// ObserveBlockingDuration records time spent waiting for a lock.
func (m *Metrics) ObserveBlockingDuration(scope string, duration time.Duration) {
	if m == nil {
		return
	}
	m.lockBlockingDuration.WithLabelValues(scope).Observe(duration.Seconds())
}
