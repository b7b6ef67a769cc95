// Package prometheus provides Prometheus-backed implementations of the
// metrics interfaces declared by the session, banking and adapter packages.
//
// Every constructor returns nil when metrics are disabled (InitRegistry not
// called); consumers treat a nil recorder as "no metrics".
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/bankd/pkg/metrics"
	"github.com/marmos91/bankd/pkg/session"
)

// sessionMetrics is the Prometheus implementation of session.Metrics.
type sessionMetrics struct {
	acquireTotal   *prometheus.CounterVec
	activeSessions prometheus.Gauge
}

// NewSessionMetrics creates session registry metrics.
//
// Returns nil if metrics are not enabled.
func NewSessionMetrics() session.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}
	reg := metrics.GetRegistry()

	return &sessionMetrics{
		acquireTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "bankd_session_acquire_total",
				Help: "Session acquire attempts by result (granted, already_active, full)",
			},
			[]string{"result"},
		),
		activeSessions: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "bankd_sessions_active",
				Help: "Number of logged-in users",
			},
		),
	}
}

func (m *sessionMetrics) RecordAcquire(result string) {
	m.acquireTotal.WithLabelValues(result).Inc()
}

func (m *sessionMetrics) SetActiveSessions(count int) {
	m.activeSessions.Set(float64(count))
}
