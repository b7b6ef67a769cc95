package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/bankd/pkg/adapter"
	"github.com/marmos91/bankd/pkg/metrics"
)

// connectionMetrics is the Prometheus implementation of
// adapter.MetricsRecorder.
type connectionMetrics struct {
	eventsTotal *prometheus.CounterVec
	active      prometheus.Gauge
}

// NewConnectionMetrics creates connection lifecycle metrics for the adapter
// named protocol.
//
// Returns nil if metrics are not enabled.
func NewConnectionMetrics(protocol string) adapter.MetricsRecorder {
	if !metrics.IsEnabled() {
		return nil
	}
	reg := prometheus.WrapRegistererWith(prometheus.Labels{"protocol": protocol}, metrics.GetRegistry())

	return &connectionMetrics{
		eventsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "bankd_connections_total",
				Help: "Connection lifecycle events (accepted, closed, force_closed)",
			},
			[]string{"event"},
		),
		active: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "bankd_connections_active",
				Help: "Number of connections being served",
			},
		),
	}
}

func (m *connectionMetrics) RecordConnectionAccepted() {
	m.eventsTotal.WithLabelValues("accepted").Inc()
}

func (m *connectionMetrics) RecordConnectionClosed() {
	m.eventsTotal.WithLabelValues("closed").Inc()
}

func (m *connectionMetrics) RecordConnectionForceClosed() {
	m.eventsTotal.WithLabelValues("force_closed").Inc()
}

func (m *connectionMetrics) SetActiveConnections(count int32) {
	m.active.Set(float64(count))
}
