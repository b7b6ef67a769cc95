package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/bankd/pkg/banking"
	"github.com/marmos91/bankd/pkg/metrics"
	"github.com/marmos91/bankd/pkg/models"
)

// bankingMetrics is the Prometheus implementation of banking.Metrics.
type bankingMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	volumeTotal       *prometheus.CounterVec
}

// NewBankingMetrics creates business operation metrics.
//
// Returns nil if metrics are not enabled.
func NewBankingMetrics() banking.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}
	reg := metrics.GetRegistry()

	return &bankingMetrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "bankd_operations_total",
				Help: "Banking operations by operation and outcome (ok, rejected, error)",
			},
			[]string{"operation", "outcome"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bankd_operation_duration_milliseconds",
				Help:    "Duration of banking operations in milliseconds",
				Buckets: []float64{0.5, 1, 5, 10, 50, 100, 500, 1000},
			},
			[]string{"operation"},
		),
		volumeTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "bankd_money_moved_paise_total",
				Help: "Committed money movements in paise",
			},
			[]string{"operation"},
		),
	}
}

func (m *bankingMetrics) ObserveOperation(operation string, duration time.Duration, outcome string) {
	m.operationsTotal.WithLabelValues(operation, outcome).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(float64(duration.Microseconds()) / 1000)
}

func (m *bankingMetrics) AddVolume(operation string, amount models.Money) {
	if amount <= 0 {
		return
	}
	m.volumeTotal.WithLabelValues(operation).Add(float64(amount))
}
