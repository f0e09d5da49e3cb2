package ledger

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	apperrors "github.com/Proton-105/ledger-bot/internal/errors"
)

var (
	ledgerRequestsTotal   *prometheus.CounterVec
	ledgerErrorsTotal     *prometheus.CounterVec
	ledgerRequestDuration *prometheus.HistogramVec
)

func init() {
	ledgerRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_requests_total",
			Help: "Total number of ledger backend requests by operation.",
		},
		[]string{"operation"},
	)
	ledgerErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_errors_total",
			Help: "Total number of failed ledger backend requests by operation and reason.",
		},
		[]string{"operation", "reason"},
	)
	ledgerRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledger_request_duration_seconds",
			Help:    "Ledger backend latency distributions.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"operation"},
	)

	prometheus.MustRegister(ledgerRequestsTotal, ledgerErrorsTotal, ledgerRequestDuration)
}

// MetricsBackend wraps a Backend to collect Prometheus metrics.
type MetricsBackend struct {
	next Backend
}

// NewMetricsBackend creates an instrumented Backend.
func NewMetricsBackend(next Backend) *MetricsBackend {
	return &MetricsBackend{next: next}
}

// Submit instruments Backend.Submit.
func (m *MetricsBackend) Submit(ctx context.Context, record Record) error {
	return m.observe("submit", func() error {
		return m.next.Submit(ctx, record)
	})
}

// Total instruments Backend.Total.
func (m *MetricsBackend) Total(ctx context.Context, periodKey string) (float64, error) {
	var total float64
	err := m.observe("total", func() error {
		var err error
		total, err = m.next.Total(ctx, periodKey)
		return err
	})
	return total, err
}

func (m *MetricsBackend) observe(operation string, fn func() error) error {
	timer := prometheus.NewTimer(ledgerRequestDuration.WithLabelValues(operation))
	err := fn()
	timer.ObserveDuration()
	ledgerRequestsTotal.WithLabelValues(operation).Inc()
	if err != nil {
		ledgerErrorsTotal.WithLabelValues(operation, errorReason(err)).Inc()
	}
	return err
}

func errorReason(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, ErrBackendStatus):
		return "status"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "transport"
	}
}
