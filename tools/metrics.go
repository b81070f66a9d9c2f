package tools

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label values of the engine metrics.
const (
	OpSign          = "sign"
	OpSignPrehashed = "sign_prehashed"
	OpVerify        = "verify"
	OpHash          = "hash"

	StatusSuccess = "success"
	StatusInvalid = "invalid" // verification ran and the signature did not match
	StatusError   = "error"
)

// Metrics counts and times engine operations. A nil *Metrics records nothing.
type Metrics struct {
	Operations *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
}

// NewMetrics creates the engine metrics and registers them in reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "eccbench",
				Name:      "operations_total",
				Help:      "Total number of engine operations by operation, provider, curve and status",
			},
			[]string{"operation", "provider", "curve", "status"},
		),
		Duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "eccbench",
				Name:      "operation_duration_seconds",
				Help:      "Duration of engine operations in seconds",
				Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05, .1, .5, 1},
			},
			[]string{"operation", "provider", "curve"},
		),
	}
}

func (m *Metrics) observe(op string, provider ProviderID, curve CurveID, start time.Time, status string) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(op, provider.String(), curve.String(), status).Inc()
	m.Duration.WithLabelValues(op, provider.String(), curve.String()).Observe(time.Since(start).Seconds())
}
