package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Nzyazin/currency-tracker/internal/core/models"
)

// Metrics groups the tracker collectors.
type Metrics struct {
	// Rate refresh cycles by result (success/failure)
	RateRefreshTotal    *prometheus.CounterVec
	RateRefreshDuration prometheus.Histogram

	// Change events emitted by the monitor, by entity
	ChangeEventsTotal *prometheus.CounterVec

	// Rejected field writes, by operation and field
	ValidationErrorsTotal *prometheus.CounterVec

	registerer prometheus.Registerer
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RateRefreshTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rate_refresh_total",
				Help: "Rate refresh cycles by result",
			},
			[]string{"result"},
		),
		RateRefreshDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rate_refresh_duration_seconds",
				Help:    "Time spent fetching and applying the rate table",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
			},
		),
		ChangeEventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "change_events_total",
				Help: "Change notifications emitted per tracked entity",
			},
			[]string{"entity"},
		),
		ValidationErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "validation_errors_total",
				Help: "Rejected field writes by operation and field",
			},
			[]string{"operation", "field"},
		),
		registerer: reg,
	}
}

// TrackValues exposes the current values of a tracked entity as gauges,
// read on every scrape.
func (m *Metrics) TrackValues(entity string, snapshot func() models.Values) {
	factory := promauto.With(m.registerer)
	for _, d := range models.Denominations {
		d := d
		factory.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name:        "tracked_value",
				Help:        "Current value of a tracked entity per denomination",
				ConstLabels: prometheus.Labels{"entity": entity, "denomination": string(d)},
			},
			func() float64 {
				f, _ := snapshot().Get(d).Float64()
				return f
			},
		)
	}
}

func (m *Metrics) RefreshSucceeded() {
	m.RateRefreshTotal.WithLabelValues("success").Inc()
}

func (m *Metrics) RefreshFailed() {
	m.RateRefreshTotal.WithLabelValues("failure").Inc()
}

func (m *Metrics) ChangeObserved(entity string) {
	m.ChangeEventsTotal.WithLabelValues(entity).Inc()
}

func (m *Metrics) ValidationFailed(operation string, fields []string) {
	for _, f := range fields {
		m.ValidationErrorsTotal.WithLabelValues(operation, f).Inc()
	}
}
