package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/d3i-infra/port-google-home/internal/core/domain"
)

// FlowMetrics implements ports.FlowObserver.
type FlowMetrics struct {
	service  string
	registry *prometheus.Registry

	flowsStarted  *prometheus.CounterVec
	flowsFinished *prometheus.CounterVec
	validations   *prometheus.CounterVec
	extracted     *prometheus.HistogramVec
	donations     *prometheus.CounterVec
	breakerState  *prometheus.GaugeVec
}

func newFlowMetrics(registry *prometheus.Registry, service string) *FlowMetrics {
	m := &FlowMetrics{
		service:  service,
		registry: registry,
		flowsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "flow",
				Name:      "started_total",
				Help:      "Donation flows started.",
			},
			[]string{"service"},
		),
		flowsFinished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "flow",
				Name:      "finished_total",
				Help:      "Donation flows finished by outcome.",
			},
			[]string{"service", "outcome"},
		),
		validations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "flow",
				Name:      "validations_total",
				Help:      "Archive validations by status.",
			},
			[]string{"service", "status"},
		),
		extracted: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "flow",
				Name:      "extracted_records",
				Help:      "Records extracted per recognized archive.",
				Buckets:   []float64{0, 1, 10, 50, 100, 500, 1000, 5000, 10000},
			},
			[]string{"service", "format"},
		),
		donations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "flow",
				Name:      "donations_total",
				Help:      "Donation events accepted by the sink, by kind.",
			},
			[]string{"service", "kind"},
		),
		breakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "sink",
				Name:      "circuit_open",
				Help:      "1 while the circuit breaker for an operation is open.",
			},
			[]string{"service", "operation"},
		),
	}
	registry.MustRegister(m.flowsStarted, m.flowsFinished, m.validations, m.extracted, m.donations, m.breakerState)
	return m
}

func (m *FlowMetrics) ObserveFlowStarted() {
	m.flowsStarted.WithLabelValues(m.service).Inc()
}

func (m *FlowMetrics) ObserveValidation(status domain.ValidationStatus) {
	m.validations.WithLabelValues(m.service, status.String()).Inc()
}

func (m *FlowMetrics) ObserveExtraction(format domain.Format, records int) {
	m.extracted.WithLabelValues(m.service, string(format)).Observe(float64(records))
}

func (m *FlowMetrics) ObserveDonation(kind string) {
	if kind == "" {
		kind = "unknown"
	}
	m.donations.WithLabelValues(m.service, kind).Inc()
}

func (m *FlowMetrics) ObserveFlowFinished(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.flowsFinished.WithLabelValues(m.service, outcome).Inc()
}

// ObserveBreakerState matches resilience.Config.OnStateChange.
func (m *FlowMetrics) ObserveBreakerState(operation, state string) {
	value := 0.0
	if state == "open" {
		value = 1
	}
	m.breakerState.WithLabelValues(m.service, operation).Set(value)
}

// TrackActiveSessions exports the live session count reported by count.
func (m *FlowMetrics) TrackActiveSessions(count func() int) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "flow",
			Name:        "active_sessions",
			Help:        "Donation sessions currently awaiting a response.",
			ConstLabels: prometheus.Labels{"service": m.service},
		},
		func() float64 { return float64(count()) },
	))
}
