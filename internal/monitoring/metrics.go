package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"barrobot/internal/hardware"
)

// Metrics holds the prometheus collectors of the rig on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	rotations      *prometheus.CounterVec
	slotsTravelled prometheus.Counter
	presses        *prometheus.CounterVec
	dispenses      *prometheus.CounterVec
	duration       prometheus.Histogram
	missing        *prometheus.CounterVec
	faults         *prometheus.CounterVec
}

// NewMetrics creates and registers every collector.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		rotations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "barrobot_turret_rotations_total",
				Help: "Turret rotations, real or simulated",
			},
			[]string{"mode"},
		),
		slotsTravelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "barrobot_turret_slots_travelled_total",
			Help: "Slots travelled by the turret in real mode",
		}),
		presses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "barrobot_actuator_presses_total",
				Help: "Actuator presses, real or simulated",
			},
			[]string{"mode"},
		),
		dispenses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "barrobot_dispenses_total",
				Help: "Finished dispenses by outcome",
			},
			[]string{"outcome"},
		),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "barrobot_dispense_duration_seconds",
			Help:    "Wall time of a dispense",
			Buckets: prometheus.LinearBuckets(0, 5, 12),
		}),
		missing: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "barrobot_missing_ingredient_total",
				Help: "Dispenses aborted for a missing ingredient",
			},
			[]string{"item"},
		),
		faults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "barrobot_hardware_faults_total",
				Help: "Hardware faults by failing operation",
			},
			[]string{"op"},
		),
	}

	for _, c := range []prometheus.Collector{
		m.rotations, m.slotsTravelled, m.presses, m.dispenses, m.duration, m.missing, m.faults,
	} {
		registry.MustRegister(c)
	}
	return m
}

func mode(simulated bool) string {
	if simulated {
		return "simulated"
	}
	return "real"
}

// ObserveAction is a hardware.WithObserver hook.
func (m *Metrics) ObserveAction(a hardware.Action) {
	switch a.Kind {
	case hardware.ActionRotate:
		m.rotations.WithLabelValues(mode(a.Simulated)).Inc()
		if !a.Simulated {
			m.slotsTravelled.Add(float64(a.Slots))
		}
	case hardware.ActionPress:
		m.presses.WithLabelValues(mode(a.Simulated)).Inc()
	}
}

// RecordDispense counts a finished dispense.
func (m *Metrics) RecordDispense(outcome string, d time.Duration) {
	m.dispenses.WithLabelValues(outcome).Inc()
	m.duration.Observe(d.Seconds())
}

func (m *Metrics) RecordMissing(item string) {
	m.missing.WithLabelValues(item).Inc()
}

func (m *Metrics) RecordFault(op string) {
	m.faults.WithLabelValues(op).Inc()
}

// Registry exposes the private registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
