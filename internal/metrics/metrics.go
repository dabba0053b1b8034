// Package metrics exposes engine activity as Prometheus metrics.
package metrics

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/nianio/internal/engine"
)

// Metrics holds the collectors fed by engine hooks.
type Metrics struct {
	registry *prometheus.Registry

	commands   *prometheus.CounterVec
	steps      *prometheus.CounterVec
	stepTime   prometheus.Histogram
	effects    *prometheus.CounterVec
	effectTime *prometheus.HistogramVec
	backlog    prometheus.Gauge
	faults     *prometheus.CounterVec
}

// New creates the collectors and registers them on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nianio_commands_enqueued_total",
			Help: "Commands accepted into the backlog, by originating worker.",
		}, []string{"worker"}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nianio_steps_total",
			Help: "Commands applied by the transition function, by originating worker.",
		}, []string{"worker"}),
		stepTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "nianio_step_duration_seconds",
			Help:    "Time to apply one command and check its results.",
			Buckets: prometheus.ExponentialBuckets(0.00005, 4, 8),
		}),
		effects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nianio_effects_dispatched_total",
			Help: "Effect commands handed to workers, by destination worker.",
		}, []string{"worker"}),
		effectTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nianio_effect_duration_seconds",
			Help:    "Time spent in effect handlers.",
			Buckets: prometheus.ExponentialBuckets(0.00005, 4, 8),
		}, []string{"worker"}),
		backlog: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nianio_backlog_commands",
			Help: "Backlog length after the last enqueue.",
		}),
		faults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nianio_faults_total",
			Help: "Fatal engine errors, by code.",
		}, []string{"code"}),
	}
	m.registry.MustRegister(
		m.commands, m.steps, m.stepTime, m.effects, m.effectTime, m.backlog, m.faults,
	)
	return m
}

// Registry returns the registry holding the engine collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Hooks returns the engine hooks that feed the collectors.
func (m *Metrics) Hooks() engine.Hooks {
	return engine.Hooks{
		OnEnqueue: func(e *engine.EnqueueEvent) {
			m.commands.WithLabelValues(e.Worker).Inc()
			m.backlog.Set(float64(e.Backlog))
		},
		OnStep: func(e *engine.StepEvent) {
			m.steps.WithLabelValues(e.Worker).Inc()
			m.stepTime.Observe(e.Duration.Seconds())
		},
		OnDispatch: func(e *engine.DispatchEvent) {
			m.effects.WithLabelValues(e.Worker).Inc()
			m.effectTime.WithLabelValues(e.Worker).Observe(e.Duration.Seconds())
		},
		OnFatal: func(e *engine.FatalEvent) {
			code := string(engine.CodeOf(e.Err))
			if code == "" {
				code = "UNKNOWN"
			}
			m.faults.WithLabelValues(code).Inc()
		},
	}
}

// Handler serves /metrics for the engine collectors plus the Go runtime
// and process collectors.
func (m *Metrics) Handler() http.Handler {
	gatherers := prometheus.Gatherers{m.registry, prometheus.DefaultGatherer}
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(gatherers, promhttp.HandlerOpts{}))
	return r
}

// Register adds extra collectors to the registry. A collector that is
// already registered is not an error.
func (m *Metrics) Register(cs ...prometheus.Collector) error {
	for _, c := range cs {
		if err := m.registry.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return err
			}
		}
	}
	return nil
}
