package telemetry

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/vango-dev/bindery/pkg/bus"
	"github.com/vango-dev/bindery/pkg/model"
)

// MetricsConfig configures the Prometheus collectors.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "bindery").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for firing duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus collectors.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "bindery",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics records bus activity. It implements bus.Observer.
type Metrics struct {
	firesTotal      *prometheus.CounterVec
	fireErrors      *prometheus.CounterVec
	invocations     *prometheus.CounterVec
	handlerFailures *prometheus.CounterVec
	fireDuration    *prometheus.HistogramVec
	firingDepth     prometheus.Gauge
	pendingRemovals prometheus.Gauge
}

// NewMetrics registers the collectors and returns the observer. Registering
// twice on the same registry panics, as with promauto.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		firesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "fires_total",
			Help:        "Total number of event firings",
			ConstLabels: config.ConstLabels,
		}, []string{"kind", "status"}),

		fireErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "fire_errors_total",
			Help:        "Total number of firings that returned an error",
			ConstLabels: config.ConstLabels,
		}, []string{"kind", "error_type"}),

		invocations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "handler_invocations_total",
			Help:        "Total number of handler invocations",
			ConstLabels: config.ConstLabels,
		}, []string{"kind"}),

		handlerFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "handler_failures_total",
			Help:        "Total number of handlers that returned an error or panicked",
			ConstLabels: config.ConstLabels,
		}, []string{"kind", "type"}),

		fireDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "fire_duration_seconds",
			Help:        "Firing duration in seconds, nested firings included",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"kind"}),

		firingDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "firing_depth",
			Help:        "Current depth of nested firings",
			ConstLabels: config.ConstLabels,
		}),

		pendingRemovals: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "pending_removals",
			Help:        "Handler lists holding removed handlers awaiting compaction",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// BeginFire implements bus.Observer.
func (m *Metrics) BeginFire(ev bus.Event, _ any, depth int) func(bus.FireStats, error) {
	kind := ev.Kind().String()
	start := time.Now()
	m.firingDepth.Set(float64(depth))

	return func(stats bus.FireStats, err error) {
		m.fireDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
		m.invocations.WithLabelValues(kind).Add(float64(stats.Invoked))
		if n := stats.Failures - stats.Panics; n > 0 {
			m.handlerFailures.WithLabelValues(kind, "error").Add(float64(n))
		}
		if stats.Panics > 0 {
			m.handlerFailures.WithLabelValues(kind, "panic").Add(float64(stats.Panics))
		}

		status := "success"
		if err != nil {
			status = "error"
			m.fireErrors.WithLabelValues(kind, categorizeError(err)).Inc()
		}
		m.firesTotal.WithLabelValues(kind, status).Inc()
		m.firingDepth.Set(float64(depth - 1))
		m.pendingRemovals.Set(float64(stats.Pending))
	}
}

// categorizeError returns a low-cardinality label for err.
func categorizeError(err error) string {
	var hp *bus.HandlerPanic
	var re *model.RuleError
	switch {
	case errors.Is(err, model.ErrCycleLimit):
		return "cycle_limit"
	case errors.As(err, &re):
		return "rule_panic"
	case errors.As(err, &hp):
		return "panic"
	case errors.Is(err, bus.ErrInvalidArgument):
		return "invalid_argument"
	default:
		return "handler"
	}
}
