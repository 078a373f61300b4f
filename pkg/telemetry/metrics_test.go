package telemetry

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vango-dev/bindery/pkg/bus"
	"github.com/vango-dev/bindery/pkg/model"
)

type named string

func (n named) Name() string { return string(n) }

func metricCounterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func metricGaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, g.Write(&m))
	return m.GetGauge().GetValue()
}

func metricHistogramCount(t *testing.T, o prometheus.Observer) uint64 {
	t.Helper()
	h, ok := o.(prometheus.Metric)
	require.True(t, ok, "observer is not a metric")
	var m dto.Metric
	require.NoError(t, h.Write(&m))
	return m.GetHistogram().GetSampleCount()
}

func newObservedBus(opts ...MetricsOption) (*bus.Bus, *Metrics) {
	opts = append([]MetricsOption{WithRegistry(prometheus.NewRegistry())}, opts...)
	m := NewMetrics(opts...)
	b := bus.New(
		bus.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		bus.WithObserver(m),
	)
	return b, m
}

func TestMetricsCountsFirings(t *testing.T) {
	b, m := newObservedBus()
	_, err := b.AddHandler(bus.KindNotice, bus.HandlerFunc(func(bus.Event) error { return nil }))
	require.NoError(t, err)
	_, err = b.AddHandler(bus.KindNotice, bus.HandlerFunc(func(bus.Event) error { return nil }))
	require.NoError(t, err)

	require.NoError(t, b.Fire(&bus.Notice{Topic: "a"}))
	require.NoError(t, b.Fire(&bus.Notice{Topic: "b"}))

	assert.Equal(t, 2.0, metricCounterValue(t, m.firesTotal.WithLabelValues("notice", "success")))
	assert.Equal(t, 4.0, metricCounterValue(t, m.invocations.WithLabelValues("notice")))
	assert.Equal(t, uint64(2), metricHistogramCount(t, m.fireDuration.WithLabelValues("notice")))
	assert.Equal(t, 0.0, metricGaugeValue(t, m.firingDepth))
}

func TestMetricsCountsFailures(t *testing.T) {
	b, m := newObservedBus()
	_, _ = b.AddHandler(bus.KindNotice, bus.HandlerFunc(func(bus.Event) error { return errors.New("nope") }))
	_, _ = b.AddHandler(bus.KindNotice, bus.HandlerFunc(func(bus.Event) error { panic("boom") }))
	_, _ = b.AddHandler(bus.KindNotice, bus.HandlerFunc(func(bus.Event) error { return nil }))

	err := b.Fire(&bus.Notice{})
	require.Error(t, err)

	assert.Equal(t, 1.0, metricCounterValue(t, m.firesTotal.WithLabelValues("notice", "error")))
	assert.Equal(t, 1.0, metricCounterValue(t, m.handlerFailures.WithLabelValues("notice", "error")))
	assert.Equal(t, 1.0, metricCounterValue(t, m.handlerFailures.WithLabelValues("notice", "panic")))
	assert.Equal(t, 3.0, metricCounterValue(t, m.invocations.WithLabelValues("notice")))
	assert.Equal(t, 1.0, metricCounterValue(t, m.fireErrors.WithLabelValues("notice", "panic")))
}

func TestMetricsTracksDepthAndPending(t *testing.T) {
	b, m := newObservedBus()
	var depthSeen float64
	var reg *bus.Registration
	reg, _ = b.AddHandler(bus.KindValueChanged, bus.HandlerFunc(func(bus.Event) error {
		depthSeen = metricGaugeValue(t, m.firingDepth)
		reg.Remove()
		return nil
	}))
	_, _ = b.AddHandler(bus.KindNotice, bus.HandlerFunc(func(bus.Event) error {
		return b.Fire(&bus.ValueChanged{Property: named("p")})
	}))

	require.NoError(t, b.Fire(&bus.Notice{}))

	assert.Equal(t, 2.0, depthSeen)
	assert.Equal(t, 0.0, metricGaugeValue(t, m.firingDepth))
	// The outer firing finishes before compaction.
	assert.Equal(t, 1.0, metricGaugeValue(t, m.pendingRemovals))
	assert.Equal(t, 1.0, metricCounterValue(t, m.firesTotal.WithLabelValues("value_changed", "success")))
}

func TestMetricsNamespaceAndLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	b := bus.New(bus.WithObserver(NewMetrics(
		WithRegistry(reg),
		WithNamespace("app"),
		WithSubsystem("forms"),
		WithConstLabels(prometheus.Labels{"env": "test"}),
		WithBuckets([]float64{0.001, 0.01}),
	)))
	require.NoError(t, b.Fire(&bus.Notice{}))

	families, err := reg.Gather()
	require.NoError(t, err)

	names := map[string]*dto.MetricFamily{}
	for _, f := range families {
		names[f.GetName()] = f
	}
	require.Contains(t, names, "app_forms_fires_total")
	require.Contains(t, names, "app_forms_fire_duration_seconds")

	metric := names["app_forms_fires_total"].GetMetric()[0]
	labels := map[string]string{}
	for _, l := range metric.GetLabel() {
		labels[l.GetName()] = l.GetValue()
	}
	assert.Equal(t, "test", labels["env"])
	assert.Len(t, names["app_forms_fire_duration_seconds"].GetMetric()[0].GetHistogram().GetBucket(), 2)
}

func TestMetricsDuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(WithRegistry(reg))
	assert.Panics(t, func() { NewMetrics(WithRegistry(reg)) })
}

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{model.ErrCycleLimit, "cycle_limit"},
		{&bus.HandlerFailure{Kind: bus.KindNotice, Causes: []error{&bus.HandlerPanic{Value: "x"}}}, "panic"},
		{&bus.HandlerFailure{Kind: bus.KindNotice, Causes: []error{&model.RuleError{Property: "p"}}}, "rule_panic"},
		{bus.ErrInvalidArgument, "invalid_argument"},
		{errors.New("other"), "handler"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, categorizeError(tt.err), "%v", tt.err)
	}
}
