package metric

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsRegistry(t *testing.T) {
	registry := NewMetricsRegistry()
	require.NotNil(t, registry)
	require.NotNil(t, registry.PrometheusRegistry())
	require.NotNil(t, registry.CoreMetrics())
}

func TestRegisterCounter(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_counter_total",
		Help: "test counter",
	})

	err := registry.RegisterCounter("store", "test_counter", counter)
	require.NoError(t, err)

	// Second registration under the same key fails
	err = registry.RegisterCounter("store", "test_counter", counter)
	assert.Error(t, err)
}

func TestRegisterVecs(t *testing.T) {
	registry := NewMetricsRegistry()

	cv := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "test_ops_total", Help: "ops",
	}, []string{"operation"})
	require.NoError(t, registry.RegisterCounterVec("store", "ops", cv))

	gv := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "test_state", Help: "state",
	}, []string{"bucket"})
	require.NoError(t, registry.RegisterGaugeVec("store", "state", gv))

	hv := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "test_duration_seconds", Help: "durations",
	}, []string{"operation"})
	require.NoError(t, registry.RegisterHistogramVec("store", "durations", hv))
}

func TestUnregister(t *testing.T) {
	registry := NewMetricsRegistry()

	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "test_gauge", Help: "test gauge",
	})
	require.NoError(t, registry.RegisterGauge("store", "test_gauge", gauge))

	assert.True(t, registry.Unregister("store", "test_gauge"))
	assert.False(t, registry.Unregister("store", "test_gauge"))

	// Can re-register after unregistering
	assert.NoError(t, registry.RegisterGauge("store", "test_gauge", gauge))
}

func TestDifferentComponentsSameMetricName(t *testing.T) {
	registry := NewMetricsRegistry()

	c1 := prometheus.NewCounter(prometheus.CounterOpts{Name: "a_ops_total", Help: "ops"})
	c2 := prometheus.NewCounter(prometheus.CounterOpts{Name: "b_ops_total", Help: "ops"})

	assert.NoError(t, registry.RegisterCounter("bucket_a", "ops", c1))
	assert.NoError(t, registry.RegisterCounter("bucket_b", "ops", c2))
}
