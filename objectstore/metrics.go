package objectstore

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/objectstream/metric"
)

// storeMetrics holds Prometheus metrics for object store operations.
type storeMetrics struct {
	// Operation counters
	readOps   *prometheus.CounterVec // By operation: get, get_info
	writeOps  *prometheus.CounterVec // By operation: put, update_meta, add_link
	deleteOps *prometheus.CounterVec
	watchOps  *prometheus.CounterVec

	// Operation latency
	readLatency  *prometheus.HistogramVec
	writeLatency *prometheus.HistogramVec

	// Error counters
	errors *prometheus.CounterVec // By operation

	// Data volume
	bytesWritten   *prometheus.CounterVec
	bytesRead      *prometheus.CounterVec
	chunksWritten  *prometheus.CounterVec
	chunksReceived *prometheus.CounterVec
}

// newStoreMetrics creates and registers object store metrics with the
// provided registry.
func newStoreMetrics(registry *metric.MetricsRegistry, bucket string) (*storeMetrics, error) {
	if registry == nil {
		return nil, nil // Metrics disabled
	}

	labels := prometheus.Labels{"bucket": bucket}
	latencyBuckets := []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0}

	m := &storeMetrics{
		readOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "objectstream",
			Subsystem:   "objectstore",
			Name:        "read_operations_total",
			Help:        "Total number of read operations",
			ConstLabels: labels,
		}, []string{"operation"}),

		writeOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "objectstream",
			Subsystem:   "objectstore",
			Name:        "write_operations_total",
			Help:        "Total number of write operations",
			ConstLabels: labels,
		}, []string{"operation"}),

		deleteOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "objectstream",
			Subsystem:   "objectstore",
			Name:        "delete_operations_total",
			Help:        "Total number of delete operations",
			ConstLabels: labels,
		}, []string{}),

		watchOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "objectstream",
			Subsystem:   "objectstore",
			Name:        "watch_operations_total",
			Help:        "Total number of watchers started",
			ConstLabels: labels,
		}, []string{}),

		readLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   "objectstream",
			Subsystem:   "objectstore",
			Name:        "read_duration_seconds",
			Help:        "Read operation duration in seconds",
			ConstLabels: labels,
			Buckets:     latencyBuckets,
		}, []string{"operation"}),

		writeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   "objectstream",
			Subsystem:   "objectstore",
			Name:        "write_duration_seconds",
			Help:        "Write operation duration in seconds",
			ConstLabels: labels,
			Buckets:     latencyBuckets,
		}, []string{"operation"}),

		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "objectstream",
			Subsystem:   "objectstore",
			Name:        "operation_errors_total",
			Help:        "Total number of operation errors",
			ConstLabels: labels,
		}, []string{"operation"}),

		bytesWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "objectstream",
			Subsystem:   "objectstore",
			Name:        "bytes_written_total",
			Help:        "Total object bytes published as chunks",
			ConstLabels: labels,
		}, []string{}),

		bytesRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "objectstream",
			Subsystem:   "objectstore",
			Name:        "bytes_read_total",
			Help:        "Total object bytes delivered to readers",
			ConstLabels: labels,
		}, []string{}),

		chunksWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "objectstream",
			Subsystem:   "objectstore",
			Name:        "chunks_written_total",
			Help:        "Total chunk messages published",
			ConstLabels: labels,
		}, []string{}),

		chunksReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "objectstream",
			Subsystem:   "objectstore",
			Name:        "chunks_received_total",
			Help:        "Total chunk messages consumed by readers",
			ConstLabels: labels,
		}, []string{}),
	}

	prefix := "objectstore_" + bucket

	if err := registry.RegisterCounterVec(prefix, "read_ops", m.readOps); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(prefix, "write_ops", m.writeOps); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(prefix, "delete_ops", m.deleteOps); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(prefix, "watch_ops", m.watchOps); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogramVec(prefix, "read_latency", m.readLatency); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogramVec(prefix, "write_latency", m.writeLatency); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(prefix, "errors", m.errors); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(prefix, "bytes_written", m.bytesWritten); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(prefix, "bytes_read", m.bytesRead); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(prefix, "chunks_written", m.chunksWritten); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(prefix, "chunks_received", m.chunksReceived); err != nil {
		return nil, err
	}

	return m, nil
}

// recordReadOp records a read operation metric.
func (m *storeMetrics) recordReadOp(operation string, seconds float64) {
	if m != nil {
		m.readOps.WithLabelValues(operation).Inc()
		m.readLatency.WithLabelValues(operation).Observe(seconds)
	}
}

// recordWriteOp records a write operation metric.
func (m *storeMetrics) recordWriteOp(operation string, seconds float64) {
	if m != nil {
		m.writeOps.WithLabelValues(operation).Inc()
		m.writeLatency.WithLabelValues(operation).Observe(seconds)
	}
}

// recordDeleteOp records a delete operation metric.
func (m *storeMetrics) recordDeleteOp() {
	if m != nil {
		m.deleteOps.WithLabelValues().Inc()
	}
}

// recordWatchOp records a watcher start.
func (m *storeMetrics) recordWatchOp() {
	if m != nil {
		m.watchOps.WithLabelValues().Inc()
	}
}

// recordError records an error metric.
func (m *storeMetrics) recordError(operation string) {
	if m != nil {
		m.errors.WithLabelValues(operation).Inc()
	}
}

// recordWrite records published chunk volume.
func (m *storeMetrics) recordWrite(bytes uint64, chunks uint32) {
	if m != nil {
		m.bytesWritten.WithLabelValues().Add(float64(bytes))
		m.chunksWritten.WithLabelValues().Add(float64(chunks))
	}
}

// recordRead records consumed chunk volume.
func (m *storeMetrics) recordRead(bytes uint64, chunks uint32) {
	if m != nil {
		m.bytesRead.WithLabelValues().Add(float64(bytes))
		m.chunksReceived.WithLabelValues().Add(float64(chunks))
	}
}
