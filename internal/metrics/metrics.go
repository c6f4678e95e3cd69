// Package metrics provides boundary-crossing telemetry for numlink.
// It wraps Prometheus collectors to track foreign call volume and
// latency, live handle counts, and reference releases.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector is the interface for interop metrics collection.
type MetricsCollector interface {
	// RecordCall records one foreign call with its duration and outcome.
	RecordCall(module, method string, duration time.Duration, err error)

	// RecordHandleCreated records creation of a handle of the given kind
	// (array, scalar, or view).
	RecordHandleCreated(kind string)

	// RecordHandleReleased records a reference release.
	RecordHandleReleased()

	// RecordBufferView records acquisition of a zero-copy buffer view of
	// the given byte length.
	RecordBufferView(bytes int)
}

// Collector provides Prometheus-backed interop metrics.
type Collector struct {
	registry *prometheus.Registry

	callTotal     *prometheus.CounterVec
	callLatency   *prometheus.HistogramVec
	handlesLive   prometheus.Gauge
	handleCreated *prometheus.CounterVec
	refReleases   prometheus.Counter
	viewBytes     prometheus.Histogram
}

// NewCollector creates a new interop metrics collector.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "numlink"
	}

	c := &Collector{registry: prometheus.NewRegistry()}

	c.callTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "foreign",
			Name:      "calls_total",
			Help:      "Total foreign calls by module, method and outcome",
		},
		[]string{"module", "method", "outcome"},
	)

	c.callLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "foreign",
			Name:      "call_duration_seconds",
			Help:      "Foreign call latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"module", "method"},
	)

	c.handlesLive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "handle",
			Name:      "live",
			Help:      "Number of live array handles holding a foreign reference",
		},
	)

	c.handleCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "handle",
			Name:      "created_total",
			Help:      "Handles created by kind (array, scalar, view)",
		},
		[]string{"kind"},
	)

	c.refReleases = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "handle",
			Name:      "releases_total",
			Help:      "Foreign reference releases performed",
		},
	)

	c.viewBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "view_bytes",
			Help:      "Byte length of acquired zero-copy buffer views",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 10),
		},
	)

	c.registry.MustRegister(
		c.callTotal,
		c.callLatency,
		c.handlesLive,
		c.handleCreated,
		c.refReleases,
		c.viewBytes,
	)

	return c
}

// Registry returns the underlying Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordCall records one foreign call.
func (c *Collector) RecordCall(module, method string, duration time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.callTotal.WithLabelValues(module, method, outcome).Inc()
	c.callLatency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordHandleCreated records creation of a handle.
func (c *Collector) RecordHandleCreated(kind string) {
	c.handleCreated.WithLabelValues(kind).Inc()
	if kind != "scalar" {
		c.handlesLive.Inc()
	}
}

// RecordHandleReleased records a reference release.
func (c *Collector) RecordHandleReleased() {
	c.refReleases.Inc()
	c.handlesLive.Dec()
}

// RecordBufferView records acquisition of a buffer view.
func (c *Collector) RecordBufferView(bytes int) {
	c.viewBytes.Observe(float64(bytes))
}

// NoOpCollector is a metrics collector that discards all metrics.
type NoOpCollector struct{}

// NewNoOpCollector creates a no-op metrics collector.
func NewNoOpCollector() *NoOpCollector {
	return &NoOpCollector{}
}

func (*NoOpCollector) RecordCall(module, method string, d time.Duration, err error) {}
func (*NoOpCollector) RecordHandleCreated(kind string)                              {}
func (*NoOpCollector) RecordHandleReleased()                                        {}
func (*NoOpCollector) RecordBufferView(bytes int)                                   {}
