package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes application metrics that are safe to scrape via Prometheus.
type Metrics struct {
	registry            *prometheus.Registry
	httpRequests        *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	scansStartedTotal    prometheus.Counter
	scanDuration         prometheus.Histogram
	probesTotal          *prometheus.CounterVec
	devicesWrittenTotal  prometheus.Counter
	linksWrittenTotal    prometheus.Counter
}

// New creates a fresh Metrics registry with HTTP and scan metrics registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mapper",
		Name:      "http_requests_total",
		Help:      "Count of HTTP requests processed by the control surface",
	}, []string{"method", "path", "status"})

	httpRequestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mapper",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests served by the control surface",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	scansStartedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mapper",
		Name:      "scans_started_total",
		Help:      "Total number of topology scans started",
	})

	scanDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "mapper",
		Name:      "scan_duration_seconds",
		Help:      "Duration of a scan from start to completion or cancellation",
		Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200, 3600},
	})

	probesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mapper",
		Name:      "probes_total",
		Help:      "Per-host SNMP probe attempts, labeled by outcome",
	}, []string{"outcome"})

	devicesWrittenTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mapper",
		Name:      "devices_written_total",
		Help:      "Total number of device upserts written to the graph store",
	})

	linksWrittenTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mapper",
		Name:      "links_written_total",
		Help:      "Total number of link upserts written to the graph store",
	})

	registry.MustRegister(
		httpRequests,
		httpRequestDuration,
		scansStartedTotal,
		scanDuration,
		probesTotal,
		devicesWrittenTotal,
		linksWrittenTotal,
	)

	return &Metrics{
		registry:            registry,
		httpRequests:        httpRequests,
		httpRequestDuration: httpRequestDuration,
		scansStartedTotal:   scansStartedTotal,
		scanDuration:        scanDuration,
		probesTotal:         probesTotal,
		devicesWrittenTotal: devicesWrittenTotal,
		linksWrittenTotal:   linksWrittenTotal,
	}
}

// ObserveHTTPRequest records a single HTTP request/response cycle.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": strconv.Itoa(status),
	}
	m.httpRequests.With(labels).Inc()
	m.httpRequestDuration.With(labels).Observe(duration.Seconds())
}

// IncScanStarted increments the scans-started counter.
func (m *Metrics) IncScanStarted() {
	if m == nil {
		return
	}
	m.scansStartedTotal.Inc()
}

// ObserveScanDuration observes one scan's wall-clock duration.
func (m *Metrics) ObserveScanDuration(duration time.Duration) {
	if m == nil {
		return
	}
	m.scanDuration.Observe(duration.Seconds())
}

// IncProbe records one probe attempt's outcome ("responded" or "unresponsive").
func (m *Metrics) IncProbe(outcome string) {
	if m == nil {
		return
	}
	m.probesTotal.WithLabelValues(outcome).Inc()
}

// IncDeviceWritten increments the device-upsert counter.
func (m *Metrics) IncDeviceWritten() {
	if m == nil {
		return
	}
	m.devicesWrittenTotal.Inc()
}

// IncLinkWritten increments the link-upsert counter.
func (m *Metrics) IncLinkWritten() {
	if m == nil {
		return
	}
	m.linksWrittenTotal.Inc()
}

// Handler exposes the Prometheus registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics unavailable"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
