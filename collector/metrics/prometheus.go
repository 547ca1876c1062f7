package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collector's Prometheus metrics. Each instance owns its
// registry so several collectors can live in one process.
type Metrics struct {
	registry *prometheus.Registry

	CrashesReceived prometheus.Counter
	ParseErrors     prometheus.Counter
	CrashesStored   prometheus.Gauge
	WaitersResolved prometheus.Counter
	SinkFailures    *prometheus.CounterVec

	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		CrashesReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "crashes_received_total",
			Help: "Total number of decoded crash uploads",
		}),
		ParseErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "crashes_parse_errors_total",
			Help: "Total number of uploads rejected because the multipart body could not be decoded",
		}),
		CrashesStored: factory.NewGauge(prometheus.GaugeOpts{
			Name: "crashes_stored",
			Help: "Number of crash records in the log",
		}),
		WaitersResolved: factory.NewCounter(prometheus.CounterOpts{
			Name: "crashes_waiters_resolved_total",
			Help: "Total number of waiters notified of a crash",
		}),
		SinkFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "crashes_sink_failures_total",
			Help: "Total number of failed forwards to a sink",
		}, []string{"sink"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "crashes_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crashes_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
	}
}

func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// Handler serves this instance's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
