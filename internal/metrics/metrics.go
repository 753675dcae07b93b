// Package metrics exposes Prometheus counters for requests, integrity
// rejections and backups.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"helpdesk/internal/config"
)

// Recorder is the metrics surface used by the HTTP server and the backup rotator.
type Recorder interface {
	ObserveRequest(endpoint string, status int, duration time.Duration)
	ObserveRejection(reason string)
	ObserveBackup(success bool, retained int)
	Handler() http.Handler
}

// PrometheusRecorder records into its own registry, so several instances
// (one per test) never collide.
type PrometheusRecorder struct {
	registry        *prometheus.Registry
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	rejections      *prometheus.CounterVec
	backups         *prometheus.CounterVec
	retained        prometheus.Gauge
}

// New returns a PrometheusRecorder, or a no-op recorder when metrics are disabled.
func New(cfg config.MetricsConfig) Recorder {
	if !cfg.Enabled {
		return Nop{}
	}
	return NewPrometheusRecorder()
}

func NewPrometheusRecorder() *PrometheusRecorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &PrometheusRecorder{
		registry: reg,
		requestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"endpoint", "status"}),

		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "helpdesk_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),

		rejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_integrity_rejections_total",
			Help: "Sessions invalidated by the integrity guard",
		}, []string{"reason"}),

		backups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_backups_total",
			Help: "Backup rotations by result",
		}, []string{"result"}),

		retained: f.NewGauge(prometheus.GaugeOpts{
			Name: "helpdesk_snapshots_retained",
			Help: "Snapshots kept in the backup directory after the last rotation",
		}),
	}
}

func (m *PrometheusRecorder) ObserveRequest(endpoint string, status int, duration time.Duration) {
	m.requestsTotal.WithLabelValues(endpoint, httpStatusBucket(status)).Inc()
	m.requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func (m *PrometheusRecorder) ObserveRejection(reason string) {
	m.rejections.WithLabelValues(reason).Inc()
}

func (m *PrometheusRecorder) ObserveBackup(success bool, retained int) {
	result := "success"
	if !success {
		result = "failure"
	}
	m.backups.WithLabelValues(result).Inc()
	if success {
		m.retained.Set(float64(retained))
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *PrometheusRecorder) Registry() *prometheus.Registry {
	return m.registry
}

func httpStatusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

// Nop discards everything.
type Nop struct{}

func (Nop) ObserveRequest(string, int, time.Duration) {}
func (Nop) ObserveRejection(string)                   {}
func (Nop) ObserveBackup(bool, int)                   {}
func (Nop) Handler() http.Handler                     { return http.NotFoundHandler() }
