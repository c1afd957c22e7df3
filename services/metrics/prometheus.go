package metricsvc

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/ratiba/core"
)

const namespace = "ratiba"

// PrometheusRecorder counts timetable operations by outcome and tracks their latency.
type PrometheusRecorder struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	durations  *prometheus.HistogramVec
}

var _ core.MetricsRecorder = (*PrometheusRecorder)(nil)

// NewPrometheusRecorder registers its collectors, plus the Go runtime and process collectors, on a new registry.
func NewPrometheusRecorder(conf *core.Config) *PrometheusRecorder {
	constLabels := prometheus.Labels{"env": conf.Env, "build": conf.Build}
	rec := &PrometheusRecorder{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "timetable",
			Name:        "operations_total",
			Help:        "Timetable operations by name and status.",
			ConstLabels: constLabels,
		}, []string{"operation", "status"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "timetable",
			Name:        "operation_duration_seconds",
			Help:        "Latency of timetable operations.",
			ConstLabels: constLabels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	rec.registry.MustRegister(
		rec.operations,
		rec.durations,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return rec
}

func (rec *PrometheusRecorder) Observe(operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	rec.operations.WithLabelValues(operation, status).Inc()
	rec.durations.WithLabelValues(operation).Observe(duration.Seconds())
}

func (rec *PrometheusRecorder) Registry() *prometheus.Registry {
	return rec.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (rec *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(rec.registry, promhttp.HandlerOpts{})
}
