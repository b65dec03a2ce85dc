package preview

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures the Prometheus metrics for the preview server.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "easel").
	Namespace string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for durations.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
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
		Namespace:   "easel",
		ConstLabels: nil,
		Buckets:     prometheus.DefBuckets,
		Registry:    prometheus.DefaultRegisterer,
	}
}

// metrics holds the Prometheus metrics for the preview server.
type metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	sessionsActive  prometheus.Gauge
	viewersActive   prometheus.Gauge
	reloadsTotal    prometheus.Counter
	renderDuration  *prometheus.HistogramVec
	renderErrors    *prometheus.CounterVec
}

// globalMetrics is the singleton metrics instance.
// Created on first call to Prometheus().
var (
	globalMetrics   *metrics
	globalMetricsMu sync.Mutex
)

func initMetrics(config MetricsConfig) *metrics {
	factory := promauto.With(config.Registry)

	return &metrics{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "http_requests_total",
			Help:        "Total number of preview HTTP requests by route and status",
			ConstLabels: config.ConstLabels,
		}, []string{"route", "method", "status"}),

		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Name:        "http_request_duration_seconds",
			Help:        "Preview HTTP request duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"route"}),

		sessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Name:        "sessions_active",
			Help:        "Number of registered preview sessions",
			ConstLabels: config.ConstLabels,
		}),

		viewersActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Name:        "viewers_active",
			Help:        "Number of attached viewer WebSocket connections",
			ConstLabels: config.ConstLabels,
		}),

		reloadsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "reloads_sent_total",
			Help:        "Total number of reload notifications delivered to viewers",
			ConstLabels: config.ConstLabels,
		}),

		renderDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Name:        "render_duration_seconds",
			Help:        "Diagram render duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"format"}),

		renderErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "render_errors_total",
			Help:        "Total number of failed renders by error code",
			ConstLabels: config.ConstLabels,
		}, []string{"code"}),
	}
}

// Prometheus creates net/http middleware that collects request metrics.
//
// Metrics collected:
//   - easel_http_requests_total: Counter of requests by route, method, status
//   - easel_http_request_duration_seconds: Histogram of request duration
//   - easel_sessions_active: Gauge of registered sessions
//   - easel_viewers_active: Gauge of attached viewers
//   - easel_reloads_sent_total: Counter of reload notifications delivered
//   - easel_render_duration_seconds: Histogram of render duration by format
//   - easel_render_errors_total: Counter of failed renders by error code
//
// The middleware initializes the package-wide metrics singleton; the gauges
// and counters are updated from the registry and render paths regardless of
// which routes the middleware wraps.
func Prometheus(opts ...MetricsOption) func(http.Handler) http.Handler {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}

	globalMetricsMu.Lock()
	if globalMetrics == nil {
		globalMetrics = initMetrics(config)
	}
	m := globalMetrics
	globalMetricsMu.Unlock()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			route := routePattern(r)
			m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
			m.requestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(ww.Status())).Inc()
		})
	}
}

// routePattern returns the matched chi route pattern, falling back to the
// raw path. Patterns keep label cardinality bounded: every diagram page
// collapses into "/{id}".
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	if r.URL.Path == "" {
		return "/"
	}
	return r.URL.Path
}

func recordSessionCount(n int) {
	if globalMetrics != nil {
		globalMetrics.sessionsActive.Set(float64(n))
	}
}

func recordViewerDelta(delta int) {
	if globalMetrics != nil {
		globalMetrics.viewersActive.Add(float64(delta))
	}
}

func recordReloads(n int) {
	if globalMetrics != nil && n > 0 {
		globalMetrics.reloadsTotal.Add(float64(n))
	}
}

// RecordRenderDuration records one render for the format. Call it after a
// successful render, wherever the render happens.
func RecordRenderDuration(format string, d time.Duration) {
	if globalMetrics != nil {
		globalMetrics.renderDuration.WithLabelValues(format).Observe(d.Seconds())
	}
}

// RecordRenderError records a failed render by its error code.
func RecordRenderError(code string) {
	if globalMetrics != nil {
		if code == "" {
			code = "unknown"
		}
		globalMetrics.renderErrors.WithLabelValues(code).Inc()
	}
}
