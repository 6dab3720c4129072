package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors and implements every hook interface.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP server
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Outbound (GitHub)
	UpstreamRequestsTotal   *prometheus.CounterVec
	UpstreamRequestDuration *prometheus.HistogramVec
	UpstreamErrorsTotal     *prometheus.CounterVec
	RateLimitRemaining      *prometheus.GaugeVec

	// Cache
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec
	CacheSetBytes    *prometheus.HistogramVec

	// Sync worker
	SyncPassesTotal     prometheus.Counter
	SyncPassDuration    prometheus.Histogram
	SyncRecordsTotal    *prometheus.CounterVec
	SyncLastPassTotal   prometheus.Gauge
	SyncLastPassSuccess prometheus.Gauge
}

// NewMetrics creates and registers all collectors on registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,

		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "extapi_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "extapi_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		UpstreamRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "extapi_upstream_requests_total",
				Help: "Total number of outbound requests by host and status",
			},
			[]string{"host", "status"},
		),
		UpstreamRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "extapi_upstream_request_duration_seconds",
				Help:    "Outbound request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"host"},
		),
		UpstreamErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "extapi_upstream_errors_total",
				Help: "Total number of outbound transport failures",
			},
			[]string{"host"},
		),
		RateLimitRemaining: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "extapi_upstream_ratelimit_remaining",
				Help: "Remaining requests in the current rate-limit window",
			},
			[]string{"host"},
		),

		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "extapi_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"key_type"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "extapi_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"key_type"},
		),
		CacheSetBytes: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "extapi_cache_set_bytes",
				Help:    "Size of values written to the cache",
				Buckets: prometheus.ExponentialBuckets(64, 4, 8),
			},
			[]string{"key_type"},
		),

		SyncPassesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "extapi_sync_passes_total",
				Help: "Total number of completed sync passes",
			},
		),
		SyncPassDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "extapi_sync_pass_duration_seconds",
				Help:    "Sync pass duration in seconds",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
			},
		),
		SyncRecordsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "extapi_sync_records_total",
				Help: "Extensions processed by the sync worker, by outcome",
			},
			[]string{"outcome"},
		),
		SyncLastPassTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "extapi_sync_last_pass_extensions",
				Help: "Number of extensions in the last sync pass",
			},
		),
		SyncLastPassSuccess: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "extapi_sync_last_pass_timestamp_seconds",
				Help: "Unix time of the last completed sync pass",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.UpstreamRequestsTotal,
		m.UpstreamRequestDuration,
		m.UpstreamErrorsTotal,
		m.RateLimitRemaining,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheSetBytes,
		m.SyncPassesTotal,
		m.SyncPassDuration,
		m.SyncRecordsTotal,
		m.SyncLastPassTotal,
		m.SyncLastPassSuccess,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) OnPassStart(_ context.Context, total int) {
	m.SyncLastPassTotal.Set(float64(total))
}

func (m *Metrics) OnPassComplete(_ context.Context, _ PassStats, d time.Duration) {
	m.SyncPassesTotal.Inc()
	m.SyncPassDuration.Observe(d.Seconds())
	m.SyncLastPassSuccess.SetToCurrentTime()
}

func (m *Metrics) OnRecord(_ context.Context, _ string, outcome Outcome, _ time.Duration) {
	m.SyncRecordsTotal.WithLabelValues(string(outcome)).Inc()
}

func (m *Metrics) OnCacheHit(_ context.Context, keyType string) {
	m.CacheHitsTotal.WithLabelValues(keyType).Inc()
}

func (m *Metrics) OnCacheMiss(_ context.Context, keyType string) {
	m.CacheMissesTotal.WithLabelValues(keyType).Inc()
}

func (m *Metrics) OnCacheSet(_ context.Context, keyType string, size int) {
	m.CacheSetBytes.WithLabelValues(keyType).Observe(float64(size))
}

func (m *Metrics) OnRequest(context.Context, string, string, string) {}

func (m *Metrics) OnResponse(_ context.Context, _, host, _ string, status int, d time.Duration) {
	m.UpstreamRequestsTotal.WithLabelValues(host, strconv.Itoa(status)).Inc()
	m.UpstreamRequestDuration.WithLabelValues(host).Observe(d.Seconds())
}

func (m *Metrics) OnError(_ context.Context, _, host, _ string, _ error) {
	m.UpstreamErrorsTotal.WithLabelValues(host).Inc()
}

func (m *Metrics) OnRateLimit(_ context.Context, host string, remaining int) {
	m.RateLimitRemaining.WithLabelValues(host).Set(float64(remaining))
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware instruments HTTP requests. Routes are labelled with the chi
// route pattern so path parameters don't explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

var (
	_ SyncHooks  = (*Metrics)(nil)
	_ CacheHooks = (*Metrics)(nil)
	_ HTTPHooks  = (*Metrics)(nil)
)
