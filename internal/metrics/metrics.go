package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Business metrics
	priceRefreshes   *prometheus.CounterVec
	refreshDuration  prometheus.Histogram
	backendRequests  *prometheus.CounterVec
	backendDuration  *prometheus.HistogramVec
	watchlistsTotal  prometheus.Gauge
	watchlistEntries prometheus.Gauge
	exportsTotal     *prometheus.CounterVec
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently in flight",
			},
		),
	}

	reg.MustRegister(r.httpRequestsTotal)
	reg.MustRegister(r.httpRequestDuration)
	reg.MustRegister(r.httpRequestsInFlight)

	// Business metrics
	r.priceRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockdash_price_refreshes_total",
			Help: "Total number of watchlist price refreshes",
		},
		[]string{"outcome"},
	)
	r.refreshDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stockdash_price_refresh_duration_seconds",
			Help:    "Price refresh duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
	r.backendRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockdash_backend_requests_total",
			Help: "Total number of requests to the backend",
		},
		[]string{"route", "outcome"},
	)
	r.backendDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stockdash_backend_request_duration_seconds",
			Help:    "Backend request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"route"},
	)
	r.watchlistsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "stockdash_watchlists",
			Help: "Number of watchlists held",
		},
	)
	r.watchlistEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "stockdash_watchlist_entries",
			Help: "Number of entries across all watchlists",
		},
	)
	r.exportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockdash_exports_total",
			Help: "Total number of watchlist exports",
		},
		[]string{"status"},
	)

	reg.MustRegister(r.priceRefreshes)
	reg.MustRegister(r.refreshDuration)
	reg.MustRegister(r.backendRequests)
	reg.MustRegister(r.backendDuration)
	reg.MustRegister(r.watchlistsTotal)
	reg.MustRegister(r.watchlistEntries)
	reg.MustRegister(r.exportsTotal)

	return r
}

// RecordRequest records metrics for an HTTP request.
func (r *Registry) RecordRequest(method, path string, status int, duration float64) {
	statusStr := statusToString(status)
	r.httpRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	r.httpRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// InFlightInc increments in-flight requests.
func (r *Registry) InFlightInc() {
	r.httpRequestsInFlight.Inc()
}

// InFlightDec decrements in-flight requests.
func (r *Registry) InFlightDec() {
	r.httpRequestsInFlight.Dec()
}

// RecordRefresh records one price refresh.
func (r *Registry) RecordRefresh(outcome string, seconds float64) {
	r.priceRefreshes.WithLabelValues(outcome).Inc()
	r.refreshDuration.Observe(seconds)
}

// RecordBackendRequest records one backend call.
func (r *Registry) RecordBackendRequest(route, outcome string, seconds float64) {
	r.backendRequests.WithLabelValues(route, outcome).Inc()
	r.backendDuration.WithLabelValues(route).Observe(seconds)
}

// SetWatchlistCounts sets the watchlist and entry gauges.
func (r *Registry) SetWatchlistCounts(watchlists, entries int) {
	r.watchlistsTotal.Set(float64(watchlists))
	r.watchlistEntries.Set(float64(entries))
}

// RecordExport records an export attempt.
func (r *Registry) RecordExport(status string) {
	r.exportsTotal.WithLabelValues(status).Inc()
}

func statusToString(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
