package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "carnest_gateway", Name: "submissions_total", Help: "Ride submissions by outcome"},
		[]string{"outcome"},
	)
	PasswordResetsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "carnest_gateway", Name: "password_resets_total", Help: "Password reset requests by outcome"},
		[]string{"outcome"},
	)
	GeocodeLookupsTotal   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carnest_gateway", Name: "geocode_lookups_total", Help: "Geocoder lookups"})
	GeocodeCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carnest_gateway", Name: "geocode_cache_hits_total", Help: "Geocoder cache hits"})
	SessionsActive        = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "carnest_gateway", Name: "sessions_active", Help: "Live form sessions"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "carnest_gateway", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "carnest_gateway",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
