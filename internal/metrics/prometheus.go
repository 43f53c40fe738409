package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Tenant metrics
	TenantsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tenants_total",
			Help: "Current number of tenants",
		},
	)

	UsersTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "users_total",
			Help: "Current number of users",
		},
	)

	TenantsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tenants_created_total",
			Help: "Total number of tenants created since start",
		},
	)

	AuthorizationDenialsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authorization_denials_total",
			Help: "Requests rejected by the authorization stage",
		},
		[]string{"reason"},
	)
)

func IncrementAPIRequests(method, endpoint, statusCode string) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
}

func RecordAPIRequestDuration(method, endpoint string, duration float64) {
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration)
}

func SetTenantCounts(tenants, users int64) {
	TenantsTotal.Set(float64(tenants))
	UsersTotal.Set(float64(users))
}

func IncrementAuthorizationDenials(reason string) {
	AuthorizationDenialsTotal.WithLabelValues(reason).Inc()
}
