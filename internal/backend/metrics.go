package backend

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_backend_request_duration_seconds",
		Help:    "Latency of payment backend requests by operation and outcome.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "outcome"})

	payeeCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_payee_cache_lookups_total",
		Help: "Payee metadata cache lookups by result (hit, miss, error).",
	}, []string{"result"})
)

// GetRequestDuration returns the backend latency histogram.
func GetRequestDuration() *prometheus.HistogramVec {
	return requestDuration
}

// GetPayeeCacheLookups returns the payee cache counter.
func GetPayeeCacheLookups() *prometheus.CounterVec {
	return payeeCacheLookups
}
