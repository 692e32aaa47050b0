package catalog

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	catalogBuilds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_catalog_builds_total",
		Help: "Number of method catalogs built.",
	})

	catalogBuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "checkout_catalog_build_duration_seconds",
		Help:    "Time spent building a method catalog.",
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 8),
	})

	offeredOptions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_catalog_options_total",
		Help: "Options offered to payers by method kind.",
	}, []string{"kind"})
)

// GetCatalogBuildsTotal returns the catalog build counter.
func GetCatalogBuildsTotal() prometheus.Counter {
	return catalogBuilds
}

// GetCatalogBuildDuration returns the catalog build histogram.
func GetCatalogBuildDuration() prometheus.Histogram {
	return catalogBuildDuration
}

// GetOfferedOptions returns the offered options counter.
func GetOfferedOptions() *prometheus.CounterVec {
	return offeredOptions
}
