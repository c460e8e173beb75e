package markets

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveMarkets tracks markets currently in the registry.
	ActiveMarkets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyscalp_markets_active",
		Help: "Number of markets currently registered",
	})

	// RegistrationsRejectedTotal tracks rejected registrations by reason.
	RegistrationsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polyscalp_markets_registrations_rejected_total",
			Help: "Total number of market registrations rejected",
		},
		[]string{"reason"},
	)

	// PrunedMarketsTotal tracks markets removed after resolution.
	PrunedMarketsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyscalp_markets_pruned_total",
		Help: "Total number of resolved markets pruned from the registry",
	})

	// MetadataFetchDuration tracks metadata API fetch latency.
	MetadataFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polyscalp_markets_metadata_fetch_duration_seconds",
		Help:    "Duration of metadata fetch from the CLOB API",
		Buckets: prometheus.DefBuckets,
	})

	// MetadataFetchErrorsTotal tracks metadata fetch failures.
	MetadataFetchErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyscalp_markets_metadata_fetch_errors_total",
		Help: "Total number of metadata fetch errors",
	})

	// MetadataCacheHitsTotal tracks cache hits for metadata.
	MetadataCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyscalp_markets_metadata_cache_hits_total",
		Help: "Total number of metadata cache hits",
	})

	// MetadataCacheMissesTotal tracks cache misses for metadata.
	MetadataCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyscalp_markets_metadata_cache_misses_total",
		Help: "Total number of metadata cache misses",
	})
)
