package orderbook

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UpdatesTotal tracks orderbook updates by event type.
	UpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polyscalp_orderbook_updates_total",
			Help: "Total number of orderbook updates",
		},
		[]string{"event_type"},
	)

	// BooksTracked tracks the number of token books held in memory.
	BooksTracked = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyscalp_orderbook_books_tracked",
		Help: "Number of token orderbooks tracked in memory",
	})

	// UpdatesDroppedTotal tracks updates dropped by reason.
	UpdatesDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polyscalp_orderbook_updates_dropped_total",
			Help: "Total number of orderbook updates dropped",
		},
		[]string{"reason"},
	)

	// UpdateProcessingDuration tracks how long applying one message takes.
	UpdateProcessingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polyscalp_orderbook_update_processing_seconds",
		Help:    "Duration of applying one feed message to the books",
		Buckets: prometheus.ExponentialBuckets(0.000001, 2, 20),
	})
)
