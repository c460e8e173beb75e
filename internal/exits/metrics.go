package exits

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PlacementsTotal tracks successful TP order placements.
	PlacementsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyscalp_exits_tp_placements_total",
		Help: "Total number of take-profit orders placed",
	})

	// RepricesTotal tracks cancel-and-replace cycles on improved prices.
	RepricesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyscalp_exits_tp_reprices_total",
		Help: "Total number of take-profit reprices",
	})

	// RepriceThrottledTotal tracks reprices skipped by the minimum interval.
	RepriceThrottledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyscalp_exits_tp_reprices_throttled_total",
		Help: "Total number of reprices skipped by the minimum reprice interval",
	})

	// CancellationsTotal tracks TP cancellations (gate, unwind, shutdown).
	CancellationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyscalp_exits_tp_cancellations_total",
		Help: "Total number of take-profit orders cancelled",
	})

	// PlaceFailuresTotal tracks rejected TP placements.
	PlaceFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyscalp_exits_tp_place_failures_total",
		Help: "Total number of take-profit placement failures",
	})

	// SentinelSkipsTotal tracks ticks suppressed by the failure sentinel.
	SentinelSkipsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyscalp_exits_tp_sentinel_skips_total",
		Help: "Total number of placement attempts skipped by the failure sentinel",
	})

	// ActiveTPOrders tracks resting take-profit orders across markets.
	ActiveTPOrders = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyscalp_exits_active_tp_orders",
		Help: "Number of take-profit orders currently resting",
	})
)
