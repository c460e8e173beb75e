package execution

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OrdersPlacedTotal tracks orders placed by mode and side.
	OrdersPlacedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polyscalp_execution_orders_placed_total",
			Help: "Total number of orders placed",
		},
		[]string{"mode", "side"},
	)

	// OrdersCancelledTotal tracks cancellations sent to the venue.
	OrdersCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyscalp_execution_orders_cancelled_total",
		Help: "Total number of orders cancelled",
	})

	// OrderRejectionsTotal tracks final venue rejections.
	OrderRejectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyscalp_execution_order_rejections_total",
		Help: "Total number of orders rejected by the venue",
	})

	// OrderRetriesTotal tracks transient submit failures that were retried.
	OrderRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyscalp_execution_order_retries_total",
		Help: "Total number of order submit retries",
	})

	// OrderTimeoutsTotal tracks submissions that exhausted their retries.
	OrderTimeoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyscalp_execution_order_timeouts_total",
		Help: "Total number of order submissions that exhausted retries",
	})

	// RequestDuration tracks authenticated CLOB request latency.
	RequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polyscalp_execution_request_duration_seconds",
		Help:    "Duration of authenticated CLOB API requests",
		Buckets: prometheus.DefBuckets,
	})

	// FillsConfirmedTotal tracks orders confirmed fully filled.
	FillsConfirmedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyscalp_execution_fills_confirmed_total",
		Help: "Total number of orders confirmed fully filled",
	})

	// FillTimeoutsTotal tracks fill verifications that timed out.
	FillTimeoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyscalp_execution_fill_timeouts_total",
		Help: "Total number of fill verifications that timed out",
	})

	// PositionSyncDuration tracks data API position sync latency.
	PositionSyncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polyscalp_execution_position_sync_duration_seconds",
		Help:    "Duration of data API position fetches",
		Buckets: prometheus.DefBuckets,
	})

	// PositionSyncErrorsTotal tracks failed position syncs.
	PositionSyncErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyscalp_execution_position_sync_errors_total",
		Help: "Total number of failed position syncs",
	})
)
