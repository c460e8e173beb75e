package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FillsTotal tracks entry fills applied by classification.
	FillsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polyscalp_ledger_fills_total",
			Help: "Total number of entry fill acks applied",
		},
		[]string{"class"},
	)

	// ExitFillsTotal tracks exit fills applied by classification.
	ExitFillsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polyscalp_ledger_exit_fills_total",
			Help: "Total number of exit fill acks applied",
		},
		[]string{"class"},
	)

	// DuplicateFillsTotal tracks fill acks dropped by order-id dedup.
	DuplicateFillsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyscalp_ledger_duplicate_fills_total",
		Help: "Total number of duplicate fill acks ignored",
	})

	// CompletedCyclesTotal tracks LEVEL round trips completed.
	CompletedCyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyscalp_ledger_completed_cycles_total",
		Help: "Total number of completed LEVEL cycles",
	})

	// OpenPositions tracks open positions across all markets.
	OpenPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyscalp_ledger_open_positions",
		Help: "Number of currently open positions",
	})
)
