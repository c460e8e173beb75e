package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EvaluationsTotal counts strategy evaluations across all markets.
	EvaluationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyscalp_engine_evaluations_total",
		Help: "Total number of strategy evaluations",
	})

	// WakeupsTotal counts book updates that woke a market loop.
	WakeupsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyscalp_engine_wakeups_total",
		Help: "Total number of book-update wakeups delivered to market loops",
	})

	// CoalescedWakeupsTotal counts book updates absorbed by a pending wakeup.
	CoalescedWakeupsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyscalp_engine_coalesced_wakeups_total",
		Help: "Total number of book updates coalesced into an already pending wakeup",
	})

	// EntriesTotal counts confirmed entry fills by position class.
	EntriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polyscalp_engine_entries_total",
		Help: "Total number of confirmed entry fills",
	}, []string{"class"})

	// BlockedEntriesTotal counts entry intents suppressed by a risk control.
	BlockedEntriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polyscalp_engine_blocked_entries_total",
		Help: "Total number of entry intents blocked by risk controls",
	}, []string{"reason"})

	// IntentFailuresTotal counts intents that failed at the venue or never
	// confirmed a fill.
	IntentFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polyscalp_engine_intent_failures_total",
		Help: "Total number of failed intent executions",
	}, []string{"stage"})

	// ExitFallbacksTotal counts unwind BUYs that fell back to a direct SELL.
	ExitFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyscalp_engine_exit_fallbacks_total",
		Help: "Total number of exits that fell back to selling the held token",
	})

	// RoundTripsTotal counts closed round trips by outcome.
	RoundTripsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polyscalp_engine_round_trips_total",
		Help: "Total number of closed round trips",
	}, []string{"result"})

	// ActiveMarketLoops tracks the number of running market loops.
	ActiveMarketLoops = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyscalp_engine_active_market_loops",
		Help: "Number of running per-market evaluation loops",
	})
)
