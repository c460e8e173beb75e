package strategy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IntentsTotal tracks intents emitted by kind.
	IntentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polyscalp_strategy_intents_total",
			Help: "Total number of intents emitted by the strategy",
		},
		[]string{"kind"},
	)

	// ForceUnwindsTotal tracks forced unwinds at the time gate.
	ForceUnwindsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyscalp_strategy_force_unwinds_total",
		Help: "Total number of forced unwind exits emitted",
	})

	// DebouncedIntentsTotal tracks EXIT-class intents suppressed by debounce.
	DebouncedIntentsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyscalp_strategy_debounced_intents_total",
		Help: "Total number of intents suppressed by the exit debounce",
	})

	// CrossedBookSkipsTotal tracks entries skipped on abnormal books.
	CrossedBookSkipsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyscalp_strategy_crossed_book_skips_total",
		Help: "Total number of entry evaluations skipped due to a crossed book",
	})
)
