package risk

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BreakerEnabled is 1 while the balance breaker allows entries.
	BreakerEnabled = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyscalp_risk_breaker_enabled",
		Help: "Whether the balance breaker currently allows entries (1=yes)",
	})

	// BreakerBalance is the last observed wallet USDC balance.
	BreakerBalance = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyscalp_risk_breaker_balance_usdc",
		Help: "Last observed wallet USDC balance",
	})

	// BreakerDisableThreshold is the balance below which entries halt.
	BreakerDisableThreshold = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyscalp_risk_breaker_disable_threshold_usdc",
		Help: "Balance threshold below which the breaker disables entries",
	})

	// BreakerEnableThreshold is the balance above which entries resume.
	BreakerEnableThreshold = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyscalp_risk_breaker_enable_threshold_usdc",
		Help: "Balance threshold above which the breaker re-enables entries",
	})

	// BreakerStateChanges counts enable/disable transitions.
	BreakerStateChanges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyscalp_risk_breaker_state_changes_total",
		Help: "Total number of breaker state transitions",
	})

	// BreakerCheckDuration tracks balance check latency.
	BreakerCheckDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polyscalp_risk_breaker_check_duration_seconds",
		Help:    "Duration of balance checks",
		Buckets: prometheus.DefBuckets,
	})

	// KillSwitchTripped is 1 while the daily loss limit has halted trading.
	KillSwitchTripped = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyscalp_risk_kill_switch_tripped",
		Help: "Whether the daily loss kill switch is tripped (1=yes)",
	})

	// RealizedPnL is the session's realized profit and loss in USDC.
	RealizedPnL = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyscalp_risk_realized_pnl_usdc",
		Help: "Realized profit and loss for the current UTC day",
	})
)
