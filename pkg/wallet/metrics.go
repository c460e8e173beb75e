package wallet

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// MATICBalance is the gas balance of the trading wallet.
	MATICBalance = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyscalp_wallet_matic_balance",
		Help: "Current MATIC balance in wallet (native units)",
	})

	// USDCBalance is the collateral available for entries.
	USDCBalance = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyscalp_wallet_usdc_balance",
		Help: "Current USDC balance in wallet (USD)",
	})

	// USDCAllowance is the collateral the CTF exchange may pull.
	USDCAllowance = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyscalp_wallet_usdc_allowance",
		Help: "USDC allowance approved to CTF Exchange (USD)",
	})

	// ActivePositions counts open positions as the Data API sees them. This
	// can briefly disagree with the ledger while settlement catches up.
	ActivePositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyscalp_wallet_active_positions",
		Help: "Number of open positions per the Data API",
	})

	// PositionValue is the sum of current position values.
	PositionValue = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyscalp_wallet_position_value",
		Help: "Sum of current position values (USD)",
	})

	// WalletUnrealizedPnL is the Data API's view of open P&L.
	WalletUnrealizedPnL = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyscalp_wallet_unrealized_pnl",
		Help: "Total unrealized P&L from open positions (USD)",
	})

	// UpdateErrorsTotal counts failed tracker polls.
	UpdateErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyscalp_wallet_update_errors_total",
		Help: "Total number of failed wallet update attempts",
	})

	// UpdateDuration observes one full tracker poll (chain + Data API).
	UpdateDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polyscalp_wallet_update_duration_seconds",
		Help:    "Time taken to fetch wallet data (seconds)",
		Buckets: prometheus.DefBuckets,
	})

	// LastUpdateTimestamp is the Unix time of the last successful poll.
	LastUpdateTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyscalp_wallet_last_update_timestamp",
		Help: "Unix timestamp of last successful wallet update",
	})
)
