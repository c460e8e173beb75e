package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Tracker polls wallet balances and Data API positions on an interval and
// publishes them as Prometheus gauges. It is pure observability; the balance
// breaker does its own polling so a tracker outage never gates entries.
type Tracker struct {
	client       *Client
	address      common.Address
	pollInterval time.Duration
	logger       *zap.Logger
}

// TrackerConfig holds tracker configuration.
type TrackerConfig struct {
	Client       *Client
	Address      common.Address
	PollInterval time.Duration
	Logger       *zap.Logger
}

// NewTracker creates a wallet tracker.
func NewTracker(cfg *TrackerConfig) (*Tracker, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if cfg.Client == nil {
		return nil, errors.New("client cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.PollInterval <= 0 {
		return nil, errors.New("poll interval must be positive")
	}

	return &Tracker{
		client:       cfg.Client,
		address:      cfg.Address,
		pollInterval: cfg.PollInterval,
		logger:       cfg.Logger,
	}, nil
}

// Run polls until ctx is cancelled. Blocking; callers run it in a goroutine.
func (t *Tracker) Run(ctx context.Context) error {
	t.logger.Info("wallet-tracker-starting",
		zap.Duration("poll-interval", t.pollInterval),
		zap.String("address", t.address.Hex()))

	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	if err := t.poll(ctx); err != nil {
		t.logger.Error("wallet-poll-failed", zap.Error(err))
		UpdateErrorsTotal.Inc()
	}

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("wallet-tracker-stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := t.poll(ctx); err != nil {
				t.logger.Error("wallet-poll-failed", zap.Error(err))
				UpdateErrorsTotal.Inc()
			}
		}
	}
}

func (t *Tracker) poll(ctx context.Context) error {
	start := time.Now()
	defer func() {
		UpdateDuration.Observe(time.Since(start).Seconds())
	}()

	pollCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	balances, err := t.client.GetBalances(pollCtx, t.address)
	if err != nil {
		return fmt.Errorf("get balances: %w", err)
	}

	positions, err := t.client.GetPositions(pollCtx, t.address.Hex())
	if err != nil {
		return fmt.Errorf("get positions: %w", err)
	}

	t.publish(balances, positions)
	LastUpdateTimestamp.Set(float64(time.Now().Unix()))

	t.logger.Debug("wallet-poll-complete",
		zap.Int("position-count", len(positions)),
		zap.Duration("duration", time.Since(start)))

	return nil
}

func (t *Tracker) publish(balances *Balances, positions []Position) {
	MATICBalance.Set(weiToFloat(balances.MATIC, 1e18))
	USDCBalance.Set(weiToFloat(balances.USDC, 1e6))
	USDCAllowance.Set(weiToFloat(balances.USDCAllowance, 1e6))

	var value, pnl float64
	for _, pos := range positions {
		value += pos.Value
		pnl += pos.CashPnL
	}

	ActivePositions.Set(float64(len(positions)))
	PositionValue.Set(value)
	WalletUnrealizedPnL.Set(pnl)
}

func weiToFloat(v *big.Int, scale float64) float64 {
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(v), big.NewFloat(scale)).Float64()
	return f
}
