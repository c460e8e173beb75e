package risk

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/polyquant/polyscalp/pkg/wallet"
	"go.uber.org/zap"
)

// BalanceFetcher is the wallet slice the breaker needs. Both wallet.Client
// and test mocks implement it.
type BalanceFetcher interface {
	GetBalances(ctx context.Context, address common.Address) (*wallet.Balances, error)
}

// BalanceBreaker monitors the funding wallet and halts entries when
// collateral drops below a dynamic threshold. The threshold tracks recent
// entry sizes, with hysteresis so the breaker does not flap near the line.
type BalanceBreaker struct {
	enabled atomic.Bool

	checkInterval  time.Duration
	walletClient   BalanceFetcher
	address        common.Address
	logger         *zap.Logger
	sizeMultiplier float64 // multiplier on avg entry size
	minAbsolute    float64 // absolute floor in USDC
	hysteresis     float64 // re-enable at hysteresis * disable threshold

	mu               sync.RWMutex
	lastBalance      float64
	lastCheck        time.Time
	recentEntries    []float64
	disableThreshold float64
	enableThreshold  float64
}

// BreakerConfig holds breaker configuration.
type BreakerConfig struct {
	CheckInterval  time.Duration
	SizeMultiplier float64
	MinAbsolute    float64
	Hysteresis     float64
	WalletClient   BalanceFetcher
	Address        common.Address
	Logger         *zap.Logger
}

// BreakerStatus is a point-in-time snapshot for the control API.
type BreakerStatus struct {
	Enabled          bool      `json:"enabled"`
	LastBalance      float64   `json:"last_balance"`
	LastCheck        time.Time `json:"last_check"`
	DisableThreshold float64   `json:"disable_threshold"`
	EnableThreshold  float64   `json:"enable_threshold"`
	AvgEntrySize     float64   `json:"avg_entry_size"`
	RecentEntryCount int       `json:"recent_entry_count"`
}

// NewBreaker creates a balance breaker.
func NewBreaker(cfg *BreakerConfig) (*BalanceBreaker, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.WalletClient == nil {
		return nil, fmt.Errorf("wallet client cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.CheckInterval <= 0 {
		return nil, fmt.Errorf("check interval must be positive")
	}
	if cfg.SizeMultiplier <= 0 {
		return nil, fmt.Errorf("size multiplier must be positive")
	}
	if cfg.MinAbsolute <= 0 {
		return nil, fmt.Errorf("min absolute must be positive")
	}
	if cfg.Hysteresis < 1.0 {
		return nil, fmt.Errorf("hysteresis ratio must be >= 1.0")
	}

	b := &BalanceBreaker{
		checkInterval:    cfg.CheckInterval,
		walletClient:     cfg.WalletClient,
		address:          cfg.Address,
		logger:           cfg.Logger,
		sizeMultiplier:   cfg.SizeMultiplier,
		minAbsolute:      cfg.MinAbsolute,
		hysteresis:       cfg.Hysteresis,
		recentEntries:    make([]float64, 0, 20),
		disableThreshold: cfg.MinAbsolute,
		enableThreshold:  cfg.MinAbsolute * cfg.Hysteresis,
	}
	b.enabled.Store(true)

	BreakerEnabled.Set(1)
	BreakerDisableThreshold.Set(b.disableThreshold)
	BreakerEnableThreshold.Set(b.enableThreshold)

	return b, nil
}

// IsEnabled reports whether entries may run. Lock-free, safe on hot paths.
func (b *BalanceBreaker) IsEnabled() bool {
	return b.enabled.Load()
}

// RecordEntry feeds a filled entry's notional into the rolling window and
// recomputes the thresholds.
func (b *BalanceBreaker) RecordEntry(notional float64) {
	if notional <= 0 {
		b.logger.Warn("invalid-entry-notional", zap.Float64("notional", notional))
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.recentEntries = append(b.recentEntries, notional)
	if len(b.recentEntries) > 20 {
		b.recentEntries = b.recentEntries[1:]
	}

	sum := 0.0
	for _, size := range b.recentEntries {
		sum += size
	}
	avgEntrySize := sum / float64(len(b.recentEntries))

	b.disableThreshold = math.Max(avgEntrySize*b.sizeMultiplier, b.minAbsolute)
	b.enableThreshold = b.disableThreshold * b.hysteresis

	BreakerDisableThreshold.Set(b.disableThreshold)
	BreakerEnableThreshold.Set(b.enableThreshold)

	b.logger.Debug("breaker-thresholds-updated",
		zap.Float64("avg-entry-size", avgEntrySize),
		zap.Int("entry-count", len(b.recentEntries)),
		zap.Float64("disable-threshold", b.disableThreshold),
		zap.Float64("enable-threshold", b.enableThreshold))
}

// CheckBalance fetches the wallet balance and applies the hysteresis state
// machine.
func (b *BalanceBreaker) CheckBalance(ctx context.Context) error {
	start := time.Now()
	defer func() {
		BreakerCheckDuration.Observe(time.Since(start).Seconds())
	}()

	balances, err := b.walletClient.GetBalances(ctx, b.address)
	if err != nil {
		b.logger.Error("balance-check-failed",
			zap.Error(err),
			zap.String("address", b.address.Hex()))
		return fmt.Errorf("get balances: %w", err)
	}

	usdcFloat := new(big.Float).Quo(
		new(big.Float).SetInt(balances.USDC),
		big.NewFloat(1e6))
	balance, _ := usdcFloat.Float64()

	b.mu.Lock()
	b.lastBalance = balance
	b.lastCheck = time.Now()
	disableThreshold := b.disableThreshold
	enableThreshold := b.enableThreshold
	b.mu.Unlock()

	BreakerBalance.Set(balance)

	currentlyEnabled := b.enabled.Load()
	switch {
	case currentlyEnabled && balance < disableThreshold:
		b.enabled.Store(false)
		BreakerEnabled.Set(0)
		BreakerStateChanges.Inc()
		b.logger.Warn("balance-breaker-tripped",
			zap.Float64("balance", balance),
			zap.Float64("disable-threshold", disableThreshold))
	case !currentlyEnabled && balance >= enableThreshold:
		b.enabled.Store(true)
		BreakerEnabled.Set(1)
		BreakerStateChanges.Inc()
		b.logger.Info("balance-breaker-reset",
			zap.Float64("balance", balance),
			zap.Float64("enable-threshold", enableThreshold))
	default:
		b.logger.Debug("balance-checked",
			zap.Float64("balance", balance),
			zap.Bool("enabled", currentlyEnabled))
	}

	return nil
}

// Start checks once immediately and then monitors in the background until
// the context is cancelled.
func (b *BalanceBreaker) Start(ctx context.Context) {
	b.logger.Info("balance-breaker-started",
		zap.Duration("check-interval", b.checkInterval),
		zap.Float64("size-multiplier", b.sizeMultiplier),
		zap.Float64("min-absolute", b.minAbsolute))

	if err := b.CheckBalance(ctx); err != nil {
		b.logger.Error("initial-balance-check-failed", zap.Error(err))
	}

	go b.monitorLoop(ctx)
}

func (b *BalanceBreaker) monitorLoop(ctx context.Context) {
	ticker := time.NewTicker(b.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("balance-breaker-stopped")
			return
		case <-ticker.C:
			if err := b.CheckBalance(ctx); err != nil {
				b.logger.Error("balance-check-error", zap.Error(err))
			}
		}
	}
}

// Status returns a snapshot for the control API.
func (b *BalanceBreaker) Status() BreakerStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()

	sum := 0.0
	for _, size := range b.recentEntries {
		sum += size
	}
	avgEntrySize := 0.0
	if len(b.recentEntries) > 0 {
		avgEntrySize = sum / float64(len(b.recentEntries))
	}

	return BreakerStatus{
		Enabled:          b.enabled.Load(),
		LastBalance:      b.lastBalance,
		LastCheck:        b.lastCheck,
		DisableThreshold: b.disableThreshold,
		EnableThreshold:  b.enableThreshold,
		AvgEntrySize:     avgEntrySize,
		RecentEntryCount: len(b.recentEntries),
	}
}
