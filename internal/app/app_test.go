package app

import (
	"testing"
	"time"

	"github.com/polyquant/polyscalp/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() *config.Config {
	return &config.Config{
		LogLevel: "info",
		HTTPPort: "0",

		PolymarketWSURL:      "wss://ws-subscriptions-clob.polymarket.com/ws/market",
		PolymarketCLOBURL:    "https://clob.polymarket.com",
		PolymarketGammaURL:   "https://gamma-api.polymarket.com",
		PolymarketDataAPIURL: "https://data-api.polymarket.com",

		DiscoveryPollInterval: 30 * time.Second,
		DiscoveryMarketLimit:  50,
		DiscoveryAssets:       []string{"BTC"},
		MaxConcurrentMarkets:  2,

		WSDialTimeout:           10 * time.Second,
		WSSilenceWarnAfter:      time.Minute,
		WSSilenceDeadAfter:      2 * time.Minute,
		WSReconnectInitialDelay: 2 * time.Second,
		WSReconnectMaxDelay:     30 * time.Second,
		WSReconnectBackoffMult:  2.0,
		WSMessageBufferSize:     100,

		EntryLevels:           []float64{0.34, 0.24, 0.14},
		LevelSize:             10,
		LevelProfitTarget:     0.05,
		MinTimeForLevelEntry:  7 * time.Minute,
		ForceUnwindTime:       5 * time.Minute,
		MaxCompletedCycles:    3,
		HighScalpThreshold:    0.85,
		HighScalpSize:         5,
		HighScalpProfitTarget: 0.02,
		MaxHighScalps:         4,
		ExitDebounce:          time.Second,
		RepriceMinInterval:    time.Second,
		TickInterval:          2 * time.Second,
		MarketGracePeriod:     10 * time.Minute,

		TradingEnabled: false,
		DailyLossLimit: 50,
		BreakerEnabled: false,

		OrderTimeout:      30 * time.Second,
		OrderMaxAttempts:  3,
		PositionSyncEvery: 30 * time.Second,

		WalletPollInterval: time.Minute,

		StorageMode: "console",
	}
}

func TestNew_DryRunWiring(t *testing.T) {
	a, err := New(testConfig(), zap.NewNop(), nil)
	require.NoError(t, err)

	assert.NotNil(t, a.httpServer)
	assert.NotNil(t, a.discoveryService)
	assert.NotNil(t, a.wsManager)
	assert.NotNil(t, a.obManager)
	assert.NotNil(t, a.registry)
	assert.NotNil(t, a.engine)
	assert.NotNil(t, a.killSwitch)
	assert.NotNil(t, a.storage)
	assert.Nil(t, a.breaker, "breaker disabled in config")
	assert.Nil(t, a.walletTracker, "no signing key means no address to track")

	require.NoError(t, a.Shutdown())
}

func TestNew_BreakerSkippedWithoutKey(t *testing.T) {
	cfg := testConfig()
	cfg.BreakerEnabled = true
	cfg.PolygonRPCURL = "https://polygon-rpc.com"

	a, err := New(cfg, zap.NewNop(), nil)
	require.NoError(t, err)
	assert.Nil(t, a.breaker, "no signing key means no address to watch")

	require.NoError(t, a.Shutdown())
}
