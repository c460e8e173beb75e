package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Application
	LogLevel string
	HTTPPort string

	// Polymarket API
	PolymarketWSURL      string
	PolymarketCLOBURL    string
	PolymarketGammaURL   string
	PolymarketDataAPIURL string
	PolymarketAPIKey     string
	PolymarketSecret     string
	PolymarketPassphrase string
	PrivateKey           string // hex ECDSA key for order signing
	FunderAddress        string // proxy/funder address; empty for EOA mode
	PolygonRPCURL        string

	// Market Discovery
	DiscoveryPollInterval time.Duration
	DiscoveryMarketLimit  int
	DiscoveryAssets       []string // asset tickers for the up/down series
	MaxConcurrentMarkets  int

	// WebSocket
	WSDialTimeout           time.Duration
	WSSilenceWarnAfter      time.Duration
	WSSilenceDeadAfter      time.Duration
	WSReconnectInitialDelay time.Duration
	WSReconnectMaxDelay     time.Duration
	WSReconnectBackoffMult  float64
	WSMessageBufferSize     int

	// Strategy
	EntryLevels           []float64
	LevelSize             float64
	LevelProfitTarget     float64
	MinTimeForLevelEntry  time.Duration
	ForceUnwindTime       time.Duration
	MaxCompletedCycles    int
	HighScalpThreshold    float64
	HighScalpSize         float64
	HighScalpProfitTarget float64
	MaxHighScalps         int
	ExitDebounce          time.Duration
	RepriceMinInterval    time.Duration
	TickInterval          time.Duration
	MarketGracePeriod     time.Duration

	// Risk
	TradingEnabled        bool
	DailyLossLimit        float64
	BreakerEnabled        bool
	BreakerCheckInterval  time.Duration
	BreakerSizeMultiplier float64
	BreakerMinAbsolute    float64
	BreakerHysteresis     float64

	// Execution
	OrderTimeout      time.Duration
	OrderMaxAttempts  int
	PositionSyncEvery time.Duration

	// Observability
	WalletPollInterval time.Duration

	// Storage
	StorageMode  string // "postgres" or "console"
	PostgresHost string
	PostgresPort string
	PostgresUser string
	PostgresPass string
	PostgresDB   string
	PostgresSSL  string
}

// LoadFromEnv loads configuration from environment variables with defaults.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		// Application defaults
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		HTTPPort: getEnvOrDefault("HTTP_PORT", "8080"),

		// Polymarket API defaults
		PolymarketWSURL:      getEnvOrDefault("POLYMARKET_WS_URL", "wss://ws-subscriptions-clob.polymarket.com/ws/market"),
		PolymarketCLOBURL:    getEnvOrDefault("POLYMARKET_CLOB_URL", "https://clob.polymarket.com"),
		PolymarketGammaURL:   getEnvOrDefault("POLYMARKET_GAMMA_API_URL", "https://gamma-api.polymarket.com"),
		PolymarketDataAPIURL: getEnvOrDefault("POLYMARKET_DATA_API_URL", "https://data-api.polymarket.com"),
		PolymarketAPIKey:     os.Getenv("POLYMARKET_API_KEY"),
		PolymarketSecret:     os.Getenv("POLYMARKET_SECRET"),
		PolymarketPassphrase: os.Getenv("POLYMARKET_PASSPHRASE"),
		PrivateKey:           os.Getenv("POLYMARKET_PRIVATE_KEY"),
		FunderAddress:        os.Getenv("POLYMARKET_FUNDER_ADDRESS"),
		PolygonRPCURL:        getEnvOrDefault("POLYGON_RPC_URL", "https://polygon-rpc.com"),

		// Market Discovery defaults
		DiscoveryPollInterval: getDurationOrDefault("DISCOVERY_POLL_INTERVAL", 30*time.Second),
		DiscoveryMarketLimit:  getIntOrDefault("DISCOVERY_MARKET_LIMIT", 50),
		DiscoveryAssets:       getStringSliceOrDefault("DISCOVERY_ASSETS", []string{"BTC"}),
		MaxConcurrentMarkets:  getIntOrDefault("MAX_CONCURRENT_MARKETS", 2),

		// WebSocket defaults
		WSDialTimeout:           getDurationOrDefault("WS_DIAL_TIMEOUT", 10*time.Second),
		WSSilenceWarnAfter:      getDurationOrDefault("WS_SILENCE_WARN_AFTER", 60*time.Second),
		WSSilenceDeadAfter:      getDurationOrDefault("WS_SILENCE_DEAD_AFTER", 120*time.Second),
		WSReconnectInitialDelay: getDurationOrDefault("WS_RECONNECT_INITIAL_DELAY", 2*time.Second),
		WSReconnectMaxDelay:     getDurationOrDefault("WS_RECONNECT_MAX_DELAY", 30*time.Second),
		WSReconnectBackoffMult:  getFloat64OrDefault("WS_RECONNECT_BACKOFF_MULTIPLIER", 2.0),
		WSMessageBufferSize:     getIntOrDefault("WS_MESSAGE_BUFFER_SIZE", 1000),

		// Strategy defaults
		EntryLevels:           getFloat64SliceOrDefault("ENTRY_LEVELS", []float64{0.34, 0.24, 0.14}),
		LevelSize:             getFloat64OrDefault("LEVEL_SIZE", 10.0),
		LevelProfitTarget:     getFloat64OrDefault("LEVEL_PROFIT_TARGET", 0.05),
		MinTimeForLevelEntry:  getDurationOrDefault("MIN_TIME_FOR_LEVEL_ENTRY", 7*time.Minute),
		ForceUnwindTime:       getDurationOrDefault("FORCE_UNWIND_TIME", 5*time.Minute),
		MaxCompletedCycles:    getIntOrDefault("MAX_COMPLETED_CYCLES", 3),
		HighScalpThreshold:    getFloat64OrDefault("HIGH_SCALP_THRESHOLD", 0.85),
		HighScalpSize:         getFloat64OrDefault("HIGH_SCALP_SIZE", 5.0),
		HighScalpProfitTarget: getFloat64OrDefault("HIGH_SCALP_PROFIT_TARGET", 0.02),
		MaxHighScalps:         getIntOrDefault("MAX_HIGH_SCALPS", 4),
		ExitDebounce:          getDurationOrDefault("EXIT_DEBOUNCE", 1*time.Second),
		RepriceMinInterval:    getDurationOrDefault("REPRICE_MIN_INTERVAL", 1*time.Second),
		TickInterval:          getDurationOrDefault("TICK_INTERVAL", 2*time.Second),
		MarketGracePeriod:     getDurationOrDefault("MARKET_GRACE_PERIOD", 600*time.Second),

		// Risk defaults
		TradingEnabled:        getBoolOrDefault("TRADING_ENABLED", false),
		DailyLossLimit:        getFloat64OrDefault("DAILY_LOSS_LIMIT_USDC", 50.0),
		BreakerEnabled:        getBoolOrDefault("BALANCE_BREAKER_ENABLED", true),
		BreakerCheckInterval:  getDurationOrDefault("BALANCE_BREAKER_CHECK_INTERVAL", 30*time.Second),
		BreakerSizeMultiplier: getFloat64OrDefault("BALANCE_BREAKER_SIZE_MULTIPLIER", 3.0),
		BreakerMinAbsolute:    getFloat64OrDefault("BALANCE_BREAKER_MIN_ABSOLUTE", 10.0),
		BreakerHysteresis:     getFloat64OrDefault("BALANCE_BREAKER_HYSTERESIS", 1.5),

		// Execution defaults
		OrderTimeout:      getDurationOrDefault("ORDER_TIMEOUT", 30*time.Second),
		OrderMaxAttempts:  getIntOrDefault("ORDER_MAX_ATTEMPTS", 3),
		PositionSyncEvery: getDurationOrDefault("POSITION_SYNC_INTERVAL", 30*time.Second),

		// Observability defaults
		WalletPollInterval: getDurationOrDefault("WALLET_POLL_INTERVAL", 60*time.Second),

		// Storage defaults
		StorageMode:  getEnvOrDefault("STORAGE_MODE", "console"),
		PostgresHost: getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort: getEnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresUser: getEnvOrDefault("POSTGRES_USER", "polyscalp"),
		PostgresPass: getEnvOrDefault("POSTGRES_PASSWORD", "polyscalp123"),
		PostgresDB:   getEnvOrDefault("POSTGRES_DB", "polyscalp"),
		PostgresSSL:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
	}

	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are valid.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}

	if c.PolymarketWSURL == "" {
		return fmt.Errorf("POLYMARKET_WS_URL cannot be empty")
	}

	if c.PolymarketCLOBURL == "" {
		return fmt.Errorf("POLYMARKET_CLOB_URL cannot be empty")
	}

	if c.PolymarketGammaURL == "" {
		return fmt.Errorf("POLYMARKET_GAMMA_API_URL cannot be empty")
	}

	if len(c.EntryLevels) == 0 {
		return fmt.Errorf("ENTRY_LEVELS cannot be empty")
	}
	for _, l := range c.EntryLevels {
		if l <= 0 || l >= 1 {
			return fmt.Errorf("ENTRY_LEVELS values must be between 0 and 1, got %f", l)
		}
	}

	if c.LevelSize <= 0 {
		return fmt.Errorf("LEVEL_SIZE must be positive, got %f", c.LevelSize)
	}

	if c.LevelProfitTarget <= 0 || c.LevelProfitTarget >= 1 {
		return fmt.Errorf("LEVEL_PROFIT_TARGET must be between 0 and 1, got %f", c.LevelProfitTarget)
	}

	if c.HighScalpThreshold <= 0 || c.HighScalpThreshold >= 1 {
		return fmt.Errorf("HIGH_SCALP_THRESHOLD must be between 0 and 1, got %f", c.HighScalpThreshold)
	}

	if c.ForceUnwindTime >= c.MinTimeForLevelEntry {
		return fmt.Errorf("FORCE_UNWIND_TIME (%s) must be below MIN_TIME_FOR_LEVEL_ENTRY (%s)",
			c.ForceUnwindTime, c.MinTimeForLevelEntry)
	}

	if c.MaxCompletedCycles <= 0 {
		return fmt.Errorf("MAX_COMPLETED_CYCLES must be positive, got %d", c.MaxCompletedCycles)
	}

	if c.MaxConcurrentMarkets <= 0 {
		return fmt.Errorf("MAX_CONCURRENT_MARKETS must be positive, got %d", c.MaxConcurrentMarkets)
	}

	if c.DailyLossLimit <= 0 {
		return fmt.Errorf("DAILY_LOSS_LIMIT_USDC must be positive, got %f", c.DailyLossLimit)
	}

	if c.TradingEnabled && c.PrivateKey == "" {
		return fmt.Errorf("POLYMARKET_PRIVATE_KEY required when TRADING_ENABLED=true")
	}

	if c.StorageMode != "console" && c.StorageMode != "postgres" {
		return fmt.Errorf("STORAGE_MODE must be 'console' or 'postgres', got %q", c.StorageMode)
	}

	return nil
}

func getEnvOrDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}

	return floatVal
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	boolVal, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return boolVal
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func getFloat64SliceOrDefault(key string, defaultValue []float64) []float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parts := strings.Split(value, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return defaultValue
		}
		out = append(out, f)
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
