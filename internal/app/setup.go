package app

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/polyquant/polyscalp/internal/discovery"
	"github.com/polyquant/polyscalp/internal/engine"
	"github.com/polyquant/polyscalp/internal/execution"
	"github.com/polyquant/polyscalp/internal/exits"
	"github.com/polyquant/polyscalp/internal/ledger"
	"github.com/polyquant/polyscalp/internal/markets"
	"github.com/polyquant/polyscalp/internal/orderbook"
	"github.com/polyquant/polyscalp/internal/risk"
	"github.com/polyquant/polyscalp/internal/storage"
	"github.com/polyquant/polyscalp/internal/strategy"
	"github.com/polyquant/polyscalp/pkg/cache"
	"github.com/polyquant/polyscalp/pkg/config"
	"github.com/polyquant/polyscalp/pkg/healthprobe"
	"github.com/polyquant/polyscalp/pkg/httpserver"
	"github.com/polyquant/polyscalp/pkg/types"
	"github.com/polyquant/polyscalp/pkg/wallet"
	"github.com/polyquant/polyscalp/pkg/websocket"
	"go.uber.org/zap"
)

// New creates a new application instance.
func New(cfg *config.Config, logger *zap.Logger, opts *Options) (*App, error) {
	if opts == nil {
		opts = &Options{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	healthChecker := healthprobe.New()

	appCache, err := setupCache(logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup cache: %w", err)
	}

	discoveryClient := discovery.NewClient(cfg.PolymarketGammaURL, cfg.PolymarketCLOBURL, logger)
	discoveryService := setupDiscoveryService(cfg, logger, appCache, opts, discoveryClient)
	wsManager := setupWebSocketManager(cfg, logger)
	obManager := setupOrderbookManager(logger, wsManager)
	registry := markets.NewRegistry(cfg.MaxConcurrentMarkets, logger)

	tradeStorage, err := setupStorage(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup storage: %w", err)
	}

	orderClient, err := setupOrderClient(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup order client: %w", err)
	}

	killSwitch := risk.NewKillSwitch(cfg.DailyLossLimit, logger)

	breaker, err := setupBreaker(ctx, cfg, logger, orderClient)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup balance breaker: %w", err)
	}

	walletTracker, err := setupWalletTracker(cfg, logger, orderClient)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup wallet tracker: %w", err)
	}

	tradingEngine := setupEngine(cfg, logger, appCache, registry, obManager,
		orderClient, killSwitch, breaker, tradeStorage, discoveryService, wsManager)

	httpServer := httpserver.New(&httpserver.Config{
		Port:          cfg.HTTPPort,
		Logger:        logger,
		HealthChecker: healthChecker,
		Engine:        tradingEngine,
		KillSwitch:    killSwitch,
		Breaker:       breaker,
		Registry:      registry,
		Books:         obManager,
		AddMarket:     addMarketFunc(logger, discoveryClient, wsManager, tradingEngine),
	})

	return &App{
		cfg:              cfg,
		logger:           logger,
		healthChecker:    healthChecker,
		httpServer:       httpServer,
		discoveryService: discoveryService,
		wsManager:        wsManager,
		obManager:        obManager,
		registry:         registry,
		engine:           tradingEngine,
		killSwitch:       killSwitch,
		breaker:          breaker,
		walletTracker:    walletTracker,
		storage:          tradeStorage,
		ctx:              ctx,
		cancel:           cancel,
	}, nil
}

func setupCache(logger *zap.Logger) (cache.Cache, error) {
	return cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 10000, // 10x expected max items (1000 markets)
		MaxCost:     1000,  // Maximum 1000 items in cache
		BufferItems: 64,    // Buffer size for Get operations
		Logger:      logger,
	})
}

func setupDiscoveryService(cfg *config.Config, logger *zap.Logger, appCache cache.Cache,
	opts *Options, discoveryClient *discovery.Client) *discovery.Service {

	return discovery.New(&discovery.Config{
		Client:       discoveryClient,
		Cache:        appCache,
		PollInterval: cfg.DiscoveryPollInterval,
		MarketLimit:  cfg.DiscoveryMarketLimit,
		Assets:       cfg.DiscoveryAssets,
		Logger:       logger,
		SingleMarket: opts.SingleMarket,
	})
}

func setupWebSocketManager(cfg *config.Config, logger *zap.Logger) *websocket.Manager {
	return websocket.New(websocket.Config{
		URL:                   cfg.PolymarketWSURL,
		DialTimeout:           cfg.WSDialTimeout,
		SilenceWarnAfter:      cfg.WSSilenceWarnAfter,
		SilenceDeadAfter:      cfg.WSSilenceDeadAfter,
		ReconnectInitialDelay: cfg.WSReconnectInitialDelay,
		ReconnectMaxDelay:     cfg.WSReconnectMaxDelay,
		ReconnectBackoffMult:  cfg.WSReconnectBackoffMult,
		MessageBufferSize:     cfg.WSMessageBufferSize,
		Logger:                logger,
	})
}

func setupOrderbookManager(logger *zap.Logger, wsManager *websocket.Manager) *orderbook.Manager {
	return orderbook.New(&orderbook.Config{
		Logger:         logger,
		MessageChannel: wsManager.MessageChan(),
	})
}

func setupStorage(cfg *config.Config, logger *zap.Logger) (storage.Storage, error) {
	if cfg.StorageMode == "postgres" {
		pgStorage, err := storage.NewPostgresStorage(&storage.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create postgres storage: %w", err)
		}
		return pgStorage, nil
	}

	return storage.NewConsoleStorage(logger), nil
}

func setupOrderClient(cfg *config.Config, logger *zap.Logger) (*execution.OrderClient, error) {
	dryRun := !cfg.TradingEnabled
	if dryRun {
		logger.Info("order-client-in-dry-run-mode",
			zap.String("note", "orders are simulated; set TRADING_ENABLED=true to go live"))
	}

	return execution.NewOrderClient(&execution.OrderClientConfig{
		BaseURL:       cfg.PolymarketCLOBURL,
		APIKey:        cfg.PolymarketAPIKey,
		Secret:        cfg.PolymarketSecret,
		Passphrase:    cfg.PolymarketPassphrase,
		PrivateKey:    cfg.PrivateKey,
		FunderAddress: cfg.FunderAddress,
		Timeout:       cfg.OrderTimeout,
		MaxAttempts:   cfg.OrderMaxAttempts,
		DryRun:        dryRun,
		Logger:        logger,
	})
}

// setupBreaker wires the collateral breaker. It needs an on-chain address to
// watch, so dry-run sessions without a key run without one.
func setupBreaker(ctx context.Context, cfg *config.Config, logger *zap.Logger,
	orderClient *execution.OrderClient) (*risk.BalanceBreaker, error) {

	if !cfg.BreakerEnabled {
		return nil, nil
	}
	if orderClient.Address() == "" {
		logger.Warn("balance-breaker-disabled-no-address",
			zap.String("note", "POLYMARKET_PRIVATE_KEY not set"))
		return nil, nil
	}

	walletClient, err := wallet.NewClient(cfg.PolygonRPCURL, logger)
	if err != nil {
		return nil, fmt.Errorf("create wallet client: %w", err)
	}

	breaker, err := risk.NewBreaker(&risk.BreakerConfig{
		CheckInterval:  cfg.BreakerCheckInterval,
		SizeMultiplier: cfg.BreakerSizeMultiplier,
		MinAbsolute:    cfg.BreakerMinAbsolute,
		Hysteresis:     cfg.BreakerHysteresis,
		WalletClient:   walletClient,
		Address:        common.HexToAddress(orderClient.Address()),
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create breaker: %w", err)
	}

	breaker.Start(ctx)
	return breaker, nil
}

// setupWalletTracker wires the balance/position gauges. Pure observability,
// so sessions without a signing key simply skip it.
func setupWalletTracker(cfg *config.Config, logger *zap.Logger,
	orderClient *execution.OrderClient) (*wallet.Tracker, error) {

	if orderClient.Address() == "" {
		return nil, nil
	}

	walletClient, err := wallet.NewClient(cfg.PolygonRPCURL, logger)
	if err != nil {
		return nil, fmt.Errorf("create wallet client: %w", err)
	}

	return wallet.NewTracker(&wallet.TrackerConfig{
		Client:       walletClient,
		Address:      common.HexToAddress(orderClient.Address()),
		PollInterval: cfg.WalletPollInterval,
		Logger:       logger,
	})
}

// addMarketFunc resolves a slug through Gamma and brings the market under
// management, feed first. Backs the control API's POST /api/markets.
func addMarketFunc(logger *zap.Logger, discoveryClient *discovery.Client,
	wsManager *websocket.Manager, tradingEngine *engine.Engine) httpserver.AddMarketFunc {

	return func(ctx context.Context, slug string) error {
		market, err := discoveryClient.FetchMarketBySlug(ctx, slug)
		if err != nil {
			return fmt.Errorf("fetch market %q: %w", slug, err)
		}

		sub, err := discovery.SubscriptionFor(market)
		if err != nil {
			return fmt.Errorf("market %q: %w", slug, err)
		}

		tokenIDs := []string{sub.TokenIDYes, sub.TokenIDNo}
		if err := wsManager.Subscribe(ctx, tokenIDs); err != nil {
			return fmt.Errorf("subscribe feed: %w", err)
		}

		if err := tradingEngine.AddMarket(sub); err != nil {
			if unsubErr := wsManager.Unsubscribe(ctx, tokenIDs); unsubErr != nil {
				logger.Warn("unsubscribe-failed",
					zap.String("market-id", sub.MarketID),
					zap.Error(unsubErr))
			}
			return err
		}
		return nil
	}
}

func setupEngine(cfg *config.Config, logger *zap.Logger, appCache cache.Cache,
	registry *markets.Registry, obManager *orderbook.Manager,
	orderClient *execution.OrderClient, killSwitch *risk.KillSwitch,
	breaker *risk.BalanceBreaker, tradeStorage storage.Storage,
	discoveryService *discovery.Service, wsManager *websocket.Manager) *engine.Engine {

	metadataClient := markets.NewMetadataClient(cfg.PolymarketCLOBURL)
	cachedMetadata := markets.NewCachedMetadataClient(metadataClient, appCache)

	fillWatcher := execution.NewFillWatcher(orderClient, logger, &execution.FillWatcherConfig{
		FillTimeout: cfg.OrderTimeout,
	})

	var positions engine.PositionSource
	if cfg.TradingEnabled && orderClient.Address() != "" {
		positions = execution.NewPositionsClient(cfg.PolymarketDataAPIURL, orderClient.Address(), logger)
	}

	engineCfg := &engine.Config{
		Strategy: strategy.New(strategy.Config{
			EntryLevels:           cfg.EntryLevels,
			LevelSize:             cfg.LevelSize,
			LevelProfitTarget:     cfg.LevelProfitTarget,
			MinTimeForLevelEntry:  cfg.MinTimeForLevelEntry,
			ForceUnwindTime:       cfg.ForceUnwindTime,
			MaxCompletedCycles:    cfg.MaxCompletedCycles,
			HighScalpThreshold:    cfg.HighScalpThreshold,
			HighScalpSize:         cfg.HighScalpSize,
			HighScalpProfitTarget: cfg.HighScalpProfitTarget,
			MaxHighScalps:         cfg.MaxHighScalps,
			ExitDebounce:          cfg.ExitDebounce,
		}),
		Registry: registry,
		Books:    obManager,
		Ledger:   ledger.New(logger),
		Exits: exits.New(&exits.Config{
			Client:             orderClient,
			Logger:             logger,
			RepriceMinInterval: cfg.RepriceMinInterval,
		}),
		Orders:            orderClient,
		Fills:             fillWatcher,
		KillSwitch:        killSwitch,
		Store:             tradeStorage,
		Positions:         positions,
		Metadata:          cachedMetadata,
		Logger:            logger,
		TickInterval:      cfg.TickInterval,
		PositionSyncEvery: cfg.PositionSyncEvery,
		ForceUnwindTime:   cfg.ForceUnwindTime,
	}
	if breaker != nil {
		engineCfg.Breaker = breaker
	}

	// A resolved window drops its feed subscription and frees its slug for
	// the next 15-minute cycle
	engineCfg.OnMarketRemoved = func(sub *types.MarketSubscription) {
		if err := wsManager.Unsubscribe(context.Background(),
			[]string{sub.TokenIDYes, sub.TokenIDNo}); err != nil {
			logger.Warn("unsubscribe-failed",
				zap.String("market-id", sub.MarketID),
				zap.Error(err))
		}
		discoveryService.Forget(sub.MarketSlug)
	}

	return engine.New(engineCfg)
}
