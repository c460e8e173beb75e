package app

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Run starts the application and blocks until shutdown.
func (a *App) Run() error {
	mode := "dry-run"
	if a.cfg.TradingEnabled {
		mode = "live"
	}

	a.logger.Info("application-starting",
		zap.String("mode", mode),
		zap.Strings("assets", a.cfg.DiscoveryAssets),
		zap.Float64s("entry-levels", a.cfg.EntryLevels),
		zap.String("log-level", a.cfg.LogLevel))

	// Start all components
	err := a.startComponents()
	if err != nil {
		return err
	}

	// Mark as ready
	a.healthChecker.SetReady(true)

	a.logger.Info("application-ready",
		zap.String("http-addr", ":"+a.cfg.HTTPPort),
		zap.String("ws-url", a.cfg.PolymarketWSURL))

	// Wait for shutdown signal
	return a.waitForShutdown()
}

func (a *App) startComponents() error {
	// Start HTTP server
	a.wg.Add(1)
	go a.runHTTPServer()

	// Give HTTP server a moment to start
	time.Sleep(100 * time.Millisecond)

	// Start discovery service
	a.wg.Add(1)
	go a.runDiscoveryService()

	// Start WebSocket manager
	err := a.wsManager.Start()
	if err != nil {
		return fmt.Errorf("start websocket manager: %w", err)
	}

	// Start market subscription handler
	a.wg.Add(1)
	go a.handleNewMarkets()

	// Start orderbook manager
	err = a.obManager.Start(a.ctx)
	if err != nil {
		return fmt.Errorf("start orderbook manager: %w", err)
	}

	// Start wallet tracker if one was wired
	if a.walletTracker != nil {
		a.wg.Add(1)
		go a.runWalletTracker()
	}

	// Start trading engine
	err = a.engine.Start(a.ctx)
	if err != nil {
		return fmt.Errorf("start engine: %w", err)
	}

	return nil
}

func (a *App) runHTTPServer() {
	defer a.wg.Done()
	err := a.httpServer.Start()
	if err != nil {
		a.logger.Error("http-server-error", zap.Error(err))
	}
}

func (a *App) runDiscoveryService() {
	defer a.wg.Done()
	err := a.discoveryService.Run(a.ctx)
	if err != nil && !errors.Is(err, a.ctx.Err()) {
		a.logger.Error("discovery-service-error", zap.Error(err))
	}
}

func (a *App) runWalletTracker() {
	defer a.wg.Done()
	err := a.walletTracker.Run(a.ctx)
	if err != nil && !errors.Is(err, a.ctx.Err()) {
		a.logger.Error("wallet-tracker-error", zap.Error(err))
	}
}

func (a *App) waitForShutdown() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		a.logger.Info("shutdown-signal-received", zap.String("signal", sig.String()))
	case <-a.ctx.Done():
		a.logger.Info("context-cancelled")
	}

	return a.Shutdown()
}
