package app

import (
	"context"
	"sync"

	"github.com/polyquant/polyscalp/internal/discovery"
	"github.com/polyquant/polyscalp/internal/engine"
	"github.com/polyquant/polyscalp/internal/markets"
	"github.com/polyquant/polyscalp/internal/orderbook"
	"github.com/polyquant/polyscalp/internal/risk"
	"github.com/polyquant/polyscalp/internal/storage"
	"github.com/polyquant/polyscalp/pkg/config"
	"github.com/polyquant/polyscalp/pkg/healthprobe"
	"github.com/polyquant/polyscalp/pkg/httpserver"
	"github.com/polyquant/polyscalp/pkg/wallet"
	"github.com/polyquant/polyscalp/pkg/websocket"
	"go.uber.org/zap"
)

// App is the main application orchestrator.
type App struct {
	cfg              *config.Config
	logger           *zap.Logger
	healthChecker    *healthprobe.HealthChecker
	httpServer       *httpserver.Server
	discoveryService *discovery.Service
	wsManager        *websocket.Manager
	obManager        *orderbook.Manager
	registry         *markets.Registry
	engine           *engine.Engine
	killSwitch       *risk.KillSwitch
	breaker          *risk.BalanceBreaker
	walletTracker    *wallet.Tracker
	storage          storage.Storage
	ctx              context.Context
	cancel           context.CancelFunc
	wg               sync.WaitGroup
}

// Options holds application options.
type Options struct {
	SingleMarket string // For debugging: slug of single market to track
}
