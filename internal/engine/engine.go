package engine

import (
	"context"
	"sync"
	"time"

	"github.com/polyquant/polyscalp/internal/exits"
	"github.com/polyquant/polyscalp/internal/ledger"
	"github.com/polyquant/polyscalp/internal/markets"
	"github.com/polyquant/polyscalp/internal/orderbook"
	"github.com/polyquant/polyscalp/internal/risk"
	"github.com/polyquant/polyscalp/internal/storage"
	"github.com/polyquant/polyscalp/internal/strategy"
	"github.com/polyquant/polyscalp/pkg/types"
	"go.uber.org/zap"
)

// OrderClient is the venue slice the engine drives directly.
type OrderClient interface {
	PlaceOrder(ctx context.Context, tokenID, side string, price, size float64, postOnly bool) (*types.OrderAck, error)
	GetOrder(ctx context.Context, orderID string) (*types.OrderQueryResponse, error)
	GetCollateralBalance(ctx context.Context) (float64, error)
}

// FillAwaiter blocks until an order's fill is confirmed.
type FillAwaiter interface {
	AwaitFill(ctx context.Context, ack *types.OrderAck, expectedSize float64) (filledSize, avgPrice float64, err error)
}

// EntryGate is the balance breaker slice: whether entries may run and how to
// feed filled entries back into its threshold.
type EntryGate interface {
	IsEnabled() bool
	RecordEntry(notional float64)
}

// PositionSource reads venue-side position state for reconciliation.
type PositionSource interface {
	GetPositions(ctx context.Context) ([]types.DataAPIPosition, error)
}

// MetadataSource supplies per-token trading parameters for order hygiene.
type MetadataSource interface {
	TokenParams(ctx context.Context, tokenID string) (*markets.TokenParams, error)
}

// Config holds engine wiring.
type Config struct {
	Strategy   *strategy.Strategy
	Registry   *markets.Registry
	Books      *orderbook.Manager
	Ledger     *ledger.Ledger
	Exits      *exits.Coordinator
	Orders     OrderClient
	Fills      FillAwaiter
	KillSwitch *risk.KillSwitch
	Breaker    EntryGate       // optional
	Store      storage.Storage // optional
	Positions  PositionSource  // optional
	Metadata   MetadataSource  // optional
	Logger     *zap.Logger

	TickInterval      time.Duration
	PositionSyncEvery time.Duration
	ForceUnwindTime   time.Duration

	// OnMarketRemoved runs after a market's state is torn down, so the
	// caller can drop feed subscriptions and discovery bookkeeping.
	OnMarketRemoved func(sub *types.MarketSubscription)
}

// marketRuntime is the engine's per-market mutable state. Each market has a
// single evaluation goroutine, so the fields are only written from it; wake
// is a one-slot token that coalesces bursts of book updates into one run.
type marketRuntime struct {
	sub  *types.MarketSubscription
	wake chan struct{}
	stop chan struct{}

	enteredLevels  map[strategy.LevelKey]time.Time
	lastExitIntent time.Time
	gateCrossed    bool
}

// Engine drives one strategy evaluation loop per market: it assembles the
// context from the book mirror and the ledger, runs the strategy, and
// executes whatever single intent comes back.
type Engine struct {
	cfg    *Config
	logger *zap.Logger

	mu       sync.Mutex
	runtimes map[string]*marketRuntime
	stats    types.SessionStats

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an engine.
func New(cfg *Config) *Engine {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 2 * time.Second
	}
	if cfg.PositionSyncEvery <= 0 {
		cfg.PositionSyncEvery = 30 * time.Second
	}

	return &Engine{
		cfg:      cfg,
		logger:   cfg.Logger,
		runtimes: make(map[string]*marketRuntime),
		stats:    types.SessionStats{StartedAt: time.Now()},
	}
}

// Start launches the dispatch, janitor, and position-sync loops.
func (e *Engine) Start(ctx context.Context) error {
	e.ctx, e.cancel = context.WithCancel(ctx)

	e.wg.Add(2)
	go e.dispatchLoop()
	go e.janitorLoop()

	if e.cfg.Positions != nil {
		e.wg.Add(1)
		go e.syncLoop()
	}

	e.logger.Info("engine-started",
		zap.Duration("tick-interval", e.cfg.TickInterval),
		zap.Duration("force-unwind-time", e.cfg.ForceUnwindTime))
	return nil
}

// AddMarket registers a market and starts its evaluation loop. The caller is
// responsible for subscribing the feed; the engine tracks the books.
func (e *Engine) AddMarket(sub *types.MarketSubscription) error {
	if err := e.cfg.Registry.Register(sub); err != nil {
		return err
	}

	e.cfg.Books.Track(sub.MarketID, sub.TokenIDYes)
	e.cfg.Books.Track(sub.MarketID, sub.TokenIDNo)

	rt := &marketRuntime{
		sub:           sub,
		wake:          make(chan struct{}, 1),
		stop:          make(chan struct{}),
		enteredLevels: make(map[strategy.LevelKey]time.Time),
	}

	e.mu.Lock()
	e.runtimes[sub.MarketID] = rt
	e.mu.Unlock()

	e.wg.Add(1)
	go e.marketLoop(rt)
	ActiveMarketLoops.Inc()

	e.logger.Info("market-added",
		zap.String("market-id", sub.MarketID),
		zap.String("slug", sub.MarketSlug),
		zap.Time("end-date", sub.EndDate))
	return nil
}

// RemoveMarket tears a market down immediately, without waiting for the
// retention grace. Used by the control API.
func (e *Engine) RemoveMarket(marketID string) bool {
	e.mu.Lock()
	rt, ok := e.runtimes[marketID]
	if ok {
		delete(e.runtimes, marketID)
	}
	e.mu.Unlock()

	if !ok {
		return false
	}

	close(rt.stop)
	ActiveMarketLoops.Dec()
	e.cfg.Registry.Remove(marketID)
	e.teardown(rt.sub)
	return true
}

// dispatchLoop routes book updates to the owning market's wake token. A full
// token means an evaluation is already pending, so the update coalesces.
func (e *Engine) dispatchLoop() {
	defer e.wg.Done()

	for {
		select {
		case <-e.ctx.Done():
			return
		case top, ok := <-e.cfg.Books.UpdateChan():
			if !ok {
				return
			}

			e.mu.Lock()
			rt, exists := e.runtimes[top.MarketID]
			e.mu.Unlock()
			if !exists {
				continue
			}

			select {
			case rt.wake <- struct{}{}:
				WakeupsTotal.Inc()
			default:
				CoalescedWakeupsTotal.Inc()
			}
		}
	}
}

// marketLoop is the single consumer for one market: evaluations run on book
// updates and on a timer so time-gated transitions fire without feed
// traffic.
func (e *Engine) marketLoop(rt *marketRuntime) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-rt.stop:
			return
		case <-rt.wake:
			e.evaluate(rt)
		case <-ticker.C:
			e.evaluate(rt)
		}
	}
}

// evaluate runs one tick for one market.
func (e *Engine) evaluate(rt *marketRuntime) {
	now := time.Now()
	remaining := rt.sub.EndDate.Sub(now)
	if remaining < 0 {
		// Resolved; the janitor handles removal
		return
	}

	EvaluationsTotal.Inc()

	e.checkRestingExit(rt)

	crossing := false
	if remaining < e.cfg.ForceUnwindTime && !rt.gateCrossed {
		rt.gateCrossed = true
		crossing = true
		e.cfg.Exits.CancelAll(e.ctx, rt.sub.MarketID)
		e.logger.Info("force-unwind-gate-crossed",
			zap.String("market-id", rt.sub.MarketID),
			zap.Duration("remaining", remaining))
	}

	mc, ok := e.buildContext(rt, now, remaining)
	if !ok {
		return
	}
	mc.GateCrossing = crossing

	intent := e.cfg.Strategy.Evaluate(mc)
	if intent == nil {
		return
	}

	e.execute(rt, mc, intent)
}

// buildContext assembles the strategy's view of one market. Returns false
// until both books have prices.
func (e *Engine) buildContext(rt *marketRuntime, now time.Time, remaining time.Duration) (*strategy.MarketContext, bool) {
	yesBid, yesAsk, yesOK := e.cfg.Books.BestPrices(rt.sub.TokenIDYes)
	noBid, noAsk, noOK := e.cfg.Books.BestPrices(rt.sub.TokenIDNo)
	if !yesOK || !noOK {
		return nil, false
	}

	marketID := rt.sub.MarketID
	return &strategy.MarketContext{
		MarketID:        marketID,
		YesTokenID:      rt.sub.TokenIDYes,
		NoTokenID:       rt.sub.TokenIDNo,
		YesBid:          yesBid,
		YesAsk:          yesAsk,
		NoBid:           noBid,
		NoAsk:           noAsk,
		Now:             now,
		TimeRemaining:   remaining,
		Positions:       e.cfg.Ledger.Positions(marketID),
		CompletedCycles: e.cfg.Ledger.CompletedCycles(marketID),
		HighScalpCount:  e.cfg.Ledger.HighScalpCount(marketID),
		TPActive:        e.cfg.Exits.HasActive(marketID),
		LastExitIntent:  rt.lastExitIntent,
		EnteredLevels:   rt.enteredLevels,
	}, true
}

// janitorLoop prunes resolved markets past the retention grace.
func (e *Engine) janitorLoop() {
	defer e.wg.Done()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			for _, sub := range e.cfg.Registry.Prune(time.Now()) {
				e.mu.Lock()
				rt, ok := e.runtimes[sub.MarketID]
				if ok {
					delete(e.runtimes, sub.MarketID)
				}
				e.mu.Unlock()

				if ok {
					close(rt.stop)
					ActiveMarketLoops.Dec()
				}
				e.teardown(sub)
			}
		}
	}
}

// teardown releases all per-market state outside the registry.
func (e *Engine) teardown(sub *types.MarketSubscription) {
	e.cfg.Books.Untrack(sub.TokenIDYes)
	e.cfg.Books.Untrack(sub.TokenIDNo)
	e.cfg.Exits.Remove(sub.MarketID)
	e.cfg.Ledger.Remove(sub.MarketID)

	if e.cfg.OnMarketRemoved != nil {
		e.cfg.OnMarketRemoved(sub)
	}

	e.logger.Info("market-removed",
		zap.String("market-id", sub.MarketID),
		zap.String("slug", sub.MarketSlug))
}

// syncLoop reconciles the ledger against the venue's data API and logs
// session stats.
func (e *Engine) syncLoop() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.PositionSyncEvery)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(e.ctx, 10*time.Second)
			venuePositions, err := e.cfg.Positions.GetPositions(ctx)
			cancel()
			if err != nil {
				e.logger.Warn("position-sync-failed", zap.Error(err))
				continue
			}

			stats := e.Stats()
			e.logger.Info("session-status",
				zap.Int("venue-positions", len(venuePositions)),
				zap.Int("round-trips", stats.RoundTrips),
				zap.Int("wins", stats.Wins),
				zap.Int("losses", stats.Losses),
				zap.Float64("realized-pnl", stats.RealizedPnL))
		}
	}
}

// Stats returns the session's aggregate results.
func (e *Engine) Stats() types.SessionStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// Summaries returns a position summary per active market for the control
// API.
func (e *Engine) Summaries() []types.PositionSummary {
	e.mu.Lock()
	runtimes := make([]*marketRuntime, 0, len(e.runtimes))
	for _, rt := range e.runtimes {
		runtimes = append(runtimes, rt)
	}
	e.mu.Unlock()

	out := make([]types.PositionSummary, 0, len(runtimes))
	for _, rt := range runtimes {
		_, yesAsk, _ := e.cfg.Books.BestPrices(rt.sub.TokenIDYes)
		_, noAsk, _ := e.cfg.Books.BestPrices(rt.sub.TokenIDNo)
		out = append(out, e.cfg.Ledger.Summary(rt.sub.MarketID, yesAsk, noAsk))
	}
	return out
}

// Close stops every loop and waits for them.
func (e *Engine) Close() error {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()

	stats := e.Stats()
	e.logger.Info("engine-closed",
		zap.Int("round-trips", stats.RoundTrips),
		zap.Float64("realized-pnl", stats.RealizedPnL))
	return nil
}
