package engine

import (
	"math"
	"strings"
	"time"

	"github.com/polyquant/polyscalp/internal/strategy"
	"github.com/polyquant/polyscalp/pkg/types"
	"go.uber.org/zap"
)

// execute carries out the single intent an evaluation produced. Entries are
// gated by the kill switch and the balance breaker; risk-reducing intents
// always run.
func (e *Engine) execute(rt *marketRuntime, mc *strategy.MarketContext, intent strategy.Intent) {
	switch in := intent.(type) {
	case strategy.EnterLevel:
		if !e.entriesAllowed() {
			return
		}
		e.executeEntry(rt, in.Side, in.TokenID, in.Price, in.Size,
			types.ClassLevel, in.ProfitTarget, in.Level)

	case strategy.EnterHighScalp:
		if !e.entriesAllowed() {
			return
		}
		e.executeEntry(rt, in.Side, in.TokenID, in.Price, in.Size,
			types.ClassHighScalp, in.ProfitTarget, 0)

	case strategy.PlaceTPLimit:
		rt.lastExitIntent = time.Now()
		err := e.cfg.Exits.PlaceOrReprice(e.ctx, rt.sub.MarketID,
			in.Side, in.OppositeToken, in.Price, in.Size)
		if err != nil {
			e.logger.Warn("tp-intent-failed",
				zap.String("market-id", rt.sub.MarketID),
				zap.Error(err))
		}

	case strategy.Exit:
		rt.lastExitIntent = time.Now()
		e.executeExit(rt, in)
	}
}

// entriesAllowed applies the kill switch and balance breaker to new risk.
func (e *Engine) entriesAllowed() bool {
	if !e.cfg.KillSwitch.TradingAllowed() {
		BlockedEntriesTotal.WithLabelValues("kill-switch").Inc()
		return false
	}
	if e.cfg.Breaker != nil && !e.cfg.Breaker.IsEnabled() {
		BlockedEntriesTotal.WithLabelValues("balance-breaker").Inc()
		return false
	}
	return true
}

// executeEntry places a marketable BUY and records the position on the
// confirmed fill. The limit sits at the trigger price, so it crosses the
// book immediately; any remainder is cancelled by the venue.
func (e *Engine) executeEntry(rt *marketRuntime, side types.Side, tokenID string,
	price, size float64, class types.PositionClass, profitTarget, level float64) {

	marketID := rt.sub.MarketID

	if e.cfg.Metadata != nil {
		params, err := e.cfg.Metadata.TokenParams(e.ctx, tokenID)
		if err == nil && params != nil {
			if size < params.MinOrderSize {
				BlockedEntriesTotal.WithLabelValues("min-order-size").Inc()
				e.logger.Warn("entry-below-min-order-size",
					zap.String("market-id", marketID),
					zap.Float64("size", size),
					zap.Float64("min-order-size", params.MinOrderSize))
				return
			}
			if params.TickSize > 0 {
				price = math.Round(price/params.TickSize) * params.TickSize
			}
		}
	}

	ack, err := e.cfg.Orders.PlaceOrder(e.ctx, tokenID, "BUY", price, size, false)
	if err != nil {
		IntentFailuresTotal.WithLabelValues("entry").Inc()
		e.logger.Warn("entry-order-failed",
			zap.String("market-id", marketID),
			zap.String("side", string(side)),
			zap.Float64("price", price),
			zap.Error(err))
		return
	}

	// The slot is burned once the venue accepts the order. An entry whose
	// fill confirmation times out must not be re-sent on the next tick.
	if class == types.ClassLevel {
		rt.enteredLevels[strategy.LevelKey{Side: side, Level: level}] = time.Now()
	}

	filledSize, fillPrice, err := e.cfg.Fills.AwaitFill(e.ctx, ack, size)
	if err != nil {
		IntentFailuresTotal.WithLabelValues("entry-fill").Inc()
		e.logger.Warn("entry-fill-unconfirmed",
			zap.String("market-id", marketID),
			zap.String("order-id", ack.OrderID),
			zap.Error(err))
		return
	}
	if fillPrice <= 0 {
		fillPrice = price
	}

	e.cfg.Ledger.OnFill(marketID, side, fillPrice, filledSize,
		class, profitTarget, level, ack.OrderID)

	if e.cfg.Breaker != nil {
		e.cfg.Breaker.RecordEntry(fillPrice * filledSize)
	}

	EntriesTotal.WithLabelValues(string(class)).Inc()
	e.logger.Info("entry-filled",
		zap.String("market-id", marketID),
		zap.String("side", string(side)),
		zap.String("class", string(class)),
		zap.Float64("price", fillPrice),
		zap.Float64("size", filledSize))
}

// executeExit unwinds by buying the opposite token at market. When
// collateral is short the fallback is a direct SELL of the held token.
func (e *Engine) executeExit(rt *marketRuntime, in strategy.Exit) {
	marketID := rt.sub.MarketID

	if in.Urgency == strategy.UrgencyCritical {
		e.cfg.Exits.CancelAll(e.ctx, marketID)
	}

	class := types.ClassLevel
	if in.HighScalp {
		class = types.ClassHighScalp
	}

	// Check collateral before spending it on the unwind BUY; a short
	// balance goes straight to the SELL fallback instead of bouncing off
	// the venue first.
	if in.FallbackToken != "" && in.FallbackPrice > 0 {
		balance, err := e.cfg.Orders.GetCollateralBalance(e.ctx)
		if err != nil {
			e.logger.Debug("collateral-check-failed",
				zap.String("market-id", marketID),
				zap.Error(err))
		} else if balance < in.Price*in.Size {
			e.logger.Warn("collateral-short-for-unwind",
				zap.String("market-id", marketID),
				zap.Float64("balance", balance),
				zap.Float64("required", in.Price*in.Size))
			e.executeSellFallback(rt, in, class)
			return
		}
	}

	ack, err := e.cfg.Orders.PlaceOrder(e.ctx, in.OppositeToken, "BUY", in.Price, in.Size, false)
	if err != nil {
		if types.IsInsufficientBalance(err) && in.FallbackToken != "" && in.FallbackPrice > 0 {
			e.executeSellFallback(rt, in, class)
			return
		}
		if types.IsMinNotional(err) {
			e.logger.Warn("exit-below-min-notional",
				zap.String("market-id", marketID),
				zap.Float64("price", in.Price),
				zap.Float64("size", in.Size))
			return
		}
		IntentFailuresTotal.WithLabelValues("exit").Inc()
		e.logger.Error("exit-order-failed",
			zap.String("market-id", marketID),
			zap.String("side", string(in.Side)),
			zap.Error(err))
		return
	}

	_, fillPrice, err := e.cfg.Fills.AwaitFill(e.ctx, ack, in.Size)
	if err != nil {
		IntentFailuresTotal.WithLabelValues("exit-fill").Inc()
		e.logger.Warn("exit-fill-unconfirmed",
			zap.String("market-id", marketID),
			zap.String("order-id", ack.OrderID),
			zap.Error(err))
		return
	}
	if fillPrice <= 0 {
		fillPrice = in.Price
	}

	e.handleExitFill(rt, in.Side, class, fillPrice, true)
}

// executeSellFallback dumps the held token directly when the unwind BUY
// cannot be funded. Realizes at the bid instead of locking the 1.00 payoff.
func (e *Engine) executeSellFallback(rt *marketRuntime, in strategy.Exit, class types.PositionClass) {
	marketID := rt.sub.MarketID
	ExitFallbacksTotal.Inc()

	e.logger.Warn("exit-falling-back-to-sell",
		zap.String("market-id", marketID),
		zap.String("side", string(in.Side)),
		zap.Float64("bid", in.FallbackPrice))

	ack, err := e.cfg.Orders.PlaceOrder(e.ctx, in.FallbackToken, "SELL", in.FallbackPrice, in.Size, false)
	if err != nil {
		IntentFailuresTotal.WithLabelValues("exit-fallback").Inc()
		e.logger.Error("sell-fallback-failed",
			zap.String("market-id", marketID),
			zap.Error(err))
		return
	}

	_, fillPrice, err := e.cfg.Fills.AwaitFill(e.ctx, ack, in.Size)
	if err != nil {
		IntentFailuresTotal.WithLabelValues("exit-fallback-fill").Inc()
		e.logger.Warn("sell-fallback-unconfirmed",
			zap.String("order-id", ack.OrderID),
			zap.Error(err))
		return
	}
	if fillPrice <= 0 {
		fillPrice = in.FallbackPrice
	}

	e.handleExitFill(rt, in.Side, class, fillPrice, false)
}

// checkRestingExit looks at the market's resting TP order and converts a
// fill into ledger and storage updates. Simulated orders fill when the book
// reaches their limit.
func (e *Engine) checkRestingExit(rt *marketRuntime) {
	marketID := rt.sub.MarketID

	orderID, side, price, _, ok := e.cfg.Exits.Active(marketID)
	if !ok {
		return
	}

	filled := false
	fillPrice := price

	if strings.HasPrefix(orderID, "sim-") {
		oppToken := rt.sub.TokenIDNo
		if side == types.SideNo {
			oppToken = rt.sub.TokenIDYes
		}
		if _, ask, ok := e.cfg.Books.BestPrices(oppToken); ok && ask > 0 && ask <= price {
			filled = true
			fillPrice = ask
		}
	} else {
		resp, err := e.cfg.Orders.GetOrder(e.ctx, orderID)
		if err != nil {
			e.logger.Debug("tp-status-check-failed",
				zap.String("order-id", orderID),
				zap.Error(err))
			return
		}
		if resp.Size > 0 && resp.SizeFilled >= resp.Size-0.001 {
			filled = true
			if resp.Price > 0 {
				fillPrice = resp.Price
			}
		}
	}

	if !filled {
		return
	}

	fillSide, _, ok := e.cfg.Exits.OnExitFill(marketID)
	if !ok {
		return
	}

	// TP limits only ever cover the LEVEL stack
	e.handleExitFill(rt, fillSide, types.ClassLevel, fillPrice, true)
}

// handleExitFill retires the closed positions from the ledger, books the
// round trip, and clears the side's level debounce.
func (e *Engine) handleExitFill(rt *marketRuntime, side types.Side,
	class types.PositionClass, exitPrice float64, unwound bool) {

	marketID := rt.sub.MarketID

	removed := e.cfg.Ledger.OnExitFill(marketID, side, class)
	if len(removed) == 0 {
		return
	}

	var totalSize, weighted float64
	enteredAt := removed[0].EntryTime
	for _, p := range removed {
		totalSize += p.Size
		weighted += p.EntryPrice * p.Size
		if p.EntryTime.Before(enteredAt) {
			enteredAt = p.EntryTime
		}
	}
	avgEntry := weighted / totalSize

	var pnl float64
	if unwound {
		// Holding both sides pays 1.00 at resolution
		pnl = (1 - avgEntry - exitPrice) * totalSize
	} else {
		pnl = (exitPrice - avgEntry) * totalSize
	}

	for key := range rt.enteredLevels {
		if key.Side == side {
			delete(rt.enteredLevels, key)
		}
	}

	rtRecord := &types.RoundTrip{
		MarketID:   marketID,
		MarketSlug: rt.sub.MarketSlug,
		Side:       side,
		Class:      class,
		Size:       totalSize,
		AvgEntry:   avgEntry,
		ExitPrice:  exitPrice,
		PnL:        pnl,
		EnteredAt:  enteredAt,
		ExitedAt:   time.Now(),
		Unwound:    unwound,
	}

	e.mu.Lock()
	e.stats.RoundTrips++
	if pnl >= 0 {
		e.stats.Wins++
	} else {
		e.stats.Losses++
	}
	e.stats.RealizedPnL += pnl
	e.mu.Unlock()

	e.cfg.KillSwitch.RecordPnL(pnl)

	result := "win"
	if pnl < 0 {
		result = "loss"
	}
	RoundTripsTotal.WithLabelValues(result).Inc()

	if e.cfg.Store != nil {
		if err := e.cfg.Store.StoreRoundTrip(e.ctx, rtRecord); err != nil {
			e.logger.Warn("round-trip-store-failed",
				zap.String("market-id", marketID),
				zap.Error(err))
		}
	}

	e.logger.Info("round-trip-closed",
		zap.String("market-id", marketID),
		zap.String("side", string(side)),
		zap.String("class", string(class)),
		zap.Float64("avg-entry", avgEntry),
		zap.Float64("exit-price", exitPrice),
		zap.Float64("size", totalSize),
		zap.Float64("pnl", pnl),
		zap.Bool("unwound", unwound))
}

// EmergencyUnwind closes every open position in a market at market,
// regardless of time remaining or targets. Control API action.
func (e *Engine) EmergencyUnwind(marketID string) bool {
	e.mu.Lock()
	rt, ok := e.runtimes[marketID]
	e.mu.Unlock()
	if !ok {
		return false
	}

	e.cfg.Exits.CancelAll(e.ctx, marketID)

	for _, side := range []types.Side{types.SideYes, types.SideNo} {
		for _, class := range []types.PositionClass{types.ClassLevel, types.ClassHighScalp} {
			var total float64
			for _, p := range e.cfg.Ledger.Positions(marketID) {
				if p.Side == side && p.Class == class {
					total += p.Size
				}
			}
			if total == 0 {
				continue
			}

			oppToken := rt.sub.TokenIDNo
			ownToken := rt.sub.TokenIDYes
			if side == types.SideNo {
				oppToken = rt.sub.TokenIDYes
				ownToken = rt.sub.TokenIDNo
			}
			_, oppAsk, okAsk := e.cfg.Books.BestPrices(oppToken)
			ownBid, _, _ := e.cfg.Books.BestPrices(ownToken)
			if !okAsk || oppAsk <= 0 {
				continue
			}

			e.executeExit(rt, strategy.Exit{
				Side:          side,
				OppositeToken: oppToken,
				Price:         oppAsk,
				Size:          total,
				HighScalp:     class == types.ClassHighScalp,
				Urgency:       strategy.UrgencyCritical,
				FallbackToken: ownToken,
				FallbackPrice: ownBid,
			})
		}
	}
	return true
}
