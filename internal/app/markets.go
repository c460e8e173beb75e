package app

import (
	"github.com/polyquant/polyscalp/internal/discovery"
	"github.com/polyquant/polyscalp/pkg/types"
	"go.uber.org/zap"
)

// handleNewMarkets subscribes to new markets as they are discovered and
// hands them to the engine.
func (a *App) handleNewMarkets() {
	defer a.wg.Done()

	for {
		select {
		case <-a.ctx.Done():
			return
		case market, ok := <-a.discoveryService.NewMarketsChan():
			if !ok {
				return
			}

			a.subscribeToMarket(market)
		}
	}
}

func (a *App) subscribeToMarket(market *types.Market) {
	sub, err := discovery.SubscriptionFor(market)
	if err != nil {
		a.logger.Warn("market-missing-tokens",
			zap.String("market-id", market.ID),
			zap.String("slug", market.Slug),
			zap.Error(err))
		return
	}

	// Feed first, so the books are warm by the time the engine evaluates
	tokenIDs := []string{sub.TokenIDYes, sub.TokenIDNo}
	err = a.wsManager.Subscribe(a.ctx, tokenIDs)
	if err != nil {
		a.logger.Error("subscribe-failed",
			zap.String("market-id", market.ID),
			zap.String("slug", market.Slug),
			zap.Error(err))
		return
	}

	err = a.engine.AddMarket(sub)
	if err != nil {
		a.logger.Warn("market-not-added",
			zap.String("market-id", market.ID),
			zap.String("slug", market.Slug),
			zap.Error(err))

		if unsubErr := a.wsManager.Unsubscribe(a.ctx, tokenIDs); unsubErr != nil {
			a.logger.Warn("unsubscribe-failed",
				zap.String("market-id", market.ID),
				zap.Error(unsubErr))
		}
		return
	}

	a.logger.Info("trading-market",
		zap.String("slug", market.Slug),
		zap.String("question", market.Question),
		zap.Time("end-date", market.EndDate))
}
