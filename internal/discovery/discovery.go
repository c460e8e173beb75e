package discovery

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/polyquant/polyscalp/pkg/cache"
	"github.com/polyquant/polyscalp/pkg/types"
	"go.uber.org/zap"
)

// assetNames maps the configured asset symbols onto the words the up/down
// series uses in its questions and slugs.
var assetNames = map[string]string{
	"BTC": "bitcoin",
	"ETH": "ethereum",
	"SOL": "solana",
	"XRP": "xrp",
}

// Service discovers upcoming 15-minute up/down windows by polling the Gamma
// API, ordered by end date so the windows resolving soonest surface first.
type Service struct {
	client       *Client
	cache        cache.Cache
	pollInterval time.Duration
	marketLimit  int
	assets       []string
	logger       *zap.Logger
	seen         map[string]*types.MarketSubscription
	mu           sync.RWMutex
	newMarketsCh chan *types.Market
	singleMarket string // debugging: track only this slug
}

// Config holds discovery service configuration.
type Config struct {
	Client       *Client
	Cache        cache.Cache
	PollInterval time.Duration
	MarketLimit  int
	Assets       []string
	Logger       *zap.Logger
	SingleMarket string
}

// New creates a discovery service.
func New(cfg *Config) *Service {
	return &Service{
		client:       cfg.Client,
		cache:        cfg.Cache,
		pollInterval: cfg.PollInterval,
		marketLimit:  cfg.MarketLimit,
		assets:       cfg.Assets,
		logger:       cfg.Logger,
		seen:         make(map[string]*types.MarketSubscription),
		newMarketsCh: make(chan *types.Market, 100),
		singleMarket: cfg.SingleMarket,
	}
}

// Run starts the discovery polling loop.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("discovery-service-starting",
		zap.Duration("poll-interval", s.pollInterval),
		zap.Int("market-limit", s.marketLimit),
		zap.Strings("assets", s.assets),
		zap.String("single-market", s.singleMarket))

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	if err := s.poll(ctx); err != nil {
		s.logger.Error("initial-poll-failed", zap.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("discovery-service-stopping")
			close(s.newMarketsCh)
			return ctx.Err()
		case <-ticker.C:
			if err := s.poll(ctx); err != nil {
				s.logger.Error("poll-failed", zap.Error(err))
			}
		}
	}
}

// poll fetches markets expiring soonest and forwards unseen up/down windows.
func (s *Service) poll(ctx context.Context) error {
	start := time.Now()
	defer func() {
		PollDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	if s.singleMarket != "" {
		return s.pollSingleMarket(ctx)
	}

	resp, err := s.client.FetchActiveMarkets(ctx, s.marketLimit, 0, "endDate")
	if err != nil {
		PollErrorsTotal.Inc()
		return fmt.Errorf("fetch active markets: %w", err)
	}

	MarketsDiscoveredTotal.Add(float64(len(resp.Data)))

	newMarkets := s.identifyNewMarkets(resp.Data)

	for i := range newMarkets {
		s.cacheMarket(newMarkets[i])

		select {
		case s.newMarketsCh <- newMarkets[i]:
			NewMarketsTotal.Inc()
			s.logger.Info("new-market-discovered",
				zap.String("market-id", newMarkets[i].ID),
				zap.String("slug", newMarkets[i].Slug),
				zap.Time("end-date", newMarkets[i].EndDate))
		default:
			s.logger.Warn("new-markets-channel-full",
				zap.String("market-id", newMarkets[i].ID))
		}
	}

	s.logger.Debug("poll-complete",
		zap.Int("total-markets", len(resp.Data)),
		zap.Int("new-markets", len(newMarkets)),
		zap.Duration("duration", time.Since(start)))

	return nil
}

// pollSingleMarket tracks one market by slug, for debugging.
func (s *Service) pollSingleMarket(ctx context.Context) error {
	s.mu.RLock()
	_, exists := s.seen[s.singleMarket]
	s.mu.RUnlock()
	if exists {
		return nil
	}

	market, err := s.client.FetchMarketBySlug(ctx, s.singleMarket)
	if err != nil {
		PollErrorsTotal.Inc()
		return fmt.Errorf("fetch market by slug %q: %w", s.singleMarket, err)
	}

	MarketsDiscoveredTotal.Inc()

	sub, err := SubscriptionFor(market)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.seen[market.Slug] = sub
	s.mu.Unlock()

	s.cacheMarket(market)

	select {
	case s.newMarketsCh <- market:
		NewMarketsTotal.Inc()
		s.logger.Info("single-market-discovered",
			zap.String("slug", market.Slug),
			zap.String("question", market.Question))
	default:
		s.logger.Warn("new-markets-channel-full")
	}

	return nil
}

// identifyNewMarkets filters the fetch down to unseen, still-open windows of
// the configured asset series.
func (s *Service) identifyNewMarkets(markets []types.Market) []*types.Market {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var newMarkets []*types.Market

	for i := range markets {
		market := &markets[i]

		if _, exists := s.seen[market.Slug]; exists {
			continue
		}
		if !s.matchesSeries(market) {
			continue
		}
		if !market.EndDate.After(now) {
			s.logger.Debug("skipping-ended-market",
				zap.String("slug", market.Slug),
				zap.Time("end-date", market.EndDate))
			continue
		}

		sub, err := SubscriptionFor(market)
		if err != nil {
			s.logger.Debug("skipping-market",
				zap.String("market-id", market.ID),
				zap.Error(err))
			continue
		}

		s.seen[market.Slug] = sub
		newMarkets = append(newMarkets, market)
	}

	return newMarkets
}

// matchesSeries reports whether the market belongs to the up/down series of
// one of the configured assets.
func (s *Service) matchesSeries(market *types.Market) bool {
	question := strings.ToLower(market.Question)
	if !strings.Contains(question, "up or down") {
		return false
	}
	if len(s.assets) == 0 {
		return true
	}
	for _, asset := range s.assets {
		name, ok := assetNames[strings.ToUpper(asset)]
		if !ok {
			name = strings.ToLower(asset)
		}
		if strings.Contains(question, name) {
			return true
		}
	}
	return false
}

// SubscriptionFor validates the market's token pair and builds its
// subscription record.
func SubscriptionFor(market *types.Market) (*types.MarketSubscription, error) {
	yesToken := market.YesToken()
	noToken := market.NoToken()
	if yesToken == nil || noToken == nil {
		return nil, fmt.Errorf("market %q missing outcome tokens", market.Slug)
	}

	return &types.MarketSubscription{
		MarketID:     market.ID,
		MarketSlug:   market.Slug,
		Question:     market.Question,
		EndDate:      market.EndDate,
		TokenIDYes:   yesToken.TokenID,
		TokenIDNo:    noToken.TokenID,
		SubscribedAt: time.Now(),
	}, nil
}

// NewMarketsChan returns the channel of newly discovered markets.
func (s *Service) NewMarketsChan() <-chan *types.Market {
	return s.newMarketsCh
}

// SeenMarkets returns all markets discovered so far.
func (s *Service) SeenMarkets() []*types.MarketSubscription {
	s.mu.RLock()
	defer s.mu.RUnlock()

	subs := make([]*types.MarketSubscription, 0, len(s.seen))
	for _, sub := range s.seen {
		subs = append(subs, sub)
	}
	return subs
}

// Forget drops a slug from the seen set so the next window of the same
// series can be discovered after this one resolves.
func (s *Service) Forget(slug string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.seen, slug)
}

// cacheMarket stores a market in the cache for 24 hours.
func (s *Service) cacheMarket(market *types.Market) {
	if s.cache == nil {
		return
	}
	if !s.cache.Set(market.ID, market, 24*time.Hour) {
		s.logger.Warn("failed-to-cache-market", zap.String("market-id", market.ID))
	}
}

// GetMarket retrieves a market from the cache, nil on miss.
func (s *Service) GetMarket(marketID string) *types.Market {
	if s.cache == nil {
		return nil
	}

	value, found := s.cache.Get(marketID)
	if !found {
		return nil
	}

	market, ok := value.(*types.Market)
	if !ok {
		s.logger.Warn("invalid-market-type-in-cache",
			zap.String("market-id", marketID))
		return nil
	}
	return market
}
