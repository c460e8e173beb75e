package orderbook

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/polyquant/polyscalp/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Manager maintains one full-depth Book per subscribed token, fed by the
// websocket message channel. After every applied update it publishes the
// token's BookTop on the update channel.
type Manager struct {
	books      map[string]*Book // key: token_id
	mu         sync.RWMutex
	logger     *zap.Logger
	msgChan    <-chan *types.OrderbookMessage
	updateChan chan *types.BookTop
	ctx        context.Context
	wg         sync.WaitGroup
}

// Config holds orderbook manager configuration.
type Config struct {
	Logger         *zap.Logger
	MessageChannel <-chan *types.OrderbookMessage
}

// New creates a new orderbook manager.
func New(cfg *Config) *Manager {
	return &Manager{
		books:      make(map[string]*Book),
		logger:     cfg.Logger,
		msgChan:    cfg.MessageChannel,
		updateChan: make(chan *types.BookTop, 100000), // Buffer for high update rate
	}
}

// Track registers a token so that deltas arriving before the first snapshot
// are not silently discarded as unknown.
func (m *Manager) Track(marketID, tokenID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.books[tokenID]; !exists {
		m.books[tokenID] = NewBook(marketID, tokenID)
		BooksTracked.Set(float64(len(m.books)))
	}
}

// Untrack drops a token's book, typically at market removal.
func (m *Manager) Untrack(tokenID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.books, tokenID)
	BooksTracked.Set(float64(len(m.books)))
}

// Start starts the orderbook manager.
func (m *Manager) Start(ctx context.Context) error {
	m.ctx = ctx
	m.logger.Info("orderbook-manager-starting")

	m.wg.Add(1)
	go m.processMessages()

	return nil
}

// processMessages consumes incoming feed messages.
func (m *Manager) processMessages() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			m.logger.Info("orderbook-manager-stopping")
			return
		case msg, ok := <-m.msgChan:
			if !ok {
				m.logger.Info("message-channel-closed")
				return
			}

			m.handleMessage(msg)
		}
	}
}

// handleMessage applies a single feed message.
func (m *Manager) handleMessage(msg *types.OrderbookMessage) {
	timer := prometheus.NewTimer(UpdateProcessingDuration)
	defer timer.ObserveDuration()

	UpdatesTotal.WithLabelValues(msg.EventType).Inc()

	switch msg.EventType {
	case "book":
		m.handleBookMessage(msg)
	case "price_change":
		m.handlePriceChangeMessage(msg)
	default:
		// Ignore other message types (last_trade_price, etc.)
	}
}

// handleBookMessage installs a full snapshot for one token.
func (m *Manager) handleBookMessage(msg *types.OrderbookMessage) {
	bids := parseLevels(msg.Bids)
	asks := parseLevels(msg.Asks)
	now := time.Now()

	m.mu.Lock()
	book, exists := m.books[msg.AssetID]
	if !exists {
		book = NewBook(msg.Market, msg.AssetID)
		m.books[msg.AssetID] = book
		BooksTracked.Set(float64(len(m.books)))
	}
	if book.MarketID == "" {
		book.MarketID = msg.Market
	}

	// Snapshots replace wholesale; the most recent wall-time update wins
	book.ReplaceSnapshot(bids, asks, now)
	top := m.topLocked(book)
	m.mu.Unlock()

	m.logger.Debug("orderbook-snapshot-applied",
		zap.String("token-id", msg.AssetID),
		zap.Float64("best-bid", top.BestBidPrice),
		zap.Float64("best-ask", top.BestAskPrice),
		zap.Int("bid-levels", len(bids)),
		zap.Int("ask-levels", len(asks)))

	m.publish(top)
}

// handlePriceChangeMessage applies incremental level updates. A delta for a
// token never seen before is ignored; books are seeded by snapshots.
func (m *Manager) handlePriceChangeMessage(msg *types.OrderbookMessage) {
	now := time.Now()

	// One price_change frame can update several tokens
	touched := make(map[string]*types.BookTop)

	m.mu.Lock()
	for _, change := range msg.PriceChanges {
		tokenID := change.AssetID
		if tokenID == "" {
			tokenID = msg.AssetID
		}

		book, exists := m.books[tokenID]
		if !exists {
			UpdatesDroppedTotal.WithLabelValues("unknown_token").Inc()
			continue
		}

		price, err := strconv.ParseFloat(change.Price, 64)
		if err != nil {
			m.logger.Warn("bad-price-change",
				zap.String("token-id", tokenID),
				zap.String("price", change.Price))
			continue
		}
		size, err := strconv.ParseFloat(change.Size, 64)
		if err != nil {
			m.logger.Warn("bad-price-change",
				zap.String("token-id", tokenID),
				zap.String("size", change.Size))
			continue
		}

		book.ApplyDelta(change.Side == "BUY", price, size, now)
		touched[tokenID] = m.topLocked(book)
	}
	m.mu.Unlock()

	for _, top := range touched {
		m.publish(top)
	}
}

// topLocked snapshots the cached bests; caller holds at least a read lock.
func (m *Manager) topLocked(book *Book) *types.BookTop {
	bidPrice, bidSize := book.BestBid()
	askPrice, askSize := book.BestAsk()

	return &types.BookTop{
		MarketID:     book.MarketID,
		TokenID:      book.TokenID,
		BestBidPrice: bidPrice,
		BestBidSize:  bidSize,
		BestAskPrice: askPrice,
		BestAskSize:  askSize,
		LastUpdated:  book.LastUpdated,
	}
}

// publish notifies subscribers of an update (non-blocking).
func (m *Manager) publish(top *types.BookTop) {
	select {
	case m.updateChan <- top:
	default:
		m.logger.Error("orderbook-update-channel-full-dropping",
			zap.String("token-id", top.TokenID),
			zap.Int("buffer-size", cap(m.updateChan)))
		UpdatesDroppedTotal.WithLabelValues("channel_full").Inc()
	}
}

// parseLevels converts wire levels into a ladder, skipping unparseable rows
// and zero-size levels.
func parseLevels(levels []types.PriceLevel) map[float64]float64 {
	ladder := make(map[float64]float64, len(levels))
	for _, l := range levels {
		price, size, err := l.ParseLevel()
		if err != nil || size <= 0 {
			continue
		}
		ladder[price] = size
	}
	return ladder
}

// BestPrices returns the current best bid and ask for a token. Zero values
// mean the side is empty or the token is unknown.
func (m *Manager) BestPrices(tokenID string) (bid, ask float64, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	book, exists := m.books[tokenID]
	if !exists {
		return 0, 0, false
	}

	bid, _ = book.BestBid()
	ask, _ = book.BestAsk()
	return bid, ask, true
}

// GetTop returns the full BookTop for a token.
func (m *Manager) GetTop(tokenID string) (*types.BookTop, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	book, exists := m.books[tokenID]
	if !exists {
		return nil, false
	}

	return m.topLocked(book), true
}

// GetAllTops returns tops for every tracked token.
func (m *Manager) GetAllTops() map[string]*types.BookTop {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tops := make(map[string]*types.BookTop, len(m.books))
	for tokenID, book := range m.books {
		tops[tokenID] = m.topLocked(book)
	}

	return tops
}

// UpdateChan returns the channel for receiving book-top updates.
func (m *Manager) UpdateChan() <-chan *types.BookTop {
	return m.updateChan
}

// Close gracefully closes the orderbook manager.
func (m *Manager) Close() error {
	m.logger.Info("closing-orderbook-manager")
	m.wg.Wait()
	close(m.updateChan)
	m.logger.Info("orderbook-manager-closed")
	return nil
}
