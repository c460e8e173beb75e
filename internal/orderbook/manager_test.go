package orderbook

import (
	"testing"
	"time"

	"github.com/polyquant/polyscalp/pkg/types"
	"go.uber.org/zap"
)

func newTestManager() *Manager {
	logger, _ := zap.NewDevelopment()
	return &Manager{
		books:      make(map[string]*Book),
		logger:     logger,
		updateChan: make(chan *types.BookTop, 100),
	}
}

func TestHandleBookMessage(t *testing.T) {
	manager := newTestManager()

	msg := &types.OrderbookMessage{
		EventType: "book",
		AssetID:   "test-token-1",
		Market:    "test-market",
		Bids: []types.PriceLevel{
			{Price: "0.52", Size: "100.5"},
			{Price: "0.51", Size: "200.0"},
		},
		Asks: []types.PriceLevel{
			{Price: "0.54", Size: "150.0"},
			{Price: "0.55", Size: "250.0"},
		},
		Timestamp: 1234567890000,
	}

	manager.handleBookMessage(msg)

	top, exists := manager.GetTop("test-token-1")
	if !exists {
		t.Fatal("expected book to exist")
	}

	if top.BestBidPrice != 0.52 {
		t.Errorf("expected best_bid_price=0.52, got=%.2f", top.BestBidPrice)
	}
	if top.BestBidSize != 100.5 {
		t.Errorf("expected best_bid_size=100.5, got=%.2f", top.BestBidSize)
	}
	if top.BestAskPrice != 0.54 {
		t.Errorf("expected best_ask_price=0.54, got=%.2f", top.BestAskPrice)
	}
	if top.BestAskSize != 150.0 {
		t.Errorf("expected best_ask_size=150.0, got=%.2f", top.BestAskSize)
	}
	if top.MarketID != "test-market" {
		t.Errorf("expected market_id=test-market, got=%s", top.MarketID)
	}
}

func TestHandlePriceChangeMessage(t *testing.T) {
	manager := newTestManager()

	initialMsg := &types.OrderbookMessage{
		EventType: "book",
		AssetID:   "test-token-1",
		Market:    "test-market",
		Bids: []types.PriceLevel{
			{Price: "0.50", Size: "100.0"},
		},
		Asks: []types.PriceLevel{
			{Price: "0.52", Size: "100.0"},
		},
		Timestamp: 1234567890000,
	}
	manager.handleBookMessage(initialMsg)

	// New better bid arrives as a delta
	manager.handlePriceChangeMessage(&types.OrderbookMessage{
		EventType: "price_change",
		Market:    "test-market",
		PriceChanges: []types.PriceChange{
			{AssetID: "test-token-1", Side: "BUY", Price: "0.51", Size: "120.0"},
		},
	})

	top, exists := manager.GetTop("test-token-1")
	if !exists {
		t.Fatal("expected book to exist")
	}
	if top.BestBidPrice != 0.51 {
		t.Errorf("expected best bid 0.51, got=%.2f", top.BestBidPrice)
	}
	if top.BestBidSize != 120.0 {
		t.Errorf("expected best bid size 120, got=%.2f", top.BestBidSize)
	}
	if top.BestAskPrice != 0.52 {
		t.Errorf("expected ask unchanged at 0.52, got=%.2f", top.BestAskPrice)
	}

	// Deleting the best bid falls back to the previous level
	manager.handlePriceChangeMessage(&types.OrderbookMessage{
		EventType: "price_change",
		Market:    "test-market",
		PriceChanges: []types.PriceChange{
			{AssetID: "test-token-1", Side: "BUY", Price: "0.51", Size: "0"},
		},
	})

	top, _ = manager.GetTop("test-token-1")
	if top.BestBidPrice != 0.50 {
		t.Errorf("expected best bid back at 0.50, got=%.2f", top.BestBidPrice)
	}
}

func TestPriceChangeUnknownTokenIgnored(t *testing.T) {
	manager := newTestManager()

	manager.handlePriceChangeMessage(&types.OrderbookMessage{
		EventType: "price_change",
		Market:    "test-market",
		PriceChanges: []types.PriceChange{
			{AssetID: "never-seen", Side: "SELL", Price: "0.40", Size: "10"},
		},
	})

	if _, exists := manager.GetTop("never-seen"); exists {
		t.Error("delta for unknown token must not create a book")
	}
}

func TestBook_ApplyDelta(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(*Book)
		wantBid float64
		wantAsk float64
	}{
		{
			name: "empty-book-sentinels",
			setup: func(b *Book) {
			},
			wantBid: 0,
			wantAsk: 0,
		},
		{
			name: "delete-missing-level-is-noop",
			setup: func(b *Book) {
				b.ApplyDelta(true, 0.30, 10, time.Now())
				b.ApplyDelta(true, 0.99, 0, time.Now())
			},
			wantBid: 0.30,
			wantAsk: 0,
		},
		{
			name: "ask-improvement",
			setup: func(b *Book) {
				b.ApplyDelta(false, 0.60, 5, time.Now())
				b.ApplyDelta(false, 0.55, 5, time.Now())
			},
			wantBid: 0,
			wantAsk: 0.55,
		},
		{
			name: "delete-best-ask-recomputes",
			setup: func(b *Book) {
				b.ApplyDelta(false, 0.60, 5, time.Now())
				b.ApplyDelta(false, 0.55, 5, time.Now())
				b.ApplyDelta(false, 0.55, 0, time.Now())
			},
			wantBid: 0,
			wantAsk: 0.60,
		},
		{
			name: "delete-last-level-empties-side",
			setup: func(b *Book) {
				b.ApplyDelta(true, 0.30, 10, time.Now())
				b.ApplyDelta(true, 0.30, 0, time.Now())
			},
			wantBid: 0,
			wantAsk: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBook("m", "tok")
			tt.setup(b)

			bid, _ := b.BestBid()
			ask, _ := b.BestAsk()
			if bid != tt.wantBid {
				t.Errorf("best bid = %v, want %v", bid, tt.wantBid)
			}
			if ask != tt.wantAsk {
				t.Errorf("best ask = %v, want %v", ask, tt.wantAsk)
			}
		})
	}
}

func TestBook_SnapshotReplacesDeltas(t *testing.T) {
	b := NewBook("m", "tok")
	b.ApplyDelta(true, 0.30, 10, time.Now())
	b.ApplyDelta(false, 0.70, 10, time.Now())

	b.ReplaceSnapshot(
		map[float64]float64{0.40: 5},
		map[float64]float64{0.60: 5},
		time.Now(),
	)

	bid, _ := b.BestBid()
	ask, _ := b.BestAsk()
	if bid != 0.40 || ask != 0.60 {
		t.Errorf("after snapshot bid=%v ask=%v, want 0.40/0.60", bid, ask)
	}
	if len(b.Bids) != 1 || len(b.Asks) != 1 {
		t.Error("snapshot must discard stale levels")
	}
}
