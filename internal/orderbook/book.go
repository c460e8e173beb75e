package orderbook

import (
	"time"
)

// Book is the full-depth ladder for one token: price -> size on each side.
// Best bid is the maximum bid price with nonzero size, best ask the minimum
// ask with nonzero size; both are cached on every apply so reads are O(1).
// The zero price is the empty-side sentinel.
type Book struct {
	MarketID    string
	TokenID     string
	Bids        map[float64]float64
	Asks        map[float64]float64
	bestBid     float64
	bestBidSize float64
	bestAsk     float64
	bestAskSize float64
	LastUpdated time.Time
}

// NewBook creates an empty book for a token.
func NewBook(marketID, tokenID string) *Book {
	return &Book{
		MarketID: marketID,
		TokenID:  tokenID,
		Bids:     make(map[float64]float64),
		Asks:     make(map[float64]float64),
	}
}

// ReplaceSnapshot discards both ladders and installs the given levels.
func (b *Book) ReplaceSnapshot(bids, asks map[float64]float64, now time.Time) {
	b.Bids = bids
	b.Asks = asks
	b.LastUpdated = now
	b.recomputeBest()
}

// ApplyDelta applies one incremental level update. size 0 deletes the level;
// deleting a level that does not exist is a no-op.
func (b *Book) ApplyDelta(isBid bool, price, size float64, now time.Time) {
	ladder := b.Asks
	if isBid {
		ladder = b.Bids
	}

	if size == 0 {
		delete(ladder, price)
	} else {
		ladder[price] = size
	}

	b.LastUpdated = now

	// Cheap incremental best maintenance; full recompute only when the
	// current best level was removed.
	if isBid {
		switch {
		case size > 0 && price >= b.bestBid:
			b.bestBid, b.bestBidSize = price, size
		case size == 0 && price == b.bestBid:
			b.bestBid, b.bestBidSize = bestOf(b.Bids, true)
		}
	} else {
		switch {
		case size > 0 && (b.bestAsk == 0 || price <= b.bestAsk):
			b.bestAsk, b.bestAskSize = price, size
		case size == 0 && price == b.bestAsk:
			b.bestAsk, b.bestAskSize = bestOf(b.Asks, false)
		}
	}
}

// BestBid returns the best bid price and size, 0 when the side is empty.
func (b *Book) BestBid() (price, size float64) {
	return b.bestBid, b.bestBidSize
}

// BestAsk returns the best ask price and size, 0 when the side is empty.
func (b *Book) BestAsk() (price, size float64) {
	return b.bestAsk, b.bestAskSize
}

func (b *Book) recomputeBest() {
	b.bestBid, b.bestBidSize = bestOf(b.Bids, true)
	b.bestAsk, b.bestAskSize = bestOf(b.Asks, false)
}

func bestOf(ladder map[float64]float64, max bool) (price, size float64) {
	for p, s := range ladder {
		if s <= 0 {
			continue
		}
		if price == 0 || (max && p > price) || (!max && p < price) {
			price, size = p, s
		}
	}
	return price, size
}
