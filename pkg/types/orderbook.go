package types

import (
	"encoding/json"
	"strconv"
	"time"
)

// OrderbookMessage represents a message from the Polymarket market WebSocket.
// "book" messages carry full bid/ask snapshots; "price_change" messages carry
// incremental level updates in PriceChanges.
type OrderbookMessage struct {
	EventType    string        `json:"event_type"` // "book", "price_change", "last_trade_price"
	AssetID      string        `json:"asset_id"`
	Market       string        `json:"market"`
	Timestamp    int64         `json:"-"` // Parsed from string via UnmarshalJSON
	Hash         string        `json:"hash,omitempty"`
	Bids         []PriceLevel  `json:"bids,omitempty"`
	Asks         []PriceLevel  `json:"asks,omitempty"`
	PriceChanges []PriceChange `json:"price_changes,omitempty"`
}

// UnmarshalJSON custom unmarshaler to handle string timestamp.
func (o *OrderbookMessage) UnmarshalJSON(data []byte) error {
	type Alias OrderbookMessage
	aux := &struct {
		TimestampStr string `json:"timestamp"`
		*Alias
	}{
		Alias: (*Alias)(o),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.TimestampStr != "" {
		timestamp, err := strconv.ParseInt(aux.TimestampStr, 10, 64)
		if err != nil {
			return err
		}
		o.Timestamp = timestamp
	}

	return nil
}

// PriceLevel represents a single price level in a book snapshot.
type PriceLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// PriceChange represents one incremental level update. Side "BUY" targets the
// bid ladder, "SELL" the ask ladder; size "0" deletes the level.
type PriceChange struct {
	AssetID string `json:"asset_id"`
	Side    string `json:"side"`
	Price   string `json:"price"`
	Size    string `json:"size"`
}

// ParseLevel converts the string price/size pair to floats.
func (p PriceLevel) ParseLevel() (price, size float64, err error) {
	price, err = strconv.ParseFloat(p.Price, 64)
	if err != nil {
		return 0, 0, err
	}
	size, err = strconv.ParseFloat(p.Size, 64)
	if err != nil {
		return 0, 0, err
	}
	return price, size, nil
}

// BookTop is the cached best bid/ask for one token. Zero prices mean the
// corresponding side of the book is empty.
type BookTop struct {
	MarketID     string
	TokenID      string
	BestBidPrice float64
	BestBidSize  float64
	BestAskPrice float64
	BestAskSize  float64
	LastUpdated  time.Time
}
