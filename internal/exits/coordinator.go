package exits

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/polyquant/polyscalp/pkg/types"
	"go.uber.org/zap"
)

// OrderClient is the slice of the venue adapter the coordinator needs.
type OrderClient interface {
	PlaceOrder(ctx context.Context, tokenID, side string, price, size float64, postOnly bool) (*types.OrderAck, error)
	CancelOrder(ctx context.Context, orderID string) error
}

// tpOrder is one resting take-profit order.
type tpOrder struct {
	orderID  string
	tokenID  string
	side     types.Side // side of the position being exited
	price    float64
	size     float64
	placedAt time.Time
}

// marketExits is the per-market active-exit-order state.
type marketExits struct {
	orders []tpOrder
	// failedPrice is the sentinel price of the last rejected placement; no
	// retry happens until the requested price improves below it or the
	// 5-minute gate clears the set.
	failedPrice   float64
	failed        bool
	lastPlaceTime time.Time
}

// Coordinator owns the resting take-profit orders per market: it places
// them, reprices on strict improvement, cancels everything at the
// force-unwind gate, and keeps a failure sentinel so a rejected placement
// does not retry every tick.
type Coordinator struct {
	mu       sync.Mutex
	markets  map[string]*marketExits
	client   OrderClient
	logger   *zap.Logger
	minDelta time.Duration // minimum interval between reprices
}

// Config holds coordinator configuration.
type Config struct {
	Client             OrderClient
	Logger             *zap.Logger
	RepriceMinInterval time.Duration
}

// New creates an exit coordinator.
func New(cfg *Config) *Coordinator {
	return &Coordinator{
		markets:  make(map[string]*marketExits),
		client:   cfg.Client,
		logger:   cfg.Logger,
		minDelta: cfg.RepriceMinInterval,
	}
}

func (c *Coordinator) state(marketID string) *marketExits {
	st, ok := c.markets[marketID]
	if !ok {
		st = &marketExits{}
		c.markets[marketID] = st
	}
	return st
}

// PlaceOrReprice handles a take-profit request for one market. With no
// active order it places one; with an active order it reprices only when
// the new price is strictly lower, respecting the minimum reprice interval.
// Successive placed prices for one open position are therefore
// non-increasing.
func (c *Coordinator) PlaceOrReprice(ctx context.Context, marketID string,
	side types.Side, tokenID string, price, size float64) error {

	c.mu.Lock()
	st := c.state(marketID)

	if st.failed {
		// Sentinel set by a rejected placement: retry only on improvement
		if price >= st.failedPrice {
			c.mu.Unlock()
			SentinelSkipsTotal.Inc()
			return nil
		}
		st.failed = false
	}

	if len(st.orders) > 0 {
		last := st.orders[len(st.orders)-1]
		if price >= last.price {
			c.mu.Unlock()
			return nil
		}
		if time.Since(st.lastPlaceTime) < c.minDelta {
			c.mu.Unlock()
			RepriceThrottledTotal.Inc()
			return nil
		}

		// Improvement: cancel the resting order(s) before placing anew
		stale := st.orders
		st.orders = nil
		c.mu.Unlock()

		for _, o := range stale {
			err := c.client.CancelOrder(ctx, o.orderID)
			if err != nil {
				c.logger.Warn("tp-cancel-failed",
					zap.String("market-id", marketID),
					zap.String("order-id", o.orderID),
					zap.Error(err))
			}
		}
		RepricesTotal.Inc()
		c.logger.Info("tp-repricing",
			zap.String("market-id", marketID),
			zap.Float64("old-price", last.price),
			zap.Float64("new-price", price))
	} else {
		c.mu.Unlock()
	}

	return c.place(ctx, marketID, side, tokenID, price, size)
}

// place posts the post-only TP order and records it, or arms the failure
// sentinel.
func (c *Coordinator) place(ctx context.Context, marketID string,
	side types.Side, tokenID string, price, size float64) error {

	ack, err := c.client.PlaceOrder(ctx, tokenID, "BUY", price, size, true)
	if err != nil {
		c.mu.Lock()
		st := c.state(marketID)
		st.failed = true
		st.failedPrice = price
		c.mu.Unlock()

		PlaceFailuresTotal.Inc()
		c.logger.Warn("tp-place-failed",
			zap.String("market-id", marketID),
			zap.Float64("price", price),
			zap.Error(err))
		return fmt.Errorf("place tp order: %w", err)
	}

	c.mu.Lock()
	st := c.state(marketID)
	st.orders = append(st.orders, tpOrder{
		orderID:  ack.OrderID,
		tokenID:  tokenID,
		side:     side,
		price:    price,
		size:     size,
		placedAt: time.Now(),
	})
	st.lastPlaceTime = time.Now()
	active := len(st.orders)
	c.mu.Unlock()

	ActiveTPOrders.Set(float64(c.totalActive()))
	PlacementsTotal.Inc()

	c.logger.Info("tp-order-placed",
		zap.String("market-id", marketID),
		zap.String("order-id", ack.OrderID),
		zap.String("side", string(side)),
		zap.Float64("price", price),
		zap.Float64("size", size),
		zap.Int("active", active))

	return nil
}

// CancelAll cancels every resting TP order for a market and clears the
// failure sentinel. Called at the force-unwind gate crossing, before the
// strategy's marketable exit, and by the emergency unwind path.
func (c *Coordinator) CancelAll(ctx context.Context, marketID string) {
	c.mu.Lock()
	st, ok := c.markets[marketID]
	if !ok {
		c.mu.Unlock()
		return
	}
	stale := st.orders
	st.orders = nil
	st.failed = false
	st.failedPrice = 0
	c.mu.Unlock()

	for _, o := range stale {
		err := c.client.CancelOrder(ctx, o.orderID)
		if err != nil {
			c.logger.Warn("tp-cancel-failed",
				zap.String("market-id", marketID),
				zap.String("order-id", o.orderID),
				zap.Error(err))
			continue
		}
		CancellationsTotal.Inc()
	}

	ActiveTPOrders.Set(float64(c.totalActive()))

	if len(stale) > 0 {
		c.logger.Info("tp-orders-cancelled",
			zap.String("market-id", marketID),
			zap.Int("count", len(stale)))
	}
}

// OnExitFill clears the active set after a confirmed exit fill; the
// positions themselves are the ledger's business. Returns the side and size
// of the filled TP, if one was tracked.
func (c *Coordinator) OnExitFill(marketID string) (side types.Side, size float64, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, exists := c.markets[marketID]
	if !exists || len(st.orders) == 0 {
		return "", 0, false
	}

	filled := st.orders[len(st.orders)-1]
	st.orders = nil
	st.failed = false
	st.failedPrice = 0

	ActiveTPOrders.Set(float64(c.totalActiveLocked()))

	return filled.side, filled.size, true
}

// HasActive reports whether a TP order is resting for the market. The
// strategy treats this as in-flight and blocks new entries.
func (c *Coordinator) HasActive(marketID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.markets[marketID]
	return ok && len(st.orders) > 0
}

// Active returns the newest resting TP order for a market.
func (c *Coordinator) Active(marketID string) (orderID string, side types.Side, price, size float64, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, exists := c.markets[marketID]
	if !exists || len(st.orders) == 0 {
		return "", "", 0, 0, false
	}
	o := st.orders[len(st.orders)-1]
	return o.orderID, o.side, o.price, o.size, true
}

// ActiveOrders returns a copy of the resting orders for a market.
func (c *Coordinator) ActiveOrders(marketID string) []types.OrderAck {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.markets[marketID]
	if !ok {
		return nil
	}
	out := make([]types.OrderAck, 0, len(st.orders))
	for _, o := range st.orders {
		out = append(out, types.OrderAck{OrderID: o.orderID, Status: "live"})
	}
	return out
}

// LastPlacedPrice returns the price of the newest resting TP order.
func (c *Coordinator) LastPlacedPrice(marketID string) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.markets[marketID]
	if !ok || len(st.orders) == 0 {
		return 0, false
	}
	return st.orders[len(st.orders)-1].price, true
}

// Remove drops all coordinator state for a market at end of life.
func (c *Coordinator) Remove(marketID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.markets, marketID)
	ActiveTPOrders.Set(float64(c.totalActiveLocked()))
}

func (c *Coordinator) totalActive() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalActiveLocked()
}

func (c *Coordinator) totalActiveLocked() int {
	n := 0
	for _, st := range c.markets {
		n += len(st.orders)
	}
	return n
}
