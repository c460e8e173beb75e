package ledger

import (
	"sync"
	"time"

	"github.com/polyquant/polyscalp/pkg/types"
	"go.uber.org/zap"
)

// Ledger is the sole writer of position state. Positions are created only by
// confirmed fill acks and removed only by confirmed exit-fill acks; every
// counter the strategy consumes is derived from the position list on read,
// except completed cycles which is the one persistent integer per market.
type Ledger struct {
	mu      sync.RWMutex
	markets map[string]*marketState
	logger  *zap.Logger
}

type marketState struct {
	positions       []types.Position
	completedCycles int
	highScalpFills  int             // lifetime HIGH_SCALP admissions, fill-ack driven
	seenOrders      map[string]bool // entry order ids, for fill-ack dedup
}

// New creates an empty ledger.
func New(logger *zap.Logger) *Ledger {
	return &Ledger{
		markets: make(map[string]*marketState),
		logger:  logger,
	}
}

func (l *Ledger) state(marketID string) *marketState {
	st, ok := l.markets[marketID]
	if !ok {
		st = &marketState{seenOrders: make(map[string]bool)}
		l.markets[marketID] = st
	}
	return st
}

// OnFill appends a position for a confirmed entry fill. A duplicate order id
// is a no-op; acks can be delivered more than once.
func (l *Ledger) OnFill(marketID string, side types.Side, price, size float64,
	class types.PositionClass, profitTarget, level float64, orderID string) {

	l.mu.Lock()
	defer l.mu.Unlock()

	st := l.state(marketID)

	if orderID != "" && st.seenOrders[orderID] {
		l.logger.Debug("duplicate-fill-ack-ignored",
			zap.String("market-id", marketID),
			zap.String("order-id", orderID))
		DuplicateFillsTotal.Inc()
		return
	}
	if orderID != "" {
		st.seenOrders[orderID] = true
	}

	if class == types.ClassHighScalp {
		st.highScalpFills++
	}

	st.positions = append(st.positions, types.Position{
		Side:         side,
		EntryPrice:   price,
		Size:         size,
		EntryTime:    time.Now(),
		Class:        class,
		ProfitTarget: profitTarget,
		Level:        level,
		OrderID:      orderID,
	})

	FillsTotal.WithLabelValues(string(class)).Inc()
	OpenPositions.Set(float64(l.totalPositionsLocked()))

	l.logger.Info("position-opened",
		zap.String("market-id", marketID),
		zap.String("side", string(side)),
		zap.String("class", string(class)),
		zap.Float64("entry-price", price),
		zap.Float64("size", size))
}

// OnExitFill removes all positions of the given class on the given side. If
// a LEVEL removal empties that side's LEVEL stack, completed cycles
// increments. Returns the removed positions (empty slice when nothing
// matched).
func (l *Ledger) OnExitFill(marketID string, side types.Side, class types.PositionClass) []types.Position {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, ok := l.markets[marketID]
	if !ok {
		return nil
	}

	var removed []types.Position
	kept := st.positions[:0]
	for _, p := range st.positions {
		if p.Side == side && p.Class == class {
			removed = append(removed, p)
		} else {
			kept = append(kept, p)
		}
	}
	st.positions = kept

	if len(removed) == 0 {
		return nil
	}

	if class == types.ClassLevel {
		// The side's LEVEL stack just emptied: one cycle done
		st.completedCycles++
		CompletedCyclesTotal.Inc()
		l.logger.Info("cycle-completed",
			zap.String("market-id", marketID),
			zap.String("side", string(side)),
			zap.Int("completed-cycles", st.completedCycles))
	}

	ExitFillsTotal.WithLabelValues(string(class)).Inc()
	OpenPositions.Set(float64(l.totalPositionsLocked()))

	return removed
}

// Positions returns a copy of all open positions for a market.
func (l *Ledger) Positions(marketID string) []types.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()

	st, ok := l.markets[marketID]
	if !ok {
		return nil
	}

	out := make([]types.Position, len(st.positions))
	copy(out, st.positions)
	return out
}

// LevelPositions returns open LEVEL positions for a market.
func (l *Ledger) LevelPositions(marketID string) []types.Position {
	return l.filter(marketID, func(p types.Position) bool {
		return p.Class == types.ClassLevel
	})
}

// HighScalpPositions returns open HIGH_SCALP positions on a side; pass an
// empty side to get both sides.
func (l *Ledger) HighScalpPositions(marketID string, side types.Side) []types.Position {
	return l.filter(marketID, func(p types.Position) bool {
		return p.Class == types.ClassHighScalp && (side == "" || p.Side == side)
	})
}

func (l *Ledger) filter(marketID string, keep func(types.Position) bool) []types.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()

	st, ok := l.markets[marketID]
	if !ok {
		return nil
	}

	var out []types.Position
	for _, p := range st.positions {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

// CompletedCycles returns the persistent cycle counter for a market.
func (l *Ledger) CompletedCycles(marketID string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	st, ok := l.markets[marketID]
	if !ok {
		return 0
	}
	return st.completedCycles
}

// HighScalpCount returns the number of HIGH_SCALP admissions recorded for
// this market over its lifetime. The per-market cap gates admissions, not
// open positions, so exits do not decrement it. It only moves on a fill ack.
func (l *Ledger) HighScalpCount(marketID string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	st, ok := l.markets[marketID]
	if !ok {
		return 0
	}
	return st.highScalpFills
}

// Summary computes the aggregate view for one market from the open position
// list and current asks of both tokens. Weighted average entry is recomputed
// on every call, never cached.
func (l *Ledger) Summary(marketID string, yesAsk, noAsk float64) types.PositionSummary {
	l.mu.RLock()
	defer l.mu.RUnlock()

	summary := types.PositionSummary{MarketID: marketID}

	st, ok := l.markets[marketID]
	if !ok || len(st.positions) == 0 {
		return summary
	}

	var yesSize, noSize float64
	for _, p := range st.positions {
		if p.Side == types.SideYes {
			yesSize += p.Size
		} else {
			noSize += p.Size
		}
	}

	side := types.SideYes
	exitPrice := noAsk
	if noSize > yesSize {
		side = types.SideNo
		exitPrice = yesAsk
	}

	var totalSize, weighted float64
	for _, p := range st.positions {
		if p.Side != side {
			continue
		}
		totalSize += p.Size
		weighted += p.EntryPrice * p.Size
	}
	if totalSize == 0 {
		return summary
	}

	avgEntry := weighted / totalSize
	pnl := (1 - avgEntry - exitPrice) * totalSize

	summary.DominantSide = side
	summary.TotalSize = totalSize
	summary.AvgEntryPrice = avgEntry
	summary.ExitPrice = exitPrice
	summary.UnrealizedPnL = pnl
	if avgEntry > 0 {
		summary.PnLPercent = (1 - avgEntry - exitPrice) / avgEntry
	}

	return summary
}

// Remove discards all state for a market, at end-of-life pruning.
func (l *Ledger) Remove(marketID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.markets, marketID)
	OpenPositions.Set(float64(l.totalPositionsLocked()))
}

func (l *Ledger) totalPositionsLocked() int {
	n := 0
	for _, st := range l.markets {
		n += len(st.positions)
	}
	return n
}
