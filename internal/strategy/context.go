package strategy

import (
	"time"

	"github.com/polyquant/polyscalp/pkg/types"
)

// LevelKey identifies one (side, grid level) debounce slot.
type LevelKey struct {
	Side  types.Side
	Level float64
}

// MarketContext is everything one evaluation may look at. It is assembled by
// the orchestrator from the book mirror, the ledger, and the clock; the
// strategy never reads shared state directly.
type MarketContext struct {
	MarketID   string
	YesTokenID string
	NoTokenID  string

	YesBid float64
	YesAsk float64
	NoBid  float64
	NoAsk  float64

	Now           time.Time
	TimeRemaining time.Duration

	Positions       []types.Position
	CompletedCycles int
	HighScalpCount  int

	// TPActive is true while a take-profit order (or its ack) is in flight
	// for this market; it blocks new entries until fill or cancel.
	TPActive bool

	// LastExitIntent is the time of the previous EXIT-class intent
	// (PlaceTPLimit or Exit) for this market.
	LastExitIntent time.Time

	// GateCrossing is true only on the evaluation where the market first
	// entered the force-unwind window. The first drain order must go out on
	// that tick even if an exit intent just preceded it.
	GateCrossing bool

	// EnteredLevels holds the (side, level) slots already used since the
	// side's last exit fill.
	EnteredLevels map[LevelKey]time.Time
}

// SideToken returns the token id for a side.
func (c *MarketContext) SideToken(side types.Side) string {
	if side == types.SideYes {
		return c.YesTokenID
	}
	return c.NoTokenID
}

// SideAsk returns the ask for a side's own token.
func (c *MarketContext) SideAsk(side types.Side) float64 {
	if side == types.SideYes {
		return c.YesAsk
	}
	return c.NoAsk
}

// SideBid returns the bid for a side's own token.
func (c *MarketContext) SideBid(side types.Side) float64 {
	if side == types.SideYes {
		return c.YesBid
	}
	return c.NoBid
}

// OppositeAsk returns the ask of the complementary token, the price an
// unwind BUY would pay.
func (c *MarketContext) OppositeAsk(side types.Side) float64 {
	if side == types.SideYes {
		return c.NoAsk
	}
	return c.YesAsk
}

func (c *MarketContext) levelPositions(side types.Side) []types.Position {
	var out []types.Position
	for _, p := range c.Positions {
		if p.Class == types.ClassLevel && (side == "" || p.Side == side) {
			out = append(out, p)
		}
	}
	return out
}

func (c *MarketContext) highScalpPositions() []types.Position {
	var out []types.Position
	for _, p := range c.Positions {
		if p.Class == types.ClassHighScalp {
			out = append(out, p)
		}
	}
	return out
}

func aggregateSize(positions []types.Position) float64 {
	var total float64
	for _, p := range positions {
		total += p.Size
	}
	return total
}

func weightedEntry(positions []types.Position) (avg, total float64) {
	var weighted float64
	for _, p := range positions {
		total += p.Size
		weighted += p.EntryPrice * p.Size
	}
	if total == 0 {
		return 0, 0
	}
	return weighted / total, total
}
