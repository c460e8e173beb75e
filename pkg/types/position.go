package types

import "time"

// Side identifies which outcome token a position is long.
type Side string

const (
	SideYes Side = "YES"
	SideNo  Side = "NO"
)

// Opposite returns the complementary side.
func (s Side) Opposite() Side {
	if s == SideYes {
		return SideNo
	}
	return SideYes
}

// PositionClass distinguishes grid-level entries from late-window
// opportunistic entries.
type PositionClass string

const (
	ClassLevel     PositionClass = "LEVEL"
	ClassHighScalp PositionClass = "HIGH_SCALP"
)

// Position is one filled entry. Positions are created only by a confirmed
// fill ack and destroyed only by a confirmed exit-fill ack.
type Position struct {
	Side         Side
	EntryPrice   float64 // strictly in (0,1)
	Size         float64
	EntryTime    time.Time
	Class        PositionClass
	ProfitTarget float64 // fractional, e.g. 0.05
	Level        float64 // grid trigger price for LEVEL entries, 0 otherwise
	OrderID      string  // entry order id, used for fill-ack dedup
}

// TargetExitPrice returns the opposite-token price at which unwinding this
// position yields exactly ProfitTarget of the entry cost. Clamped to 0.01
// so deep entries still produce a postable price.
func (p Position) TargetExitPrice() float64 {
	target := 1 - (1+p.ProfitTarget)*p.EntryPrice
	if target < 0.01 {
		return 0.01
	}
	return target
}

// UnwindPnL returns the profit per unit of unwinding at exitPrice: the
// combined YES+NO holding pays 1, cost is entry plus exit.
func (p Position) UnwindPnL(exitPrice float64) float64 {
	return 1 - p.EntryPrice - exitPrice
}

// PositionSummary is the aggregate view of one market's open positions.
type PositionSummary struct {
	MarketID      string
	DominantSide  Side
	TotalSize     float64
	AvgEntryPrice float64
	ExitPrice     float64 // current ask of the opposite token
	UnrealizedPnL float64
	PnLPercent    float64
}

// OrderAck is the venue's acknowledgement of an accepted order. Acceptance
// does not imply a fill; Status "matched" does.
type OrderAck struct {
	OrderID   string
	Status    string
	Simulated bool
}

// Filled reports whether the ack indicates immediate execution.
func (a *OrderAck) Filled() bool {
	return a.Simulated || a.Status == "matched"
}
