package types

import "time"

// RoundTrip records one completed entry/exit pair for a market side. Written
// to storage when an exit fill empties the side.
type RoundTrip struct {
	MarketID   string
	MarketSlug string
	Side       Side
	Class      PositionClass
	Size       float64
	AvgEntry   float64
	ExitPrice  float64
	PnL        float64 // realized, per the unwind payoff
	EnteredAt  time.Time
	ExitedAt   time.Time
	Unwound    bool // true if closed by buying the opposite token
}

// SessionStats aggregates realized results since process start.
type SessionStats struct {
	RoundTrips  int
	Wins        int
	Losses      int
	RealizedPnL float64
	StartedAt   time.Time
}
