package strategy

import "github.com/polyquant/polyscalp/pkg/types"

// Urgency marks how an intent should be worked by the orchestrator.
type Urgency string

const (
	UrgencyNormal   Urgency = "NORMAL"
	UrgencyCritical Urgency = "CRITICAL"
)

// Intent is the single action an evaluation may request. The strategy
// constructs exactly one variant per tick (or none); the orchestrator
// pattern-matches on the concrete type and performs all I/O.
type Intent interface {
	intentKind() string
}

// EnterLevel opens or scales a grid position with a marketable BUY on the
// side's own token. Price is the grid level, so the buy executes at or
// below it.
type EnterLevel struct {
	Side         types.Side
	TokenID      string
	Price        float64
	Size         float64
	ProfitTarget float64
	Level        float64
}

func (EnterLevel) intentKind() string { return "enter_level" }

// EnterHighScalp opens a late-window opportunistic position on the side
// whose price crossed the high-scalp threshold.
type EnterHighScalp struct {
	Side         types.Side
	TokenID      string
	Price        float64
	Size         float64
	ProfitTarget float64
}

func (EnterHighScalp) intentKind() string { return "enter_high_scalp" }

// PlaceTPLimit rests a post-only take-profit BUY of the opposite token at
// Price (the current opposite ask, already at or below the target exit).
type PlaceTPLimit struct {
	Side          types.Side // side of the position being exited
	OppositeToken string
	Price         float64
	Size          float64
}

func (PlaceTPLimit) intentKind() string { return "place_tp_limit" }

// Exit closes a side immediately with a marketable BUY of the opposite
// token. FallbackToken/FallbackPrice describe the SELL of the held token
// used when collateral is insufficient for the unwind.
type Exit struct {
	Side          types.Side
	OppositeToken string
	Price         float64 // opposite token ask for the unwind BUY
	Size          float64
	HighScalp     bool
	Urgency       Urgency
	FallbackToken string
	FallbackPrice float64 // own-side bid for the fallback SELL
}

func (Exit) intentKind() string { return "exit" }
