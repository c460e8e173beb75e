package strategy

import (
	"math"
	"sort"
	"time"

	"github.com/polyquant/polyscalp/pkg/types"
)

// Config holds the strategy knobs. Defaults come from pkg/config.
type Config struct {
	EntryLevels           []float64
	LevelSize             float64
	LevelProfitTarget     float64
	MinTimeForLevelEntry  time.Duration
	ForceUnwindTime       time.Duration
	MaxCompletedCycles    int
	HighScalpThreshold    float64
	HighScalpSize         float64
	HighScalpProfitTarget float64
	MaxHighScalps         int
	ExitDebounce          time.Duration
}

// Strategy is the per-market decision function. Evaluate is pure: it
// inspects the context and returns at most one intent, with no I/O and no
// retained state. Debounce and in-flight bookkeeping live in the context,
// owned by the orchestrator.
type Strategy struct {
	cfg Config
}

// New creates a strategy with the given knobs. EntryLevels are kept sorted
// ascending so the lowest satisfied level is picked first.
func New(cfg Config) *Strategy {
	levels := make([]float64, len(cfg.EntryLevels))
	copy(levels, cfg.EntryLevels)
	sort.Float64s(levels)
	cfg.EntryLevels = levels

	return &Strategy{cfg: cfg}
}

// Evaluate runs one tick of the decision order. First match wins:
//
//  1. inside the force-unwind window: drain LEVEL positions, then work
//     high-scalp exits and admissions;
//  2. inside the no-entry window: exits and TP placement only;
//  3. take-profit placement when the current unwind price meets the target;
//  4. grid entry at the lowest satisfied level.
func (s *Strategy) Evaluate(ctx *MarketContext) Intent {
	if ctx.TimeRemaining < s.cfg.ForceUnwindTime {
		return s.evaluateEndgame(ctx)
	}

	if intent := s.checkHighScalpExit(ctx); intent != nil {
		return intent
	}

	if intent := s.checkTakeProfit(ctx); intent != nil {
		return intent
	}

	if ctx.TimeRemaining < s.cfg.MinTimeForLevelEntry {
		// Too close to resolution for fresh grid risk
		return nil
	}

	return s.checkLevelEntry(ctx)
}

// evaluateEndgame handles the window below the force-unwind gate. LEVEL
// positions are closed at market, larger side first (YES on ties); the
// smaller side, if any, goes on the next tick. Afterwards only high-scalp
// logic runs. Exits here honor the debounce except on the crossing tick
// itself.
func (s *Strategy) evaluateEndgame(ctx *MarketContext) Intent {
	yesLevels := ctx.levelPositions(types.SideYes)
	noLevels := ctx.levelPositions(types.SideNo)

	if len(yesLevels) > 0 || len(noLevels) > 0 {
		if !ctx.GateCrossing && ctx.Now.Sub(ctx.LastExitIntent) < s.cfg.ExitDebounce {
			DebouncedIntentsTotal.Inc()
			return nil
		}

		side := types.SideYes
		positions := yesLevels
		if aggregateSize(noLevels) > aggregateSize(yesLevels) {
			side = types.SideNo
			positions = noLevels
		}

		ForceUnwindsTotal.Inc()

		return Exit{
			Side:          side,
			OppositeToken: ctx.SideToken(side.Opposite()),
			Price:         ctx.OppositeAsk(side),
			Size:          aggregateSize(positions),
			HighScalp:     false,
			Urgency:       UrgencyCritical,
			FallbackToken: ctx.SideToken(side),
			FallbackPrice: ctx.SideBid(side),
		}
	}

	if intent := s.checkHighScalpExit(ctx); intent != nil {
		return intent
	}

	return s.checkHighScalpEntry(ctx)
}

// checkHighScalpExit emits a marketable EXIT for a high-scalp position whose
// current unwind price has reached its target.
func (s *Strategy) checkHighScalpExit(ctx *MarketContext) Intent {
	for _, p := range ctx.highScalpPositions() {
		unwind := ctx.OppositeAsk(p.Side)
		if unwind <= 0 {
			continue
		}
		if unwind <= p.TargetExitPrice() {
			if !ctx.GateCrossing && ctx.Now.Sub(ctx.LastExitIntent) < s.cfg.ExitDebounce {
				DebouncedIntentsTotal.Inc()
				return nil
			}

			IntentsTotal.WithLabelValues("exit_high_scalp").Inc()
			return Exit{
				Side:          p.Side,
				OppositeToken: ctx.SideToken(p.Side.Opposite()),
				Price:         unwind,
				Size:          p.Size,
				HighScalp:     true,
				Urgency:       UrgencyNormal,
				FallbackToken: ctx.SideToken(p.Side),
				FallbackPrice: ctx.SideBid(p.Side),
			}
		}
	}
	return nil
}

// checkHighScalpEntry admits one late-window position on the side whose ask
// crossed the threshold. Only one high-scalp may be open at a time and
// lifetime admissions are capped.
func (s *Strategy) checkHighScalpEntry(ctx *MarketContext) Intent {
	if len(ctx.highScalpPositions()) > 0 {
		return nil
	}
	if ctx.HighScalpCount >= s.cfg.MaxHighScalps {
		return nil
	}
	if ctx.TPActive {
		return nil
	}

	for _, side := range []types.Side{types.SideYes, types.SideNo} {
		ask := ctx.SideAsk(side)
		if ask >= s.cfg.HighScalpThreshold && ask < 1 {
			IntentsTotal.WithLabelValues("enter_high_scalp").Inc()
			return EnterHighScalp{
				Side:         side,
				TokenID:      ctx.SideToken(side),
				Price:        ask,
				Size:         s.cfg.HighScalpSize,
				ProfitTarget: s.cfg.HighScalpProfitTarget,
			}
		}
	}
	return nil
}

// checkTakeProfit emits a TP limit when the weighted unwind price of the
// LEVEL stack meets its target exit. The order price is the current
// opposite ask, which at this point is at or below the target. EXIT-class
// intents are debounced.
func (s *Strategy) checkTakeProfit(ctx *MarketContext) Intent {
	for _, side := range []types.Side{types.SideYes, types.SideNo} {
		positions := ctx.levelPositions(side)
		if len(positions) == 0 {
			continue
		}

		avgEntry, totalSize := weightedEntry(positions)
		target := 1 - (1+s.cfg.LevelProfitTarget)*avgEntry
		if target < 0.01 {
			target = 0.01
		}

		unwind := ctx.OppositeAsk(side)
		if unwind <= 0 || unwind > target {
			continue
		}

		if ctx.Now.Sub(ctx.LastExitIntent) < s.cfg.ExitDebounce {
			DebouncedIntentsTotal.Inc()
			return nil
		}

		IntentsTotal.WithLabelValues("place_tp_limit").Inc()
		return PlaceTPLimit{
			Side:          side,
			OppositeToken: ctx.SideToken(side.Opposite()),
			Price:         unwind,
			Size:          totalSize,
		}
	}
	return nil
}

// checkLevelEntry picks the lowest unentered grid level whose trigger is
// satisfied. Entries require a clean book: no LEVEL positions on the
// opposite side, cycle budget left, no TP order in flight, and a sane
// combined price.
func (s *Strategy) checkLevelEntry(ctx *MarketContext) Intent {
	if ctx.CompletedCycles >= s.cfg.MaxCompletedCycles {
		return nil
	}
	if ctx.TPActive {
		return nil
	}

	// Abnormal books admit nothing
	if ctx.YesAsk+ctx.NoAsk > 1.02 {
		CrossedBookSkipsTotal.Inc()
		return nil
	}

	for _, side := range []types.Side{types.SideYes, types.SideNo} {
		if len(ctx.levelPositions(side.Opposite())) > 0 {
			continue
		}

		ask := ctx.SideAsk(side)
		if ask <= 0 {
			continue
		}

		for _, level := range s.cfg.EntryLevels {
			if ask >= level {
				continue
			}
			if s.levelTaken(ctx, side, level) {
				continue
			}
			if _, debounced := ctx.EnteredLevels[LevelKey{Side: side, Level: level}]; debounced {
				continue
			}

			IntentsTotal.WithLabelValues("enter_level").Inc()
			return EnterLevel{
				Side:         side,
				TokenID:      ctx.SideToken(side),
				Price:        level,
				Size:         s.cfg.LevelSize,
				ProfitTarget: s.cfg.LevelProfitTarget,
				Level:        level,
			}
		}
	}
	return nil
}

// levelTaken reports whether an open LEVEL position on this side was entered
// near the given level (tolerance 0.01).
func (s *Strategy) levelTaken(ctx *MarketContext, side types.Side, level float64) bool {
	for _, p := range ctx.levelPositions(side) {
		if math.Abs(p.Level-level) <= 0.01 {
			return true
		}
	}
	return false
}
