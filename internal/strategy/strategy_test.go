package strategy

import (
	"math"
	"testing"
	"time"

	"github.com/polyquant/polyscalp/pkg/types"
)

func defaultConfig() Config {
	return Config{
		EntryLevels:           []float64{0.34, 0.24, 0.14},
		LevelSize:             10,
		LevelProfitTarget:     0.05,
		MinTimeForLevelEntry:  7 * time.Minute,
		ForceUnwindTime:       5 * time.Minute,
		MaxCompletedCycles:    3,
		HighScalpThreshold:    0.85,
		HighScalpSize:         5,
		HighScalpProfitTarget: 0.02,
		MaxHighScalps:         4,
		ExitDebounce:          time.Second,
	}
}

func baseContext(remaining time.Duration) *MarketContext {
	now := time.Date(2026, 6, 2, 15, 0, 0, 0, time.UTC)
	return &MarketContext{
		MarketID:      "m1",
		YesTokenID:    "tok-yes",
		NoTokenID:     "tok-no",
		Now:           now,
		TimeRemaining: remaining,
		EnteredLevels: map[LevelKey]time.Time{},
	}
}

func levelPos(side types.Side, entry, size, level float64) types.Position {
	return types.Position{
		Side: side, EntryPrice: entry, Size: size,
		Class: types.ClassLevel, ProfitTarget: 0.05, Level: level,
	}
}

func highScalpPos(side types.Side, entry, size float64) types.Position {
	return types.Position{
		Side: side, EntryPrice: entry, Size: size,
		Class: types.ClassHighScalp, ProfitTarget: 0.02,
	}
}

// Scenario: clean LEVEL entry at 12 minutes remaining with the YES ask
// under the first grid level.
func TestLevelEntry_FirstLevel(t *testing.T) {
	s := New(defaultConfig())
	ctx := baseContext(12 * time.Minute)
	ctx.YesAsk, ctx.YesBid = 0.33, 0.32
	ctx.NoAsk, ctx.NoBid = 0.68, 0.66

	intent := s.Evaluate(ctx)
	enter, ok := intent.(EnterLevel)
	if !ok {
		t.Fatalf("intent = %#v, want EnterLevel", intent)
	}
	if enter.Side != types.SideYes {
		t.Errorf("side = %s, want YES", enter.Side)
	}
	if enter.Price != 0.34 || enter.Level != 0.34 {
		t.Errorf("price/level = %v/%v, want 0.34", enter.Price, enter.Level)
	}
	if enter.Size != 10 {
		t.Errorf("size = %v, want 10", enter.Size)
	}
	if enter.TokenID != "tok-yes" {
		t.Errorf("token = %s, want tok-yes", enter.TokenID)
	}
}

// Scenario: with a YES position at 0.34 and NO ask 0.62 (below the 0.643
// target exit), the strategy rests a TP at the current NO ask.
func TestTakeProfit_PlacedAtCurrentAsk(t *testing.T) {
	s := New(defaultConfig())
	ctx := baseContext(11 * time.Minute)
	ctx.YesAsk, ctx.YesBid = 0.30, 0.29
	ctx.NoAsk, ctx.NoBid = 0.62, 0.60
	ctx.Positions = []types.Position{levelPos(types.SideYes, 0.34, 10, 0.34)}

	intent := s.Evaluate(ctx)
	tp, ok := intent.(PlaceTPLimit)
	if !ok {
		t.Fatalf("intent = %#v, want PlaceTPLimit", intent)
	}
	if tp.Side != types.SideYes {
		t.Errorf("side = %s, want YES", tp.Side)
	}
	if tp.OppositeToken != "tok-no" {
		t.Errorf("opposite token = %s, want tok-no", tp.OppositeToken)
	}
	if tp.Price != 0.62 {
		t.Errorf("price = %v, want 0.62 (current NO ask)", tp.Price)
	}
	if tp.Size != 10 {
		t.Errorf("size = %v, want 10", tp.Size)
	}
}

func TestTakeProfit_NotPlacedAboveTarget(t *testing.T) {
	s := New(defaultConfig())
	ctx := baseContext(11 * time.Minute)
	ctx.YesAsk, ctx.YesBid = 0.34, 0.33
	// Target exit for 0.34 @ 5% is 0.643; NO ask 0.65 is above it
	ctx.NoAsk, ctx.NoBid = 0.65, 0.63
	ctx.Positions = []types.Position{levelPos(types.SideYes, 0.34, 10, 0.34)}

	if intent := s.Evaluate(ctx); intent != nil {
		t.Fatalf("intent = %#v, want nil while unwind above target", intent)
	}
}

func TestTakeProfit_Debounced(t *testing.T) {
	s := New(defaultConfig())
	ctx := baseContext(11 * time.Minute)
	ctx.YesAsk, ctx.NoAsk = 0.30, 0.62
	ctx.Positions = []types.Position{levelPos(types.SideYes, 0.34, 10, 0.34)}
	ctx.LastExitIntent = ctx.Now.Add(-500 * time.Millisecond)

	if intent := s.Evaluate(ctx); intent != nil {
		t.Fatalf("intent = %#v, want nil within the exit debounce window", intent)
	}

	ctx.LastExitIntent = ctx.Now.Add(-1100 * time.Millisecond)
	if _, ok := s.Evaluate(ctx).(PlaceTPLimit); !ok {
		t.Fatal("expected TP once the debounce window passed")
	}
}

// Scenario: forced unwind at 4:59 remaining. Open TP cancellation is the
// exit coordinator's job; the strategy emits the critical EXIT with SELL
// fallback metadata.
func TestForceUnwind_AtGate(t *testing.T) {
	s := New(defaultConfig())
	ctx := baseContext(4*time.Minute + 59*time.Second)
	ctx.YesAsk, ctx.YesBid = 0.42, 0.41
	ctx.NoAsk, ctx.NoBid = 0.58, 0.56
	ctx.Positions = []types.Position{levelPos(types.SideYes, 0.34, 10, 0.34)}

	intent := s.Evaluate(ctx)
	exit, ok := intent.(Exit)
	if !ok {
		t.Fatalf("intent = %#v, want Exit", intent)
	}
	if exit.Urgency != UrgencyCritical {
		t.Errorf("urgency = %s, want CRITICAL", exit.Urgency)
	}
	if exit.Side != types.SideYes || exit.OppositeToken != "tok-no" {
		t.Errorf("exit side/opposite = %s/%s, want YES/tok-no", exit.Side, exit.OppositeToken)
	}
	if exit.Price != 0.58 {
		t.Errorf("unwind price = %v, want NO ask 0.58", exit.Price)
	}
	if exit.FallbackToken != "tok-yes" || exit.FallbackPrice != 0.41 {
		t.Errorf("fallback = %s@%v, want tok-yes@0.41", exit.FallbackToken, exit.FallbackPrice)
	}
}

func TestForceUnwind_LargerSideFirst_YesTieBreak(t *testing.T) {
	s := New(defaultConfig())

	t.Run("larger-no-side-first", func(t *testing.T) {
		ctx := baseContext(4 * time.Minute)
		ctx.YesAsk, ctx.NoAsk = 0.40, 0.60
		ctx.Positions = []types.Position{
			levelPos(types.SideYes, 0.34, 10, 0.34),
			levelPos(types.SideNo, 0.24, 20, 0.24),
		}

		exit, ok := s.Evaluate(ctx).(Exit)
		if !ok {
			t.Fatal("want Exit")
		}
		if exit.Side != types.SideNo {
			t.Errorf("side = %s, want NO (larger)", exit.Side)
		}
		if exit.Size != 20 {
			t.Errorf("size = %v, want 20", exit.Size)
		}
	})

	t.Run("equal-sides-yes-first", func(t *testing.T) {
		ctx := baseContext(4 * time.Minute)
		ctx.YesAsk, ctx.NoAsk = 0.40, 0.60
		ctx.Positions = []types.Position{
			levelPos(types.SideYes, 0.34, 10, 0.34),
			levelPos(types.SideNo, 0.24, 10, 0.24),
		}

		exit, ok := s.Evaluate(ctx).(Exit)
		if !ok {
			t.Fatal("want Exit")
		}
		if exit.Side != types.SideYes {
			t.Errorf("side = %s, want YES on tie", exit.Side)
		}
	})
}

// Two EXIT-class intents never go out less than a second apart; the only
// exception is the tick where the market first crosses the unwind gate.
func TestForceUnwind_ExitDebounced(t *testing.T) {
	s := New(defaultConfig())

	levelCtx := func() *MarketContext {
		ctx := baseContext(4 * time.Minute)
		ctx.YesAsk, ctx.YesBid = 0.42, 0.41
		ctx.NoAsk, ctx.NoBid = 0.58, 0.56
		ctx.Positions = []types.Position{levelPos(types.SideYes, 0.34, 10, 0.34)}
		return ctx
	}

	t.Run("suppressed-inside-window", func(t *testing.T) {
		ctx := levelCtx()
		ctx.LastExitIntent = ctx.Now

		if intent := s.Evaluate(ctx); intent != nil {
			t.Fatalf("intent = %#v, want nil within the exit debounce window", intent)
		}
	})

	t.Run("crossing-tick-exempt", func(t *testing.T) {
		ctx := levelCtx()
		ctx.LastExitIntent = ctx.Now
		ctx.GateCrossing = true

		exit, ok := s.Evaluate(ctx).(Exit)
		if !ok {
			t.Fatal("want Exit on the gate-crossing tick")
		}
		if exit.Urgency != UrgencyCritical {
			t.Errorf("urgency = %s, want CRITICAL", exit.Urgency)
		}
	})

	t.Run("emitted-after-window", func(t *testing.T) {
		ctx := levelCtx()
		ctx.LastExitIntent = ctx.Now.Add(-1100 * time.Millisecond)

		if _, ok := s.Evaluate(ctx).(Exit); !ok {
			t.Fatal("want Exit once the debounce window passed")
		}
	})

	t.Run("high-scalp-exit-exempt-at-crossing", func(t *testing.T) {
		ctx := baseContext(4 * time.Minute)
		ctx.YesAsk, ctx.YesBid = 0.90, 0.88
		ctx.NoAsk, ctx.NoBid = 0.10, 0.09
		ctx.Positions = []types.Position{highScalpPos(types.SideYes, 0.88, 5)}
		ctx.HighScalpCount = 1
		ctx.LastExitIntent = ctx.Now
		ctx.GateCrossing = true

		exit, ok := s.Evaluate(ctx).(Exit)
		if !ok {
			t.Fatal("want high-scalp Exit on the gate-crossing tick")
		}
		if !exit.HighScalp {
			t.Errorf("exit = %+v, want high-scalp", exit)
		}
	})
}

// Scenario: high-scalp admission at 3 minutes remaining with YES at 0.88,
// then exit when the NO ask reaches the 0.1024 target.
func TestHighScalp_AdmissionAndExit(t *testing.T) {
	s := New(defaultConfig())

	ctx := baseContext(3 * time.Minute)
	ctx.YesAsk, ctx.YesBid = 0.88, 0.86
	ctx.NoAsk, ctx.NoBid = 0.12, 0.11

	intent := s.Evaluate(ctx)
	enter, ok := intent.(EnterHighScalp)
	if !ok {
		t.Fatalf("intent = %#v, want EnterHighScalp", intent)
	}
	if enter.Side != types.SideYes || enter.Size != 5 || enter.ProfitTarget != 0.02 {
		t.Errorf("enter = %+v, want YES size 5 target 0.02", enter)
	}

	// Position held; target exit is 1 - 1.02*0.88 = 0.1024
	target := 1 - 1.02*0.88
	if math.Abs(target-0.1024) > 1e-9 {
		t.Fatalf("target math off: %v", target)
	}

	ctx.Positions = []types.Position{highScalpPos(types.SideYes, 0.88, 5)}
	ctx.HighScalpCount = 1

	ctx.NoAsk = 0.11 // above target, no exit
	if intent := s.Evaluate(ctx); intent != nil {
		t.Fatalf("intent = %#v, want nil above target", intent)
	}

	ctx.NoAsk = 0.10 // at/below target
	exit, ok := s.Evaluate(ctx).(Exit)
	if !ok {
		t.Fatal("want Exit at target")
	}
	if !exit.HighScalp || exit.Size != 5 || exit.Price != 0.10 {
		t.Errorf("exit = %+v, want high-scalp size 5 at 0.10", exit)
	}
}

func TestHighScalp_OnlyOneOpenAndCap(t *testing.T) {
	s := New(defaultConfig())

	t.Run("open-position-blocks-admission", func(t *testing.T) {
		ctx := baseContext(3 * time.Minute)
		ctx.YesAsk, ctx.NoAsk = 0.88, 0.12
		ctx.Positions = []types.Position{highScalpPos(types.SideYes, 0.90, 5)}
		ctx.HighScalpCount = 1

		if intent := s.Evaluate(ctx); intent != nil {
			t.Fatalf("intent = %#v, want nil while one is open", intent)
		}
	})

	t.Run("lifetime-cap-blocks-admission", func(t *testing.T) {
		ctx := baseContext(3 * time.Minute)
		ctx.YesAsk, ctx.NoAsk = 0.88, 0.12
		ctx.HighScalpCount = 4

		if intent := s.Evaluate(ctx); intent != nil {
			t.Fatalf("intent = %#v, want nil at the admission cap", intent)
		}
	})
}

// Scenario: after three completed cycles no LEVEL entry is emitted
// regardless of price.
func TestLevelEntry_CycleCap(t *testing.T) {
	s := New(defaultConfig())
	ctx := baseContext(12 * time.Minute)
	ctx.YesAsk, ctx.NoAsk = 0.20, 0.79
	ctx.CompletedCycles = 3

	if intent := s.Evaluate(ctx); intent != nil {
		t.Fatalf("intent = %#v, want nil at the cycle cap", intent)
	}
}

// Scenario: crossed book (asks summing above 1.02) admits no entry.
func TestLevelEntry_CrossedBook(t *testing.T) {
	s := New(defaultConfig())
	ctx := baseContext(12 * time.Minute)
	ctx.YesAsk, ctx.NoAsk = 0.33, 0.71

	if intent := s.Evaluate(ctx); intent != nil {
		t.Fatalf("intent = %#v, want nil on crossed book", intent)
	}
}

func TestLevelEntry_Gates(t *testing.T) {
	s := New(defaultConfig())

	t.Run("no-entry-under-seven-minutes", func(t *testing.T) {
		ctx := baseContext(6 * time.Minute)
		ctx.YesAsk, ctx.NoAsk = 0.33, 0.66

		if intent := s.Evaluate(ctx); intent != nil {
			t.Fatalf("intent = %#v, want nil under the entry gate", intent)
		}
	})

	t.Run("no-level-intents-under-five-minutes", func(t *testing.T) {
		ctx := baseContext(4 * time.Minute)
		ctx.YesAsk, ctx.NoAsk = 0.33, 0.66

		intent := s.Evaluate(ctx)
		if _, isLevel := intent.(EnterLevel); isLevel {
			t.Fatal("LEVEL entry emitted inside the force-unwind window")
		}
	})

	t.Run("no-hedged-level-book", func(t *testing.T) {
		ctx := baseContext(12 * time.Minute)
		ctx.YesAsk, ctx.NoAsk = 0.33, 0.66
		ctx.Positions = []types.Position{levelPos(types.SideNo, 0.30, 10, 0.34)}

		intent := s.Evaluate(ctx)
		if enter, isLevel := intent.(EnterLevel); isLevel && enter.Side == types.SideYes {
			t.Fatal("entry on YES while NO holds LEVEL positions")
		}
	})

	t.Run("tp-in-flight-blocks-entry", func(t *testing.T) {
		ctx := baseContext(12 * time.Minute)
		ctx.YesAsk, ctx.NoAsk = 0.33, 0.66
		ctx.TPActive = true

		if intent := s.Evaluate(ctx); intent != nil {
			t.Fatalf("intent = %#v, want nil while a TP is in flight", intent)
		}
	})
}

func TestLevelEntry_PicksLowestSatisfiedUnentered(t *testing.T) {
	s := New(defaultConfig())

	t.Run("deep-drop-picks-lowest", func(t *testing.T) {
		ctx := baseContext(12 * time.Minute)
		ctx.YesAsk, ctx.NoAsk = 0.13, 0.86

		enter, ok := s.Evaluate(ctx).(EnterLevel)
		if !ok {
			t.Fatal("want EnterLevel")
		}
		if enter.Level != 0.14 {
			t.Errorf("level = %v, want lowest satisfied 0.14", enter.Level)
		}
	})

	t.Run("taken-level-skipped", func(t *testing.T) {
		ctx := baseContext(12 * time.Minute)
		ctx.YesAsk, ctx.NoAsk = 0.13, 0.86
		ctx.Positions = []types.Position{levelPos(types.SideYes, 0.138, 10, 0.14)}

		enter, ok := s.Evaluate(ctx).(EnterLevel)
		if !ok {
			t.Fatal("want EnterLevel")
		}
		if enter.Level != 0.24 {
			t.Errorf("level = %v, want next unentered 0.24", enter.Level)
		}
	})

	t.Run("debounced-level-skipped", func(t *testing.T) {
		ctx := baseContext(12 * time.Minute)
		ctx.YesAsk, ctx.NoAsk = 0.33, 0.66
		ctx.EnteredLevels[LevelKey{Side: types.SideYes, Level: 0.34}] = ctx.Now

		if intent := s.Evaluate(ctx); intent != nil {
			t.Fatalf("intent = %#v, want nil for debounced level", intent)
		}
	})
}

// The strategy never emits more than one LEVEL side: sweep a range of books
// and position states and assert the invariant.
func TestNoHedgedLevelBookProducedByStrategy(t *testing.T) {
	s := New(defaultConfig())

	for _, yesAsk := range []float64{0.10, 0.20, 0.33, 0.50, 0.90} {
		for _, held := range []types.Side{types.SideYes, types.SideNo} {
			ctx := baseContext(12 * time.Minute)
			ctx.YesAsk = yesAsk
			ctx.NoAsk = 1 - yesAsk
			ctx.Positions = []types.Position{levelPos(held, 0.30, 10, 0.34)}

			intent := s.Evaluate(ctx)
			if enter, ok := intent.(EnterLevel); ok && enter.Side != held {
				t.Fatalf("hedged LEVEL entry: held %s, entered %s at yesAsk=%v",
					held, enter.Side, yesAsk)
			}
		}
	}
}
