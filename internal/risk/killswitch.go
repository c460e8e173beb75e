package risk

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// KillSwitch halts all trading when the session's realized loss crosses the
// daily limit, or when an operator pauses the engine through the control
// API. Unlike the balance breaker it never re-enables itself; a tripped
// switch stays tripped until the UTC day rolls over or an operator resumes.
type KillSwitch struct {
	mu             sync.RWMutex
	dailyLossLimit float64
	realizedPnL    float64
	day            string // UTC date the counters belong to
	tripped        bool
	paused         bool
	reason         string
	logger         *zap.Logger
}

// KillSwitchStatus is a snapshot for the control API.
type KillSwitchStatus struct {
	TradingAllowed bool    `json:"trading_allowed"`
	Tripped        bool    `json:"tripped"`
	Paused         bool    `json:"paused"`
	Reason         string  `json:"reason,omitempty"`
	RealizedPnL    float64 `json:"realized_pnl"`
	DailyLossLimit float64 `json:"daily_loss_limit"`
}

// NewKillSwitch creates a kill switch with the given daily loss limit in
// USDC. A limit of zero disables the loss check.
func NewKillSwitch(dailyLossLimit float64, logger *zap.Logger) *KillSwitch {
	return &KillSwitch{
		dailyLossLimit: dailyLossLimit,
		day:            time.Now().UTC().Format("2006-01-02"),
		logger:         logger,
	}
}

// RecordPnL adds a realized round-trip result. Crossing the loss limit trips
// the switch.
func (k *KillSwitch) RecordPnL(pnl float64) {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.rolloverLocked()
	k.realizedPnL += pnl
	RealizedPnL.Set(k.realizedPnL)

	if !k.tripped && k.dailyLossLimit > 0 && k.realizedPnL <= -k.dailyLossLimit {
		k.tripped = true
		k.reason = "daily-loss-limit"
		KillSwitchTripped.Set(1)
		k.logger.Error("kill-switch-tripped",
			zap.Float64("realized-pnl", k.realizedPnL),
			zap.Float64("daily-loss-limit", k.dailyLossLimit))
	}
}

// TradingAllowed reports whether new intents may execute.
func (k *KillSwitch) TradingAllowed() bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.rolloverLocked()
	return !k.tripped && !k.paused
}

// Pause halts trading until Resume. Operator action via the control API.
func (k *KillSwitch) Pause(reason string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.paused = true
	k.reason = reason
	k.logger.Warn("trading-paused", zap.String("reason", reason))
}

// Resume clears both a manual pause and a tripped loss limit.
func (k *KillSwitch) Resume() {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.paused = false
	k.tripped = false
	k.reason = ""
	KillSwitchTripped.Set(0)
	k.logger.Info("trading-resumed")
}

// RealizedPnLToday returns the session's realized result.
func (k *KillSwitch) RealizedPnLToday() float64 {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.realizedPnL
}

// Status returns a snapshot for the control API.
func (k *KillSwitch) Status() KillSwitchStatus {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.rolloverLocked()
	return KillSwitchStatus{
		TradingAllowed: !k.tripped && !k.paused,
		Tripped:        k.tripped,
		Paused:         k.paused,
		Reason:         k.reason,
		RealizedPnL:    k.realizedPnL,
		DailyLossLimit: k.dailyLossLimit,
	}
}

// rolloverLocked resets the daily counters when the UTC day changes. A
// manual pause survives the rollover; a tripped loss limit does not.
func (k *KillSwitch) rolloverLocked() {
	today := time.Now().UTC().Format("2006-01-02")
	if today == k.day {
		return
	}

	k.day = today
	k.realizedPnL = 0
	RealizedPnL.Set(0)
	if k.tripped {
		k.tripped = false
		k.reason = ""
		KillSwitchTripped.Set(0)
		k.logger.Info("kill-switch-daily-reset")
	}
}
