package websocket

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ReconnectConfig controls the backoff schedule between dial attempts.
type ReconnectConfig struct {
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	JitterPercent     float64 // 0.2 = up to 20% added per attempt
}

// ReconnectManager retries a connect function with exponential backoff and
// jitter. The jitter keeps a fleet of instances from hammering the endpoint
// in lockstep after a venue-side disconnect.
type ReconnectManager struct {
	cfg    ReconnectConfig
	logger *zap.Logger

	mu      sync.Mutex
	delay   time.Duration
	attempt int
}

// NewReconnectManager creates a reconnection manager. Zero config values get
// conservative defaults so a misconfigured manager never busy-loops.
func NewReconnectManager(cfg ReconnectConfig, logger *zap.Logger) *ReconnectManager {
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	if cfg.BackoffMultiplier < 1 {
		cfg.BackoffMultiplier = 2.0
	}

	return &ReconnectManager{
		cfg:    cfg,
		logger: logger,
		delay:  cfg.InitialDelay,
	}
}

// Reconnect calls connect until it succeeds or ctx is cancelled, sleeping the
// current backoff before each attempt. A success resets the schedule.
func (rm *ReconnectManager) Reconnect(ctx context.Context, connect func(context.Context) error) error {
	for {
		wait, attempt := rm.step()

		rm.logger.Info("attempting-reconnection",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait))

		ReconnectAttemptsTotal.Inc()

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}

		err := connect(ctx)
		if err == nil {
			rm.Reset()
			rm.logger.Info("reconnection-successful", zap.Int("attempt", attempt))
			return nil
		}

		rm.logger.Warn("reconnection-failed", zap.Int("attempt", attempt), zap.Error(err))
		ReconnectFailuresTotal.Inc()
	}
}

// Reset restores the initial delay. Called after a successful connect so the
// next outage starts from a short retry again.
func (rm *ReconnectManager) Reset() {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	rm.delay = rm.cfg.InitialDelay
	rm.attempt = 0
}

// step returns the jittered wait for this attempt and advances the schedule.
func (rm *ReconnectManager) step() (time.Duration, int) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	rm.attempt++

	jittered := float64(rm.delay) * (1.0 + rand.Float64()*rm.cfg.JitterPercent)

	next := time.Duration(float64(rm.delay) * rm.cfg.BackoffMultiplier)
	if next > rm.cfg.MaxDelay {
		next = rm.cfg.MaxDelay
	}
	rm.delay = next

	return time.Duration(jittered), rm.attempt
}
