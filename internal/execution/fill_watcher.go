package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/polyquant/polyscalp/pkg/types"
	"go.uber.org/zap"
)

// fillTolerance absorbs float noise in venue-reported sizes.
const fillTolerance = 0.001

// OrderQuerier is the order-status slice of the venue client.
type OrderQuerier interface {
	GetOrder(ctx context.Context, orderID string) (*types.OrderQueryResponse, error)
}

// FillWatcher polls an order until it fills, with exponential backoff. The
// ledger only moves on confirmed fills, so marketable orders go through here
// before any position is recorded.
type FillWatcher struct {
	querier        OrderQuerier
	logger         *zap.Logger
	initialBackoff time.Duration
	maxBackoff     time.Duration
	backoffMult    float64
	fillTimeout    time.Duration
}

// FillWatcherConfig holds fill verification knobs.
type FillWatcherConfig struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffMult    float64
	FillTimeout    time.Duration
}

// NewFillWatcher creates a fill watcher.
func NewFillWatcher(querier OrderQuerier, logger *zap.Logger, cfg *FillWatcherConfig) *FillWatcher {
	fw := &FillWatcher{
		querier:        querier,
		logger:         logger,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		backoffMult:    cfg.BackoffMult,
		fillTimeout:    cfg.FillTimeout,
	}
	if fw.initialBackoff <= 0 {
		fw.initialBackoff = 200 * time.Millisecond
	}
	if fw.maxBackoff <= 0 {
		fw.maxBackoff = 5 * time.Second
	}
	if fw.backoffMult <= 1 {
		fw.backoffMult = 2
	}
	if fw.fillTimeout <= 0 {
		fw.fillTimeout = 30 * time.Second
	}
	return fw
}

// AwaitFill blocks until the order is fully filled, the timeout elapses, or
// the context is cancelled. It returns the filled size and average price.
// A simulated ack short-circuits as fully filled.
func (fw *FillWatcher) AwaitFill(ctx context.Context, ack *types.OrderAck, expectedSize float64) (filledSize, avgPrice float64, err error) {
	if ack.Simulated {
		return expectedSize, 0, nil
	}
	if ack.Status == "matched" {
		// Marketable order matched on arrival
		FillsConfirmedTotal.Inc()
		return expectedSize, 0, nil
	}

	start := time.Now()
	deadline := time.NewTimer(fw.fillTimeout)
	defer deadline.Stop()

	backoff := fw.initialBackoff
	attempt := 0

	for {
		attempt++
		resp, queryErr := fw.querier.GetOrder(ctx, ack.OrderID)
		if queryErr != nil {
			fw.logger.Warn("order-query-failed-retrying",
				zap.String("order-id", ack.OrderID),
				zap.Int("attempt", attempt),
				zap.Error(queryErr))
		} else if resp.SizeFilled >= resp.Size-fillTolerance {
			FillsConfirmedTotal.Inc()
			fw.logger.Info("order-fully-filled",
				zap.String("order-id", ack.OrderID),
				zap.Float64("size-filled", resp.SizeFilled),
				zap.Float64("price", resp.Price),
				zap.Duration("duration", time.Since(start)))
			return resp.SizeFilled, resp.Price, nil
		} else {
			fw.logger.Debug("order-not-yet-filled",
				zap.String("order-id", ack.OrderID),
				zap.Float64("size-filled", resp.SizeFilled),
				zap.Float64("size-expected", resp.Size),
				zap.String("status", resp.Status))
		}

		select {
		case <-deadline.C:
			FillTimeoutsTotal.Inc()
			return 0, 0, fmt.Errorf("fill verification timeout after %s for order %s", fw.fillTimeout, ack.OrderID)
		case <-ctx.Done():
			return 0, 0, ctx.Err()
		case <-time.After(backoff):
			backoff = time.Duration(float64(backoff) * fw.backoffMult)
			if backoff > fw.maxBackoff {
				backoff = fw.maxBackoff
			}
		}
	}
}
