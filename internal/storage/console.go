package storage

import (
	"context"
	"fmt"

	"github.com/polyquant/polyscalp/pkg/types"
	"go.uber.org/zap"
)

// ConsoleStorage implements Storage by pretty-printing round trips.
type ConsoleStorage struct {
	logger *zap.Logger
}

// NewConsoleStorage creates a console storage.
func NewConsoleStorage(logger *zap.Logger) *ConsoleStorage {
	logger.Info("console-storage-initialized")
	return &ConsoleStorage{logger: logger}
}

// StoreRoundTrip pretty-prints a completed round trip to the console.
func (c *ConsoleStorage) StoreRoundTrip(ctx context.Context, rt *types.RoundTrip) error {
	exitKind := "take-profit"
	if rt.Unwound {
		exitKind = "forced unwind"
	}

	fmt.Println("\n" + "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("ROUND TRIP CLOSED (%s)\n", exitKind)
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("Market:   %s\n", rt.MarketSlug)
	fmt.Printf("Side:     %s (%s)\n", rt.Side, rt.Class)
	fmt.Printf("Entered:  %s\n", rt.EnteredAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Exited:   %s\n", rt.ExitedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Size:     %.2f\n", rt.Size)
	fmt.Printf("Avg In:   %.4f\n", rt.AvgEntry)
	fmt.Printf("Exit:     %.4f\n", rt.ExitPrice)
	if rt.PnL >= 0 {
		fmt.Printf("PnL:      +$%.4f ✅\n", rt.PnL)
	} else {
		fmt.Printf("PnL:      -$%.4f ❌\n", -rt.PnL)
	}
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	return nil
}

// Close is a no-op for console storage.
func (c *ConsoleStorage) Close() error {
	c.logger.Info("closing-console-storage")
	return nil
}
