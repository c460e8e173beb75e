package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/polyquant/polyscalp/pkg/config"
	"github.com/polyquant/polyscalp/pkg/wallet"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var positionsCmd = &cobra.Command{
	Use:   "positions",
	Short: "Show open positions from the Polymarket Data API",
	Long: `Lists the wallet's current token positions as the Data API reports them,
with cost basis, current value, and P&L. The Data API lags settlement by a
few seconds, so a freshly filled order may not show up immediately.`,
	RunE: runPositions,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(positionsCmd)
}

func runPositions(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	address, err := tradingAddress(cfg)
	if err != nil {
		return err
	}

	walletClient, err := wallet.NewClient(cfg.PolygonRPCURL, logger)
	if err != nil {
		return fmt.Errorf("create wallet client: %w", err)
	}

	positions, err := walletClient.GetPositions(ctx, address)
	if err != nil {
		return fmt.Errorf("fetch positions: %w", err)
	}

	if len(positions) == 0 {
		fmt.Printf("No open positions for %s\n", address)
		return nil
	}

	fmt.Printf("Positions for %s:\n\n", address)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MARKET\tOUTCOME\tSIZE\tCOST\tVALUE\tPNL\tPNL%")

	var totalCost, totalValue, totalPnL float64
	for _, pos := range positions {
		fmt.Fprintf(w, "%s\t%s\t%.2f\t$%.2f\t$%.2f\t$%.2f\t%.1f%%\n",
			pos.MarketSlug,
			pos.Outcome,
			pos.Size,
			pos.InitialValue,
			pos.Value,
			pos.CashPnL,
			pos.PercentPnL)

		totalCost += pos.InitialValue
		totalValue += pos.Value
		totalPnL += pos.CashPnL
	}

	fmt.Fprintf(w, "TOTAL\t\t\t$%.2f\t$%.2f\t$%.2f\t\n", totalCost, totalValue, totalPnL)
	w.Flush()

	return nil
}
