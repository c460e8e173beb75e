package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/polyquant/polyscalp/internal/execution"
	"github.com/polyquant/polyscalp/pkg/config"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var cancelOrdersCmd = &cobra.Command{
	Use:   "cancel-orders [order-id]",
	Short: "Cancel resting orders on the CLOB",
	Long: `Cancels a single order by ID, or every open order for the account when
called with --all. Use this to clean up resting take-profit orders after an
unclean shutdown.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCancelOrders,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(cancelOrdersCmd)
	cancelOrdersCmd.Flags().Bool("all", false, "Cancel all open orders")
}

func runCancelOrders(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cancelAll, _ := cmd.Flags().GetBool("all")

	if len(args) == 0 && !cancelAll {
		return fmt.Errorf("pass an order ID or --all")
	}
	if len(args) == 1 && cancelAll {
		return fmt.Errorf("pass either an order ID or --all, not both")
	}

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

	client, err := execution.NewOrderClient(&execution.OrderClientConfig{
		BaseURL:       cfg.PolymarketCLOBURL,
		APIKey:        cfg.PolymarketAPIKey,
		Secret:        cfg.PolymarketSecret,
		Passphrase:    cfg.PolymarketPassphrase,
		PrivateKey:    cfg.PrivateKey,
		FunderAddress: cfg.FunderAddress,
		Timeout:       cfg.OrderTimeout,
		MaxAttempts:   1,
		DryRun:        false,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("create order client: %w", err)
	}

	if cancelAll {
		err = client.CancelAll(ctx)
		if err != nil {
			return fmt.Errorf("cancel all orders: %w", err)
		}
		fmt.Println("All open orders cancelled.")
		return nil
	}

	orderID := args[0]

	// Show what we are cancelling while the order still exists
	order, err := client.GetOrder(ctx, orderID)
	if err == nil {
		fmt.Printf("Order %s: %s %s %.2f @ %.2f (%s)\n",
			orderID, order.Side, order.Outcome, order.Size, order.Price, order.Status)
	}

	err = client.CancelOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("cancel order %s: %w", orderID, err)
	}

	fmt.Printf("Order %s cancelled.\n", orderID)

	return nil
}
