package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/polyquant/polyscalp/internal/discovery"
	"github.com/polyquant/polyscalp/pkg/config"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var listMarketsCmd = &cobra.Command{
	Use:   "list-markets",
	Short: "List active up/down markets from the Gamma API",
	Long: `Lists active markets sorted by end date, soonest first, so the current
15-minute windows appear at the top. By default only up/down markets are
shown; use --all to see everything the API returns.`,
	RunE: runListMarkets,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(listMarketsCmd)
	listMarketsCmd.Flags().IntP("limit", "l", 50, "Maximum number of markets to fetch")
	listMarketsCmd.Flags().BoolP("all", "a", false, "Show all markets, not just up/down windows")
}

func runListMarkets(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
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

	limit, _ := cmd.Flags().GetInt("limit")
	showAll, _ := cmd.Flags().GetBool("all")

	client := discovery.NewClient(cfg.PolymarketGammaURL, cfg.PolymarketCLOBURL, logger)

	resp, err := client.FetchActiveMarkets(ctx, limit, 0, "endDate")
	if err != nil {
		return fmt.Errorf("fetch markets: %w", err)
	}

	now := time.Now()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SLUG\tQUESTION\tREMAINING\tENDS")

	shown := 0
	for i := range resp.Data {
		market := &resp.Data[i]
		if !showAll && !strings.Contains(strings.ToLower(market.Question), "up or down") {
			continue
		}

		remaining := market.TimeRemaining(now).Round(time.Second)
		if remaining < 0 {
			continue
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			market.Slug,
			market.Question,
			remaining,
			market.EndDate.Format("15:04:05 MST"))
		shown++
	}

	w.Flush()
	fmt.Printf("\n%d markets shown (%d fetched)\n", shown, resp.Count)

	return nil
}
