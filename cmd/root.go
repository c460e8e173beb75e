package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "polyscalp",
	Short: "Polymarket 15-minute binary market scalper",
	Long: `Polyscalp trades the 15-minute crypto up/down binary markets on
Polymarket. It discovers each new window from the Gamma API, mirrors both
outcome books over WebSocket, buys grid levels on dips, rests take-profit
orders on the opposite token, and force-unwinds everything before the
window resolves.

Trading is simulated unless TRADING_ENABLED=true.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	// Load .env if present; real environment wins
	_ = godotenv.Load()
}
