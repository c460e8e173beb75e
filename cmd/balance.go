package cmd

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/polyquant/polyscalp/internal/execution"
	"github.com/polyquant/polyscalp/pkg/config"
	"github.com/polyquant/polyscalp/pkg/wallet"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show wallet balances and exchange allowance",
	Long: `Shows on-chain MATIC and USDC balances for the trading wallet, the USDC
allowance granted to the CTF exchange, and (when API credentials are
configured) the collateral balance the CLOB sees.`,
	RunE: runBalance,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(balanceCmd)
}

// tradingAddress resolves the address funds live at: the funder address when
// one is configured, otherwise the EOA derived from the signing key.
func tradingAddress(cfg *config.Config) (string, error) {
	if cfg.FunderAddress != "" {
		return cfg.FunderAddress, nil
	}

	keyHex := strings.TrimPrefix(strings.TrimSpace(cfg.PrivateKey), "0x")
	if keyHex == "" {
		return "", fmt.Errorf("set POLYMARKET_PRIVATE_KEY or POLYMARKET_FUNDER_ADDRESS")
	}

	privateKey, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return "", fmt.Errorf("invalid private key: %w", err)
	}

	publicKey, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return "", fmt.Errorf("error casting public key to ECDSA")
	}

	return crypto.PubkeyToAddress(*publicKey).Hex(), nil
}

func runBalance(cmd *cobra.Command, args []string) error {
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

	fmt.Printf("Address: %s\n\n", address)

	walletClient, err := wallet.NewClient(cfg.PolygonRPCURL, logger)
	if err != nil {
		return fmt.Errorf("create wallet client: %w", err)
	}

	balances, err := walletClient.GetBalances(ctx, common.HexToAddress(address))
	if err != nil {
		return fmt.Errorf("fetch balances: %w", err)
	}

	fmt.Printf("MATIC:          %s\n", formatWei(balances.MATIC))
	fmt.Printf("USDC:           %s\n", formatUSDC(balances.USDC))
	fmt.Printf("USDC allowance: %s\n", formatUSDC(balances.USDCAllowance))

	// The CLOB's view of collateral needs L2 credentials
	if cfg.PolymarketAPIKey == "" || cfg.PrivateKey == "" {
		fmt.Println("\nCLOB collateral: skipped (API credentials not configured)")
		return nil
	}

	orderClient, err := execution.NewOrderClient(&execution.OrderClientConfig{
		BaseURL:       cfg.PolymarketCLOBURL,
		APIKey:        cfg.PolymarketAPIKey,
		Secret:        cfg.PolymarketSecret,
		Passphrase:    cfg.PolymarketPassphrase,
		PrivateKey:    cfg.PrivateKey,
		FunderAddress: cfg.FunderAddress,
		Timeout:       cfg.OrderTimeout,
		MaxAttempts:   1,
		DryRun:        true,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("create order client: %w", err)
	}

	collateral, err := orderClient.GetCollateralBalance(ctx)
	if err != nil {
		return fmt.Errorf("fetch collateral balance: %w", err)
	}

	fmt.Printf("\nCLOB collateral: %.2f USDC\n", collateral)

	return nil
}

func formatWei(v *big.Int) string {
	f := new(big.Float).Quo(new(big.Float).SetInt(v), big.NewFloat(1e18))
	return fmt.Sprintf("%.4f", f)
}

func formatUSDC(v *big.Int) string {
	f := new(big.Float).Quo(new(big.Float).SetInt(v), big.NewFloat(1e6))
	return fmt.Sprintf("%.2f", f)
}
