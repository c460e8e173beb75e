package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/polyquant/polyscalp/pkg/config"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var unwindCmd = &cobra.Command{
	Use:   "unwind <market-id>",
	Short: "Force-unwind a market on a running instance",
	Long: `Tells a running polyscalp instance to cancel resting orders and close out
every position in the given market at current prices, via its control API.
The instance must be running on this host; set HTTP_PORT if it is not on
the default port.`,
	Args: cobra.ExactArgs(1),
	RunE: runUnwind,
}

//nolint:gochecknoglobals // Cobra boilerplate
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show session stats from a running instance",
	RunE:  runStatus,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(unwindCmd)
	rootCmd.AddCommand(statusCmd)
}

func controlBaseURL() (string, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return "", fmt.Errorf("load config: %w", err)
	}
	return fmt.Sprintf("http://localhost:%s", cfg.HTTPPort), nil
}

func runUnwind(cmd *cobra.Command, args []string) error {
	marketID := args[0]

	baseURL, err := controlBaseURL()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	url := fmt.Sprintf("%s/api/markets/%s/unwind", baseURL, marketID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("call control API (is the instance running?): %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unwind failed (status %d): %s", resp.StatusCode, string(body))
	}

	fmt.Printf("Unwind requested for market %s\n", marketID)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	baseURL, err := controlBaseURL()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/status", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("call control API (is the instance running?): %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status failed (status %d): %s", resp.StatusCode, string(body))
	}

	// Pretty-print the JSON as-is rather than mirroring the response type here
	var pretty map[string]interface{}
	if err := json.Unmarshal(body, &pretty); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	out, _ := json.MarshalIndent(pretty, "", "  ")
	fmt.Println(string(out))

	return nil
}
