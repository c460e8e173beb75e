package execution

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/polyquant/polyscalp/pkg/types"
	"go.uber.org/zap"
)

// PositionsClient reads on-chain position state from the Polymarket data
// API. The engine reconciles the local ledger against it periodically; the
// data API lags settlement, so it informs but never overwrites the ledger.
type PositionsClient struct {
	baseURL    string
	user       string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewPositionsClient creates a positions client for the given user address.
func NewPositionsClient(baseURL, user string, logger *zap.Logger) *PositionsClient {
	return &PositionsClient{
		baseURL: baseURL,
		user:    user,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// GetPositions fetches the current non-zero positions for the user.
func (c *PositionsClient) GetPositions(ctx context.Context) ([]types.DataAPIPosition, error) {
	endpoint := fmt.Sprintf("%s/positions?user=%s&sizeThreshold=0.1", c.baseURL, url.QueryEscape(c.user))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	PositionSyncDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		PositionSyncErrorsTotal.Inc()
		return nil, fmt.Errorf("fetch positions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		PositionSyncErrorsTotal.Inc()
		return nil, fmt.Errorf("fetch positions: status %d", resp.StatusCode)
	}

	var positions []types.DataAPIPosition
	if err := json.NewDecoder(resp.Body).Decode(&positions); err != nil {
		PositionSyncErrorsTotal.Inc()
		return nil, fmt.Errorf("parse positions: %w", err)
	}

	c.logger.Debug("positions-synced",
		zap.Int("count", len(positions)))

	return positions, nil
}

// GetPositionForToken returns the venue-reported size for one token, zero if
// the token is absent from the response.
func (c *PositionsClient) GetPositionForToken(ctx context.Context, tokenID string) (float64, error) {
	positions, err := c.GetPositions(ctx)
	if err != nil {
		return 0, err
	}
	for _, p := range positions {
		if p.AssetID == tokenID {
			return p.Size, nil
		}
	}
	return 0, nil
}
