package markets

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	defaultTickSize     = 0.01
	defaultMinOrderSize = 5.0
)

// MetadataClient fetches per-token trading parameters from the CLOB API.
// Tick size and minimum order size gate order pricing and the minimum
// notional check.
type MetadataClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewMetadataClient creates a metadata client against the given CLOB base URL.
func NewMetadataClient(baseURL string) *MetadataClient {
	return &MetadataClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// FetchTickSize fetches the tick size for a token.
func (c *MetadataClient) FetchTickSize(ctx context.Context, tokenID string) (float64, error) {
	start := time.Now()
	defer func() {
		MetadataFetchDuration.Observe(time.Since(start).Seconds())
	}()

	url := fmt.Sprintf("%s/tick-size?token_id=%s", c.baseURL, tokenID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		MetadataFetchErrorsTotal.Inc()
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		MetadataFetchErrorsTotal.Inc()
		return 0, fmt.Errorf("tick-size fetch: status %d", resp.StatusCode)
	}

	var data struct {
		MinimumTickSize float64 `json:"minimum_tick_size"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		MetadataFetchErrorsTotal.Inc()
		return 0, err
	}
	return data.MinimumTickSize, nil
}

// FetchMinOrderSize fetches the minimum order size for a token from the book
// endpoint, falling back to the venue default when the API omits it.
func (c *MetadataClient) FetchMinOrderSize(ctx context.Context, tokenID string) (float64, error) {
	url := fmt.Sprintf("%s/book?token_id=%s", c.baseURL, tokenID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		MetadataFetchErrorsTotal.Inc()
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return defaultMinOrderSize, nil
	}

	var data struct {
		MinSize float64 `json:"min_size"`
		Market  struct {
			MinSize float64 `json:"minimum_order_size"`
		} `json:"market"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return defaultMinOrderSize, nil
	}

	if data.MinSize > 0 {
		return data.MinSize, nil
	}
	if data.Market.MinSize > 0 {
		return data.Market.MinSize, nil
	}
	return defaultMinOrderSize, nil
}

// FetchTokenMetadata fetches both parameters, substituting venue defaults on
// individual failures so a metadata hiccup never blocks trading.
func (c *MetadataClient) FetchTokenMetadata(ctx context.Context, tokenID string) (tickSize, minOrderSize float64, err error) {
	tickSize, err = c.FetchTickSize(ctx, tokenID)
	if err != nil || tickSize <= 0 {
		tickSize = defaultTickSize
	}

	minOrderSize, err = c.FetchMinOrderSize(ctx, tokenID)
	if err != nil || minOrderSize <= 0 {
		minOrderSize = defaultMinOrderSize
	}

	return tickSize, minOrderSize, nil
}
