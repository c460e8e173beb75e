package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/polyquant/polyscalp/pkg/types"
	"go.uber.org/zap"
)

// MaxBatchSize is the largest page the Gamma API serves per request.
const MaxBatchSize = 100

// Client is an HTTP client for the Polymarket Gamma API.
type Client struct {
	baseURL    string
	clobURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a Gamma API client. clobURL is used for the occasional
// direct book lookup.
func NewClient(baseURL, clobURL string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		clobURL: clobURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// FetchActiveMarkets fetches active markets with automatic pagination.
// orderBy is one of "volume24hr", "createdAt", or "endDate"; endDate sorts
// ascending so the windows resolving soonest come first. A limit of 0
// fetches everything.
func (c *Client) FetchActiveMarkets(ctx context.Context, limit, offset int, orderBy string) (*types.MarketsResponse, error) {
	if limit > MaxBatchSize || limit == 0 {
		return c.fetchWithPagination(ctx, limit, offset, orderBy)
	}
	return c.fetchSinglePage(ctx, limit, offset, orderBy)
}

func (c *Client) fetchSinglePage(ctx context.Context, limit, offset int, orderBy string) (*types.MarketsResponse, error) {
	if limit == 0 {
		limit = MaxBatchSize
	}

	params := url.Values{}
	params.Add("closed", "false")
	params.Add("active", "true")
	params.Add("limit", strconv.Itoa(limit))
	params.Add("offset", strconv.Itoa(offset))
	params.Add("order", orderBy)
	if orderBy == "endDate" {
		params.Add("ascending", "true")
	} else {
		params.Add("ascending", "false")
	}

	requestURL := fmt.Sprintf("%s/markets?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "polyscalp/1.0")

	c.logger.Debug("fetching-markets",
		zap.String("url", requestURL),
		zap.Int("limit", limit),
		zap.Int("offset", offset))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	// The Gamma API returns a bare array
	var markets []types.Market
	if err := json.Unmarshal(body, &markets); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	return &types.MarketsResponse{
		Data:   markets,
		Count:  len(markets),
		Limit:  limit,
		Offset: offset,
	}, nil
}

// fetchWithPagination aggregates pages until the limit is reached or the API
// runs dry.
func (c *Client) fetchWithPagination(ctx context.Context, limit, offset int, orderBy string) (*types.MarketsResponse, error) {
	var (
		allMarkets   []types.Market
		currentPage  int
		totalFetched int
		fetchAll     = limit == 0
	)

	for {
		pageBatchSize := MaxBatchSize
		if !fetchAll {
			remaining := limit - totalFetched
			if remaining <= 0 {
				break
			}
			if remaining < pageBatchSize {
				pageBatchSize = remaining
			}
		}

		pageOffset := offset + currentPage*MaxBatchSize

		resp, err := c.fetchSinglePage(ctx, pageBatchSize, pageOffset, orderBy)
		if err != nil {
			return nil, fmt.Errorf("fetch page %d: %w", currentPage, err)
		}

		allMarkets = append(allMarkets, resp.Data...)
		totalFetched += len(resp.Data)

		if len(resp.Data) < pageBatchSize {
			break
		}
		if !fetchAll && totalFetched >= limit {
			break
		}
		currentPage++
	}

	return &types.MarketsResponse{
		Data:   allMarkets,
		Count:  len(allMarkets),
		Limit:  limit,
		Offset: offset,
	}, nil
}

// FetchMarketBySlug finds a single market by slug. The Gamma API has no slug
// endpoint, so this scans the active list.
func (c *Client) FetchMarketBySlug(ctx context.Context, slug string) (*types.Market, error) {
	const limit = MaxBatchSize
	const maxPages = 10

	offset := 0
	for page := 0; page < maxPages; page++ {
		resp, err := c.FetchActiveMarkets(ctx, limit, offset, "endDate")
		if err != nil {
			return nil, fmt.Errorf("fetch markets: %w", err)
		}

		for i := range resp.Data {
			if resp.Data[i].Slug == slug {
				return &resp.Data[i], nil
			}
		}

		if len(resp.Data) < limit {
			break
		}
		offset += limit
	}

	return nil, fmt.Errorf("market not found: %s", slug)
}

type bookLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

type bookResponse struct {
	Market string      `json:"market"`
	Bids   []bookLevel `json:"bids"`
	Asks   []bookLevel `json:"asks"`
}

// FetchTokenBidPrice fetches the current best bid for a token from the CLOB
// book endpoint. Used by the CLI tools for one-off lookups outside the feed.
func (c *Client) FetchTokenBidPrice(ctx context.Context, tokenID string) (float64, error) {
	endpoint := fmt.Sprintf("%s/book?token_id=%s", c.clobURL, tokenID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "polyscalp/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
	}

	var book bookResponse
	if err := json.NewDecoder(resp.Body).Decode(&book); err != nil {
		return 0, fmt.Errorf("unmarshal response: %w", err)
	}

	if len(book.Bids) == 0 {
		return 0, fmt.Errorf("no bids available for token %s", tokenID)
	}

	bidPrice, err := strconv.ParseFloat(book.Bids[0].Price, 64)
	if err != nil {
		return 0, fmt.Errorf("parse bid price: %w", err)
	}
	return bidPrice, nil
}
