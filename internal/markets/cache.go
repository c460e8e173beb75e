package markets

import (
	"context"
	"fmt"
	"time"

	"github.com/polyquant/polyscalp/pkg/cache"
)

// TokenParams holds the cached trading parameters for one token.
type TokenParams struct {
	TickSize     float64
	MinOrderSize float64
	FetchedAt    time.Time
}

// CachedMetadataClient wraps MetadataClient with a cache. A 15-minute market
// series reuses the same parameters across windows, so one fetch per token
// per day is plenty.
type CachedMetadataClient struct {
	client *MetadataClient
	cache  cache.Cache
	ttl    time.Duration
}

// NewCachedMetadataClient creates a cached metadata client.
func NewCachedMetadataClient(client *MetadataClient, c cache.Cache) *CachedMetadataClient {
	return &CachedMetadataClient{
		client: client,
		cache:  c,
		ttl:    24 * time.Hour,
	}
}

func metadataKey(tokenID string) string {
	return fmt.Sprintf("metadata:%s", tokenID)
}

// TokenParams returns the trading parameters for a token, fetching on miss.
func (c *CachedMetadataClient) TokenParams(ctx context.Context, tokenID string) (*TokenParams, error) {
	if c.cache != nil {
		if cached, ok := c.cache.Get(metadataKey(tokenID)); ok {
			if params, ok := cached.(*TokenParams); ok {
				MetadataCacheHitsTotal.Inc()
				return params, nil
			}
		}
		MetadataCacheMissesTotal.Inc()
	}

	tickSize, minOrderSize, err := c.client.FetchTokenMetadata(ctx, tokenID)
	if err != nil {
		return nil, err
	}

	params := &TokenParams{
		TickSize:     tickSize,
		MinOrderSize: minOrderSize,
		FetchedAt:    time.Now(),
	}
	if c.cache != nil {
		c.cache.Set(metadataKey(tokenID), params, c.ttl)
	}
	return params, nil
}

// UpdateTickSize refreshes a cached tick size in place, typically on a
// tick_size_change feed event. Unknown tokens are a no-op and get the
// correct value on their next fetch.
func (c *CachedMetadataClient) UpdateTickSize(tokenID string, newTickSize float64) {
	if c.cache == nil {
		return
	}

	cached, ok := c.cache.Get(metadataKey(tokenID))
	if !ok {
		return
	}
	params, ok := cached.(*TokenParams)
	if !ok {
		return
	}

	c.cache.Set(metadataKey(tokenID), &TokenParams{
		TickSize:     newTickSize,
		MinOrderSize: params.MinOrderSize,
		FetchedAt:    time.Now(),
	}, c.ttl)
}
