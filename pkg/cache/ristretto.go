package cache

import (
	"errors"
	"time"

	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"
)

// Every entry costs 1; we size the cache by item count, not bytes.
const itemCost = 1

// RistrettoCache backs the Cache interface with dgraph's ristretto.
type RistrettoCache struct {
	inner  *ristretto.Cache
	logger *zap.Logger
}

// RistrettoConfig holds ristretto sizing knobs.
type RistrettoConfig struct {
	NumCounters int64 // keys whose frequency is tracked; ~10x max items
	MaxCost     int64 // max items held
	BufferItems int64 // keys per Get buffer
	Logger      *zap.Logger
}

// NewRistrettoCache creates a ristretto-backed cache.
func NewRistrettoCache(cfg *RistrettoConfig) (Cache, error) {
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	inner, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     true,
	})
	if err != nil {
		return nil, err
	}

	return &RistrettoCache{
		inner:  inner,
		logger: cfg.Logger,
	}, nil
}

// Get returns (value, true) on a hit.
func (r *RistrettoCache) Get(key string) (interface{}, bool) {
	value, found := r.inner.Get(key)
	if found {
		CacheHitsTotal.Inc()
	} else {
		CacheMissesTotal.Inc()
	}
	return value, found
}

// Set stores a value with a TTL. Ristretto admission may reject the write
// under pressure; callers treat that as a soft failure.
func (r *RistrettoCache) Set(key string, value interface{}, ttl time.Duration) bool {
	ok := r.inner.SetWithTTL(key, value, itemCost, ttl)
	if ok {
		CacheSetsTotal.Inc()
	} else {
		r.logger.Debug("cache-set-dropped", zap.String("key", key))
	}
	return ok
}

// Delete removes a key.
func (r *RistrettoCache) Delete(key string) {
	r.inner.Del(key)
	CacheDeletesTotal.Inc()
}

// Close releases the cache's resources.
func (r *RistrettoCache) Close() {
	r.inner.Close()
}

// Wait blocks until pending writes are applied. Tests use it to make Set
// synchronous.
func (r *RistrettoCache) Wait() {
	r.inner.Wait()
}
