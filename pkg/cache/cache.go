package cache

import "time"

// Cache is a small TTL cache shared by discovery and the metadata client.
// Values for a 15-minute market only need to outlive the market, so eviction
// pressure is never a correctness concern.
type Cache interface {
	// Get returns (value, true) on a hit, (nil, false) on a miss.
	Get(key string) (interface{}, bool)

	// Set stores a value with a TTL. Returns false if the write was dropped.
	Set(key string, value interface{}, ttl time.Duration) bool

	// Delete removes a key.
	Delete(key string)

	// Close releases the cache's resources.
	Close()
}
