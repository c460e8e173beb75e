package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCache(t *testing.T) *RistrettoCache {
	t.Helper()

	c, err := NewRistrettoCache(&RistrettoConfig{
		NumCounters: 1000,
		MaxCost:     100,
		BufferItems: 64,
		Logger:      zap.NewNop(),
	})
	require.NoError(t, err)
	t.Cleanup(c.Close)

	rc, ok := c.(*RistrettoCache)
	require.True(t, ok)
	return rc
}

func TestRistrettoCache_SetGet(t *testing.T) {
	c := newTestCache(t)

	require.True(t, c.Set("market-1", "value-1", time.Minute))
	c.Wait()

	got, found := c.Get("market-1")
	require.True(t, found)
	assert.Equal(t, "value-1", got)
}

func TestRistrettoCache_Miss(t *testing.T) {
	c := newTestCache(t)

	_, found := c.Get("never-set")
	assert.False(t, found)
}

func TestRistrettoCache_Delete(t *testing.T) {
	c := newTestCache(t)

	require.True(t, c.Set("market-1", 42, time.Minute))
	c.Wait()
	c.Delete("market-1")

	_, found := c.Get("market-1")
	assert.False(t, found)
}

func TestRistrettoCache_TTLExpiry(t *testing.T) {
	c := newTestCache(t)

	require.True(t, c.Set("short-lived", "v", 50*time.Millisecond))
	c.Wait()

	_, found := c.Get("short-lived")
	require.True(t, found)

	time.Sleep(100 * time.Millisecond)

	_, found = c.Get("short-lived")
	assert.False(t, found)
}

func TestNewRistrettoCache_RequiresLogger(t *testing.T) {
	_, err := NewRistrettoCache(&RistrettoConfig{
		NumCounters: 1000,
		MaxCost:     100,
		BufferItems: 64,
	})
	require.Error(t, err)
}
