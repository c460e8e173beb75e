package markets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCache is an in-memory cache.Cache for tests.
type fakeCache struct {
	data map[string]interface{}
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string]interface{})}
}

func (f *fakeCache) Get(key string) (interface{}, bool) {
	v, ok := f.data[key]
	return v, ok
}

func (f *fakeCache) Set(key string, value interface{}, _ time.Duration) bool {
	f.data[key] = value
	return true
}

func (f *fakeCache) Delete(key string) { delete(f.data, key) }
func (f *fakeCache) Clear()            { f.data = make(map[string]interface{}) }
func (f *fakeCache) Close()            {}

func metadataServer(t *testing.T, fetches *atomic.Int64) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/tick-size", func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		w.Write([]byte(`{"minimum_tick_size": 0.001}`))
	})
	mux.HandleFunc("/book", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"min_size": 5, "market": {"minimum_order_size": 0}}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestMetadataClient_Fetch(t *testing.T) {
	var fetches atomic.Int64
	srv := metadataServer(t, &fetches)

	client := NewMetadataClient(srv.URL)
	tickSize, minOrderSize, err := client.FetchTokenMetadata(context.Background(), "tok-1")
	require.NoError(t, err)

	assert.InDelta(t, 0.001, tickSize, 1e-9)
	assert.InDelta(t, 5.0, minOrderSize, 1e-9)
}

func TestMetadataClient_DefaultsOnAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewMetadataClient(srv.URL)
	tickSize, minOrderSize, err := client.FetchTokenMetadata(context.Background(), "tok-1")
	require.NoError(t, err)

	assert.InDelta(t, defaultTickSize, tickSize, 1e-9)
	assert.InDelta(t, defaultMinOrderSize, minOrderSize, 1e-9)
}

func TestCachedMetadataClient_FetchesOnceThenHitsCache(t *testing.T) {
	var fetches atomic.Int64
	srv := metadataServer(t, &fetches)

	cached := NewCachedMetadataClient(NewMetadataClient(srv.URL), newFakeCache())

	for i := 0; i < 3; i++ {
		params, err := cached.TokenParams(context.Background(), "tok-1")
		require.NoError(t, err)
		assert.InDelta(t, 0.001, params.TickSize, 1e-9)
	}

	assert.Equal(t, int64(1), fetches.Load())
}

func TestCachedMetadataClient_UpdateTickSize(t *testing.T) {
	var fetches atomic.Int64
	srv := metadataServer(t, &fetches)

	cached := NewCachedMetadataClient(NewMetadataClient(srv.URL), newFakeCache())

	_, err := cached.TokenParams(context.Background(), "tok-1")
	require.NoError(t, err)

	cached.UpdateTickSize("tok-1", 0.01)

	params, err := cached.TokenParams(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.InDelta(t, 0.01, params.TickSize, 1e-9)
	assert.InDelta(t, 5.0, params.MinOrderSize, 1e-9)

	// Unknown token update is a no-op
	cached.UpdateTickSize("tok-unknown", 0.05)
	assert.Equal(t, int64(1), fetches.Load())
}
