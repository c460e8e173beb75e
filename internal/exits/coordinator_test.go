package exits

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/polyquant/polyscalp/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mockOrderClient records placements and cancellations and can be told to
// fail the next placement.
type mockOrderClient struct {
	mu        sync.Mutex
	placed    []float64
	cancelled []string
	failNext  bool
	nextID    int
}

func (m *mockOrderClient) PlaceOrder(_ context.Context, tokenID, side string, price, size float64, postOnly bool) (*types.OrderAck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failNext {
		m.failNext = false
		return nil, errors.New("order rejected")
	}

	m.nextID++
	m.placed = append(m.placed, price)
	return &types.OrderAck{
		OrderID: fmt.Sprintf("order-%d", m.nextID),
		Status:  "live",
	}, nil
}

func (m *mockOrderClient) CancelOrder(_ context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cancelled = append(m.cancelled, orderID)
	return nil
}

func newTestCoordinator(t *testing.T, interval time.Duration) (*Coordinator, *mockOrderClient) {
	t.Helper()

	client := &mockOrderClient{}
	coord := New(&Config{
		Client:             client,
		Logger:             zap.NewNop(),
		RepriceMinInterval: interval,
	})
	return coord, client
}

func TestCoordinator_PlaceThenReprice(t *testing.T) {
	coord, client := newTestCoordinator(t, 0)
	ctx := context.Background()

	err := coord.PlaceOrReprice(ctx, "mkt-1", types.SideYes, "tok-no", 0.62, 10)
	require.NoError(t, err)
	assert.True(t, coord.HasActive("mkt-1"))

	price, ok := coord.LastPlacedPrice("mkt-1")
	require.True(t, ok)
	assert.InDelta(t, 0.62, price, 1e-9)

	// The ask improves: cancel the resting order and place lower
	err = coord.PlaceOrReprice(ctx, "mkt-1", types.SideYes, "tok-no", 0.59, 10)
	require.NoError(t, err)

	assert.Equal(t, []float64{0.62, 0.59}, client.placed)
	assert.Equal(t, []string{"order-1"}, client.cancelled)

	price, ok = coord.LastPlacedPrice("mkt-1")
	require.True(t, ok)
	assert.InDelta(t, 0.59, price, 1e-9)
}

func TestCoordinator_NoRepriceOnEqualOrHigher(t *testing.T) {
	coord, client := newTestCoordinator(t, 0)
	ctx := context.Background()

	require.NoError(t, coord.PlaceOrReprice(ctx, "mkt-1", types.SideYes, "tok-no", 0.62, 10))

	require.NoError(t, coord.PlaceOrReprice(ctx, "mkt-1", types.SideYes, "tok-no", 0.62, 10))
	require.NoError(t, coord.PlaceOrReprice(ctx, "mkt-1", types.SideYes, "tok-no", 0.65, 10))

	assert.Equal(t, []float64{0.62}, client.placed)
	assert.Empty(t, client.cancelled)
}

func TestCoordinator_RepriceThrottledByMinInterval(t *testing.T) {
	coord, client := newTestCoordinator(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, coord.PlaceOrReprice(ctx, "mkt-1", types.SideYes, "tok-no", 0.62, 10))

	// Strictly lower but inside the minimum interval: no cancel, no replace
	require.NoError(t, coord.PlaceOrReprice(ctx, "mkt-1", types.SideYes, "tok-no", 0.59, 10))

	assert.Equal(t, []float64{0.62}, client.placed)
	assert.Empty(t, client.cancelled)

	price, ok := coord.LastPlacedPrice("mkt-1")
	require.True(t, ok)
	assert.InDelta(t, 0.62, price, 1e-9)
}

func TestCoordinator_FailureSentinel(t *testing.T) {
	coord, client := newTestCoordinator(t, 0)
	ctx := context.Background()

	client.failNext = true
	err := coord.PlaceOrReprice(ctx, "mkt-1", types.SideYes, "tok-no", 0.62, 10)
	require.Error(t, err)
	assert.False(t, coord.HasActive("mkt-1"))

	// Same price next tick: sentinel suppresses the retry
	require.NoError(t, coord.PlaceOrReprice(ctx, "mkt-1", types.SideYes, "tok-no", 0.62, 10))
	assert.Empty(t, client.placed)

	// A strictly better price clears the sentinel and places
	require.NoError(t, coord.PlaceOrReprice(ctx, "mkt-1", types.SideYes, "tok-no", 0.58, 10))
	assert.Equal(t, []float64{0.58}, client.placed)
	assert.True(t, coord.HasActive("mkt-1"))
}

func TestCoordinator_SentinelClearedByCancelAll(t *testing.T) {
	coord, client := newTestCoordinator(t, 0)
	ctx := context.Background()

	client.failNext = true
	require.Error(t, coord.PlaceOrReprice(ctx, "mkt-1", types.SideYes, "tok-no", 0.62, 10))

	// Gate crossing clears the sentinel even with nothing resting
	coord.CancelAll(ctx, "mkt-1")

	require.NoError(t, coord.PlaceOrReprice(ctx, "mkt-1", types.SideYes, "tok-no", 0.62, 10))
	assert.Equal(t, []float64{0.62}, client.placed)
}

func TestCoordinator_CancelAll(t *testing.T) {
	coord, client := newTestCoordinator(t, 0)
	ctx := context.Background()

	require.NoError(t, coord.PlaceOrReprice(ctx, "mkt-1", types.SideYes, "tok-no", 0.62, 10))
	require.NoError(t, coord.PlaceOrReprice(ctx, "mkt-2", types.SideNo, "tok-yes", 0.40, 5))

	coord.CancelAll(ctx, "mkt-1")

	assert.False(t, coord.HasActive("mkt-1"))
	assert.True(t, coord.HasActive("mkt-2"))
	assert.Equal(t, []string{"order-1"}, client.cancelled)

	// Idempotent for an unknown or already-clean market
	coord.CancelAll(ctx, "mkt-1")
	coord.CancelAll(ctx, "mkt-3")
	assert.Equal(t, []string{"order-1"}, client.cancelled)
}

func TestCoordinator_OnExitFill(t *testing.T) {
	coord, _ := newTestCoordinator(t, 0)
	ctx := context.Background()

	require.NoError(t, coord.PlaceOrReprice(ctx, "mkt-1", types.SideYes, "tok-no", 0.62, 10))

	side, size, ok := coord.OnExitFill("mkt-1")
	require.True(t, ok)
	assert.Equal(t, types.SideYes, side)
	assert.InDelta(t, 10.0, size, 1e-9)
	assert.False(t, coord.HasActive("mkt-1"))

	_, _, ok = coord.OnExitFill("mkt-1")
	assert.False(t, ok)
}

func TestCoordinator_Remove(t *testing.T) {
	coord, _ := newTestCoordinator(t, 0)
	ctx := context.Background()

	require.NoError(t, coord.PlaceOrReprice(ctx, "mkt-1", types.SideYes, "tok-no", 0.62, 10))
	coord.Remove("mkt-1")

	assert.False(t, coord.HasActive("mkt-1"))
	assert.Empty(t, coord.ActiveOrders("mkt-1"))
}
