package markets

import (
	"testing"
	"time"

	"github.com/polyquant/polyscalp/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newSub(id string, end time.Time) *types.MarketSubscription {
	return &types.MarketSubscription{
		MarketID:   id,
		MarketSlug: "btc-up-down-" + id,
		EndDate:    end,
		TokenIDYes: "yes-" + id,
		TokenIDNo:  "no-" + id,
	}
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry(0, zap.NewNop())
	end := time.Now().Add(10 * time.Minute)

	require.NoError(t, r.Register(newSub("mkt-1", end)))

	sub, ok := r.Get("mkt-1")
	require.True(t, ok)
	assert.Equal(t, "yes-mkt-1", sub.TokenIDYes)
	assert.False(t, sub.SubscribedAt.IsZero())

	byTok, ok := r.ByToken("no-mkt-1")
	require.True(t, ok)
	assert.Equal(t, "mkt-1", byTok.MarketID)

	_, ok = r.ByToken("unknown")
	assert.False(t, ok)
}

func TestRegistry_RejectsEndedAndDuplicate(t *testing.T) {
	r := NewRegistry(0, zap.NewNop())

	err := r.Register(newSub("mkt-old", time.Now().Add(-time.Minute)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ended")

	end := time.Now().Add(10 * time.Minute)
	require.NoError(t, r.Register(newSub("mkt-1", end)))

	err = r.Register(newSub("mkt-1", end))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegistry_CapacityLimit(t *testing.T) {
	r := NewRegistry(2, zap.NewNop())
	end := time.Now().Add(10 * time.Minute)

	require.NoError(t, r.Register(newSub("mkt-1", end)))
	require.NoError(t, r.Register(newSub("mkt-2", end)))

	err := r.Register(newSub("mkt-3", end))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registry full")

	// A resolved market no longer counts against capacity
	sub, _ := r.Get("mkt-1")
	sub.EndDate = time.Now().Add(-time.Second)
	require.NoError(t, r.Register(newSub("mkt-3", end)))
}

func TestRegistry_ForEachActiveSkipsResolved(t *testing.T) {
	r := NewRegistry(0, zap.NewNop())
	now := time.Now()

	require.NoError(t, r.Register(newSub("mkt-live", now.Add(10*time.Minute))))
	require.NoError(t, r.Register(newSub("mkt-soon", now.Add(time.Second))))

	var seen []string
	r.ForEachActive(now.Add(2*time.Second), func(sub *types.MarketSubscription) {
		seen = append(seen, sub.MarketID)
	})

	assert.Equal(t, []string{"mkt-live"}, seen)
}

func TestRegistry_PruneRespectsGrace(t *testing.T) {
	r := NewRegistry(0, zap.NewNop())
	now := time.Now()

	require.NoError(t, r.Register(newSub("mkt-1", now.Add(time.Minute))))

	// Just resolved: still inside the retention grace
	removed := r.Prune(now.Add(2 * time.Minute))
	assert.Empty(t, removed)
	_, ok := r.Get("mkt-1")
	assert.True(t, ok)

	// Past the grace: gone
	removed = r.Prune(now.Add(time.Minute + retentionGrace + time.Second))
	require.Len(t, removed, 1)
	assert.Equal(t, "mkt-1", removed[0].MarketID)
	_, ok = r.Get("mkt-1")
	assert.False(t, ok)
}

func TestRegistry_Remove(t *testing.T) {
	r := NewRegistry(0, zap.NewNop())
	require.NoError(t, r.Register(newSub("mkt-1", time.Now().Add(10*time.Minute))))

	assert.True(t, r.Remove("mkt-1"))
	assert.False(t, r.Remove("mkt-1"))
	assert.Equal(t, 0, r.ActiveCount(time.Now()))
}
