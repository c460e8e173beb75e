package markets

import (
	"fmt"
	"sync"
	"time"

	"github.com/polyquant/polyscalp/pkg/types"
	"go.uber.org/zap"
)

// retentionGrace is how long a resolved market stays in the registry so
// late fills and final stats can still find it.
const retentionGrace = 600 * time.Second

// Registry tracks the markets the engine is actively trading. Each entry is
// one 15-minute window with its two token ids and end time.
type Registry struct {
	mu       sync.RWMutex
	markets  map[string]*types.MarketSubscription
	capacity int
	logger   *zap.Logger
}

// NewRegistry creates a registry capped at the given number of concurrent
// markets. A capacity of zero means unlimited.
func NewRegistry(capacity int, logger *zap.Logger) *Registry {
	return &Registry{
		markets:  make(map[string]*types.MarketSubscription),
		capacity: capacity,
		logger:   logger,
	}
}

// Register adds a market. Markets already past their end time, duplicates,
// and registrations beyond capacity are rejected.
func (r *Registry) Register(sub *types.MarketSubscription) error {
	now := time.Now()

	if !sub.EndDate.After(now) {
		RegistrationsRejectedTotal.WithLabelValues("ended").Inc()
		return fmt.Errorf("market %s ended at %s", sub.MarketID, sub.EndDate.Format(time.RFC3339))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.markets[sub.MarketID]; exists {
		RegistrationsRejectedTotal.WithLabelValues("duplicate").Inc()
		return fmt.Errorf("market %s already registered", sub.MarketID)
	}
	if r.capacity > 0 && r.activeCountLocked(now) >= r.capacity {
		RegistrationsRejectedTotal.WithLabelValues("capacity").Inc()
		return fmt.Errorf("registry full: %d active markets", r.capacity)
	}

	sub.SubscribedAt = now
	r.markets[sub.MarketID] = sub
	ActiveMarkets.Set(float64(len(r.markets)))

	r.logger.Info("market-registered",
		zap.String("market-id", sub.MarketID),
		zap.String("slug", sub.MarketSlug),
		zap.Time("end-date", sub.EndDate),
		zap.Duration("remaining", sub.EndDate.Sub(now)))

	return nil
}

// Get returns a market subscription by id.
func (r *Registry) Get(marketID string) (*types.MarketSubscription, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sub, ok := r.markets[marketID]
	return sub, ok
}

// ByToken resolves a token id back to its market.
func (r *Registry) ByToken(tokenID string) (*types.MarketSubscription, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, sub := range r.markets {
		if sub.TokenIDYes == tokenID || sub.TokenIDNo == tokenID {
			return sub, true
		}
	}
	return nil, false
}

// ForEachActive calls fn for every market whose end time is still in the
// future. The callback runs outside the lock on a snapshot.
func (r *Registry) ForEachActive(now time.Time, fn func(*types.MarketSubscription)) {
	r.mu.RLock()
	active := make([]*types.MarketSubscription, 0, len(r.markets))
	for _, sub := range r.markets {
		if sub.EndDate.After(now) {
			active = append(active, sub)
		}
	}
	r.mu.RUnlock()

	for _, sub := range active {
		fn(sub)
	}
}

// Prune removes markets that resolved more than the retention grace ago and
// returns them so the caller can tear down feeds and flush stats.
func (r *Registry) Prune(now time.Time) []*types.MarketSubscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []*types.MarketSubscription
	for id, sub := range r.markets {
		if now.Sub(sub.EndDate) > retentionGrace {
			delete(r.markets, id)
			removed = append(removed, sub)
			PrunedMarketsTotal.Inc()
		}
	}
	ActiveMarkets.Set(float64(len(r.markets)))

	for _, sub := range removed {
		r.logger.Info("market-pruned",
			zap.String("market-id", sub.MarketID),
			zap.String("slug", sub.MarketSlug))
	}
	return removed
}

// Remove drops a market immediately, regardless of its end time.
func (r *Registry) Remove(marketID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.markets[marketID]; !ok {
		return false
	}
	delete(r.markets, marketID)
	ActiveMarkets.Set(float64(len(r.markets)))
	return true
}

// ActiveCount returns the number of markets still before their end time.
func (r *Registry) ActiveCount(now time.Time) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeCountLocked(now)
}

func (r *Registry) activeCountLocked(now time.Time) int {
	n := 0
	for _, sub := range r.markets {
		if sub.EndDate.After(now) {
			n++
		}
	}
	return n
}

// All returns a snapshot of every registered market, active or resolved.
func (r *Registry) All() []*types.MarketSubscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*types.MarketSubscription, 0, len(r.markets))
	for _, sub := range r.markets {
		out = append(out, sub)
	}
	return out
}
