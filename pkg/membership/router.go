package membership

import (
	"context"
	"sync"
	"time"
)

// Router answers spec.md §4.5's collection_id -> ranked_worker_list query
// for one role, backed by a TTL-cached read of Store so every query/compactor
// lookup doesn't round-trip the coordination store.
type Router struct {
	role   Role
	store  Store
	hasher Hasher
	ttl    time.Duration

	mu       sync.Mutex
	cached   Memberlist
	cachedAt time.Time
}

func NewRouter(role Role, store Store, hasher Hasher, ttl time.Duration) *Router {
	return &Router{role: role, store: store, hasher: hasher, ttl: ttl}
}

// RankedWorkers returns the preference-ordered worker list for collectionID,
// refreshing the cached memberlist if it's past ttl.
func (r *Router) RankedWorkers(ctx context.Context, collectionID string) ([]string, error) {
	workers, err := r.members(ctx)
	if err != nil {
		return nil, err
	}
	return Rank(collectionID, workers, r.hasher)
}

// Primary returns only the top-ranked worker for collectionID.
func (r *Router) Primary(ctx context.Context, collectionID string) (string, error) {
	ranked, err := r.RankedWorkers(ctx, collectionID)
	if err != nil {
		return "", err
	}
	return ranked[0], nil
}

// Owns reports whether workerID is the top-ranked (primary) owner of
// collectionID — the check the compactor worker's membership-owned sweep
// uses (spec.md §4.3 step 1).
func (r *Router) Owns(ctx context.Context, collectionID, workerID string) (bool, error) {
	primary, err := r.Primary(ctx, collectionID)
	if err != nil {
		return false, err
	}
	return primary == workerID, nil
}

func (r *Router) members(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cached != nil && time.Since(r.cachedAt) < r.ttl {
		return r.cached.ids(), nil
	}
	list, _, err := r.store.Get(ctx, r.role)
	if err != nil {
		if r.cached != nil {
			// Stale-but-present beats failing a routing decision outright.
			return r.cached.ids(), nil
		}
		return nil, err
	}
	r.cached = list
	r.cachedAt = time.Now()
	return list.ids(), nil
}
