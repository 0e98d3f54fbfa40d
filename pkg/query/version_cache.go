package query

import (
	"context"
	"sync"
	"time"

	"github.com/chroma-core/controlplane/pkg/model"
	"github.com/chroma-core/controlplane/pkg/types"
)

// Coordinator is the slice of coordinator.Coordinator the executor needs to
// resolve a collection's current version and segment file paths.
type Coordinator interface {
	GetCollection(ctx context.Context, req *model.GetCollection) (*model.Collection, error)
	GetSegments(ctx context.Context, collectionID string) ([]*model.Segment, error)
}

// VersionCache is the TTL-bounded local cache of collection version and
// segment_file_paths spec.md §4.4 step 1 describes, refreshed on miss, TTL
// expiry, or an explicit Invalidate call (a version-mismatch signal observed
// elsewhere, e.g. a stale-version error surfaced while reading a segment).
type VersionCache struct {
	coordinator Coordinator
	ttl         time.Duration

	mu      sync.Mutex
	entries map[string]*versionEntry
}

type versionEntry struct {
	collection *model.Collection
	segments   []*model.Segment
	fetchedAt  time.Time
}

func NewVersionCache(coordinator Coordinator, ttl time.Duration) *VersionCache {
	return &VersionCache{coordinator: coordinator, ttl: ttl, entries: make(map[string]*versionEntry)}
}

func (c *VersionCache) Resolve(ctx context.Context, collectionID string) (*model.Collection, []*model.Segment, error) {
	c.mu.Lock()
	if e, ok := c.entries[collectionID]; ok && time.Since(e.fetchedAt) < c.ttl {
		coll, segs := e.collection, e.segments
		c.mu.Unlock()
		return coll, segs, nil
	}
	c.mu.Unlock()
	return c.refresh(ctx, collectionID)
}

func (c *VersionCache) refresh(ctx context.Context, collectionID string) (*model.Collection, []*model.Segment, error) {
	id, err := types.Parse(collectionID)
	if err != nil {
		return nil, nil, err
	}
	coll, err := c.coordinator.GetCollection(ctx, &model.GetCollection{ID: id})
	if err != nil {
		return nil, nil, err
	}
	segs, err := c.coordinator.GetSegments(ctx, collectionID)
	if err != nil {
		return nil, nil, err
	}
	c.mu.Lock()
	c.entries[collectionID] = &versionEntry{collection: coll, segments: segs, fetchedAt: time.Now()}
	c.mu.Unlock()
	return coll, segs, nil
}

// Invalidate drops the cached entry so the next Resolve refetches, used when
// a caller observes a version-mismatch signal from the write path.
func (c *VersionCache) Invalidate(collectionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, collectionID)
}
