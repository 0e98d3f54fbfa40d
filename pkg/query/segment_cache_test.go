package query

import (
	"context"
	"testing"

	"github.com/chroma-core/controlplane/pkg/objectstore"
	"github.com/stretchr/testify/require"
)

func newCacheWithFixtures(t *testing.T, contents map[string][]byte) *SegmentCache {
	t.Helper()
	store := objectstore.NewMemoryStore()
	for path, content := range contents {
		require.NoError(t, store.Put(context.Background(), path, content))
	}
	return NewSegmentCache(store, 1024)
}

func TestSegmentCacheAcquireFetchesOnMiss(t *testing.T) {
	cache := newCacheWithFixtures(t, map[string][]byte{"p1": []byte("hello")})
	content, err := cache.Acquire(context.Background(), "p1")
	require.NoError(t, err)
	require.Equal(t, "hello", string(content))
}

func TestSegmentCacheEvictsUnpinnedBeforePinned(t *testing.T) {
	cache := newCacheWithFixtures(t, map[string][]byte{
		"p1": make([]byte, 600),
		"p2": make([]byte, 600),
	})
	ctx := context.Background()

	_, err := cache.Acquire(ctx, "p1")
	require.NoError(t, err)
	cache.Release("p1") // p1 now unpinned, eligible for eviction

	_, err = cache.Acquire(ctx, "p2")
	require.NoError(t, err)

	cache.mu.Lock()
	_, p1Present := cache.entries["p1"]
	_, p2Present := cache.entries["p2"]
	cache.mu.Unlock()
	require.False(t, p1Present, "p1 should have been evicted to make room for p2")
	require.True(t, p2Present)
}

func TestSegmentCacheNeverEvictsPinnedEntry(t *testing.T) {
	cache := newCacheWithFixtures(t, map[string][]byte{
		"p1": make([]byte, 600),
		"p2": make([]byte, 600),
	})
	ctx := context.Background()

	_, err := cache.Acquire(ctx, "p1") // stays pinned — no Release call
	require.NoError(t, err)

	_, err = cache.Acquire(ctx, "p2")
	require.NoError(t, err)

	cache.mu.Lock()
	_, p1Present := cache.entries["p1"]
	cache.mu.Unlock()
	require.True(t, p1Present, "a pinned entry must survive admission pressure")
}
