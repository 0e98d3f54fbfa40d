package query

import (
	"context"
	"testing"
	"time"

	chromalog "github.com/chroma-core/controlplane/pkg/log"
	"github.com/chroma-core/controlplane/pkg/model"
	"github.com/chroma-core/controlplane/pkg/objectstore"
	"github.com/chroma-core/controlplane/pkg/types"
	"github.com/stretchr/testify/require"
)

type fakeCoordinator struct {
	collection *model.Collection
	segments   []*model.Segment
	calls      int
}

func (f *fakeCoordinator) GetCollection(ctx context.Context, req *model.GetCollection) (*model.Collection, error) {
	f.calls++
	return f.collection, nil
}

func (f *fakeCoordinator) GetSegments(ctx context.Context, collectionID string) ([]*model.Segment, error) {
	return f.segments, nil
}

type fakeLog struct {
	head    int64
	records []chromalog.Record
}

func (f *fakeLog) Enumerate(ctx context.Context, collectionID string, fromOffset int64, limit int) ([]chromalog.Record, int64, int64, error) {
	return f.records, f.head + 1, f.head, nil
}

func (f *fakeLog) GetHead(ctx context.Context, collectionID string) (int64, error) {
	return f.head, nil
}

type fakeEvaluator struct {
	hits []Hit
}

func (f *fakeEvaluator) Evaluate(ctx context.Context, plan Plan, segments []*model.Segment, artifacts map[string][]byte) ([]Hit, error) {
	return f.hits, nil
}

func TestExecutorQueryFoldsPendingLogOverEvaluatedHits(t *testing.T) {
	ctx := context.Background()
	id := types.MustParse("00000000-0000-0000-0000-000000000001")
	collectionID := id.String()

	store := objectstore.NewMemoryStore()
	require.NoError(t, store.Put(ctx, "seg1/vector", []byte("vector-data")))

	coordinator := &fakeCoordinator{
		collection: &model.Collection{ID: id, Version: 3, LogCompactionOffset: 5},
		segments: []*model.Segment{
			{ID: types.MustParse("00000000-0000-0000-0000-0000000000aa"), Scope: "VECTOR", FilePaths: map[string][]string{"vector": {"seg1/vector"}}},
		},
	}
	logSvc := &fakeLog{head: 7, records: []chromalog.Record{{Op: chromalog.OpDelete, ID: "a"}}}
	evaluator := &fakeEvaluator{hits: []Hit{{ID: "a"}, {ID: "b"}}}

	executor := NewExecutor(
		NewVersionCache(coordinator, time.Minute),
		NewSegmentCache(store, 1<<20),
		logSvc,
		evaluator,
	)

	result, err := executor.Query(ctx, collectionID, Plan{Kind: PlanMetadataGet})
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	require.Equal(t, "b", result.Hits[0].ID)
	require.Equal(t, int32(3), result.Token.Version)
	require.Equal(t, int64(7), result.Token.HeadOffset)
}

func TestExecutorSkipsLogEnumerateWhenCaughtUp(t *testing.T) {
	ctx := context.Background()
	id := types.MustParse("00000000-0000-0000-0000-000000000002")
	collectionID := id.String()

	store := objectstore.NewMemoryStore()
	coordinator := &fakeCoordinator{collection: &model.Collection{ID: id, Version: 1, LogCompactionOffset: 10}}
	logSvc := &fakeLog{head: 10, records: []chromalog.Record{{Op: chromalog.OpDelete, ID: "x"}}}
	evaluator := &fakeEvaluator{hits: []Hit{{ID: "x"}}}

	executor := NewExecutor(NewVersionCache(coordinator, time.Minute), NewSegmentCache(store, 1<<20), logSvc, evaluator)

	result, err := executor.Query(ctx, collectionID, Plan{Kind: PlanMetadataGet})
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	require.Equal(t, "x", result.Hits[0].ID)
}

func TestVersionCacheServesFromCacheWithinTTL(t *testing.T) {
	ctx := context.Background()
	id := types.MustParse("00000000-0000-0000-0000-000000000003")
	coordinator := &fakeCoordinator{collection: &model.Collection{ID: id, Version: 1}}
	cache := NewVersionCache(coordinator, time.Minute)

	_, _, err := cache.Resolve(ctx, id.String())
	require.NoError(t, err)
	_, _, err = cache.Resolve(ctx, id.String())
	require.NoError(t, err)

	require.Equal(t, 1, coordinator.calls)
}

func TestVersionCacheInvalidateForcesRefresh(t *testing.T) {
	ctx := context.Background()
	id := types.MustParse("00000000-0000-0000-0000-000000000004")
	coordinator := &fakeCoordinator{collection: &model.Collection{ID: id, Version: 1}}
	cache := NewVersionCache(coordinator, time.Minute)

	_, _, err := cache.Resolve(ctx, id.String())
	require.NoError(t, err)
	cache.Invalidate(id.String())
	_, _, err = cache.Resolve(ctx, id.String())
	require.NoError(t, err)

	require.Equal(t, 2, coordinator.calls)
}
