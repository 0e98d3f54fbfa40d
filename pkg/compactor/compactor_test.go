package compactor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/chroma-core/controlplane/pkg/common"
	chromalog "github.com/chroma-core/controlplane/pkg/log"
	"github.com/chroma-core/controlplane/pkg/log/embedded"
	"github.com/chroma-core/controlplane/pkg/model"
	"github.com/chroma-core/controlplane/pkg/types"
	"github.com/stretchr/testify/require"
)

// newLog gives each test an isolated embedded log store; the compactor
// package only depends on chromalog.Log, so the embedded backend exercises
// the same Enumerate/ScrubCompactedPrefix/GetHead contract the distributed
// store honors without needing a Postgres testcontainer.
func newLog(t *testing.T) (chromalog.Log, error) {
	t.Helper()
	s, err := embedded.NewStore(t.TempDir())
	if err != nil {
		return nil, err
	}
	t.Cleanup(func() { s.Close() })
	return s, nil
}

type fakeCoordinator struct {
	collections map[string]*model.Collection
	segments    map[string][]*model.Segment
	flushCalls  []*model.FlushCollectionCompaction
	flushErr    error
	failures    map[string]int
}

func (f *fakeCoordinator) GetCollection(ctx context.Context, req *model.GetCollection) (*model.Collection, error) {
	c, ok := f.collections[req.ID.String()]
	if !ok {
		return nil, common.ErrCollectionNotFound
	}
	return c, nil
}

func (f *fakeCoordinator) GetSegments(ctx context.Context, collectionID string) ([]*model.Segment, error) {
	return f.segments[collectionID], nil
}

func (f *fakeCoordinator) FlushCollectionCompaction(ctx context.Context, req *model.FlushCollectionCompaction) (*model.FlushCollectionInfo, error) {
	f.flushCalls = append(f.flushCalls, req)
	if f.flushErr != nil {
		return nil, f.flushErr
	}
	c := f.collections[req.ID.String()]
	c.Version++
	c.LogCompactionOffset = req.NewLogCompactionOffset
	c.TotalRecordsPostCompaction = req.TotalRecordsPostCompaction
	return &model.FlushCollectionInfo{ID: req.ID.String(), CollectionVersion: c.Version}, nil
}

func (f *fakeCoordinator) RecordCompactionFailure(ctx context.Context, collectionID string) error {
	if f.failures == nil {
		f.failures = make(map[string]int)
	}
	f.failures[collectionID]++
	return nil
}

type fakeLeaseStore struct {
	mu           sync.Mutex
	held         map[string]bool
	refreshCount int
}

func (f *fakeLeaseStore) TryAcquire(collectionID, holderID string, expiresAt int64) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held == nil {
		f.held = make(map[string]bool)
	}
	if f.held[collectionID] {
		return "", false, nil
	}
	f.held[collectionID] = true
	return "nonce-1", true, nil
}

func (f *fakeLeaseStore) Refresh(collectionID, holderID, nonce string, newExpiresAt int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshCount++
	return f.held[collectionID], nil
}

func (f *fakeLeaseStore) refreshes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshCount
}

func (f *fakeLeaseStore) Release(collectionID, holderID, nonce string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.held, collectionID)
	return nil
}

type fakeMembership struct {
	owned []string
}

func (f *fakeMembership) OwnedCollections(ctx context.Context) ([]string, error) {
	return f.owned, nil
}

type fakeBuilder struct {
	result BuildResult
	err    error
	delay  time.Duration
}

func (f *fakeBuilder) Build(ctx context.Context, collectionID string, segments []*model.Segment, records []chromalog.Record) (BuildResult, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return BuildResult{}, ctx.Err()
		}
	}
	return f.result, f.err
}

func newTestWorker(t *testing.T, coordinator Coordinator, logSvc chromalog.Log, leases LeaseStore, builder IndexBuilder, owned []string) *Worker {
	t.Helper()
	return NewWorker(coordinator, logSvc, leases, &fakeMembership{owned: owned}, builder, Config{
		HolderID:           "worker-1",
		StalenessThreshold: 0,
		StalenessAge:       time.Hour,
		LeaseTTL:           time.Minute,
		PollInterval:       time.Hour,
		EnumerateBatchSize: 100,
	})
}

func TestCompactOnceAdvancesVersionAndScrubsLog(t *testing.T) {
	ctx := context.Background()
	id := types.MustParse("00000000-0000-0000-0000-000000000001")
	collectionID := id.String()

	logSvc, err := newLog(t)
	require.NoError(t, err)
	_, _, err = logSvc.Append(ctx, collectionID, []chromalog.Record{
		{Op: chromalog.OpUpsert, ID: "a"},
		{Op: chromalog.OpUpsert, ID: "b"},
	})
	require.NoError(t, err)

	coordinator := &fakeCoordinator{
		collections: map[string]*model.Collection{
			collectionID: {ID: id, TenantID: "t1", Version: 1, LogCompactionOffset: 0},
		},
		segments: map[string][]*model.Segment{
			collectionID: {{ID: types.MustParse("00000000-0000-0000-0000-0000000000aa"), Scope: "VECTOR"}},
		},
	}
	leases := &fakeLeaseStore{}
	builder := &fakeBuilder{result: BuildResult{SegmentFilePaths: map[string]map[string][]string{
		"00000000-0000-0000-0000-0000000000aa": {"VECTOR": {"s3://bucket/v2"}},
	}}}

	w := newTestWorker(t, coordinator, logSvc, leases, builder, []string{collectionID})
	w.compactOnce(ctx, collectionID)

	require.Len(t, coordinator.flushCalls, 1)
	require.Equal(t, int64(2), coordinator.flushCalls[0].NewLogCompactionOffset)
	require.Equal(t, int32(2), coordinator.collections[collectionID].Version)
	require.Empty(t, coordinator.failures)

	_, _, _, enumErr := logSvc.Enumerate(ctx, collectionID, 1, 10)
	require.Error(t, enumErr, "records below the new compaction offset should be scrubbed")
}

func TestCompactOnceRecordsFailureOnNonAbortedError(t *testing.T) {
	ctx := context.Background()
	id := types.MustParse("00000000-0000-0000-0000-000000000002")
	collectionID := id.String()

	logSvc, err := newLog(t)
	require.NoError(t, err)

	coordinator := &fakeCoordinator{
		collections: map[string]*model.Collection{
			collectionID: {ID: id, TenantID: "t1", Version: 1},
		},
		flushErr: common.ErrSegmentNotFound,
	}
	leases := &fakeLeaseStore{}
	builder := &fakeBuilder{}

	w := newTestWorker(t, coordinator, logSvc, leases, builder, []string{collectionID})
	w.compactOnce(ctx, collectionID)

	require.Equal(t, 1, coordinator.failures[collectionID])
}

func TestCompactOnceSkipsFailureOnAbortedError(t *testing.T) {
	ctx := context.Background()
	id := types.MustParse("00000000-0000-0000-0000-000000000003")
	collectionID := id.String()

	logSvc, err := newLog(t)
	require.NoError(t, err)

	coordinator := &fakeCoordinator{
		collections: map[string]*model.Collection{
			collectionID: {ID: id, TenantID: "t1", Version: 1},
		},
		flushErr: common.ErrCollectionVersionStale,
	}
	leases := &fakeLeaseStore{}
	builder := &fakeBuilder{}

	w := newTestWorker(t, coordinator, logSvc, leases, builder, []string{collectionID})
	w.compactOnce(ctx, collectionID)

	require.Empty(t, coordinator.failures, "a stale-version abort should retry next sweep, not count as a failure")
}

func TestCompactOnceSkipsWhenLeaseHeldByOther(t *testing.T) {
	ctx := context.Background()
	id := types.MustParse("00000000-0000-0000-0000-000000000004")
	collectionID := id.String()

	logSvc, err := newLog(t)
	require.NoError(t, err)

	coordinator := &fakeCoordinator{
		collections: map[string]*model.Collection{collectionID: {ID: id, TenantID: "t1", Version: 1}},
	}
	leases := &fakeLeaseStore{held: map[string]bool{collectionID: true}}
	builder := &fakeBuilder{}

	w := newTestWorker(t, coordinator, logSvc, leases, builder, []string{collectionID})
	w.compactOnce(ctx, collectionID)

	require.Empty(t, coordinator.flushCalls)
}

func TestCompactOnceRefreshesLeaseAcrossSlowBuild(t *testing.T) {
	ctx := context.Background()
	id := types.MustParse("00000000-0000-0000-0000-000000000005")
	collectionID := id.String()

	logSvc, err := newLog(t)
	require.NoError(t, err)

	coordinator := &fakeCoordinator{
		collections: map[string]*model.Collection{
			collectionID: {ID: id, TenantID: "t1", Version: 1},
		},
	}
	leases := &fakeLeaseStore{}
	builder := &fakeBuilder{delay: 120 * time.Millisecond}

	// A lease TTL much shorter than the build: without refreshing, the
	// lease would be long expired by the time Build returns.
	w := NewWorker(coordinator, logSvc, leases, &fakeMembership{owned: []string{collectionID}}, builder, Config{
		HolderID:           "worker-1",
		StalenessThreshold: 0,
		StalenessAge:       time.Hour,
		LeaseTTL:           20 * time.Millisecond,
		PollInterval:       time.Hour,
		EnumerateBatchSize: 100,
	})
	w.compactOnce(ctx, collectionID)

	require.GreaterOrEqual(t, leases.refreshes(), 3, "a build spanning several LeaseTTL/2 intervals should have been refreshed repeatedly")
	require.Len(t, coordinator.flushCalls, 1, "the lease should have survived the build and let the flush proceed")
}
