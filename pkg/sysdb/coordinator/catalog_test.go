package coordinator

import (
	"context"
	"testing"

	"github.com/chroma-core/controlplane/pkg/common"
	"github.com/chroma-core/controlplane/pkg/model"
	"github.com/chroma-core/controlplane/pkg/sysdb/metastore/db/dao"
	"github.com/chroma-core/controlplane/pkg/sysdb/metastore/db/dbcore"
	"github.com/chroma-core/controlplane/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	dbcore.ConfigSqliteForTesting()
	return NewCatalog(dao.NewMetaDomain(), dbcore.NewTxImpl())
}

func createTestCollection(t *testing.T, tc *Catalog, tenant, database, name string) *model.Collection {
	t.Helper()
	dim := int32(128)
	collID := types.NewUniqueID()
	segs := []*model.CreateSegment{
		{ID: types.NewUniqueID(), CollectionID: collID, Scope: "METADATA", Type: "sqlite"},
		{ID: types.NewUniqueID(), CollectionID: collID, Scope: "RECORD", Type: "log"},
		{ID: types.NewUniqueID(), CollectionID: collID, Scope: "VECTOR", Type: "hnsw"},
	}
	coll, created, err := tc.CreateCollection(context.Background(), &model.CreateCollection{
		ID:             collID,
		Name:           name,
		TenantID:       tenant,
		DatabaseName:   database,
		Dimension:      &dim,
		DistanceMetric: model.DistanceMetricCosine,
		Metadata:       model.NewMetadata(),
	}, segs)
	require.NoError(t, err)
	require.True(t, created)
	return coll
}

func TestCreateCollection_GetOrCreateIdempotence(t *testing.T) {
	tc := newTestCatalog(t)
	ctx := context.Background()
	coll := createTestCollection(t, tc, common.DefaultTenant, common.DefaultDatabase, "my-collection")

	dim := int32(128)
	segID := types.NewUniqueID()
	again, created, err := tc.CreateCollection(ctx, &model.CreateCollection{
		ID:             types.NewUniqueID(),
		Name:           "my-collection",
		TenantID:       common.DefaultTenant,
		DatabaseName:   common.DefaultDatabase,
		Dimension:      &dim,
		DistanceMetric: model.DistanceMetricCosine,
		GetOrCreate:    true,
		Metadata:       model.NewMetadata(),
	}, []*model.CreateSegment{{ID: segID, Scope: "METADATA", Type: "sqlite"}})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, coll.ID, again.ID)
}

func TestCreateCollection_RejectsDuplicateWithoutGetOrCreate(t *testing.T) {
	tc := newTestCatalog(t)
	createTestCollection(t, tc, common.DefaultTenant, common.DefaultDatabase, "dup")

	_, _, err := tc.CreateCollection(context.Background(), &model.CreateCollection{
		ID:           types.NewUniqueID(),
		Name:         "dup",
		TenantID:     common.DefaultTenant,
		DatabaseName: common.DefaultDatabase,
		Metadata:     model.NewMetadata(),
	}, nil)
	assert.ErrorIs(t, err, common.ErrCollectionUniqueConstraintViolation)
}

func TestCreateCollection_GetOrCreateDimensionMismatch(t *testing.T) {
	tc := newTestCatalog(t)
	createTestCollection(t, tc, common.DefaultTenant, common.DefaultDatabase, "dim-check")

	otherDim := int32(256)
	_, _, err := tc.CreateCollection(context.Background(), &model.CreateCollection{
		ID:             types.NewUniqueID(),
		Name:           "dim-check",
		TenantID:       common.DefaultTenant,
		DatabaseName:   common.DefaultDatabase,
		Dimension:      &otherDim,
		DistanceMetric: model.DistanceMetricCosine,
		GetOrCreate:    true,
		Metadata:       model.NewMetadata(),
	}, nil)
	assert.ErrorIs(t, err, common.ErrCollectionDimensionMismatch)
}

func TestFlushCollectionCompaction_BumpsVersionAndRejectsStale(t *testing.T) {
	tc := newTestCatalog(t)
	ctx := context.Background()
	coll := createTestCollection(t, tc, common.DefaultTenant, common.DefaultDatabase, "flush-me")
	assert.Equal(t, int32(0), coll.Version)

	info, err := tc.FlushCollectionCompaction(ctx, &model.FlushCollectionCompaction{
		ID:                         coll.ID,
		TenantID:                   common.DefaultTenant,
		ExpectedVersion:            0,
		NewLogCompactionOffset:     100,
		TotalRecordsPostCompaction: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), info.CollectionVersion)

	// Same expected_version again must be rejected (spec.md §6 invariant 3).
	_, err = tc.FlushCollectionCompaction(ctx, &model.FlushCollectionCompaction{
		ID:                     coll.ID,
		TenantID:               common.DefaultTenant,
		ExpectedVersion:        0,
		NewLogCompactionOffset: 100,
	})
	assert.ErrorIs(t, err, common.ErrCollectionVersionStale)

	refreshed, err := tc.GetCollection(ctx, &model.GetCollection{ID: coll.ID, DatabaseName: common.DefaultDatabase})
	require.NoError(t, err)
	assert.Equal(t, int32(1), refreshed.Version)
	assert.Equal(t, int64(100), refreshed.LogCompactionOffset)
}

func TestFlushCollectionCompaction_NoopWhenOffsetUnchangedAndNoSegments(t *testing.T) {
	tc := newTestCatalog(t)
	ctx := context.Background()
	coll := createTestCollection(t, tc, common.DefaultTenant, common.DefaultDatabase, "flush-noop")

	info, err := tc.FlushCollectionCompaction(ctx, &model.FlushCollectionCompaction{
		ID:                     coll.ID,
		TenantID:               common.DefaultTenant,
		ExpectedVersion:        0,
		NewLogCompactionOffset: 0,
	})
	require.NoError(t, err)
	assert.Equal(t, int32(0), info.CollectionVersion)

	refreshed, err := tc.GetCollection(ctx, &model.GetCollection{ID: coll.ID, DatabaseName: common.DefaultDatabase})
	require.NoError(t, err)
	assert.Equal(t, int32(0), refreshed.Version)

	history, err := tc.GetCollectionVersionHistory(ctx, coll.ID.String())
	require.NoError(t, err)
	assert.Empty(t, history)

	// A stale expected_version is still rejected, not silently treated as a no-op.
	_, err = tc.FlushCollectionCompaction(ctx, &model.FlushCollectionCompaction{
		ID:                     coll.ID,
		TenantID:               common.DefaultTenant,
		ExpectedVersion:        5,
		NewLogCompactionOffset: 0,
	})
	assert.ErrorIs(t, err, common.ErrCollectionVersionInvalid)
}

func TestForkCollection_SharesArtifactsAtSourceVersion(t *testing.T) {
	tc := newTestCatalog(t)
	ctx := context.Background()
	source := createTestCollection(t, tc, common.DefaultTenant, common.DefaultDatabase, "fork-source")

	_, err := tc.FlushCollectionCompaction(ctx, &model.FlushCollectionCompaction{
		ID:                     source.ID,
		TenantID:               common.DefaultTenant,
		ExpectedVersion:        0,
		NewLogCompactionOffset: 50,
	})
	require.NoError(t, err)

	target, err := tc.ForkCollection(ctx, &model.ForkCollection{
		SourceCollectionID:     source.ID,
		SourceLogCompactionOff: 50,
		TargetCollectionID:     types.NewUniqueID(),
		TargetName:             "fork-target",
	})
	require.NoError(t, err)
	require.NotNil(t, target.Fork)
	assert.Equal(t, source.ID, target.Fork.SourceCollectionID)
	assert.Equal(t, int32(1), target.Fork.SourceVersion)

	segs, err := tc.GetSegments(ctx, target.ID.String())
	require.NoError(t, err)
	assert.Len(t, segs, 3)
}

func TestForkCollection_FailsOnSoftDeletedSource(t *testing.T) {
	tc := newTestCatalog(t)
	ctx := context.Background()
	source := createTestCollection(t, tc, common.DefaultTenant, common.DefaultDatabase, "deleted-source")
	require.NoError(t, tc.DeleteCollection(ctx, &model.DeleteCollection{ID: source.ID}))

	_, err := tc.ForkCollection(ctx, &model.ForkCollection{
		SourceCollectionID: source.ID,
		TargetCollectionID: types.NewUniqueID(),
		TargetName:         "should-not-exist",
	})
	assert.ErrorIs(t, err, common.ErrCollectionSoftDeleted)
}

func TestDeleteDatabase_CascadesToLiveCollections(t *testing.T) {
	tc := newTestCatalog(t)
	ctx := context.Background()
	_, err := tc.CreateDatabase(ctx, &model.CreateDatabase{ID: types.NewUniqueID().String(), Name: "to-delete", Tenant: common.DefaultTenant})
	require.NoError(t, err)
	coll := createTestCollection(t, tc, common.DefaultTenant, "to-delete", "cascaded")

	require.NoError(t, tc.DeleteDatabase(ctx, &model.DeleteDatabase{Tenant: common.DefaultTenant, Name: "to-delete"}))

	_, err = tc.GetCollection(ctx, &model.GetCollection{ID: coll.ID, DatabaseName: "to-delete"})
	assert.ErrorIs(t, err, common.ErrCollectionSoftDeleted)
}

func TestSoftDeleteCollection_IsIdempotent(t *testing.T) {
	tc := newTestCatalog(t)
	ctx := context.Background()
	coll := createTestCollection(t, tc, common.DefaultTenant, common.DefaultDatabase, "idempotent-delete")

	require.NoError(t, tc.DeleteCollection(ctx, &model.DeleteCollection{ID: coll.ID}))
	require.NoError(t, tc.DeleteCollection(ctx, &model.DeleteCollection{ID: coll.ID}))
}
