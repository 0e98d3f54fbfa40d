package dao

import (
	"testing"

	"github.com/chroma-core/controlplane/pkg/common"
	"github.com/chroma-core/controlplane/pkg/sysdb/metastore/db/dbcore"
	"github.com/chroma-core/controlplane/pkg/sysdb/metastore/db/dbmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCollectionDb(t *testing.T) *collectionDb {
	t.Helper()
	db := dbcore.ConfigSqliteForTesting()
	return &collectionDb{db: db}
}

func seedCollection(t *testing.T, cdb *collectionDb, id string, version int32, offset int64) {
	t.Helper()
	require.NoError(t, cdb.db.Create(&dbmodel.Database{ID: "db-1", Name: "db-1", TenantID: common.DefaultTenant}).Error)
	require.NoError(t, cdb.Insert(&dbmodel.Collection{
		ID:                  id,
		Name:                "coll-" + id,
		TenantID:            common.DefaultTenant,
		DatabaseID:          "db-1",
		Version:             version,
		LogCompactionOffset: offset,
	}))
}

func TestUpdateLogPositionVersionAndTotalRecords_HappyPath(t *testing.T) {
	cdb := newTestCollectionDb(t)
	seedCollection(t, cdb, "c1", 0, 0)

	newVersion, err := cdb.UpdateLogPositionVersionAndTotalRecords("c1", 0, 100, 42)
	require.NoError(t, err)
	assert.Equal(t, int32(1), newVersion)

	entry, err := cdb.GetCollectionEntry(strPtr("c1"), nil, nil)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, int32(1), entry.Version)
	assert.Equal(t, int64(100), entry.LogCompactionOffset)
	assert.Equal(t, uint64(42), entry.TotalRecordsPostCompaction)
}

func TestUpdateLogPositionVersionAndTotalRecords_StaleVersionRejected(t *testing.T) {
	cdb := newTestCollectionDb(t)
	seedCollection(t, cdb, "c2", 3, 50)

	_, err := cdb.UpdateLogPositionVersionAndTotalRecords("c2", 1, 100, 10)
	assert.ErrorIs(t, err, common.ErrCollectionVersionStale)
}

func TestUpdateLogPositionVersionAndTotalRecords_AheadVersionIsInvariantViolation(t *testing.T) {
	cdb := newTestCollectionDb(t)
	seedCollection(t, cdb, "c3", 2, 50)

	_, err := cdb.UpdateLogPositionVersionAndTotalRecords("c3", 5, 100, 10)
	assert.ErrorIs(t, err, common.ErrCollectionVersionInvalid)
}

func TestUpdateLogPositionVersionAndTotalRecords_StaleOffsetRejected(t *testing.T) {
	cdb := newTestCollectionDb(t)
	seedCollection(t, cdb, "c4", 1, 500)

	_, err := cdb.UpdateLogPositionVersionAndTotalRecords("c4", 1, 100, 10)
	assert.ErrorIs(t, err, common.ErrCollectionOffsetStale)
}

func strPtr(s string) *string { return &s }
