package dao

import (
	"testing"
	"time"

	"github.com/chroma-core/controlplane/pkg/common"
	"github.com/chroma-core/controlplane/pkg/sysdb/metastore/db/dbcore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLeaseDb(t *testing.T) *compactionLeaseDb {
	t.Helper()
	db := dbcore.ConfigSqliteForTesting()
	return &compactionLeaseDb{db: db}
}

func TestTryAcquire_GrantsToFirstCaller(t *testing.T) {
	ldb := newTestLeaseDb(t)

	nonce, acquired, err := ldb.TryAcquire("coll-1", "worker-a", time.Now().Add(time.Minute).Unix())
	require.NoError(t, err)
	assert.True(t, acquired)
	assert.NotEmpty(t, nonce)
}

func TestTryAcquire_RefusesWhileLeaseLive(t *testing.T) {
	ldb := newTestLeaseDb(t)

	_, acquired, err := ldb.TryAcquire("coll-1", "worker-a", time.Now().Add(time.Minute).Unix())
	require.NoError(t, err)
	require.True(t, acquired)

	_, acquired, err = ldb.TryAcquire("coll-1", "worker-b", time.Now().Add(time.Minute).Unix())
	require.NoError(t, err)
	assert.False(t, acquired)
}

func TestTryAcquire_GrantsAfterExpiry(t *testing.T) {
	ldb := newTestLeaseDb(t)

	_, acquired, err := ldb.TryAcquire("coll-1", "worker-a", time.Now().Add(-time.Second).Unix())
	require.NoError(t, err)
	require.True(t, acquired)

	nonce, acquired, err := ldb.TryAcquire("coll-1", "worker-b", time.Now().Add(time.Minute).Unix())
	require.NoError(t, err)
	assert.True(t, acquired)
	assert.NotEmpty(t, nonce)
}

func TestRelease_RequiresMatchingNonce(t *testing.T) {
	ldb := newTestLeaseDb(t)

	nonce, acquired, err := ldb.TryAcquire("coll-1", "worker-a", time.Now().Add(time.Minute).Unix())
	require.NoError(t, err)
	require.True(t, acquired)

	err = ldb.Release("coll-1", "worker-a", "wrong-nonce")
	assert.ErrorIs(t, err, common.ErrLeaseNotFound)

	err = ldb.Release("coll-1", "worker-a", nonce)
	assert.NoError(t, err)
}
