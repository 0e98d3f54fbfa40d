package objectstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorePutGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	path := SegmentArtifactPath("coll-1", "seg-1", "vector", 3, "index.bin")
	require.NoError(t, s.Put(ctx, path, []byte("payload")))

	got, err := s.Get(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)

	has, err := s.HasPrefix(ctx, "coll-1/seg-1/")
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, s.Delete(ctx, path))
	_, err = s.Get(ctx, path)
	assert.Error(t, err)
}

func TestMemoryStoreMissingPrefix(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	has, err := s.HasPrefix(ctx, "nothing/here")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestVersionSnapshotPath(t *testing.T) {
	path := VersionSnapshotPath("tenant-a", "db-a", "coll-1", 5)
	assert.Equal(t, "tenant/tenant-a/database/db-a/collection/coll-1/versions/5.snapshot", path)
}
