package embedded

import (
	"context"
	"testing"

	chromalog "github.com/chroma-core/controlplane/pkg/log"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAppendAndEnumerate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	collectionID := "c1"

	first, last, err := s.Append(ctx, collectionID, []chromalog.Record{
		{Op: chromalog.OpUpsert, ID: "a"},
		{Op: chromalog.OpUpsert, ID: "b"},
		{Op: chromalog.OpDelete, ID: "c"},
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), first)
	require.Equal(t, int64(3), last)

	records, next, head, err := s.Enumerate(ctx, collectionID, 1, 10)
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, int64(4), next)
	require.Equal(t, int64(3), head)
	require.Equal(t, "a", records[0].ID)
	require.Equal(t, chromalog.OpDelete, records[2].Op)
}

func TestEnumerateRespectsLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	collectionID := "c1"

	_, _, err := s.Append(ctx, collectionID, []chromalog.Record{
		{Op: chromalog.OpUpsert, ID: "a"},
		{Op: chromalog.OpUpsert, ID: "b"},
		{Op: chromalog.OpUpsert, ID: "c"},
	})
	require.NoError(t, err)

	records, next, _, err := s.Enumerate(ctx, collectionID, 1, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, int64(3), next)
}

func TestScrubCompactedPrefixHidesPurgedOffsets(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	collectionID := "c1"

	_, _, err := s.Append(ctx, collectionID, []chromalog.Record{
		{Op: chromalog.OpUpsert, ID: "a"},
		{Op: chromalog.OpUpsert, ID: "b"},
		{Op: chromalog.OpUpsert, ID: "c"},
	})
	require.NoError(t, err)

	require.NoError(t, s.ScrubCompactedPrefix(ctx, collectionID, 2))

	_, _, _, err = s.Enumerate(ctx, collectionID, 1, 10)
	require.Error(t, err)

	records, _, _, err := s.Enumerate(ctx, collectionID, 2, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
}

func TestScrubCompactedPrefixIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	collectionID := "c1"

	_, _, err := s.Append(ctx, collectionID, []chromalog.Record{{Op: chromalog.OpUpsert, ID: "a"}})
	require.NoError(t, err)

	require.NoError(t, s.ScrubCompactedPrefix(ctx, collectionID, 1))
	require.NoError(t, s.ScrubCompactedPrefix(ctx, collectionID, 1))
}

func TestRebuildIndexRecoversStateAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	collectionID := "c1"

	s1, err := NewStore(dir)
	require.NoError(t, err)
	_, _, err = s1.Append(ctx, collectionID, []chromalog.Record{
		{Op: chromalog.OpUpsert, ID: "a"},
		{Op: chromalog.OpUpsert, ID: "b"},
	})
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := NewStore(dir)
	require.NoError(t, err)
	defer s2.Close()

	head, err := s2.GetHead(ctx, collectionID)
	require.NoError(t, err)
	require.Equal(t, int64(2), head)

	records, _, _, err := s2.Enumerate(ctx, collectionID, 1, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
}
