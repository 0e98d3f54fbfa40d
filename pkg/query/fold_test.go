package query

import (
	"testing"

	chromalog "github.com/chroma-core/controlplane/pkg/log"
	"github.com/stretchr/testify/require"
)

func strptr(s string) *string { return &s }

func TestFoldUpsertOverridesMaterializedHit(t *testing.T) {
	hits := []Hit{{ID: "a", Document: strptr("old")}}
	pending := []chromalog.Record{{Op: chromalog.OpUpsert, ID: "a", Document: strptr("new")}}

	out := foldPendingRecords(hits, pending)
	require.Len(t, out, 1)
	require.Equal(t, "new", *out[0].Document)
}

func TestFoldDeleteTombstonesMaterializedHit(t *testing.T) {
	hits := []Hit{{ID: "a"}, {ID: "b"}}
	pending := []chromalog.Record{{Op: chromalog.OpDelete, ID: "a"}}

	out := foldPendingRecords(hits, pending)
	require.Len(t, out, 1)
	require.Equal(t, "b", out[0].ID)
}

func TestFoldUpsertAppendsUnrankedHitForNewID(t *testing.T) {
	hits := []Hit{{ID: "a"}}
	pending := []chromalog.Record{{Op: chromalog.OpUpsert, ID: "c", Document: strptr("fresh")}}

	out := foldPendingRecords(hits, pending)
	require.Len(t, out, 2)
	require.Equal(t, "c", out[1].ID)
}

func TestFoldLaterRecordWinsOverEarlierOne(t *testing.T) {
	hits := []Hit{{ID: "a"}}
	pending := []chromalog.Record{
		{Op: chromalog.OpDelete, ID: "a"},
		{Op: chromalog.OpUpsert, ID: "a", Document: strptr("resurrected")},
	}

	out := foldPendingRecords(hits, pending)
	require.Len(t, out, 1)
	require.Equal(t, "resurrected", *out[0].Document)
}

func TestFoldDeleteAfterUpsertWins(t *testing.T) {
	hits := []Hit{{ID: "a"}}
	pending := []chromalog.Record{
		{Op: chromalog.OpUpsert, ID: "a", Document: strptr("will be deleted")},
		{Op: chromalog.OpDelete, ID: "a"},
	}

	out := foldPendingRecords(hits, pending)
	require.Empty(t, out)
}
