package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chroma-core/controlplane/pkg/compactor"
	chromalog "github.com/chroma-core/controlplane/pkg/log"
	"github.com/chroma-core/controlplane/pkg/model"
	"github.com/chroma-core/controlplane/pkg/objectstore"
)

// rawArtifactBuilder is the default compactor.IndexBuilder `run` wires up.
// spec.md treats index construction as an opaque pluggable artifact builder
// producing file sets — HNSW/BM25 construction internals are explicitly out
// of scope — so this default just persists each segment's compacted record
// set as a single JSON blob rather than building a real searchable index.
// Deployments that need real index construction supply their own
// IndexBuilder in place of this one; the compactor loop itself has no
// opinion on which implementation it's handed.
type rawArtifactBuilder struct {
	store objectstore.Store
}

func newRawArtifactBuilder(store objectstore.Store) *rawArtifactBuilder {
	return &rawArtifactBuilder{store: store}
}

func (b *rawArtifactBuilder) Build(ctx context.Context, collectionID string, segments []*model.Segment, records []chromalog.Record) (compactor.BuildResult, error) {
	payload, err := json.Marshal(records)
	if err != nil {
		return compactor.BuildResult{}, fmt.Errorf("marshaling compacted records: %w", err)
	}

	generation := time.Now().UnixNano()
	result := compactor.BuildResult{SegmentFilePaths: make(map[string]map[string][]string, len(segments))}
	for _, seg := range segments {
		path := objectstore.SegmentArtifactPath(collectionID, seg.ID.String(), seg.Scope, generation, "records.json")
		if err := b.store.Put(ctx, path, payload); err != nil {
			return compactor.BuildResult{}, fmt.Errorf("writing segment artifact for %s: %w", seg.ID.String(), err)
		}
		result.SegmentFilePaths[seg.ID.String()] = map[string][]string{"data": {path}}
	}
	return result, nil
}
