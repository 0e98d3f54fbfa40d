package query

import (
	"context"
	"fmt"

	chromalog "github.com/chroma-core/controlplane/pkg/log"
	"github.com/chroma-core/controlplane/pkg/model"
)

// Log is the slice of chromalog.Log the executor needs to drain a
// collection's pending suffix (spec.md §4.4 step 3).
type Log interface {
	Enumerate(ctx context.Context, collectionID string, fromOffset int64, limit int) (records []chromalog.Record, nextOffset, headOffset int64, err error)
	GetHead(ctx context.Context, collectionID string) (int64, error)
}

// SegmentEvaluator runs a Plan against a materialized segment set. It is
// opaque to this package — vector index search, metadata predicate
// evaluation, and full-text ranking are concrete index implementations
// spec.md leaves unspecified, just as pkg/compactor's IndexBuilder leaves
// artifact construction opaque.
type SegmentEvaluator interface {
	Evaluate(ctx context.Context, plan Plan, segments []*model.Segment, artifacts map[string][]byte) ([]Hit, error)
}

// Executor serves spec.md §4.4's query contract.
type Executor struct {
	versions  *VersionCache
	cache     *SegmentCache
	log       Log
	evaluator SegmentEvaluator
}

func NewExecutor(versions *VersionCache, cache *SegmentCache, logSvc Log, evaluator SegmentEvaluator) *Executor {
	return &Executor{versions: versions, cache: cache, log: logSvc, evaluator: evaluator}
}

// Query runs the five-step sequence spec.md §4.4 describes.
func (e *Executor) Query(ctx context.Context, collectionID string, plan Plan) (*Result, error) {
	coll, segments, err := e.versions.Resolve(ctx, collectionID)
	if err != nil {
		return nil, fmt.Errorf("query: resolving collection version: %w", err)
	}

	headOffset, err := e.log.GetHead(ctx, collectionID)
	if err != nil {
		return nil, fmt.Errorf("query: reading log head: %w", err)
	}

	paths := segmentArtifactPaths(segments)
	artifacts := make(map[string][]byte, len(paths))
	acquired := make([]string, 0, len(paths))
	defer func() {
		for _, p := range acquired {
			e.cache.Release(p)
		}
	}()
	for _, p := range paths {
		content, err := e.cache.Acquire(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("query: loading segment artifact %q: %w", p, err)
		}
		acquired = append(acquired, p)
		artifacts[p] = content
	}

	hits, err := e.evaluator.Evaluate(ctx, plan, segments, artifacts)
	if err != nil {
		return nil, fmt.Errorf("query: evaluating plan: %w", err)
	}

	var pending []chromalog.Record
	if headOffset > coll.LogCompactionOffset {
		pending, _, _, err = e.log.Enumerate(ctx, collectionID, coll.LogCompactionOffset+1, maxInt)
		if err != nil {
			return nil, fmt.Errorf("query: draining pending log suffix: %w", err)
		}
	}
	hits = foldPendingRecords(hits, pending)

	return &Result{
		Hits:  hits,
		Token: ConsistencyToken{Version: coll.Version, HeadOffset: headOffset},
	}, nil
}

// InvalidateVersion drops the cached version for collectionID, used when a
// caller observes a version-mismatch signal from the write path (spec.md
// §4.4 step 1, "refresh on ... version-mismatch signals received from
// writes").
func (e *Executor) InvalidateVersion(collectionID string) {
	e.versions.Invalidate(collectionID)
}

func segmentArtifactPaths(segments []*model.Segment) []string {
	var paths []string
	for _, seg := range segments {
		for _, roles := range seg.FilePaths {
			paths = append(paths, roles...)
		}
	}
	return paths
}

// maxInt bounds Enumerate's limit at something the process can hold in
// memory at once; a query that needs more than this many pending records
// folded is better served by a fresh compaction than a larger limit.
const maxInt = 1 << 20
