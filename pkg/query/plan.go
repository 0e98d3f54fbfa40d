// Package query implements spec.md §4.4's Query Executor: version
// resolution against a cached SysDB lookup, segment materialization through
// a pinned SSD cache, and a fold of the log's pending suffix over the
// evaluated result set so reads observe every write acknowledged before the
// query started. Grounded on spec.md §4.4 directly — no teacher Go file
// implements a query executor (the teacher's is written in Rust and out of
// tree) — so the cache/version-resolution discipline is carried over from
// the collection/segment versioning semantics pkg/sysdb/coordinator already
// establishes, and the SSD-cache affinity routing hook is pkg/membership's
// Router.
package query

import "github.com/chroma-core/controlplane/pkg/model"

// PlanKind distinguishes the three query shapes spec.md §4.4 names.
type PlanKind string

const (
	PlanVectorKNN     PlanKind = "vector_knn"
	PlanMetadataGet   PlanKind = "metadata_get"
	PlanFullTextMatch PlanKind = "full_text_match"
)

// Plan is the typed descriptor a caller submits. Exactly one of the
// kind-specific fields is populated, selected by Kind.
type Plan struct {
	Kind PlanKind

	// PlanVectorKNN
	QueryEmbedding []float32
	K              int
	MetadataFilter *MetadataPredicate // optional, combined with the k-NN search
	FullTextFilter *string            // optional, combined with the k-NN search

	// PlanMetadataGet
	Predicate *MetadataPredicate
	Limit     *int32
	Offset    *int32

	// PlanFullTextMatch
	MatchText string
}

// MetadataPredicate is left intentionally shallow — a boolean expression
// tree over metadata keys is a plan-language concern orthogonal to the
// cache/fold machinery this package owns, so the predicate itself is
// evaluated by SegmentEvaluator, opaque to this package just like spec.md
// leaves the index formats themselves opaque.
type MetadataPredicate struct {
	Expression map[string]interface{}
}

// Hit is one row of a plan's evaluated result, before or after the log fold.
type Hit struct {
	ID       string
	Score    float32 // only meaningful for PlanVectorKNN
	Document *string
	Metadata *model.Metadata
}

// ConsistencyToken is returned alongside results for diagnostics (spec.md
// §4.4 step 5): the SysDB version this query resolved plus the log head it
// folded up to.
type ConsistencyToken struct {
	Version    int32
	HeadOffset int64
}

// Result is the full response to a query.
type Result struct {
	Hits  []Hit
	Token ConsistencyToken
}
