package model

import "github.com/chroma-core/controlplane/pkg/types"

// PlanKind discriminates the three read shapes spec.md §4.4 describes.
type PlanKind string

const (
	PlanKindVectorKNN     PlanKind = "vector_knn"
	PlanKindMetadataGet   PlanKind = "metadata_get"
	PlanKindFullTextMatch PlanKind = "fulltext_match"
)

// Predicate is a minimal metadata filter: a single key compared against a
// metadata value with an operator. Plans compose predicates with And/Or at
// evaluation time; the boolean algebra itself lives in the (out-of-scope)
// query-language layer, not here.
type Predicate struct {
	Key      string
	Op       string // "eq", "ne", "gt", "gte", "lt", "lte", "in"
	Value    MetadataValueType
	Children []Predicate
	Logic    string // "and" | "or", only meaningful when Children is set
}

// QueryPlan is the typed descriptor the Query Executor evaluates (spec.md
// §4.4 "Query contract").
type QueryPlan struct {
	Kind PlanKind

	// Vector k-NN
	QueryEmbedding []float32
	K              int

	// Metadata get / pagination
	Limit  *int32
	Offset *int32

	// Full-text match
	QueryText string

	Where *Predicate
}

// QueryRequest is the top-level Query Executor input.
type QueryRequest struct {
	CollectionID types.UniqueID
	Plan         QueryPlan
}

// QueryResultRow is one matched record, with ranking score populated for
// k-NN/FTS plans.
type QueryResultRow struct {
	ID       string
	Score    float32
	Document *string
	Metadata *Metadata
}

// ConsistencyToken is returned alongside query results for diagnostics
// (spec.md §4.4 step 5): the collection version and log head observed at
// query time.
type ConsistencyToken struct {
	Version    int32
	HeadOffset int64
}

type QueryResult struct {
	Rows  []QueryResultRow
	Token ConsistencyToken
}
