package model

import "github.com/chroma-core/controlplane/pkg/types"

// Segment is one of the three per-collection artifacts (spec.md §3). Exactly
// one live segment exists per scope per live collection.
type Segment struct {
	ID           types.UniqueID
	CollectionID types.UniqueID
	Scope        string // METADATA | RECORD | VECTOR
	Type         string // concrete index implementation, opaque to this package
	FilePaths    map[string][]string
	// ReferenceCount tracks how many live forks (plus the owning collection
	// itself) point at FilePaths. Hard-delete of the owning collection is
	// blocked while this is > 1 for any fork-shared path (DESIGN.md open
	// question #1).
	ReferenceCount int
	Metadata       *Metadata
	Ts             types.Timestamp
}

type CreateSegment struct {
	ID           types.UniqueID
	CollectionID types.UniqueID
	Scope        string
	Type         string
	FilePaths    map[string][]string
	Metadata     *Metadata
	Ts           types.Timestamp
}

type GetSegments struct {
	ID           types.UniqueID
	Scope        *string
	CollectionID types.UniqueID
}

// UpdateSegment is the request for Catalog.UpdateSegment, which replaces a
// segment's file paths with FilePathsPatch without any version check;
// ResetMetadata and Metadata are not applied. FlushCollectionCompaction
// does not use it.
type UpdateSegment struct {
	ID             types.UniqueID
	FilePathsPatch map[string][]string
	ResetMetadata  bool
	Metadata       *Metadata
	Ts             types.Timestamp
}

// CollectionVersion is an append-only snapshot row (spec.md §3): at most one
// row per (collection_id, version).
type CollectionVersion struct {
	CollectionID        types.UniqueID
	Version             int32
	LogCompactionOffset int64
	SegmentFilePaths    map[types.UniqueID]map[string][]string // segment id -> role -> paths
	CreatedAt           int64
	IsCurrent           bool
	MarkedForGC         bool
}

// CompactionLease is the transient exclusivity grant described in spec.md §3
// and §5 ("Lease policy").
type CompactionLease struct {
	CollectionID types.UniqueID
	HolderID     string
	Nonce        string
	ExpiresAt    int64
}
