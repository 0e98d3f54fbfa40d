package model

import "github.com/chroma-core/controlplane/pkg/types"

// DistanceMetric is the similarity function a collection's vector segment is
// indexed and searched with.
type DistanceMetric string

const (
	DistanceMetricCosine DistanceMetric = "cosine"
	DistanceMetricL2     DistanceMetric = "l2"
	DistanceMetricIP     DistanceMetric = "ip"
)

func (d DistanceMetric) Valid() bool {
	switch d {
	case DistanceMetricCosine, DistanceMetricL2, DistanceMetricIP:
		return true
	default:
		return false
	}
}

// CollectionLifecycleState tracks the provisioning state described in
// spec.md §3 ("Lifecycles").
type CollectionLifecycleState string

const (
	CollectionStateCreating    CollectionLifecycleState = "CREATING"
	CollectionStateReady       CollectionLifecycleState = "READY"
	CollectionStateSoftDeleted CollectionLifecycleState = "SOFT_DELETED"
)

// CollectionFork records the lineage of a forked collection: the source
// collection/version/log-offset it branched from.
type CollectionFork struct {
	SourceCollectionID types.UniqueID
	SourceVersion      int32
	SourceLogOffset    int64
}

// Collection is the core catalog entity (spec.md §3).
type Collection struct {
	ID                         types.UniqueID
	Name                       string
	TenantID                   string
	DatabaseID                 string
	DatabaseName               string
	Dimension                  *int32
	DistanceMetric             DistanceMetric
	ConfigurationJSON          string
	Metadata                   *Metadata
	State                      CollectionLifecycleState
	Version                    int32
	LogCompactionOffset        int64
	LogEnumerationOffset       int64
	LastCompactionTime         int64
	TotalRecordsPostCompaction uint64
	Fork                       *CollectionFork
	SoftDeletedAt              *int64
	HardDeletableAfter         *int64
	Ts                         types.Timestamp
}

// CreateCollection is the request shape for SysDB.CreateCollection. Segments
// are supplied by the caller (one per scope) so that creation of the
// collection row and its three segment rows is a single transaction.
type CreateCollection struct {
	ID                types.UniqueID
	Name              string
	TenantID          string
	DatabaseName      string
	Dimension         *int32
	DistanceMetric    DistanceMetric
	ConfigurationJSON string
	Metadata          *Metadata
	GetOrCreate       bool
	Ts                types.Timestamp
}

type GetCollection struct {
	ID                 types.UniqueID
	Name               *string
	TenantResourceName string
	DatabaseName       string
}

type ListCollections struct {
	TenantID     string
	DatabaseName string
	Limit        *int32
	Offset       *int32
}

type DeleteCollection struct {
	ID           types.UniqueID
	TenantID     string
	DatabaseName string
	Ts           types.Timestamp
}

type UpdateCollection struct {
	ID            types.UniqueID
	Name          *string
	Metadata      *Metadata
	ResetMetadata bool
	TenantID      string
	DatabaseName  string
	Ts            types.Timestamp
}

// ForkCollection is SysDB's fork request (spec.md §4.1).
type ForkCollection struct {
	SourceCollectionID      types.UniqueID
	SourceLogCompactionOff  int64
	SourceLogEnumerationOff int64
	TargetCollectionID      types.UniqueID
	TargetName              string
	Ts                      types.Timestamp
}

// FlushSegmentCompaction describes the new file set for one segment produced
// by a compaction.
type FlushSegmentCompaction struct {
	SegmentID types.UniqueID
	Scope     string
	FilePaths map[string][]string // role -> paths
}

// FlushCollectionCompaction is the critical compaction-commit request
// (spec.md §4.1 step-by-step semantics).
type FlushCollectionCompaction struct {
	ID                         types.UniqueID
	TenantID                   string
	ExpectedVersion            int32
	NewLogCompactionOffset     int64
	FlushSegmentCompactions    []*FlushSegmentCompaction
	TotalRecordsPostCompaction uint64
}

// FlushCollectionInfo is returned on a successful flush.
type FlushCollectionInfo struct {
	ID                       string
	CollectionVersion        int32
	TenantLastCompactionTime int64
}

// CollectionToGc is a row surfaced by ListCollectionsToGc: a collection whose
// version history has grown past retention and is eligible for version
// pruning / artifact GC consideration.
type CollectionToGc struct {
	ID              types.UniqueID
	TenantID        string
	Name            string
	LatestVersion   int32
	NumVersions     uint32
	OldestVersionTs int64
}

func FilterCollection(c *Collection, id types.UniqueID, name *string) bool {
	if id != types.NilUniqueID() && id != c.ID {
		return false
	}
	if name != nil && *name != c.Name {
		return false
	}
	return true
}
