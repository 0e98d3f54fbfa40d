package common

const (
	DefaultTenant   = "default_tenant"
	DefaultDatabase = "default_database"

	// DefaultSoftDeleteGraceSeconds is used when SOFT_DELETE_GRACE_SECONDS is unset.
	DefaultSoftDeleteGraceSeconds = 72 * 60 * 60

	// DefaultCompactionStalenessSeconds is used when COMPACTION_STALENESS_SECONDS is unset.
	DefaultCompactionStalenessSeconds = 10 * 60

	// DefaultCompactionBatchSize is a record count for bounding a compaction
	// cutoff. `run` does not read it: COMPACTION_BATCH_SIZE sets run's
	// pending-record trigger (default 1000), and the records read per
	// compaction come from --compaction-enumerate-batch-size (default 10000).
	DefaultCompactionBatchSize = 10_000

	// SegmentScopeMetadata, SegmentScopeRecord and SegmentScopeVector name the
	// three mandatory per-collection segment scopes.
	SegmentScopeMetadata = "METADATA"
	SegmentScopeRecord   = "RECORD"
	SegmentScopeVector   = "VECTOR"
)

// AllSegmentScopes lists the three scopes every live collection must have
// exactly one live segment for.
var AllSegmentScopes = []string{SegmentScopeMetadata, SegmentScopeRecord, SegmentScopeVector}
