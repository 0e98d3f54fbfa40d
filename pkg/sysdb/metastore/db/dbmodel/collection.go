package dbmodel

import "time"

// Collection is the catalog row for one collection. Soft-delete is modeled
// with both a boolean (for index/query convenience) and a nullable timestamp
// (for the grace-period sweep in pkg/sysdb/cleanup) rather than only one or
// the other, matching the teacher's is_deleted + createdAt/updatedAt split.
type Collection struct {
	ID                         string    `gorm:"id;primaryKey"`
	Name                       string    `gorm:"name;not null;index:idx_db_name,unique"`
	TenantID                   string    `gorm:"tenant_id;not null"`
	DatabaseID                 string    `gorm:"database_id;not null;index:idx_db_name,unique"`
	Dimension                  *int32    `gorm:"dimension"`
	DistanceMetric             string    `gorm:"distance_metric;not null;default:'l2'"`
	ConfigurationJSON          string    `gorm:"configuration_json_str"`
	IsDeleted                  bool      `gorm:"is_deleted;type:bool;default:false"`
	SoftDeletedAt              *int64    `gorm:"soft_deleted_at"`
	HardDeletableAfter         *int64    `gorm:"hard_deletable_after"`
	CreatedAt                  time.Time `gorm:"created_at;type:timestamp;not null;default:current_timestamp"`
	UpdatedAt                  time.Time `gorm:"updated_at;type:timestamp;not null;default:current_timestamp"`
	LogCompactionOffset        int64     `gorm:"log_compaction_offset;default:0"`
	LogEnumerationOffset       int64     `gorm:"log_enumeration_offset;default:0"`
	Version                    int32     `gorm:"version;default:0"`
	LastCompactionTimeSecs     int64     `gorm:"last_compaction_time_secs;default:0"`
	TotalRecordsPostCompaction uint64    `gorm:"total_records_post_compaction;default:0"`
	ForkSourceCollectionID     *string   `gorm:"fork_source_collection_id"`
	ForkSourceVersion          *int32    `gorm:"fork_source_version"`
	ForkSourceLogOffset        *int64    `gorm:"fork_source_log_offset"`
	CompactionFailureCount     int64     `gorm:"compaction_failure_count;default:0"`
}

func (Collection) TableName() string { return "collections" }

// CollectionMetadata is the EAV-shaped key/value row for a collection's free
// form configuration metadata — one row per key, exactly one of the typed
// value columns populated, matching the teacher's tagged-union-over-columns
// encoding of model.MetadataValueType.
type CollectionMetadata struct {
	CollectionID string   `gorm:"collection_id;primaryKey"`
	Key          string   `gorm:"key;primaryKey"`
	StrValue     *string  `gorm:"str_value"`
	IntValue     *int64   `gorm:"int_value"`
	FloatValue   *float64 `gorm:"float_value"`
	BoolValue    *bool    `gorm:"bool_value"`
}

func (CollectionMetadata) TableName() string { return "collection_metadata" }

// CollectionToGc is the projection ListCollectionsToGc returns: the minimum
// fields the version-pruning sweep needs, not a full Collection.
type CollectionToGc struct {
	ID              string `gorm:"id"`
	TenantID        string `gorm:"tenant_id"`
	Name            string `gorm:"name"`
	Version         int32  `gorm:"version"`
	NumVersions     uint32 `gorm:"num_versions"`
	OldestVersionTs int64  `gorm:"oldest_version_ts"`
}

type CollectionAndMetadata struct {
	Collection         *Collection
	CollectionMetadata []*CollectionMetadata
	TenantID           string
	DatabaseName       string
}

//go:generate mockery --name=ICollectionDb
type ICollectionDb interface {
	GetCollections(id *string, name *string, tenantID string, databaseName string, limit *int32, offset *int32) ([]*CollectionAndMetadata, error)
	GetCollectionEntry(id *string, name *string, databaseName *string) (*Collection, error)
	CountCollections(tenantID string, databaseName *string) (uint64, error)
	GetSoftDeletedCollections(cutoffUnixSecs int64, limit int32) ([]*Collection, error)

	// ListActiveCollectionIDs feeds the compactor's per-sweep ownership check
	// (spec.md §4.3 step 1): every live collection's ID, cheaply, with no
	// joins or metadata hydration.
	ListActiveCollectionIDs() ([]string, error)
	Insert(in *Collection) error
	InsertMetadata(rows []*CollectionMetadata) error
	DeleteMetadata(collectionID string) error
	GetMetadata(collectionID string) ([]*CollectionMetadata, error)
	Update(in *Collection) error
	DeleteCollectionByID(collectionID string) (int, error)
	DeleteAll() error

	// UpdateLogPositionVersionAndTotalRecords is the single optimistic-
	// concurrency write behind FlushCollectionCompaction: it locks the row
	// (SELECT ... FOR UPDATE), compares expectedVersion against the stored
	// version, and only then applies the new offset/version/total-records
	// triple, returning the new version. A stale expectedVersion yields
	// common.ErrCollectionVersionStale without writing anything.
	UpdateLogPositionVersionAndTotalRecords(collectionID string, expectedVersion int32, newLogCompactionOffset int64, totalRecordsPostCompaction uint64) (int32, error)

	ListCollectionsToGc(cutoffTimeSecs *uint64, limit *uint64) ([]*CollectionToGc, error)

	// IncrementCompactionFailureCount and GetCompactionDLQSize back spec.md
	// §4.3 step 2g's "compaction_failure_count (emitted as a DLQ gauge
	// metric)": the compactor bumps the counter on any non-Aborted flush
	// failure, and the count resets to 0 the next time that collection
	// flushes successfully.
	IncrementCompactionFailureCount(collectionID string) error
	ResetCompactionFailureCount(collectionID string) error
	GetCompactionDLQSize() (int64, error)
}
