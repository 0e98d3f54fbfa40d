package dbmodel

import "time"

// CollectionVersion is the append-only snapshot row spec.md §3 describes:
// at most one row per (collection_id, version), never updated after insert
// except for the IsCurrent flag (moved by each flush) and the MarkedForGC
// flag (set by MarkVersionForGC and by the hard-delete cleanup).
type CollectionVersion struct {
	CollectionID         string    `gorm:"collection_id;primaryKey"`
	Version              int32     `gorm:"version;primaryKey"`
	LogCompactionOffset  int64     `gorm:"log_compaction_offset;not null"`
	SegmentFilePathsJSON string    `gorm:"segment_file_paths"`
	CreatedAt            time.Time `gorm:"created_at;type:timestamp;not null;default:current_timestamp"`
	IsCurrent            bool      `gorm:"is_current;type:bool;default:false"`
	MarkedForGC          bool      `gorm:"marked_for_gc;type:bool;default:false"`
}

func (CollectionVersion) TableName() string { return "collection_versions" }

//go:generate mockery --name=ICollectionVersionDb
type ICollectionVersionDb interface {
	Insert(in *CollectionVersion) error
	GetVersions(collectionID string) ([]*CollectionVersion, error)
	GetCurrentVersion(collectionID string) (*CollectionVersion, error)
	MarkCurrent(collectionID string, version int32) error
	MarkForGC(collectionID string, version int32) error
	DeleteMarkedForGC(collectionID string) (int, error)
	DeleteAll() error
}
