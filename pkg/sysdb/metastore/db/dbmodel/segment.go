package dbmodel

import "time"

// Segment is the row for one of a collection's three live segments
// (METADATA/RECORD/VECTOR). FilePathsJSON stores the role->[]path map
// serialized as JSON, the same way the teacher keeps metadata file paths in
// a text column rather than a side table — segment file sets are small and
// rewritten wholesale on every compaction, so a side table buys nothing.
type Segment struct {
	ID             string    `gorm:"id;primaryKey"`
	CollectionID   string    `gorm:"collection_id;not null;index:idx_collection_scope,unique"`
	Scope          string    `gorm:"scope;not null;index:idx_collection_scope,unique"`
	Type           string    `gorm:"type;not null"`
	FilePathsJSON  string    `gorm:"file_paths"`
	ReferenceCount int       `gorm:"reference_count;default:1"`
	CreatedAt      time.Time `gorm:"created_at;type:timestamp;not null;default:current_timestamp"`
	UpdatedAt      time.Time `gorm:"updated_at;type:timestamp;not null;default:current_timestamp"`
}

func (Segment) TableName() string { return "segments" }

type SegmentMetadata struct {
	SegmentID  string   `gorm:"segment_id;primaryKey"`
	Key        string   `gorm:"key;primaryKey"`
	StrValue   *string  `gorm:"str_value"`
	IntValue   *int64   `gorm:"int_value"`
	FloatValue *float64 `gorm:"float_value"`
	BoolValue  *bool    `gorm:"bool_value"`
}

func (SegmentMetadata) TableName() string { return "segment_metadata" }

//go:generate mockery --name=ISegmentDb
type ISegmentDb interface {
	GetSegments(id *string, scope *string, collectionID string) ([]*Segment, error)
	Insert(in *Segment) error
	// Update overwrites a segment's file paths and type with no version
	// check and does not touch metadata; it never overwrites ReferenceCount
	// (Fork/GC own that field).
	Update(in *Segment) error
	IncrementReferenceCount(segmentID string, delta int) error
	DeleteSegmentByID(id string) error
	DeleteAll() error
}
