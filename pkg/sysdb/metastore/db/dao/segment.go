package dao

import (
	"github.com/chroma-core/controlplane/pkg/common"
	"github.com/chroma-core/controlplane/pkg/sysdb/metastore/db/dbmodel"
	"github.com/pingcap/log"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type segmentDb struct {
	db *gorm.DB
}

var _ dbmodel.ISegmentDb = (*segmentDb)(nil)

func (s *segmentDb) GetSegments(id *string, scope *string, collectionID string) ([]*dbmodel.Segment, error) {
	var segments []*dbmodel.Segment
	query := s.db.Table("segments").Where("collection_id = ?", collectionID).Order("scope")
	if id != nil {
		query = query.Where("id = ?", *id)
	}
	if scope != nil {
		query = query.Where("scope = ?", *scope)
	}
	if err := query.Find(&segments).Error; err != nil {
		log.Error("get segments failed", zap.String("collectionID", collectionID), zap.Error(err))
		return nil, err
	}
	return segments, nil
}

func (s *segmentDb) Insert(in *dbmodel.Segment) error {
	err := s.db.Create(in).Error
	if err != nil {
		if pgUniqueViolation(err) {
			return common.ErrSegmentUniqueConstraintViolation
		}
		log.Error("insert segment failed", zap.Error(err))
		return err
	}
	return nil
}

// Update overwrites the file-path set registered for a segment, the write
// FlushCollectionCompaction issues once per segment inside its transaction
// (spec.md §4.1, "commits every segment's new file set"). It never touches
// ReferenceCount — ForkCollection and the GC sweep own that independently.
func (s *segmentDb) Update(in *dbmodel.Segment) error {
	return s.db.Model(&dbmodel.Segment{}).
		Where("id = ?", in.ID).
		Updates(map[string]interface{}{
			"file_paths": in.FilePathsJSON,
			"type":       in.Type,
		}).Error
}

func (s *segmentDb) IncrementReferenceCount(segmentID string, delta int) error {
	return s.db.Model(&dbmodel.Segment{}).
		Where("id = ?", segmentID).
		UpdateColumn("reference_count", gorm.Expr("reference_count + ?", delta)).Error
}

func (s *segmentDb) DeleteSegmentByID(id string) error {
	return s.db.Where("id = ?", id).Delete(&dbmodel.Segment{}).Error
}

func (s *segmentDb) DeleteAll() error {
	return s.db.Where("1 = 1").Delete(&dbmodel.Segment{}).Error
}
