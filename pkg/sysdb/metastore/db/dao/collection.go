package dao

import (
	"errors"

	"github.com/chroma-core/controlplane/pkg/common"
	"github.com/chroma-core/controlplane/pkg/sysdb/metastore/db/dbmodel"
	"github.com/pingcap/log"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type collectionDb struct {
	db *gorm.DB
}

var _ dbmodel.ICollectionDb = (*collectionDb)(nil)

func (s *collectionDb) GetCollectionEntry(id *string, name *string, databaseName *string) (*dbmodel.Collection, error) {
	var collection dbmodel.Collection
	query := s.db.Table("collections").Joins("JOIN databases ON collections.database_id = databases.id")
	if id != nil {
		query = query.Where("collections.id = ?", *id)
	}
	if name != nil && *name != "" {
		query = query.Where("collections.name = ?", *name)
	}
	if databaseName != nil && *databaseName != "" {
		query = query.Where("databases.name = ?", *databaseName)
	}
	if err := query.Select("collections.*").First(&collection).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &collection, nil
}

func (s *collectionDb) GetCollections(id *string, name *string, tenantID string, databaseName string, limit *int32, offset *int32) ([]*dbmodel.CollectionAndMetadata, error) {
	return s.getCollections(id, name, tenantID, databaseName, limit, offset, false)
}

func (s *collectionDb) GetSoftDeletedCollections(cutoffUnixSecs int64, limit int32) ([]*dbmodel.Collection, error) {
	var collections []*dbmodel.Collection
	err := s.db.Table("collections").
		Where("is_deleted = ?", true).
		Where("soft_deleted_at IS NOT NULL AND soft_deleted_at <= ?", cutoffUnixSecs).
		Limit(int(limit)).
		Find(&collections).Error
	if err != nil {
		return nil, err
	}
	return collections, nil
}

func (s *collectionDb) ListActiveCollectionIDs() ([]string, error) {
	var ids []string
	err := s.db.Table("collections").
		Where("is_deleted = ?", false).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *collectionDb) getCollections(id *string, name *string, tenantID string, databaseName string, limit *int32, offset *int32, isDeleted bool) ([]*dbmodel.CollectionAndMetadata, error) {
	var collections []*dbmodel.Collection
	query := s.db.Table("collections").
		Joins("JOIN databases ON collections.database_id = databases.id").
		Where("collections.is_deleted = ?", isDeleted).
		Order("collections.created_at ASC")

	if tenantID != "" {
		query = query.Where("collections.tenant_id = ?", tenantID)
	}
	if databaseName != "" {
		query = query.Where("databases.name = ?", databaseName)
	}
	if id != nil {
		query = query.Where("collections.id = ?", *id)
	}
	if name != nil {
		query = query.Where("collections.name = ?", *name)
	}
	if limit != nil {
		query = query.Limit(int(*limit))
	}
	if offset != nil {
		query = query.Offset(int(*offset))
	}

	if err := query.Select("collections.*").Find(&collections).Error; err != nil {
		log.Error("get collections failed", zap.Error(err))
		return nil, err
	}

	result := make([]*dbmodel.CollectionAndMetadata, 0, len(collections))
	for _, c := range collections {
		var metadata []*dbmodel.CollectionMetadata
		if err := s.db.Where("collection_id = ?", c.ID).Find(&metadata).Error; err != nil {
			return nil, err
		}
		result = append(result, &dbmodel.CollectionAndMetadata{
			Collection:         c,
			CollectionMetadata: metadata,
			TenantID:           c.TenantID,
			DatabaseName:       databaseName,
		})
	}
	return result, nil
}

func (s *collectionDb) CountCollections(tenantID string, databaseName *string) (uint64, error) {
	query := s.db.Table("collections").
		Joins("JOIN databases ON collections.database_id = databases.id").
		Where("collections.tenant_id = ?", tenantID).
		Where("collections.is_deleted = ?", false)
	if databaseName != nil && *databaseName != "" {
		query = query.Where("databases.name = ?", *databaseName)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return uint64(count), nil
}

// NOTE: this is the only method that performs a hard delete of a collection
// row. It is only safe to call once pkg/sysdb/cleanup has confirmed no
// fork still references this collection's segment artifacts.
func (s *collectionDb) DeleteCollectionByID(collectionID string) (int, error) {
	var collections []dbmodel.Collection
	err := s.db.Clauses(clause.Returning{}).Where("id = ?", collectionID).Delete(&collections).Error
	return len(collections), err
}

func (s *collectionDb) Insert(in *dbmodel.Collection) error {
	err := s.db.Create(in).Error
	if err != nil {
		if pgUniqueViolation(err) {
			return common.ErrCollectionUniqueConstraintViolation
		}
		log.Error("insert collection failed", zap.Error(err))
		return err
	}
	return nil
}

func (s *collectionDb) InsertMetadata(rows []*dbmodel.CollectionMetadata) error {
	if len(rows) == 0 {
		return nil
	}
	if err := s.db.Create(rows).Error; err != nil {
		log.Error("insert collection metadata failed", zap.Error(err))
		return err
	}
	return nil
}

func (s *collectionDb) IncrementCompactionFailureCount(collectionID string) error {
	return s.db.Model(&dbmodel.Collection{}).
		Where("id = ?", collectionID).
		UpdateColumn("compaction_failure_count", gorm.Expr("compaction_failure_count + 1")).Error
}

func (s *collectionDb) ResetCompactionFailureCount(collectionID string) error {
	return s.db.Model(&dbmodel.Collection{}).
		Where("id = ?", collectionID).
		Update("compaction_failure_count", 0).Error
}

func (s *collectionDb) GetCompactionDLQSize() (int64, error) {
	var count int64
	err := s.db.Model(&dbmodel.Collection{}).
		Where("compaction_failure_count > 0").
		Where("is_deleted = ?", false).
		Count(&count).Error
	return count, err
}

func (s *collectionDb) DeleteMetadata(collectionID string) error {
	return s.db.Where("collection_id = ?", collectionID).Delete(&dbmodel.CollectionMetadata{}).Error
}

func (s *collectionDb) GetMetadata(collectionID string) ([]*dbmodel.CollectionMetadata, error) {
	var metadata []*dbmodel.CollectionMetadata
	err := s.db.Where("collection_id = ?", collectionID).Find(&metadata).Error
	return metadata, err
}

func (s *collectionDb) Update(in *dbmodel.Collection) error {
	err := s.db.Model(&dbmodel.Collection{}).Where("id = ?", in.ID).Updates(in).Error
	if err != nil {
		if pgUniqueViolation(err) {
			return common.ErrCollectionUniqueConstraintViolation
		}
		log.Error("update collection failed", zap.Error(err))
		return err
	}
	return nil
}

func (s *collectionDb) DeleteAll() error {
	return s.db.Where("1 = 1").Delete(&dbmodel.Collection{}).Error
}

// UpdateLogPositionVersionAndTotalRecords is the locking core of
// FlushCollectionCompaction: it locks the collection row, checks the
// caller's expected version against the stored one, and only on a match
// applies the new offset/version/total-records triple. A stale version
// returns common.ErrCollectionVersionStale without writing anything; a
// version ahead of what the schema should ever produce (should-not-happen,
// a sign of a bug upstream) returns common.ErrCollectionVersionInvalid.
//
// We use SELECT ... FOR UPDATE rather than relying on isolation level alone
// so the read-compare-write sequence is safe even under READ COMMITTED.
func (s *collectionDb) UpdateLogPositionVersionAndTotalRecords(collectionID string, expectedVersion int32, newLogCompactionOffset int64, totalRecordsPostCompaction uint64) (int32, error) {
	var collection dbmodel.Collection
	err := s.db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", collectionID).First(&collection).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, common.ErrCollectionNotFound
		}
		return 0, err
	}

	if collection.Version > expectedVersion {
		return 0, common.ErrCollectionVersionStale
	}
	if collection.Version < expectedVersion {
		return 0, common.ErrCollectionVersionInvalid
	}
	if collection.LogCompactionOffset > newLogCompactionOffset {
		return 0, common.ErrCollectionOffsetStale
	}

	newVersion := expectedVersion + 1
	err = s.db.Model(&dbmodel.Collection{}).Where("id = ?", collectionID).Updates(map[string]interface{}{
		"log_compaction_offset":         newLogCompactionOffset,
		"version":                       newVersion,
		"total_records_post_compaction": totalRecordsPostCompaction,
	}).Error
	if err != nil {
		return 0, err
	}
	return newVersion, nil
}

func (s *collectionDb) ListCollectionsToGc(cutoffTimeSecs *uint64, limit *uint64) ([]*dbmodel.CollectionToGc, error) {
	var collections []*dbmodel.CollectionToGc
	query := s.db.Table("collections").
		Select("id, tenant_id, name, version, num_versions, oldest_version_ts").
		Where("version > 0")
	if cutoffTimeSecs != nil {
		query = query.Where("oldest_version_ts <= ?", *cutoffTimeSecs)
	}
	if limit != nil {
		query = query.Limit(int(*limit))
	}
	if err := query.Find(&collections).Error; err != nil {
		return nil, err
	}
	return collections, nil
}
