package dao

import (
	"errors"

	"github.com/chroma-core/controlplane/pkg/sysdb/metastore/db/dbmodel"
	"gorm.io/gorm"
)

type collectionVersionDb struct {
	db *gorm.DB
}

var _ dbmodel.ICollectionVersionDb = (*collectionVersionDb)(nil)

func (s *collectionVersionDb) Insert(in *dbmodel.CollectionVersion) error {
	return s.db.Create(in).Error
}

func (s *collectionVersionDb) GetVersions(collectionID string) ([]*dbmodel.CollectionVersion, error) {
	var versions []*dbmodel.CollectionVersion
	err := s.db.Where("collection_id = ?", collectionID).Order("version ASC").Find(&versions).Error
	if err != nil {
		return nil, err
	}
	return versions, nil
}

func (s *collectionVersionDb) GetCurrentVersion(collectionID string) (*dbmodel.CollectionVersion, error) {
	var version dbmodel.CollectionVersion
	err := s.db.Where("collection_id = ? AND is_current = ?", collectionID, true).First(&version).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &version, nil
}

// MarkCurrent flips IsCurrent for one (collection, version) pair atomically
// with clearing it everywhere else, so exactly one row is ever current.
func (s *collectionVersionDb) MarkCurrent(collectionID string, version int32) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&dbmodel.CollectionVersion{}).
			Where("collection_id = ?", collectionID).
			Update("is_current", false).Error; err != nil {
			return err
		}
		return tx.Model(&dbmodel.CollectionVersion{}).
			Where("collection_id = ? AND version = ?", collectionID, version).
			Update("is_current", true).Error
	})
}

func (s *collectionVersionDb) MarkForGC(collectionID string, version int32) error {
	return s.db.Model(&dbmodel.CollectionVersion{}).
		Where("collection_id = ? AND version = ?", collectionID, version).
		Update("marked_for_gc", true).Error
}

func (s *collectionVersionDb) DeleteMarkedForGC(collectionID string) (int, error) {
	result := s.db.Where("collection_id = ? AND marked_for_gc = ? AND is_current = ?", collectionID, true, false).
		Delete(&dbmodel.CollectionVersion{})
	if result.Error != nil {
		return 0, result.Error
	}
	return int(result.RowsAffected), nil
}

func (s *collectionVersionDb) DeleteAll() error {
	return s.db.Where("1 = 1").Delete(&dbmodel.CollectionVersion{}).Error
}
