package dao

import (
	"github.com/chroma-core/controlplane/pkg/common"
	"github.com/chroma-core/controlplane/pkg/sysdb/metastore/db/dbmodel"
	"github.com/pingcap/log"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type databaseDb struct {
	db *gorm.DB
}

var _ dbmodel.IDatabaseDb = (*databaseDb)(nil)

func (s *databaseDb) Insert(in *dbmodel.Database) error {
	err := s.db.Create(in).Error
	if err != nil {
		if pgUniqueViolation(err) {
			return common.ErrDatabaseUniqueConstraintViolation
		}
		log.Error("insert database failed", zap.Error(err))
		return err
	}
	return nil
}

func (s *databaseDb) GetDatabases(tenantID string, databaseName string) ([]*dbmodel.Database, error) {
	var databases []*dbmodel.Database
	query := s.db.Table("databases").
		Where("tenant_id = ?", tenantID).
		Where("name = ?", databaseName).
		Where("is_deleted = ?", false)
	if err := query.Find(&databases).Error; err != nil {
		log.Error("GetDatabases", zap.Error(err))
		return nil, err
	}
	return databases, nil
}

func (s *databaseDb) ListDatabases(limit *int32, offset *int32, tenantID string) ([]*dbmodel.Database, error) {
	var databases []*dbmodel.Database
	query := s.db.Table("databases").
		Where("tenant_id = ?", tenantID).
		Where("is_deleted = ?", false).
		Order("created_at ASC")
	if limit != nil {
		query = query.Limit(int(*limit))
	}
	if offset != nil {
		query = query.Offset(int(*offset))
	}
	if err := query.Find(&databases).Error; err != nil {
		log.Error("ListDatabases", zap.Error(err))
		return nil, err
	}
	return databases, nil
}

func (s *databaseDb) GetAllDatabases(limit *int32, offset *int32) ([]*dbmodel.Database, error) {
	var databases []*dbmodel.Database
	query := s.db.Table("databases").Where("is_deleted = ?", false).Order("created_at ASC")
	if limit != nil {
		query = query.Limit(int(*limit))
	}
	if offset != nil {
		query = query.Offset(int(*offset))
	}
	if err := query.Find(&databases).Error; err != nil {
		return nil, err
	}
	return databases, nil
}

func (s *databaseDb) DeleteByTenantIdAndName(tenantID string, databaseName string) (int, error) {
	result := s.db.Model(&dbmodel.Database{}).
		Where("tenant_id = ?", tenantID).
		Where("name = ?", databaseName).
		Update("is_deleted", true)
	if result.Error != nil {
		return 0, result.Error
	}
	return int(result.RowsAffected), nil
}

func (s *databaseDb) DeleteAll() error {
	return s.db.Where("1 = 1").Delete(&dbmodel.Database{}).Error
}
