package dao

import (
	"errors"

	"github.com/chroma-core/controlplane/pkg/common"
	"github.com/chroma-core/controlplane/pkg/sysdb/metastore/db/dbmodel"
	"github.com/pingcap/log"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type tenantDb struct {
	db *gorm.DB
}

var _ dbmodel.ITenantDb = (*tenantDb)(nil)

func (s *tenantDb) GetTenants(tenantID string) ([]*dbmodel.Tenant, error) {
	var tenants []*dbmodel.Tenant
	query := s.db.Table("tenants").Where("is_deleted = ?", false)
	if tenantID != "" {
		query = query.Where("id = ?", tenantID)
	}
	if err := query.Find(&tenants).Error; err != nil {
		log.Error("GetTenants", zap.Error(err))
		return nil, err
	}
	return tenants, nil
}

func (s *tenantDb) Insert(in *dbmodel.Tenant) error {
	err := s.db.Create(in).Error
	if err != nil {
		if pgUniqueViolation(err) {
			return common.ErrTenantUniqueConstraintViolation
		}
		log.Error("insert tenant failed", zap.Error(err))
		return err
	}
	return nil
}

func (s *tenantDb) DeleteAll() error {
	return s.db.Where("1 = 1").Delete(&dbmodel.Tenant{}).Error
}

func (s *tenantDb) SetTenantResourceName(tenantID string, resourceName string) error {
	result := s.db.Model(&dbmodel.Tenant{}).
		Where("id = ?", tenantID).
		Where("resource_name IS NULL").
		Update("resource_name", resourceName)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var tenant dbmodel.Tenant
		if err := s.db.First(&tenant, "id = ?", tenantID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return common.ErrTenantNotFound
			}
			return err
		}
		return common.ErrTenantResourceNameAlreadySet
	}
	return nil
}

func (s *tenantDb) UpdateTenantLastCompactionTime(tenantID string, lastCompactionTime int64) error {
	err := s.db.Model(&dbmodel.Tenant{}).
		Where("id = ?", tenantID).
		Update("last_compaction_time", lastCompactionTime).Error
	if err != nil {
		log.Error("UpdateTenantLastCompactionTime", zap.Error(err))
		return err
	}
	return nil
}

func (s *tenantDb) GetTenantsLastCompactionTime(tenantIDs []string) ([]*dbmodel.Tenant, error) {
	var tenants []*dbmodel.Tenant
	if err := s.db.Table("tenants").Where("id IN ?", tenantIDs).Find(&tenants).Error; err != nil {
		return nil, err
	}
	return tenants, nil
}
