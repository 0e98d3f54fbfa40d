package dbmodel

import "time"

type Tenant struct {
	ID                 string    `gorm:"id;primaryKey;unique"`
	ResourceName       *string   `gorm:"resource_name"`
	IsDeleted          bool      `gorm:"is_deleted;type:bool;default:false"`
	CreatedAt          time.Time `gorm:"created_at;type:timestamp;not null;default:current_timestamp"`
	UpdatedAt          time.Time `gorm:"updated_at;type:timestamp;not null;default:current_timestamp"`
	LastCompactionTime int64     `gorm:"last_compaction_time;not null;default:0"`
}

func (Tenant) TableName() string { return "tenants" }

//go:generate mockery --name=ITenantDb
type ITenantDb interface {
	GetTenants(tenantID string) ([]*Tenant, error)
	Insert(in *Tenant) error
	DeleteAll() error
	SetTenantResourceName(tenantID string, resourceName string) error
	UpdateTenantLastCompactionTime(tenantID string, lastCompactionTime int64) error
	GetTenantsLastCompactionTime(tenantIDs []string) ([]*Tenant, error)
}
