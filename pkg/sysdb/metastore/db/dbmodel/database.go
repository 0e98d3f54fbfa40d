package dbmodel

import "time"

type Database struct {
	ID        string    `gorm:"id;primaryKey"`
	Name      string    `gorm:"name;not null;index:idx_tenant_name,unique"`
	TenantID  string    `gorm:"tenant_id;not null;index:idx_tenant_name,unique"`
	IsDeleted bool      `gorm:"is_deleted;type:bool;default:false"`
	CreatedAt time.Time `gorm:"created_at;type:timestamp;not null;default:current_timestamp"`
	UpdatedAt time.Time `gorm:"updated_at;type:timestamp;not null;default:current_timestamp"`
}

func (Database) TableName() string { return "databases" }

//go:generate mockery --name=IDatabaseDb
type IDatabaseDb interface {
	Insert(in *Database) error
	GetDatabases(tenantID string, databaseName string) ([]*Database, error)
	ListDatabases(limit *int32, offset *int32, tenantID string) ([]*Database, error)
	GetAllDatabases(limit *int32, offset *int32) ([]*Database, error)
	DeleteByTenantIdAndName(tenantID string, databaseName string) (int, error)
	DeleteAll() error
}
