// Package dbmodel holds the gorm row structs and per-table DAO contracts for
// the SysDB catalog store. Row structs mirror the teacher's column-tag style;
// the per-table interfaces let the coordinator depend on behavior rather than
// on a concrete gorm.DB.
package dbmodel

import "context"

//go:generate mockery --name=IMetaDomain
type IMetaDomain interface {
	TenantDb(ctx context.Context) ITenantDb
	DatabaseDb(ctx context.Context) IDatabaseDb
	CollectionDb(ctx context.Context) ICollectionDb
	SegmentDb(ctx context.Context) ISegmentDb
	CollectionVersionDb(ctx context.Context) ICollectionVersionDb
	CompactionLeaseDb(ctx context.Context) ICompactionLeaseDb
}

//go:generate mockery --name=ITransaction
type ITransaction interface {
	// Transaction runs fn inside a single SQL transaction. fn receives a
	// context carrying the transaction handle; DAOs constructed from that
	// context must participate in it rather than opening their own.
	Transaction(ctx context.Context, fn func(txCtx context.Context) error) error
}
