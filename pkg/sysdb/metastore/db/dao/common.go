// Package dao implements dbmodel's per-table interfaces against a live
// gorm.DB pulled from the request context (see dbcore.GetDB), so every DAO
// automatically participates in whatever transaction dbcore.TxImpl opened.
package dao

import (
	"context"
	"errors"

	"github.com/chroma-core/controlplane/pkg/sysdb/metastore/db/dbcore"
	"github.com/chroma-core/controlplane/pkg/sysdb/metastore/db/dbmodel"
	"github.com/jackc/pgx/v5/pgconn"
)

type MetaDomain struct{}

func NewMetaDomain() *MetaDomain { return &MetaDomain{} }

func (*MetaDomain) TenantDb(ctx context.Context) dbmodel.ITenantDb {
	return &tenantDb{dbcore.GetDB(ctx)}
}

func (*MetaDomain) DatabaseDb(ctx context.Context) dbmodel.IDatabaseDb {
	return &databaseDb{dbcore.GetDB(ctx)}
}

func (*MetaDomain) CollectionDb(ctx context.Context) dbmodel.ICollectionDb {
	return &collectionDb{dbcore.GetDB(ctx)}
}

func (*MetaDomain) SegmentDb(ctx context.Context) dbmodel.ISegmentDb {
	return &segmentDb{dbcore.GetDB(ctx)}
}

func (*MetaDomain) CollectionVersionDb(ctx context.Context) dbmodel.ICollectionVersionDb {
	return &collectionVersionDb{dbcore.GetDB(ctx)}
}

func (*MetaDomain) CompactionLeaseDb(ctx context.Context) dbmodel.ICompactionLeaseDb {
	return &compactionLeaseDb{dbcore.GetDB(ctx)}
}

// pgUniqueViolation mirrors the teacher's pgconn.PgError code-23505 sniff
// used to translate Postgres' unique-constraint violation into a domain
// sentinel error. Returns false on sqlite (the test backend), where the
// caller falls through to gorm's own duplicate-key error instead.
func pgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
