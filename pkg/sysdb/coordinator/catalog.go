// Package coordinator implements the SysDB catalog's business logic
// (spec.md §4.1): tenant/database/collection/segment lifecycle, the
// optimistic-concurrency compaction commit, and forking. Catalog enforces
// every invariant; dao implements the storage primitives it calls.
package coordinator

import (
	"context"
	"time"

	"github.com/chroma-core/controlplane/pkg/common"
	"github.com/chroma-core/controlplane/pkg/model"
	"github.com/chroma-core/controlplane/pkg/sysdb/metastore/db/dbmodel"
	"github.com/pingcap/log"
	"go.uber.org/zap"
)

type Catalog struct {
	metaDomain dbmodel.IMetaDomain
	txImpl     dbmodel.ITransaction
}

func NewCatalog(metaDomain dbmodel.IMetaDomain, txImpl dbmodel.ITransaction) *Catalog {
	return &Catalog{metaDomain: metaDomain, txImpl: txImpl}
}

func (tc *Catalog) CreateTenant(ctx context.Context, req *model.CreateTenant) (*model.Tenant, error) {
	if req.Name == "" {
		return nil, common.ErrInvalidArgument
	}
	var result *model.Tenant
	err := tc.txImpl.Transaction(ctx, func(txCtx context.Context) error {
		if err := tc.metaDomain.TenantDb(txCtx).Insert(&dbmodel.Tenant{ID: req.Name, LastCompactionTime: req.Ts}); err != nil {
			return err
		}
		tenants, err := tc.metaDomain.TenantDb(txCtx).GetTenants(req.Name)
		if err != nil {
			return err
		}
		result = convertTenantToModel(tenants[0])
		return nil
	})
	if err != nil {
		log.Error("create tenant failed", zap.String("tenant", req.Name), zap.Error(err))
		return nil, err
	}
	return result, nil
}

func (tc *Catalog) GetTenant(ctx context.Context, req *model.GetTenant) (*model.Tenant, error) {
	tenants, err := tc.metaDomain.TenantDb(ctx).GetTenants(req.Name)
	if err != nil {
		return nil, err
	}
	if len(tenants) == 0 {
		return nil, common.ErrTenantNotFound
	}
	return convertTenantToModel(tenants[0]), nil
}

func (tc *Catalog) SetTenantResourceName(ctx context.Context, req *model.SetTenantResourceName) error {
	return tc.metaDomain.TenantDb(ctx).SetTenantResourceName(req.TenantID, req.ResourceName)
}

func (tc *Catalog) SetTenantLastCompactionTime(ctx context.Context, tenantID string, lastCompactionTime int64) error {
	return tc.metaDomain.TenantDb(ctx).UpdateTenantLastCompactionTime(tenantID, lastCompactionTime)
}

func (tc *Catalog) GetTenantsLastCompactionTime(ctx context.Context, tenantIDs []string) ([]*model.Tenant, error) {
	tenants, err := tc.metaDomain.TenantDb(ctx).GetTenantsLastCompactionTime(tenantIDs)
	if err != nil {
		return nil, err
	}
	result := make([]*model.Tenant, 0, len(tenants))
	for _, t := range tenants {
		result = append(result, convertTenantToModel(t))
	}
	return result, nil
}

func (tc *Catalog) CreateDatabase(ctx context.Context, req *model.CreateDatabase) (*model.Database, error) {
	if req.Name == "" {
		return nil, common.ErrDatabaseNameEmpty
	}
	tenants, err := tc.metaDomain.TenantDb(ctx).GetTenants(req.Tenant)
	if err != nil {
		return nil, err
	}
	if len(tenants) == 0 {
		return nil, common.ErrTenantNotFound
	}

	var result *model.Database
	err = tc.txImpl.Transaction(ctx, func(txCtx context.Context) error {
		if err := tc.metaDomain.DatabaseDb(txCtx).Insert(&dbmodel.Database{ID: req.ID, Name: req.Name, TenantID: req.Tenant}); err != nil {
			return err
		}
		databases, err := tc.metaDomain.DatabaseDb(txCtx).GetDatabases(req.Tenant, req.Name)
		if err != nil {
			return err
		}
		result = convertDatabaseToModel(databases[0])
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (tc *Catalog) GetDatabase(ctx context.Context, req *model.GetDatabase) (*model.Database, error) {
	databases, err := tc.metaDomain.DatabaseDb(ctx).GetDatabases(req.Tenant, req.Name)
	if err != nil {
		return nil, err
	}
	if len(databases) == 0 {
		return nil, common.ErrDatabaseNotFound
	}
	return convertDatabaseToModel(databases[0]), nil
}

func (tc *Catalog) ListDatabases(ctx context.Context, req *model.ListDatabases) ([]*model.Database, error) {
	databases, err := tc.metaDomain.DatabaseDb(ctx).ListDatabases(req.Limit, req.Offset, req.Tenant)
	if err != nil {
		return nil, err
	}
	result := make([]*model.Database, 0, len(databases))
	for _, d := range databases {
		result = append(result, convertDatabaseToModel(d))
	}
	return result, nil
}

// DeleteDatabase soft-deletes a database and cascades the soft-delete to
// every still-live collection inside it, in one transaction (DESIGN.md Open
// Question decision #3).
func (tc *Catalog) DeleteDatabase(ctx context.Context, req *model.DeleteDatabase) error {
	return tc.txImpl.Transaction(ctx, func(txCtx context.Context) error {
		databases, err := tc.metaDomain.DatabaseDb(txCtx).GetDatabases(req.Tenant, req.Name)
		if err != nil {
			return err
		}
		if len(databases) == 0 {
			return common.ErrDatabaseNotFound
		}
		if _, err := tc.metaDomain.DatabaseDb(txCtx).DeleteByTenantIdAndName(req.Tenant, req.Name); err != nil {
			return err
		}

		collections, err := tc.metaDomain.CollectionDb(txCtx).GetCollections(nil, nil, req.Tenant, req.Name, nil, nil)
		if err != nil {
			return err
		}
		for _, c := range collections {
			if err := tc.softDeleteCollectionByID(txCtx, c.Collection.ID, time.Now().Unix()); err != nil {
				return err
			}
		}
		return nil
	})
}
