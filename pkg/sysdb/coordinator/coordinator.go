package coordinator

import (
	"context"

	"github.com/chroma-core/controlplane/pkg/common"
	"github.com/chroma-core/controlplane/pkg/model"
	"github.com/chroma-core/controlplane/pkg/objectstore"
	"github.com/chroma-core/controlplane/pkg/sysdb/metastore/db/dao"
	"github.com/chroma-core/controlplane/pkg/sysdb/metastore/db/dbcore"
)

// Coordinator is SysDB's top-level facade: it owns the catalog and the
// object store handle, and is the surface the gRPC service layer (and the
// compactor/query executor, in-process or over the wire) calls into.
// Business logic and invariant enforcement live in Catalog; Coordinator
// only wires dependencies and satisfies common.Component.
type Coordinator struct {
	catalog     *Catalog
	objectStore objectstore.Store
}

var _ common.Component = (*Coordinator)(nil)

type Config struct {
	ObjectStore objectstore.Store
}

func NewCoordinator(_ context.Context, cfg Config) (*Coordinator, error) {
	txImpl := dbcore.NewTxImpl()
	metaDomain := dao.NewMetaDomain()
	return &Coordinator{
		catalog:     NewCatalog(metaDomain, txImpl),
		objectStore: cfg.ObjectStore,
	}, nil
}

func (c *Coordinator) Start() error { return nil }
func (c *Coordinator) Stop() error  { return nil }

func (c *Coordinator) CreateTenant(ctx context.Context, req *model.CreateTenant) (*model.Tenant, error) {
	return c.catalog.CreateTenant(ctx, req)
}

func (c *Coordinator) GetTenant(ctx context.Context, req *model.GetTenant) (*model.Tenant, error) {
	return c.catalog.GetTenant(ctx, req)
}

func (c *Coordinator) SetTenantResourceName(ctx context.Context, req *model.SetTenantResourceName) error {
	return c.catalog.SetTenantResourceName(ctx, req)
}

func (c *Coordinator) SetTenantLastCompactionTime(ctx context.Context, tenantID string, lastCompactionTime int64) error {
	return c.catalog.SetTenantLastCompactionTime(ctx, tenantID, lastCompactionTime)
}

func (c *Coordinator) GetTenantsLastCompactionTime(ctx context.Context, tenantIDs []string) ([]*model.Tenant, error) {
	return c.catalog.GetTenantsLastCompactionTime(ctx, tenantIDs)
}

func (c *Coordinator) CreateDatabase(ctx context.Context, req *model.CreateDatabase) (*model.Database, error) {
	return c.catalog.CreateDatabase(ctx, req)
}

func (c *Coordinator) GetDatabase(ctx context.Context, req *model.GetDatabase) (*model.Database, error) {
	return c.catalog.GetDatabase(ctx, req)
}

func (c *Coordinator) ListDatabases(ctx context.Context, req *model.ListDatabases) ([]*model.Database, error) {
	return c.catalog.ListDatabases(ctx, req)
}

func (c *Coordinator) DeleteDatabase(ctx context.Context, req *model.DeleteDatabase) error {
	return c.catalog.DeleteDatabase(ctx, req)
}

func (c *Coordinator) CreateCollection(ctx context.Context, req *model.CreateCollection, segments []*model.CreateSegment) (*model.Collection, bool, error) {
	return c.catalog.CreateCollection(ctx, req, segments)
}

func (c *Coordinator) GetCollection(ctx context.Context, req *model.GetCollection) (*model.Collection, error) {
	return c.catalog.GetCollection(ctx, req)
}

func (c *Coordinator) ListCollections(ctx context.Context, req *model.ListCollections) ([]*model.Collection, error) {
	return c.catalog.ListCollections(ctx, req)
}

func (c *Coordinator) CountCollections(ctx context.Context, tenantID string, databaseName *string) (uint64, error) {
	return c.catalog.CountCollections(ctx, tenantID, databaseName)
}

func (c *Coordinator) ListActiveCollectionIDs(ctx context.Context) ([]string, error) {
	return c.catalog.ListActiveCollectionIDs(ctx)
}

func (c *Coordinator) DeleteCollection(ctx context.Context, req *model.DeleteCollection) error {
	return c.catalog.DeleteCollection(ctx, req)
}

func (c *Coordinator) UpdateCollection(ctx context.Context, req *model.UpdateCollection) (*model.Collection, error) {
	return c.catalog.UpdateCollection(ctx, req)
}

func (c *Coordinator) ForkCollection(ctx context.Context, req *model.ForkCollection) (*model.Collection, error) {
	return c.catalog.ForkCollection(ctx, req)
}

func (c *Coordinator) FlushCollectionCompaction(ctx context.Context, req *model.FlushCollectionCompaction) (*model.FlushCollectionInfo, error) {
	return c.catalog.FlushCollectionCompaction(ctx, req)
}

func (c *Coordinator) GetCollectionVersionHistory(ctx context.Context, collectionID string) ([]*model.CollectionVersion, error) {
	return c.catalog.GetCollectionVersionHistory(ctx, collectionID)
}

func (c *Coordinator) MarkVersionForGC(ctx context.Context, collectionID string, version int32) error {
	return c.catalog.MarkVersionForGC(ctx, collectionID, version)
}

func (c *Coordinator) ListCollectionsToGc(ctx context.Context, cutoffTimeSecs *uint64, limit *uint64) ([]*model.CollectionToGc, error) {
	return c.catalog.ListCollectionsToGc(ctx, cutoffTimeSecs, limit)
}

func (c *Coordinator) CreateSegment(ctx context.Context, req *model.CreateSegment) error {
	return c.catalog.CreateSegment(ctx, req)
}

func (c *Coordinator) GetSegments(ctx context.Context, collectionID string) ([]*model.Segment, error) {
	return c.catalog.GetSegments(ctx, collectionID)
}

func (c *Coordinator) UpdateSegment(ctx context.Context, req *model.UpdateSegment) error {
	return c.catalog.UpdateSegment(ctx, req)
}

func (c *Coordinator) RecordCompactionFailure(ctx context.Context, collectionID string) error {
	return c.catalog.RecordCompactionFailure(ctx, collectionID)
}

func (c *Coordinator) GetCompactionDLQSize(ctx context.Context) (int64, error) {
	return c.catalog.GetCompactionDLQSize(ctx)
}

func (c *Coordinator) GetSoftDeletedCollections(ctx context.Context, cutoffUnixSecs int64, limit int32) ([]*model.Collection, error) {
	return c.catalog.GetSoftDeletedCollections(ctx, cutoffUnixSecs, limit)
}

func (c *Coordinator) CleanupSoftDeletedCollection(ctx context.Context, collectionID string) error {
	return c.catalog.CleanupSoftDeletedCollection(ctx, collectionID)
}

func (c *Coordinator) ObjectStore() objectstore.Store {
	return c.objectStore
}
