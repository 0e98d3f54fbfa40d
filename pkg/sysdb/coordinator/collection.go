package coordinator

import (
	"context"
	"time"

	"github.com/chroma-core/controlplane/pkg/common"
	"github.com/chroma-core/controlplane/pkg/model"
	"github.com/chroma-core/controlplane/pkg/sysdb/metastore/db/dbmodel"
	"github.com/chroma-core/controlplane/pkg/types"
	"github.com/pingcap/log"
	"go.uber.org/zap"
)

// CreateCollection inserts the collection row and its three segments in a
// single transaction (spec.md §4.1). When GetOrCreate is set and a live
// collection with the same (database, name) already exists, it is returned
// idempotently provided dimension and distance metric match; a mismatch is
// reported rather than silently ignored.
func (tc *Catalog) CreateCollection(ctx context.Context, req *model.CreateCollection, segments []*model.CreateSegment) (*model.Collection, bool, error) {
	if req.Name == "" {
		return nil, false, common.ErrCollectionNameEmpty
	}

	databases, err := tc.metaDomain.DatabaseDb(ctx).GetDatabases(req.TenantID, req.DatabaseName)
	if err != nil {
		return nil, false, err
	}
	if len(databases) == 0 {
		return nil, false, common.ErrDatabaseNotFound
	}
	databaseID := databases[0].ID

	existing, err := tc.metaDomain.CollectionDb(ctx).GetCollections(nil, &req.Name, req.TenantID, req.DatabaseName, nil, nil)
	if err != nil {
		return nil, false, err
	}
	if len(existing) > 0 {
		if !req.GetOrCreate {
			return nil, false, common.ErrCollectionUniqueConstraintViolation
		}
		current := existing[0].Collection
		if !dimensionsMatch(current.Dimension, req.Dimension) {
			return nil, false, common.ErrCollectionDimensionMismatch
		}
		if current.DistanceMetric != string(req.DistanceMetric) {
			return nil, false, common.ErrCollectionMetricMismatch
		}
		metadata := eavRowsToMetadata(existing[0].CollectionMetadata)
		return convertCollectionToModel(current, req.DatabaseName, metadata), false, nil
	}

	var result *model.Collection
	err = tc.txImpl.Transaction(ctx, func(txCtx context.Context) error {
		row := &dbmodel.Collection{
			ID:                req.ID.String(),
			Name:              req.Name,
			TenantID:          req.TenantID,
			DatabaseID:        databaseID,
			Dimension:         req.Dimension,
			DistanceMetric:    string(req.DistanceMetric),
			ConfigurationJSON: req.ConfigurationJSON,
		}
		if err := tc.metaDomain.CollectionDb(txCtx).Insert(row); err != nil {
			return err
		}
		if err := tc.metaDomain.CollectionDb(txCtx).InsertMetadata(metadataToEAVRows(req.ID.String(), req.Metadata)); err != nil {
			return err
		}
		for _, seg := range segments {
			segRow := &dbmodel.Segment{
				ID:             seg.ID.String(),
				CollectionID:   req.ID.String(),
				Scope:          seg.Scope,
				Type:           seg.Type,
				FilePathsJSON:  marshalFilePaths(seg.FilePaths),
				ReferenceCount: 1,
			}
			if err := tc.metaDomain.SegmentDb(txCtx).Insert(segRow); err != nil {
				return err
			}
		}
		result = convertCollectionToModel(row, req.DatabaseName, req.Metadata)
		return nil
	})
	if err != nil {
		log.Error("create collection failed", zap.String("name", req.Name), zap.Error(err))
		return nil, false, err
	}
	return result, true, nil
}

func dimensionsMatch(existing, requested *int32) bool {
	if existing == nil || requested == nil {
		return existing == requested
	}
	return *existing == *requested
}

// GetCollection distinguishes NotFound from FailedPrecondition-on-soft-delete
// (spec.md §4.1), so it looks the row up via GetCollectionEntry — which,
// unlike GetCollections, does not filter out soft-deleted rows — rather than
// the listing query the other read paths use.
func (tc *Catalog) GetCollection(ctx context.Context, req *model.GetCollection) (*model.Collection, error) {
	var idPtr *string
	if req.ID != types.NilUniqueID() {
		s := req.ID.String()
		idPtr = &s
	}
	row, err := tc.metaDomain.CollectionDb(ctx).GetCollectionEntry(idPtr, req.Name, &req.DatabaseName)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, common.ErrCollectionNotFound
	}
	if row.IsDeleted {
		return nil, common.ErrCollectionSoftDeleted
	}
	metadata, err := tc.metaDomain.CollectionDb(ctx).GetMetadata(row.ID)
	if err != nil {
		return nil, err
	}
	return convertCollectionToModel(row, req.DatabaseName, eavRowsToMetadata(metadata)), nil
}

func (tc *Catalog) ListCollections(ctx context.Context, req *model.ListCollections) ([]*model.Collection, error) {
	rows, err := tc.metaDomain.CollectionDb(ctx).GetCollections(nil, nil, req.TenantID, req.DatabaseName, req.Limit, req.Offset)
	if err != nil {
		return nil, err
	}
	result := make([]*model.Collection, 0, len(rows))
	for _, r := range rows {
		result = append(result, convertCollectionToModel(r.Collection, req.DatabaseName, eavRowsToMetadata(r.CollectionMetadata)))
	}
	return result, nil
}

// ListActiveCollectionIDs feeds the compactor's per-sweep ownership check
// (spec.md §4.3 step 1): cheap IDs only, no metadata hydration.
func (tc *Catalog) ListActiveCollectionIDs(ctx context.Context) ([]string, error) {
	return tc.metaDomain.CollectionDb(ctx).ListActiveCollectionIDs()
}

func (tc *Catalog) CountCollections(ctx context.Context, tenantID string, databaseName *string) (uint64, error) {
	return tc.metaDomain.CollectionDb(ctx).CountCollections(tenantID, databaseName)
}

// DeleteCollection soft-deletes by default; spec.md §4.1 names this
// SoftDeleteCollection and treats it as idempotent — deleting an
// already-soft-deleted collection succeeds without error.
func (tc *Catalog) DeleteCollection(ctx context.Context, req *model.DeleteCollection) error {
	return tc.txImpl.Transaction(ctx, func(txCtx context.Context) error {
		return tc.softDeleteCollectionByID(txCtx, req.ID.String(), time.Now().Unix())
	})
}

func (tc *Catalog) softDeleteCollectionByID(ctx context.Context, idStr string, ts int64) error {
	row, err := tc.metaDomain.CollectionDb(ctx).GetCollectionEntry(&idStr, nil, nil)
	if err != nil {
		return err
	}
	if row == nil {
		return common.ErrCollectionNotFound
	}
	if row.IsDeleted {
		return nil
	}
	hardDeletableAfter := ts + common.DefaultSoftDeleteGraceSeconds
	row.IsDeleted = true
	row.SoftDeletedAt = &ts
	row.HardDeletableAfter = &hardDeletableAfter
	return tc.metaDomain.CollectionDb(ctx).Update(row)
}

func (tc *Catalog) UpdateCollection(ctx context.Context, req *model.UpdateCollection) (*model.Collection, error) {
	idStr := req.ID.String()
	var result *model.Collection
	err := tc.txImpl.Transaction(ctx, func(txCtx context.Context) error {
		row, err := tc.metaDomain.CollectionDb(txCtx).GetCollectionEntry(&idStr, nil, nil)
		if err != nil {
			return err
		}
		if row == nil {
			return common.ErrCollectionNotFound
		}
		if row.IsDeleted {
			return common.ErrCollectionSoftDeleted
		}
		if req.Name != nil {
			row.Name = *req.Name
		}
		if err := tc.metaDomain.CollectionDb(txCtx).Update(row); err != nil {
			return err
		}
		metadata := req.Metadata
		if req.ResetMetadata || metadata != nil {
			if err := tc.metaDomain.CollectionDb(txCtx).DeleteMetadata(idStr); err != nil {
				return err
			}
			if !req.ResetMetadata && metadata != nil {
				if err := tc.metaDomain.CollectionDb(txCtx).InsertMetadata(metadataToEAVRows(idStr, metadata)); err != nil {
					return err
				}
			} else {
				metadata = model.NewMetadata()
			}
		} else {
			metadata = model.NewMetadata()
		}
		result = convertCollectionToModel(row, req.DatabaseName, metadata)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (tc *Catalog) ListCollectionsToGc(ctx context.Context, cutoffTimeSecs *uint64, limit *uint64) ([]*model.CollectionToGc, error) {
	rows, err := tc.metaDomain.CollectionDb(ctx).ListCollectionsToGc(cutoffTimeSecs, limit)
	if err != nil {
		return nil, err
	}
	result := make([]*model.CollectionToGc, 0, len(rows))
	for _, r := range rows {
		result = append(result, &model.CollectionToGc{
			ID:              types.MustParse(r.ID),
			TenantID:        r.TenantID,
			Name:            r.Name,
			LatestVersion:   r.Version,
			NumVersions:     r.NumVersions,
			OldestVersionTs: r.OldestVersionTs,
		})
	}
	return result, nil
}
