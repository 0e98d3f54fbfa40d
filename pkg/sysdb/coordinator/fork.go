package coordinator

import (
	"context"

	"github.com/chroma-core/controlplane/pkg/common"
	"github.com/chroma-core/controlplane/pkg/model"
	"github.com/chroma-core/controlplane/pkg/sysdb/metastore/db/dbmodel"
	"github.com/chroma-core/controlplane/pkg/types"
	"github.com/pingcap/log"
	"go.uber.org/zap"
)

// ForkCollection implements spec.md §4.1's branch-by-reference semantics: the
// target collection's three segments point at the source segments'
// file_paths as of the source's current version, and no artifact is copied.
// Divergence happens later, the first time either side compacts and writes
// a new file set — ReferenceCount records the shared ownership so hard-
// delete of the source is blocked while a fork still references its paths.
func (tc *Catalog) ForkCollection(ctx context.Context, req *model.ForkCollection) (*model.Collection, error) {
	sourceID := req.SourceCollectionID.String()
	targetID := req.TargetCollectionID.String()

	var result *model.Collection
	err := tc.txImpl.Transaction(ctx, func(txCtx context.Context) error {
		source, err := tc.metaDomain.CollectionDb(txCtx).GetCollectionEntry(&sourceID, nil, nil)
		if err != nil {
			return err
		}
		if source == nil {
			return common.ErrCollectionNotFound
		}
		if source.IsDeleted {
			return common.ErrCollectionSoftDeleted
		}

		target := &dbmodel.Collection{
			ID:                     targetID,
			Name:                   req.TargetName,
			TenantID:               source.TenantID,
			DatabaseID:             source.DatabaseID,
			Dimension:              source.Dimension,
			DistanceMetric:         source.DistanceMetric,
			ConfigurationJSON:      source.ConfigurationJSON,
			LogCompactionOffset:    req.SourceLogCompactionOff,
			LogEnumerationOffset:   req.SourceLogEnumerationOff,
			ForkSourceCollectionID: &sourceID,
			ForkSourceVersion:      &source.Version,
			ForkSourceLogOffset:    &req.SourceLogCompactionOff,
		}
		if err := tc.metaDomain.CollectionDb(txCtx).Insert(target); err != nil {
			return err
		}

		sourceSegments, err := tc.metaDomain.SegmentDb(txCtx).GetSegments(nil, nil, sourceID)
		if err != nil {
			return err
		}
		for _, seg := range sourceSegments {
			forkedSeg := &dbmodel.Segment{
				ID:             types.NewUniqueID().String(),
				CollectionID:   targetID,
				Scope:          seg.Scope,
				Type:           seg.Type,
				FilePathsJSON:  seg.FilePathsJSON,
				ReferenceCount: 1,
			}
			if err := tc.metaDomain.SegmentDb(txCtx).Insert(forkedSeg); err != nil {
				return err
			}
			if err := tc.metaDomain.SegmentDb(txCtx).IncrementReferenceCount(seg.ID, 1); err != nil {
				return err
			}
		}

		databaseName, err := tc.databaseNameByID(txCtx, source.TenantID, source.DatabaseID)
		if err != nil {
			return err
		}
		result = convertCollectionToModel(target, databaseName, model.NewMetadata())
		return nil
	})
	if err != nil {
		log.Error("fork collection failed", zap.String("source", sourceID), zap.String("target", targetID), zap.Error(err))
		return nil, err
	}
	return result, nil
}

// databaseNameByID resolves a database row's name from its ID, since
// GetCollectionEntry (needed here to see soft-deleted sources) doesn't join
// against the databases table the way GetCollections does.
func (tc *Catalog) databaseNameByID(ctx context.Context, tenantID, databaseID string) (string, error) {
	databases, err := tc.metaDomain.DatabaseDb(ctx).GetDatabases(tenantID, "")
	if err != nil {
		return "", err
	}
	for _, db := range databases {
		if db.ID == databaseID {
			return db.Name, nil
		}
	}
	return "", common.ErrDatabaseNotFound
}
