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

// FlushCollectionCompaction is the compaction commit described in spec.md
// §4.1: it is the single place where a collection's version advances, and
// it is linearizable per collection thanks to
// dbmodel.ICollectionDb.UpdateLogPositionVersionAndTotalRecords's
// SELECT...FOR UPDATE. Everything else in this function — segment file-path
// updates, the version-history insert, the tenant last-compaction-time bump
// — rides in the same transaction so a caller never observes a
// partially-applied flush.
func (tc *Catalog) FlushCollectionCompaction(ctx context.Context, req *model.FlushCollectionCompaction) (*model.FlushCollectionInfo, error) {
	idStr := req.ID.String()
	var info *model.FlushCollectionInfo
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

		// A flush with no segment updates and an unchanged offset is a no-op:
		// nothing to commit, so skip the version bump rather than minting a
		// new version row that carries an identical snapshot. Still requires
		// ExpectedVersion to match the stored version, so a genuinely stale
		// caller gets ErrCollectionVersionStale/Invalid from the normal path
		// below instead of being silently treated as a no-op.
		if len(req.FlushSegmentCompactions) == 0 && req.NewLogCompactionOffset == row.LogCompactionOffset && req.ExpectedVersion == row.Version {
			tenantLastCompaction := row.LastCompactionTimeSecs
			if tenants, err := tc.metaDomain.TenantDb(txCtx).GetTenantsLastCompactionTime([]string{req.TenantID}); err == nil && len(tenants) > 0 {
				tenantLastCompaction = tenants[0].LastCompactionTime
			}
			info = &model.FlushCollectionInfo{
				ID:                       idStr,
				CollectionVersion:        row.Version,
				TenantLastCompactionTime: tenantLastCompaction,
			}
			return nil
		}

		for _, segUpdate := range req.FlushSegmentCompactions {
			segID := segUpdate.SegmentID.String()
			segs, err := tc.metaDomain.SegmentDb(txCtx).GetSegments(&segID, nil, idStr)
			if err != nil {
				return err
			}
			if len(segs) == 0 {
				return common.ErrSegmentNotFound
			}
			seg := segs[0]
			seg.FilePathsJSON = marshalFilePaths(segUpdate.FilePaths)
			if err := tc.metaDomain.SegmentDb(txCtx).Update(seg); err != nil {
				return err
			}
		}

		newVersion, err := tc.metaDomain.CollectionDb(txCtx).UpdateLogPositionVersionAndTotalRecords(
			idStr, req.ExpectedVersion, req.NewLogCompactionOffset, req.TotalRecordsPostCompaction)
		if err != nil {
			return err
		}

		segmentSnapshot, err := tc.metaDomain.SegmentDb(txCtx).GetSegments(nil, nil, idStr)
		if err != nil {
			return err
		}
		snapshotPaths := make(map[string]map[string][]string, len(segmentSnapshot))
		for _, s := range segmentSnapshot {
			snapshotPaths[s.ID] = unmarshalFilePaths(s.FilePathsJSON)
		}
		snapshotJSON := marshalSegmentSnapshot(snapshotPaths)

		now := time.Now().Unix()
		if err := tc.metaDomain.CollectionVersionDb(txCtx).Insert(&dbmodel.CollectionVersion{
			CollectionID:         idStr,
			Version:              newVersion,
			LogCompactionOffset:  req.NewLogCompactionOffset,
			SegmentFilePathsJSON: snapshotJSON,
			IsCurrent:            true,
		}); err != nil {
			return err
		}
		if err := tc.metaDomain.CollectionVersionDb(txCtx).MarkCurrent(idStr, newVersion); err != nil {
			return err
		}

		if err := tc.metaDomain.TenantDb(txCtx).UpdateTenantLastCompactionTime(req.TenantID, now); err != nil {
			return err
		}
		if err := tc.metaDomain.CollectionDb(txCtx).ResetCompactionFailureCount(idStr); err != nil {
			return err
		}

		info = &model.FlushCollectionInfo{
			ID:                       idStr,
			CollectionVersion:        newVersion,
			TenantLastCompactionTime: now,
		}
		return nil
	})
	if err != nil {
		log.Error("flush collection compaction failed", zap.String("collection", idStr), zap.Error(err))
		return nil, err
	}
	return info, nil
}

// GetCollectionVersionHistory and MarkVersionForGC are the admin operations
// spec.md §4.1 names alongside FlushCollectionCompaction.
func (tc *Catalog) GetCollectionVersionHistory(ctx context.Context, collectionID string) ([]*model.CollectionVersion, error) {
	versions, err := tc.metaDomain.CollectionVersionDb(ctx).GetVersions(collectionID)
	if err != nil {
		return nil, err
	}
	result := make([]*model.CollectionVersion, 0, len(versions))
	for _, v := range versions {
		result = append(result, convertCollectionVersionToModel(v))
	}
	return result, nil
}

func (tc *Catalog) MarkVersionForGC(ctx context.Context, collectionID string, version int32) error {
	return tc.metaDomain.CollectionVersionDb(ctx).MarkForGC(collectionID, version)
}

// RecordCompactionFailure is called by the compactor on spec.md §4.3 step 2g
// ("on any other error: increment compaction_failure_count").
func (tc *Catalog) RecordCompactionFailure(ctx context.Context, collectionID string) error {
	return tc.metaDomain.CollectionDb(ctx).IncrementCompactionFailureCount(collectionID)
}

func (tc *Catalog) GetCompactionDLQSize(ctx context.Context) (int64, error) {
	return tc.metaDomain.CollectionDb(ctx).GetCompactionDLQSize()
}

// UpdateSegment replaces a segment's file paths outside of a flush. It does
// no version check (unlike FlushCollectionCompaction, the last writer wins)
// and does not apply req.ResetMetadata or req.Metadata.
func (tc *Catalog) UpdateSegment(ctx context.Context, req *model.UpdateSegment) error {
	idStr := req.ID.String()
	segs, err := tc.metaDomain.SegmentDb(ctx).GetSegments(&idStr, nil, "")
	if err != nil {
		return err
	}
	if len(segs) == 0 {
		return common.ErrSegmentNotFound
	}
	seg := segs[0]
	if req.FilePathsPatch != nil {
		seg.FilePathsJSON = marshalFilePaths(req.FilePathsPatch)
	}
	return tc.metaDomain.SegmentDb(ctx).Update(seg)
}

func (tc *Catalog) CreateSegment(ctx context.Context, req *model.CreateSegment) error {
	return tc.metaDomain.SegmentDb(ctx).Insert(&dbmodel.Segment{
		ID:             req.ID.String(),
		CollectionID:   req.CollectionID.String(),
		Scope:          req.Scope,
		Type:           req.Type,
		FilePathsJSON:  marshalFilePaths(req.FilePaths),
		ReferenceCount: 1,
	})
}

func (tc *Catalog) GetSegments(ctx context.Context, collectionID string) ([]*model.Segment, error) {
	rows, err := tc.metaDomain.SegmentDb(ctx).GetSegments(nil, nil, collectionID)
	if err != nil {
		return nil, err
	}
	result := make([]*model.Segment, 0, len(rows))
	for _, r := range rows {
		result = append(result, convertSegmentToModel(r))
	}
	return result, nil
}
