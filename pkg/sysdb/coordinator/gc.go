package coordinator

import (
	"context"

	"github.com/chroma-core/controlplane/pkg/common"
	"github.com/chroma-core/controlplane/pkg/model"
)

// GetSoftDeletedCollections surfaces soft-delete candidates past the grace
// period to pkg/sysdb/cleanup's sweeper.
func (tc *Catalog) GetSoftDeletedCollections(ctx context.Context, cutoffUnixSecs int64, limit int32) ([]*model.Collection, error) {
	rows, err := tc.metaDomain.CollectionDb(ctx).GetSoftDeletedCollections(cutoffUnixSecs, limit)
	if err != nil {
		return nil, err
	}
	result := make([]*model.Collection, 0, len(rows))
	for _, r := range rows {
		result = append(result, convertCollectionToModel(r, "", model.NewMetadata()))
	}
	return result, nil
}

// CleanupSoftDeletedCollection is the transactional hard-delete spec.md
// §4.1's "Soft-delete cleaner" describes: segment rows, version history
// rows, and the collection row are removed together, but only once no live
// fork still references this collection's artifacts. A collection's own
// segments carry that signal directly — ReferenceCount > 1 means some fork
// still points at the exact file set this collection owns, so hard-delete
// is deferred until the fork side goes away first.
func (tc *Catalog) CleanupSoftDeletedCollection(ctx context.Context, collectionID string) error {
	return tc.txImpl.Transaction(ctx, func(txCtx context.Context) error {
		row, err := tc.metaDomain.CollectionDb(txCtx).GetCollectionEntry(&collectionID, nil, nil)
		if err != nil {
			return err
		}
		if row == nil {
			return nil
		}
		if !row.IsDeleted {
			return common.ErrCollectionHasLiveForks
		}

		segments, err := tc.metaDomain.SegmentDb(txCtx).GetSegments(nil, nil, collectionID)
		if err != nil {
			return err
		}
		for _, seg := range segments {
			if seg.ReferenceCount > 1 {
				return common.ErrCollectionHasLiveForks
			}
		}

		if row.ForkSourceCollectionID != nil {
			sourceSegments, err := tc.metaDomain.SegmentDb(txCtx).GetSegments(nil, nil, *row.ForkSourceCollectionID)
			if err != nil {
				return err
			}
			bySeg := make(map[string]string, len(sourceSegments))
			for _, s := range sourceSegments {
				bySeg[s.Scope] = s.ID
			}
			for _, seg := range segments {
				if sourceSegID, ok := bySeg[seg.Scope]; ok {
					if err := tc.metaDomain.SegmentDb(txCtx).IncrementReferenceCount(sourceSegID, -1); err != nil {
						return err
					}
				}
			}
		}

		for _, seg := range segments {
			if err := tc.metaDomain.SegmentDb(txCtx).DeleteSegmentByID(seg.ID); err != nil {
				return err
			}
		}
		if _, err := tc.metaDomain.CollectionVersionDb(txCtx).DeleteMarkedForGC(collectionID); err != nil {
			return err
		}
		versions, err := tc.metaDomain.CollectionVersionDb(txCtx).GetVersions(collectionID)
		if err != nil {
			return err
		}
		for _, v := range versions {
			if err := tc.metaDomain.CollectionVersionDb(txCtx).MarkForGC(collectionID, v.Version); err != nil {
				return err
			}
		}
		if _, err := tc.metaDomain.CollectionVersionDb(txCtx).DeleteMarkedForGC(collectionID); err != nil {
			return err
		}

		_, err = tc.metaDomain.CollectionDb(txCtx).DeleteCollectionByID(collectionID)
		return err
	})
}
