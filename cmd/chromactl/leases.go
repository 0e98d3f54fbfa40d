package main

import (
	"context"

	"github.com/chroma-core/controlplane/pkg/sysdb/metastore/db/dao"
)

// compactionLeaseAdapter satisfies compactor.LeaseStore against the SysDB
// compaction_leases table. compactor.LeaseStore has no ctx parameter (its
// Worker already has its own request-scoped context per sweep), so this
// just supplies context.Background() to the dao layer.
type compactionLeaseAdapter struct{}

func (compactionLeaseAdapter) TryAcquire(collectionID, holderID string, expiresAt int64) (string, bool, error) {
	return dao.NewMetaDomain().CompactionLeaseDb(context.Background()).TryAcquire(collectionID, holderID, expiresAt)
}

func (compactionLeaseAdapter) Refresh(collectionID, holderID, nonce string, newExpiresAt int64) (bool, error) {
	return dao.NewMetaDomain().CompactionLeaseDb(context.Background()).Refresh(collectionID, holderID, nonce, newExpiresAt)
}

func (compactionLeaseAdapter) Release(collectionID, holderID, nonce string) error {
	return dao.NewMetaDomain().CompactionLeaseDb(context.Background()).Release(collectionID, holderID, nonce)
}
