package dao

import (
	"errors"
	"time"

	"github.com/chroma-core/controlplane/pkg/common"
	"github.com/chroma-core/controlplane/pkg/sysdb/metastore/db/dbmodel"
	"github.com/chroma-core/controlplane/pkg/types"
	"github.com/pingcap/log"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type compactionLeaseDb struct {
	db *gorm.DB
}

var _ dbmodel.ICompactionLeaseDb = (*compactionLeaseDb)(nil)

// TryAcquire is the compaction loop's exclusivity gate (spec.md §5, "Lease
// policy"): at most one worker may hold a collection's lease at a time. It
// locks any existing row for the collection, and only replaces it if there
// is none or the existing one has already expired — a live lease held by
// someone else is left untouched and reported as a failed acquire rather
// than an error, since losing a race for a lease is an expected outcome.
func (s *compactionLeaseDb) TryAcquire(collectionID, holderID string, expiresAt int64) (string, bool, error) {
	nonce := types.NewUniqueID().String()
	var acquired bool

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var existing dbmodel.CompactionLease
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("collection_id = ?", collectionID).
			First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			acquired = true
			return tx.Create(&dbmodel.CompactionLease{
				CollectionID: collectionID,
				HolderID:     holderID,
				Nonce:        nonce,
				ExpiresAt:    expiresAt,
			}).Error
		case err != nil:
			return err
		case existing.ExpiresAt <= time.Now().Unix():
			acquired = true
			return tx.Model(&dbmodel.CompactionLease{}).
				Where("collection_id = ?", collectionID).
				Updates(map[string]interface{}{
					"holder_id":  holderID,
					"nonce":      nonce,
					"expires_at": expiresAt,
				}).Error
		default:
			acquired = false
			log.Info("compaction lease held by other worker", zap.String("collectionID", collectionID))
			return nil
		}
	})
	if err != nil {
		return "", false, err
	}
	if !acquired {
		return "", false, nil
	}
	return nonce, true, nil
}

func (s *compactionLeaseDb) Refresh(collectionID, holderID, nonce string, newExpiresAt int64) (bool, error) {
	result := s.db.Model(&dbmodel.CompactionLease{}).
		Where("collection_id = ? AND holder_id = ? AND nonce = ?", collectionID, holderID, nonce).
		Update("expires_at", newExpiresAt)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *compactionLeaseDb) Release(collectionID, holderID, nonce string) error {
	result := s.db.Where("collection_id = ? AND holder_id = ? AND nonce = ?", collectionID, holderID, nonce).
		Delete(&dbmodel.CompactionLease{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return common.ErrLeaseNotFound
	}
	return nil
}

func (s *compactionLeaseDb) Get(collectionID string) (*dbmodel.CompactionLease, error) {
	var lease dbmodel.CompactionLease
	err := s.db.Where("collection_id = ?", collectionID).First(&lease).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrLeaseNotFound
		}
		return nil, err
	}
	return &lease, nil
}

func (s *compactionLeaseDb) DeleteAll() error {
	return s.db.Where("1 = 1").Delete(&dbmodel.CompactionLease{}).Error
}
