package dbmodel

import "time"

// CompactionLease is the transient exclusivity grant spec.md §3/§5 describes:
// one row per collection currently being compacted, with a nonce the holder
// must present on every refresh/release so a delayed write from a lease the
// holder has already lost cannot resurrect it.
type CompactionLease struct {
	CollectionID string    `gorm:"collection_id;primaryKey"`
	HolderID     string    `gorm:"holder_id;not null"`
	Nonce        string    `gorm:"nonce;not null"`
	ExpiresAt    int64     `gorm:"expires_at;not null"`
	CreatedAt    time.Time `gorm:"created_at;type:timestamp;not null;default:current_timestamp"`
}

func (CompactionLease) TableName() string { return "compaction_leases" }

//go:generate mockery --name=ICompactionLeaseDb
type ICompactionLeaseDb interface {
	// TryAcquire inserts a lease row if none exists, or replaces one whose
	// ExpiresAt has already passed. Returns (nonce, true) on success, ("",
	// false) if a live lease is held by someone else.
	TryAcquire(collectionID, holderID string, expiresAt int64) (nonce string, acquired bool, err error)
	Refresh(collectionID, holderID, nonce string, newExpiresAt int64) (bool, error)
	Release(collectionID, holderID, nonce string) error
	Get(collectionID string) (*CompactionLease, error)
	DeleteAll() error
}
