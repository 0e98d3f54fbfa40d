// Package cleanup runs the background sweeps spec.md §4.1 describes as
// living alongside the catalog rather than inside the request path: the
// soft-delete grace-period reaper and the compaction DLQ gauge emitter.
// Unlike pkg/log/purging's ticker, this sweeper does not use Kubernetes
// leader election — hard-delete is idempotent under concurrent invocation
// (row-level locks inside the catalog transaction make a duplicate sweep a
// no-op), so every replica running the loop is harmless.
package cleanup

import (
	"context"
	"math/rand"
	"time"

	"github.com/chroma-core/controlplane/pkg/common"
	"github.com/chroma-core/controlplane/pkg/model"
	"github.com/pingcap/log"
	"go.uber.org/zap"
)

// Coordinator is the slice of coordinator.Coordinator the sweeper needs.
type Coordinator interface {
	GetSoftDeletedCollections(ctx context.Context, cutoffUnixSecs int64, limit int32) ([]*model.Collection, error)
	CleanupSoftDeletedCollection(ctx context.Context, collectionID string) error
}

type SoftDeleteSweeper struct {
	coordinator      Coordinator
	ticker           *time.Ticker
	sweepInterval    time.Duration
	maxAge           time.Duration
	limitPerSweep    int32
	maxInitialJitter time.Duration
}

func NewSoftDeleteSweeper(coordinator Coordinator, sweepInterval, maxAge time.Duration, limitPerSweep int32) *SoftDeleteSweeper {
	return &SoftDeleteSweeper{
		coordinator:      coordinator,
		sweepInterval:    sweepInterval,
		maxAge:           maxAge,
		limitPerSweep:    limitPerSweep,
		maxInitialJitter: 5 * time.Second,
	}
}

func (s *SoftDeleteSweeper) Start() error {
	go s.run()
	return nil
}

func (s *SoftDeleteSweeper) run() {
	log.Info("starting soft delete sweeper",
		zap.Duration("sweep_interval", s.sweepInterval),
		zap.Duration("max_age", s.maxAge),
		zap.Int32("limit_per_sweep", s.limitPerSweep))

	if s.maxInitialJitter > 0 {
		time.Sleep(time.Duration(rand.Int63n(int64(s.maxInitialJitter.Milliseconds())+1)) * time.Millisecond)
	}

	s.ticker = time.NewTicker(s.sweepInterval)
	for range s.ticker.C {
		time.Sleep(time.Duration(rand.Int63n(1000)) * time.Millisecond)
		s.sweepOnce()
	}
}

// sweepOnce asks the catalog for collections past their soft-delete grace
// period and hard-deletes each one. CleanupSoftDeletedCollection is the
// transactional gate (spec.md §4.1): it refuses with
// common.ErrCollectionHasLiveForks when a fork still shares the collection's
// segment artifacts, in which case the row is simply retried on a later
// sweep once that fork is gone.
func (s *SoftDeleteSweeper) sweepOnce() {
	cutoff := time.Now().Add(-s.maxAge).Unix()
	ctx := context.Background()
	collections, err := s.coordinator.GetSoftDeletedCollections(ctx, cutoff, s.limitPerSweep)
	if err != nil {
		log.Error("failed to list soft deleted collections", zap.Error(err))
		return
	}

	deleted := 0
	for _, c := range collections {
		err := s.coordinator.CleanupSoftDeletedCollection(ctx, c.ID.String())
		switch {
		case err == nil:
			deleted++
		case err == common.ErrCollectionHasLiveForks:
		default:
			log.Error("failed to hard-delete soft deleted collection", zap.String("collection_id", c.ID.String()), zap.Error(err))
		}
	}
	if deleted > 0 {
		log.Info("swept soft deleted collections", zap.Int("deleted", deleted))
	}
}

func (s *SoftDeleteSweeper) Stop() error {
	if s.ticker != nil {
		s.ticker.Stop()
	}
	return nil
}
