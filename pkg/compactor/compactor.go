// Package compactor is the worker loop spec.md §4.3 describes: it converts
// a collection's log suffix into materialized index artifacts and
// atomically advances the collection's version in SysDB via
// FlushCollectionCompaction. Grounded on spec.md §4.3's numbered loop and on
// pkg/sysdb/coordinator's FlushCollectionCompaction optimistic-concurrency
// contract it calls into; the teacher's Rust compaction loop is out of tree,
// so the worker shape (ticker-driven, per-collection lease, structured
// logging) follows the conventions pkg/sysdb/cleanup/cleanup.go and
// pkg/sysdb/cleanup/dlq_metrics.go establish elsewhere in this codebase for
// background workers.
package compactor

import (
	"context"
	"math/rand"
	"time"

	"github.com/chroma-core/controlplane/pkg/common"
	chromalog "github.com/chroma-core/controlplane/pkg/log"
	"github.com/chroma-core/controlplane/pkg/model"
	"github.com/chroma-core/controlplane/pkg/types"
	"github.com/pingcap/log"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
)

// Coordinator is the slice of coordinator.Coordinator the compactor needs.
type Coordinator interface {
	GetCollection(ctx context.Context, req *model.GetCollection) (*model.Collection, error)
	GetSegments(ctx context.Context, collectionID string) ([]*model.Segment, error)
	FlushCollectionCompaction(ctx context.Context, req *model.FlushCollectionCompaction) (*model.FlushCollectionInfo, error)
	RecordCompactionFailure(ctx context.Context, collectionID string) error
}

// LeaseStore is the slice of dbmodel.ICompactionLeaseDb the compactor needs;
// kept as its own interface so this package doesn't depend on the gorm-based
// dbmodel package directly.
type LeaseStore interface {
	TryAcquire(collectionID, holderID string, expiresAt int64) (nonce string, acquired bool, err error)
	Refresh(collectionID, holderID, nonce string, newExpiresAt int64) (refreshed bool, err error)
	Release(collectionID, holderID, nonce string) error
}

// Membership answers which collections this worker owns, per spec.md
// §4.3 step 1's rendezvous-hash bucket.
type Membership interface {
	OwnedCollections(ctx context.Context) ([]string, error)
}

// BuildResult is the new file set an IndexBuilder produces for one
// collection's compaction, keyed by segment ID.
type BuildResult struct {
	SegmentFilePaths map[string]map[string][]string // segment id -> role -> paths
}

// IndexBuilder is the external index builder spec.md §4.3 step d calls
// "opaque to this spec" — it reads the drained log range and the current
// segment file paths, and produces a new file set per segment. Writes land
// in object storage under a fresh, content-addressed path; this package
// never inspects artifact contents, only the paths IndexBuilder returns.
type IndexBuilder interface {
	Build(ctx context.Context, collectionID string, segments []*model.Segment, records []chromalog.Record) (BuildResult, error)
}

type Config struct {
	HolderID           string
	StalenessThreshold int64         // records: log_head - log_compaction_offset above which a collection is due
	StalenessAge       time.Duration // last_compaction_time older than this also triggers compaction
	LeaseTTL           time.Duration
	PollInterval       time.Duration
	EnumerateBatchSize int
}

// Worker runs the per-node compaction loop.
type Worker struct {
	coordinator Coordinator
	log         chromalog.Log
	leases      LeaseStore
	membership  Membership
	builder     IndexBuilder
	cfg         Config

	ticker *time.Ticker
	stop   chan struct{}
}

func NewWorker(coordinator Coordinator, logSvc chromalog.Log, leases LeaseStore, membership Membership, builder IndexBuilder, cfg Config) *Worker {
	return &Worker{
		coordinator: coordinator,
		log:         logSvc,
		leases:      leases,
		membership:  membership,
		builder:     builder,
		cfg:         cfg,
		stop:        make(chan struct{}),
	}
}

func (w *Worker) Start() error {
	go w.run()
	return nil
}

func (w *Worker) Stop() error {
	if w.ticker != nil {
		w.ticker.Stop()
	}
	close(w.stop)
	return nil
}

func (w *Worker) run() {
	w.ticker = time.NewTicker(w.cfg.PollInterval)
	defer w.ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-w.ticker.C:
			w.sweepOwnedCollections()
		}
	}
}

func (w *Worker) sweepOwnedCollections() {
	ctx := context.Background()
	owned, err := w.membership.OwnedCollections(ctx)
	if err != nil {
		log.Error("failed to list owned collections", zap.Error(err))
		return
	}
	for _, collectionID := range owned {
		due, err := w.isDue(ctx, collectionID)
		if err != nil {
			log.Error("failed to check compaction eligibility", zap.String("collection_id", collectionID), zap.Error(err))
			continue
		}
		if due {
			w.compactOnce(ctx, collectionID)
		}
	}
}

func (w *Worker) isDue(ctx context.Context, collectionID string) (bool, error) {
	id := types.MustParse(collectionID)
	coll, err := w.coordinator.GetCollection(ctx, &model.GetCollection{ID: id})
	if err != nil {
		return false, err
	}
	head, err := w.log.GetHead(ctx, collectionID)
	if err != nil {
		return false, err
	}
	behind := head - coll.LogCompactionOffset
	stale := time.Since(time.Unix(coll.LastCompactionTime, 0)) > w.cfg.StalenessAge
	return behind > w.cfg.StalenessThreshold || stale, nil
}

// compactOnce runs spec.md §4.3's per-collection sequence (steps a-g).
func (w *Worker) compactOnce(ctx context.Context, collectionID string) {
	nonce, acquired, err := w.leases.TryAcquire(collectionID, w.cfg.HolderID, time.Now().Add(w.cfg.LeaseTTL).Unix())
	if err != nil {
		log.Error("failed to acquire compaction lease", zap.String("collection_id", collectionID), zap.Error(err))
		return
	}
	if !acquired {
		return
	}
	released := false
	release := func() {
		if released {
			return
		}
		released = true
		if err := w.leases.Release(collectionID, w.cfg.HolderID, nonce); err != nil {
			log.Error("failed to release compaction lease", zap.String("collection_id", collectionID), zap.Error(err))
		}
	}
	defer release()

	stopRefresh := w.startLeaseRefresher(collectionID, nonce)
	defer stopRefresh()

	id := types.MustParse(collectionID)
	coll, err := w.coordinator.GetCollection(ctx, &model.GetCollection{ID: id})
	if err != nil {
		log.Error("failed to read collection before compaction", zap.String("collection_id", collectionID), zap.Error(err))
		w.recordFailure(ctx, collectionID)
		return
	}

	segments, err := w.coordinator.GetSegments(ctx, collectionID)
	if err != nil {
		log.Error("failed to read segments before compaction", zap.String("collection_id", collectionID), zap.Error(err))
		w.recordFailure(ctx, collectionID)
		return
	}

	head, err := w.log.GetHead(ctx, collectionID)
	if err != nil {
		log.Error("failed to read log head", zap.String("collection_id", collectionID), zap.Error(err))
		w.recordFailure(ctx, collectionID)
		return
	}

	var records []chromalog.Record
	if head > coll.LogCompactionOffset {
		records, _, _, err = w.log.Enumerate(ctx, collectionID, coll.LogCompactionOffset+1, w.cfg.EnumerateBatchSize)
		if err != nil {
			log.Error("failed to enumerate log for compaction", zap.String("collection_id", collectionID), zap.Error(err))
			w.recordFailure(ctx, collectionID)
			return
		}
	}

	// An empty drained range is valid: the version still advances (spec.md
	// §4.3, "Empty-batch compaction").
	result, err := w.builder.Build(ctx, collectionID, segments, records)
	if err != nil {
		log.Error("index builder failed", zap.String("collection_id", collectionID), zap.Error(err))
		w.recordFailure(ctx, collectionID)
		return
	}

	newOffset := coll.LogCompactionOffset + int64(len(records))
	flushReq := &model.FlushCollectionCompaction{
		ID:                         id,
		TenantID:                   coll.TenantID,
		ExpectedVersion:            coll.Version,
		NewLogCompactionOffset:     newOffset,
		TotalRecordsPostCompaction: coll.TotalRecordsPostCompaction + uint64(len(records)),
	}
	for _, seg := range segments {
		paths, ok := result.SegmentFilePaths[seg.ID.String()]
		if !ok {
			continue
		}
		flushReq.FlushSegmentCompactions = append(flushReq.FlushSegmentCompactions, &model.FlushSegmentCompaction{
			SegmentID: seg.ID,
			Scope:     seg.Scope,
			FilePaths: paths,
		})
	}

	_, err = w.coordinator.FlushCollectionCompaction(ctx, flushReq)
	switch {
	case err == nil:
		if scrubErr := w.log.ScrubCompactedPrefix(ctx, collectionID, newOffset); scrubErr != nil {
			log.Error("failed to scrub compacted log prefix", zap.String("collection_id", collectionID), zap.Error(scrubErr))
		}
		log.Info("compacted collection", zap.String("collection_id", collectionID), zap.Int64("new_offset", newOffset))
	case common.Code(err) == codes.Aborted:
		// The freshly written artifacts become orphans for GC; the next
		// sweep retries with a refreshed version (spec.md §4.3 step f).
		log.Info("flush aborted on stale version, will retry", zap.String("collection_id", collectionID), zap.Error(err))
	default:
		w.recordFailure(ctx, collectionID)
		log.Error("flush collection compaction failed", zap.String("collection_id", collectionID), zap.Error(err))
	}
}

// startLeaseRefresher keeps collectionID's compaction lease alive for the
// duration of a build that may run longer than cfg.LeaseTTL: without this, a
// slow IndexBuilder.Build would let the lease expire mid-build and let a
// second worker acquire and compact the same collection concurrently,
// exactly the violation the at-most-one-compactor lease is meant to
// prevent. It renews at LeaseTTL/2 so a single missed tick still leaves
// margin before expiry, and stops itself (rather than continuing to renew a
// lease this worker no longer holds) the first time a renewal reports the
// lease as gone.
func (w *Worker) startLeaseRefresher(collectionID, nonce string) (stop func()) {
	interval := w.cfg.LeaseTTL / 2
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				refreshed, err := w.leases.Refresh(collectionID, w.cfg.HolderID, nonce, time.Now().Add(w.cfg.LeaseTTL).Unix())
				if err != nil {
					log.Error("failed to refresh compaction lease", zap.String("collection_id", collectionID), zap.Error(err))
					continue
				}
				if !refreshed {
					log.Error("compaction lease lost during build, no longer held by this worker", zap.String("collection_id", collectionID))
					return
				}
			}
		}
	}()

	var stopped bool
	return func() {
		if stopped {
			return
		}
		stopped = true
		close(done)
	}
}

func (w *Worker) recordFailure(ctx context.Context, collectionID string) {
	if err := w.coordinator.RecordCompactionFailure(ctx, collectionID); err != nil {
		log.Error("failed to record compaction failure", zap.String("collection_id", collectionID), zap.Error(err))
	}
}

// jitteredBackoff returns base plus a random jitter in [0, base).
func jitteredBackoff(base time.Duration) time.Duration {
	return base + time.Duration(rand.Int63n(int64(base)))
}
