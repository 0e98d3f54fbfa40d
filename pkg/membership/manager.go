package membership

import (
	"context"
	"time"

	"github.com/chroma-core/controlplane/pkg/common"
	"github.com/pingcap/log"
	"go.uber.org/zap"
	"k8s.io/client-go/util/workqueue"
)

// Manager reconciles a Watcher's live pod roster into a Store-persisted
// memberlist, debouncing rapid pod churn behind a rate-limited workqueue and
// a reconcile interval — identical shape to the teacher's
// memberlist_manager.go, generalized to operate per-Role so the query and
// compactor pools reconcile independently.
type Manager struct {
	role              Role
	watcher           Watcher
	store             Store
	workqueue         workqueue.RateLimitingInterface
	reconcileInterval time.Duration
	reconcileBatch    uint

	stopCh chan struct{}
}

func NewManager(role Role, watcher Watcher, store Store) *Manager {
	return &Manager{
		role:              role,
		watcher:           watcher,
		store:             store,
		workqueue:         workqueue.NewRateLimitingQueue(workqueue.DefaultControllerRateLimiter()),
		reconcileInterval: 5 * time.Second,
		reconcileBatch:    1,
		stopCh:            make(chan struct{}),
	}
}

func (m *Manager) SetReconcileInterval(d time.Duration) { m.reconcileInterval = d }
func (m *Manager) SetReconcileBatch(n uint)             { m.reconcileBatch = n }

func (m *Manager) Start() error {
	log.Info("starting membership manager", zap.String("role", string(m.role)))
	m.watcher.RegisterCallback(func(podIP string) {
		m.workqueue.Add(podIP)
	})
	if err := m.watcher.Start(); err != nil {
		return err
	}
	go m.run()
	return nil
}

func (m *Manager) Stop() error {
	m.workqueue.ShutDown()
	close(m.stopCh)
	return m.watcher.Stop()
}

func (m *Manager) run() {
	ticker := time.NewTicker(m.reconcileInterval)
	defer ticker.Stop()

	eventCh := make(chan interface{})
	go func() {
		for {
			item, shutdown := m.workqueue.Get()
			if shutdown {
				close(eventCh)
				return
			}
			eventCh <- item
		}
	}()

	var pending uint
	for {
		select {
		case item, ok := <-eventCh:
			if !ok {
				return
			}
			m.workqueue.Done(item)
			pending++
			if pending >= m.reconcileBatch {
				m.reconcile()
				pending = 0
			}
		case <-ticker.C:
			if pending > 0 {
				m.reconcile()
				pending = 0
			}
		case <-m.stopCh:
			return
		}
	}
}

func (m *Manager) reconcile() {
	ctx := context.Background()
	current, resourceVersion, err := m.store.Get(ctx, m.role)
	if err != nil {
		log.Error("failed to read memberlist", zap.String("role", string(m.role)), zap.Error(err))
		return
	}
	ready := Memberlist(m.watcher.ListReady())
	if sameMembers(current, ready) {
		return
	}
	if err := m.store.Update(ctx, m.role, ready, resourceVersion); err != nil {
		log.Error("failed to update memberlist", zap.String("role", string(m.role)), zap.Error(err))
		return
	}
	log.Info("reconciled memberlist", zap.String("role", string(m.role)), zap.Array("members", ready))
}

var _ common.Component = (*Manager)(nil)
