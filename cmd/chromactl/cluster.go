package main

import (
	"context"
	"fmt"
	"time"

	"github.com/chroma-core/controlplane/pkg/common"
	"github.com/chroma-core/controlplane/pkg/compactor"
	"github.com/chroma-core/controlplane/pkg/leader"
	"github.com/chroma-core/controlplane/pkg/membership"
	"github.com/rs/zerolog/log"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
)

var (
	runCluster         bool
	clusterNamespace   string
	clusterWatchResync time.Duration
	clusterRouterTTL   time.Duration
)

func init() {
	runCmd.Flags().BoolVar(&runCluster, "cluster", false, "Run the compaction/sweep loop under Kubernetes membership routing and leader election instead of locally")
	runCmd.Flags().StringVar(&clusterNamespace, "cluster-namespace", envOr("POD_NAMESPACE", "default"), "Kubernetes namespace for the memberlist CR and compaction leader lease")
	runCmd.Flags().DurationVar(&clusterWatchResync, "cluster-watch-resync", envOrDuration("MEMBERSHIP_WATCH_INTERVAL", 30*time.Second), "Pod informer resync interval")
	runCmd.Flags().DurationVar(&clusterRouterTTL, "cluster-router-ttl", 5*time.Second, "Router memberlist cache TTL")
}

// clusteredMembership builds the compactor pool's membership.Manager (pod
// watch -> memberlist CR reconciliation) and the membership.Router it feeds,
// wired into a compactor.RouterMembership — the clustered counterpart to
// singleNodeMembership, used when `run --cluster` is set. lister enumerates
// the candidate collections the router then filters down to the ones this
// identity ranks as primary owner of. The manager is returned as its own
// common.Component since it must keep reconciling regardless of which
// replica currently holds the compaction leader lease.
func clusteredMembership(clientset kubernetes.Interface, dynamicClient dynamic.Interface, lister compactor.CollectionLister, namespace, identity string, watchResync, routerTTL time.Duration) (compactor.Membership, common.Component) {
	store := membership.NewCRStore(dynamicClient, namespace)
	watcher := membership.NewKubernetesWatcher(clientset, namespace, membership.RoleCompactor, watchResync)
	manager := membership.NewManager(membership.RoleCompactor, watcher, store)
	router := membership.NewRouter(membership.RoleCompactor, store, membership.Murmur3Hasher, routerTTL)
	return compactor.NewRouterMembership(lister, router, identity), manager
}

// leaderGuardedDispatch wraps the components that must run on at most one
// replica at a time (the compactor worker and the soft-delete sweeper)
// behind a leader.Elector: they are started when this replica wins the
// compaction lease and stopped the moment it loses it, so a slow network
// partition can't leave two replicas compacting the same collection
// concurrently.
func leaderGuardedDispatch(client kubernetes.Interface, namespace, lockName, identity string, guarded []common.Component) *leader.Elector {
	elector := leader.NewElector(client, leader.Config{
		LockName:  lockName,
		Namespace: namespace,
		Identity:  identity,
	}, func(ctx context.Context) {
		for _, c := range guarded {
			if err := c.Start(); err != nil {
				log.Error().Err(err).Msg("leader-guarded component failed to start; remaining components not started")
				return
			}
		}
	})
	elector.OnStoppedLeading(func() {
		for i := len(guarded) - 1; i >= 0; i-- {
			if err := guarded[i].Stop(); err != nil {
				log.Error().Err(err).Msg("leader-guarded component failed to stop cleanly")
			}
		}
	})
	return elector
}

// clusterDispatch holds everything run --cluster needs before the compactor
// worker can be constructed (the membership implementation to hand
// compactor.NewWorker) and after (the elector that guards it once built).
type clusterDispatch struct {
	clientset  kubernetes.Interface
	membership compactor.Membership
	manager    common.Component
}

// prepareClusterDispatch builds the membership.Manager/Router/Store stack
// and the compactor.RouterMembership it feeds. Called before the compactor
// worker exists, since the worker's constructor needs the membership
// implementation as an argument.
func prepareClusterDispatch(lister compactor.CollectionLister, identity string) (*clusterDispatch, error) {
	clientset, dynamicClient, err := buildKubernetesClients()
	if err != nil {
		return nil, fmt.Errorf("clustered run requires a reachable kubernetes API: %w", err)
	}
	membershipImpl, manager := clusteredMembership(clientset, dynamicClient, lister, clusterNamespace, identity, clusterWatchResync, clusterRouterTTL)
	return &clusterDispatch{clientset: clientset, membership: membershipImpl, manager: manager}, nil
}

// guard wraps the already-constructed compactor worker and soft-delete
// sweeper behind a leader.Elector and returns the components run --cluster
// adds in place of running them unconditionally: the membership manager
// (every replica) and the elector (only the elected replica actually starts
// compactorWorker/sweeper).
func (d *clusterDispatch) guard(identity string, compactorWorker, sweeper common.Component) []common.Component {
	elector := leaderGuardedDispatch(d.clientset, clusterNamespace, "chromactl-compactor", identity, []common.Component{compactorWorker, sweeper})
	return []common.Component{d.manager, elector}
}
