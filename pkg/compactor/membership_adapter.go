package compactor

import "context"

// CollectionLister is the narrow slice of coordinator.Coordinator this
// adapter needs to enumerate compaction candidates; Coordinator itself
// doesn't need a ListActiveCollectionIDs method since not every compactor
// deployment wants ownership computed this way (e.g. a single-node embedded
// deployment can skip membership entirely and run everything locally).
type CollectionLister interface {
	ListActiveCollectionIDs(ctx context.Context) ([]string, error)
}

// Ranker is the slice of *membership.Router this adapter needs — kept as an
// interface so this package doesn't import pkg/membership directly.
type Ranker interface {
	Owns(ctx context.Context, collectionID, workerID string) (bool, error)
}

// RouterMembership implements Membership by listing every active collection
// and filtering to the ones membership.Router ranks this worker as primary
// owner of — the rendezvous-hash bucket spec.md §4.3 step 1 describes.
type RouterMembership struct {
	lister   CollectionLister
	router   Ranker
	workerID string
}

func NewRouterMembership(lister CollectionLister, router Ranker, workerID string) *RouterMembership {
	return &RouterMembership{lister: lister, router: router, workerID: workerID}
}

func (m *RouterMembership) OwnedCollections(ctx context.Context) ([]string, error) {
	all, err := m.lister.ListActiveCollectionIDs(ctx)
	if err != nil {
		return nil, err
	}
	owned := make([]string, 0, len(all))
	for _, collectionID := range all {
		ok, err := m.router.Owns(ctx, collectionID, m.workerID)
		if err != nil {
			continue
		}
		if ok {
			owned = append(owned, collectionID)
		}
	}
	return owned, nil
}

var _ Membership = (*RouterMembership)(nil)
