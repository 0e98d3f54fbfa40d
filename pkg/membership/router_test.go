package membership

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	list            Memberlist
	resourceVersion string
	getCalls        int
}

func (f *fakeStore) Get(ctx context.Context, role Role) (Memberlist, string, error) {
	f.getCalls++
	return f.list, f.resourceVersion, nil
}

func (f *fakeStore) Update(ctx context.Context, role Role, list Memberlist, resourceVersion string) error {
	f.list = list
	return nil
}

func TestRouterCachesWithinTTL(t *testing.T) {
	store := &fakeStore{list: Memberlist{{ID: "w1"}, {ID: "w2"}, {ID: "w3"}}}
	r := NewRouter(RoleQuery, store, Murmur3Hasher, time.Hour)

	_, err := r.RankedWorkers(context.Background(), "c1")
	require.NoError(t, err)
	_, err = r.RankedWorkers(context.Background(), "c2")
	require.NoError(t, err)

	require.Equal(t, 1, store.getCalls, "second lookup should hit the TTL cache, not the store")
}

func TestRouterOwnsMatchesPrimary(t *testing.T) {
	store := &fakeStore{list: Memberlist{{ID: "w1"}, {ID: "w2"}, {ID: "w3"}}}
	r := NewRouter(RoleCompactor, store, Murmur3Hasher, time.Hour)

	primary, err := r.Primary(context.Background(), "collection-x")
	require.NoError(t, err)

	owns, err := r.Owns(context.Background(), "collection-x", primary)
	require.NoError(t, err)
	require.True(t, owns)

	for _, other := range []string{"w1", "w2", "w3"} {
		if other == primary {
			continue
		}
		owns, err := r.Owns(context.Background(), "collection-x", other)
		require.NoError(t, err)
		require.False(t, owns)
	}
}

func TestMemberlistSameMembersIgnoresOrder(t *testing.T) {
	a := Memberlist{{ID: "w1"}, {ID: "w2"}}
	b := Memberlist{{ID: "w2"}, {ID: "w1"}}
	require.True(t, sameMembers(a, b))

	c := Memberlist{{ID: "w1"}, {ID: "w3"}}
	require.False(t, sameMembers(a, c))
}
