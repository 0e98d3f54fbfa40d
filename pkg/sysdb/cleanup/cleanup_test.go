package cleanup

import (
	"context"
	"testing"

	"github.com/chroma-core/controlplane/pkg/common"
	"github.com/chroma-core/controlplane/pkg/model"
	"github.com/chroma-core/controlplane/pkg/types"
	"github.com/stretchr/testify/require"
)

type fakeCoordinator struct {
	softDeleted []*model.Collection
	cleaned     []string
	failFor     map[string]error
}

func (f *fakeCoordinator) GetSoftDeletedCollections(ctx context.Context, cutoffUnixSecs int64, limit int32) ([]*model.Collection, error) {
	return f.softDeleted, nil
}

func (f *fakeCoordinator) CleanupSoftDeletedCollection(ctx context.Context, collectionID string) error {
	if err, ok := f.failFor[collectionID]; ok {
		return err
	}
	f.cleaned = append(f.cleaned, collectionID)
	return nil
}

func TestSweepOnce_DeletesEligibleCollections(t *testing.T) {
	id := types.NewUniqueID()
	fake := &fakeCoordinator{softDeleted: []*model.Collection{{ID: id}}}
	sweeper := NewSoftDeleteSweeper(fake, 0, 0, 100)

	sweeper.sweepOnce()

	require.Equal(t, []string{id.String()}, fake.cleaned)
}

func TestSweepOnce_SkipsCollectionsWithLiveForks(t *testing.T) {
	id := types.NewUniqueID()
	fake := &fakeCoordinator{
		softDeleted: []*model.Collection{{ID: id}},
		failFor:     map[string]error{id.String(): common.ErrCollectionHasLiveForks},
	}
	sweeper := NewSoftDeleteSweeper(fake, 0, 0, 100)

	sweeper.sweepOnce()

	require.Empty(t, fake.cleaned)
}
