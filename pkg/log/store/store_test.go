package store

import (
	"context"
	"testing"

	chromalog "github.com/chroma-core/controlplane/pkg/log"
	"github.com/chroma-core/controlplane/shared/libs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/suite"
)

type StoreTestSuite struct {
	suite.Suite
	pool  *pgxpool.Pool
	store *Store
}

func (s *StoreTestSuite) SetupSuite() {
	ctx := context.Background()
	connStr, err := libs.StartPgContainer(ctx)
	s.Require().NoError(err)
	s.Require().NoError(libs.RunMigration(ctx, connStr))

	pool, err := libs.NewPgConnection(ctx, connStr)
	s.Require().NoError(err)
	s.pool = pool
	s.store = NewStore(pool)
}

func (s *StoreTestSuite) TearDownSuite() {
	s.pool.Close()
}

func (s *StoreTestSuite) TestAppendAndEnumerate() {
	ctx := context.Background()
	collectionID := "store-test-append-enumerate"

	first, last, err := s.store.Append(ctx, collectionID, []chromalog.Record{
		{Op: chromalog.OpUpsert, ID: "a"},
		{Op: chromalog.OpUpsert, ID: "b"},
	})
	s.Require().NoError(err)
	s.Equal(int64(1), first)
	s.Equal(int64(2), last)

	records, next, head, err := s.store.Enumerate(ctx, collectionID, 1, 10)
	s.Require().NoError(err)
	s.Len(records, 2)
	s.Equal(int64(3), next)
	s.Equal(int64(2), head)
}

func (s *StoreTestSuite) TestScrubCompactedPrefixHidesPurgedOffsets() {
	ctx := context.Background()
	collectionID := "store-test-scrub"

	_, _, err := s.store.Append(ctx, collectionID, []chromalog.Record{
		{Op: chromalog.OpUpsert, ID: "a"},
		{Op: chromalog.OpUpsert, ID: "b"},
		{Op: chromalog.OpUpsert, ID: "c"},
	})
	s.Require().NoError(err)

	s.Require().NoError(s.store.ScrubCompactedPrefix(ctx, collectionID, 2))

	_, _, _, err = s.store.Enumerate(ctx, collectionID, 1, 10)
	s.Error(err)

	records, _, _, err := s.store.Enumerate(ctx, collectionID, 2, 10)
	s.Require().NoError(err)
	s.Len(records, 2)
}

func (s *StoreTestSuite) TestForkRecordsSharesCommittedRange() {
	ctx := context.Background()
	sourceID := "store-test-fork-source"
	targetID := "store-test-fork-target"

	_, _, err := s.store.Append(ctx, sourceID, []chromalog.Record{
		{Op: chromalog.OpUpsert, ID: "a"},
	})
	s.Require().NoError(err)
	s.Require().NoError(s.store.ScrubCompactedPrefix(ctx, sourceID, 1))

	compactionOffset, enumerationOffset, err := s.store.ForkRecords(ctx, sourceID, targetID)
	s.Require().NoError(err)
	s.Equal(int64(1), compactionOffset)
	s.Equal(int64(1), enumerationOffset)

	head, err := s.store.GetHead(ctx, targetID)
	s.Require().NoError(err)
	s.Equal(int64(1), head)
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}
