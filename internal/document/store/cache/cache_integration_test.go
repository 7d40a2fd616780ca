//go:build integration

package cache_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"docdesk/internal/document/models"
	"docdesk/internal/document/store/cache"
	"docdesk/internal/document/store/memory"
	"docdesk/internal/validity"
	"docdesk/pkg/domain"
	"docdesk/pkg/platform/sentinel"
	"docdesk/pkg/testutil/containers"
)

// countingStore records how often the backing store is read.
type countingStore struct {
	*memory.InMemoryStore
	reads atomic.Int32
}

func (c *countingStore) FindByID(ctx context.Context, id domain.DocumentID) (*models.Document, error) {
	c.reads.Add(1)
	return c.InMemoryStore.FindByID(ctx, id)
}

// gatedStore pauses a backing read after it has loaded the row, until released.
type gatedStore struct {
	*memory.InMemoryStore
	loaded  chan struct{}
	release chan struct{}
}

func (g *gatedStore) FindByID(ctx context.Context, id domain.DocumentID) (*models.Document, error) {
	doc, err := g.InMemoryStore.FindByID(ctx, id)
	if g.loaded != nil {
		close(g.loaded)
		<-g.release
		g.loaded = nil
	}
	return doc, err
}

type CachedStoreSuite struct {
	suite.Suite
	redis   *containers.RedisContainer
	backing *countingStore
	store   *cache.CachedStore
}

func TestCachedStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(CachedStoreSuite))
}

func (s *CachedStoreSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
}

func (s *CachedStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
	s.backing = &countingStore{InMemoryStore: memory.New()}
	s.store = cache.New(s.backing, s.redis.Client.Client, time.Minute)
}

func (s *CachedStoreSuite) seed() *models.Document {
	return s.seedInto(s.store)
}

func (s *CachedStoreSuite) seedInto(store *cache.CachedStore) *models.Document {
	now := time.Now().UTC()
	doc := &models.Document{
		ID:          domain.NewDocumentID(),
		OwnerID:     domain.UserID(uuid.New()),
		Title:       "Marriage certificate",
		Description: "Certified marriage registration copy",
		Category:    "civil",
		Issuer:      "City Registrar",
		Location:    models.Location{Country: "FR", City: "Lyon"},
		Validity:    validity.NewFixed("permanent"),
		PostedOn:    now,
		UpdatedAt:   now,
	}
	s.Require().NoError(store.Create(context.Background(), doc))
	return doc
}

func (s *CachedStoreSuite) TestReadThrough() {
	ctx := context.Background()
	doc := s.seed()

	first, err := s.store.FindByID(ctx, doc.ID)
	s.Require().NoError(err)
	second, err := s.store.FindByID(ctx, doc.ID)
	s.Require().NoError(err)

	s.Equal(first.Title, second.Title)
	s.Equal(doc.ID, second.ID)
	s.Equal(int32(1), s.backing.reads.Load())
}

func (s *CachedStoreSuite) TestUpdateInvalidates() {
	ctx := context.Background()
	doc := s.seed()

	_, err := s.store.FindByID(ctx, doc.ID)
	s.Require().NoError(err)

	doc.Title = "Renamed certificate"
	s.Require().NoError(s.store.Update(ctx, doc))

	found, err := s.store.FindByID(ctx, doc.ID)
	s.Require().NoError(err)
	s.Equal("Renamed certificate", found.Title)
}

func (s *CachedStoreSuite) TestDeleteInvalidates() {
	ctx := context.Background()
	doc := s.seed()

	_, err := s.store.FindByID(ctx, doc.ID)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Delete(ctx, doc.ID))

	_, err = s.store.FindByID(ctx, doc.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *CachedStoreSuite) TestReadOverlappingUpdateDoesNotCacheOldRow() {
	ctx := context.Background()
	backing := &gatedStore{
		InMemoryStore: memory.New(),
		loaded:        make(chan struct{}),
		release:       make(chan struct{}),
	}
	store := cache.New(backing, s.redis.Client.Client, time.Minute)
	doc := s.seedInto(store)
	loaded := backing.loaded

	done := make(chan *models.Document)
	go func() {
		found, err := store.FindByID(ctx, doc.ID)
		s.NoError(err)
		done <- found
	}()

	<-loaded
	doc.MarkedExpired = true
	s.Require().NoError(store.Update(ctx, doc))
	close(backing.release)
	stale := <-done
	s.Require().NotNil(stale)
	s.False(stale.MarkedExpired)

	found, err := store.FindByID(ctx, doc.ID)
	s.Require().NoError(err)
	s.True(found.MarkedExpired)
}

func (s *CachedStoreSuite) TestConcurrentReadsGetIndependentCopies() {
	ctx := context.Background()
	doc := s.seed()

	results := make([]*models.Document, 20)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			found, err := s.store.FindByID(ctx, doc.ID)
			s.NoError(err)
			results[i] = found
		}(i)
	}
	wg.Wait()

	results[0].Validity.Fixed.DurationLabel = "mutated"
	for _, r := range results[1:] {
		s.Require().NotNil(r)
		s.Equal("permanent", r.Validity.Fixed.DurationLabel)
	}
}
