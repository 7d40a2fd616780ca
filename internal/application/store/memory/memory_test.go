package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"docdesk/internal/application/models"
	"docdesk/pkg/domain"
	"docdesk/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	ctx   context.Context
	store *InMemoryStore
	now   time.Time
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = New()
	s.now = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
}

func (s *InMemoryStoreSuite) newApp(applicant, reviewer domain.UserID, createdAt time.Time) *models.Application {
	app := models.NewApplication(domain.NewApplicationID(), domain.NewDocumentID(), applicant, reviewer, models.Content{Purpose: "visa"}, "ref", createdAt)
	s.Require().NoError(s.store.Create(s.ctx, app))
	return app
}

func (s *InMemoryStoreSuite) TestCreateAndFind() {
	app := s.newApp(domain.UserID(uuid.New()), domain.UserID(uuid.New()), s.now)

	s.Run("duplicate id rejected", func() {
		s.ErrorIs(s.store.Create(s.ctx, app), sentinel.ErrAlreadyUsed)
	})

	s.Run("returned copy is detached", func() {
		got, err := s.store.FindByID(s.ctx, app.ID)
		s.Require().NoError(err)
		got.Purpose = "changed"
		again, err := s.store.FindByID(s.ctx, app.ID)
		s.Require().NoError(err)
		s.Equal("visa", again.Purpose)
	})

	s.Run("missing id", func() {
		_, err := s.store.FindByID(s.ctx, domain.NewApplicationID())
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *InMemoryStoreSuite) TestSaveCompareAndSwap() {
	app := s.newApp(domain.UserID(uuid.New()), domain.UserID(uuid.New()), s.now)

	done := *app
	done.Status = models.StatusCompleted
	s.Require().NoError(s.store.Save(s.ctx, &done, models.StatusPending))

	rejected := *app
	rejected.Status = models.StatusRejected
	s.ErrorIs(s.store.Save(s.ctx, &rejected, models.StatusPending), sentinel.ErrConflict)

	got, err := s.store.FindByID(s.ctx, app.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusCompleted, got.Status)

	s.Run("binding fields are never overwritten", func() {
		other := s.newApp(domain.UserID(uuid.New()), domain.UserID(uuid.New()), s.now)
		tampered := *other
		tampered.ReviewerID = domain.UserID(uuid.New())
		s.Require().NoError(s.store.Save(s.ctx, &tampered, models.StatusPending))
		got, err := s.store.FindByID(s.ctx, other.ID)
		s.Require().NoError(err)
		s.Equal(other.ReviewerID, got.ReviewerID)
	})

	s.Run("missing application", func() {
		ghost := *app
		ghost.ID = domain.NewApplicationID()
		s.ErrorIs(s.store.Save(s.ctx, &ghost, models.StatusPending), sentinel.ErrNotFound)
	})
}

func (s *InMemoryStoreSuite) TestListFiltersAndOrder() {
	seeker := domain.UserID(uuid.New())
	reviewer := domain.UserID(uuid.New())
	older := s.newApp(seeker, reviewer, s.now.Add(-time.Hour))
	newer := s.newApp(seeker, reviewer, s.now)
	s.newApp(domain.UserID(uuid.New()), reviewer, s.now)

	mine, err := s.store.List(s.ctx, models.Query{ApplicantID: seeker})
	s.Require().NoError(err)
	s.Require().Len(mine, 2)
	s.Equal(newer.ID, mine[0].ID)
	s.Equal(older.ID, mine[1].ID)

	assigned, err := s.store.List(s.ctx, models.Query{ReviewerID: reviewer})
	s.Require().NoError(err)
	s.Len(assigned, 3)

	pending, err := s.store.List(s.ctx, models.Query{ReviewerID: reviewer, Statuses: []models.Status{models.StatusCompleted}})
	s.Require().NoError(err)
	s.Empty(pending)
}

func (s *InMemoryStoreSuite) TestDelete() {
	app := s.newApp(domain.UserID(uuid.New()), domain.UserID(uuid.New()), s.now)
	s.Require().NoError(s.store.Delete(s.ctx, app.ID))
	s.ErrorIs(s.store.Delete(s.ctx, app.ID), sentinel.ErrNotFound)
}
