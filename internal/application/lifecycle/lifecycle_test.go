package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"docdesk/internal/application/models"
	"docdesk/internal/application/store/memory"
	"docdesk/pkg/domain"
	dErrors "docdesk/pkg/domain-errors"
)

type LifecycleSuite struct {
	suite.Suite
	ctx       context.Context
	now       time.Time
	store     *memory.InMemoryStore
	lifecycle *Lifecycle
	reviewer  domain.Principal
	app       *models.Application
}

func TestLifecycleSuite(t *testing.T) {
	suite.Run(t, new(LifecycleSuite))
}

func (s *LifecycleSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	s.store = memory.New()
	s.lifecycle = New(s.store, func() time.Time { return s.now })
	s.reviewer = domain.Principal{ID: domain.UserID(uuid.New()), Role: domain.RoleReviewer}

	s.app = models.NewApplication(domain.NewApplicationID(), domain.NewDocumentID(),
		domain.UserID(uuid.New()), s.reviewer.ID, models.Content{Purpose: "visa"}, "ref", s.now.Add(-time.Hour))
	s.Require().NoError(s.store.Create(s.ctx, s.app))
}

func (s *LifecycleSuite) TestBoundReviewerDecides() {
	for _, target := range []models.Status{models.StatusCompleted, models.StatusRejected} {
		s.Run(string(target), func() {
			s.SetupTest()
			updated, err := s.lifecycle.Transition(s.ctx, s.app, target, s.reviewer)
			s.Require().NoError(err)
			s.Equal(target, updated.Status)
			s.Equal(s.now, updated.UpdatedAt)
			s.Equal(models.StatusPending, s.app.Status, "input is not mutated")

			stored, err := s.store.FindByID(s.ctx, s.app.ID)
			s.Require().NoError(err)
			s.Equal(target, stored.Status)
		})
	}
}

func (s *LifecycleSuite) TestTerminalStatesAreFinal() {
	done, err := s.lifecycle.Transition(s.ctx, s.app, models.StatusCompleted, s.reviewer)
	s.Require().NoError(err)

	for _, target := range []models.Status{models.StatusRejected, models.StatusCompleted, models.StatusPending} {
		_, err := s.lifecycle.Transition(s.ctx, done, target, s.reviewer)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition), "completed -> %s", target)
	}
}

func (s *LifecycleSuite) TestInvalidTargets() {
	for _, target := range []models.Status{models.StatusPending, models.Status("archived"), ""} {
		_, err := s.lifecycle.Transition(s.ctx, s.app, target, s.reviewer)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition), "target %q", target)
	}
}

func (s *LifecycleSuite) TestOnlyBoundReviewer() {
	s.Run("another reviewer", func() {
		other := domain.Principal{ID: domain.UserID(uuid.New()), Role: domain.RoleReviewer}
		_, err := s.lifecycle.Transition(s.ctx, s.app, models.StatusCompleted, other)
		s.Require().True(dErrors.HasCode(err, dErrors.CodeForbidden))
		s.Equal("not_bound_reviewer", dErrors.ReasonOf(err))
	})

	s.Run("the applicant", func() {
		seeker := domain.Principal{ID: s.app.ApplicantID, Role: domain.RoleSeeker}
		_, err := s.lifecycle.Transition(s.ctx, s.app, models.StatusCompleted, seeker)
		s.Require().True(dErrors.HasCode(err, dErrors.CodeForbidden))
		s.Equal("role_mismatch", dErrors.ReasonOf(err))
	})

	stored, err := s.store.FindByID(s.ctx, s.app.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, stored.Status)
}

func (s *LifecycleSuite) TestStaleCopyLosesCompareAndSwap() {
	stale := *s.app
	_, err := s.lifecycle.Transition(s.ctx, s.app, models.StatusRejected, s.reviewer)
	s.Require().NoError(err)

	_, err = s.lifecycle.Transition(s.ctx, &stale, models.StatusCompleted, s.reviewer)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))

	stored, err := s.store.FindByID(s.ctx, s.app.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusRejected, stored.Status)
}

func (s *LifecycleSuite) TestConcurrentTransitionsExactlyOneWins() {
	const workers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		wins    int
		losses  int
		winning models.Status
	)
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			target := models.StatusCompleted
			if i%2 == 1 {
				target = models.StatusRejected
			}
			snapshot := *s.app
			updated, err := s.lifecycle.Transition(s.ctx, &snapshot, target, s.reviewer)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
				winning = updated.Status
				return
			}
			if dErrors.HasCode(err, dErrors.CodeInvalidTransition) {
				losses++
			}
		}(i)
	}
	wg.Wait()

	s.Equal(1, wins)
	s.Equal(workers-1, losses)
	stored, err := s.store.FindByID(s.ctx, s.app.ID)
	s.Require().NoError(err)
	s.Equal(winning, stored.Status)
}

type failingStore struct{ err error }

func (f failingStore) Save(context.Context, *models.Application, models.Status) error { return f.err }

func (s *LifecycleSuite) TestStoreFailureIsWrapped() {
	cause := errors.New("connection reset")
	l := New(failingStore{err: cause}, func() time.Time { return s.now })

	_, err := l.Transition(s.ctx, s.app, models.StatusCompleted, s.reviewer)
	s.True(dErrors.HasCode(err, dErrors.CodeStorageFailure))
	s.ErrorIs(err, cause)
}
