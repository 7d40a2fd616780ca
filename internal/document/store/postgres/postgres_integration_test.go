//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"docdesk/internal/document/models"
	"docdesk/internal/document/store/postgres"
	"docdesk/internal/validity"
	"docdesk/pkg/domain"
	"docdesk/pkg/platform/sentinel"
	"docdesk/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.PostgresStore
	owner    domain.UserID
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = postgres.New(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "documents"))
	s.owner = domain.UserID(uuid.New())
}

func (s *PostgresStoreSuite) newDoc(posted time.Time, spec validity.Spec) *models.Document {
	return &models.Document{
		ID:          domain.NewDocumentID(),
		OwnerID:     s.owner,
		Title:       "Land title deed",
		Description: "Registered deed for a residential plot",
		Category:    "property",
		Issuer:      "A. Notary",
		Location:    models.Location{Country: "IN", City: "Pune"},
		Validity:    spec,
		PostedOn:    posted.UTC().Truncate(time.Microsecond),
		UpdatedAt:   posted.UTC().Truncate(time.Microsecond),
	}
}

func (s *PostgresStoreSuite) TestRoundTripBothVariants() {
	ctx := context.Background()
	from, _ := validity.ParseDate("2024-01-01")
	to, _ := validity.ParseDate("2024-12-31")

	for _, spec := range []validity.Spec{validity.NewFixed("10 years"), validity.NewRanged(from, to)} {
		doc := s.newDoc(time.Now(), spec)
		s.Require().NoError(s.store.Create(ctx, doc))

		found, err := s.store.FindByID(ctx, doc.ID)
		s.Require().NoError(err)
		s.Equal(doc.Validity.Kind(), found.Validity.Kind())
		s.Equal(doc.PostedOn, found.PostedOn)
		if spec.Ranged != nil {
			s.Equal("2024-01-01", found.Validity.Ranged.From.String())
			s.Equal("2024-12-31", found.Validity.Ranged.To.String())
		}
	}
}

func (s *PostgresStoreSuite) TestUpdateDeleteNotFound() {
	ctx := context.Background()
	doc := s.newDoc(time.Now(), validity.NewFixed("1 year"))

	s.ErrorIs(s.store.Update(ctx, doc), sentinel.ErrNotFound)
	s.ErrorIs(s.store.Delete(ctx, doc.ID), sentinel.ErrNotFound)
	_, err := s.store.FindByID(ctx, doc.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)

	s.Require().NoError(s.store.Create(ctx, doc))
	s.ErrorIs(s.store.Create(ctx, doc), sentinel.ErrAlreadyUsed)

	doc.MarkedExpired = true
	s.Require().NoError(s.store.Update(ctx, doc))
	found, err := s.store.FindByID(ctx, doc.ID)
	s.Require().NoError(err)
	s.True(found.MarkedExpired)

	s.Require().NoError(s.store.Delete(ctx, doc.ID))
}

func (s *PostgresStoreSuite) TestListActiveOnAndOrdering() {
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	from, _ := validity.ParseDate("2024-01-01")
	to, _ := validity.ParseDate("2024-06-15")

	fixed := s.newDoc(base, validity.NewFixed("1 year"))
	ranged := s.newDoc(base.Add(time.Minute), validity.NewRanged(from, to))
	marked := s.newDoc(base.Add(2*time.Minute), validity.NewFixed("1 year"))
	marked.MarkedExpired = true
	for _, d := range []*models.Document{fixed, ranged, marked} {
		s.Require().NoError(s.store.Create(ctx, d))
	}

	all, err := s.store.List(ctx, models.Query{OwnerID: s.owner})
	s.Require().NoError(err)
	s.Require().Len(all, 3)
	s.Equal(marked.ID, all[0].ID)

	lastDay, _ := validity.ParseDate("2024-06-15")
	active, err := s.store.List(ctx, models.Query{OwnerID: s.owner, ActiveOn: &lastDay})
	s.Require().NoError(err)
	s.Require().Len(active, 2)
	s.Equal(ranged.ID, active[0].ID)
	s.Equal(fixed.ID, active[1].ID)

	after, _ := validity.ParseDate("2024-06-16")
	active, err = s.store.List(ctx, models.Query{OwnerID: s.owner, ActiveOn: &after})
	s.Require().NoError(err)
	s.Require().Len(active, 1)
	s.Equal(fixed.ID, active[0].ID)
}
