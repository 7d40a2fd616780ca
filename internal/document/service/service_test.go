package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store,AuditPublisher

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	docmetrics "docdesk/internal/document/metrics"
	"docdesk/internal/document/models"
	"docdesk/internal/document/service/mocks"
	"docdesk/internal/document/store/memory"
	"docdesk/internal/validity"
	"docdesk/pkg/domain"
	dErrors "docdesk/pkg/domain-errors"
	"docdesk/pkg/platform/audit"
	"docdesk/pkg/platform/audit/publisher"
	auditmemory "docdesk/pkg/platform/audit/store/memory"
)

type ServiceSuite struct {
	suite.Suite
	ctx      context.Context
	now      time.Time
	store    *memory.InMemoryStore
	audits   *auditmemory.InMemoryStore
	service  *Service
	owner    domain.Principal
	stranger domain.Principal
	seeker   domain.Principal
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	s.store = memory.New()
	s.audits = auditmemory.NewInMemoryStore()
	s.service = New(s.store,
		WithClock(func() time.Time { return s.now }),
		WithAuditPublisher(publisher.NewPublisher(s.audits)),
		WithMetrics(docmetrics.New(prometheus.NewRegistry())),
	)
	s.owner = domain.Principal{ID: domain.UserID(uuid.New()), Role: domain.RoleOwner}
	s.stranger = domain.Principal{ID: domain.UserID(uuid.New()), Role: domain.RoleOwner}
	s.seeker = domain.Principal{ID: domain.UserID(uuid.New()), Role: domain.RoleSeeker}
}

func date(s string) validity.Date {
	d, err := validity.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func validRequest() models.CreateRequest {
	return models.CreateRequest{
		Title:       "Birth certificate",
		Description: "Certified copy issued by the registrar",
		Category:    "civil",
		Issuer:      "Jane Doe",
		Country:     "IN",
		City:        "Mumbai",
		Validity:    validity.NewRanged(date("2024-01-01"), date("2024-12-31")),
	}
}

func (s *ServiceSuite) create(req models.CreateRequest) *models.Document {
	view, err := s.service.Create(s.ctx, s.owner, req)
	s.Require().NoError(err)
	return view.Document
}

func (s *ServiceSuite) TestCreate() {
	s.Run("owner posts a document", func() {
		view, err := s.service.Create(s.ctx, s.owner, validRequest())
		s.Require().NoError(err)
		s.Equal(s.owner.ID, view.Document.OwnerID)
		s.Equal(s.now, view.Document.PostedOn)
		s.Equal(validity.StateActive, view.State)
		s.Equal(validity.KindRanged, view.Document.Validity.Kind())
	})

	s.Run("seeker cannot post", func() {
		_, err := s.service.Create(s.ctx, s.seeker, validRequest())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
		s.Equal("role_mismatch", dErrors.ReasonOf(err))
	})

	s.Run("every invalid field is reported", func() {
		req := models.CreateRequest{Title: "ab", Validity: validity.Spec{}}
		_, err := s.service.Create(s.ctx, s.owner, req)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		fields := map[string]bool{}
		for _, f := range dErrors.FieldsOf(err) {
			fields[f.Field] = true
		}
		for _, want := range []string{"title", "description", "category", "issuer", "location.country", "location.city", "validity"} {
			s.True(fields[want], "missing field error for %s", want)
		}
	})

	s.Run("both validity variants rejected", func() {
		req := validRequest()
		req.Validity.Fixed = &validity.Fixed{DurationLabel: "5 years"}
		_, err := s.service.Create(s.ctx, s.owner, req)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("neither validity variant rejected", func() {
		req := validRequest()
		req.Validity = validity.Spec{}
		_, err := s.service.Create(s.ctx, s.owner, req)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestUpdate() {
	doc := s.create(validRequest())

	s.Run("owner patches title", func() {
		title := "Death certificate"
		view, err := s.service.Update(s.ctx, s.owner, doc.ID, models.Patch{Title: &title})
		s.Require().NoError(err)
		s.Equal(title, view.Document.Title)
		s.Equal(doc.PostedOn, view.Document.PostedOn)
	})

	s.Run("switching variants keeps exactly one", func() {
		fixed := validity.NewFixed("10 years")
		view, err := s.service.Update(s.ctx, s.owner, doc.ID, models.Patch{Validity: &fixed})
		s.Require().NoError(err)
		s.Equal(validity.KindFixed, view.Document.Validity.Kind())
	})

	s.Run("patch producing both variants rejected", func() {
		both := validity.Spec{Fixed: &validity.Fixed{DurationLabel: "1 year"}, Ranged: &validity.Ranged{From: date("2024-01-01"), To: date("2024-02-01")}}
		_, err := s.service.Update(s.ctx, s.owner, doc.ID, models.Patch{Validity: &both})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("another owner is forbidden", func() {
		title := "Hijacked"
		_, err := s.service.Update(s.ctx, s.stranger, doc.ID, models.Patch{Title: &title})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
		s.Equal("not_owner", dErrors.ReasonOf(err))

		stored, err := s.store.FindByID(s.ctx, doc.ID)
		s.Require().NoError(err)
		s.NotEqual("Hijacked", stored.Title)
	})

	s.Run("empty patch rejected", func() {
		_, err := s.service.Update(s.ctx, s.owner, doc.ID, models.Patch{})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("missing document", func() {
		title := "Whatever"
		_, err := s.service.Update(s.ctx, s.owner, domain.NewDocumentID(), models.Patch{Title: &title})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestDelete() {
	doc := s.create(validRequest())

	err := s.service.Delete(s.ctx, s.stranger, doc.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	err = s.service.Delete(s.ctx, s.seeker, doc.ID)
	s.Equal("role_mismatch", dErrors.ReasonOf(err))

	s.Require().NoError(s.service.Delete(s.ctx, s.owner, doc.ID))
	_, err = s.service.Get(s.ctx, s.seeker, doc.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	events, err := s.audits.ListBySubject(s.ctx, doc.ID.String())
	s.Require().NoError(err)
	s.Equal(string(audit.EventDocumentDeleted), events[len(events)-1].Action)
}

func (s *ServiceSuite) TestMarkExpired() {
	req := validRequest()
	req.Validity = validity.NewFixed("5 years")
	doc := s.create(req)

	view, err := s.service.Get(s.ctx, s.seeker, doc.ID)
	s.Require().NoError(err)
	s.Equal(validity.StateActive, view.State)

	_, err = s.service.MarkExpired(s.ctx, s.stranger, doc.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	view, err = s.service.MarkExpired(s.ctx, s.owner, doc.ID)
	s.Require().NoError(err)
	s.Equal(validity.StateExpired, view.State)

	again, err := s.service.MarkExpired(s.ctx, s.owner, doc.ID)
	s.Require().NoError(err)
	s.Equal(view.Document.UpdatedAt, again.Document.UpdatedAt)
}

func (s *ServiceSuite) TestList() {
	active := s.create(validRequest())
	old := validRequest()
	old.Validity = validity.NewRanged(date("2023-01-01"), date("2023-12-31"))
	expired := s.create(old)
	other := validRequest()
	other.Category = "property"
	s.now = s.now.Add(time.Minute)
	property := s.create(other)

	s.Run("expired documents are hidden by default", func() {
		views, err := s.service.List(s.ctx, s.seeker, models.ListFilter{})
		s.Require().NoError(err)
		s.Require().Len(views, 2)
		s.Equal(property.ID, views[0].Document.ID)
		s.Equal(active.ID, views[1].Document.ID)
	})

	s.Run("category filter", func() {
		views, err := s.service.List(s.ctx, s.seeker, models.ListFilter{Category: "civil"})
		s.Require().NoError(err)
		s.Require().Len(views, 1)
		s.Equal(active.ID, views[0].Document.ID)
	})

	s.Run("owner sees own expired postings", func() {
		views, err := s.service.List(s.ctx, s.owner, models.ListFilter{OwnerID: s.owner.ID, IncludeExpired: true})
		s.Require().NoError(err)
		s.Require().Len(views, 3)
		var sawExpired bool
		for _, v := range views {
			if v.Document.ID == expired.ID {
				sawExpired = true
				s.Equal(validity.StateExpired, v.State)
			}
		}
		s.True(sawExpired)
	})

	s.Run("including expired is reserved to the owner", func() {
		_, err := s.service.List(s.ctx, s.seeker, models.ListFilter{OwnerID: s.owner.ID, IncludeExpired: true})
		s.Equal("role_mismatch", dErrors.ReasonOf(err))

		_, err = s.service.List(s.ctx, s.stranger, models.ListFilter{OwnerID: s.owner.ID, IncludeExpired: true})
		s.Equal("not_owner", dErrors.ReasonOf(err))
	})

	s.Run("identical calls return identical results", func() {
		first, err := s.service.List(s.ctx, s.seeker, models.ListFilter{})
		s.Require().NoError(err)
		second, err := s.service.List(s.ctx, s.seeker, models.ListFilter{})
		s.Require().NoError(err)
		s.Equal(first, second)
	})
}

func TestService_StorageFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	auditor := mocks.NewMockAuditPublisher(ctrl)
	svc := New(store, WithAuditPublisher(auditor))

	owner := domain.Principal{ID: domain.UserID(uuid.New()), Role: domain.RoleOwner}
	cause := errors.New("connection refused")

	t.Run("create surfaces storage failure with cause", func(t *testing.T) {
		store.EXPECT().Create(gomock.Any(), gomock.Any()).Return(cause)

		_, err := svc.Create(context.Background(), owner, validRequest())
		if !dErrors.HasCode(err, dErrors.CodeStorageFailure) {
			t.Fatalf("expected storage failure, got %v", err)
		}
		if !errors.Is(err, cause) {
			t.Fatalf("expected cause to be reachable, got %v", err)
		}
	})

	t.Run("list surfaces storage failure", func(t *testing.T) {
		store.EXPECT().List(gomock.Any(), gomock.Any()).Return(nil, cause)

		_, err := svc.List(context.Background(), owner, models.ListFilter{})
		if !dErrors.HasCode(err, dErrors.CodeStorageFailure) {
			t.Fatalf("expected storage failure, got %v", err)
		}
	})

	t.Run("denial is audited and nothing is written", func(t *testing.T) {
		doc := &models.Document{ID: domain.NewDocumentID(), OwnerID: domain.UserID(uuid.New())}
		store.EXPECT().FindByID(gomock.Any(), doc.ID).Return(doc, nil)
		auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e audit.Event) error {
			if e.Action != string(audit.EventAccessDenied) || e.Reason != "not_owner" {
				t.Errorf("unexpected audit event %+v", e)
			}
			return nil
		})

		err := svc.Delete(context.Background(), owner, doc.ID)
		if !dErrors.HasCode(err, dErrors.CodeForbidden) {
			t.Fatalf("expected forbidden, got %v", err)
		}
	})

	t.Run("denial is logged when the audit buffer is full", func(t *testing.T) {
		var logs bytes.Buffer
		full := mocks.NewMockAuditPublisher(ctrl)
		svc := New(mocks.NewMockStore(ctrl), WithAuditPublisher(full), WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
		full.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(publisher.ErrBufferFull)

		seeker := domain.Principal{ID: domain.UserID(uuid.New()), Role: domain.RoleSeeker}
		_, err := svc.Create(context.Background(), seeker, validRequest())
		if !dErrors.HasCode(err, dErrors.CodeForbidden) {
			t.Fatalf("expected forbidden, got %v", err)
		}
		if !strings.Contains(logs.String(), "failed to emit audit event") {
			t.Fatalf("expected dropped denial to be logged, got %q", logs.String())
		}
	})
}
