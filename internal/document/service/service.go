// Package service implements the document registry: posting, editing, removing
// and listing documents on behalf of an authenticated principal.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"docdesk/internal/authz"
	docmetrics "docdesk/internal/document/metrics"
	"docdesk/internal/document/models"
	"docdesk/internal/validity"
	"docdesk/pkg/domain"
	dErrors "docdesk/pkg/domain-errors"
	"docdesk/pkg/platform/audit"
	"docdesk/pkg/platform/sentinel"
	"docdesk/pkg/requestcontext"
)

// Store persists documents. Implementations return sentinel.ErrNotFound for
// missing documents.
type Store interface {
	Create(ctx context.Context, doc *models.Document) error
	Update(ctx context.Context, doc *models.Document) error
	Delete(ctx context.Context, id domain.DocumentID) error
	FindByID(ctx context.Context, id domain.DocumentID) (*models.Document, error)
	List(ctx context.Context, q models.Query) ([]*models.Document, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service orchestrates document management.
type Service struct {
	store          Store
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *docmetrics.Metrics
	clock          validity.Clock
	tracer         trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *docmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock pins the time source. Without it the request time from
// requestcontext is used.
func WithClock(clock validity.Clock) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: slog.Default(),
		tracer: otel.Tracer("docdesk/document"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create posts a new document owned by the principal.
//
// Errors: Forbidden (role_mismatch) for non-owners, Validation listing every
// invalid field including req.InputProblems, StorageFailure.
func (s *Service) Create(ctx context.Context, principal domain.Principal, req models.CreateRequest) (_ *models.View, err error) {
	ctx, span := s.tracer.Start(ctx, "document.Create")
	defer func() { endSpan(span, err) }()

	if err := s.authorize(ctx, principal, authz.ActionDocumentCreate, authz.ResourceRef{Owner: principal.ID}, ""); err != nil {
		return nil, err
	}

	now := s.now(ctx)
	doc := models.NewDocument(domain.NewDocumentID(), principal.ID, req, now)
	if err := doc.Validate(req.InputProblems...); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, doc); err != nil {
		return nil, translateStoreErr(err, "failed to create document")
	}
	span.SetAttributes(attribute.String("document.id", doc.ID.String()))

	s.emit(ctx, principal, audit.EventDocumentCreated, doc.ID)
	s.logger.InfoContext(ctx, "document created",
		"document_id", doc.ID.String(),
		"owner_id", principal.ID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	if s.metrics != nil {
		s.metrics.IncrementCreated()
	}

	view := models.NewView(doc, now)
	return &view, nil
}

// Update applies a partial patch and re-validates the whole document.
func (s *Service) Update(ctx context.Context, principal domain.Principal, id domain.DocumentID, patch models.Patch) (_ *models.View, err error) {
	ctx, span := s.tracer.Start(ctx, "document.Update", trace.WithAttributes(attribute.String("document.id", id.String())))
	defer func() { endSpan(span, err) }()

	doc, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, principal, authz.ActionDocumentUpdate, authz.ResourceRef{Owner: doc.OwnerID}, id.String()); err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return nil, dErrors.Validation("invalid document", []dErrors.FieldError{{Field: "patch", Message: "at least one field must be provided"}})
	}

	now := s.now(ctx)
	doc.ApplyPatch(patch, now)
	if err := doc.Validate(patch.InputProblems...); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, doc); err != nil {
		return nil, translateStoreErr(err, "failed to update document")
	}

	s.emit(ctx, principal, audit.EventDocumentUpdated, id)
	view := models.NewView(doc, now)
	return &view, nil
}

// Delete removes a document. Applications filed against it are kept.
func (s *Service) Delete(ctx context.Context, principal domain.Principal, id domain.DocumentID) (err error) {
	ctx, span := s.tracer.Start(ctx, "document.Delete", trace.WithAttributes(attribute.String("document.id", id.String())))
	defer func() { endSpan(span, err) }()

	doc, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, principal, authz.ActionDocumentDelete, authz.ResourceRef{Owner: doc.OwnerID}, id.String()); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return translateStoreErr(err, "failed to delete document")
	}

	s.emit(ctx, principal, audit.EventDocumentDeleted, id)
	s.logger.InfoContext(ctx, "document deleted",
		"document_id", id.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	if s.metrics != nil {
		s.metrics.IncrementDeleted()
	}
	return nil
}

// MarkExpired sets the manual expiry mark. Marking an already expired document is a no-op.
func (s *Service) MarkExpired(ctx context.Context, principal domain.Principal, id domain.DocumentID) (_ *models.View, err error) {
	ctx, span := s.tracer.Start(ctx, "document.MarkExpired", trace.WithAttributes(attribute.String("document.id", id.String())))
	defer func() { endSpan(span, err) }()

	doc, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, principal, authz.ActionDocumentUpdate, authz.ResourceRef{Owner: doc.OwnerID}, id.String()); err != nil {
		return nil, err
	}

	now := s.now(ctx)
	if !doc.MarkedExpired {
		doc.ApplyMarkExpired(now)
		if err := s.store.Update(ctx, doc); err != nil {
			return nil, translateStoreErr(err, "failed to expire document")
		}
		s.emit(ctx, principal, audit.EventDocumentExpired, id)
		if s.metrics != nil {
			s.metrics.IncrementExpired()
		}
	}

	view := models.NewView(doc, now)
	return &view, nil
}

// Get returns a document with its current state. Expired documents are still
// returned; callers decide how to present them.
func (s *Service) Get(ctx context.Context, principal domain.Principal, id domain.DocumentID) (_ *models.View, err error) {
	ctx, span := s.tracer.Start(ctx, "document.Get", trace.WithAttributes(attribute.String("document.id", id.String())))
	defer func() { endSpan(span, err) }()

	doc, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, principal, authz.ActionDocumentView, authz.ResourceRef{Owner: doc.OwnerID}, id.String()); err != nil {
		return nil, err
	}
	view := models.NewView(doc, s.now(ctx))
	return &view, nil
}

// List returns documents matching filter, newest first. Expired documents are
// excluded unless IncludeExpired is set, which only an owner listing their
// own postings may do.
func (s *Service) List(ctx context.Context, principal domain.Principal, filter models.ListFilter) (_ []models.View, err error) {
	ctx, span := s.tracer.Start(ctx, "document.List")
	defer func() { endSpan(span, err) }()

	if err := s.authorize(ctx, principal, authz.ActionDocumentList, authz.ResourceRef{}, ""); err != nil {
		return nil, err
	}
	now := s.now(ctx)
	q := models.Query{
		Category: filter.Category,
		Country:  filter.Country,
		City:     filter.City,
		OwnerID:  filter.OwnerID,
	}
	if filter.IncludeExpired {
		// Seeing expired postings is the owner's view of their own listings.
		decision := authz.Authorize(principal, authz.ActionDocumentUpdate, authz.ResourceRef{Owner: filter.OwnerID})
		if !decision.Allowed {
			return nil, s.deny(ctx, principal, authz.ActionDocumentList, decision.Reason, "")
		}
	} else {
		today := validity.NewDate(now)
		q.ActiveOn = &today
	}

	if s.metrics != nil {
		defer s.metrics.ObserveList(time.Now())
	}
	docs, err := s.store.List(ctx, q)
	if err != nil {
		return nil, translateStoreErr(err, "failed to list documents")
	}

	views := make([]models.View, 0, len(docs))
	for _, d := range docs {
		views = append(views, models.NewView(d, now))
	}
	span.SetAttributes(attribute.Int("document.count", len(views)))
	return views, nil
}

func (s *Service) load(ctx context.Context, id domain.DocumentID) (*models.Document, error) {
	doc, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, translateStoreErr(err, "failed to load document")
	}
	return doc, nil
}

func (s *Service) authorize(ctx context.Context, principal domain.Principal, action authz.Action, ref authz.ResourceRef, subject string) error {
	decision := authz.Authorize(principal, action, ref)
	if decision.Allowed {
		return nil
	}
	return s.deny(ctx, principal, action, decision.Reason, subject)
}

func (s *Service) deny(ctx context.Context, principal domain.Principal, action authz.Action, reason authz.Reason, subject string) error {
	if s.metrics != nil {
		s.metrics.IncrementDenied(string(action), string(reason))
	}
	if s.auditPublisher != nil {
		if err := s.auditPublisher.Emit(ctx, audit.Event{
			UserID:   principal.ID,
			Role:     principal.Role,
			Subject:  subject,
			Action:   string(audit.EventAccessDenied),
			Decision: string(action),
			Reason:   string(reason),
		}); err != nil {
			s.logger.WarnContext(ctx, "failed to emit audit event", "action", string(audit.EventAccessDenied), "error", err)
		}
	}
	return dErrors.Forbidden(string(reason), "not permitted to "+string(action))
}

func (s *Service) emit(ctx context.Context, principal domain.Principal, event audit.AuditEvent, id domain.DocumentID) {
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, audit.Event{
		UserID:  principal.ID,
		Role:    principal.Role,
		Subject: id.String(),
		Action:  string(event),
	}); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "action", string(event), "error", err)
	}
}

func (s *Service) now(ctx context.Context) time.Time {
	if s.clock != nil {
		return s.clock()
	}
	return requestcontext.Now(ctx)
}

func translateStoreErr(err error, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "document not found")
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.Wrap(err, dErrors.CodeConflict, "document already exists")
	default:
		return dErrors.StorageFailure(err, msg)
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.SetAttributes(attribute.String("error.code", string(dErrors.CodeOf(err))))
		if dErrors.HasCode(err, dErrors.CodeStorageFailure) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.End()
}
