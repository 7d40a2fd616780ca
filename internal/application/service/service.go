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

	"docdesk/internal/application/lifecycle"
	appmetrics "docdesk/internal/application/metrics"
	"docdesk/internal/application/models"
	"docdesk/internal/attachment"
	"docdesk/internal/authz"
	docmodels "docdesk/internal/document/models"
	"docdesk/internal/notify"
	"docdesk/internal/validity"
	"docdesk/pkg/domain"
	dErrors "docdesk/pkg/domain-errors"
	"docdesk/pkg/platform/audit"
	"docdesk/pkg/platform/sentinel"
	"docdesk/pkg/requestcontext"
)

// Store persists applications. Save is a compare-and-swap on status.
type Store interface {
	Create(ctx context.Context, app *models.Application) error
	Save(ctx context.Context, app *models.Application, expectedPrior models.Status) error
	Delete(ctx context.Context, id domain.ApplicationID) error
	FindByID(ctx context.Context, id domain.ApplicationID) (*models.Application, error)
	List(ctx context.Context, q models.Query) ([]*models.Application, error)
}

// DocumentReader loads the listing an application is filed against.
type DocumentReader interface {
	FindByID(ctx context.Context, id domain.DocumentID) (*docmodels.Document, error)
}

// AttachmentStore holds attachment blobs behind opaque references.
type AttachmentStore interface {
	Put(ctx context.Context, upload attachment.Upload) (string, error)
	Open(ctx context.Context, ref string) (*attachment.Object, error)
	Delete(ctx context.Context, ref string) error
}

// Notifier is told about committed status changes.
type Notifier interface {
	Publish(ctx context.Context, event notify.Event) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// AuditTrail reads back the events recorded for one subject, oldest first.
type AuditTrail interface {
	History(ctx context.Context, subject string) ([]audit.Event, error)
}

// Service is the application registry.
type Service struct {
	store          Store
	documents      DocumentReader
	attachments    AttachmentStore
	lifecycle      *lifecycle.Lifecycle
	notifier       Notifier
	auditPublisher AuditPublisher
	auditTrail     AuditTrail
	metrics        *appmetrics.Metrics
	logger         *slog.Logger
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

func WithAuditTrail(trail AuditTrail) Option {
	return func(s *Service) {
		s.auditTrail = trail
	}
}

func WithNotifier(notifier Notifier) Option {
	return func(s *Service) {
		s.notifier = notifier
	}
}

func WithMetrics(m *appmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock fixes "now" for every operation. Without it the request-scoped time is used.
func WithClock(clock validity.Clock) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

func New(store Store, documents DocumentReader, attachments AttachmentStore, opts ...Option) *Service {
	s := &Service{
		store:       store,
		documents:   documents,
		attachments: attachments,
		logger:      slog.Default(),
		tracer:      otel.Tracer("docdesk/application"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.lifecycle = lifecycle.New(store, s.clockFunc())
	return s
}

// Create files an application against a document on behalf of a seeker.
// The reviewer is bound to the document's owner at this moment and never changes.
//
// Errors, in the order they are checked: Forbidden, NotFound (document),
// DocumentExpired, Validation (identity fields and attachment, all at once),
// StorageFailure.
func (s *Service) Create(ctx context.Context, principal domain.Principal, req models.CreateRequest) (_ *models.Application, err error) {
	ctx, span := s.tracer.Start(ctx, "application.Create", trace.WithAttributes(attribute.String("document.id", req.DocumentID.String())))
	defer func() { endSpan(span, err) }()

	if err := s.authorize(ctx, principal, authz.ActionApplicationCreate, authz.ResourceRef{Applicant: principal.ID}, ""); err != nil {
		return nil, err
	}

	now := s.now(ctx)
	doc, err := s.documents.FindByID(ctx, req.DocumentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "document not found")
		}
		return nil, dErrors.StorageFailure(err, "failed to load document")
	}
	if doc.IsExpired(now) {
		return nil, dErrors.New(dErrors.CodeDocumentExpired, "document is no longer accepting applications")
	}

	content := req.Content
	content.Normalize()
	problems := content.Problems(validity.NewDate(now), req.InputProblems...)
	problems = append(problems, attachment.Problems(req.Attachment)...)
	if len(problems) > 0 {
		return nil, dErrors.Validation("invalid application", problems)
	}

	ref, err := s.attachments.Put(ctx, *req.Attachment)
	if err != nil {
		return nil, dErrors.StorageFailure(err, "failed to store attachment")
	}

	app := models.NewApplication(domain.NewApplicationID(), doc.ID, principal.ID, doc.OwnerID, content, ref, now)
	if err := s.store.Create(ctx, app); err != nil {
		s.removeAttachment(ctx, ref)
		return nil, translateStoreErr(err, "failed to create application")
	}
	span.SetAttributes(attribute.String("application.id", app.ID.String()))

	s.emit(ctx, principal, audit.EventApplicationCreated, app.ID, "")
	s.logger.InfoContext(ctx, "application created",
		"application_id", app.ID.String(),
		"document_id", doc.ID.String(),
		"reviewer_id", app.ReviewerID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	if s.metrics != nil {
		s.metrics.IncrementCreated()
	}
	return app, nil
}

// UpdateContent replaces the applicant-editable content while the
// application is still pending.
//
// Errors: NotFound, Forbidden, InvalidState (already decided, including a
// decision that lands concurrently), Validation, StorageFailure.
func (s *Service) UpdateContent(ctx context.Context, principal domain.Principal, id domain.ApplicationID, update models.ContentUpdate) (_ *models.Application, err error) {
	ctx, span := s.tracer.Start(ctx, "application.UpdateContent", trace.WithAttributes(attribute.String("application.id", id.String())))
	defer func() { endSpan(span, err) }()

	app, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	ref := authz.ResourceRef{Applicant: app.ApplicantID}
	if err := s.authorize(ctx, principal, authz.ActionApplicationUpdateContent, ref, id.String()); err != nil {
		return nil, err
	}
	if !app.CanUpdateContent() {
		return nil, dErrors.New(dErrors.CodeInvalidState, "application is already "+app.Status.String())
	}

	now := s.now(ctx)
	content := update.Content
	content.Normalize()
	if problems := content.Problems(validity.NewDate(now), update.InputProblems...); len(problems) > 0 {
		return nil, dErrors.Validation("invalid application", problems)
	}

	updated := *app
	updated.ApplyContent(content, now)
	if err := s.store.Save(ctx, &updated, models.StatusPending); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeInvalidState, "application was decided while being edited")
		}
		return nil, translateStoreErr(err, "failed to update application")
	}

	s.emit(ctx, principal, audit.EventApplicationUpdated, id, "")
	return &updated, nil
}

// Delete withdraws an application at any status. The attachment is removed
// best-effort afterwards.
func (s *Service) Delete(ctx context.Context, principal domain.Principal, id domain.ApplicationID) (err error) {
	ctx, span := s.tracer.Start(ctx, "application.Delete", trace.WithAttributes(attribute.String("application.id", id.String())))
	defer func() { endSpan(span, err) }()

	app, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	ref := authz.ResourceRef{Applicant: app.ApplicantID}
	if err := s.authorize(ctx, principal, authz.ActionApplicationDelete, ref, id.String()); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return translateStoreErr(err, "failed to delete application")
	}
	s.removeAttachment(ctx, app.AttachmentRef)

	s.emit(ctx, principal, audit.EventApplicationDeleted, id, app.Status.String())
	s.logger.InfoContext(ctx, "application deleted",
		"application_id", id.String(),
		"status", app.Status.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	if s.metrics != nil {
		s.metrics.IncrementDeleted()
	}
	return nil
}

// ListFor returns the applications the principal is party to: those they
// filed as a seeker, or those bound to them as a reviewer. Owners are refused.
func (s *Service) ListFor(ctx context.Context, principal domain.Principal, filter models.ListFilter) (_ []*models.Application, err error) {
	ctx, span := s.tracer.Start(ctx, "application.ListFor")
	defer func() { endSpan(span, err) }()

	q := models.Query{Statuses: filter.Statuses}
	action := authz.ActionApplicationListAsReviewer
	if principal.Role == domain.RoleSeeker {
		action = authz.ActionApplicationListAsApplicant
		q.ApplicantID = principal.ID
	} else {
		q.ReviewerID = principal.ID
	}
	if err := s.authorize(ctx, principal, action, authz.ResourceRef{}, ""); err != nil {
		return nil, err
	}

	apps, err := s.store.List(ctx, q)
	if err != nil {
		return nil, translateStoreErr(err, "failed to list applications")
	}
	span.SetAttributes(attribute.Int("application.count", len(apps)))
	return apps, nil
}

// TransitionStatus records a reviewer's decision. After the state machine
// commits, the notifier and the audit trail are told; their failures are
// logged and never undo the decision.
func (s *Service) TransitionStatus(ctx context.Context, principal domain.Principal, id domain.ApplicationID, status models.Status) (_ *models.Application, err error) {
	ctx, span := s.tracer.Start(ctx, "application.TransitionStatus", trace.WithAttributes(
		attribute.String("application.id", id.String()),
		attribute.String("application.target_status", status.String()),
	))
	defer func() { endSpan(span, err) }()

	app, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	updated, err := s.lifecycle.Transition(ctx, app, status, principal)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeForbidden) {
			s.recordDenial(ctx, principal, authz.ActionApplicationUpdateStatus, dErrors.ReasonOf(err), id.String())
		}
		return nil, err
	}

	s.publish(ctx, app.Status, updated)
	s.emit(ctx, principal, audit.EventApplicationDecision, id, updated.Status.String())
	s.logger.InfoContext(ctx, "application decided",
		"application_id", id.String(),
		"status", updated.Status.String(),
		"reviewer_id", principal.ID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	if s.metrics != nil {
		s.metrics.IncrementDecision(updated.Status.String())
	}
	return updated, nil
}

// Get returns an application to its applicant or its bound reviewer.
func (s *Service) Get(ctx context.Context, principal domain.Principal, id domain.ApplicationID) (_ *models.Application, err error) {
	ctx, span := s.tracer.Start(ctx, "application.Get", trace.WithAttributes(attribute.String("application.id", id.String())))
	defer func() { endSpan(span, err) }()

	app, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	ref := authz.ResourceRef{Applicant: app.ApplicantID, Reviewer: app.ReviewerID}
	if err := s.authorize(ctx, principal, authz.ActionApplicationView, ref, id.String()); err != nil {
		return nil, err
	}
	return app, nil
}

// History returns the audit trail of an application visible to principal,
// oldest first. Denied attempts by other users are left out.
//
// Errors: NotFound, Forbidden, StorageFailure.
func (s *Service) History(ctx context.Context, principal domain.Principal, id domain.ApplicationID) (_ []audit.Event, err error) {
	ctx, span := s.tracer.Start(ctx, "application.History", trace.WithAttributes(attribute.String("application.id", id.String())))
	defer func() { endSpan(span, err) }()

	if _, err := s.Get(ctx, principal, id); err != nil {
		return nil, err
	}
	if s.auditTrail == nil {
		return []audit.Event{}, nil
	}
	events, err := s.auditTrail.History(ctx, id.String())
	if err != nil {
		return nil, dErrors.StorageFailure(err, "failed to read application history")
	}
	out := make([]audit.Event, 0, len(events))
	for _, e := range events {
		if e.Action == string(audit.EventAccessDenied) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// OpenAttachment streams the attachment of an application visible to principal.
// The caller closes the returned body.
func (s *Service) OpenAttachment(ctx context.Context, principal domain.Principal, id domain.ApplicationID) (*attachment.Object, error) {
	app, err := s.Get(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	obj, err := s.attachments.Open(ctx, app.AttachmentRef)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "attachment not found")
		}
		return nil, dErrors.StorageFailure(err, "failed to open attachment")
	}
	return obj, nil
}

func (s *Service) load(ctx context.Context, id domain.ApplicationID) (*models.Application, error) {
	app, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, translateStoreErr(err, "failed to load application")
	}
	return app, nil
}

func (s *Service) authorize(ctx context.Context, principal domain.Principal, action authz.Action, ref authz.ResourceRef, subject string) error {
	decision := authz.Authorize(principal, action, ref)
	if decision.Allowed {
		return nil
	}
	s.recordDenial(ctx, principal, action, string(decision.Reason), subject)
	return dErrors.Forbidden(string(decision.Reason), "not permitted to "+string(action))
}

func (s *Service) recordDenial(ctx context.Context, principal domain.Principal, action authz.Action, reason, subject string) {
	if s.metrics != nil {
		s.metrics.IncrementDenied(string(action), reason)
	}
	if s.auditPublisher != nil {
		if err := s.auditPublisher.Emit(ctx, audit.Event{
			UserID:   principal.ID,
			Role:     principal.Role,
			Subject:  subject,
			Action:   string(audit.EventAccessDenied),
			Decision: string(action),
			Reason:   reason,
		}); err != nil {
			s.logger.WarnContext(ctx, "failed to emit audit event", "action", string(audit.EventAccessDenied), "error", err)
		}
	}
}

func (s *Service) publish(ctx context.Context, from models.Status, app *models.Application) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.Publish(ctx, notify.Event{
		Type:          notify.EventStatusChanged,
		ApplicationID: app.ID.String(),
		DocumentID:    app.DocumentID.String(),
		ApplicantID:   app.ApplicantID.String(),
		ReviewerID:    app.ReviewerID.String(),
		FromStatus:    from.String(),
		Status:        app.Status.String(),
		OccurredAt:    app.UpdatedAt,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to publish status notification",
			"application_id", app.ID.String(),
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		if s.metrics != nil {
			s.metrics.IncrementNotifyFailure()
		}
	}
}

func (s *Service) emit(ctx context.Context, principal domain.Principal, event audit.AuditEvent, id domain.ApplicationID, decision string) {
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, audit.Event{
		UserID:   principal.ID,
		Role:     principal.Role,
		Subject:  id.String(),
		Action:   string(event),
		Decision: decision,
	}); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "action", string(event), "error", err)
	}
}

func (s *Service) removeAttachment(ctx context.Context, ref string) {
	if ref == "" {
		return
	}
	err := s.attachments.Delete(ctx, ref)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to remove attachment",
			"attachment_ref", ref,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	if s.metrics != nil {
		s.metrics.ObserveCleanup(err)
	}
}

func (s *Service) clockFunc() validity.Clock {
	if s.clock != nil {
		return s.clock
	}
	return time.Now
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
		return dErrors.New(dErrors.CodeNotFound, "application not found")
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.Wrap(err, dErrors.CodeConflict, "application already exists")
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
