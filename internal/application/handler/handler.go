package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"docdesk/internal/application/models"
	"docdesk/internal/attachment"
	"docdesk/pkg/domain"
	dErrors "docdesk/pkg/domain-errors"
	audit "docdesk/pkg/platform/audit"
	"docdesk/pkg/platform/httputil"
	"docdesk/pkg/requestcontext"
)

// Service is the application registry as seen by the HTTP layer.
type Service interface {
	Create(ctx context.Context, principal domain.Principal, req models.CreateRequest) (*models.Application, error)
	UpdateContent(ctx context.Context, principal domain.Principal, id domain.ApplicationID, update models.ContentUpdate) (*models.Application, error)
	Delete(ctx context.Context, principal domain.Principal, id domain.ApplicationID) error
	ListFor(ctx context.Context, principal domain.Principal, filter models.ListFilter) ([]*models.Application, error)
	TransitionStatus(ctx context.Context, principal domain.Principal, id domain.ApplicationID, status models.Status) (*models.Application, error)
	Get(ctx context.Context, principal domain.Principal, id domain.ApplicationID) (*models.Application, error)
	History(ctx context.Context, principal domain.Principal, id domain.ApplicationID) ([]audit.Event, error)
	OpenAttachment(ctx context.Context, principal domain.Principal, id domain.ApplicationID) (*attachment.Object, error)
}

// Handler exposes the application registry over HTTP.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the application routes. Callers apply authentication.
func (h *Handler) Register(r chi.Router) {
	r.Route("/applications", func(r chi.Router) {
		r.Post("/", h.HandleCreate)
		r.Get("/", h.HandleList)
		r.Get("/{id}", h.HandleGet)
		r.Put("/{id}", h.HandleUpdateContent)
		r.Delete("/{id}", h.HandleDelete)
		r.Put("/{id}/status", h.HandleUpdateStatus)
		r.Get("/{id}/attachment", h.HandleAttachment)
		r.Get("/{id}/history", h.HandleHistory)
	})
}

// HandleCreate serves a multipart POST /applications with the identity
// fields, document_id and an "attachment" file part.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	req, file, err := parseCreateForm(r)
	if err != nil {
		h.fail(ctx, w, err)
		return
	}
	if file != nil {
		defer file.Close()
	}
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}

	app, err := h.service.Create(ctx, principal, req)
	if err != nil {
		h.fail(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toApplicationResponse(app))
}

// HandleList serves GET /applications?status=. Seekers see what they filed,
// reviewers what is bound to them.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	statuses, err := parseStatuses(r.URL.Query()["status"])
	if err != nil {
		h.fail(ctx, w, err)
		return
	}

	apps, err := h.service.ListFor(ctx, principal, models.ListFilter{Statuses: statuses})
	if err != nil {
		h.fail(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toListResponse(apps))
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, id, ok := h.target(w, r)
	if !ok {
		return
	}
	app, err := h.service.Get(ctx, principal, id)
	if err != nil {
		h.fail(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toApplicationResponse(app))
}

// HandleHistory lists the recorded changes of an application for its
// applicant or bound reviewer.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, id, ok := h.target(w, r)
	if !ok {
		return
	}
	events, err := h.service.History(ctx, principal, id)
	if err != nil {
		h.fail(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toHistoryResponse(id, events))
}

// HandleUpdateContent replaces the content of a pending application.
func (h *Handler) HandleUpdateContent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, id, ok := h.target(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req ContentRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(ctx, w, err)
		return
	}

	content, problems := req.ToModel()
	app, err := h.service.UpdateContent(ctx, principal, id, models.ContentUpdate{Content: content, InputProblems: problems})
	if err != nil {
		h.fail(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toApplicationResponse(app))
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, id, ok := h.target(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req UpdateStatusRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(ctx, w, err)
		return
	}
	status, err := models.ParseStatus(req.Status)
	if err != nil {
		h.fail(ctx, w, err)
		return
	}

	app, err := h.service.TransitionStatus(ctx, principal, id, status)
	if err != nil {
		h.fail(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toApplicationResponse(app))
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, id, ok := h.target(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(ctx, principal, id); err != nil {
		h.fail(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleAttachment streams the stored attachment to the applicant or the bound reviewer.
func (h *Handler) HandleAttachment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, id, ok := h.target(w, r)
	if !ok {
		return
	}
	obj, err := h.service.OpenAttachment(ctx, principal, id)
	if err != nil {
		h.fail(ctx, w, err)
		return
	}
	defer obj.Body.Close()

	w.Header().Set("Content-Type", obj.ContentType)
	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	w.Header().Set("Cache-Control", "private, no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, obj.Body); err != nil {
		h.logger.WarnContext(ctx, "attachment stream interrupted",
			"application_id", id.String(),
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}

func (h *Handler) target(w http.ResponseWriter, r *http.Request) (domain.Principal, domain.ApplicationID, bool) {
	principal, ok := h.principal(w, r)
	if !ok {
		return domain.Principal{}, domain.ApplicationID{}, false
	}
	id, err := domain.ParseApplicationID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(r.Context(), w, err)
		return domain.Principal{}, domain.ApplicationID{}, false
	}
	return principal, id, true
}

func (h *Handler) principal(w http.ResponseWriter, r *http.Request) (domain.Principal, bool) {
	principal, ok := requestcontext.Principal(r.Context())
	if !ok || principal.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return domain.Principal{}, false
	}
	return principal, true
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, err error) {
	if httputil.StatusFor(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, "application request failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	httputil.WriteError(w, err)
}
