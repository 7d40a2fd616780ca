package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"docdesk/internal/document/models"
	"docdesk/pkg/domain"
	dErrors "docdesk/pkg/domain-errors"
	"docdesk/pkg/platform/httputil"
	"docdesk/pkg/requestcontext"
)

// Service is the document registry as seen by the HTTP layer.
type Service interface {
	Create(ctx context.Context, principal domain.Principal, req models.CreateRequest) (*models.View, error)
	Update(ctx context.Context, principal domain.Principal, id domain.DocumentID, patch models.Patch) (*models.View, error)
	Delete(ctx context.Context, principal domain.Principal, id domain.DocumentID) error
	MarkExpired(ctx context.Context, principal domain.Principal, id domain.DocumentID) (*models.View, error)
	Get(ctx context.Context, principal domain.Principal, id domain.DocumentID) (*models.View, error)
	List(ctx context.Context, principal domain.Principal, filter models.ListFilter) ([]models.View, error)
}

// Handler exposes the document registry over HTTP.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the document routes. Callers apply authentication.
func (h *Handler) Register(r chi.Router) {
	r.Route("/documents", func(r chi.Router) {
		r.Post("/", h.HandleCreate)
		r.Get("/", h.HandleList)
		r.Get("/mine", h.HandleListMine)
		r.Get("/{id}", h.HandleGet)
		r.Patch("/{id}", h.HandleUpdate)
		r.Delete("/{id}", h.HandleDelete)
		r.Post("/{id}/expire", h.HandleMarkExpired)
	})
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req CreateDocumentRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(ctx, w, err)
		return
	}
	req.Normalize()

	view, err := h.service.Create(ctx, principal, req.ToModel())
	if err != nil {
		h.fail(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toDocumentResponse(*view))
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, err := domain.ParseDocumentID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(ctx, w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req PatchDocumentRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(ctx, w, err)
		return
	}

	view, err := h.service.Update(ctx, principal, id, req.ToModel())
	if err != nil {
		h.fail(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDocumentResponse(*view))
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, err := domain.ParseDocumentID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(ctx, w, err)
		return
	}
	if err := h.service.Delete(ctx, principal, id); err != nil {
		h.fail(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleMarkExpired(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, err := domain.ParseDocumentID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(ctx, w, err)
		return
	}
	view, err := h.service.MarkExpired(ctx, principal, id)
	if err != nil {
		h.fail(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDocumentResponse(*view))
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, err := domain.ParseDocumentID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(ctx, w, err)
		return
	}
	view, err := h.service.Get(ctx, principal, id)
	if err != nil {
		h.fail(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDocumentResponse(*view))
}

// HandleList serves GET /documents?category=&country=&city=&owner=&include_expired=.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter := models.ListFilter{
		Category: q.Get("category"),
		Country:  q.Get("country"),
		City:     q.Get("city"),
	}
	if owner := q.Get("owner"); owner != "" {
		ownerID, err := domain.ParseUserID(owner)
		if err != nil {
			h.fail(ctx, w, err)
			return
		}
		filter.OwnerID = ownerID
	}
	if raw := q.Get("include_expired"); raw != "" {
		include, err := strconv.ParseBool(raw)
		if err != nil {
			h.fail(ctx, w, dErrors.New(dErrors.CodeBadRequest, "include_expired must be a boolean"))
			return
		}
		filter.IncludeExpired = include
	}

	h.list(w, r, principal, filter)
}

// HandleListMine lists the caller's own postings, expired ones included.
func (h *Handler) HandleListMine(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	h.list(w, r, principal, models.ListFilter{OwnerID: principal.ID, IncludeExpired: true})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, principal domain.Principal, filter models.ListFilter) {
	views, err := h.service.List(r.Context(), principal, filter)
	if err != nil {
		h.fail(r.Context(), w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toListResponse(views))
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
		h.logger.ErrorContext(ctx, "document request failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	httputil.WriteError(w, err)
}
