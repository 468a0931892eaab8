package inspection

import (
	"context"
	"net/http"

	"github.com/frahmantamala/hse-inspection/internal/transport"
	"github.com/frahmantamala/hse-inspection/internal/user"
	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	ListTemplates(ctx context.Context) ([]*FormTemplate, error)
	SaveTemplate(ctx context.Context, actor *user.User, id string, req SaveTemplateRequest) (*FormTemplate, error)
	ListInspections(ctx context.Context, actor *user.User) ([]*Inspection, error)
	CreateInspection(ctx context.Context, actor *user.User, req CreateInspectionRequest) (*Inspection, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
	}
}

func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request, _ *user.User) {
	items, err := h.Service.ListTemplates(r.Context())
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, TemplatesResponse{Templates: items})
}

func (h *Handler) SaveTemplate(w http.ResponseWriter, r *http.Request, actor *user.User) {
	var req SaveTemplateRequest
	if err := h.DecodeJSON(w, r, &req); err != nil {
		h.WriteError(w, r, err)
		return
	}
	t, err := h.Service.SaveTemplate(r.Context(), actor, chi.URLParam(r, "id"), req)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, t)
}

func (h *Handler) ListInspections(w http.ResponseWriter, r *http.Request, actor *user.User) {
	items, err := h.Service.ListInspections(r.Context(), actor)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, InspectionsResponse{Inspections: items})
}

func (h *Handler) CreateInspection(w http.ResponseWriter, r *http.Request, actor *user.User) {
	var req CreateInspectionRequest
	if err := h.DecodeJSON(w, r, &req); err != nil {
		h.WriteError(w, r, err)
		return
	}
	in, err := h.Service.CreateInspection(r.Context(), actor, req)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, in)
}
