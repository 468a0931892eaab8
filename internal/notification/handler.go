package notification

import (
	"context"
	"net/http"

	"github.com/frahmantamala/hse-inspection/internal/transport"
	"github.com/frahmantamala/hse-inspection/internal/user"
	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	List(ctx context.Context) ([]*Schedule, error)
	Create(ctx context.Context, actor *user.User, req CreateScheduleRequest) (*Schedule, error)
	Delete(ctx context.Context, actor *user.User, id string) error
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

func (h *Handler) ListSchedules(w http.ResponseWriter, r *http.Request, _ *user.User) {
	items, err := h.Service.List(r.Context())
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, SchedulesResponse{Schedules: items})
}

func (h *Handler) CreateSchedule(w http.ResponseWriter, r *http.Request, actor *user.User) {
	var req CreateScheduleRequest
	if err := h.DecodeJSON(w, r, &req); err != nil {
		h.WriteError(w, r, err)
		return
	}
	sched, err := h.Service.Create(r.Context(), actor, req)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, sched)
}

func (h *Handler) DeleteSchedule(w http.ResponseWriter, r *http.Request, actor *user.User) {
	if err := h.Service.Delete(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		h.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
