package user

import (
	"context"
	"net/http"
	"strconv"

	"github.com/frahmantamala/hse-inspection/internal"
	"github.com/frahmantamala/hse-inspection/internal/permission"
	"github.com/frahmantamala/hse-inspection/internal/transport"
	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	Create(ctx context.Context, actor *User, req CreateUserRequest) (*User, string, error)
	List(ctx context.Context, f ListFilter) ([]*User, error)
	Get(ctx context.Context, id string) (*User, error)
	Update(ctx context.Context, actor *User, id string, req UpdateUserRequest) (*User, error)
	Deactivate(ctx context.Context, actor *User, id string) (*User, error)
	ResetPIN(ctx context.Context, actor *User, id string, req ResetPINRequest) (string, error)
}

// Handler methods take the authenticated actor resolved by the auth guard.
type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(base *transport.BaseHandler, svc ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: base,
		Service:     svc,
	}
}

// ListUsers handles GET /api/users?role=&active=
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request, _ *User) {
	var f ListFilter
	if role := r.URL.Query().Get("role"); role != "" {
		parsed, err := permission.ParseRole(role)
		if err != nil {
			h.WriteError(w, r, invalidRole())
			return
		}
		f.Role = parsed
	}
	if active := r.URL.Query().Get("active"); active != "" {
		b, err := strconv.ParseBool(active)
		if err != nil {
			h.WriteError(w, r, internal.NewValidationFieldError("active", "active must be true or false", internal.ErrCodeValidationFailed))
			return
		}
		f.Active = &b
	}

	users, err := h.Service.List(r.Context(), f)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, UsersResponse{Users: users})
}

// CreateUser handles POST /api/users
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request, actor *User) {
	var req CreateUserRequest
	if err := h.DecodeJSON(w, r, &req); err != nil {
		h.WriteError(w, r, err)
		return
	}

	u, plain, err := h.Service.Create(r.Context(), actor, req)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, CreateUserResponse{User: u, PIN: plain})
}

// GetUser handles GET /api/users/{id}
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request, _ *User) {
	u, err := h.Service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, u)
}

// UpdateUser handles PATCH /api/users/{id}
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request, actor *User) {
	var req UpdateUserRequest
	if err := h.DecodeJSON(w, r, &req); err != nil {
		h.WriteError(w, r, err)
		return
	}
	if req.Empty() {
		h.WriteError(w, r, internal.NewValidationError("no fields to update", internal.ErrCodeValidationFailed))
		return
	}

	u, err := h.Service.Update(r.Context(), actor, chi.URLParam(r, "id"), req)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, u)
}

// DeactivateUser handles DELETE /api/users/{id}. Users are never removed.
func (h *Handler) DeactivateUser(w http.ResponseWriter, r *http.Request, actor *User) {
	u, err := h.Service.Deactivate(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, u)
}

// ResetPIN handles POST /api/users/{id}/reset-pin
func (h *Handler) ResetPIN(w http.ResponseWriter, r *http.Request, actor *User) {
	var req ResetPINRequest
	if r.ContentLength != 0 {
		if err := h.DecodeJSON(w, r, &req); err != nil {
			h.WriteError(w, r, err)
			return
		}
	}

	id := chi.URLParam(r, "id")
	plain, err := h.Service.ResetPIN(r.Context(), actor, id, req)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, ResetPINResponse{UserID: id, PIN: plain})
}

// PermissionTemplates handles GET /api/permissions/templates
func (h *Handler) PermissionTemplates(w http.ResponseWriter, _ *http.Request, _ *User) {
	h.WriteJSON(w, http.StatusOK, TemplatesResponse{
		Templates: permission.Templates(),
		Legacy: LegacyMappingResponse{
			Version: permission.LegacyMappingVersion,
			Mapping: permission.LegacyMapping,
		},
	})
}
