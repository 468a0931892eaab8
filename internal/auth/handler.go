package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/frahmantamala/hse-inspection/internal/transport"
	"github.com/frahmantamala/hse-inspection/internal/user"
)

type ServiceAPI interface {
	Login(ctx context.Context, dto LoginDTO, meta ClientMeta) (*LoginResult, error)
	Logout(ctx context.Context, token string, meta ClientMeta)
}

type Handler struct {
	*transport.BaseHandler
	Service      ServiceAPI
	CookieTTL    time.Duration
	SecureCookie bool
}

func NewHandler(base *transport.BaseHandler, svc ServiceAPI, cookieTTL time.Duration, secureCookie bool) *Handler {
	if cookieTTL <= 0 {
		cookieTTL = DefaultSessionTTL
	}
	return &Handler{
		BaseHandler:  base,
		Service:      svc,
		CookieTTL:    cookieTTL,
		SecureCookie: secureCookie,
	}
}

func clientMeta(r *http.Request) ClientMeta {
	return ClientMeta{
		IP:        transport.ClientIP(r),
		UserAgent: r.UserAgent(),
		Path:      r.URL.Path,
	}
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var dto LoginDTO
	if err := h.DecodeJSON(w, r, &dto); err != nil {
		h.WriteError(w, r, err)
		return
	}

	res, err := h.Service.Login(r.Context(), dto, clientMeta(r))
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	transport.SetAuthCookie(w, res.Token, h.CookieTTL, h.SecureCookie)
	h.WriteJSON(w, http.StatusOK, LoginResponse{User: res.User, ExpiresAt: res.ExpiresAt})
}

// Logout always clears the cookie, even for unknown or expired tokens.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.Service.Logout(r.Context(), transport.ExtractToken(r), clientMeta(r))
	transport.ClearAuthCookie(w, h.SecureCookie)
	w.WriteHeader(http.StatusNoContent)
}

// Me is registered behind the guard with no role or permission requirement.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request, u *user.User) {
	h.WriteJSON(w, http.StatusOK, MeResponse{User: u})
}
