package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/frahmantamala/hse-inspection/internal"
	"github.com/frahmantamala/hse-inspection/internal/audit"
	"github.com/frahmantamala/hse-inspection/internal/permission"
	"github.com/frahmantamala/hse-inspection/internal/transport"
	"github.com/frahmantamala/hse-inspection/internal/user"
)

// HandlerFunc is a protected handler. It only runs once the guard has
// resolved and authorized the caller.
type HandlerFunc func(w http.ResponseWriter, r *http.Request, u *user.User)

// Options declares what a protected operation requires. Empty lists impose no
// constraint. Permissions match if ANY is granted, or ALL with RequireAll.
type Options struct {
	RequiredRoles       []permission.Role
	RequiredPermissions []permission.Permission
	RequireAll          bool
}

// Guard wraps handlers with token resolution, role and permission checks, and
// access logging.
type Guard struct {
	*transport.BaseHandler
	auth    Authenticator
	audit   audit.Recorder
	metrics *Metrics
}

func NewGuard(base *transport.BaseHandler, authn Authenticator, recorder audit.Recorder, m *Metrics) *Guard {
	return &Guard{
		BaseHandler: base,
		auth:        authn,
		audit:       recorder,
		metrics:     m,
	}
}

// Protect returns an http.HandlerFunc that runs next only for authorized callers.
func (g *Guard) Protect(next HandlerFunc, opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				g.metrics.decision(outcomeError)
				g.WriteError(w, r, internal.NewInternalError("protected handler panicked", fmt.Errorf("panic: %v\n%s", rec, debug.Stack())))
			}
		}()

		u, err := g.authorize(r, opts)
		if err != nil {
			g.WriteError(w, r, err)
			return
		}

		g.logAccess(r, u)
		g.metrics.decision(outcomeAllowed)

		ctx := user.ContextWithUser(r.Context(), u)
		ctx = internal.ContextWithUserID(ctx, u.ID)
		next(w, r.WithContext(ctx), u)
	}
}

// ProtectHTTP adapts handlers that read the user from the request context.
func (g *Guard) ProtectHTTP(next http.HandlerFunc, opts Options) http.HandlerFunc {
	return g.Protect(func(w http.ResponseWriter, r *http.Request, _ *user.User) {
		next(w, r)
	}, opts)
}

func (g *Guard) authorize(r *http.Request, opts Options) (*user.User, error) {
	ctx := r.Context()

	tokens := transport.ExtractTokens(r)
	if len(tokens) == 0 {
		g.metrics.decision(outcomeUnauthenticated)
		return nil, internal.ErrNoAuthToken
	}

	var (
		u   *user.User
		err error
	)
	for _, token := range tokens {
		u, err = g.auth.Authenticate(ctx, token)
		if err == nil || !isInvalidToken(err) {
			break
		}
	}
	if err != nil {
		if isInvalidToken(err) {
			g.metrics.decision(outcomeInvalidToken)
			g.securityEvent(r, audit.SecurityEvent{
				Type:     audit.SecurityInvalidToken,
				Severity: audit.SeverityMedium,
			})
			return nil, internal.ErrInvalidToken
		}
		g.metrics.decision(outcomeError)
		return nil, err
	}

	if !u.Active {
		g.metrics.decision(outcomeInactive)
		return nil, internal.ErrAccountInactive
	}

	if !u.HasRole(opts.RequiredRoles...) {
		g.metrics.decision(outcomeRoleDenied)
		required := roleNames(opts.RequiredRoles)
		g.securityEvent(r, audit.SecurityEvent{
			Type:     audit.SecurityAccessDenied,
			Severity: audit.SeverityHigh,
			UserID:   u.ID,
			Details:  map[string]interface{}{"reason": "role", "required": required, "current": string(u.Role)},
		})
		return nil, internal.ErrRoleMismatch.WithRequired(required).WithCurrent(string(u.Role))
	}

	if !permitted(u, opts) {
		g.metrics.decision(outcomePermissionDenied)
		required := permissionNames(opts.RequiredPermissions)
		g.securityEvent(r, audit.SecurityEvent{
			Type:     audit.SecurityAccessDenied,
			Severity: audit.SeverityMedium,
			UserID:   u.ID,
			Details:  map[string]interface{}{"reason": "permission", "required": required, "requireAll": opts.RequireAll},
		})
		return nil, internal.ErrPermissionDenied.WithRequired(required)
	}

	return u, nil
}

func permitted(u *user.User, opts Options) bool {
	if opts.RequireAll {
		return u.HasAllPermissions(opts.RequiredPermissions...)
	}
	return u.HasAnyPermission(opts.RequiredPermissions...)
}

// logAccess never blocks the response; failures are only logged.
func (g *Guard) logAccess(r *http.Request, u *user.User) {
	err := g.audit.LogAccess(r.Context(), audit.AccessEntry{
		UserID:    u.ID,
		UserName:  u.Name,
		Role:      string(u.Role),
		Method:    r.Method,
		Path:      r.URL.Path,
		IP:        transport.ClientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		g.log(r).Error("guard: failed to record access", "user_id", u.ID, "path", r.URL.Path, "error", err)
	}
}

func (g *Guard) securityEvent(r *http.Request, ev audit.SecurityEvent) {
	ev.IP = transport.ClientIP(r)
	ev.Path = r.URL.Path
	if err := g.audit.LogSecurityEvent(r.Context(), ev); err != nil {
		g.log(r).Error("guard: failed to record security event", "type", ev.Type, "error", err)
	}
}

func (g *Guard) log(r *http.Request) *slog.Logger {
	return g.Logger.With("request_id", internal.RequestIDFromContext(r.Context()))
}

func roleNames(roles []permission.Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}

func permissionNames(perms []permission.Permission) []string {
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	return out
}

func isInvalidToken(err error) bool {
	appErr, ok := internal.IsAppError(err)
	return ok && appErr.Is(internal.ErrInvalidToken)
}
