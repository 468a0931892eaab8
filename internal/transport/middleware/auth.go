package middleware

import (
	"context"
	"net/http"

	"github.com/frahmantamala/hse-inspection/internal/transport"
	"github.com/frahmantamala/hse-inspection/internal/user"
	"github.com/frahmantamala/hse-inspection/pkg/logger"
)

// Authenticator resolves a session token to its user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*user.User, error)
}

// Session attaches the caller to the context when the request carries a
// token that resolves to an active user. It never rejects; page routing and
// the API guard decide what an anonymous caller may do.
func Session(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var u *user.User
			for _, token := range transport.ExtractTokens(r) {
				if found, err := authn.Authenticate(r.Context(), token); err == nil {
					u = found
					break
				}
			}
			if u == nil || !u.Active {
				next.ServeHTTP(w, r)
				return
			}

			ctx := user.ContextWithUser(r.Context(), u)
			ctx = logger.With(ctx, "user_id", u.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
