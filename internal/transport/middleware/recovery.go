package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/frahmantamala/hse-inspection/internal"
	"github.com/frahmantamala/hse-inspection/internal/transport"
)

// Recovery turns a panic anywhere below it into the generic 500 envelope.
// The panic value and stack only go to the log.
func Recovery(base *transport.BaseHandler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					base.Logger.Error("panic recovered",
						"request_id", internal.RequestIDFromContext(r.Context()),
						"panic", rec,
						"method", r.Method,
						"path", r.URL.Path,
						"stack", string(debug.Stack()))

					base.WriteJSON(w, http.StatusInternalServerError, internal.Response{
						Error: "internal server error",
						Code:  internal.ErrCodeInternal,
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
