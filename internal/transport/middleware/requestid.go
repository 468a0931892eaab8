package middleware

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/hse-inspection/internal"
	"github.com/frahmantamala/hse-inspection/pkg/logger"
	chiMiddleware "github.com/go-chi/chi/middleware"
	"github.com/google/uuid"
)

const TraceHeader = "X-Trace-ID"

// RequestID must run after chi's RequestID. It reuses an incoming trace id,
// falls back to chi's request id, then a fresh UUID, and installs a logger
// carrying it.
func RequestID(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			traceID := r.Header.Get(TraceHeader)
			if traceID == "" {
				traceID = chiMiddleware.GetReqID(r.Context())
			}
			if traceID == "" {
				traceID = uuid.NewString()
			}

			lg := base
			if lg == nil {
				lg = logger.LoggerWrapper()
			}

			ctx := internal.ContextWithRequestID(r.Context(), traceID)
			ctx = logger.Into(ctx, lg.With("request_id", traceID))

			w.Header().Set(TraceHeader, traceID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
