package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/frahmantamala/hse-inspection/pkg/logger"
)

const filtered = "[FILTERED]"

// maxLoggedBody caps how much of a request or response body is logged.
const maxLoggedBody = 4 << 10

// sensitiveFields are matched as substrings of lowercased header and JSON keys.
var sensitiveFields = []string{
	"pin",
	"token",
	"authorization",
	"cookie",
	"secret",
	"password",
	"credential",
	"session",
}

func isSensitive(key string) bool {
	lower := strings.ToLower(key)
	for _, f := range sensitiveFields {
		if strings.Contains(lower, f) {
			return true
		}
	}
	return false
}

// Logging writes one line per request and one per response through the
// request-scoped logger installed by RequestID. Sensitive keys are masked.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lg := logger.From(r.Context())

		logRequest(lg, r)

		rw := &responseWriter{ResponseWriter: w, body: &bytes.Buffer{}}
		next.ServeHTTP(rw, r)

		logResponse(r, lg, rw, time.Since(start))
	})
}

// responseWriter captures the status and a bounded copy of the body.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if room := maxLoggedBody - rw.body.Len(); room > 0 {
		if len(b) < room {
			room = len(b)
		}
		rw.body.Write(b[:room])
	}
	return rw.ResponseWriter.Write(b)
}

func logRequest(lg *slog.Logger, r *http.Request) {
	var bodyBytes []byte
	if r.Body != nil && isJSON(r.Header.Get("Content-Type")) {
		bodyBytes, _ = io.ReadAll(io.LimitReader(r.Body, maxBodyPeek))
		r.Body = struct {
			io.Reader
			io.Closer
		}{io.MultiReader(bytes.NewReader(bodyBytes), r.Body), r.Body}
	}

	lg.Info("incoming request",
		"method", r.Method,
		"path", r.URL.Path,
		"query", filterQuery(r),
		"remote_addr", r.RemoteAddr,
		"user_agent", r.UserAgent(),
		"headers", filterHeaders(r.Header),
		"body", filterBody(bodyBytes),
	)
}

// maxBodyPeek bounds how much of the request body is buffered for logging.
const maxBodyPeek = maxLoggedBody

func logResponse(r *http.Request, lg *slog.Logger, rw *responseWriter, duration time.Duration) {
	status := rw.statusCode
	if status == 0 {
		status = http.StatusOK
	}

	level := slog.LevelInfo
	switch {
	case status >= 500:
		level = slog.LevelError
	case status >= 400:
		level = slog.LevelWarn
	}

	attrs := []any{
		"status_code", status,
		"duration_ms", duration.Milliseconds(),
	}
	if isJSON(rw.Header().Get("Content-Type")) {
		attrs = append(attrs, "body", filterBody(rw.body.Bytes()))
	}
	lg.Log(r.Context(), level, "response", attrs...)
}

func isJSON(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(contentType), "application/json")
}

func filterQuery(r *http.Request) string {
	q := r.URL.Query()
	for key := range q {
		if isSensitive(key) {
			q.Set(key, filtered)
		}
	}
	return q.Encode()
}

func filterHeaders(headers http.Header) map[string]string {
	out := make(map[string]string, len(headers))
	for name, values := range headers {
		if isSensitive(name) {
			out[name] = filtered
			continue
		}
		out[name] = strings.Join(values, ", ")
	}
	return out
}

// filterBody masks sensitive keys in JSON bodies. Anything that fails to parse
// is dropped rather than logged raw.
func filterBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var data interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		return "[UNPARSED]"
	}
	out, err := json.Marshal(filterJSON(data))
	if err != nil {
		return "[UNPARSED]"
	}
	return string(out)
}

func filterJSON(data interface{}) interface{} {
	switch v := data.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, value := range v {
			if isSensitive(key) {
				out[key] = filtered
				continue
			}
			out[key] = filterJSON(value)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = filterJSON(item)
		}
		return out
	default:
		return v
	}
}
