package transport

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/frahmantamala/hse-inspection/internal"
	"github.com/frahmantamala/hse-inspection/pkg/logger"
)

// AuthCookieName carries the session token.
const AuthCookieName = "auth-token"

const maxBodyBytes = 1 << 20

// BaseHandler provides common functionality for HTTP handlers
type BaseHandler struct {
	Logger *slog.Logger
}

// NewBaseHandler creates a base handler with logger
func NewBaseHandler(lg *slog.Logger) *BaseHandler {
	if lg == nil {
		lg = logger.LoggerWrapper()
		if lg == nil {
			lg = slog.Default()
		}
	}
	return &BaseHandler{Logger: lg}
}

// WriteJSON writes a JSON response
func (h *BaseHandler) WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.Logger.Error("failed to encode JSON response", "error", err)
	}
}

// WriteError writes the error envelope. Non-AppErrors and 5xx AppErrors are
// logged with their cause and answered with a generic 500.
func (h *BaseHandler) WriteError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := internal.IsAppError(err)
	if !ok {
		appErr = internal.NewInternalError("unexpected error", err)
	}
	status, resp := appErr.ToHTTPResponse()

	lg := h.Logger.With("request_id", internal.RequestIDFromContext(r.Context()))
	if status >= http.StatusInternalServerError {
		lg.Error("request failed", "path", r.URL.Path, "error", err)
	} else {
		lg.Debug("request rejected", "path", r.URL.Path, "status", status, "code", resp.Code)
	}
	h.WriteJSON(w, status, resp)
}

// DecodeJSON reads a bounded JSON body into dst.
func (h *BaseHandler) DecodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return internal.NewValidationError("request body too large", internal.ErrCodeValidationFailed)
		}
		return internal.NewValidationError("invalid request body", internal.ErrCodeValidationFailed).WithCause(err)
	}
	return nil
}

// ExtractTokenFromHeader extracts Bearer token from Authorization header
func (h *BaseHandler) ExtractTokenFromHeader(r *http.Request) string {
	return ExtractToken(r)
}

// ExtractToken returns the first candidate from ExtractTokens.
func ExtractToken(r *http.Request) string {
	if tokens := ExtractTokens(r); len(tokens) > 0 {
		return tokens[0]
	}
	return ""
}

// ExtractTokens lists the session tokens a request carries: the auth cookie
// first, then a bearer header. Callers try them in order so a stale cookie
// does not hide a valid header.
func ExtractTokens(r *http.Request) []string {
	var tokens []string
	if c, err := r.Cookie(AuthCookieName); err == nil && c.Value != "" {
		tokens = append(tokens, c.Value)
	}
	authHeader := r.Header.Get("Authorization")
	if len(authHeader) >= 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		if t := strings.TrimSpace(authHeader[7:]); t != "" && (len(tokens) == 0 || tokens[0] != t) {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// SetAuthCookie writes the session cookie.
func SetAuthCookie(w http.ResponseWriter, token string, ttl time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     AuthCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// ClearAuthCookie expires the session cookie.
func ClearAuthCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     AuthCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// ClientIP returns the host part of RemoteAddr. Forwarding headers are only
// honoured through the RealIP middleware, which rewrites RemoteAddr for
// trusted proxies.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// QueryInt parses a non-negative integer query parameter, clamped to max.
func QueryInt(r *http.Request, key string, def, max int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	if max > 0 && n > max {
		return max
	}
	return n
}

// MethodNotAllowed answers with the 405 envelope.
func (h *BaseHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.WriteError(w, r, internal.NewMethodNotAllowedError(r.Method))
}

// NotFound answers with the 404 envelope.
func (h *BaseHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.WriteError(w, r, internal.ErrResourceNotFound)
}
