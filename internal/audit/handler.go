package audit

import (
	"context"
	"net/http"
	"time"

	"github.com/frahmantamala/hse-inspection/internal"
	"github.com/frahmantamala/hse-inspection/internal/transport"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

type ServiceAPI interface {
	ListEvents(ctx context.Context, f Filter) ([]Entry, error)
	ListAccess(ctx context.Context, f Filter) ([]AccessEntry, error)
	ListSecurityEvents(ctx context.Context, f Filter) ([]SecurityEvent, error)
	Summary(ctx context.Context, window time.Duration) (Summary, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(base *transport.BaseHandler, svc ServiceAPI) *Handler {
	return &Handler{BaseHandler: base, Service: svc}
}

type EntriesResponse struct {
	Entries []Entry `json:"entries"`
}

type AccessResponse struct {
	Entries []AccessEntry `json:"entries"`
}

type SecurityEventsResponse struct {
	Events []SecurityEvent `json:"events"`
}

func parseFilter(r *http.Request, actionKey string) (Filter, error) {
	q := r.URL.Query()
	f := Filter{
		Action: q.Get(actionKey),
		UserID: q.Get("userId"),
		Limit:  transport.QueryInt(r, "limit", defaultListLimit, maxListLimit),
	}
	if since := q.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return f, internal.NewValidationFieldError("since", "since must be an RFC 3339 timestamp", internal.ErrCodeValidationFailed)
		}
		f.Since = t
	}
	return f, nil
}

// ListAuditLogs handles GET /api/audit-logs?action=&userId=&since=&limit=
func (h *Handler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r, "action")
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	entries, err := h.Service.ListEvents(r.Context(), f)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, EntriesResponse{Entries: entries})
}

// ListAccessLogs handles GET /api/access-logs?method=&userId=&since=&limit=
func (h *Handler) ListAccessLogs(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r, "method")
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	entries, err := h.Service.ListAccess(r.Context(), f)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, AccessResponse{Entries: entries})
}

// ListSecurityEvents handles GET /api/security-events?type=&userId=&since=&limit=
func (h *Handler) ListSecurityEvents(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r, "type")
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	events, err := h.Service.ListSecurityEvents(r.Context(), f)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, SecurityEventsResponse{Events: events})
}

// SecuritySummary handles GET /api/security/summary?window=24h
func (h *Handler) SecuritySummary(w http.ResponseWriter, r *http.Request) {
	var window time.Duration
	if raw := r.URL.Query().Get("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			h.WriteError(w, r, internal.NewValidationFieldError("window", "window must be a positive duration such as 24h", internal.ErrCodeValidationFailed))
			return
		}
		window = d
	}
	sum, err := h.Service.Summary(r.Context(), window)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, sum)
}
